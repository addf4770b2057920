package file

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/kotadb/internal/core/domain"
	"github.com/custodia-labs/kotadb/internal/core/ports/driven"
	"github.com/custodia-labs/kotadb/internal/logger"
)

// Ensure Loader implements the interface.
var _ driven.ConfigLoader = (*Loader)(nil)

// Loader reads engine configuration from a TOML file.
type Loader struct {
	path     string
	validate *validator.Validate
}

// NewLoader creates a loader for the given config file path.
func NewLoader(path string) *Loader {
	return &Loader{
		path:     path,
		validate: validator.New(),
	}
}

// Load parses the config file over the defaults and validates the
// result. A missing file returns the defaults.
func (l *Loader) Load() (domain.Config, error) {
	cfg := domain.DefaultConfig()

	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Debug("config file %s not found, using defaults", l.path)
		return cfg, nil
	}
	if err != nil {
		return domain.Config{}, fmt.Errorf("read config %s: %w", l.path, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return domain.Config{}, fmt.Errorf("parse config %s: %w", l.path, err)
	}
	if err := l.validate.Struct(cfg); err != nil {
		return domain.Config{}, fmt.Errorf("validate config %s: %w", l.path, err)
	}
	logger.Debug("loaded config from %s", l.path)
	return cfg, nil
}
