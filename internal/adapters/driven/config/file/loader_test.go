package file

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kotadb/internal/core/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "absent.toml"))
	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultConfig(), cfg)
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
cache_size = 50

[retry]
max_attempts = 5
base_delay = "20ms"
`)
	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.CacheSize)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 20*time.Millisecond, cfg.Retry.BaseDelay.Std())
	// Untouched fields keep their defaults.
	assert.Equal(t, 5*time.Second, cfg.Retry.MaxDelay.Std())
	assert.Equal(t, 4, cfg.Rebuild.Workers)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := writeConfig(t, `cache_size = 0`)
	_, err := NewLoader(path).Load()
	assert.Error(t, err)

	path = writeConfig(t, `
[retry]
max_attempts = 99
`)
	_, err = NewLoader(path).Load()
	assert.Error(t, err)
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	path := writeConfig(t, `cache_size = [broken`)
	_, err := NewLoader(path).Load()
	assert.Error(t, err)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, `
[retry]
base_delay = "soon"
`)
	_, err := NewLoader(path).Load()
	assert.Error(t, err)
}
