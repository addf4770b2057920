package driven

import "github.com/custodia-labs/kotadb/internal/core/domain"

// ConfigLoader reads engine settings from an external source.
type ConfigLoader interface {
	// Load returns the effective configuration. A missing source yields
	// the defaults, not an error.
	Load() (domain.Config, error)
}
