// Package factory assembles fully wrapped storage and index stacks.
//
// Every component comes back wrapped innermost-out with tracing,
// contract validation, retry, caching where it applies, and metrics, so
// callers get the production behavior by default instead of opting into
// it wrapper by wrapper.
package factory

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/custodia-labs/kotadb/internal/adapters/driven/index/btree"
	"github.com/custodia-labs/kotadb/internal/adapters/driven/index/trigram"
	"github.com/custodia-labs/kotadb/internal/adapters/driven/storage/file"
	"github.com/custodia-labs/kotadb/internal/core/domain"
	"github.com/custodia-labs/kotadb/internal/core/ports/driven"
	"github.com/custodia-labs/kotadb/internal/core/ports/driving"
	"github.com/custodia-labs/kotadb/internal/core/services"
	"github.com/custodia-labs/kotadb/internal/wrappers"
)

// Factory builds wrapped components sharing one set of metrics
// collectors.
type Factory struct {
	metrics *wrappers.Metrics
}

// New creates a factory registering its collectors on reg.
func New(reg prometheus.Registerer) *Factory {
	return &Factory{metrics: wrappers.NewMetrics(reg)}
}

var (
	defaultFactory *Factory
	defaultOnce    sync.Once
)

// defaultInstance registers on the global registry exactly once.
func defaultInstance() *Factory {
	defaultOnce.Do(func() {
		defaultFactory = New(prometheus.DefaultRegisterer)
	})
	return defaultFactory
}

func retryPolicy(cfg domain.Config) wrappers.RetryPolicy {
	return wrappers.RetryPolicy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay.Std(),
		MaxDelay:    cfg.Retry.MaxDelay.Std(),
	}
}

// CreateStorage opens the file-backed document store under dir and
// wraps it with the full stack.
func (f *Factory) CreateStorage(dir string, cfg domain.Config) (driven.DocumentStore, error) {
	base, err := file.Open(dir)
	if err != nil {
		return nil, err
	}
	var store driven.DocumentStore = wrappers.NewTracingStore(base)
	store = wrappers.NewValidatingStore(store)
	store = wrappers.NewRetryingStore(store, retryPolicy(cfg))
	store = wrappers.NewCachingStore(store, cfg.CacheSize)
	store = wrappers.NewMetricsStore(store, f.metrics)
	return store, nil
}

// CreatePrimaryIndex opens the B+-tree path index under dir and wraps
// it with the full stack, including a Lookup cache.
func (f *Factory) CreatePrimaryIndex(dir string, cfg domain.Config) (driven.PathIndex, error) {
	base, err := btree.Open(dir)
	if err != nil {
		return nil, err
	}
	var idx driven.PathIndex = wrappers.NewTracingPathIndex(base)
	idx = wrappers.NewValidatingPathIndex(idx)
	idx = wrappers.NewRetryingPathIndex(idx, retryPolicy(cfg))
	idx = wrappers.NewCachingPathIndex(idx, cfg.CacheSize)
	idx = wrappers.NewMetricsPathIndex(idx, f.metrics)
	return idx, nil
}

// CreateTrigramIndex opens the trigram index under dir and wraps it
// with tracing, validation, retry, and metrics.
func (f *Factory) CreateTrigramIndex(dir string, cfg domain.Config) (driven.TextIndex, error) {
	base, err := trigram.Open(dir)
	if err != nil {
		return nil, err
	}
	var idx driven.TextIndex = wrappers.NewTracingTextIndex(base)
	idx = wrappers.NewValidatingTextIndex(idx)
	idx = wrappers.NewRetryingTextIndex(idx, retryPolicy(cfg))
	idx = wrappers.NewMetricsTextIndex(idx, f.metrics)
	return idx, nil
}

// CreateRebuildService wires a rebuild service over already built
// components, applying cfg.Rebuild.
func CreateRebuildService(store driven.DocumentStore, paths driven.PathIndex, texts driven.TextIndex, cfg domain.Config) driving.RebuildService {
	return services.NewRebuildServiceFromConfig(store, paths, texts, cfg.Rebuild)
}

// CreateStorage builds a wrapped document store using the process-wide
// metrics registry.
func CreateStorage(dir string, cfg domain.Config) (driven.DocumentStore, error) {
	return defaultInstance().CreateStorage(dir, cfg)
}

// CreatePrimaryIndex builds a wrapped path index using the process-wide
// metrics registry.
func CreatePrimaryIndex(dir string, cfg domain.Config) (driven.PathIndex, error) {
	return defaultInstance().CreatePrimaryIndex(dir, cfg)
}

// CreateTrigramIndex builds a wrapped text index using the process-wide
// metrics registry.
func CreateTrigramIndex(dir string, cfg domain.Config) (driven.TextIndex, error) {
	return defaultInstance().CreateTrigramIndex(dir, cfg)
}
