package services

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/kotadb/internal/core/domain"
	"github.com/custodia-labs/kotadb/internal/core/ports/driven"
	"github.com/custodia-labs/kotadb/internal/core/ports/driving"
	"github.com/custodia-labs/kotadb/internal/logger"
)

// Ensure RebuildService implements the interface.
var _ driving.RebuildService = (*RebuildService)(nil)

const (
	// rebuildBatchSize is how many documents one batch dispatch covers.
	rebuildBatchSize = 100

	// defaultRebuildWorkers bounds concurrent index writes per batch.
	defaultRebuildWorkers = 4
)

// RebuildService repopulates both indexes from storage in throttled
// batches.
type RebuildService struct {
	store   driven.DocumentStore
	paths   driven.PathIndex
	texts   driven.TextIndex
	workers int
	limiter *rate.Limiter
}

// NewRebuildService creates a rebuild service dispatching up to ten
// batches per second.
func NewRebuildService(store driven.DocumentStore, paths driven.PathIndex, texts driven.TextIndex) *RebuildService {
	return &RebuildService{
		store:   store,
		paths:   paths,
		texts:   texts,
		workers: defaultRebuildWorkers,
		limiter: rate.NewLimiter(rate.Limit(10), 1),
	}
}

// NewRebuildServiceFromConfig applies the tuning from cfg.
func NewRebuildServiceFromConfig(store driven.DocumentStore, paths driven.PathIndex, texts driven.TextIndex, cfg domain.RebuildConfig) *RebuildService {
	s := NewRebuildService(store, paths, texts)
	s.SetWorkers(cfg.Workers)
	if cfg.BatchesPerSec > 0 {
		s.SetBatchRate(rate.Limit(cfg.BatchesPerSec), 1)
	}
	return s
}

// SetWorkers overrides the per-batch worker bound.
func (s *RebuildService) SetWorkers(n int) {
	if n > 0 {
		s.workers = n
	}
}

// SetBatchRate overrides the batch dispatch throttle.
func (s *RebuildService) SetBatchRate(limit rate.Limit, burst int) {
	s.limiter = rate.NewLimiter(limit, burst)
}

// Rebuild lists every live document and reindexes it into both indexes.
// An entry already present in the path index is left as is, so rebuild
// is safe on a partially populated index. Both indexes are flushed at
// the end.
func (s *RebuildService) Rebuild(ctx context.Context) (int, error) {
	docs, err := s.store.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("rebuild: list documents: %w", err)
	}
	logger.Info("rebuilding indexes for %d documents", len(docs))

	for start := 0; start < len(docs); start += rebuildBatchSize {
		if err := s.limiter.Wait(ctx); err != nil {
			return 0, fmt.Errorf("%w: rebuild throttle: %v", domain.ErrTimeout, err)
		}
		end := min(start+rebuildBatchSize, len(docs))
		if err := s.rebuildBatch(ctx, docs[start:end]); err != nil {
			return 0, err
		}
		logger.Debug("rebuilt batch %d..%d", start, end)
	}

	if err := s.paths.Flush(ctx); err != nil {
		return 0, fmt.Errorf("rebuild: flush path index: %w", err)
	}
	if err := s.texts.Flush(ctx); err != nil {
		return 0, fmt.Errorf("rebuild: flush text index: %w", err)
	}
	return len(docs), nil
}

func (s *RebuildService) rebuildBatch(ctx context.Context, batch []domain.Document) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, doc := range batch {
		g.Go(func() error {
			err := s.paths.Insert(ctx, doc.Path, doc.ID)
			if err != nil && !errors.Is(err, domain.ErrDuplicateKey) {
				return fmt.Errorf("rebuild: index path %q: %w", doc.Path, err)
			}
			if err := s.texts.Index(ctx, doc.ID, doc.Title.String(), doc.Content); err != nil {
				return fmt.Errorf("rebuild: index text for %s: %w", doc.ID, err)
			}
			return nil
		})
	}
	return g.Wait()
}
