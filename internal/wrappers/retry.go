package wrappers

import (
	"context"
	"fmt"
	"iter"
	"math/rand"
	"time"

	"github.com/custodia-labs/kotadb/internal/core/domain"
	"github.com/custodia-labs/kotadb/internal/core/ports/driven"
	"github.com/custodia-labs/kotadb/internal/logger"
)

// RetryPolicy bounds how often and how long transient failures are
// retried.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy retries three times with exponential backoff from
// 100ms up to 5s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    5 * time.Second,
	}
}

// run executes op, retrying only transient failures. Validation,
// logical, and corruption errors propagate immediately. Exhausted
// attempts surface as ErrUnavailable; an expired context as ErrTimeout.
func (p RetryPolicy) run(ctx context.Context, name string, op func() error) error {
	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err = op()
		if err == nil || !domain.IsTransient(err) {
			return err
		}
		if attempt == p.MaxAttempts {
			break
		}
		delay := p.backoff(attempt)
		logger.Debug("%s failed (attempt %d/%d), retrying in %v: %v", name, attempt, p.MaxAttempts, delay, err)
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s: %v", domain.ErrTimeout, name, ctx.Err())
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("%w: %s failed after %d attempts: %v", domain.ErrUnavailable, name, p.MaxAttempts, err)
}

// backoff doubles the base delay per attempt, caps it, and jitters the
// result between 50% and 100% so concurrent retries spread out.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	delay := p.BaseDelay << (attempt - 1)
	if delay > p.MaxDelay || delay <= 0 {
		delay = p.MaxDelay
	}
	half := int64(delay / 2)
	return time.Duration(half + rand.Int63n(half+1))
}

// RetryingStore retries transient DocumentStore failures with backoff.
type RetryingStore struct {
	inner  driven.DocumentStore
	policy RetryPolicy
}

// normalize fills zero-valued fields from the defaults.
func (p RetryPolicy) normalize() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = def.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	return p
}

// NewRetryingStore wraps inner with policy. Zero-valued policy fields
// fall back to the defaults.
func NewRetryingStore(inner driven.DocumentStore, policy RetryPolicy) *RetryingStore {
	return &RetryingStore{inner: inner, policy: policy.normalize()}
}

func (s *RetryingStore) Insert(ctx context.Context, doc *domain.Document) error {
	return s.policy.run(ctx, "storage.insert", func() error {
		return s.inner.Insert(ctx, doc)
	})
}

func (s *RetryingStore) Get(ctx context.Context, id domain.ValidatedDocumentID) (*domain.Document, error) {
	var doc *domain.Document
	err := s.policy.run(ctx, "storage.get", func() error {
		var err error
		doc, err = s.inner.Get(ctx, id)
		return err
	})
	return doc, err
}

func (s *RetryingStore) Update(ctx context.Context, doc *domain.Document) (*domain.Document, error) {
	var updated *domain.Document
	err := s.policy.run(ctx, "storage.update", func() error {
		var err error
		updated, err = s.inner.Update(ctx, doc)
		return err
	})
	return updated, err
}

func (s *RetryingStore) Delete(ctx context.Context, id domain.ValidatedDocumentID) error {
	return s.policy.run(ctx, "storage.delete", func() error {
		return s.inner.Delete(ctx, id)
	})
}

func (s *RetryingStore) ListAll(ctx context.Context) ([]domain.Document, error) {
	var docs []domain.Document
	err := s.policy.run(ctx, "storage.list_all", func() error {
		var err error
		docs, err = s.inner.ListAll(ctx)
		return err
	})
	return docs, err
}

func (s *RetryingStore) Flush(ctx context.Context) error {
	return s.policy.run(ctx, "storage.flush", func() error {
		return s.inner.Flush(ctx)
	})
}

func (s *RetryingStore) Close() error {
	return s.inner.Close()
}

// RetryingPathIndex retries transient path index mutations. Lookup and
// Range read in-memory state and pass through.
type RetryingPathIndex struct {
	inner  driven.PathIndex
	policy RetryPolicy
}

func NewRetryingPathIndex(inner driven.PathIndex, policy RetryPolicy) *RetryingPathIndex {
	return &RetryingPathIndex{inner: inner, policy: policy.normalize()}
}

func (i *RetryingPathIndex) Insert(ctx context.Context, path domain.ValidatedPath, id domain.ValidatedDocumentID) error {
	return i.policy.run(ctx, "path_index.insert", func() error {
		return i.inner.Insert(ctx, path, id)
	})
}

func (i *RetryingPathIndex) Remove(ctx context.Context, path domain.ValidatedPath) error {
	return i.policy.run(ctx, "path_index.remove", func() error {
		return i.inner.Remove(ctx, path)
	})
}

func (i *RetryingPathIndex) Lookup(ctx context.Context, path domain.ValidatedPath) (domain.ValidatedDocumentID, bool) {
	return i.inner.Lookup(ctx, path)
}

func (i *RetryingPathIndex) Range(ctx context.Context, prefix string) iter.Seq2[domain.ValidatedPath, domain.ValidatedDocumentID] {
	return i.inner.Range(ctx, prefix)
}

func (i *RetryingPathIndex) Flush(ctx context.Context) error {
	return i.policy.run(ctx, "path_index.flush", func() error {
		return i.inner.Flush(ctx)
	})
}

func (i *RetryingPathIndex) Close() error {
	return i.inner.Close()
}

// RetryingTextIndex retries transient text index failures.
type RetryingTextIndex struct {
	inner  driven.TextIndex
	policy RetryPolicy
}

func NewRetryingTextIndex(inner driven.TextIndex, policy RetryPolicy) *RetryingTextIndex {
	return &RetryingTextIndex{inner: inner, policy: policy.normalize()}
}

func (i *RetryingTextIndex) Index(ctx context.Context, id domain.ValidatedDocumentID, title string, content []byte) error {
	return i.policy.run(ctx, "text_index.index", func() error {
		return i.inner.Index(ctx, id, title, content)
	})
}

func (i *RetryingTextIndex) Remove(ctx context.Context, id domain.ValidatedDocumentID) error {
	return i.policy.run(ctx, "text_index.remove", func() error {
		return i.inner.Remove(ctx, id)
	})
}

func (i *RetryingTextIndex) Search(ctx context.Context, text string, limit int) ([]driven.SearchHit, error) {
	var hits []driven.SearchHit
	err := i.policy.run(ctx, "text_index.search", func() error {
		var err error
		hits, err = i.inner.Search(ctx, text, limit)
		return err
	})
	return hits, err
}

func (i *RetryingTextIndex) Flush(ctx context.Context) error {
	return i.policy.run(ctx, "text_index.flush", func() error {
		return i.inner.Flush(ctx)
	})
}

func (i *RetryingTextIndex) Close() error {
	return i.inner.Close()
}
