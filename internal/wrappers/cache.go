package wrappers

import (
	"context"
	"iter"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/custodia-labs/kotadb/internal/core/domain"
	"github.com/custodia-labs/kotadb/internal/core/ports/driven"
)

// DefaultCacheSize bounds the read caches when no size is configured.
const DefaultCacheSize = 1000

// CachingStore keeps a bounded LRU of recently read documents.
// Concurrent misses for the same ID collapse into one inner read via
// singleflight. Writes invalidate the affected entry before returning,
// so a read that follows a write never sees the stale value. The lock
// guards only cache state and is never held across inner I/O.
type CachingStore struct {
	inner driven.DocumentStore
	mu    sync.Mutex
	cache *lru[domain.ValidatedDocumentID, *domain.Document]
	// epoch advances on every invalidation. A read that was in flight
	// while it advanced returns its result but must not cache it.
	epoch uint64
	group singleflight.Group
}

func NewCachingStore(inner driven.DocumentStore, size int) *CachingStore {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &CachingStore{
		inner: inner,
		cache: newLRU[domain.ValidatedDocumentID, *domain.Document](size),
	}
}

func (s *CachingStore) Insert(ctx context.Context, doc *domain.Document) error {
	if err := s.inner.Insert(ctx, doc); err != nil {
		return err
	}
	if doc != nil {
		s.invalidate(doc.ID)
	}
	return nil
}

func (s *CachingStore) Get(ctx context.Context, id domain.ValidatedDocumentID) (*domain.Document, error) {
	s.mu.Lock()
	if doc, ok := s.cache.get(id); ok {
		s.mu.Unlock()
		clone := doc.Clone()
		return &clone, nil
	}
	s.mu.Unlock()

	v, err, _ := s.group.Do(id.String(), func() (any, error) {
		s.mu.Lock()
		epoch := s.epoch
		s.mu.Unlock()

		doc, err := s.inner.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if doc != nil {
			clone := doc.Clone()
			s.mu.Lock()
			if s.epoch == epoch {
				s.cache.put(id, &clone)
			}
			s.mu.Unlock()
		}
		return doc, nil
	})
	if err != nil {
		return nil, err
	}
	doc, _ := v.(*domain.Document)
	if doc == nil {
		return nil, nil
	}
	clone := doc.Clone()
	return &clone, nil
}

func (s *CachingStore) Update(ctx context.Context, doc *domain.Document) (*domain.Document, error) {
	updated, err := s.inner.Update(ctx, doc)
	if err != nil {
		return nil, err
	}
	s.invalidate(updated.ID)
	return updated, nil
}

func (s *CachingStore) Delete(ctx context.Context, id domain.ValidatedDocumentID) error {
	if err := s.inner.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(id)
	return nil
}

func (s *CachingStore) invalidate(id domain.ValidatedDocumentID) {
	s.group.Forget(id.String())
	s.mu.Lock()
	s.epoch++
	s.cache.remove(id)
	s.mu.Unlock()
}

func (s *CachingStore) ListAll(ctx context.Context) ([]domain.Document, error) {
	return s.inner.ListAll(ctx)
}

func (s *CachingStore) Flush(ctx context.Context) error {
	return s.inner.Flush(ctx)
}

func (s *CachingStore) Close() error {
	return s.inner.Close()
}

// CachingPathIndex keeps a bounded LRU of positive Lookup results.
// Mutations invalidate the affected path before returning.
type CachingPathIndex struct {
	inner driven.PathIndex
	mu    sync.Mutex
	cache *lru[domain.ValidatedPath, domain.ValidatedDocumentID]
	// epoch advances on every invalidation, see CachingStore.
	epoch uint64
}

func NewCachingPathIndex(inner driven.PathIndex, size int) *CachingPathIndex {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &CachingPathIndex{
		inner: inner,
		cache: newLRU[domain.ValidatedPath, domain.ValidatedDocumentID](size),
	}
}

func (i *CachingPathIndex) Insert(ctx context.Context, path domain.ValidatedPath, id domain.ValidatedDocumentID) error {
	if err := i.inner.Insert(ctx, path, id); err != nil {
		return err
	}
	i.invalidate(path)
	return nil
}

func (i *CachingPathIndex) Remove(ctx context.Context, path domain.ValidatedPath) error {
	if err := i.inner.Remove(ctx, path); err != nil {
		return err
	}
	i.invalidate(path)
	return nil
}

func (i *CachingPathIndex) invalidate(path domain.ValidatedPath) {
	i.mu.Lock()
	i.epoch++
	i.cache.remove(path)
	i.mu.Unlock()
}

func (i *CachingPathIndex) Lookup(ctx context.Context, path domain.ValidatedPath) (domain.ValidatedDocumentID, bool) {
	i.mu.Lock()
	if id, ok := i.cache.get(path); ok {
		i.mu.Unlock()
		return id, true
	}
	epoch := i.epoch
	i.mu.Unlock()

	id, ok := i.inner.Lookup(ctx, path)
	if ok {
		i.mu.Lock()
		if i.epoch == epoch {
			i.cache.put(path, id)
		}
		i.mu.Unlock()
	}
	return id, ok
}

func (i *CachingPathIndex) Range(ctx context.Context, prefix string) iter.Seq2[domain.ValidatedPath, domain.ValidatedDocumentID] {
	return i.inner.Range(ctx, prefix)
}

func (i *CachingPathIndex) Flush(ctx context.Context) error {
	return i.inner.Flush(ctx)
}

func (i *CachingPathIndex) Close() error {
	return i.inner.Close()
}
