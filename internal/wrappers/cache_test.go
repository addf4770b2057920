package wrappers

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kotadb/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/kotadb/internal/core/domain"
	"github.com/custodia-labs/kotadb/internal/core/ports/driven"
)

// countingStore counts how often reads reach the inner store.
type countingStore struct {
	driven.DocumentStore
	gets atomic.Int32
}

func (c *countingStore) Get(ctx context.Context, id domain.ValidatedDocumentID) (*domain.Document, error) {
	c.gets.Add(1)
	return c.DocumentStore.Get(ctx, id)
}

func TestCacheServesRepeatReads(t *testing.T) {
	inner := &countingStore{DocumentStore: memory.NewDocumentStore()}
	store := NewCachingStore(inner, 10)
	ctx := context.Background()

	doc := buildDocument(t, "/docs/a.md", "a", "body")
	require.NoError(t, store.Insert(ctx, doc))

	for range 3 {
		got, err := store.Get(ctx, doc.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, doc.Path, got.Path)
	}
	assert.Equal(t, int32(1), inner.gets.Load())
}

func TestCacheInvalidatedAfterUpdate(t *testing.T) {
	store := NewCachingStore(memory.NewDocumentStore(), 10)
	ctx := context.Background()

	doc := buildDocument(t, "/docs/a.md", "before", "body")
	require.NoError(t, store.Insert(ctx, doc))
	_, err := store.Get(ctx, doc.ID)
	require.NoError(t, err)

	title, err := domain.NewValidatedTitle("after")
	require.NoError(t, err)
	changed := doc.Clone()
	changed.Title = title
	_, err = store.Update(ctx, &changed)
	require.NoError(t, err)

	got, err := store.Get(ctx, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "after", got.Title.String())
}

func TestCacheInvalidatedAfterDelete(t *testing.T) {
	store := NewCachingStore(memory.NewDocumentStore(), 10)
	ctx := context.Background()

	doc := buildDocument(t, "/docs/a.md", "a", "body")
	require.NoError(t, store.Insert(ctx, doc))
	_, err := store.Get(ctx, doc.ID)
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, doc.ID))
	got, err := store.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCacheReturnsIsolatedCopies(t *testing.T) {
	store := NewCachingStore(memory.NewDocumentStore(), 10)
	ctx := context.Background()

	doc := buildDocument(t, "/docs/a.md", "a", "body")
	require.NoError(t, store.Insert(ctx, doc))

	first, err := store.Get(ctx, doc.ID)
	require.NoError(t, err)
	first.Content[0] = 'X'

	second, err := store.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("body"), second.Content)
}

func TestCacheBoundedEviction(t *testing.T) {
	inner := &countingStore{DocumentStore: memory.NewDocumentStore()}
	store := NewCachingStore(inner, 1)
	ctx := context.Background()

	a := buildDocument(t, "/docs/a.md", "a", "body")
	b := buildDocument(t, "/docs/b.md", "b", "body")
	require.NoError(t, store.Insert(ctx, a))
	require.NoError(t, store.Insert(ctx, b))

	_, err := store.Get(ctx, a.ID)
	require.NoError(t, err)
	_, err = store.Get(ctx, b.ID) // evicts a
	require.NoError(t, err)
	_, err = store.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(3), inner.gets.Load())
}

func TestCacheConcurrentReaders(t *testing.T) {
	store := NewCachingStore(memory.NewDocumentStore(), 10)
	ctx := context.Background()

	doc := buildDocument(t, "/docs/a.md", "a", "body")
	require.NoError(t, store.Insert(ctx, doc))

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := store.Get(ctx, doc.ID)
			assert.NoError(t, err)
			assert.NotNil(t, got)
		}()
	}
	wg.Wait()
}

// gateStore performs the inner read, then parks until released, so the
// test can complete a write in the window before the wrapper caches the
// read result.
type gateStore struct {
	driven.DocumentStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gateStore) Get(ctx context.Context, id domain.ValidatedDocumentID) (*domain.Document, error) {
	doc, err := g.DocumentStore.Get(ctx, id)
	g.once.Do(func() { close(g.entered) })
	<-g.release
	return doc, err
}

func TestCacheReadOverlappingUpdateNotCached(t *testing.T) {
	inner := &gateStore{
		DocumentStore: memory.NewDocumentStore(),
		entered:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	store := NewCachingStore(inner, 10)
	ctx := context.Background()

	doc := buildDocument(t, "/docs/a.md", "before", "body")
	require.NoError(t, store.Insert(ctx, doc))

	done := make(chan struct{})
	go func() {
		defer close(done)
		got, err := store.Get(ctx, doc.ID)
		assert.NoError(t, err)
		assert.NotNil(t, got)
	}()

	// The slow read now holds the pre-update document.
	<-inner.entered

	title, err := domain.NewValidatedTitle("after")
	require.NoError(t, err)
	changed := doc.Clone()
	changed.Title = title
	_, err = store.Update(ctx, &changed)
	require.NoError(t, err)

	// Let the slow read finish; its stale result must not be cached.
	close(inner.release)
	<-done

	got, err := store.Get(ctx, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "after", got.Title.String())
}

// gatePathIndex parks Lookup between the inner read and the return, see
// gateStore.
type gatePathIndex struct {
	driven.PathIndex
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatePathIndex) Lookup(ctx context.Context, path domain.ValidatedPath) (domain.ValidatedDocumentID, bool) {
	id, ok := g.PathIndex.Lookup(ctx, path)
	g.once.Do(func() { close(g.entered) })
	<-g.release
	return id, ok
}

func TestPathIndexLookupOverlappingRemoveNotCached(t *testing.T) {
	inner := &gatePathIndex{
		PathIndex: newFakePathIndex(),
		entered:   make(chan struct{}),
		release:   make(chan struct{}),
	}
	idx := NewCachingPathIndex(inner, 10)
	ctx := context.Background()

	path := mustWrapperPath(t, "/docs/a.md")
	id := domain.NewDocumentID()
	require.NoError(t, idx.Insert(ctx, path, id))

	done := make(chan struct{})
	go func() {
		defer close(done)
		got, ok := idx.Lookup(ctx, path)
		assert.True(t, ok)
		assert.Equal(t, id, got)
	}()

	<-inner.entered
	require.NoError(t, idx.Remove(ctx, path))
	close(inner.release)
	<-done

	_, ok := idx.Lookup(ctx, path)
	assert.False(t, ok)
}

func TestPathIndexLookupCache(t *testing.T) {
	base := newFakePathIndex()
	idx := NewCachingPathIndex(base, 10)
	ctx := context.Background()

	path := mustWrapperPath(t, "/docs/a.md")
	id := domain.NewDocumentID()
	require.NoError(t, idx.Insert(ctx, path, id))

	got, ok := idx.Lookup(ctx, path)
	require.True(t, ok)
	assert.Equal(t, id, got)
	_, _ = idx.Lookup(ctx, path)
	assert.Equal(t, 1, base.lookups)

	require.NoError(t, idx.Remove(ctx, path))
	_, ok = idx.Lookup(ctx, path)
	assert.False(t, ok)
}

func TestLRUEvictsOldest(t *testing.T) {
	c := newLRU[string, int](2)
	c.put("a", 1)
	c.put("b", 2)
	_, _ = c.get("a") // refresh a
	c.put("c", 3)     // evicts b

	_, ok := c.get("b")
	assert.False(t, ok)
	v, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, c.len())
}
