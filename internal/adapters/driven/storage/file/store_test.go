package file

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kotadb/internal/core/domain"
)

func newTestDoc(t *testing.T, path, title, content string) *domain.Document {
	t.Helper()
	doc, err := domain.NewDocumentBuilder().
		Path(path).
		Title(title).
		Content([]byte(content)).
		Build()
	require.NoError(t, err)
	return doc
}

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, dir
}

func TestStore_RoundTrip(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	doc := newTestDoc(t, "/docs/readme.md", "Readme", "hello world")
	doc.Tags = append(doc.Tags, mustTag(t, "docs"), mustTag(t, "intro"))
	require.NoError(t, store.Insert(ctx, doc))

	got, err := store.Get(ctx, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, doc.ID, got.ID)
	assert.Equal(t, doc.Path.String(), got.Path.String())
	assert.Equal(t, doc.Title.String(), got.Title.String())
	assert.Equal(t, doc.Content, got.Content)
	assert.Equal(t, doc.Size.Get(), got.Size.Get())
	require.Len(t, got.Tags, 2)
	assert.Equal(t, "docs", got.Tags[0].String())
	assert.Equal(t, "intro", got.Tags[1].String())
}

func mustTag(t *testing.T, s string) domain.ValidatedTag {
	t.Helper()
	tag, err := domain.NewValidatedTag(s)
	require.NoError(t, err)
	return tag
}

func TestStore_DuplicatePath(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	first := newTestDoc(t, "/docs/a.md", "A", "first")
	require.NoError(t, store.Insert(ctx, first))

	second := newTestDoc(t, "/docs/a.md", "A again", "second")
	err := store.Insert(ctx, second)
	assert.ErrorIs(t, err, domain.ErrDuplicatePath)

	// The original must be untouched.
	got, err := store.Get(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []byte("first"), got.Content)
}

func TestStore_GetAbsent(t *testing.T) {
	store, _ := openTestStore(t)

	got, err := store.Get(context.Background(), domain.NewDocumentID())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_ConcreteScenario(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	doc := newTestDoc(t, "/x.md", "X", "hello world")
	require.NoError(t, store.Insert(ctx, doc))

	got, err := store.Get(ctx, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(11), got.Size.Get())

	updated := got.Clone()
	updated.Content = []byte("hello world!")
	result, err := store.Update(ctx, &updated)
	require.NoError(t, err)
	assert.Equal(t, int64(12), result.Size.Get())
	assert.True(t, result.CreatedAt.Before(result.UpdatedAt),
		"UpdatedAt must move past CreatedAt")

	require.NoError(t, store.Delete(ctx, doc.ID))

	gone, err := store.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestStore_UpdateUnknown(t *testing.T) {
	store, _ := openTestStore(t)

	doc := newTestDoc(t, "/ghost.md", "Ghost", "boo")
	_, err := store.Update(context.Background(), doc)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_DeleteUnknown(t *testing.T) {
	store, _ := openTestStore(t)

	err := store.Delete(context.Background(), domain.NewDocumentID())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_PathFreedAfterDelete(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	doc := newTestDoc(t, "/reuse.md", "First", "first")
	require.NoError(t, store.Insert(ctx, doc))
	require.NoError(t, store.Delete(ctx, doc.ID))

	replacement := newTestDoc(t, "/reuse.md", "Second", "second")
	require.NoError(t, store.Insert(ctx, replacement))
}

func TestStore_UpdateChangePath(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	a := newTestDoc(t, "/a.md", "A", "content a")
	b := newTestDoc(t, "/b.md", "B", "content b")
	require.NoError(t, store.Insert(ctx, a))
	require.NoError(t, store.Insert(ctx, b))

	// Moving a onto b's path must fail.
	moved := a.Clone()
	moved.Path = b.Path
	_, err := store.Update(ctx, &moved)
	assert.ErrorIs(t, err, domain.ErrDuplicatePath)

	// Moving a to a fresh path frees the old one.
	freshPath, err := domain.NewValidatedPath("/c.md")
	require.NoError(t, err)
	moved = a.Clone()
	moved.Path = freshPath
	_, err = store.Update(ctx, &moved)
	require.NoError(t, err)

	reclaimed := newTestDoc(t, "/a.md", "New A", "new content")
	require.NoError(t, store.Insert(ctx, reclaimed))
}

func TestStore_ListAll(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	for _, p := range []string{"/1.md", "/2.md", "/3.md"} {
		require.NoError(t, store.Insert(ctx, newTestDoc(t, p, "T", "content")))
	}

	docs, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 3)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := Open(dir)
	require.NoError(t, err)

	doc := newTestDoc(t, "/persist.md", "Persist", "survives restart")
	require.NoError(t, store.Insert(ctx, doc))
	require.NoError(t, store.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	got, err := reopened.Get(ctx, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []byte("survives restart"), got.Content)
}

func TestStore_RecoversFromWALWithoutSnapshot(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := Open(dir)
	require.NoError(t, err)

	doc := newTestDoc(t, "/wal-only.md", "WAL", "not yet checkpointed")
	require.NoError(t, store.Insert(ctx, doc))

	// Simulate a crash: release files without flushing a snapshot.
	store.closeFiles()

	recovered, err := Open(dir)
	require.NoError(t, err)
	defer func() { _ = recovered.Close() }()

	got, err := recovered.Get(ctx, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []byte("not yet checkpointed"), got.Content)
}

func TestStore_SecondOpenFails(t *testing.T) {
	store, dir := openTestStore(t)
	_ = store

	_, err := Open(dir)
	assert.ErrorIs(t, err, domain.ErrStorageInUse)
}

func TestStore_ConcurrentInsertsDistinctIDs(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	const n = 20
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			doc, err := domain.NewDocumentBuilder().
				Path("/concurrent/" + string(rune('a'+i)) + ".md").
				Title("Concurrent").
				Content([]byte("payload")).
				Build()
			if err != nil {
				errs <- err
				return
			}
			errs <- store.Insert(ctx, doc)
		}(i)
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-errs)
	}

	docs, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, n)
}

func TestStore_LargeDocumentSpansPages(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	big := make([]byte, PageSize*3+123)
	for i := range big {
		big[i] = byte(i % 251)
	}
	doc, err := domain.NewDocumentBuilder().
		Path("/big.bin").
		Title("Big").
		Content(big).
		Build()
	require.NoError(t, err)

	require.NoError(t, store.Insert(ctx, doc))

	got, err := store.Get(ctx, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, big, got.Content)
}
