package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kotadb/internal/adapters/driven/index/btree"
	"github.com/custodia-labs/kotadb/internal/adapters/driven/index/trigram"
	"github.com/custodia-labs/kotadb/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/kotadb/internal/core/domain"
)

type queryFixture struct {
	store *memory.DocumentStore
	paths *btree.Index
	texts *trigram.Index
	svc   *QueryService
}

func newQueryFixture(t *testing.T) *queryFixture {
	t.Helper()
	paths, err := btree.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { paths.Close() })

	texts, err := trigram.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { texts.Close() })

	store := memory.NewDocumentStore()
	return &queryFixture{
		store: store,
		paths: paths,
		texts: texts,
		svc:   NewQueryService(store, paths, texts),
	}
}

func (f *queryFixture) addDocument(t *testing.T, path, title, content string, tags ...string) *domain.Document {
	t.Helper()
	ctx := context.Background()
	doc, err := domain.NewDocumentBuilder().
		Path(path).
		Title(title).
		Content([]byte(content)).
		Tags(tags...).
		Build()
	require.NoError(t, err)
	require.NoError(t, f.store.Insert(ctx, doc))
	require.NoError(t, f.paths.Insert(ctx, doc.Path, doc.ID))
	require.NoError(t, f.texts.Index(ctx, doc.ID, title, []byte(content)))
	return doc
}

func mustQuery(t *testing.T, text string, limit int) domain.Query {
	t.Helper()
	q, err := domain.NewQuery(text, limit)
	require.NoError(t, err)
	return q
}

func TestSearchExactPath(t *testing.T) {
	f := newQueryFixture(t)
	doc := f.addDocument(t, "/docs/readme.md", "Readme", "kotadb overview")
	f.addDocument(t, "/docs/other.md", "Other", "unrelated")

	results, err := f.svc.Search(context.Background(), mustQuery(t, "/docs/readme.md", 10))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, doc.ID, results[0].Document.ID)
	assert.Equal(t, 1.0, results[0].Score)
}

func TestSearchExactPathMiss(t *testing.T) {
	f := newQueryFixture(t)
	f.addDocument(t, "/docs/readme.md", "Readme", "content")

	results, err := f.svc.Search(context.Background(), mustQuery(t, "/docs/absent.md", 10))
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchWildcardPattern(t *testing.T) {
	f := newQueryFixture(t)
	a := f.addDocument(t, "/docs/a.md", "A", "alpha")
	b := f.addDocument(t, "/docs/b.md", "B", "beta")
	f.addDocument(t, "/notes/c.md", "C", "gamma")

	results, err := f.svc.Search(context.Background(), mustQuery(t, "/docs/*", 10))
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, a.ID, results[0].Document.ID)
	assert.Equal(t, b.ID, results[1].Document.ID)

	results, err = f.svc.Search(context.Background(), mustQuery(t, "*.md", 10))
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestSearchFreeTextRoutesToTrigramIndex(t *testing.T) {
	f := newQueryFixture(t)
	doc := f.addDocument(t, "/docs/db.md", "Database", "kotadb stores documents in pages")
	f.addDocument(t, "/docs/recipes.md", "Recipes", "flour and eggs")

	results, err := f.svc.Search(context.Background(), mustQuery(t, "kotadb", 10))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, doc.ID, results[0].Document.ID)
	assert.Greater(t, results[0].Score, 0.0)
}

func TestSearchDropsVanishedDocuments(t *testing.T) {
	f := newQueryFixture(t)
	ctx := context.Background()
	doc := f.addDocument(t, "/docs/gone.md", "Gone", "kotadb content here")

	// Delete from storage only, leaving stale index entries.
	require.NoError(t, f.store.Delete(ctx, doc.ID))

	results, err := f.svc.Search(ctx, mustQuery(t, "kotadb", 10))
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = f.svc.Search(ctx, mustQuery(t, "/docs/*", 10))
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchRespectsLimit(t *testing.T) {
	f := newQueryFixture(t)
	for i := 0; i < 5; i++ {
		f.addDocument(t, "/docs/"+string(rune('a'+i))+".md", "Doc", "shared kotadb phrase")
	}

	results, err := f.svc.Search(context.Background(), mustQuery(t, "/docs/*", 3))
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestSearchTagFilter(t *testing.T) {
	f := newQueryFixture(t)
	tagged := f.addDocument(t, "/docs/a.md", "A", "kotadb content", "db")
	f.addDocument(t, "/docs/b.md", "B", "kotadb content")

	q := mustQuery(t, "kotadb", 10)
	tag, err := domain.NewValidatedTag("db")
	require.NoError(t, err)
	q.Tags = []domain.ValidatedTag{tag}

	results, err := f.svc.Search(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, tagged.ID, results[0].Document.ID)
}

func TestSearchWildcardTagFilterScansPastLimit(t *testing.T) {
	f := newQueryFixture(t)
	f.addDocument(t, "/docs/a.md", "A", "content")
	f.addDocument(t, "/docs/b.md", "B", "content")
	tagged := f.addDocument(t, "/docs/c.md", "C", "content", "db")

	q := mustQuery(t, "/docs/*", 1)
	tag, err := domain.NewValidatedTag("db")
	require.NoError(t, err)
	q.Tags = []domain.ValidatedTag{tag}

	// The tagged document sorts after limit untagged ones; the scan must
	// keep going until the filter has found it.
	results, err := f.svc.Search(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, tagged.ID, results[0].Document.ID)
}

func TestSearchEmptyQueryRejected(t *testing.T) {
	f := newQueryFixture(t)
	_, err := f.svc.Search(context.Background(), domain.Query{})
	assert.ErrorIs(t, err, domain.ErrInvalidQuery)
}
