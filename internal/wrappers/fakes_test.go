package wrappers

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kotadb/internal/core/domain"
	"github.com/custodia-labs/kotadb/internal/core/ports/driven"
)

func mustWrapperPath(t *testing.T, raw string) domain.ValidatedPath {
	t.Helper()
	p, err := domain.NewValidatedPath(raw)
	require.NoError(t, err)
	return p
}

// fakePathIndex is a map-backed PathIndex that counts inner lookups and
// can fail a configurable number of times.
type fakePathIndex struct {
	entries  map[domain.ValidatedPath]domain.ValidatedDocumentID
	lookups  int
	failures []error
}

func newFakePathIndex() *fakePathIndex {
	return &fakePathIndex{entries: make(map[domain.ValidatedPath]domain.ValidatedDocumentID)}
}

func (f *fakePathIndex) takeFailure() error {
	if len(f.failures) == 0 {
		return nil
	}
	err := f.failures[0]
	f.failures = f.failures[1:]
	return err
}

func (f *fakePathIndex) Insert(_ context.Context, path domain.ValidatedPath, id domain.ValidatedDocumentID) error {
	if err := f.takeFailure(); err != nil {
		return err
	}
	if _, ok := f.entries[path]; ok {
		return fmt.Errorf("%w: path %q", domain.ErrDuplicateKey, path)
	}
	f.entries[path] = id
	return nil
}

func (f *fakePathIndex) Remove(_ context.Context, path domain.ValidatedPath) error {
	if err := f.takeFailure(); err != nil {
		return err
	}
	if _, ok := f.entries[path]; !ok {
		return fmt.Errorf("%w: path %q", domain.ErrNotFound, path)
	}
	delete(f.entries, path)
	return nil
}

func (f *fakePathIndex) Lookup(_ context.Context, path domain.ValidatedPath) (domain.ValidatedDocumentID, bool) {
	f.lookups++
	id, ok := f.entries[path]
	return id, ok
}

func (f *fakePathIndex) Range(_ context.Context, prefix string) iter.Seq2[domain.ValidatedPath, domain.ValidatedDocumentID] {
	paths := make([]domain.ValidatedPath, 0, len(f.entries))
	for p := range f.entries {
		if p.HasPrefix(prefix) {
			paths = append(paths, p)
		}
	}
	sort.Slice(paths, func(a, b int) bool { return paths[a].Less(paths[b]) })
	return func(yield func(domain.ValidatedPath, domain.ValidatedDocumentID) bool) {
		for _, p := range paths {
			if !yield(p, f.entries[p]) {
				return
			}
		}
	}
}

func (f *fakePathIndex) Flush(context.Context) error { return nil }
func (f *fakePathIndex) Close() error                { return nil }

// fakeTextIndex records calls and can fail a configurable number of
// times.
type fakeTextIndex struct {
	indexed  map[domain.ValidatedDocumentID]string
	failures []error
}

func newFakeTextIndex() *fakeTextIndex {
	return &fakeTextIndex{indexed: make(map[domain.ValidatedDocumentID]string)}
}

func (f *fakeTextIndex) takeFailure() error {
	if len(f.failures) == 0 {
		return nil
	}
	err := f.failures[0]
	f.failures = f.failures[1:]
	return err
}

func (f *fakeTextIndex) Index(_ context.Context, id domain.ValidatedDocumentID, title string, content []byte) error {
	if err := f.takeFailure(); err != nil {
		return err
	}
	f.indexed[id] = title + " " + string(content)
	return nil
}

func (f *fakeTextIndex) Remove(_ context.Context, id domain.ValidatedDocumentID) error {
	if err := f.takeFailure(); err != nil {
		return err
	}
	if _, ok := f.indexed[id]; !ok {
		return fmt.Errorf("%w: document %s", domain.ErrNotFound, id)
	}
	delete(f.indexed, id)
	return nil
}

func (f *fakeTextIndex) Search(_ context.Context, _ string, _ int) ([]driven.SearchHit, error) {
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	return nil, nil
}

func (f *fakeTextIndex) Flush(context.Context) error { return nil }
func (f *fakeTextIndex) Close() error                { return nil }
