package wrappers

import (
	"context"
	"fmt"
	"iter"

	"github.com/custodia-labs/kotadb/internal/core/domain"
	"github.com/custodia-labs/kotadb/internal/core/ports/driven"
)

// ValidatingStore re-checks preconditions immediately before
// delegating, so a broken caller fails with a precise
// ErrContractViolation instead of an ambiguous inner failure.
type ValidatingStore struct {
	inner driven.DocumentStore
}

func NewValidatingStore(inner driven.DocumentStore) *ValidatingStore {
	return &ValidatingStore{inner: inner}
}

func checkDocument(op string, doc *domain.Document) error {
	if doc == nil {
		return fmt.Errorf("%w: %s: nil document", domain.ErrContractViolation, op)
	}
	if doc.ID.IsZero() {
		return fmt.Errorf("%w: %s: zero document id", domain.ErrContractViolation, op)
	}
	if doc.Path.IsZero() {
		return fmt.Errorf("%w: %s: empty path", domain.ErrContractViolation, op)
	}
	return nil
}

func checkID(op string, id domain.ValidatedDocumentID) error {
	if id.IsZero() {
		return fmt.Errorf("%w: %s: zero document id", domain.ErrContractViolation, op)
	}
	return nil
}

func (s *ValidatingStore) Insert(ctx context.Context, doc *domain.Document) error {
	if err := checkDocument("insert", doc); err != nil {
		return err
	}
	return s.inner.Insert(ctx, doc)
}

func (s *ValidatingStore) Get(ctx context.Context, id domain.ValidatedDocumentID) (*domain.Document, error) {
	if err := checkID("get", id); err != nil {
		return nil, err
	}
	return s.inner.Get(ctx, id)
}

func (s *ValidatingStore) Update(ctx context.Context, doc *domain.Document) (*domain.Document, error) {
	if err := checkDocument("update", doc); err != nil {
		return nil, err
	}
	return s.inner.Update(ctx, doc)
}

func (s *ValidatingStore) Delete(ctx context.Context, id domain.ValidatedDocumentID) error {
	if err := checkID("delete", id); err != nil {
		return err
	}
	return s.inner.Delete(ctx, id)
}

func (s *ValidatingStore) ListAll(ctx context.Context) ([]domain.Document, error) {
	return s.inner.ListAll(ctx)
}

func (s *ValidatingStore) Flush(ctx context.Context) error {
	return s.inner.Flush(ctx)
}

func (s *ValidatingStore) Close() error {
	return s.inner.Close()
}

// ValidatingPathIndex guards path index preconditions.
type ValidatingPathIndex struct {
	inner driven.PathIndex
}

func NewValidatingPathIndex(inner driven.PathIndex) *ValidatingPathIndex {
	return &ValidatingPathIndex{inner: inner}
}

func checkPath(op string, path domain.ValidatedPath) error {
	if path.IsZero() {
		return fmt.Errorf("%w: %s: empty path", domain.ErrContractViolation, op)
	}
	return nil
}

func (i *ValidatingPathIndex) Insert(ctx context.Context, path domain.ValidatedPath, id domain.ValidatedDocumentID) error {
	if err := checkPath("path_index.insert", path); err != nil {
		return err
	}
	if err := checkID("path_index.insert", id); err != nil {
		return err
	}
	return i.inner.Insert(ctx, path, id)
}

func (i *ValidatingPathIndex) Remove(ctx context.Context, path domain.ValidatedPath) error {
	if err := checkPath("path_index.remove", path); err != nil {
		return err
	}
	return i.inner.Remove(ctx, path)
}

func (i *ValidatingPathIndex) Lookup(ctx context.Context, path domain.ValidatedPath) (domain.ValidatedDocumentID, bool) {
	if path.IsZero() {
		return domain.ValidatedDocumentID{}, false
	}
	return i.inner.Lookup(ctx, path)
}

func (i *ValidatingPathIndex) Range(ctx context.Context, prefix string) iter.Seq2[domain.ValidatedPath, domain.ValidatedDocumentID] {
	return i.inner.Range(ctx, prefix)
}

func (i *ValidatingPathIndex) Flush(ctx context.Context) error {
	return i.inner.Flush(ctx)
}

func (i *ValidatingPathIndex) Close() error {
	return i.inner.Close()
}

// ValidatingTextIndex guards text index preconditions.
type ValidatingTextIndex struct {
	inner driven.TextIndex
}

func NewValidatingTextIndex(inner driven.TextIndex) *ValidatingTextIndex {
	return &ValidatingTextIndex{inner: inner}
}

func (i *ValidatingTextIndex) Index(ctx context.Context, id domain.ValidatedDocumentID, title string, content []byte) error {
	if err := checkID("text_index.index", id); err != nil {
		return err
	}
	return i.inner.Index(ctx, id, title, content)
}

func (i *ValidatingTextIndex) Remove(ctx context.Context, id domain.ValidatedDocumentID) error {
	if err := checkID("text_index.remove", id); err != nil {
		return err
	}
	return i.inner.Remove(ctx, id)
}

func (i *ValidatingTextIndex) Search(ctx context.Context, text string, limit int) ([]driven.SearchHit, error) {
	if limit < 0 {
		return nil, fmt.Errorf("%w: text_index.search: negative limit %d", domain.ErrContractViolation, limit)
	}
	return i.inner.Search(ctx, text, limit)
}

func (i *ValidatingTextIndex) Flush(ctx context.Context) error {
	return i.inner.Flush(ctx)
}

func (i *ValidatingTextIndex) Close() error {
	return i.inner.Close()
}
