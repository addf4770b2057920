// Package memory provides in-memory implementations of the driven ports.
// Used by tests and by wrapper benchmarks; carries no durability.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/custodia-labs/kotadb/internal/core/domain"
	"github.com/custodia-labs/kotadb/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is an in-memory implementation of driven.DocumentStore.
// It mirrors the file adapter's semantics (path uniqueness, timestamp
// bumping) without touching disk.
type DocumentStore struct {
	mu    sync.RWMutex
	docs  map[uuid.UUID]domain.Document
	paths map[string]uuid.UUID

	// FailNext injects one transient failure per queued error; used to
	// exercise the retry wrapper.
	failMu   sync.Mutex
	failNext []error
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		docs:  make(map[uuid.UUID]domain.Document),
		paths: make(map[string]uuid.UUID),
	}
}

// QueueFailure makes the next operation return err once.
func (s *DocumentStore) QueueFailure(err error) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	s.failNext = append(s.failNext, err)
}

func (s *DocumentStore) takeFailure() error {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	if len(s.failNext) == 0 {
		return nil
	}
	err := s.failNext[0]
	s.failNext = s.failNext[1:]
	return err
}

// Insert stores a new document.
func (s *DocumentStore) Insert(_ context.Context, doc *domain.Document) error {
	if err := s.takeFailure(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := doc.ID.UUID()
	if _, exists := s.docs[id]; exists {
		return fmt.Errorf("%w: document %s", domain.ErrDuplicateKey, doc.ID)
	}
	if _, taken := s.paths[doc.Path.String()]; taken {
		return fmt.Errorf("%w: %s", domain.ErrDuplicatePath, doc.Path)
	}

	s.docs[id] = doc.Clone()
	s.paths[doc.Path.String()] = id
	return nil
}

// Get retrieves a document by ID. Absence is (nil, nil).
func (s *DocumentStore) Get(_ context.Context, id domain.ValidatedDocumentID) (*domain.Document, error) {
	if err := s.takeFailure(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id.UUID()]
	if !ok {
		return nil, nil
	}
	out := doc.Clone()
	return &out, nil
}

// Update replaces a document, preserving CreatedAt and bumping UpdatedAt.
func (s *DocumentStore) Update(_ context.Context, doc *domain.Document) (*domain.Document, error) {
	if err := s.takeFailure(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := doc.ID.UUID()
	stored, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: document %s", domain.ErrNotFound, doc.ID)
	}

	newPath := doc.Path.String()
	if newPath != stored.Path.String() {
		if owner, taken := s.paths[newPath]; taken && owner != id {
			return nil, fmt.Errorf("%w: %s", domain.ErrDuplicatePath, newPath)
		}
		delete(s.paths, stored.Path.String())
		s.paths[newPath] = id
	}

	updated := doc.Clone()
	updated.CreatedAt = stored.CreatedAt

	now := domain.TimestampNow()
	if !stored.CreatedAt.Before(now) {
		bumped, err := domain.NewValidatedTimestamp(stored.CreatedAt.Unix() + 1)
		if err != nil {
			return nil, err
		}
		now = bumped
	}
	updated.UpdatedAt = now

	size, err := domain.NewNonZeroSize(int64(len(updated.Content)))
	if err != nil {
		return nil, err
	}
	updated.Size = size

	s.docs[id] = updated
	out := updated.Clone()
	return &out, nil
}

// Delete removes a document.
func (s *DocumentStore) Delete(_ context.Context, id domain.ValidatedDocumentID) error {
	if err := s.takeFailure(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id.UUID()]
	if !ok {
		return fmt.Errorf("%w: document %s", domain.ErrNotFound, id)
	}
	delete(s.paths, doc.Path.String())
	delete(s.docs, id.UUID())
	return nil
}

// ListAll returns every stored document.
func (s *DocumentStore) ListAll(_ context.Context) ([]domain.Document, error) {
	if err := s.takeFailure(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		out = append(out, doc.Clone())
	}
	return out, nil
}

// Flush is a no-op for the in-memory store.
func (s *DocumentStore) Flush(_ context.Context) error {
	return s.takeFailure()
}

// Close is a no-op for the in-memory store.
func (s *DocumentStore) Close() error {
	return nil
}
