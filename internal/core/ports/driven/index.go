package driven

import (
	"context"
	"iter"

	"github.com/custodia-labs/kotadb/internal/core/domain"
)

// PathIndex maps validated paths to document IDs.
// Backed by a persisted B+-tree for ordered prefix iteration.
type PathIndex interface {
	// Insert adds a path -> ID mapping.
	// Returns domain.ErrDuplicateKey if the path is already present.
	Insert(ctx context.Context, path domain.ValidatedPath, id domain.ValidatedDocumentID) error

	// Remove deletes a path mapping.
	// Returns domain.ErrNotFound if the path is absent.
	Remove(ctx context.Context, path domain.ValidatedPath) error

	// Lookup resolves an exact path. Returns (zero, false) when absent.
	Lookup(ctx context.Context, path domain.ValidatedPath) (domain.ValidatedDocumentID, bool)

	// Range iterates entries under a prefix in lexicographic path order.
	// The sequence is finite and restartable: ranging over it again
	// re-reads from a consistent snapshot of the tree.
	Range(ctx context.Context, prefix string) iter.Seq2[domain.ValidatedPath, domain.ValidatedDocumentID]

	// Flush persists the index so a reload observes the same mappings.
	Flush(ctx context.Context) error

	// Close flushes and releases resources.
	Close() error
}

// SearchHit is a ranked full-text match.
type SearchHit struct {
	// ID is the matched document.
	ID domain.ValidatedDocumentID

	// Score is the trigram similarity score. Higher is more relevant.
	Score float64
}

// TextIndex provides trigram-based full-text search.
// It keeps a forward map (trigram -> documents) and a reverse map
// (document -> trigrams) so removal never rescans all postings.
type TextIndex interface {
	// Index records trigram postings for a document's searchable text.
	// Prior postings for the ID are removed first, so re-indexing the
	// same content is idempotent.
	Index(ctx context.Context, id domain.ValidatedDocumentID, title string, content []byte) error

	// Remove deletes all postings for the ID via the reverse map.
	// Returns domain.ErrNotFound if the ID was never indexed.
	Remove(ctx context.Context, id domain.ValidatedDocumentID) error

	// Search returns up to limit hits ordered by descending score,
	// ties broken by ascending document ID for determinism.
	Search(ctx context.Context, text string, limit int) ([]SearchHit, error)

	// Flush persists the posting maps.
	Flush(ctx context.Context) error

	// Close flushes and releases resources.
	Close() error
}
