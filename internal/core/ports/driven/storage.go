package driven

import (
	"context"

	"github.com/custodia-labs/kotadb/internal/core/domain"
)

// DocumentStore persists documents durably.
// The file adapter backs this with checksummed pages and a write-ahead log;
// an operation returns only after its WAL record is on stable storage.
type DocumentStore interface {
	// Insert persists a new document.
	// Returns domain.ErrDuplicatePath if a live document already uses the path.
	Insert(ctx context.Context, doc *domain.Document) error

	// Get retrieves a document by ID.
	// Returns (nil, nil) when the document does not exist; absence is not
	// an error on reads. Never returns a partially written document.
	Get(ctx context.Context, id domain.ValidatedDocumentID) (*domain.Document, error)

	// Update replaces a document's mutable fields and bumps UpdatedAt.
	// Returns domain.ErrNotFound if the ID is unknown, and the updated
	// document on success.
	Update(ctx context.Context, doc *domain.Document) (*domain.Document, error)

	// Delete tombstones a document.
	// Returns domain.ErrNotFound if the ID is unknown. The ID is never reused.
	Delete(ctx context.Context, id domain.ValidatedDocumentID) error

	// ListAll returns every live document. Used for index rebuilds;
	// callers batch the result themselves.
	ListAll(ctx context.Context) ([]domain.Document, error)

	// Flush forces buffered pages and the WAL to stable storage.
	// Bulk ingestion must call this before relying on subsequent reads.
	Flush(ctx context.Context) error

	// Close flushes and releases the data directory lock.
	Close() error
}
