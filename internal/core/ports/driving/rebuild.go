package driving

import "context"

// RebuildService repopulates both indexes from stored documents, used
// after index loss or a format change.
type RebuildService interface {
	// Rebuild reindexes every live document and flushes the indexes.
	// Returns the number of documents processed.
	Rebuild(ctx context.Context) (int, error)
}
