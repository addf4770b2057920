package driving

import (
	"context"

	"github.com/custodia-labs/kotadb/internal/core/domain"
)

// QueryService routes a query to the right index and resolves matches
// into documents.
type QueryService interface {
	// Search dispatches the query: path-shaped text (wildcard or
	// leading "/") goes to the path index, anything else to full-text
	// search. Results are limited to query.Limit and ordered by
	// descending score.
	Search(ctx context.Context, query domain.Query) ([]domain.SearchResult, error)
}
