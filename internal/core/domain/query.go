package domain

import (
	"fmt"
	"strings"
)

// Query limits.
const (
	// DefaultQueryLimit is used when a caller does not specify a limit.
	DefaultQueryLimit = 50

	// MaxQueryLimit caps the number of results a single query may request.
	MaxQueryLimit = 1000
)

// Query is a validated search request. The text is either a path pattern
// (contains a wildcard or starts with "/") or free text for full-text search.
type Query struct {
	// Text is the raw query string, trimmed.
	Text string

	// Limit is the maximum number of results, already clamped to
	// [1, MaxQueryLimit].
	Limit int

	// Tags optionally restricts results to documents carrying all of them.
	Tags []ValidatedTag
}

// NewQuery validates a query string and limit.
// An empty or whitespace-only query wraps ErrInvalidQuery. A non-positive
// limit becomes DefaultQueryLimit; limits above MaxQueryLimit are clamped.
func NewQuery(text string, limit int) (Query, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Query{}, fmt.Errorf("%w: empty query", ErrInvalidQuery)
	}
	if strings.ContainsRune(trimmed, 0) {
		return Query{}, fmt.Errorf("%w: query contains null byte", ErrInvalidQuery)
	}
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	if limit > MaxQueryLimit {
		limit = MaxQueryLimit
	}
	return Query{Text: trimmed, Limit: limit}, nil
}

// IsPathQuery reports whether the query targets the primary index rather
// than full-text search: it contains a wildcard or looks like a path.
func (q Query) IsPathQuery() bool {
	return strings.ContainsRune(q.Text, '*') || strings.HasPrefix(q.Text, "/")
}

// SearchResult pairs a matched document with its relevance score.
type SearchResult struct {
	// Document is the matched document.
	Document Document

	// Score is the relevance score. Path matches score 1.0; trigram
	// matches carry the index's similarity score.
	Score float64
}
