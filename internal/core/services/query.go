package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/kotadb/internal/core/domain"
	"github.com/custodia-labs/kotadb/internal/core/ports/driven"
	"github.com/custodia-labs/kotadb/internal/core/ports/driving"
	"github.com/custodia-labs/kotadb/internal/logger"
)

// Ensure QueryService implements the interface.
var _ driving.QueryService = (*QueryService)(nil)

// QueryService routes queries between the path index and the full-text
// index and hydrates matches from storage.
type QueryService struct {
	store driven.DocumentStore
	paths driven.PathIndex
	texts driven.TextIndex
}

// NewQueryService creates a new query service.
func NewQueryService(store driven.DocumentStore, paths driven.PathIndex, texts driven.TextIndex) *QueryService {
	return &QueryService{store: store, paths: paths, texts: texts}
}

// Search dispatches the query and returns hydrated results. IDs whose
// document vanished between index lookup and fetch are dropped.
func (s *QueryService) Search(ctx context.Context, query domain.Query) ([]domain.SearchResult, error) {
	if query.Text == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidQuery)
	}

	if query.IsPathQuery() {
		logger.Debug("query %q routed to path index", query.Text)
		return s.searchPaths(ctx, query)
	}
	logger.Debug("query %q routed to text index", query.Text)
	return s.searchText(ctx, query)
}

func (s *QueryService) searchPaths(ctx context.Context, query domain.Query) ([]domain.SearchResult, error) {
	pattern := query.Text

	if !strings.ContainsRune(pattern, '*') {
		path, err := domain.NewValidatedPath(pattern)
		if err != nil {
			return nil, err
		}
		id, ok := s.paths.Lookup(ctx, path)
		if !ok {
			return []domain.SearchResult{}, nil
		}
		return s.hydrate(ctx, []scoredID{{id: id, score: 1.0}}, query)
	}

	prefix := domain.PatternPrefix(pattern)
	// A tag filter prunes results after hydration, so the scan can only
	// stop early when no tags are requested.
	capped := len(query.Tags) == 0
	var matched []scoredID
	for path, id := range s.paths.Range(ctx, prefix) {
		if !domain.MatchesPattern(path.String(), pattern) {
			continue
		}
		matched = append(matched, scoredID{id: id, score: 1.0})
		if capped && len(matched) >= query.Limit {
			break
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	return s.hydrate(ctx, matched, query)
}

func (s *QueryService) searchText(ctx context.Context, query domain.Query) ([]domain.SearchResult, error) {
	hits, err := s.texts.Search(ctx, query.Text, query.Limit)
	if err != nil {
		return nil, err
	}
	scored := make([]scoredID, 0, len(hits))
	for _, hit := range hits {
		scored = append(scored, scoredID{id: hit.ID, score: hit.Score})
	}
	return s.hydrate(ctx, scored, query)
}

type scoredID struct {
	id    domain.ValidatedDocumentID
	score float64
}

// hydrate fetches each matched document, drops IDs that no longer
// resolve, and applies the query's tag filter and limit.
func (s *QueryService) hydrate(ctx context.Context, matched []scoredID, query domain.Query) ([]domain.SearchResult, error) {
	results := make([]domain.SearchResult, 0, len(matched))
	for _, m := range matched {
		doc, err := s.store.Get(ctx, m.id)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			logger.Debug("dropping vanished document %s from results", m.id)
			continue
		}
		if !hasAllTags(doc, query.Tags) {
			continue
		}
		results = append(results, domain.SearchResult{Document: *doc, Score: m.score})
		if len(results) >= query.Limit {
			break
		}
	}
	return results, nil
}

func hasAllTags(doc *domain.Document, tags []domain.ValidatedTag) bool {
	for _, want := range tags {
		found := false
		for _, have := range doc.Tags {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
