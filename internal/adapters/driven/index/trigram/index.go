// Package trigram provides the full-text index: an inverted map from
// 3-rune substrings to document IDs, with a reverse map from document
// to trigram frequencies so postings can be removed without rescanning.
//
// Search filters candidates by a minimum trigram-match threshold, then
// ranks survivors by coverage, match frequency, and a logarithmic
// document-length factor.
package trigram

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	natomic "github.com/natefinch/atomic"

	"github.com/custodia-labs/kotadb/internal/core/domain"
	"github.com/custodia-labs/kotadb/internal/core/ports/driven"
	"github.com/custodia-labs/kotadb/internal/logger"
)

const snapFileName = "trigrams.snap"

// docPostings is the reverse-map entry for one document.
type docPostings struct {
	freq      map[string]int
	wordCount int
}

// Index is a durable trigram full-text index. It implements
// driven.TextIndex.
type Index struct {
	mu      sync.RWMutex
	forward map[string]map[domain.ValidatedDocumentID]struct{}
	docs    map[domain.ValidatedDocumentID]docPostings
	snap    string
	closed  bool
}

// Open loads the index snapshot under dir, creating the directory if
// absent. The forward map is rebuilt from the persisted reverse map.
func Open(dir string) (*Index, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: create index dir: %v", domain.ErrTransient, err)
	}
	idx := &Index{
		forward: make(map[string]map[domain.ValidatedDocumentID]struct{}),
		docs:    make(map[domain.ValidatedDocumentID]docPostings),
		snap:    filepath.Join(dir, snapFileName),
	}
	if err := idx.load(); err != nil {
		return nil, err
	}
	return idx, nil
}

type snapDoc struct {
	ID        string
	Freq      map[string]int
	WordCount int
}

func (i *Index) load() error {
	data, err := os.ReadFile(i.snap)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: read trigram snapshot: %v", domain.ErrTransient, err)
	}

	var entries []snapDoc
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&entries); err != nil {
		return fmt.Errorf("%w: decode trigram snapshot: %v", domain.ErrCorrupted, err)
	}
	for _, e := range entries {
		id, err := domain.ParseDocumentID(e.ID)
		if err != nil {
			return fmt.Errorf("%w: trigram snapshot id %q: %v", domain.ErrCorrupted, e.ID, err)
		}
		i.docs[id] = docPostings{freq: e.Freq, wordCount: e.WordCount}
		for tri := range e.Freq {
			i.addPosting(tri, id)
		}
	}
	logger.Debug("trigram index: loaded %d documents", len(entries))
	return nil
}

func (i *Index) addPosting(tri string, id domain.ValidatedDocumentID) {
	set, ok := i.forward[tri]
	if !ok {
		set = make(map[domain.ValidatedDocumentID]struct{})
		i.forward[tri] = set
	}
	set[id] = struct{}{}
}

func (i *Index) dropPostings(id domain.ValidatedDocumentID) {
	prior, ok := i.docs[id]
	if !ok {
		return
	}
	for tri := range prior.freq {
		set := i.forward[tri]
		delete(set, id)
		if len(set) == 0 {
			delete(i.forward, tri)
		}
	}
	delete(i.docs, id)
}

// Index records postings for a document's title and content. Existing
// postings for the ID are replaced, so re-indexing is idempotent.
func (i *Index) Index(ctx context.Context, id domain.ValidatedDocumentID, title string, content []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	text := searchableText(title, content)
	trigrams := extractTrigrams(text)
	freq := make(map[string]int, len(trigrams))
	for _, tri := range trigrams {
		freq[tri]++
	}
	wordCount := len(strings.Fields(text))

	i.mu.Lock()
	defer i.mu.Unlock()
	i.dropPostings(id)
	i.docs[id] = docPostings{freq: freq, wordCount: wordCount}
	for tri := range freq {
		i.addPosting(tri, id)
	}
	return nil
}

// Remove deletes all postings for the ID.
func (i *Index) Remove(ctx context.Context, id domain.ValidatedDocumentID) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.docs[id]; !ok {
		return fmt.Errorf("%w: document %s not indexed", domain.ErrNotFound, id)
	}
	i.dropPostings(id)
	return nil
}

// Search returns up to limit documents ranked by relevance. Candidates
// must match a minimum share of the query's trigrams; short queries
// require every trigram so random single-trigram overlaps never
// surface.
func (i *Index) Search(ctx context.Context, text string, limit int) ([]driven.SearchHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	if limit <= 0 {
		limit = domain.DefaultQueryLimit
	}
	query := extractTrigrams(text)
	if len(query) == 0 {
		return nil, nil
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	candidates := make(map[domain.ValidatedDocumentID]int)
	for _, tri := range query {
		for id := range i.forward[tri] {
			candidates[id]++
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	threshold := matchThreshold(len(query))
	hits := make([]driven.SearchHit, 0, len(candidates))
	for id, matched := range candidates {
		if matched < threshold {
			continue
		}
		doc := i.docs[id]
		hits = append(hits, driven.SearchHit{
			ID:    id,
			Score: relevanceScore(query, doc.freq, doc.wordCount),
		})
	}

	sort.Slice(hits, func(a, b int) bool {
		if hits[a].Score != hits[b].Score {
			return hits[a].Score > hits[b].Score
		}
		return hits[a].ID.String() < hits[b].ID.String()
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// matchThreshold is the minimum number of query trigram occurrences a
// candidate must match. Very short queries require all of them; longer
// queries relax the share to tolerate typos.
func matchThreshold(queryLen int) int {
	switch {
	case queryLen <= 3:
		return queryLen
	case queryLen <= 6:
		return max(queryLen*8/10, queryLen-1)
	default:
		return max(3, queryLen*6/10)
	}
}

// relevanceScore combines trigram coverage, raw match frequency, and a
// logarithmic length factor that slightly prefers focused documents.
func relevanceScore(query []string, freq map[string]int, wordCount int) float64 {
	if len(query) == 0 || len(freq) == 0 {
		return 0
	}
	var matched, totalFreq int
	for _, tri := range query {
		if f, ok := freq[tri]; ok {
			matched++
			totalFreq += f
		}
	}
	if matched == 0 {
		return 0
	}
	coverage := float64(matched) / float64(len(query))
	lengthFactor := 1.0
	if wordCount > 0 {
		lengthFactor = 1.0 / (1.0 + math.Log(float64(wordCount)/100.0))
	}
	return coverage*10.0 + float64(totalFreq) + lengthFactor*5.0
}

// Len reports the number of indexed documents.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.docs)
}

// Flush writes the reverse map atomically. The forward map is derived
// state and is rebuilt on load.
func (i *Index) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.flushLocked()
}

func (i *Index) flushLocked() error {
	entries := make([]snapDoc, 0, len(i.docs))
	for id, doc := range i.docs {
		entries = append(entries, snapDoc{ID: id.String(), Freq: doc.freq, WordCount: doc.wordCount})
	}
	sort.Slice(entries, func(a, b int) bool { return entries[a].ID < entries[b].ID })

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entries); err != nil {
		return fmt.Errorf("%w: encode trigram snapshot: %v", domain.ErrTransient, err)
	}
	if err := natomic.WriteFile(i.snap, &buf); err != nil {
		return fmt.Errorf("%w: write trigram snapshot: %v", domain.ErrTransient, err)
	}
	return nil
}

// Close flushes the snapshot.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil
	}
	i.closed = true
	return i.flushLocked()
}
