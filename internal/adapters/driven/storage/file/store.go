package file

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/natefinch/atomic"

	"github.com/custodia-labs/kotadb/internal/core/domain"
	"github.com/custodia-labs/kotadb/internal/core/ports/driven"
	"github.com/custodia-labs/kotadb/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.DocumentStore = (*Store)(nil)

const (
	pagesFileName    = "pages.db"
	walFileName      = "current.wal"
	catalogFileName  = "catalog.snap"
	stripeCount      = 64
	catalogVersion   = 1
	snapshotFileMode = 0o644
)

// recoveryState tracks startup progress: Recovering -> Replaying -> Ready.
type recoveryState int

const (
	stateRecovering recoveryState = iota
	stateReplaying
	stateReady
)

// docEntry is the in-memory catalog record for one live document.
type docEntry struct {
	Loc  location
	Seq  uint64
	Path string
}

// catalogSnapshot is the checkpointed catalog, written atomically at Flush.
type catalogSnapshot struct {
	Version int                `json:"version"`
	NextSeq uint64             `json:"next_seq"`
	Entries []catalogSnapEntry `json:"entries"`
}

type catalogSnapEntry struct {
	ID   string   `json:"id"`
	Path string   `json:"path"`
	Loc  location `json:"loc"`
	Seq  uint64   `json:"seq"`
}

// Store is the file-backed document store. See the package documentation
// for the durability protocol.
type Store struct {
	dir   string
	lock  *dirLock
	pages *pageFile
	wal   *wal

	// mu guards the catalog maps. Never held across an fsync.
	mu    sync.RWMutex
	docs  map[uuid.UUID]docEntry
	paths map[string]uuid.UUID

	// pageMu guards page allocation and writes.
	pageMu sync.Mutex

	// stripes serialise operations per document ID.
	stripes [stripeCount]sync.Mutex

	state recoveryState
}

// Open initialises the store rooted at dir, creating the directory structure
// on first use and replaying the WAL after a crash. A directory already
// owned by another instance fails with domain.ErrStorageInUse.
func Open(dir string) (*Store, error) {
	storageDir := filepath.Join(dir, "storage")
	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	lock, err := acquireDirLock(storageDir)
	if err != nil {
		return nil, err
	}

	s := &Store{
		dir:   storageDir,
		lock:  lock,
		docs:  make(map[uuid.UUID]docEntry),
		paths: make(map[string]uuid.UUID),
		state: stateRecovering,
	}

	snap, err := loadCatalogSnapshot(filepath.Join(storageDir, catalogFileName))
	if err != nil {
		lock.release()
		return nil, err
	}

	s.pages, err = openPageFile(filepath.Join(storageDir, pagesFileName))
	if err != nil {
		lock.release()
		return nil, err
	}

	s.wal, err = openWAL(filepath.Join(storageDir, walFileName), snap.NextSeq)
	if err != nil {
		_ = s.pages.close()
		lock.release()
		return nil, err
	}

	for _, e := range snap.Entries {
		id, err := uuid.Parse(e.ID)
		if err != nil {
			s.closeFiles()
			return nil, fmt.Errorf("%w: catalog entry id %q", domain.ErrCorrupted, e.ID)
		}
		s.docs[id] = docEntry{Loc: e.Loc, Seq: e.Seq, Path: e.Path}
		s.paths[e.Path] = id
	}

	if err := s.replayWAL(); err != nil {
		s.closeFiles()
		return nil, err
	}

	live := make([]location, 0, len(s.docs))
	for _, e := range s.docs {
		live = append(live, e.Loc)
	}
	s.pages.resetFree(live)

	s.state = stateReady
	logger.Info("storage: opened %s with %d live documents", dir, len(s.docs))
	return s, nil
}

// replayWAL re-applies committed records on top of the catalog snapshot.
// Uncommitted records are discarded whole.
func (s *Store) replayWAL() error {
	s.state = stateReplaying

	records, err := s.wal.readAll()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	committed := make(map[uint64]bool)
	for _, rec := range records {
		if rec.Op == opCommit {
			committed[rec.Seq] = true
		}
	}

	applied := 0
	for _, rec := range records {
		if rec.Op == opCommit {
			continue
		}
		if !committed[rec.Seq] {
			logger.Warn("storage: discarding uncommitted WAL record seq=%d op=%d", rec.Seq, rec.Op)
			continue
		}
		if err := replayRecord(s.docs, s.paths, rec, s.replayWrite); err != nil {
			return err
		}
		applied++
	}

	logger.Info("storage: replayed %d committed WAL records", applied)
	return nil
}

// replayWrite persists a replayed record to fresh pages.
func (s *Store) replayWrite(id uuid.UUID, seq uint64, payload []byte) (location, error) {
	s.pageMu.Lock()
	defer s.pageMu.Unlock()
	loc := s.pages.allocate(pagesNeeded(len(payload)))
	if err := s.pages.writeRecord(loc, id, seq, payload); err != nil {
		return location{}, err
	}
	return loc, nil
}

// replayRecord applies one committed WAL record to the catalog state.
// It is a pure function of (state, record) apart from the page write
// callback, so recovery can be tested with synthetic logs.
func replayRecord(docs map[uuid.UUID]docEntry, paths map[string]uuid.UUID,
	rec walRecord, write func(uuid.UUID, uint64, []byte) (location, error)) error {

	switch rec.Op {
	case opInsert, opUpdate:
		doc, err := decodeDocument(rec.Payload)
		if err != nil {
			return fmt.Errorf("replaying seq %d: %w", rec.Seq, err)
		}
		loc, err := write(rec.DocID, rec.Seq, rec.Payload)
		if err != nil {
			return fmt.Errorf("replaying seq %d: %w", rec.Seq, err)
		}
		if prev, ok := docs[rec.DocID]; ok {
			delete(paths, prev.Path)
		}
		docs[rec.DocID] = docEntry{Loc: loc, Seq: rec.Seq, Path: doc.Path.String()}
		paths[doc.Path.String()] = rec.DocID
		return nil

	case opDelete:
		if prev, ok := docs[rec.DocID]; ok {
			delete(paths, prev.Path)
			delete(docs, rec.DocID)
		}
		return nil

	default:
		return fmt.Errorf("%w: unknown WAL op %d at seq %d", domain.ErrCorrupted, rec.Op, rec.Seq)
	}
}

func (s *Store) stripe(id uuid.UUID) *sync.Mutex {
	return &s.stripes[int(id[0])%stripeCount]
}

// Insert persists a new document.
func (s *Store) Insert(ctx context.Context, doc *domain.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if doc == nil || doc.ID.IsZero() {
		return fmt.Errorf("%w: insert requires a valid document", domain.ErrContractViolation)
	}

	id := doc.ID.UUID()
	mu := s.stripe(id)
	mu.Lock()
	defer mu.Unlock()

	path := doc.Path.String()

	// Reserve the path before any I/O so concurrent inserts on different
	// IDs cannot both claim it.
	s.mu.Lock()
	if _, exists := s.docs[id]; exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: document %s", domain.ErrDuplicateKey, doc.ID)
	}
	if _, taken := s.paths[path]; taken {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrDuplicatePath, path)
	}
	s.paths[path] = id
	s.mu.Unlock()

	if err := s.writeDocument(opInsert, doc); err != nil {
		s.mu.Lock()
		delete(s.paths, path)
		s.mu.Unlock()
		return err
	}
	return nil
}

// writeDocument runs the WAL-then-pages protocol and installs the catalog
// entry. The caller holds the document's stripe lock.
func (s *Store) writeDocument(op uint8, doc *domain.Document) error {
	id := doc.ID.UUID()
	payload := encodeDocument(doc)

	seq, err := s.wal.appendOp(op, id, payload)
	if err != nil {
		return err
	}

	s.pageMu.Lock()
	loc := s.pages.allocate(pagesNeeded(len(payload)))
	err = s.pages.writeRecord(loc, id, seq, payload)
	s.pageMu.Unlock()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransient, err)
	}

	if err := s.wal.appendCommit(seq, id); err != nil {
		return err
	}

	s.mu.Lock()
	prev, hadPrev := s.docs[id]
	if hadPrev && prev.Path != doc.Path.String() {
		delete(s.paths, prev.Path)
	}
	s.docs[id] = docEntry{Loc: loc, Seq: seq, Path: doc.Path.String()}
	s.paths[doc.Path.String()] = id
	s.mu.Unlock()

	if hadPrev {
		s.pageMu.Lock()
		s.pages.release(prev.Loc)
		s.pageMu.Unlock()
	}
	return nil
}

// Get retrieves a document. Absence is (nil, nil), not an error.
func (s *Store) Get(ctx context.Context, id domain.ValidatedDocumentID) (*domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw := id.UUID()
	mu := s.stripe(raw)
	mu.Lock()
	defer mu.Unlock()

	s.mu.RLock()
	entry, ok := s.docs[raw]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	payload, err := s.pages.readRecord(entry.Loc, raw)
	if err != nil {
		return nil, err
	}
	return decodeDocument(payload)
}

// Update replaces a document's content, title, tags, and path, preserving
// CreatedAt and bumping UpdatedAt past it.
func (s *Store) Update(ctx context.Context, doc *domain.Document) (*domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if doc == nil || doc.ID.IsZero() {
		return nil, fmt.Errorf("%w: update requires a valid document", domain.ErrContractViolation)
	}

	raw := doc.ID.UUID()
	mu := s.stripe(raw)
	mu.Lock()
	defer mu.Unlock()

	s.mu.RLock()
	entry, ok := s.docs[raw]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: document %s", domain.ErrNotFound, doc.ID)
	}

	newPath := doc.Path.String()
	if newPath != entry.Path {
		s.mu.Lock()
		if owner, taken := s.paths[newPath]; taken && owner != raw {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", domain.ErrDuplicatePath, newPath)
		}
		s.paths[newPath] = raw
		s.mu.Unlock()
	}

	payload, err := s.pages.readRecord(entry.Loc, raw)
	if err != nil {
		return nil, err
	}
	stored, err := decodeDocument(payload)
	if err != nil {
		return nil, err
	}

	updated := doc.Clone()
	updated.CreatedAt = stored.CreatedAt

	// Unix-second resolution: an update in the same second as creation
	// still has to observe modified-after-created.
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

	if err := s.writeDocument(opUpdate, &updated); err != nil {
		if newPath != entry.Path {
			s.mu.Lock()
			if owner, ok := s.paths[newPath]; ok && owner == raw {
				delete(s.paths, newPath)
			}
			s.mu.Unlock()
		}
		return nil, err
	}
	return &updated, nil
}

// Delete tombstones a document and reclaims its pages.
func (s *Store) Delete(ctx context.Context, id domain.ValidatedDocumentID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	raw := id.UUID()
	mu := s.stripe(raw)
	mu.Lock()
	defer mu.Unlock()

	s.mu.RLock()
	entry, ok := s.docs[raw]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: document %s", domain.ErrNotFound, id)
	}

	seq, err := s.wal.appendOp(opDelete, raw, nil)
	if err != nil {
		return err
	}
	if err := s.wal.appendCommit(seq, raw); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.docs, raw)
	delete(s.paths, entry.Path)
	s.mu.Unlock()

	s.pageMu.Lock()
	s.pages.release(entry.Loc)
	s.pageMu.Unlock()
	return nil
}

// ListAll returns every live document.
func (s *Store) ListAll(ctx context.Context) ([]domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	ids := make([]domain.ValidatedDocumentID, 0, len(s.docs))
	for raw := range s.docs {
		id, err := domain.DocumentIDFromUUID(raw)
		if err != nil {
			s.mu.RUnlock()
			return nil, fmt.Errorf("%w: catalog holds nil id", domain.ErrCorrupted)
		}
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	docs := make([]domain.Document, 0, len(ids))
	for _, id := range ids {
		doc, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if doc != nil { // may have been deleted since the snapshot
			docs = append(docs, *doc)
		}
	}
	return docs, nil
}

// Flush checkpoints: pages are synced, the catalog snapshot is written
// atomically, and the WAL is truncated.
func (s *Store) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.pages.sync(); err != nil {
		return fmt.Errorf("%w: syncing pages: %v", domain.ErrTransient, err)
	}

	if err := s.writeCatalogSnapshot(); err != nil {
		return err
	}
	return s.wal.truncate()
}

func (s *Store) writeCatalogSnapshot() error {
	s.mu.RLock()
	snap := catalogSnapshot{Version: catalogVersion, NextSeq: s.wal.seq()}
	for raw, e := range s.docs {
		snap.Entries = append(snap.Entries, catalogSnapEntry{
			ID:   raw.String(),
			Path: e.Path,
			Loc:  e.Loc,
			Seq:  e.Seq,
		})
	}
	s.mu.RUnlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding catalog snapshot: %w", err)
	}
	if err := atomic.WriteFile(filepath.Join(s.dir, catalogFileName), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: writing catalog snapshot: %v", domain.ErrTransient, err)
	}
	return nil
}

func loadCatalogSnapshot(path string) (catalogSnapshot, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return catalogSnapshot{Version: catalogVersion}, nil
	}
	if err != nil {
		return catalogSnapshot{}, fmt.Errorf("reading catalog snapshot: %w", err)
	}

	var snap catalogSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return catalogSnapshot{}, fmt.Errorf("%w: catalog snapshot: %v", domain.ErrCorrupted, err)
	}
	return snap, nil
}

// Close flushes, releases files, and drops the directory lock.
func (s *Store) Close() error {
	flushErr := s.Flush(context.Background())
	s.closeFiles()
	return flushErr
}

func (s *Store) closeFiles() {
	if s.wal != nil {
		_ = s.wal.close()
	}
	if s.pages != nil {
		_ = s.pages.close()
	}
	s.lock.release()
}
