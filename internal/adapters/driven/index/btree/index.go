// Package btree provides the path index: a copy-on-write B+-tree keyed
// by validated path, persisted as an atomic snapshot plus a mutation
// log.
//
// Readers (Lookup, Range) load the current root pointer and walk an
// immutable tree, so they never block writers and never observe a
// half-applied mutation. Writers serialize on a mutex, log the mutation
// durably, then publish a fresh root.
package btree

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	natomic "github.com/natefinch/atomic"

	"github.com/custodia-labs/kotadb/internal/core/domain"
	"github.com/custodia-labs/kotadb/internal/logger"
)

const (
	snapFileName = "paths.snap"
	logFileName  = "paths.wal"
)

// Index is a durable path -> document ID index. It implements
// driven.PathIndex.
type Index struct {
	mu     sync.Mutex // serializes mutations and flushes
	root   atomic.Pointer[tree]
	log    *indexLog
	snap   string
	closed bool
}

type snapEntry struct {
	Path string `json:"path"`
	ID   string `json:"id"`
}

type snapshot struct {
	Entries []snapEntry `json:"entries"`
}

// Open loads the index under dir, creating it if absent. State is the
// last snapshot plus any logged mutations that survived a crash.
func Open(dir string) (*Index, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: create index dir: %v", domain.ErrTransient, err)
	}

	t := newTree()
	snapPath := filepath.Join(dir, snapFileName)
	if data, err := os.ReadFile(snapPath); err == nil {
		t, err = treeFromSnapshot(data)
		if err != nil {
			return nil, err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: read index snapshot: %v", domain.ErrTransient, err)
	}

	log, err := openIndexLog(filepath.Join(dir, logFileName))
	if err != nil {
		return nil, err
	}
	entries, err := log.readAll()
	if err != nil {
		log.close()
		return nil, err
	}
	for _, e := range entries {
		t = replayEntry(t, e)
	}
	if len(entries) > 0 {
		logger.Debug("path index: replayed %d logged mutations", len(entries))
	}

	idx := &Index{log: log, snap: snapPath}
	idx.root.Store(t)
	return idx, nil
}

func treeFromSnapshot(data []byte) (*tree, error) {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: decode index snapshot: %v", domain.ErrCorrupted, err)
	}
	t := newTree()
	for _, e := range snap.Entries {
		path, err := domain.NewValidatedPath(e.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: snapshot path %q: %v", domain.ErrCorrupted, e.Path, err)
		}
		id, err := domain.ParseDocumentID(e.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: snapshot id %q: %v", domain.ErrCorrupted, e.ID, err)
		}
		next, err := t.insert(path, id)
		if err != nil {
			return nil, fmt.Errorf("%w: snapshot entry %q: %v", domain.ErrCorrupted, e.Path, err)
		}
		t = next
	}
	return t, nil
}

// replayEntry applies a logged mutation, tolerating entries the
// snapshot already covers. A crash between snapshot write and log
// truncation leaves such duplicates behind.
func replayEntry(t *tree, e logEntry) *tree {
	switch e.op {
	case logInsert:
		next, err := t.insert(e.path, e.id)
		if err != nil {
			return t
		}
		return next
	case logRemove:
		next, _ := t.delete(e.path)
		return next
	}
	return t
}

// Insert adds a path mapping. The mutation is logged and synced before
// it becomes visible to readers.
func (i *Index) Insert(ctx context.Context, path domain.ValidatedPath, id domain.ValidatedDocumentID) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	i.mu.Lock()
	defer i.mu.Unlock()

	next, err := i.root.Load().insert(path, id)
	if err != nil {
		return fmt.Errorf("%w: path %q", err, path)
	}
	if err := i.log.append(logEntry{op: logInsert, id: id, path: path}); err != nil {
		return err
	}
	i.root.Store(next)
	return nil
}

// Remove deletes a path mapping.
func (i *Index) Remove(ctx context.Context, path domain.ValidatedPath) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	i.mu.Lock()
	defer i.mu.Unlock()

	next, found := i.root.Load().delete(path)
	if !found {
		return fmt.Errorf("%w: path %q", domain.ErrNotFound, path)
	}
	if err := i.log.append(logEntry{op: logRemove, path: path}); err != nil {
		return err
	}
	i.root.Store(next)
	return nil
}

// Lookup resolves an exact path against the current snapshot.
func (i *Index) Lookup(_ context.Context, path domain.ValidatedPath) (domain.ValidatedDocumentID, bool) {
	return i.root.Load().lookup(path)
}

// Range iterates entries under prefix in ascending path order. Each
// iteration of the returned sequence walks its own consistent snapshot.
func (i *Index) Range(ctx context.Context, prefix string) iter.Seq2[domain.ValidatedPath, domain.ValidatedDocumentID] {
	return func(yield func(domain.ValidatedPath, domain.ValidatedDocumentID) bool) {
		snap := i.root.Load()
		snap.ascend(prefix, func(path domain.ValidatedPath, id domain.ValidatedDocumentID) bool {
			if ctx.Err() != nil {
				return false
			}
			if !path.HasPrefix(prefix) {
				return false
			}
			return yield(path, id)
		})
	}
}

// Len reports the number of indexed paths.
func (i *Index) Len() int {
	return i.root.Load().size
}

// Flush writes a snapshot of the current tree and truncates the
// mutation log. The snapshot lands atomically, so a crash mid-flush
// leaves either the old snapshot with the full log or the new one.
func (i *Index) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.flushLocked()
}

func (i *Index) flushLocked() error {
	t := i.root.Load()
	snap := snapshot{Entries: make([]snapEntry, 0, t.size)}
	t.ascend("", func(path domain.ValidatedPath, id domain.ValidatedDocumentID) bool {
		snap.Entries = append(snap.Entries, snapEntry{Path: path.String(), ID: id.String()})
		return true
	})
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("%w: encode index snapshot: %v", domain.ErrTransient, err)
	}
	if err := natomic.WriteFile(i.snap, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: write index snapshot: %v", domain.ErrTransient, err)
	}
	return i.log.truncate()
}

// Close flushes and releases the log file.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil
	}
	i.closed = true
	if err := i.flushLocked(); err != nil {
		i.log.close()
		return err
	}
	return i.log.close()
}
