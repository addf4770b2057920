package file

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/custodia-labs/kotadb/internal/core/domain"
)

// dirLock is an advisory flock on the store's LOCK file. Exactly one engine
// instance may own a data directory; a second open fails immediately rather
// than racing on the WAL.
type dirLock struct {
	file *os.File
}

// acquireDirLock takes a non-blocking exclusive lock on dir/LOCK.
// A held lock surfaces as domain.ErrStorageInUse.
func acquireDirLock(dir string) (*dirLock, error) {
	lockPath := filepath.Join(dir, "LOCK")

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s", domain.ErrStorageInUse, dir)
	}

	// PID is informational only; flock is the source of truth.
	_ = f.Truncate(0)
	_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())), 0)

	return &dirLock{file: f}, nil
}

// release drops the lock. Safe to call on a nil receiver.
func (l *dirLock) release() {
	if l == nil || l.file == nil {
		return
	}
	_ = syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	_ = l.file.Close()
	l.file = nil
}
