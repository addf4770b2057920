package file

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kotadb/internal/core/domain"
)

func TestDirLock_Exclusive(t *testing.T) {
	dir := t.TempDir()

	lock, err := acquireDirLock(dir)
	require.NoError(t, err)

	_, err = acquireDirLock(dir)
	assert.ErrorIs(t, err, domain.ErrStorageInUse)

	lock.release()

	// Released locks can be re-acquired.
	again, err := acquireDirLock(dir)
	require.NoError(t, err)
	again.release()
}

func TestDirLock_ReleaseIsIdempotent(t *testing.T) {
	dir := t.TempDir()

	lock, err := acquireDirLock(dir)
	require.NoError(t, err)

	lock.release()
	lock.release()

	var nilLock *dirLock
	nilLock.release()
}
