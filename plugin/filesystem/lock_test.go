package filesystem_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plugman-dev/plugman/plugin/entities"
	"github.com/plugman-dev/plugman/plugin/filesystem"
)

func Test_LockDir_TryAcquire(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), ".locks")
	locks := filesystem.NewLockDir(dir)

	unlock, err := locks.TryAcquire("widget")
	require.NoError(t, err)

	_, err = locks.TryAcquire("widget")
	assert.ErrorIs(t, err, entities.ErrOperationInProgress)

	// A different plugin name is independent.
	other, err := locks.TryAcquire("gadget")
	require.NoError(t, err)
	other()

	unlock()
	unlock2, err := locks.TryAcquire("widget")
	require.NoError(t, err)
	unlock2()
}

func Test_LockDir_LockFileContainsPID(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), ".locks")
	locks := filesystem.NewLockDir(dir)

	unlock, err := locks.TryAcquire("widget")
	require.NoError(t, err)
	defer unlock()

	data, err := os.ReadFile(filepath.Join(dir, "widget.lock"))
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func Test_LockDir_Acquire_WaitsForRelease(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), ".locks")
	locks := filesystem.NewLockDir(dir)

	unlock, err := locks.TryAcquire("widget")
	require.NoError(t, err)

	released := make(chan struct{})
	go func() {
		time.Sleep(150 * time.Millisecond)
		unlock()
		close(released)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got, err := locks.Acquire(ctx, "widget")
	require.NoError(t, err)
	got()

	<-released
}

func Test_LockDir_Acquire_RespectsContext(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), ".locks")
	locks := filesystem.NewLockDir(dir)

	unlock, err := locks.TryAcquire("widget")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = locks.Acquire(ctx, "widget")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
