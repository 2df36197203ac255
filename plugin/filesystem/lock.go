package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/plugman-dev/plugman/plugin/entities"
	"github.com/plugman-dev/plugman/plugin/ports"
)

// LockDir implements ports.Locker with advisory lock files.
// One file per plugin name under <root>/.locks, created with O_EXCL so
// exactly one process may hold a name at a time.
type LockDir struct {
	dir          string
	pollInterval time.Duration
}

// NewLockDir creates a lock directory manager.
func NewLockDir(dir string) *LockDir {
	return &LockDir{dir: dir, pollInterval: 100 * time.Millisecond}
}

// Acquire blocks until the per-name lock is free or ctx ends.
// Blocking is the recommended caller policy; use TryAcquire to fail fast.
func (l *LockDir) Acquire(ctx context.Context, name string) (ports.Unlock, error) {
	for {
		unlock, err := l.TryAcquire(name)
		if err == nil {
			return unlock, nil
		}
		if !os.IsExist(underlying(err)) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for lock on %q: %w", name, ctx.Err())
		case <-time.After(l.pollInterval):
		}
	}
}

// TryAcquire takes the per-name lock or fails immediately with
// entities.ErrOperationInProgress.
func (l *LockDir) TryAcquire(name string) (ports.Unlock, error) {
	if err := os.MkdirAll(l.dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	path := filepath.Join(l.dir, name+".lock")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, &lockHeldError{name: name, cause: err}
		}
		return nil, fmt.Errorf("creating lock file %q: %w", path, err)
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	_ = f.Close()

	return func() { _ = os.Remove(path) }, nil
}

// lockHeldError marks contention on a per-name lock.
type lockHeldError struct {
	name  string
	cause error
}

func (e *lockHeldError) Error() string {
	return fmt.Sprintf("operation already in progress for plugin %q", e.name)
}

func (e *lockHeldError) Is(target error) bool {
	return target == entities.ErrOperationInProgress
}

func (e *lockHeldError) Unwrap() error {
	return e.cause
}

func underlying(err error) error {
	if held, ok := err.(*lockHeldError); ok {
		return held.cause
	}
	return err
}
