package ports

import "context"

// Unlock releases a held lock.
type Unlock func()

// Locker serializes operations on the same plugin name across processes.
// Acquire blocks until the lock frees or ctx ends; TryAcquire fails fast
// with entities.ErrOperationInProgress when the lock is held.
type Locker interface {
	Acquire(ctx context.Context, name string) (Unlock, error)
	TryAcquire(name string) (Unlock, error)
}
