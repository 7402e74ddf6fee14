// Package lock provides mutual exclusion around compute-on-miss.
//
// entrycache itself gives no cross-process guarantee for concurrent writers; when two
// callers miss the same identifier both may compute. A Locker set on the Cache serializes
// those computes: Local within one process, Redis across processes.
package lock

import (
	"context"
	"errors"
)

// ErrNotAcquired is returned when a lock could not be acquired before ctx ended.
var ErrNotAcquired = errors.New("lock: not acquired")

// Release gives a held lock back. It is safe to call once.
type Release func(ctx context.Context) error

// Locker acquires a named lock, blocking until it is held or ctx is done.
type Locker interface {
	Lock(ctx context.Context, key string) (Release, error)
}
