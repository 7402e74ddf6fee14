package lock

import (
	"context"
	"fmt"

	"github.com/puzpuzpuz/xsync/v3"
)

// slot is a one-token semaphore. refs counts holders plus waiters and is only
// touched inside MapOf.Compute, so a slot is dropped once nobody references it.
type slot struct {
	ch   chan struct{}
	refs int
}

// Local is an in-process Locker with one slot per contended key.
type Local struct {
	slots *xsync.MapOf[string, *slot]
}

var _ Locker = (*Local)(nil)

func NewLocal() *Local {
	return &Local{slots: xsync.NewMapOf[string, *slot]()}
}

func (l *Local) Lock(ctx context.Context, key string) (Release, error) {
	s, _ := l.slots.Compute(key, func(s *slot, loaded bool) (*slot, bool) {
		if !loaded {
			s = &slot{ch: make(chan struct{}, 1)}
		}
		s.refs++
		return s, false
	})
	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(key)
		return nil, fmt.Errorf("%w: %q: %v", ErrNotAcquired, key, ctx.Err())
	}
	var done bool
	return func(context.Context) error {
		if done {
			return nil
		}
		done = true
		<-s.ch
		l.unref(key)
		return nil
	}, nil
}

func (l *Local) unref(key string) {
	l.slots.Compute(key, func(s *slot, loaded bool) (*slot, bool) {
		if !loaded {
			return nil, true
		}
		s.refs--
		return s, s.refs == 0
	})
}
