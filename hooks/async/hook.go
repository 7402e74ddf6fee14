// Package asynchook moves entrycache.Hooks calls off the hot path.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{ExpiredEvery: 10})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	cache, _ := entrycache.New(entrycache.Options{
//	    Backends: backends,
//	    Hooks:    hooks, // or `raw` if you don't want async
//	})
//
// Events are dropped, not queued, once the buffer is full.
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/entrycache"
)

type Hooks struct {
	inner   entrycache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	dropped atomic.Uint64
}

var _ entrycache.Hooks = (*Hooks)(nil)

func New(inner entrycache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events sent after Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

// Dropped returns how many events were discarded because the queue was full.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	defer func() {
		// send on closed channel after Close
		if recover() != nil {
			h.dropped.Add(1)
		}
	}()
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) EntryExpired(id, reason string) {
	h.try(func() { h.inner.EntryExpired(id, reason) })
}
func (h *Hooks) BackendFailure(op, id string, err error) {
	h.try(func() { h.inner.BackendFailure(op, id, err) })
}
func (h *Hooks) ComputeOnMiss(id string) { h.try(func() { h.inner.ComputeOnMiss(id) }) }
