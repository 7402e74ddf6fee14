package entrycache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/unkn0wn-root/entrycache/backend"
	"github.com/unkn0wn-root/entrycache/backend/memory"
	"github.com/unkn0wn-root/entrycache/config"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock { return &fakeClock{t: time.Unix(1_700_000_000, 0)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recHooks struct {
	mu       sync.Mutex
	expired  []string // identifier:reason
	failures []string // op:identifier
	computes int
}

func (h *recHooks) EntryExpired(id, reason string) {
	h.mu.Lock()
	h.expired = append(h.expired, id+":"+reason)
	h.mu.Unlock()
}

func (h *recHooks) BackendFailure(op, id string, _ error) {
	h.mu.Lock()
	h.failures = append(h.failures, op+":"+id)
	h.mu.Unlock()
}

func (h *recHooks) ComputeOnMiss(string) {
	h.mu.Lock()
	h.computes++
	h.mu.Unlock()
}

// failingBackend delegates to a memory backend unless the op has an error set.
type failingBackend struct {
	*memory.Memory
	read, write, remove, removeAll error
}

func (f *failingBackend) Read(ctx context.Context, id string) (backend.Record, bool, error) {
	if f.read != nil {
		return backend.Record{}, false, f.read
	}
	return f.Memory.Read(ctx, id)
}

func (f *failingBackend) Write(ctx context.Context, rec backend.Record) error {
	if f.write != nil {
		return f.write
	}
	return f.Memory.Write(ctx, rec)
}

func (f *failingBackend) Remove(ctx context.Context, id string) error {
	if f.remove != nil {
		return f.remove
	}
	return f.Memory.Remove(ctx, id)
}

func (f *failingBackend) RemoveAll(ctx context.Context, section string) error {
	if f.removeAll != nil {
		return f.removeAll
	}
	return f.Memory.RemoveAll(ctx, section)
}

type testEnv struct {
	c     *Cache
	mem   *memory.Memory
	clock *fakeClock
	hooks *recHooks
}

func newTestEnv(t *testing.T, cfg config.Map, mutate func(*Options)) testEnv {
	t.Helper()
	mem := memory.New()
	reg := backend.NewRegistry()
	if err := reg.Register(DefaultStorage, mem); err != nil {
		t.Fatalf("Register: %v", err)
	}
	clock := newClock()
	hooks := &recHooks{}
	opts := Options{Backends: reg, Config: cfg, Hooks: hooks, Now: clock.Now}
	if mutate != nil {
		mutate(&opts)
	}
	c, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return testEnv{c: c, mem: mem, clock: clock, hooks: hooks}
}

func mustEntry(t *testing.T, c *Cache, id any, opts ...EntryOption) *Entry {
	t.Helper()
	e, err := c.Entry(id, opts...)
	if err != nil {
		t.Fatalf("Entry(%v): %v", id, err)
	}
	return e
}
