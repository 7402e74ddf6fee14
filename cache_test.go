package entrycache

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/unkn0wn-root/entrycache/backend"
	"github.com/unkn0wn-root/entrycache/backend/memory"
	"github.com/unkn0wn-root/entrycache/config"
	"github.com/unkn0wn-root/entrycache/lock"
)

func TestNewRequiresBackends(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatalf("expected error without backends")
	}
	if _, err := New(Options{Backends: backend.NewRegistry()}); err == nil {
		t.Fatalf("expected error with an empty registry")
	}
}

func TestBackendSelection(t *testing.T) {
	ctx := context.Background()
	fast := memory.New()
	env := newTestEnv(t, config.Map{config.KeyStorage: "fast"}, func(o *Options) {
		if err := o.Backends.Register("fast", fast); err != nil {
			t.Fatal(err)
		}
	})

	if err := env.c.Set(ctx, "a", "via config"); err != nil {
		t.Fatal(err)
	}
	if err := env.c.Set(ctx, "b", "explicit", StoreIn(DefaultStorage)); err != nil {
		t.Fatal(err)
	}
	if fast.Len() != 1 || env.mem.Len() != 1 {
		t.Fatalf("unexpected placement: fast=%d file=%d", fast.Len(), env.mem.Len())
	}

	var got string
	if err := env.c.Get(ctx, "b", &got); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("b lives in %q only, got %v", DefaultStorage, err)
	}
	if err := env.c.Get(ctx, "b", &got, ReadFrom(DefaultStorage)); err != nil || got != "explicit" {
		t.Fatalf("ReadFrom: %q %v", got, err)
	}

	if err := env.c.Set(ctx, "c", "v", StoreIn("nope")); !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("expected ErrUnknownBackend, got %v", err)
	}
	if _, err := env.c.Entry("c", OnBackend("nope")); !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("expected ErrUnknownBackend from Entry, got %v", err)
	}
}

func TestDependenciesStayWithinBackend(t *testing.T) {
	ctx := context.Background()
	other := memory.New()
	env := newTestEnv(t, nil, func(o *Options) {
		if err := o.Backends.Register("other", other); err != nil {
			t.Fatal(err)
		}
	})
	if err := env.c.Set(ctx, "dep", "x", StoreIn("other")); err != nil {
		t.Fatal(err)
	}
	if err := env.c.Set(ctx, "k", "v", WithDependencies("dep")); err != nil {
		t.Fatal(err)
	}
	var got string
	if err := env.c.Get(ctx, "k", &got); !errors.Is(err, ErrCacheExpired) {
		t.Fatalf("a dependency held by another backend must not count, got %v", err)
	}
}

func TestDeleteAllSections(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil, nil)
	for _, id := range []string{"user", "user.1", "user.1.profile", "users.1", "post.1"} {
		if err := env.c.Set(ctx, id, id); err != nil {
			t.Fatal(err)
		}
	}

	if err := env.c.DeleteAll(ctx, "user", ""); err != nil {
		t.Fatalf("DeleteAll section: %v", err)
	}
	for id, want := range map[string]bool{"user": false, "user.1": false, "user.1.profile": false, "users.1": true, "post.1": true} {
		_, ok, _ := env.mem.Read(ctx, id)
		if ok != want {
			t.Fatalf("%s present=%v, want %v", id, ok, want)
		}
	}

	if err := env.c.DeleteAll(ctx, "", DefaultStorage); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	if env.mem.Len() != 0 {
		t.Fatalf("DeleteAll(\"\") must flush everything, %d left", env.mem.Len())
	}
	if err := env.c.DeleteAll(ctx, "", "nope"); !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("expected ErrUnknownBackend, got %v", err)
	}
}

func TestBackendFailures(t *testing.T) {
	ctx := context.Background()
	cause := errors.New("disk on fire")
	fb := &failingBackend{Memory: memory.New()}
	env := newTestEnv(t, nil, func(o *Options) {
		o.Backends = backend.NewRegistry()
		if err := o.Backends.Register(DefaultStorage, fb); err != nil {
			t.Fatal(err)
		}
	})

	fb.write = cause
	err := env.c.Set(ctx, "k", "v")
	var be *BackendError
	if !errors.As(err, &be) || be.Op != "write" || be.Backend != DefaultStorage || be.Identifier != "k" {
		t.Fatalf("unexpected write error %#v", err)
	}
	if !errors.Is(err, ErrBackendFailure) || !errors.Is(err, cause) {
		t.Fatalf("write error must match ErrBackendFailure and its cause: %v", err)
	}
	fb.write = nil

	fb.read = cause
	var got string
	if err := env.c.Get(ctx, "k", &got); !errors.Is(err, ErrBackendFailure) || IsRecoverable(err) {
		t.Fatalf("read failure must not look like a miss: %v", err)
	}
	computed := false
	err = env.c.Call(ctx, "k", func(context.Context) (any, error) { computed = true; return "x", nil }, &got)
	if !errors.Is(err, ErrBackendFailure) || computed {
		t.Fatalf("Call must not compute on backend failure: %v computed=%v", err, computed)
	}
	fb.read = nil

	fb.remove = cause
	if err := env.c.Delete(ctx, "k", ""); !errors.Is(err, cause) {
		t.Fatalf("remove failure must propagate: %v", err)
	}
	fb.remove = nil

	fb.removeAll = backend.ErrSectionUnsupported
	if err := env.c.DeleteAll(ctx, "user", ""); !errors.Is(err, backend.ErrSectionUnsupported) || !errors.Is(err, ErrBackendFailure) {
		t.Fatalf("unsupported section must surface: %v", err)
	}

	want := []string{"write:k", "read:k", "read:k", "remove:k", "remove_all:user"}
	if !reflect.DeepEqual(env.hooks.failures, want) {
		t.Fatalf("failure hooks = %v, want %v", env.hooks.failures, want)
	}
}

func TestCallComputesOncePerMiss(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil, nil)

	var calls atomic.Int32
	compute := func(context.Context) (string, error) {
		calls.Add(1)
		return "value", nil
	}
	for i := 0; i < 3; i++ {
		got, err := Fetch(ctx, env.c, "k", compute, WithTTL(1))
		if err != nil || got != "value" {
			t.Fatalf("Fetch #%d: %q %v", i, got, err)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("compute ran %d times, want 1", calls.Load())
	}
	if env.hooks.computes != 1 {
		t.Fatalf("ComputeOnMiss fired %d times, want 1", env.hooks.computes)
	}
}

func TestCallDeduplicatesConcurrentMisses(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil, nil)

	var calls atomic.Int32
	compute := func(context.Context) (any, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return []int{1, 2, 3}, nil
	}

	const n = 32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			var out []int
			if err := env.c.Call(ctx, "hot", compute, &out); err != nil {
				t.Errorf("Call: %v", err)
				return
			}
			if !reflect.DeepEqual(out, []int{1, 2, 3}) {
				t.Errorf("Call out = %v", out)
			}
		}()
	}
	close(start)
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("compute ran %d times, want 1", calls.Load())
	}
}

// TestCallWithLockerAcrossCaches simulates two processes sharing a backend and a lock.
func TestCallWithLockerAcrossCaches(t *testing.T) {
	ctx := context.Background()
	shared := memory.New()
	locker := lock.NewLocal()
	clock := newClock()

	newCache := func() *Cache {
		reg := backend.NewRegistry()
		if err := reg.Register(DefaultStorage, shared); err != nil {
			t.Fatal(err)
		}
		c, err := New(Options{Backends: reg, Locker: locker, Now: clock.Now})
		if err != nil {
			t.Fatal(err)
		}
		return c
	}
	caches := []*Cache{newCache(), newCache()}

	var calls atomic.Int32
	compute := func(context.Context) (any, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return "shared", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(c *Cache) {
			defer wg.Done()
			var out string
			if err := c.Call(ctx, "k", compute, &out); err != nil || out != "shared" {
				t.Errorf("Call: %q %v", out, err)
			}
		}(caches[i%2])
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("compute ran %d times across caches, want 1", calls.Load())
	}
}

func TestCallLockTimeout(t *testing.T) {
	env := newTestEnv(t, nil, func(o *Options) { o.Locker = lock.NewLocal() })
	release, err := env.c.locker.Lock(context.Background(), DefaultStorage+":k")
	if err != nil {
		t.Fatal(err)
	}
	defer release(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	var out string
	err = env.c.Call(ctx, "k", func(context.Context) (any, error) { return "x", nil }, &out)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}

// TestCallSurvivesFirstCallerCancel verifies that one waiter cancelling does not fail the
// others sharing the same compute.
func TestCallSurvivesFirstCallerCancel(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	started := make(chan struct{})
	unblock := make(chan struct{})
	var calls atomic.Int32
	compute := func(ctx context.Context) (any, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-unblock
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return "value", nil
	}

	first, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		var out string
		firstErr <- env.c.Call(first, "shared", compute, &out)
	}()
	<-started

	type result struct {
		out string
		err error
	}
	second := make(chan result, 1)
	go func() {
		var out string
		err := env.c.Call(context.Background(), "shared", compute, &out)
		second <- result{out, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("first caller: expected Canceled, got %v", err)
	}
	close(unblock)

	r := <-second
	if r.err != nil || r.out != "value" {
		t.Fatalf("second caller: out=%q err=%v", r.out, r.err)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("compute ran %d times, want 1", n)
	}
	var got string
	if err := env.c.Get(context.Background(), "shared", &got); err != nil || got != "value" {
		t.Fatalf("stored value: %q %v", got, err)
	}
}

func TestCloseClosesBackends(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	if err := env.c.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
