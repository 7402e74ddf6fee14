package entrycache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/unkn0wn-root/entrycache/backend"
	"github.com/unkn0wn-root/entrycache/config"
	"github.com/unkn0wn-root/entrycache/handler"
	"github.com/unkn0wn-root/entrycache/lock"
)

// Cache hands out entries bound to named backends and offers one-shot helpers over them.
// A Cache is safe for concurrent use; the entries it returns are not.
type Cache struct {
	cfg      config.Provider
	backends *backend.Registry
	handlers *handler.Registry
	log      Logger
	hooks    Hooks
	locker   lock.Locker
	now      func() time.Time
	enabled  bool

	flight singleflight.Group
}

func (c *Cache) Enabled() bool { return c.enabled }

// Close closes every registered backend.
func (c *Cache) Close(ctx context.Context) error {
	return c.backends.Close(ctx)
}

// Entry returns a new in-memory entry for id. Nothing is read or written until
// Get, Set or Delete is called.
func (c *Cache) Entry(id any, opts ...EntryOption) (*Entry, error) {
	identifier, err := Canonicalize(id)
	if err != nil {
		return nil, err
	}
	var eo entryOptions
	for _, o := range opts {
		o(&eo)
	}

	name, store, err := c.backend(eo.backend)
	if err != nil {
		return nil, err
	}
	e := &Entry{c: c, backendName: name, store: store, identifier: identifier}
	if eo.expiration != nil {
		e.SetExpiration(*eo.expiration)
	}
	if len(eo.deps) > 0 {
		if err := e.SetDependencies(eo.deps...); err != nil {
			return nil, err
		}
	}
	e.handlerName = eo.handler
	return e, nil
}

// Set writes v under id.
func (c *Cache) Set(ctx context.Context, id, v any, opts ...SetOption) error {
	e, err := c.Entry(id, backendOf(opts))
	if err != nil {
		return err
	}
	return e.Set(ctx, v, opts...)
}

// Get reads id into out. See Entry.Get.
func (c *Cache) Get(ctx context.Context, id, out any, opts ...GetOption) error {
	var g getOptions
	for _, o := range opts {
		o(&g)
	}
	e, err := c.Entry(id, OnBackend(g.backend))
	if err != nil {
		return err
	}
	return e.Get(ctx, out, opts...)
}

// Delete removes id from the default backend, or the one named by backendName.
func (c *Cache) Delete(ctx context.Context, id any, backendName string) error {
	e, err := c.Entry(id, OnBackend(backendName))
	if err != nil {
		return err
	}
	return e.Delete(ctx)
}

// DeleteAll flushes section ("" for everything) on backendName, falling back to
// cache.storage and then DefaultStorage.
func (c *Cache) DeleteAll(ctx context.Context, section, backendName string) error {
	name, store, err := c.backend(backendName)
	if err != nil {
		return err
	}
	if !c.enabled {
		return nil
	}
	if err := store.RemoveAll(ctx, section); err != nil {
		c.hooks.BackendFailure("remove_all", section, err)
		c.log.Error("backend failure", Fields{"op": "remove_all", "section": section, "backend": name, "err": err})
		return &BackendError{Op: "remove_all", Backend: name, Identifier: section, Err: err}
	}
	c.log.Info("section flushed", Fields{"section": section, "backend": name})
	return nil
}

// computed is what concurrent Call waiters share: the stored form, decoded per caller.
type computed struct {
	handler  string
	contents []byte
}

// Call is Entry.Call with in-process deduplication: concurrent callers missing the same
// identifier share one compute, and the cache is read once more before computing.
// With Options.Locker set, that read and the compute also run under the lock.
// The shared work is detached from any single caller's cancellation; each caller stops
// waiting when its own ctx is done and the compute still completes for the others.
func (c *Cache) Call(ctx context.Context, id any, compute ComputeFunc, out any, opts ...SetOption) error {
	e, err := c.Entry(id, backendOf(opts))
	if err != nil {
		return err
	}
	err = e.Get(ctx, out)
	if err == nil || !IsRecoverable(err) {
		return err
	}

	key := e.backendName + "\x00" + e.identifier
	detached := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(key, func() (any, error) {
		return c.computeAndStore(detached, e, compute, opts)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		c.log.Debug("call abandoned", Fields{"identifier": e.identifier, "err": ctx.Err()})
		return ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return res.Err
	}
	r := res.Val.(computed)
	if res.Shared {
		c.log.Debug("compute shared", Fields{"identifier": e.identifier})
	}
	h, err := c.handler(r.handler)
	if err != nil {
		return err
	}
	if err := h.Decode(r.contents, out); err != nil {
		return &HandlerError{Handler: r.handler, Op: "decode", Err: err}
	}
	return nil
}

func (c *Cache) computeAndStore(ctx context.Context, e *Entry, compute ComputeFunc, opts []SetOption) (computed, error) {
	fresh := &Entry{c: c, backendName: e.backendName, store: e.store, identifier: e.identifier}

	if c.locker != nil {
		release, err := c.locker.Lock(ctx, e.backendName+":"+e.identifier)
		if err != nil {
			return computed{}, err
		}
		defer func() {
			if err := release(ctx); err != nil {
				c.log.Warn("lock release failed", Fields{"identifier": e.identifier, "err": err})
			}
		}()
	}

	// a previous flight or another lock holder may have filled it meanwhile
	err := fresh.load(ctx, true)
	if err == nil {
		return computed{handler: fresh.handlerName, contents: fresh.contents}, nil
	}
	if !IsRecoverable(err) {
		return computed{}, err
	}

	c.hooks.ComputeOnMiss(e.identifier)
	v, err := compute(ctx)
	if err != nil {
		return computed{}, err
	}
	if v == nil {
		return computed{}, ErrNoContents
	}
	if err := fresh.Set(ctx, v, opts...); err != nil {
		return computed{}, err
	}
	return computed{handler: fresh.handlerName, contents: fresh.contents}, nil
}

// backend resolves name, then cache.storage, then DefaultStorage.
func (c *Cache) backend(name string) (string, backend.Backend, error) {
	if name == "" {
		name = config.String(c.cfg, config.KeyStorage, DefaultStorage)
	}
	b, err := c.backends.Lookup(name)
	if err != nil {
		if errors.Is(err, backend.ErrUnknown) {
			return "", nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
		}
		return "", nil, err
	}
	return name, b, nil
}

func (c *Cache) handler(name string) (handler.Handler, error) {
	h, err := c.handlers.Lookup(name)
	if err != nil {
		if errors.Is(err, handler.ErrUnknown) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownHandler, name)
		}
		return nil, err
	}
	return h, nil
}
