package entrycache

import (
	"context"
	"errors"
	"time"

	"github.com/unkn0wn-root/entrycache/backend"
	"github.com/unkn0wn-root/entrycache/config"
	"github.com/unkn0wn-root/entrycache/handler"
	"github.com/unkn0wn-root/entrycache/lock"
)

// ComputeFunc produces a fresh value on a miss.
type ComputeFunc func(ctx context.Context) (any, error)

// Options configure a Cache. Only Backends is required; others have sensible defaults.
type Options struct {
	// Required
	Backends *backend.Registry // named backends; cache.storage picks the default one

	Config   config.Provider   // read-only lookup; nil => empty config.Map
	Handlers *handler.Registry // nil => handler.Default()
	Logger   Logger            // if nil, NopLogger is used
	Hooks    Hooks             // if nil, NopHooks is used
	Locker   lock.Locker       // optional; serializes Cache.Call computes per identifier
	Now      func() time.Time  // clock; nil => time.Now
	Disabled bool              // default false (enabled)
}

func New(opts Options) (*Cache, error) {
	if opts.Backends == nil || opts.Backends.Len() == 0 {
		return nil, errors.New("entrycache: at least one backend is required")
	}
	c := &Cache{
		backends: opts.Backends,
		locker:   opts.Locker,
		enabled:  !opts.Disabled,
	}

	// defaults
	c.cfg = coalesce[config.Provider](opts.Config, config.Map{})
	c.log = coalesce[Logger](opts.Logger, NopLogger{})
	c.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	if opts.Handlers != nil {
		c.handlers = opts.Handlers
	} else {
		c.handlers = handler.Default()
	}
	if opts.Now != nil {
		c.now = opts.Now
	} else {
		c.now = time.Now
	}
	return c, nil
}
