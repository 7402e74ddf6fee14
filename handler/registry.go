package handler

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknown is returned by Lookup for names that were never registered.
var ErrUnknown = errors.New("handler: unknown handler")

// Factory builds a handler instance.
type Factory func() Handler

// Registry is a static name -> factory table, populated at startup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Default returns a registry preloaded with the built-in handlers.
// "serialized" is the generic structured codec and uses msgpack.
func Default() *Registry {
	r := NewRegistry()
	r.MustRegister(String, func() Handler { return Text{} })
	r.MustRegister(Serialized, func() Handler { return MsgpackHandler{} })
	r.MustRegister(Msgpack, func() Handler { return MsgpackHandler{} })
	r.MustRegister(JSONName, func() Handler { return JSON{} })
	r.MustRegister(CBORName, func() Handler { return MustCBOR(true) })
	r.MustRegister(Protobuf, func() Handler { return Proto{} })
	return r
}

func (r *Registry) Register(name string, f Factory) error {
	if name == "" {
		return errors.New("handler: empty handler name")
	}
	if f == nil {
		return fmt.Errorf("handler: nil factory for %q", name)
	}
	r.mu.Lock()
	r.factories[name] = f
	r.mu.Unlock()
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(name string, f Factory) {
	if err := r.Register(name, f); err != nil {
		panic(err)
	}
}

func (r *Registry) Lookup(name string) (Handler, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	return f(), nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.factories))
	for n := range r.factories {
		out = append(out, n)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}
