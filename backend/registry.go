package backend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknown is returned by Registry.Lookup for names that were never registered.
var ErrUnknown = errors.New("backend: unknown backend")

// Registry maps backend names ("file", "redis", "memory", ...) to live backends.
// It is populated at startup and read on every entry lookup.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
}

func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Backend)}
}

// Register binds name to b, replacing a previous binding.
func (r *Registry) Register(name string, b Backend) error {
	if name == "" {
		return errors.New("backend: empty backend name")
	}
	if b == nil {
		return fmt.Errorf("backend: nil backend for %q", name)
	}
	r.mu.Lock()
	r.backends[name] = b
	r.mu.Unlock()
	return nil
}

func (r *Registry) Lookup(name string) (Backend, error) {
	r.mu.RLock()
	b, ok := r.backends[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	return b, nil
}

// Names returns registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.backends))
	for n := range r.backends {
		out = append(out, n)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Len returns the number of registered backends.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.backends)
}

// Close closes every registered backend and joins their errors.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var errs []error
	for name, b := range r.backends {
		if err := b.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
