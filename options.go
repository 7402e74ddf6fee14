package entrycache

// SetOption tunes a single Set or Call.
type SetOption func(*setOptions)

type setOptions struct {
	ttl     float64
	ttlSet  bool
	deps    []any
	depsSet bool
	handler string
	backend string
}

// WithTTL sets the time-to-live in minutes. Values <= 0 mean the entry never expires.
func WithTTL(minutes float64) SetOption {
	return func(o *setOptions) { o.ttl, o.ttlSet = minutes, true }
}

// WithoutExpiration stores the entry without expiration, overriding any default.
func WithoutExpiration() SetOption { return WithTTL(0) }

// WithDependencies makes the entry stale once any of ids is deleted, expires or is rewritten.
// ids are canonicalized like identifiers.
func WithDependencies(ids ...any) SetOption {
	return func(o *setOptions) { o.deps, o.depsSet = ids, true }
}

// WithHandler forces the named content handler.
func WithHandler(name string) SetOption {
	return func(o *setOptions) { o.handler = name }
}

// StoreIn targets a named backend instead of the configured default.
// Only Cache.Set and Cache.Call read it.
func StoreIn(backendName string) SetOption {
	return func(o *setOptions) { o.backend = backendName }
}

func backendOf(opts []SetOption) EntryOption {
	var so setOptions
	for _, o := range opts {
		o(&so)
	}
	return OnBackend(so.backend)
}

// GetOption tunes a single Get.
type GetOption func(*getOptions)

type getOptions struct {
	skipExpiration bool
	backend        string
}

// SkipExpiration returns the stored contents without checking expiration or dependencies.
func SkipExpiration() GetOption {
	return func(o *getOptions) { o.skipExpiration = true }
}

// ReadFrom targets a named backend. Only Cache.Get reads it.
func ReadFrom(backendName string) GetOption {
	return func(o *getOptions) { o.backend = backendName }
}

// EntryOption configures an Entry at construction.
type EntryOption func(*entryOptions)

type entryOptions struct {
	backend    string
	expiration *float64
	deps       []any
	handler    string
}

// OnBackend binds the entry to a named backend. Empty means cache.storage.
func OnBackend(name string) EntryOption {
	return func(o *entryOptions) { o.backend = name }
}

func WithEntryExpiration(minutes float64) EntryOption {
	return func(o *entryOptions) { o.expiration = &minutes }
}

func WithEntryDependencies(ids ...any) EntryOption {
	return func(o *entryOptions) { o.deps = ids }
}

func WithEntryHandler(name string) EntryOption {
	return func(o *entryOptions) { o.handler = name }
}
