package entrycache

import (
	"context"
	"fmt"
	"time"

	"github.com/unkn0wn-root/entrycache/backend"
	"github.com/unkn0wn-root/entrycache/config"
	"github.com/unkn0wn-root/entrycache/handler"
)

// Entry is one cached value bound to an identifier and a backend.
//
// An Entry is not safe for concurrent mutation; treat it as owned by a single
// logical operation. Obtain one with Cache.Entry.
type Entry struct {
	c           *Cache
	backendName string
	store       backend.Backend

	identifier string

	createdAt  time.Time
	expiresAt  time.Time
	expiration *float64 // relative minutes; nil => resolve from config on Set

	dependencies []string

	handlerName string
	handler     handler.Handler
	staged      any
	contents    []byte
}

// Identifier returns the canonical identifier. It never changes.
func (e *Entry) Identifier() string { return e.identifier }

// Backend returns the name of the backend this entry reads and writes.
func (e *Entry) Backend() string { return e.backendName }

// CreatedAt is zero until a successful Set or Get.
func (e *Entry) CreatedAt() time.Time { return e.createdAt }

// ExpiresAt is the absolute expiration; zero means never.
func (e *Entry) ExpiresAt() time.Time { return e.expiresAt }

// Expiration returns the entry's TTL in minutes. After a Set or Get it holds the
// minutes remaining until ExpiresAt.
func (e *Entry) Expiration() (float64, bool) {
	if e.expiration == nil {
		return 0, false
	}
	return *e.expiration, true
}

// SetExpiration sets the TTL in minutes used by the next Set. <= 0 means no expiration.
func (e *Entry) SetExpiration(minutes float64) *Entry {
	e.expiration = &minutes
	return e
}

// ClearExpiration drops the entry's TTL so the next Set falls back to cache.default_expiration.
func (e *Entry) ClearExpiration() *Entry {
	e.expiration = nil
	return e
}

// Dependencies returns the canonical identifiers this entry depends on.
func (e *Entry) Dependencies() []string {
	return append([]string(nil), e.dependencies...)
}

// SetDependencies canonicalizes ids and uses them for the next Set.
func (e *Entry) SetDependencies(ids ...any) error {
	deps, err := canonicalizeAll(ids)
	if err != nil {
		return err
	}
	e.dependencies = deps
	return nil
}

// HandlerName returns the name of the content handler bound to the contents.
func (e *Entry) HandlerName() string { return e.handlerName }

// Contents returns the storage-safe form of the contents, nil when none is staged or loaded.
func (e *Entry) Contents() []byte { return e.contents }

// SetContents encodes v and stages it for the next Set. handlerName may be empty, in which
// case the handler already bound to the entry is used, or a default inferred from v.
func (e *Entry) SetContents(v any, handlerName string) error {
	name := handlerName
	if name == "" {
		name = e.handlerName
	}
	if name == "" {
		name = e.defaultHandlerName(v)
	}
	h, err := e.c.handler(name)
	if err != nil {
		return err
	}
	b, err := h.Encode(v)
	if err != nil {
		return &HandlerError{Handler: name, Op: "encode", Err: err}
	}
	e.handlerName = name
	e.handler = h
	e.staged = v
	e.contents = b
	return nil
}

// defaultHandlerName picks the handler configured for v's category:
// cache.string_handler for strings, cache.<kind>_handler otherwise.
func (e *Entry) defaultHandlerName(v any) string {
	cat := handler.Category(v)
	if cat == "string" {
		return config.String(e.c.cfg, config.KeyStringHandler, handler.String)
	}
	return config.String(e.c.cfg, config.HandlerKey(cat), handler.Serialized)
}

// Set encodes contents, stamps the entry and persists it in one backend write.
// With nil contents the value staged by SetContents is written.
func (e *Entry) Set(ctx context.Context, contents any, opts ...SetOption) error {
	var so setOptions
	for _, o := range opts {
		o(&so)
	}

	switch {
	case contents != nil:
		if err := e.SetContents(contents, so.handler); err != nil {
			return err
		}
	case e.contents == nil:
		return ErrNoContents
	case so.handler != "" && so.handler != e.handlerName && e.staged != nil:
		if err := e.SetContents(e.staged, so.handler); err != nil {
			return err
		}
	}

	minutes, hasTTL, err := e.resolveExpiration(so)
	if err != nil {
		return err
	}

	if so.depsSet {
		deps, err := canonicalizeAll(so.deps)
		if err != nil {
			return err
		}
		e.dependencies = deps
	}

	if !e.c.enabled {
		return nil
	}

	now := e.c.now()
	var expiresAt time.Time
	if hasTTL && minutes > 0 {
		expiresAt = now.Add(minutesToDuration(minutes))
	}

	rec := backend.Record{
		Identifier:   e.identifier,
		CreatedAt:    now,
		ExpiresAt:    expiresAt,
		Dependencies: e.dependencies,
		Handler:      e.handlerName,
		Contents:     e.contents,
	}
	if err := e.store.Write(ctx, rec); err != nil {
		return e.backendErr("write", err)
	}

	e.createdAt = now
	e.expiresAt = expiresAt
	if hasTTL {
		e.expiration = &minutes
	}
	e.refreshExpiration()

	e.c.log.Debug("entry written", Fields{
		"identifier": e.identifier,
		"backend":    e.backendName,
		"handler":    e.handlerName,
		"deps":       len(e.dependencies),
	})
	return nil
}

// resolveExpiration picks the TTL in minutes: option, then the entry's own, then
// cache.default_expiration. hasTTL is false when none is set.
func (e *Entry) resolveExpiration(so setOptions) (minutes float64, hasTTL bool, err error) {
	switch {
	case so.ttlSet:
		minutes, err = checkMinutes(so.ttl)
		return minutes, err == nil, err
	case e.expiration != nil:
		minutes, err = checkMinutes(*e.expiration)
		return minutes, err == nil, err
	}
	v, ok := e.c.cfg.Lookup(config.KeyDefaultExpiration)
	if !ok || v == nil {
		return 0, false, nil
	}
	minutes, err = parseMinutes(v)
	return minutes, err == nil, err
}

// refreshExpiration reflects the remaining minutes until expiresAt in memory.
func (e *Entry) refreshExpiration() {
	if e.expiresAt.IsZero() {
		return
	}
	left := e.expiresAt.Sub(e.c.now()).Minutes()
	e.expiration = &left
}

// Get loads the entry, validates its expiration and dependencies and decodes the
// contents into out, which must be a non-nil pointer.
//
// Returns ErrCacheMiss when nothing is stored and an *ExpiredError (ErrCacheExpired)
// when the entry was stale; stale entries are deleted before returning.
func (e *Entry) Get(ctx context.Context, out any, opts ...GetOption) error {
	var g getOptions
	for _, o := range opts {
		o(&g)
	}
	if err := e.load(ctx, !g.skipExpiration); err != nil {
		return err
	}
	return e.decode(out)
}

// GetRaw loads the entry and returns its stored contents without decoding them.
// With useExpiration false, expiration and dependencies are not checked.
func (e *Entry) GetRaw(ctx context.Context, useExpiration bool) ([]byte, error) {
	if err := e.load(ctx, useExpiration); err != nil {
		return nil, err
	}
	return e.contents, nil
}

func (e *Entry) load(ctx context.Context, useExpiration bool) error {
	if !e.c.enabled {
		return missError(e.identifier)
	}
	rec, ok, err := e.store.Read(ctx, e.identifier)
	if err != nil {
		return e.backendErr("read", err)
	}
	if !ok {
		return missError(e.identifier)
	}
	e.apply(rec)

	if !useExpiration {
		return nil
	}
	if rec.Expired(e.c.now()) {
		return e.expire(ctx, ReasonTTL)
	}
	fresh, err := e.checkDependencies(ctx, rec.Dependencies, rec.CreatedAt)
	if err != nil {
		return err
	}
	if !fresh {
		return e.expire(ctx, ReasonDependency)
	}
	return nil
}

func (e *Entry) apply(rec backend.Record) {
	e.createdAt = rec.CreatedAt
	e.expiresAt = rec.ExpiresAt
	e.expiration = nil
	e.refreshExpiration()
	e.dependencies = rec.Dependencies
	if rec.Handler != e.handlerName {
		e.handler = nil
	}
	e.handlerName = rec.Handler
	e.staged = nil
	e.contents = rec.Contents
}

// expire deletes the stale entry and reports it.
func (e *Entry) expire(ctx context.Context, reason string) error {
	if err := e.Delete(ctx); err != nil {
		return err
	}
	e.c.hooks.EntryExpired(e.identifier, reason)
	e.c.log.Debug("entry expired", Fields{"identifier": e.identifier, "backend": e.backendName, "reason": reason})
	return &ExpiredError{Identifier: e.identifier, Reason: reason}
}

func (e *Entry) decode(out any) error {
	if e.handler == nil {
		h, err := e.c.handler(e.handlerName)
		if err != nil {
			return err
		}
		e.handler = h
	}
	if err := e.handler.Decode(e.contents, out); err != nil {
		return &HandlerError{Handler: e.handlerName, Op: "decode", Err: err}
	}
	return nil
}

// CheckDependencies reports whether every identifier in deps resolves to a live entry
// in this entry's backend: present, not expired, and not rewritten after this entry was
// created. Dependencies held by other backends are never consulted.
func (e *Entry) CheckDependencies(ctx context.Context, deps []string) (bool, error) {
	return e.checkDependencies(ctx, deps, e.createdAt)
}

func (e *Entry) checkDependencies(ctx context.Context, deps []string, created time.Time) (bool, error) {
	if len(deps) == 0 {
		return true, nil
	}
	now := e.c.now()
	live := func(rec backend.Record) bool {
		if rec.Expired(now) {
			return false
		}
		return created.IsZero() || !rec.CreatedAt.After(created)
	}

	if br, ok := e.store.(backend.BatchReader); ok {
		recs, err := br.ReadMany(ctx, deps)
		if err != nil {
			return false, e.backendErr("read_many", err)
		}
		for _, d := range deps {
			rec, ok := recs[d]
			if !ok || !live(rec) {
				return false, nil
			}
		}
		return true, nil
	}

	for _, d := range deps {
		rec, ok, err := e.store.Read(ctx, d)
		if err != nil {
			return false, e.backendErrFor("read", d, err)
		}
		if !ok || !live(rec) {
			return false, nil
		}
	}
	return true, nil
}

// Delete removes the entry from its backend and resets everything but the identifier.
// Deleting a missing entry is not an error.
func (e *Entry) Delete(ctx context.Context) error {
	if e.c.enabled {
		if err := e.store.Remove(ctx, e.identifier); err != nil {
			return e.backendErr("remove", err)
		}
	}
	e.reset()
	return nil
}

func (e *Entry) reset() {
	e.createdAt = time.Time{}
	e.expiresAt = time.Time{}
	e.expiration = nil
	e.dependencies = nil
	e.handlerName = ""
	e.handler = nil
	e.staged = nil
	e.contents = nil
}

// Call returns the cached value in out, or on a miss or expiration runs compute once,
// stores its result with opts and decodes it into out. Other Get failures are returned
// as is.
func (e *Entry) Call(ctx context.Context, compute ComputeFunc, out any, opts ...SetOption) error {
	err := e.Get(ctx, out)
	if err == nil || !IsRecoverable(err) {
		return err
	}
	e.c.hooks.ComputeOnMiss(e.identifier)
	v, err := compute(ctx)
	if err != nil {
		return err
	}
	if v == nil {
		return ErrNoContents
	}
	if err := e.Set(ctx, v, opts...); err != nil {
		return err
	}
	return e.decode(out)
}

func (e *Entry) backendErr(op string, err error) error {
	return e.backendErrFor(op, e.identifier, err)
}

func (e *Entry) backendErrFor(op, identifier string, err error) error {
	e.c.hooks.BackendFailure(op, identifier, err)
	e.c.log.Error("backend failure", Fields{"op": op, "identifier": identifier, "backend": e.backendName, "err": err})
	return &BackendError{Op: op, Backend: e.backendName, Identifier: identifier, Err: err}
}

// String implements fmt.Stringer for logs.
func (e *Entry) String() string {
	return fmt.Sprintf("%s:%s", e.backendName, e.identifier)
}
