// Package entrycache implements a backend-agnostic cache entry: values are encoded by a
// named content handler and persisted, together with their metadata, in one backend write.
// Expiration, dependency invalidation and identifier canonicalization live here, above the
// backend, so every backend behaves the same.
//
// Components:
//   - Backend: raw record store (memory, file, Redis, Ristretto, BigCache, sturdyc, SQL).
//   - Handler: encodes values to []byte and back ("string", "serialized", "json", ...).
//   - config.Provider: read-only lookup for defaults (cache.storage, cache.default_expiration,
//     cache.string_handler, cache.<kind>_handler).
//
// Identifiers:
//
//	strings and integers are used as is
//	anything else is serialized deterministically and hashed (xxhash64, 16 hex chars)
//
// Typical use:
//
//	e, _ := cache.Entry("user.42")
//	u, err := entrycache.CallAs(ctx, e, loadUser, entrycache.WithTTL(10), entrycache.WithDependencies("users"))
//
// A Get that finds nothing returns ErrCacheMiss; one that finds a stale entry deletes it and
// returns ErrCacheExpired. IsRecoverable reports both.
package entrycache
