package entrycache

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidIdentifier is returned when an identifier is nil-equivalent or the empty string.
	ErrInvalidIdentifier = errors.New("entrycache: identifier cannot be empty")
	// ErrInvalidExpiration is returned when the effective TTL is not a finite number.
	ErrInvalidExpiration = errors.New("entrycache: expiration must be a valid number")
	// ErrCacheMiss means nothing is stored under the identifier.
	ErrCacheMiss = errors.New("entrycache: not found")
	// ErrCacheExpired means an entry was found but was stale; it has been deleted.
	ErrCacheExpired = errors.New("entrycache: expired")
	// ErrBackendFailure marks errors coming from the storage medium.
	ErrBackendFailure = errors.New("entrycache: backend failure")
	ErrUnknownBackend = errors.New("entrycache: unknown backend")
	ErrUnknownHandler = errors.New("entrycache: unknown content handler")
	// ErrNoContents is returned by Set when no contents were given or staged.
	ErrNoContents = errors.New("entrycache: no contents to write")
)

// Expiration reasons reported by ExpiredError and Hooks.EntryExpired.
const (
	ReasonTTL        = "ttl"
	ReasonDependency = "dependency"
)

// ExpiredError reports a stale entry. It matches ErrCacheExpired with errors.Is.
type ExpiredError struct {
	Identifier string
	Reason     string
}

func (e *ExpiredError) Error() string {
	return fmt.Sprintf("entrycache: %q expired (%s)", e.Identifier, e.Reason)
}

func (e *ExpiredError) Is(target error) bool { return target == ErrCacheExpired }

// BackendError wraps a storage medium failure. It matches ErrBackendFailure with errors.Is
// and unwraps to the backend's own error.
type BackendError struct {
	Op         string
	Backend    string
	Identifier string
	Err        error
}

func (e *BackendError) Error() string {
	if e.Identifier == "" {
		return fmt.Sprintf("entrycache: %s on %s backend: %v", e.Op, e.Backend, e.Err)
	}
	return fmt.Sprintf("entrycache: %s %q on %s backend: %v", e.Op, e.Identifier, e.Backend, e.Err)
}

func (e *BackendError) Is(target error) bool { return target == ErrBackendFailure }
func (e *BackendError) Unwrap() error        { return e.Err }

// HandlerError wraps a content handler failure while encoding or decoding.
type HandlerError struct {
	Handler string
	Op      string // "encode" | "decode"
	Err     error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("entrycache: %s with %q handler: %v", e.Op, e.Handler, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// IsRecoverable reports whether err is a miss or an expiration, the two outcomes
// callers answer by computing and storing a fresh value.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrCacheMiss) || errors.Is(err, ErrCacheExpired)
}

func missError(identifier string) error {
	return fmt.Errorf("%w: %q", ErrCacheMiss, identifier)
}
