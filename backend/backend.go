// Package backend defines the storage contract every entrycache backend implements.
//
// A backend persists whole Records. Write must be atomic per identifier: a Read that
// follows a Write returns either the previous Record or the new one, never a mix.
// Backends only store and return bytes and metadata; expiration, dependency checks and
// content decoding are done by entrycache on top of this contract.
//
// Backends must be safe for concurrent use.
package backend

import (
	"context"
	"errors"
	"strings"
	"time"
)

// SectionSeparator splits identifiers into sections: "user.42.profile" lives in
// sections "user" and "user.42".
const SectionSeparator = "."

var (
	// ErrSectionUnsupported is returned by RemoveAll when the backend cannot enumerate
	// its keys and a non-empty section was requested.
	ErrSectionUnsupported = errors.New("backend: section removal not supported")
	ErrClosed             = errors.New("backend: closed")
)

// Record is one persisted entry.
type Record struct {
	Identifier   string
	CreatedAt    time.Time
	ExpiresAt    time.Time // zero => never expires
	Dependencies []string
	Handler      string
	Contents     []byte
}

// HasExpiry reports whether the record carries an absolute expiration.
func (r Record) HasExpiry() bool { return !r.ExpiresAt.IsZero() }

// Expired reports whether the record is past its expiration at now.
func (r Record) Expired(now time.Time) bool {
	return r.HasExpiry() && r.ExpiresAt.Before(now)
}

// Backend is the raw persistence contract.
type Backend interface {
	// Write stores the full record, replacing any previous one atomically.
	Write(ctx context.Context, rec Record) error

	// Read returns (rec, true, nil) on hit and (Record{}, false, nil) on miss.
	// Medium errors are returned as (Record{}, false, err).
	Read(ctx context.Context, identifier string) (Record, bool, error)

	// Remove deletes one record. Removing a missing record is not an error.
	Remove(ctx context.Context, identifier string) error

	// RemoveAll deletes every record in section, or everything when section is empty.
	RemoveAll(ctx context.Context, section string) error

	// Close releases resources.
	Close(ctx context.Context) error
}

// BatchReader is implemented by backends that can resolve many identifiers in one
// round trip. Missing identifiers are absent from the result.
type BatchReader interface {
	ReadMany(ctx context.Context, identifiers []string) (map[string]Record, error)
}

// InSection reports whether identifier belongs to section. The empty section matches all.
func InSection(identifier, section string) bool {
	if section == "" {
		return true
	}
	return identifier == section || strings.HasPrefix(identifier, section+SectionSeparator)
}
