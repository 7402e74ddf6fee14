// Package sturdyc keeps encoded records in a sharded sturdyc client.
package sturdyc

import (
	"bytes"
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/viccon/sturdyc"

	"github.com/unkn0wn-root/entrycache/backend"
	"github.com/unkn0wn-root/entrycache/internal/wire"
)

// Config holds the sturdyc client parameters.
type Config struct {
	// Capacity is the maximum number of records. Must be greater than 0.
	Capacity int

	// NumShards trades memory for less lock contention. Default: 256
	NumShards int

	// TTL bounds how long sturdyc keeps any record, whatever its own expiration.
	TTL time.Duration

	// EvictionPercentage of records dropped when Capacity is reached. Default: 10
	EvictionPercentage int

	// EvictionInterval sets how often expired records are swept. Zero keeps the
	// sturdyc default.
	EvictionInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults for most use cases.
func DefaultConfig() Config {
	return Config{
		Capacity:           10000,
		NumShards:          256,
		TTL:                24 * time.Hour,
		EvictionPercentage: 10,
	}
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Capacity, validation.Required, validation.Min(1)),
		validation.Field(&c.NumShards, validation.Required, validation.Min(1)),
		validation.Field(&c.TTL, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.EvictionPercentage, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&c.EvictionInterval, validation.Min(time.Duration(0))),
	)
}

func (c Config) options() []sturdyc.Option {
	var options []sturdyc.Option
	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}
	return options
}

type Sturdyc struct {
	client *sturdyc.Client[[]byte]
}

var (
	_ backend.Backend     = (*Sturdyc)(nil)
	_ backend.BatchReader = (*Sturdyc)(nil)
)

func New(cfg Config) (*Sturdyc, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client := sturdyc.New[[]byte](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.options()...,
	)
	return &Sturdyc{client: client}, nil
}

func (s *Sturdyc) Write(_ context.Context, rec backend.Record) error {
	b, err := wire.Encode(rec)
	if err != nil {
		return err
	}
	s.client.Set(rec.Identifier, b)
	return nil
}

func (s *Sturdyc) Read(_ context.Context, identifier string) (backend.Record, bool, error) {
	b, ok := s.client.Get(identifier)
	if !ok {
		return backend.Record{}, false, nil
	}
	rec, err := wire.Decode(bytes.Clone(b))
	if err != nil {
		return backend.Record{}, false, err
	}
	return rec, true, nil
}

func (s *Sturdyc) ReadMany(_ context.Context, identifiers []string) (map[string]backend.Record, error) {
	out := make(map[string]backend.Record, len(identifiers))
	for _, id := range identifiers {
		b, ok := s.client.Get(id)
		if !ok {
			continue
		}
		rec, err := wire.Decode(bytes.Clone(b))
		if err != nil {
			return nil, err
		}
		out[id] = rec
	}
	return out, nil
}

func (s *Sturdyc) Remove(_ context.Context, identifier string) error {
	s.client.Delete(identifier)
	return nil
}

// RemoveAll scans the client's keys. Records written concurrently may survive.
func (s *Sturdyc) RemoveAll(_ context.Context, section string) error {
	for _, key := range s.client.ScanKeys() {
		if backend.InSection(key, section) {
			s.client.Delete(key)
		}
	}
	return nil
}

// Len returns the number of records held, expired ones included.
func (s *Sturdyc) Len() int { return s.client.Size() }

func (s *Sturdyc) Close(context.Context) error { return nil }
