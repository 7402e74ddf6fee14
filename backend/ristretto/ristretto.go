// Package ristretto keeps records in a Ristretto cache. Ristretto cannot list its
// keys, so RemoveAll only supports flushing everything.
package ristretto

import (
	"bytes"
	"context"
	"time"

	rc "github.com/dgraph-io/ristretto"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/unkn0wn-root/entrycache/backend"
	"github.com/unkn0wn-root/entrycache/internal/wire"
)

type Config struct {
	NumCounters int64
	MaxCost     int64 // total bytes of encoded records
	BufferItems int64
	Metrics     bool

	// Grace lets Ristretto drop expired records Grace after ExpiresAt.
	// Zero keeps them until read.
	Grace time.Duration
	Now   func() time.Time
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.NumCounters, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.MaxCost, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.BufferItems, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.Grace, validation.Min(time.Duration(0))),
	)
}

type Ristretto struct {
	c     *rc.Cache
	grace time.Duration
	now   func() time.Time
}

var _ backend.Backend = (*Ristretto)(nil)

func New(cfg Config) (*Ristretto, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Ristretto{c: c, grace: cfg.Grace, now: cfg.Now}, nil
}

// Write waits for Ristretto's buffers so the record is visible to the next Read.
// A write refused by the admission policy is not an error; it looks like an
// immediate eviction.
func (p *Ristretto) Write(_ context.Context, rec backend.Record) error {
	b, err := wire.Encode(rec)
	if err != nil {
		return err
	}
	var ttl time.Duration
	if p.grace > 0 && rec.HasExpiry() {
		ttl = max(rec.ExpiresAt.Sub(p.now())+p.grace, p.grace)
	}
	p.c.SetWithTTL(rec.Identifier, b, int64(len(b)), ttl)
	p.c.Wait()
	return nil
}

func (p *Ristretto) Read(_ context.Context, identifier string) (backend.Record, bool, error) {
	v, ok := p.c.Get(identifier)
	if !ok {
		return backend.Record{}, false, nil
	}
	b, _ := v.([]byte)
	if b == nil {
		// self-heal: drop unexpected entry shape
		p.c.Del(identifier)
		return backend.Record{}, false, nil
	}
	rec, err := wire.Decode(bytes.Clone(b))
	if err != nil {
		return backend.Record{}, false, err
	}
	return rec, true, nil
}

func (p *Ristretto) Remove(_ context.Context, identifier string) error {
	p.c.Del(identifier)
	return nil
}

func (p *Ristretto) RemoveAll(_ context.Context, section string) error {
	if section != "" {
		return backend.ErrSectionUnsupported
	}
	p.c.Clear()
	return nil
}

func (p *Ristretto) Close(_ context.Context) error {
	p.c.Wait()
	p.c.Close()
	return nil
}

// Metrics exposes Ristretto's counters; nil unless Config.Metrics is set.
func (p *Ristretto) Metrics() *rc.Metrics { return p.c.Metrics }
