// Package bigcache keeps records in an allegro/bigcache instance.
//
// BigCache has no per-entry TTL: every record lives for Config.LifeWindow at most,
// so keep it longer than the expirations you set through entrycache.
package bigcache

import (
	"context"
	"errors"
	"time"

	bc "github.com/allegro/bigcache/v3"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/unkn0wn-root/entrycache/backend"
	"github.com/unkn0wn-root/entrycache/internal/wire"
)

type Config struct {
	LifeWindow         time.Duration
	CleanWindow        time.Duration
	Shards             int // power of two; 0 = bigcache default
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.LifeWindow, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.CleanWindow, validation.Min(time.Duration(0))),
		validation.Field(&c.Shards, validation.By(powerOfTwo)),
		validation.Field(&c.HardMaxCacheSizeMB, validation.Min(0)),
	)
}

func powerOfTwo(v any) error {
	n, _ := v.(int)
	if n != 0 && (n < 0 || n&(n-1) != 0) {
		return errors.New("must be a power of two")
	}
	return nil
}

type BigCache struct {
	c *bc.BigCache
}

var (
	_ backend.Backend     = (*BigCache)(nil)
	_ backend.BatchReader = (*BigCache)(nil)
)

func New(cfg Config) (*BigCache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	conf := bc.DefaultConfig(cfg.LifeWindow)
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.Shards > 0 {
		conf.Shards = cfg.Shards
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	conf.Verbose = false
	c, err := bc.New(context.Background(), conf)
	if err != nil {
		return nil, err
	}
	return &BigCache{c: c}, nil
}

func (p *BigCache) Write(_ context.Context, rec backend.Record) error {
	b, err := wire.Encode(rec)
	if err != nil {
		return err
	}
	return p.c.Set(rec.Identifier, b)
}

func (p *BigCache) Read(_ context.Context, identifier string) (backend.Record, bool, error) {
	b, err := p.c.Get(identifier)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return backend.Record{}, false, nil
	}
	if err != nil {
		return backend.Record{}, false, err
	}
	rec, err := wire.Decode(b)
	if err != nil {
		return backend.Record{}, false, err
	}
	return rec, true, nil
}

func (p *BigCache) ReadMany(ctx context.Context, identifiers []string) (map[string]backend.Record, error) {
	out := make(map[string]backend.Record, len(identifiers))
	for _, id := range identifiers {
		rec, ok, err := p.Read(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			out[id] = rec
		}
	}
	return out, nil
}

func (p *BigCache) Remove(_ context.Context, identifier string) error {
	if err := p.c.Delete(identifier); err != nil && !errors.Is(err, bc.ErrEntryNotFound) {
		return err
	}
	return nil
}

// RemoveAll walks every shard to find the section's keys, then deletes them.
func (p *BigCache) RemoveAll(ctx context.Context, section string) error {
	if section == "" {
		return p.c.Reset()
	}
	var keys []string
	it := p.c.Iterator()
	for it.SetNext() {
		e, err := it.Value()
		if err != nil {
			if errors.Is(err, bc.ErrInvalidIteratorState) || errors.Is(err, bc.ErrCannotRetrieveEntry) {
				continue
			}
			return err
		}
		if backend.InSection(e.Key(), section) {
			keys = append(keys, e.Key())
		}
	}
	for _, k := range keys {
		if err := p.Remove(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

func (p *BigCache) Len() int { return p.c.Len() }

func (p *BigCache) Close(_ context.Context) error {
	return p.c.Close()
}
