// Package redis stores records as single Redis string values.
package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/entrycache/backend"
	"github.com/unkn0wn-root/entrycache/internal/wire"
)

const (
	DefaultNamespace = "entrycache:"
	defaultScanCount = 512
)

var ErrNilClient = errors.New("redis backend: nil client")

type Config struct {
	Client      goredis.UniversalClient
	CloseClient bool // set true only if this backend exclusively owns the client

	// Namespace prefixes every key. RemoveAll("") only touches keys in it.
	Namespace string

	// Grace lets Redis drop expired records on its own, Grace after ExpiresAt.
	// Zero keeps records until they are read and found expired, so callers always
	// observe the expiration.
	Grace time.Duration

	// ScanCount is the COUNT hint used when removing sections.
	ScanCount int64

	Now func() time.Time
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Namespace, validation.Required),
		validation.Field(&c.Grace, validation.Min(time.Duration(0))),
		validation.Field(&c.ScanCount, validation.Min(int64(1))),
	)
}

type Redis struct {
	rdb         goredis.UniversalClient
	closeClient bool
	ns          string
	grace       time.Duration
	scanCount   int64
	now         func() time.Time
}

var (
	_ backend.Backend     = (*Redis)(nil)
	_ backend.BatchReader = (*Redis)(nil)
)

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	if cfg.ScanCount == 0 {
		cfg.ScanCount = defaultScanCount
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Redis{
		rdb:         cfg.Client,
		closeClient: cfg.CloseClient,
		ns:          cfg.Namespace,
		grace:       cfg.Grace,
		scanCount:   cfg.ScanCount,
		now:         cfg.Now,
	}, nil
}

func (p *Redis) key(identifier string) string { return p.ns + identifier }

func (p *Redis) Write(ctx context.Context, rec backend.Record) error {
	b, err := wire.Encode(rec)
	if err != nil {
		return err
	}
	return p.rdb.Set(ctx, p.key(rec.Identifier), b, p.ttl(rec)).Err()
}

// ttl is the native expiry for rec; 0 means none.
func (p *Redis) ttl(rec backend.Record) time.Duration {
	if p.grace <= 0 || !rec.HasExpiry() {
		return 0
	}
	return max(rec.ExpiresAt.Sub(p.now())+p.grace, p.grace)
}

func (p *Redis) Read(ctx context.Context, identifier string) (backend.Record, bool, error) {
	b, err := p.rdb.Get(ctx, p.key(identifier)).Bytes()
	if err == goredis.Nil {
		return backend.Record{}, false, nil // miss
	}
	if err != nil {
		return backend.Record{}, false, err // transport/server error
	}
	rec, err := wire.Decode(b)
	if err != nil {
		return backend.Record{}, false, err
	}
	return rec, true, nil
}

// ReadMany resolves identifiers with a single MGET.
func (p *Redis) ReadMany(ctx context.Context, identifiers []string) (map[string]backend.Record, error) {
	out := make(map[string]backend.Record, len(identifiers))
	if len(identifiers) == 0 {
		return out, nil
	}
	keys := make([]string, len(identifiers))
	for i, id := range identifiers {
		keys[i] = p.key(id)
	}
	vals, err := p.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		rec, err := wire.Decode([]byte(s))
		if err != nil {
			return nil, err
		}
		out[identifiers[i]] = rec
	}
	return out, nil
}

func (p *Redis) Remove(ctx context.Context, identifier string) error {
	return p.rdb.Del(ctx, p.key(identifier)).Err()
}

// RemoveAll scans the namespace and deletes matching keys in batches. It is not
// atomic: records written during the scan may survive.
func (p *Redis) RemoveAll(ctx context.Context, section string) error {
	if section == "" {
		return p.scanDel(ctx, escapeGlob(p.ns)+"*")
	}
	if err := p.rdb.Del(ctx, p.key(section)).Err(); err != nil {
		return err
	}
	return p.scanDel(ctx, escapeGlob(p.key(section+backend.SectionSeparator))+"*")
}

func (p *Redis) scanDel(ctx context.Context, match string) error {
	var cursor uint64
	for {
		keys, next, err := p.rdb.Scan(ctx, cursor, match, p.scanCount).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := p.rdb.Unlink(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// Close releases the underlying redis client only when this backend owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (p *Redis) Close(context.Context) error {
	if p.closeClient {
		if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string { return globEscaper.Replace(s) }
