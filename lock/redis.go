package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a cross-process Locker built on SET NX PX.
// The TTL bounds how long a crashed holder can block others.
type Redis struct {
	rdb   redis.UniversalClient
	ns    string        // logical namespace; lock keys are "lock:<ns>:<key>"
	ttl   time.Duration // lock lease; 0 => 30s
	retry time.Duration // poll interval while waiting; 0 => 50ms
}

var _ Locker = (*Redis)(nil)

func NewRedis(client redis.UniversalClient, namespace string, ttl, retry time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if retry <= 0 {
		retry = 50 * time.Millisecond
	}
	return &Redis{rdb: client, ns: namespace, ttl: ttl, retry: retry}
}

func (r *Redis) key(k string) string { return "lock:" + r.ns + ":" + k }

func (r *Redis) Lock(ctx context.Context, key string) (Release, error) {
	k := r.key(key)
	token := uuid.NewString()
	for {
		ok, err := r.rdb.SetNX(ctx, k, token, r.ttl).Result()
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("lock: acquire %q: %w", key, err)
		}
		if ok {
			return func(ctx context.Context) error {
				return releaseScript.Run(ctx, r.rdb, []string{k}, token).Err()
			}, nil
		}

		t := time.NewTimer(r.retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, fmt.Errorf("%w: %q: %v", ErrNotAcquired, key, ctx.Err())
		case <-t.C:
		}
	}
}
