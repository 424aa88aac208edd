package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend shares fixed windows across server instances. The
// counter is an INCR with a window-length expiry set on first hit, so
// the read-check-write cycle is atomic on the Redis side. Key expiry
// doubles as cleanup; no sweep is needed.
type RedisBackend struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisBackend(client redis.UniversalClient, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisBackend{client: client, prefix: prefix}
}

func (b *RedisBackend) Check(ctx context.Context, key string, cfg Config) (Result, error) {
	fullKey := b.prefix + ":" + key
	count, err := b.client.Incr(ctx, fullKey).Result()
	if err != nil {
		return Result{}, err
	}
	if count == 1 {
		if err := b.client.PExpire(ctx, fullKey, cfg.Window).Err(); err != nil {
			return Result{}, err
		}
	}
	ttl, err := b.client.PTTL(ctx, fullKey).Result()
	if err != nil {
		return Result{}, err
	}
	if ttl < 0 {
		// Expiry was lost (e.g. a crash between INCR and PEXPIRE);
		// restore it so the key cannot linger forever.
		ttl = cfg.Window
		if err := b.client.PExpire(ctx, fullKey, cfg.Window).Err(); err != nil {
			return Result{}, err
		}
	}
	allowed, remaining := outcome(int(count), cfg.MaxRequests)
	return Result{
		Allowed:   allowed,
		Remaining: remaining,
		ResetAt:   time.Now().Add(ttl),
	}, nil
}
