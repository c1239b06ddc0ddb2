package payment

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDeduper claims webhook event keys with SETNX so each event is applied
// once across server replicas. A nil client disables deduplication.
type RedisDeduper struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisDeduper(client redis.Cmdable, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &RedisDeduper{client: client, ttl: ttl}
}

// Claim reports whether the caller is the first to see key.
func (d *RedisDeduper) Claim(ctx context.Context, key string) (bool, error) {
	if d == nil || d.client == nil {
		return true, nil
	}
	return d.client.SetNX(ctx, key, "1", d.ttl).Result()
}

func (d *RedisDeduper) Release(ctx context.Context, key string) error {
	if d == nil || d.client == nil {
		return nil
	}
	return d.client.Del(ctx, key).Err()
}
