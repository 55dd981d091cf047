// Package ratelimit throttles boundary calls per network identity (Redis fixed
// window plus a noop mode).
package ratelimit

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marcelojr/awards-night/internal/domain"
)

var ErrRateLimitExceeded = fmt.Errorf("request limit reached")

// RedisLimiter caps attempts per identity and operation in fixed windows.
type RedisLimiter struct {
	client    *redis.Client
	limit     int
	window    time.Duration
	keyPrefix string
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisLimiter{
		client:    client,
		limit:     limit,
		window:    window,
		keyPrefix: prefix,
	}
}

func (r *RedisLimiter) Allow(ctx context.Context, operation, identity string) error {
	if r.client == nil || r.limit <= 0 || r.window <= 0 {
		// Invalid configuration falls back to permissive mode.
		return nil
	}

	key := r.buildKey(operation, identity)
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("ratelimit: increment key: %w", err)
	}

	if count == 1 {
		if err := r.client.Expire(ctx, key, r.window).Err(); err != nil {
			return fmt.Errorf("ratelimit: set expiry: %w", err)
		}
	}

	if int(count) > r.limit {
		return ErrRateLimitExceeded
	}

	return nil
}

func (r *RedisLimiter) buildKey(operation, identity string) string {
	// SHA-1 avoids exposing raw network addresses in Redis keys.
	base := fmt.Sprintf("%s|%s", operation, identity)
	hash := sha1.Sum([]byte(base))
	return fmt.Sprintf("%s:%s", r.keyPrefix, hex.EncodeToString(hash[:]))
}

var _ domain.Guard = (*RedisLimiter)(nil)
