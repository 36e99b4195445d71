package middlewares

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter shares fixed windows across API instances.
type RedisRateLimiter struct {
	rdb    redis.Cmdable
	limit  int64
	window time.Duration
	prefix string
}

func NewRedisRateLimiter(rdb redis.Cmdable, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{
		rdb:    rdb,
		limit:  int64(limit),
		window: window,
		prefix: "coursehub:ratelimit:",
	}
}

func (l *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	k := l.prefix + key

	count, err := l.rdb.Incr(ctx, k).Result()
	if err != nil {
		return false, 0, err
	}
	// first hit opens the window
	if count == 1 {
		if err := l.rdb.PExpire(ctx, k, l.window).Err(); err != nil {
			return false, 0, err
		}
	}

	if count <= l.limit {
		return true, 0, nil
	}

	ttl, err := l.rdb.PTTL(ctx, k).Result()
	if err != nil {
		return false, 0, err
	}
	if ttl < 0 {
		// key lost its expiry; reopen the window
		if err := l.rdb.PExpire(ctx, k, l.window).Err(); err != nil {
			return false, 0, err
		}
		ttl = l.window
	}
	return false, ttl, nil
}
