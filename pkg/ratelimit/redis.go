package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter implements fixed-window counters against a shared Redis
// instance — the distributed rate-limiting backend, selected when
// CACHE_URL is configured. A window is keyed by its truncated start time,
// so concurrent API replicas all share the same counter per key per
// window without any coordination beyond Redis itself.
type RedisLimiter struct {
	rdb    *redis.Client
	prefix string
	limit  int
	window time.Duration
	log    *slog.Logger
}

// NewRedisLimiter builds a limiter allowing limitPerWindow requests per
// window, per key, against rdb. prefix namespaces the bucket (e.g.
// "ratelimit:ip" vs "ratelimit:auth") so callers can share one Redis
// instance across multiple limiter configurations.
func NewRedisLimiter(rdb *redis.Client, prefix string, limitPerWindow int, window time.Duration, log *slog.Logger) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, prefix: prefix, limit: limitPerWindow, window: window, log: log}
}

// Allow increments key's counter for the current window and compares it to
// the configured limit. A Redis error fails open — availability over
// strict enforcement — but is logged so a broker outage is still visible.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration) {
	windowStart := time.Now().Truncate(l.window)
	redisKey := fmt.Sprintf("%s:%s:%d", l.prefix, key, windowStart.Unix())

	count, err := l.rdb.Incr(ctx, redisKey).Result()
	if err != nil {
		l.log.Warn("rate limiter cache unreachable, failing open", "error", err, "prefix", l.prefix)
		return true, 0
	}
	if count == 1 {
		l.rdb.Expire(ctx, redisKey, l.window)
	}
	if count > int64(l.limit) {
		retryAfter := windowStart.Add(l.window).Sub(time.Now())
		if retryAfter < 0 {
			retryAfter = 0
		}
		return false, retryAfter
	}
	return true, 0
}
