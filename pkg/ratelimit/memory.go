package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// InMemoryLimiter keeps one token bucket per key. Used when CACHE_URL is
// unset — the single-node rate-limiting fallback. Once more than 10,000
// keys are tracked, each Allow call sweeps stale buckets so an unbounded
// per-IP keyspace doesn't leak memory.
type InMemoryLimiter struct {
	limit      int
	window     time.Duration
	evictAfter time.Duration

	mu      sync.Mutex
	buckets map[string]*bucketEntry
}

type bucketEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewInMemoryLimiter builds a limiter allowing limitPerWindow requests per
// window, per key.
func NewInMemoryLimiter(limitPerWindow int, window time.Duration) *InMemoryLimiter {
	return &InMemoryLimiter{
		limit:      limitPerWindow,
		window:     window,
		evictAfter: 10 * window,
		buckets:    make(map[string]*bucketEntry),
	}
}

// Allow reserves one token from key's bucket, creating the bucket on first
// use with a full allowance.
func (l *InMemoryLimiter) Allow(_ context.Context, key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	entry, ok := l.buckets[key]
	if !ok {
		entry = &bucketEntry{
			limiter: rate.NewLimiter(rate.Limit(float64(l.limit)/l.window.Seconds()), l.limit),
		}
		l.buckets[key] = entry
	}
	entry.lastSeen = now

	if len(l.buckets) > 10_000 {
		l.evictStale(now)
	}

	reservation := entry.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return false, 0
	}
	if delay := reservation.Delay(); delay > 0 {
		reservation.Cancel()
		return false, delay
	}
	return true, 0
}

// evictStale drops buckets untouched for longer than evictAfter. Must be
// called with mu held.
func (l *InMemoryLimiter) evictStale(now time.Time) {
	for k, e := range l.buckets {
		if now.Sub(e.lastSeen) > l.evictAfter {
			delete(l.buckets, k)
		}
	}
}
