// Package ratelimit enforces fixed-window request ceilings per key (IP or
// user id), backed by an in-memory token bucket per key when no cache
// backend is configured, or Redis fixed-window counters when one is.
package ratelimit

import (
	"context"
	"time"
)

// Limiter enforces a per-key request ceiling within a rolling window.
type Limiter interface {
	// Allow reports whether a request against key is permitted right now,
	// and if not, how long the caller should wait before retrying.
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration)
}
