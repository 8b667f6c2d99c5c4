// Package ratelimit implements the per-client fixed-window limit on the
// quotes endpoint, backed by Redis INCR+EXPIRE. Redis failures fail open:
// losing the limiter must never take quotes down with it.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wudi/bridgerouter/internal/cache"
	"github.com/wudi/bridgerouter/internal/logging"
)

// Limiter enforces a fixed-window request budget per client.
type Limiter struct {
	client *cache.Client
	limit  int
	window time.Duration
}

// Result describes one admission decision.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	// RetryAfter is how long the client should wait; only set when denied.
	RetryAfter time.Duration
}

// New creates a limiter. client may be nil, which permanently fails open.
func New(client *cache.Client, limit int, window time.Duration) *Limiter {
	return &Limiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

// Allow records a request for clientID and decides admission. The counter
// key gets its window TTL on first increment, so the window starts at the
// client's first request.
func (l *Limiter) Allow(ctx context.Context, clientID string) Result {
	allowed := Result{Allowed: true, Limit: l.limit, Remaining: l.limit}
	if l.client == nil {
		return allowed
	}

	key := fmt.Sprintf("rate_limit:quotes:%s", clientID)

	count, err := l.client.Incr(ctx, key)
	if err != nil {
		logging.Warn("Redis rate limit unavailable, failing open",
			zap.String("client", clientID),
			zap.Error(err),
		)
		return allowed
	}

	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window); err != nil {
			logging.Warn("Failed to set rate limit window", zap.String("key", key), zap.Error(err))
		}
	}

	remaining := l.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	if count > int64(l.limit) {
		retryAfter := l.window
		if ttl, err := l.client.TTL(ctx, key); err == nil && ttl > 0 {
			retryAfter = ttl
		}
		return Result{
			Allowed:    false,
			Limit:      l.limit,
			Remaining:  0,
			RetryAfter: retryAfter,
		}
	}

	return Result{Allowed: true, Limit: l.limit, Remaining: remaining}
}
