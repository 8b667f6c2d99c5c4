package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/wudi/bridgerouter/internal/cache"
)

func newTestLimiter(t *testing.T, limit int, window time.Duration) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(cache.NewFromClient(rdb), limit, window), mr
}

func TestAllowUnderLimit(t *testing.T) {
	l, _ := newTestLimiter(t, 5, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		res := l.Allow(ctx, "1.2.3.4")
		if !res.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		if res.Remaining != 5-(i+1) {
			t.Errorf("request %d: expected %d remaining, got %d", i+1, 5-(i+1), res.Remaining)
		}
	}
}

func TestDenyOverLimit(t *testing.T) {
	l, _ := newTestLimiter(t, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		l.Allow(ctx, "1.2.3.4")
	}

	res := l.Allow(ctx, "1.2.3.4")
	if res.Allowed {
		t.Fatal("request over limit should be denied")
	}
	if res.Remaining != 0 {
		t.Errorf("expected 0 remaining, got %d", res.Remaining)
	}
	if res.RetryAfter <= 0 || res.RetryAfter > time.Minute {
		t.Errorf("unexpected retry-after: %v", res.RetryAfter)
	}
}

func TestWindowResets(t *testing.T) {
	l, mr := newTestLimiter(t, 2, time.Minute)
	ctx := context.Background()

	l.Allow(ctx, "1.2.3.4")
	l.Allow(ctx, "1.2.3.4")
	if res := l.Allow(ctx, "1.2.3.4"); res.Allowed {
		t.Fatal("third request should be denied")
	}

	mr.FastForward(61 * time.Second)
	if res := l.Allow(ctx, "1.2.3.4"); !res.Allowed {
		t.Fatal("request after window expiry should be allowed")
	}
}

func TestClientsAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()

	l.Allow(ctx, "1.2.3.4")
	if res := l.Allow(ctx, "1.2.3.4"); res.Allowed {
		t.Fatal("second request from same client should be denied")
	}
	if res := l.Allow(ctx, "5.6.7.8"); !res.Allowed {
		t.Fatal("other clients must not share the window")
	}
}

func TestFailOpenOnRedisOutage(t *testing.T) {
	l, mr := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()

	mr.Close()
	for i := 0; i < 10; i++ {
		if res := l.Allow(ctx, "1.2.3.4"); !res.Allowed {
			t.Fatal("limiter must fail open when Redis is unavailable")
		}
	}
}

func TestNilClientFailsOpen(t *testing.T) {
	l := New(nil, 1, time.Minute)
	if res := l.Allow(context.Background(), "1.2.3.4"); !res.Allowed {
		t.Fatal("nil client must fail open")
	}
}
