package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/wudi/bridgerouter/internal/bridge"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewFromClient(rdb), mr
}

func TestKey(t *testing.T) {
	got := Key("Ethereum", "ARBITRUM", "usdc", 1.5)
	want := "quotes:ethereum:arbitrum:USDC:1.5"
	if got != want {
		t.Errorf("Key() = %s, want %s", got, want)
	}

	got = Key("polygon", "base", "ETH", 100)
	want = "quotes:polygon:base:ETH:100"
	if got != want {
		t.Errorf("Key() = %s, want %s", got, want)
	}
}

func TestQuoteCacheTwoTier(t *testing.T) {
	client, mr := newTestClient(t)
	qc := NewQuoteCache(client, 15*time.Second, 300*time.Second)
	ctx := context.Background()

	key := Key("ethereum", "arbitrum", "USDC", 100)
	if _, ok := qc.GetFresh(ctx, key); ok {
		t.Fatal("expected miss on empty cache")
	}

	qc.Store(ctx, key, []byte(`{"routes":[]}`))

	if data, ok := qc.GetFresh(ctx, key); !ok || string(data) != `{"routes":[]}` {
		t.Fatal("expected fresh hit after store")
	}

	// After the fresh TTL the stale tier still serves.
	mr.FastForward(20 * time.Second)
	if _, ok := qc.GetFresh(ctx, key); ok {
		t.Fatal("fresh entry should have expired")
	}
	if data, ok := qc.GetStale(ctx, key); !ok || string(data) != `{"routes":[]}` {
		t.Fatal("expected stale hit after fresh expiry")
	}

	// After the stale TTL everything is gone.
	mr.FastForward(300 * time.Second)
	if _, ok := qc.GetStale(ctx, key); ok {
		t.Fatal("stale entry should have expired")
	}
}

func TestQuoteCacheNilClient(t *testing.T) {
	qc := NewQuoteCache(nil, 15*time.Second, 300*time.Second)
	ctx := context.Background()

	qc.Store(ctx, "quotes:a:b:C:1", []byte("x"))
	if _, ok := qc.GetFresh(ctx, "quotes:a:b:C:1"); ok {
		t.Error("nil client must behave as a pure miss")
	}
}

func TestQuoteCacheRedisDownIsMiss(t *testing.T) {
	client, mr := newTestClient(t)
	qc := NewQuoteCache(client, 15*time.Second, 300*time.Second)
	ctx := context.Background()

	mr.Close()
	if _, ok := qc.GetFresh(ctx, "quotes:x:y:Z:1"); ok {
		t.Error("backend failure must read as a miss")
	}
	// Writes must not panic either.
	qc.Store(ctx, "quotes:x:y:Z:1", []byte("x"))
}

func TestQuoteTTL(t *testing.T) {
	cases := map[int64]time.Duration{
		30:   600 * time.Second,
		59:   600 * time.Second,
		60:   300 * time.Second,
		299:  300 * time.Second,
		300:  120 * time.Second,
		3600: 120 * time.Second,
	}
	for estTime, want := range cases {
		if got := QuoteTTL(estTime); got != want {
			t.Errorf("QuoteTTL(%d) = %v, want %v", estTime, got, want)
		}
	}
}

func TestProviderCacheRoundTrip(t *testing.T) {
	client, _ := newTestClient(t)
	pc := NewProviderCache(client)
	ctx := context.Background()

	quote := &bridge.Quote{
		Bridge:    "Hop",
		Fee:       0.25,
		EstTime:   300,
		Liquidity: "1,000,000 USDC",
		Metadata:  map[string]any{"architecture": "AMM-based"},
	}
	pc.SetQuote(ctx, "hop:USDC:ethereum:arbitrum:100", quote, QuoteTTL(quote.EstTime))

	got, ok := pc.GetQuote(ctx, "hop:USDC:ethereum:arbitrum:100")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.Bridge != "Hop" || got.Fee != 0.25 || got.EstTime != 300 {
		t.Errorf("round trip mangled the quote: %+v", got)
	}
}

func TestProviderCacheSurvivesRedisOutage(t *testing.T) {
	client, mr := newTestClient(t)
	pc := NewProviderCache(client)
	ctx := context.Background()

	quote := &bridge.Quote{Bridge: "Across", Fee: 0.1, EstTime: 60}
	pc.SetQuote(ctx, "across:USDC:ethereum:base:50", quote, time.Minute)

	mr.Close()
	if _, ok := pc.GetQuote(ctx, "across:USDC:ethereum:base:50"); !ok {
		t.Error("local tier should serve through a Redis outage")
	}
}

func TestClientStats(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	// miniredis supports INFO; the parse must not error even when the
	// counters are absent.
	stats, err := client.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if rate := stats.HitRate(); rate < 0 || rate > 1 {
		t.Errorf("hit rate out of range: %f", rate)
	}
}

func TestClientMGet(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	client.Set(ctx, "a", "1", time.Minute)
	client.Set(ctx, "c", "3", time.Minute)

	vals := client.MGet(ctx, "a", "b", "c")
	if vals[0] != "1" || vals[1] != "" || vals[2] != "3" {
		t.Errorf("unexpected MGET result: %v", vals)
	}
}

func TestNewAppliesCommandTimeout(t *testing.T) {
	mr := miniredis.RunT(t)

	c, err := New("redis://"+mr.Addr(), 5*time.Second)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Close()
	if c.timeout != 5*time.Second {
		t.Errorf("timeout = %v, want the configured 5s", c.timeout)
	}

	d, err := New("redis://"+mr.Addr(), 0)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer d.Close()
	if d.timeout != defaultCommandTimeout {
		t.Errorf("timeout = %v, want the default", d.timeout)
	}
}
