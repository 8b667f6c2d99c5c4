package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// State is the outcome of an aggregated quote cache lookup. It maps onto
// the X-Cache response header.
type State string

const (
	StateHit   State = "HIT"
	StateMiss  State = "MISS"
	StateStale State = "STALE"
)

// QuoteCache is the two-tier cache for aggregated quote responses. Every
// response is written under two keys: a fresh key with a short TTL and a
// stale key with a long one. When the fresh entry has expired but the
// upstream fan-out fails to produce routes, the stale entry still serves.
type QuoteCache struct {
	client   *Client
	freshTTL time.Duration
	staleTTL time.Duration
}

// NewQuoteCache creates the two-tier cache. client may be nil, in which
// case every lookup is a miss and writes are dropped.
func NewQuoteCache(client *Client, freshTTL, staleTTL time.Duration) *QuoteCache {
	return &QuoteCache{
		client:   client,
		freshTTL: freshTTL,
		staleTTL: staleTTL,
	}
}

// Key builds the canonical cache key for a quote request: chains
// lowercased, token uppercased, amount in its shortest float form.
func Key(fromChain, toChain, token string, amount float64) string {
	return fmt.Sprintf("quotes:%s:%s:%s:%s",
		strings.ToLower(fromChain),
		strings.ToLower(toChain),
		strings.ToUpper(token),
		strconv.FormatFloat(amount, 'f', -1, 64),
	)
}

func staleKey(key string) string {
	return key + "_stale"
}

// GetFresh returns the fresh entry for key, if any.
func (q *QuoteCache) GetFresh(ctx context.Context, key string) ([]byte, bool) {
	if q.client == nil {
		return nil, false
	}
	val, ok := q.client.Get(ctx, key)
	if !ok {
		return nil, false
	}
	return []byte(val), true
}

// GetStale returns the stale entry for key, if any.
func (q *QuoteCache) GetStale(ctx context.Context, key string) ([]byte, bool) {
	if q.client == nil {
		return nil, false
	}
	val, ok := q.client.Get(ctx, staleKey(key))
	if !ok {
		return nil, false
	}
	return []byte(val), true
}

// Store writes a response under both tiers.
func (q *QuoteCache) Store(ctx context.Context, key string, data []byte) {
	if q.client == nil {
		return
	}
	q.client.Set(ctx, key, string(data), q.freshTTL)
	q.client.Set(ctx, staleKey(key), string(data), q.staleTTL)
}
