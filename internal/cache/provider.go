package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/wudi/bridgerouter/internal/bridge"
	"github.com/wudi/bridgerouter/internal/logging"
)

// ProviderCache caches individual provider quotes. A small in-process LRU
// sits in front of Redis so provider responses keep serving through a Redis
// outage; entries in the LRU expire at the shortest dynamic TTL.
type ProviderCache struct {
	client *Client
	local  *expirable.LRU[string, *bridge.Quote]
}

const (
	providerCacheSize = 4096
	// localTTL is deliberately the minimum dynamic TTL so the local tier
	// never outlives the Redis entry.
	localTTL = 120 * time.Second
)

// NewProviderCache creates the provider-level cache. client may be nil for
// a purely in-process cache.
func NewProviderCache(client *Client) *ProviderCache {
	return &ProviderCache{
		client: client,
		local:  expirable.NewLRU[string, *bridge.Quote](providerCacheSize, nil, localTTL),
	}
}

// QuoteTTL picks the cache TTL for a provider quote from its estimated
// transfer time: fast routes change price often, slow ones do not.
func QuoteTTL(estTime int64) time.Duration {
	switch {
	case estTime < 60:
		return 600 * time.Second
	case estTime < 300:
		return 300 * time.Second
	default:
		return 120 * time.Second
	}
}

// GetQuote implements bridge.QuoteCache.
func (p *ProviderCache) GetQuote(ctx context.Context, key string) (*bridge.Quote, bool) {
	if q, ok := p.local.Get(key); ok {
		return q, true
	}
	if p.client == nil {
		return nil, false
	}

	val, ok := p.client.Get(ctx, key)
	if !ok {
		return nil, false
	}

	var q bridge.Quote
	if err := json.Unmarshal([]byte(val), &q); err != nil {
		logging.Warn("Corrupt provider cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	p.local.Add(key, &q)
	return &q, true
}

// SetQuote implements bridge.QuoteCache.
func (p *ProviderCache) SetQuote(ctx context.Context, key string, q *bridge.Quote, ttl time.Duration) {
	p.local.Add(key, q)
	if p.client == nil {
		return
	}

	data, err := json.Marshal(q)
	if err != nil {
		logging.Warn("Failed to encode provider quote", zap.String("key", key), zap.Error(err))
		return
	}
	p.client.Set(ctx, key, string(data), ttl)
}
