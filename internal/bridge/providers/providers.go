// Package providers contains one adapter per supported bridge protocol.
// Every adapter normalizes its upstream API into a bridge.Quote, falls back
// to a deterministic estimate when the API cannot answer, and caches the
// result keyed by route.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/wudi/bridgerouter/internal/bridge"
	"github.com/wudi/bridgerouter/internal/cache"
	"github.com/wudi/bridgerouter/internal/logging"
)

// Config is shared by every adapter constructor.
type Config struct {
	// Client is the HTTP client used for upstream calls. A default with a
	// 10s transport timeout is used when nil; the per-provider context
	// deadline is the effective bound.
	Client *http.Client
	// Cache holds provider-level quotes. Nil disables caching.
	Cache bridge.QuoteCache
	// Retries is the number of retry attempts after the first call.
	Retries int
}

func (c Config) withDefaults() Config {
	if c.Client == nil {
		c.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if c.Retries <= 0 {
		c.Retries = 3
	}
	return c
}

// All returns every adapter in registry order. The aggregator reports
// results in this order.
func All(cfg Config) []bridge.Provider {
	return []bridge.Provider{
		NewHop(cfg),
		NewAcross(cfg),
		NewStargate(cfg),
		NewCBridge(cfg),
		NewAxelar(cfg),
		NewEverclear(cfg),
		NewOrbiter(cfg),
		NewSynapse(cfg),
		NewWormhole(cfg),
		NewLayerZero(cfg),
	}
}

// errEstimate marks soft failures where a deterministic estimate stands in
// for a live quote: the API was unreachable, replied with an unexpected
// status, or returned a body that does not parse.
var errEstimate = errors.New("estimate fallback")

// cacheKey builds the provider-level cache key. The default amount matches
// one unit of a six-decimal token, the most common request.
func cacheKey(provider string, req bridge.QuoteRequest) string {
	amount := req.Amount
	if amount == "" {
		amount = "1000000"
	}
	return fmt.Sprintf("%s:%s:%s:%s:%s", provider, req.Asset, req.FromChain, req.ToChain, amount)
}

// throughCache runs the common adapter pipeline: cache probe, retried fetch,
// cache write with a TTL derived from the quote's estimated transfer time.
// When the retry loop exhausts on upstream throttling (429/503), estimate
// stands in so the route degrades instead of dropping out. estimate may be
// nil for adapters whose fetch can never be throttled.
func throughCache(ctx context.Context, cfg Config, retry *bridge.RetryPolicy, key string,
	fetch func(context.Context) (*bridge.Quote, error),
	estimate func() (*bridge.Quote, error)) (*bridge.Quote, error) {

	if cfg.Cache != nil {
		if q, ok := cfg.Cache.GetQuote(ctx, key); ok {
			return q, nil
		}
	}

	q, err := retry.Execute(ctx, fetch)
	if err != nil {
		if estimate == nil || !throttled(err) {
			return nil, err
		}
		logging.Warn("Upstream still throttled after retries, creating estimate",
			zap.String("key", key), zap.Error(err))
		if q, err = estimate(); err != nil {
			return nil, err
		}
	}

	if cfg.Cache != nil {
		cfg.Cache.SetQuote(ctx, key, q, cache.QuoteTTL(q.EstTime))
	}
	return q, nil
}

// throttled reports upstream pressure that persisted through the retry loop.
func throttled(err error) bool {
	switch bridge.KindOf(err) {
	case bridge.KindRateLimited, bridge.KindServiceUnavailable:
		return true
	}
	return false
}

// getJSON fetches url and parses the body. 429 and 503 surface as retryable
// adapter errors; transport failures, other non-2xx statuses, and malformed
// bodies come back wrapped in errEstimate so the caller can fall back.
func getJSON(ctx context.Context, client *http.Client, url string) (gjson.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%w: %v", errEstimate, err)
	}
	return doJSON(client, req)
}

// postJSON sends payload as a JSON body and parses the response like getJSON.
func postJSON(ctx context.Context, client *http.Client, url string, payload any) (gjson.Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%w: %v", errEstimate, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%w: %v", errEstimate, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return doJSON(client, req)
}

func doJSON(client *http.Client, req *http.Request) (gjson.Result, error) {
	resp, err := client.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%w: %v", errEstimate, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return gjson.Result{}, bridge.ErrRateLimited()
	case resp.StatusCode == http.StatusServiceUnavailable:
		return gjson.Result{}, bridge.ErrServiceUnavailable()
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		io.Copy(io.Discard, resp.Body)
		return gjson.Result{}, fmt.Errorf("%w: status %d", errEstimate, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%w: %v", errEstimate, err)
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("%w: invalid JSON body", errEstimate)
	}
	return gjson.ParseBytes(body), nil
}

// readableAmount converts a smallest-unit amount string to token units,
// defaulting to one whole token when the string is absent or malformed.
func readableAmount(amount, asset string) float64 {
	divisor := math.Pow10(bridge.TokenDecimals(asset))
	if amount == "" {
		return 1.0
	}
	f, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return 1.0
	}
	return f / divisor
}

// defaultSmallestUnit is one whole token in the asset's smallest unit.
func defaultSmallestUnit(asset string) string {
	return bridge.AmountToSmallestUnit(1.0, asset)
}

// routeLabel formats the route string carried in quote metadata.
func routeLabel(req bridge.QuoteRequest) string {
	return fmt.Sprintf("%s -> %s", req.FromChain, req.ToChain)
}

// slippageOrDefault substitutes the service-wide default tolerance when the
// request carries none.
func slippageOrDefault(slippage float64) float64 {
	if slippage <= 0 {
		return bridge.DefaultSlippage
	}
	return slippage
}
