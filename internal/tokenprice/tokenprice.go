// Package tokenprice fetches USD token prices from CoinGecko with a Redis
// cache and a static fallback table, so fee-to-USD conversion keeps working
// through API outages.
package tokenprice

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/wudi/bridgerouter/internal/cache"
	"github.com/wudi/bridgerouter/internal/logging"
)

const coingeckoAPIBase = "https://api.coingecko.com/api/v3"

// TokenPrice is a USD price snapshot for one token.
type TokenPrice struct {
	Symbol         string   `json:"symbol"`
	CoinGeckoID    string   `json:"coingecko_id"`
	USDPrice       float64  `json:"usd_price"`
	PriceChange24h *float64 `json:"price_change_24h,omitempty"`
	LastUpdated    int64    `json:"last_updated,omitempty"`
}

// Service fetches and caches token prices. A nil redis client disables
// caching.
type Service struct {
	client  *http.Client
	apiKey  string
	redis   *cache.Client
	ttl     time.Duration
	baseURL string
}

// New creates a token price service. apiKey is an optional CoinGecko demo
// key sent via the x-cg-demo-api-key header.
func New(apiKey string, redis *cache.Client, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 300 * time.Second
	}
	return &Service{
		client:  &http.Client{Timeout: 10 * time.Second},
		apiKey:  apiKey,
		redis:   redis,
		ttl:     ttl,
		baseURL: coingeckoAPIBase,
	}
}

// coingeckoID maps token symbols to CoinGecko asset IDs.
func coingeckoID(token string) (string, bool) {
	switch strings.ToUpper(token) {
	case "ETH", "WETH":
		return "ethereum", true
	case "USDC":
		return "usd-coin", true
	case "USDT":
		return "tether", true
	case "DAI":
		return "dai", true
	case "WBTC":
		return "wrapped-bitcoin", true
	case "MATIC", "WMATIC":
		return "matic-network", true
	case "ARB":
		return "arbitrum", true
	case "OP":
		return "optimism", true
	case "AVAX":
		return "avalanche-2", true
	case "BNB":
		return "binancecoin", true
	default:
		return "", false
	}
}

// Fallback returns the static price used when the API is unavailable.
func Fallback(token string) *TokenPrice {
	var id string
	var price float64
	switch strings.ToUpper(token) {
	case "ETH", "WETH":
		id, price = "ethereum", 3000.0
	case "USDC", "USDT", "DAI":
		id, price = "usd-coin", 1.0
	case "WBTC":
		id, price = "wrapped-bitcoin", 60000.0
	case "MATIC", "WMATIC":
		id, price = "matic-network", 0.8
	case "ARB":
		id, price = "arbitrum", 1.2
	case "OP":
		id, price = "optimism", 2.5
	case "AVAX":
		id, price = "avalanche-2", 35.0
	case "BNB":
		id, price = "binancecoin", 500.0
	default:
		id, price = "unknown", 1.0
	}
	return &TokenPrice{
		Symbol:      strings.ToUpper(token),
		CoinGeckoID: id,
		USDPrice:    price,
	}
}

// GetTokenPrice returns the USD price for a token. Lookup order: Redis
// cache, CoinGecko, fallback table. It never returns an error for a token
// in the fallback table; unknown tokens get the $1.00 default.
func (s *Service) GetTokenPrice(ctx context.Context, token string) (*TokenPrice, error) {
	id, ok := coingeckoID(token)
	if !ok {
		logging.Debug("Token not mapped to CoinGecko, using fallback",
			zap.String("token", token))
		return Fallback(token), nil
	}

	cacheKey := "token_price:" + strings.ToUpper(token)
	if s.redis != nil {
		if raw, ok := s.redis.Get(ctx, cacheKey); ok {
			var tp TokenPrice
			if err := json.Unmarshal([]byte(raw), &tp); err == nil {
				return &tp, nil
			}
		}
	}

	tp, err := s.fetch(ctx, token, id)
	if err != nil {
		logging.Warn("Token price fetch failed, using fallback",
			zap.String("token", token),
			zap.Error(err))
		return Fallback(token), nil
	}

	if s.redis != nil {
		if raw, err := json.Marshal(tp); err == nil {
			s.redis.Set(ctx, cacheKey, string(raw), s.ttl)
		}
	}
	return tp, nil
}

func (s *Service) fetch(ctx context.Context, token, id string) (*TokenPrice, error) {
	var tp *TokenPrice
	op := func() error {
		var err error
		tp, err = s.fetchOnce(ctx, token, id)
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = 5 * time.Second

	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, 2), ctx)); err != nil {
		return nil, err
	}
	return tp, nil
}

func (s *Service) fetchOnce(ctx context.Context, token, id string) (*TokenPrice, error) {
	url := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd&include_24hr_change=true", s.baseURL, id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if s.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coingecko status %d: %s", resp.StatusCode, string(body))
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid JSON from coingecko")
	}

	entry := gjson.ParseBytes(body).Get(id)
	if !entry.Exists() {
		return nil, fmt.Errorf("no price data for %s", token)
	}

	tp := &TokenPrice{
		Symbol:      strings.ToUpper(token),
		CoinGeckoID: id,
		USDPrice:    entry.Get("usd").Float(),
		LastUpdated: time.Now().Unix(),
	}
	if change := entry.Get("usd_24h_change"); change.Exists() {
		f := change.Float()
		tp.PriceChange24h = &f
	}

	logging.Info("Token price fetched",
		zap.String("token", tp.Symbol),
		zap.Float64("usd", tp.USDPrice))
	return tp, nil
}

// ConvertToUSD converts a token amount to USD at the given price.
func ConvertToUSD(amount float64, tp *TokenPrice) float64 {
	return amount * tp.USDPrice
}
