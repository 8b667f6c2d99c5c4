// Package gasprice fetches per-chain gas prices from the Etherscan V2 API
// and estimates the USD cost of bridge transactions. Results are cached in
// Redis; when the API is unreachable a per-chain fallback table keeps
// estimates flowing.
package gasprice

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/wudi/bridgerouter/internal/cache"
	"github.com/wudi/bridgerouter/internal/logging"
)

const etherscanAPIBase = "https://api.etherscan.io/v2/api"

// Gas limits for the two legs of a bridge transfer.
const (
	BridgeDepositGas    uint64 = 150_000
	BridgeWithdrawalGas uint64 = 100_000
)

// defaultETHPriceUSD stands in until the token price service supplies a
// live native-token price.
const defaultETHPriceUSD = 3000.0

// GasPrice is the gas price snapshot for one chain, in gwei.
type GasPrice struct {
	Chain           string   `json:"chain"`
	SafeGasPrice    float64  `json:"safe_gas_price"`
	ProposeGasPrice float64  `json:"propose_gas_price"`
	FastGasPrice    float64  `json:"fast_gas_price"`
	BaseFee         *float64 `json:"base_fee,omitempty"`
	PriorityFee     *float64 `json:"priority_fee,omitempty"`
	ETHPriceUSD     float64  `json:"eth_price_usd"`
}

// Service fetches and caches gas prices. A nil redis client disables
// caching; every lookup then hits the API (or the fallback table).
type Service struct {
	client  *http.Client
	apiKey  string
	redis   *cache.Client
	ttl     time.Duration
	baseURL string
}

// New creates a gas price service. apiKey may be empty; Etherscan serves
// unauthenticated requests at a reduced rate.
func New(apiKey string, redis *cache.Client, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &Service{
		client:  &http.Client{Timeout: 10 * time.Second},
		apiKey:  apiKey,
		redis:   redis,
		ttl:     ttl,
		baseURL: etherscanAPIBase,
	}
}

// chainID maps chain names to the chain IDs the Etherscan V2 API accepts.
func chainID(chain string) (int64, bool) {
	switch strings.ToLower(chain) {
	case "ethereum", "eth", "mainnet":
		return 1, true
	case "arbitrum", "arb", "arbitrum-one":
		return 42161, true
	case "arbitrum-nova":
		return 42170, true
	case "optimism", "op", "opt":
		return 10, true
	case "base":
		return 8453, true
	case "polygon", "matic":
		return 137, true
	case "avalanche", "avax":
		return 43114, true
	case "bsc", "bnb", "binance", "bnb-smart-chain":
		return 56, true
	case "linea":
		return 59144, true
	case "gnosis", "xdai":
		return 100, true
	case "scroll":
		return 534352, true
	case "blast":
		return 81457, true
	case "zksync", "zksync-era":
		return 324, true
	case "mantle":
		return 5000, true
	case "celo":
		return 42220, true
	case "moonbeam":
		return 1284, true
	case "moonriver":
		return 1285, true
	case "cronos":
		return 25, true
	case "fraxtal":
		return 252, true
	case "sei":
		return 1329, true
	case "sonic":
		return 146, true
	case "taiko":
		return 167000, true
	case "unichain":
		return 130, true
	case "world", "world-chain":
		return 480, true
	case "opbnb":
		return 204, true
	default:
		return 0, false
	}
}

// fallbackGwei is the per-chain gas price used when the API is down.
func fallbackGwei(chain string) float64 {
	switch strings.ToLower(chain) {
	case "ethereum", "eth", "mainnet":
		return 20.0
	case "polygon", "matic":
		return 30.0
	case "arbitrum", "arb", "arbitrum-one", "arbitrum-nova", "zksync", "zksync-era":
		return 0.1
	case "optimism", "op", "opt", "base", "blast", "scroll", "fraxtal", "unichain", "opbnb":
		return 0.001
	case "avalanche", "avax":
		return 25.0
	case "bsc", "bnb", "binance", "bnb-smart-chain":
		return 3.0
	case "linea":
		return 0.5
	case "gnosis", "xdai":
		return 2.0
	case "mantle":
		return 0.02
	case "celo":
		return 5.0
	case "moonbeam", "moonriver":
		return 100.0
	case "cronos":
		return 2000.0
	case "taiko":
		return 0.01
	default:
		return 20.0
	}
}

// Fallback returns the static gas price snapshot for a chain.
func Fallback(chain string) *GasPrice {
	base := fallbackGwei(chain)
	baseFee := base * 0.9
	priorityFee := base * 0.1
	return &GasPrice{
		Chain:           strings.ToLower(chain),
		SafeGasPrice:    base,
		ProposeGasPrice: base * 1.25,
		FastGasPrice:    base * 1.5,
		BaseFee:         &baseFee,
		PriorityFee:     &priorityFee,
		ETHPriceUSD:     defaultETHPriceUSD,
	}
}

// GetGasPrice returns the current gas price for a chain. Lookup order:
// Redis cache, gastracker module, eth_gasPrice proxy module, fallback
// table. It never returns an error for a supported chain.
func (s *Service) GetGasPrice(ctx context.Context, chain string) (*GasPrice, error) {
	id, ok := chainID(chain)
	if !ok {
		return nil, fmt.Errorf("unsupported chain: %s", chain)
	}

	cacheKey := "gas_price:" + strings.ToLower(chain)
	if s.redis != nil {
		if raw, ok := s.redis.Get(ctx, cacheKey); ok {
			var gp GasPrice
			if err := json.Unmarshal([]byte(raw), &gp); err == nil {
				return &gp, nil
			}
		}
	}

	gp, err := s.fetch(ctx, chain, id)
	if err != nil {
		logging.Warn("Gas price fetch failed, using fallback",
			zap.String("chain", chain),
			zap.Error(err))
		return Fallback(chain), nil
	}

	if s.redis != nil {
		if raw, err := json.Marshal(gp); err == nil {
			s.redis.Set(ctx, cacheKey, string(raw), s.ttl)
		}
	}
	return gp, nil
}

// fetch tries the gastracker module first, then the proxy module which is
// available on every chain. Each attempt retries with exponential backoff.
func (s *Service) fetch(ctx context.Context, chain string, id int64) (*GasPrice, error) {
	var gp *GasPrice
	op := func() error {
		var err error
		gp, err = s.tryGastracker(ctx, chain, id)
		if err == nil {
			return nil
		}
		gp, err = s.tryProxy(ctx, chain, id)
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = 5 * time.Second

	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, 2), ctx)); err != nil {
		return nil, err
	}
	return gp, nil
}

func (s *Service) apiURL(id int64, module, action string) string {
	url := fmt.Sprintf("%s?chainid=%d&module=%s&action=%s", s.baseURL, id, module, action)
	if s.apiKey != "" {
		url += "&apikey=" + s.apiKey
	}
	return url
}

func (s *Service) tryGastracker(ctx context.Context, chain string, id int64) (*GasPrice, error) {
	doc, err := s.getJSON(ctx, s.apiURL(id, "gastracker", "gasoracle"))
	if err != nil {
		return nil, err
	}

	if doc.Get("status").String() != "1" {
		return nil, fmt.Errorf("gastracker error: %s", doc.Get("message").String())
	}

	result := doc.Get("result")
	fallback := fallbackGwei(chain)

	safe := parseGwei(result.Get("SafeGasPrice").String(), fallback)
	propose := parseGwei(result.Get("ProposeGasPrice").String(), fallback*1.25)
	fast := parseGwei(result.Get("FastGasPrice").String(), fallback*1.5)

	gp := &GasPrice{
		Chain:           strings.ToLower(chain),
		SafeGasPrice:    safe,
		ProposeGasPrice: propose,
		FastGasPrice:    fast,
		ETHPriceUSD:     defaultETHPriceUSD,
	}
	if v := result.Get("suggestBaseFee"); v.Exists() {
		if f, err := strconv.ParseFloat(v.String(), 64); err == nil {
			gp.BaseFee = &f
		}
	}
	if v := result.Get("UsdPrice"); v.Exists() {
		if f, err := strconv.ParseFloat(v.String(), 64); err == nil {
			gp.ETHPriceUSD = f
		}
	}
	return gp, nil
}

func (s *Service) tryProxy(ctx context.Context, chain string, id int64) (*GasPrice, error) {
	doc, err := s.getJSON(ctx, s.apiURL(id, "proxy", "eth_gasPrice"))
	if err != nil {
		return nil, err
	}

	hex := strings.TrimPrefix(doc.Get("result").String(), "0x")
	wei, err := strconv.ParseUint(hex, 16, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid hex gas price %q: %w", hex, err)
	}

	gwei := float64(wei) / 1e9
	baseFee := gwei * 0.9
	priorityFee := gwei * 0.1
	return &GasPrice{
		Chain:           strings.ToLower(chain),
		SafeGasPrice:    gwei,
		ProposeGasPrice: gwei * 1.1,
		FastGasPrice:    gwei * 1.2,
		BaseFee:         &baseFee,
		PriorityFee:     &priorityFee,
		ETHPriceUSD:     defaultETHPriceUSD,
	}, nil
}

func (s *Service) getJSON(ctx context.Context, url string) (gjson.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return gjson.Result{}, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return gjson.Result{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return gjson.Result{}, fmt.Errorf("etherscan status %d: %s", resp.StatusCode, string(body))
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("invalid JSON from etherscan")
	}
	return gjson.ParseBytes(body), nil
}

func parseGwei(s string, fallback float64) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return f
}

// EstimateCostUSD converts a gas limit at the chain's current price into a
// USD cost. useFast selects the fast tier instead of the proposed one.
func EstimateCostUSD(gp *GasPrice, gasLimit uint64, useFast bool) float64 {
	gwei := gp.ProposeGasPrice
	if useFast {
		gwei = gp.FastGasPrice
	}
	ethCost := gwei / 1e9 * float64(gasLimit)
	return ethCost * gp.ETHPriceUSD
}
