package providers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/wudi/bridgerouter/internal/bridge"
	"github.com/wudi/bridgerouter/internal/logging"
)

const acrossAPIBase = "https://app.across.to/api"

// Across quotes via the Across Protocol suggested-fees endpoint.
type Across struct {
	cfg     Config
	retry   *bridge.RetryPolicy
	baseURL string
}

func NewAcross(cfg Config) *Across {
	cfg = cfg.withDefaults()
	return &Across{cfg: cfg, retry: bridge.DefaultRetryPolicy(cfg.Retries), baseURL: acrossAPIBase}
}

func (a *Across) Name() string { return "Across" }

func (a *Across) GetQuote(ctx context.Context, req bridge.QuoteRequest) (*bridge.Quote, error) {
	return throughCache(ctx, a.cfg, a.retry, cacheKey("across", req), func(ctx context.Context) (*bridge.Quote, error) {
		return a.fetchOnce(ctx, req)
	}, func() (*bridge.Quote, error) {
		return a.estimate(req)
	})
}

// acrossChainID maps chain names to EVM chain IDs the Across API accepts.
func acrossChainID(chain string) (int64, error) {
	switch strings.ToLower(chain) {
	case "ethereum", "eth", "mainnet":
		return 1, nil
	case "optimism", "opt":
		return 10, nil
	case "polygon", "matic":
		return 137, nil
	case "arbitrum", "arb", "arbitrum-one":
		return 42161, nil
	case "base":
		return 8453, nil
	case "linea":
		return 59144, nil
	case "mode":
		return 34443, nil
	case "zksync", "zksync-era":
		return 324, nil
	case "blast":
		return 81457, nil
	case "lisk":
		return 1135, nil
	case "scroll":
		return 534352, nil
	case "redstone":
		return 690, nil
	case "zora":
		return 7777777, nil
	case "world chain", "wc", "world-chain":
		return 480, nil
	case "ink":
		return 57073, nil
	case "soneium":
		return 1868, nil
	case "unichain":
		return 130, nil
	case "lens":
		return 232, nil
	case "bnb-smart-chain", "bnb":
		return 56, nil
	case "solana":
		return 34268394551451, nil
	case "hyper-evm":
		return 999, nil
	case "plasma":
		return 9745, nil
	case "hyper-core":
		return 1337, nil
	default:
		return 0, bridge.ErrUnsupportedRoute(chain, "")
	}
}

// acrossTokenAddress resolves the origin-chain token contract address.
func acrossTokenAddress(asset, chain string) (string, error) {
	c := strings.ToLower(chain)
	canonical := func(names ...string) bool {
		for _, n := range names {
			if c == n {
				return true
			}
		}
		return false
	}

	switch strings.ToUpper(asset) {
	case "USDC":
		switch {
		case canonical("ethereum", "eth", "mainnet"):
			return "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", nil
		case canonical("arbitrum", "arb", "arbitrum-one"):
			return "0xaf88d065e77c8cC2239327C5EDb3A432268e5831", nil
		case canonical("optimism", "opt"):
			return "0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85", nil
		case canonical("polygon", "matic"):
			return "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359", nil
		case canonical("base"):
			return "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", nil
		}
	case "ETH", "WETH":
		switch {
		case canonical("ethereum", "eth", "mainnet"):
			return "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", nil
		case canonical("arbitrum", "arb", "arbitrum-one"):
			return "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1", nil
		case canonical("optimism", "opt"), canonical("base"):
			return "0x4200000000000000000000000000000000000006", nil
		case canonical("polygon", "matic"):
			return "0x7ceB23fD6bC0adD59E62ac25578270cFf1b9f619", nil
		}
	case "DAI":
		switch {
		case canonical("ethereum", "eth", "mainnet"):
			return "0x6B175474E89094C44Da98b954EedeAC495271d0F", nil
		case canonical("arbitrum", "arb", "arbitrum-one"), canonical("optimism", "opt"):
			return "0xDA10009cBd5D07dd0CeCc66161FC93D7c9000da1", nil
		case canonical("polygon", "matic"):
			return "0x8f3Cf7ad23Cd3CaDbD9735AFf958023239c6A063", nil
		}
	case "WBTC":
		switch {
		case canonical("ethereum", "eth", "mainnet"):
			return "0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599", nil
		case canonical("arbitrum", "arb", "arbitrum-one"):
			return "0x2f2a2543B76A4166549F7aaB2e75Bef0aefC5B0f", nil
		case canonical("optimism", "opt"):
			return "0x68f180fcCe6836688e9084f035309E29Bf0A2095", nil
		}
	}
	return "", bridge.ErrUnsupportedAsset(asset)
}

func (a *Across) fetchOnce(ctx context.Context, req bridge.QuoteRequest) (*bridge.Quote, error) {
	originChainID, err := acrossChainID(req.FromChain)
	if err != nil {
		return nil, bridge.ErrUnsupportedRoute(req.FromChain, req.ToChain)
	}
	destChainID, err := acrossChainID(req.ToChain)
	if err != nil {
		return nil, bridge.ErrUnsupportedRoute(req.FromChain, req.ToChain)
	}
	token, err := acrossTokenAddress(req.Asset, req.FromChain)
	if err != nil {
		return nil, err
	}

	amount := req.Amount
	if amount == "" {
		amount = defaultSmallestUnit(req.Asset)
	}

	url := fmt.Sprintf("%s/suggested-fees?originChainId=%d&destinationChainId=%d&token=%s&amount=%s",
		a.baseURL, originChainID, destChainID, token, amount)

	doc, err := getJSON(ctx, a.cfg.Client, url)
	if err != nil {
		if errors.Is(err, errEstimate) {
			logging.Info("Across API unavailable, creating estimate", zap.Error(err))
			return a.estimate(req)
		}
		return nil, err
	}

	if doc.Get("isAmountTooLow").Bool() {
		return nil, bridge.ErrBadResponse("Amount too low for Across Protocol")
	}
	if !doc.Get("totalRelayFee").Exists() {
		logging.Info("Across response missing fee data, creating estimate")
		return a.estimate(req)
	}

	feePctStr := doc.Get("totalRelayFee.pct").String()
	if feePctStr == "" {
		feePctStr = "0.1"
	}
	feePct, err := strconv.ParseFloat(feePctStr, 64)
	if err != nil {
		feePct = 0.001
	}

	quote := &bridge.Quote{
		Bridge:  "Across",
		Fee:     readableAmount(req.Amount, req.Asset) * feePct,
		EstTime: 240,
		Metadata: map[string]any{
			"total_relay_fee_pct": feePct,
			"capital_fee_percent": doc.Get("capitalFeePercent").String(),
			"network":             "Across Protocol",
			"architecture":        "optimistic_bridging_intent_based",
			"security_model":      "uma_optimistic_oracle",
			"route":               routeLabel(req),
			"note":                "Across uses optimistic validation for fast transfers",
		},
	}

	logging.Info("Across quote retrieved",
		zap.Float64("fee", quote.Fee),
		zap.String("asset", req.Asset),
		zap.Int64("est_time", quote.EstTime))
	return quote, nil
}

// estimate builds a deterministic quote when the API cannot answer. The
// route and asset must still resolve, so unsupported pairs stay errors.
func (a *Across) estimate(req bridge.QuoteRequest) (*bridge.Quote, error) {
	if _, err := acrossChainID(req.FromChain); err != nil {
		return nil, bridge.ErrUnsupportedRoute(req.FromChain, req.ToChain)
	}
	if _, err := acrossChainID(req.ToChain); err != nil {
		return nil, bridge.ErrUnsupportedRoute(req.FromChain, req.ToChain)
	}
	if _, err := acrossTokenAddress(req.Asset, req.FromChain); err != nil {
		return nil, err
	}

	var fee float64
	switch strings.ToUpper(req.Asset) {
	case "USDC", "USDT":
		fee = 0.2
	case "ETH", "WETH":
		fee = 0.0004
	case "DAI":
		fee = 0.25
	case "WBTC":
		fee = 0.000015
	default:
		fee = 0.001
	}

	return &bridge.Quote{
		Bridge:  "Across",
		Fee:     fee,
		EstTime: 240,
		Metadata: map[string]any{
			"estimated":        true,
			"network":          "Across Protocol",
			"architecture":     "optimistic_bridging_intent_based",
			"security_model":   "uma_optimistic_oracle",
			"supported_chains": []string{"ethereum", "optimism", "polygon", "arbitrum", "base", "linea", "zksync", "scroll"},
			"typical_time":     "1-4 minutes",
			"fees":             "0.05-0.15% + gas",
			"route":            routeLabel(req),
			"note":             "Estimated quote - Across uses optimistic validation for fast transfers",
		},
	}, nil
}
