package providers

import (
	"context"
	"strings"

	"github.com/wudi/bridgerouter/internal/bridge"
	"github.com/wudi/bridgerouter/internal/logging"
)

// LayerZero produces deterministic quotes for transfers over the LayerZero
// messaging protocol via Superbridge.
type LayerZero struct {
	cfg   Config
	retry *bridge.RetryPolicy
}

func NewLayerZero(cfg Config) *LayerZero {
	cfg = cfg.withDefaults()
	return &LayerZero{cfg: cfg, retry: bridge.DefaultRetryPolicy(cfg.Retries)}
}

func (l *LayerZero) Name() string { return "LayerZero" }

func (l *LayerZero) GetQuote(ctx context.Context, req bridge.QuoteRequest) (*bridge.Quote, error) {
	return throughCache(ctx, l.cfg, l.retry, cacheKey("layerzero", req), func(ctx context.Context) (*bridge.Quote, error) {
		logging.Debug("LayerZero quote - using estimate")
		return l.estimate(req)
	}, nil)
}

// layerzeroChainID maps chain names to EVM chain IDs supported through
// Superbridge.
func layerzeroChainID(chain string) (int64, error) {
	switch strings.ToLower(chain) {
	case "ethereum", "eth", "mainnet":
		return 1, nil
	case "optimism", "opt":
		return 10, nil
	case "bsc", "binance", "bnb", "bnb-smart-chain":
		return 56, nil
	case "polygon", "matic":
		return 137, nil
	case "fantom", "ftm":
		return 250, nil
	case "zksync", "zksync-era":
		return 324, nil
	case "redstone":
		return 690, nil
	case "metis":
		return 1088, nil
	case "lisk":
		return 1135, nil
	case "mantle":
		return 5000, nil
	case "base":
		return 8453, nil
	case "mode":
		return 34443, nil
	case "avalanche", "avax":
		return 43114, nil
	case "arbitrum", "arb", "arbitrum-one":
		return 42161, nil
	case "linea":
		return 59144, nil
	case "blast":
		return 81457, nil
	case "scroll":
		return 534352, nil
	case "zora":
		return 7777777, nil
	default:
		return 0, bridge.ErrUnsupportedRoute(chain, "")
	}
}

// layerzeroToken validates the asset symbol.
func layerzeroToken(asset string) (string, error) {
	switch up := strings.ToUpper(asset); up {
	case "ETH", "WETH":
		return "ETH", nil
	case "USDC", "USDT", "DAI", "WBTC":
		return up, nil
	default:
		return "", bridge.ErrUnsupportedAsset(asset)
	}
}

func (l *LayerZero) estimate(req bridge.QuoteRequest) (*bridge.Quote, error) {
	if _, err := layerzeroChainID(req.FromChain); err != nil {
		return nil, bridge.ErrUnsupportedRoute(req.FromChain, req.ToChain)
	}
	if _, err := layerzeroChainID(req.ToChain); err != nil {
		return nil, bridge.ErrUnsupportedRoute(req.FromChain, req.ToChain)
	}
	if _, err := layerzeroToken(req.Asset); err != nil {
		return nil, err
	}

	// Fees track Stargate, the flagship application on the protocol.
	var fee float64
	switch strings.ToUpper(req.Asset) {
	case "USDC", "USDT":
		fee = 0.12
	case "ETH", "WETH":
		fee = 0.0002
	case "DAI":
		fee = 0.15
	case "WBTC":
		fee = 0.000008
	default:
		fee = 0.0005
	}

	var estTime int64
	switch {
	case strings.EqualFold(req.FromChain, "ethereum"), strings.EqualFold(req.ToChain, "ethereum"):
		estTime = 600
	default:
		estTime = 240
	}

	return &bridge.Quote{
		Bridge:  "LayerZero",
		Fee:     fee,
		EstTime: estTime,
		Metadata: map[string]any{
			"estimated":        true,
			"network":          "LayerZero",
			"architecture":     "omnichain_messaging_protocol",
			"security_model":   "oracle_relayer",
			"supported_chains": []string{"ethereum", "bsc", "avalanche", "polygon", "arbitrum", "optimism", "fantom", "base", "linea", "zksync", "scroll"},
			"note":             "Estimated quote - LayerZero enables omnichain applications via Superbridge",
			"route":            routeLabel(req),
			"via":              "Superbridge",
		},
	}, nil
}
