package providers

import (
	"context"
	"strings"

	"github.com/wudi/bridgerouter/internal/bridge"
	"github.com/wudi/bridgerouter/internal/logging"
)

// Synapse produces deterministic quotes for the Synapse Protocol cross-chain
// AMM. The Synapse quoting API needs an SDK-level integration, so this
// adapter validates the route and prices it from typical fees.
type Synapse struct {
	cfg   Config
	retry *bridge.RetryPolicy
}

func NewSynapse(cfg Config) *Synapse {
	cfg = cfg.withDefaults()
	return &Synapse{cfg: cfg, retry: bridge.DefaultRetryPolicy(cfg.Retries)}
}

func (s *Synapse) Name() string { return "Synapse" }

func (s *Synapse) GetQuote(ctx context.Context, req bridge.QuoteRequest) (*bridge.Quote, error) {
	return throughCache(ctx, s.cfg, s.retry, cacheKey("synapse", req), func(ctx context.Context) (*bridge.Quote, error) {
		logging.Debug("Synapse quote - using estimate")
		return s.estimate(req)
	}, nil)
}

// synapseChainID maps chain names to Synapse chain IDs.
func synapseChainID(chain string) (int64, error) {
	switch strings.ToLower(chain) {
	case "ethereum", "eth", "mainnet":
		return 1, nil
	case "arbitrum", "arb", "arbitrum-one":
		return 42161, nil
	case "optimism", "opt":
		return 10, nil
	case "polygon", "matic":
		return 137, nil
	case "avalanche", "avax":
		return 43114, nil
	case "bsc", "binance", "bnb":
		return 56, nil
	case "fantom", "ftm":
		return 250, nil
	case "aurora":
		return 1313161554, nil
	case "harmony":
		return 1666600000, nil
	case "boba":
		return 288, nil
	case "moonbeam":
		return 1284, nil
	case "moonriver":
		return 1285, nil
	case "cronos":
		return 25, nil
	case "metis":
		return 1088, nil
	case "dfk", "defikingdoms":
		return 53935, nil
	case "klaytn":
		return 8217, nil
	case "base":
		return 8453, nil
	case "blast":
		return 81457, nil
	case "scroll":
		return 534352, nil
	default:
		return 0, bridge.ErrUnsupportedRoute(chain, "")
	}
}

// synapseToken maps asset symbols, including Synapse-native nUSD/nETH/nBTC.
func synapseToken(asset string) (string, error) {
	switch up := strings.ToUpper(asset); up {
	case "USDC", "USDT", "DAI", "WBTC", "SYN":
		return up, nil
	case "ETH", "WETH":
		return "ETH", nil
	case "NUSD", "NETH", "NBTC":
		return up, nil
	default:
		return "", bridge.ErrUnsupportedAsset(asset)
	}
}

func (s *Synapse) estimate(req bridge.QuoteRequest) (*bridge.Quote, error) {
	if _, err := synapseChainID(req.FromChain); err != nil {
		return nil, bridge.ErrUnsupportedRoute(req.FromChain, req.ToChain)
	}
	if _, err := synapseChainID(req.ToChain); err != nil {
		return nil, bridge.ErrUnsupportedRoute(req.FromChain, req.ToChain)
	}
	if _, err := synapseToken(req.Asset); err != nil {
		return nil, err
	}

	var fee float64
	switch strings.ToUpper(req.Asset) {
	case "USDC", "USDT":
		fee = 0.15
	case "NUSD":
		fee = 0.10
	case "ETH", "WETH", "NETH":
		fee = 0.0003
	case "DAI":
		fee = 0.18
	case "WBTC", "NBTC":
		fee = 0.00001
	case "SYN":
		fee = 1.0
	default:
		fee = 0.0005
	}

	var estTime int64
	switch {
	case strings.EqualFold(req.FromChain, "ethereum"), strings.EqualFold(req.ToChain, "ethereum"):
		estTime = 900
	default:
		estTime = 300
	}

	return &bridge.Quote{
		Bridge:  "Synapse",
		Fee:     fee,
		EstTime: estTime,
		Metadata: map[string]any{
			"estimated":        true,
			"network":          "Synapse Protocol",
			"architecture":     "cross_chain_amm",
			"security_model":   "canonical_bridges_plus_synapse_chain",
			"supported_chains": []string{"ethereum", "bsc", "polygon", "arbitrum", "optimism", "avalanche", "fantom", "base", "blast"},
			"note":             "Estimated quote - Synapse uses cross-chain AMM with canonical bridges",
			"route":            routeLabel(req),
			"native_assets":    []string{"nUSD", "nETH", "nBTC"},
			"fee_structure":    "Swap fee (0.04-0.06%) + bridge fee",
		},
	}, nil
}
