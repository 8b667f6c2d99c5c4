package providers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/wudi/bridgerouter/internal/bridge"
	"github.com/wudi/bridgerouter/internal/logging"
)

const axelarAPIBase = "https://api.axelarscan.io"

// Axelar quotes via the Axelarscan GMP gas fee estimation endpoint. Axelar
// spans EVM, Cosmos, Sui, Stellar and XRPL ecosystems.
type Axelar struct {
	cfg     Config
	retry   *bridge.RetryPolicy
	baseURL string
}

func NewAxelar(cfg Config) *Axelar {
	cfg = cfg.withDefaults()
	return &Axelar{cfg: cfg, retry: bridge.DefaultRetryPolicy(cfg.Retries), baseURL: axelarAPIBase}
}

func (a *Axelar) Name() string { return "Axelar" }

func (a *Axelar) GetQuote(ctx context.Context, req bridge.QuoteRequest) (*bridge.Quote, error) {
	return throughCache(ctx, a.cfg, a.retry, cacheKey("axelar", req), func(ctx context.Context) (*bridge.Quote, error) {
		return a.fetchOnce(ctx, req)
	}, func() (*bridge.Quote, error) {
		return a.estimate(req)
	})
}

// axelarChainName maps chain names to Axelar chain identifiers across all
// supported ecosystems.
func axelarChainName(chain string) (string, error) {
	switch strings.ToLower(chain) {
	case "ethereum", "eth", "mainnet":
		return "ethereum", nil
	case "polygon", "matic":
		return "polygon", nil
	case "arbitrum", "arbitrum-one":
		return "arbitrum", nil
	case "optimism", "opt":
		return "optimism", nil
	case "avalanche", "avax":
		return "avalanche", nil
	case "fantom", "ftm":
		return "fantom", nil
	case "moonbeam", "glmr":
		return "moonbeam", nil
	case "bnb", "bsc", "binance":
		return "binance", nil
	case "base":
		return "base", nil
	case "linea":
		return "linea", nil
	case "mantle":
		return "mantle", nil
	case "celo":
		return "celo", nil
	case "kava":
		return "kava", nil
	case "filecoin":
		return "filecoin", nil
	case "blast":
		return "blast", nil
	case "fraxtal":
		return "fraxtal", nil
	case "cosmos", "atom":
		return "cosmoshub", nil
	case "osmosis", "osmo":
		return "osmosis", nil
	case "juno":
		return "juno", nil
	case "crescent":
		return "crescent", nil
	case "kujira":
		return "kujira", nil
	case "neutron":
		return "neutron", nil
	case "injective":
		return "injective", nil
	case "secret":
		return "secret-snip", nil
	case "terra":
		return "terra", nil
	case "terra2":
		return "terra-2", nil
	case "umee":
		return "umee", nil
	case "carbon":
		return "carbon", nil
	case "ojo":
		return "ojo", nil
	case "sui":
		return "sui", nil
	case "stellar":
		return "stellar", nil
	case "xrpl":
		return "xrpl", nil
	case "saga":
		return "saga", nil
	default:
		return "", bridge.ErrUnsupportedRoute(chain, "")
	}
}

// axelarDenom maps asset symbols to Axelar denominations. Unknown assets
// pass through lowercased so new gateway tokens work without a release.
func axelarDenom(asset string) string {
	switch strings.ToUpper(asset) {
	case "USDC":
		return "uusdc"
	case "USDT":
		return "uusdt"
	case "DAI":
		return "dai-wei"
	case "ETH", "WETH":
		return "eth-wei"
	case "WBTC":
		return "wbtc-satoshi"
	case "FRAX":
		return "frax-wei"
	case "MATIC":
		return "matic-wei"
	case "DOT":
		return "dot-planck"
	case "AVAX":
		return "avax-wei"
	case "FTM":
		return "ftm-wei"
	case "GLMR":
		return "glmr-wei"
	case "BNB":
		return "bnb-wei"
	case "AXL":
		return "uaxl"
	case "OSMO":
		return "uosmo"
	default:
		logging.Warn("Unknown Axelar asset symbol, using as-is", zap.String("asset", asset))
		return strings.ToLower(asset)
	}
}

// axelarAmount converts a smallest-unit amount to token units using the
// denomination's decimal count.
func axelarAmount(amount, asset string) (float64, error) {
	f, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return 0, bridge.ErrBadResponse("Invalid amount: " + amount)
	}
	var divisor float64
	switch strings.ToUpper(asset) {
	case "USDC", "USDT", "AXL", "USYC":
		divisor = 1e6
	case "WBTC":
		divisor = 1e8
	case "DOT":
		divisor = 1e10
	default:
		divisor = 1e18
	}
	return f / divisor, nil
}

// axelarTransferTime reflects ecosystem hops: Cosmos routes settle fast,
// non-EVM ecosystems take the longest.
func axelarTransferTime(fromChain, toChain string) int64 {
	from := strings.ToLower(fromChain)
	to := strings.ToLower(toChain)

	cosmos := func(c string) bool {
		return strings.Contains(c, "cosmos") || strings.Contains(c, "osmosis")
	}
	exotic := func(c string) bool {
		return c == "sui" || c == "stellar"
	}

	switch {
	case (from == "cosmos" && to == "osmosis") || (from == "osmosis" && to == "cosmos"):
		return 60
	case cosmos(from) || cosmos(to):
		return 300
	case exotic(from) || exotic(to):
		return 1200
	default:
		return 900
	}
}

func (a *Axelar) fetchOnce(ctx context.Context, req bridge.QuoteRequest) (*bridge.Quote, error) {
	sourceChain, err := axelarChainName(req.FromChain)
	if err != nil {
		return nil, bridge.ErrUnsupportedRoute(req.FromChain, req.ToChain)
	}
	destinationChain, err := axelarChainName(req.ToChain)
	if err != nil {
		return nil, bridge.ErrUnsupportedRoute(req.FromChain, req.ToChain)
	}

	payload := map[string]string{
		"sourceChain":        sourceChain,
		"destinationChain":   destinationChain,
		"sourceTokenAddress": "0x0000000000000000000000000000000000000000",
		"gasMultiplier":      "auto",
	}

	doc, err := postJSON(ctx, a.cfg.Client, a.baseURL+"/gmp/estimateGasFee", payload)
	if err != nil {
		if errors.Is(err, errEstimate) {
			logging.Info("Axelar API unavailable, creating estimate", zap.Error(err))
			return a.estimate(req)
		}
		return nil, err
	}

	totalFee := doc.Get("totalFee")
	if !totalFee.Exists() {
		logging.Info("Axelar response missing totalFee, creating estimate")
		return a.estimate(req)
	}

	fee, err := axelarAmount(totalFee.String(), req.Asset)
	if err != nil {
		return nil, err
	}

	quote := &bridge.Quote{
		Bridge:  "Axelar",
		Fee:     fee,
		EstTime: axelarTransferTime(req.FromChain, req.ToChain),
		Metadata: map[string]any{
			"total_fee":         totalFee.String(),
			"base_fee":          doc.Get("baseFee").String(),
			"execution_fee":     doc.Get("executionFee").String(),
			"express_supported": doc.Get("isExpressSupported").Bool(),
			"gas_multiplier":    doc.Get("gasMultiplier").Float(),
			"denom":             axelarDenom(req.Asset),
			"network":           "Axelar",
			"architecture":      "proof_of_stake_validator_network",
			"capabilities":      []string{"GMP", "ITS", "multi_ecosystem"},
			"security_model":    "validator_consensus",
			"route":             routeLabel(req),
		},
	}

	logging.Info("Axelar GMP quote retrieved",
		zap.Float64("fee", quote.Fee),
		zap.Int64("est_time", quote.EstTime))
	return quote, nil
}

func (a *Axelar) estimate(req bridge.QuoteRequest) (*bridge.Quote, error) {
	if _, err := axelarChainName(req.FromChain); err != nil {
		return nil, bridge.ErrUnsupportedRoute(req.FromChain, req.ToChain)
	}
	if _, err := axelarChainName(req.ToChain); err != nil {
		return nil, bridge.ErrUnsupportedRoute(req.FromChain, req.ToChain)
	}

	var fee float64
	switch strings.ToUpper(req.Asset) {
	case "USDC", "USDT", "DAI":
		fee = 0.5
	case "ETH", "WETH":
		fee = 0.001
	case "WBTC":
		fee = 0.0001
	case "AXL":
		fee = 1.0
	default:
		fee = 0.002
	}

	return &bridge.Quote{
		Bridge:  "Axelar",
		Fee:     fee,
		EstTime: axelarTransferTime(req.FromChain, req.ToChain),
		Metadata: map[string]any{
			"estimated":            true,
			"network":              "Axelar",
			"architecture":         "proof_of_stake_validator_network",
			"capabilities":         []string{"GMP", "ITS", "multi_ecosystem"},
			"security_model":       "validator_consensus",
			"supported_ecosystems": []string{"EVM", "Cosmos", "Sui", "Stellar", "XRPL"},
			"note":                 "Estimated quote - supports both Gateway tokens and Interchain tokens",
			"route":                routeLabel(req),
		},
	}, nil
}
