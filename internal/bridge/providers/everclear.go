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

const everclearAPIBase = "https://api.everclear.org"

// Everclear quotes via the intent-based routes/quotes endpoint.
type Everclear struct {
	cfg     Config
	retry   *bridge.RetryPolicy
	baseURL string
}

func NewEverclear(cfg Config) *Everclear {
	cfg = cfg.withDefaults()
	return &Everclear{cfg: cfg, retry: bridge.DefaultRetryPolicy(cfg.Retries), baseURL: everclearAPIBase}
}

func (e *Everclear) Name() string { return "Everclear" }

func (e *Everclear) GetQuote(ctx context.Context, req bridge.QuoteRequest) (*bridge.Quote, error) {
	return throughCache(ctx, e.cfg, e.retry, cacheKey("everclear", req), func(ctx context.Context) (*bridge.Quote, error) {
		return e.fetchOnce(ctx, req)
	}, func() (*bridge.Quote, error) {
		return e.estimate(req)
	})
}

// everclearChainID maps chain names to the chain IDs Everclear routes over.
func everclearChainID(chain string) (int64, error) {
	switch strings.ToLower(chain) {
	case "ethereum", "eth", "mainnet":
		return 1, nil
	case "polygon", "matic":
		return 137, nil
	case "arbitrum", "arbitrum-one":
		return 42161, nil
	case "optimism", "opt":
		return 10, nil
	case "bnb", "bsc", "binance":
		return 56, nil
	case "gnosis", "xdai":
		return 100, nil
	case "base":
		return 8453, nil
	case "linea":
		return 59144, nil
	case "mantle":
		return 5000, nil
	case "scroll":
		return 534352, nil
	case "solana":
		return 1399811149, nil
	default:
		return 0, bridge.ErrUnsupportedRoute(chain, "")
	}
}

// everclearTicker maps asset symbols to Everclear ticker hashes.
func everclearTicker(asset string) (string, error) {
	switch strings.ToUpper(asset) {
	case "USDC":
		return "USDC", nil
	case "USDT":
		return "USDT", nil
	case "WETH", "ETH":
		return "WETH", nil
	case "MATIC", "WMATIC":
		return "MATIC", nil
	case "ARB":
		return "ARB", nil
	case "OP":
		return "OP", nil
	case "AVAX":
		return "WAVAX", nil
	case "BNB":
		return "WBNB", nil
	case "FTM":
		return "WFTM", nil
	case "DAI":
		return "DAI", nil
	case "WBTC":
		return "WBTC", nil
	case "SOL":
		return "SOL", nil
	default:
		return "", bridge.ErrUnsupportedAsset(asset)
	}
}

// everclearSettlementTime reflects intent settlement: adjacent L2 pairs
// clear in under two minutes, Ethereum legs wait for finality.
func everclearSettlementTime(fromChain, toChain string) int64 {
	from := strings.ToLower(fromChain)
	to := strings.ToLower(toChain)
	pair := func(a, b string) bool {
		return (from == a && to == b) || (from == b && to == a)
	}

	switch {
	case pair("arbitrum", "optimism"):
		return 45
	case pair("polygon", "arbitrum"), pair("polygon", "optimism"):
		return 90
	case from == "ethereum" || to == "ethereum":
		return 240
	default:
		return 120
	}
}

// weiToEther converts a wei string to ether units.
func weiToEther(wei string) float64 {
	f, err := strconv.ParseFloat(wei, 64)
	if err != nil {
		return 0
	}
	return f / 1e18
}

func (e *Everclear) fetchOnce(ctx context.Context, req bridge.QuoteRequest) (*bridge.Quote, error) {
	originChainID, err := everclearChainID(req.FromChain)
	if err != nil {
		return nil, bridge.ErrUnsupportedRoute(req.FromChain, req.ToChain)
	}
	destChainID, err := everclearChainID(req.ToChain)
	if err != nil {
		return nil, bridge.ErrUnsupportedRoute(req.FromChain, req.ToChain)
	}
	ticker, err := everclearTicker(req.Asset)
	if err != nil {
		return nil, err
	}

	amount := req.Amount
	if amount == "" {
		amount = defaultSmallestUnit(req.Asset)
	}

	payload := map[string]any{
		"origin":       strconv.FormatInt(originChainID, 10),
		"destinations": []string{strconv.FormatInt(destChainID, 10)},
		"inputAsset":   ticker,
		"amount":       amount,
	}

	doc, err := postJSON(ctx, e.cfg.Client, e.baseURL+"/routes/quotes", payload)
	if err != nil {
		if errors.Is(err, errEstimate) {
			logging.Info("Everclear API unavailable, creating estimate", zap.Error(err))
			return e.estimate(req)
		}
		return nil, err
	}

	if !doc.Get("totalFeeBps").Exists() {
		logging.Info("Everclear response missing fee data, creating estimate")
		return e.estimate(req)
	}

	fixedFee := weiToEther(doc.Get("fixedFeeUnits").String())
	variableFeeBps := doc.Get("variableFeeBps").Int()
	variableFeePercent := float64(variableFeeBps) / 10000.0

	amountF := weiToEther(amount)
	totalFee := fixedFee + amountF*(variableFeePercent/100.0)

	quote := &bridge.Quote{
		Bridge:  "Everclear",
		Fee:     totalFee,
		EstTime: everclearSettlementTime(req.FromChain, req.ToChain),
		Metadata: map[string]any{
			"fixed_fee":        fixedFee,
			"variable_fee_bps": variableFeeBps,
			"total_fee_bps":    doc.Get("totalFeeBps").Int(),
			"expected_amount":  weiToEther(doc.Get("expectedAmount").String()),
			"current_limit":    weiToEther(doc.Get("currentLimit").String()),
			"architecture":     "intent_based",
			"security":         "intent_settlement",
			"primitive":        "intents",
			"network":          "Everclear",
			"capabilities":     []string{"crosschain_intents", "arbitrary_data", "intent_liquidity"},
			"settlement_model": "intent_based_clearing",
		},
	}

	logging.Info("Everclear intent quote retrieved",
		zap.Float64("fee", quote.Fee),
		zap.Int64("est_time", quote.EstTime))
	return quote, nil
}

func (e *Everclear) estimate(req bridge.QuoteRequest) (*bridge.Quote, error) {
	if _, err := everclearChainID(req.FromChain); err != nil {
		return nil, bridge.ErrUnsupportedRoute(req.FromChain, req.ToChain)
	}
	if _, err := everclearChainID(req.ToChain); err != nil {
		return nil, bridge.ErrUnsupportedRoute(req.FromChain, req.ToChain)
	}
	if _, err := everclearTicker(req.Asset); err != nil {
		return nil, err
	}

	var fee float64
	switch strings.ToUpper(req.Asset) {
	case "USDC", "USDT":
		fee = 0.25
	case "ETH", "WETH":
		fee = 0.0005
	case "DAI":
		fee = 0.3
	case "WBTC":
		fee = 0.0001
	default:
		fee = 0.001
	}

	return &bridge.Quote{
		Bridge:  "Everclear",
		Fee:     fee,
		EstTime: everclearSettlementTime(req.FromChain, req.ToChain),
		Metadata: map[string]any{
			"estimated":        true,
			"architecture":     "intent_based",
			"security":         "intent_settlement",
			"primitive":        "intents",
			"network":          "Everclear",
			"capabilities":     []string{"crosschain_intents", "arbitrary_data", "intent_liquidity"},
			"settlement_model": "intent_based_clearing",
			"note":             "Estimated quote - Everclear uses intent-based settlement for efficient transfers",
			"route":            routeLabel(req),
		},
	}, nil
}
