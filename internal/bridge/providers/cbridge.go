package providers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/wudi/bridgerouter/internal/bridge"
	"github.com/wudi/bridgerouter/internal/logging"
)

const cbridgeAPIBase = "https://cbridge-prod2.celer.app/v2"

// CBridge quotes via the Celer cBridge estimateAmt endpoint, with median
// observed latency from a companion endpoint.
type CBridge struct {
	cfg     Config
	retry   *bridge.RetryPolicy
	baseURL string
}

func NewCBridge(cfg Config) *CBridge {
	cfg = cfg.withDefaults()
	return &CBridge{cfg: cfg, retry: bridge.DefaultRetryPolicy(cfg.Retries), baseURL: cbridgeAPIBase}
}

func (c *CBridge) Name() string { return "Celer cBridge" }

func (c *CBridge) GetQuote(ctx context.Context, req bridge.QuoteRequest) (*bridge.Quote, error) {
	return throughCache(ctx, c.cfg, c.retry, cacheKey("cbridge", req), func(ctx context.Context) (*bridge.Quote, error) {
		return c.fetchOnce(ctx, req)
	}, func() (*bridge.Quote, error) {
		return c.estimate(req)
	})
}

// cbridgeChainID maps chain names to cBridge chain IDs.
func cbridgeChainID(chain string) (int64, error) {
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
	case "moonriver":
		return 1285, nil
	case "moonbeam":
		return 1284, nil
	case "aurora":
		return 1313161554, nil
	case "harmony":
		return 1666600000, nil
	case "celo":
		return 42220, nil
	case "metis":
		return 1088, nil
	case "base":
		return 8453, nil
	case "scroll":
		return 534352, nil
	case "linea":
		return 59144, nil
	case "mantle":
		return 5000, nil
	default:
		return 0, bridge.ErrUnsupportedRoute(chain, "")
	}
}

// cbridgeToken maps asset symbols to cBridge token symbols.
func cbridgeToken(asset string) (string, error) {
	switch strings.ToUpper(asset) {
	case "USDC":
		return "USDC", nil
	case "USDT":
		return "USDT", nil
	case "ETH", "WETH":
		return "WETH", nil
	case "DAI":
		return "DAI", nil
	case "BUSD":
		return "BUSD", nil
	case "WBTC":
		return "WBTC", nil
	case "CELR":
		return "CELR", nil
	default:
		return "", bridge.ErrUnsupportedAsset(asset)
	}
}

// cbridgeTransferTime estimates transfer time from finality requirements:
// Ethereum and BSC legs need many confirmations.
func cbridgeTransferTime(fromChain, toChain string) int64 {
	slow := func(chain string) bool {
		c := strings.ToLower(chain)
		return strings.Contains(c, "ethereum") || strings.Contains(c, "eth") || c == "mainnet" ||
			strings.Contains(c, "bsc") || strings.Contains(c, "binance") || strings.Contains(c, "bnb")
	}
	if slow(fromChain) || slow(toChain) {
		return 1200
	}
	return 360
}

func (c *CBridge) fetchOnce(ctx context.Context, req bridge.QuoteRequest) (*bridge.Quote, error) {
	srcChainID, err := cbridgeChainID(req.FromChain)
	if err != nil {
		return nil, bridge.ErrUnsupportedRoute(req.FromChain, req.ToChain)
	}
	dstChainID, err := cbridgeChainID(req.ToChain)
	if err != nil {
		return nil, bridge.ErrUnsupportedRoute(req.FromChain, req.ToChain)
	}
	tokenSymbol, err := cbridgeToken(req.Asset)
	if err != nil {
		return nil, err
	}

	amount := req.Amount
	if amount == "" {
		amount = defaultSmallestUnit(req.Asset)
	}
	// cBridge expresses slippage in millionths of 100%, so 0.5% -> 5000.
	slippageTolerance := int64(slippageOrDefault(req.Slippage) * 10000)

	estimateURL := fmt.Sprintf("%s/estimateAmt?src_chain_id=%d&dst_chain_id=%d&token_symbol=%s&amt=%s&slippage_tolerance=%d",
		c.baseURL, srcChainID, dstChainID, tokenSymbol, amount, slippageTolerance)

	doc, err := getJSON(ctx, c.cfg.Client, estimateURL)
	if err != nil {
		if errors.Is(err, errEstimate) {
			logging.Info("cBridge API unavailable, creating estimate", zap.Error(err))
			return c.estimate(req)
		}
		return nil, err
	}

	if apiErr := doc.Get("err"); apiErr.Exists() && apiErr.Get("code").Exists() {
		code := apiErr.Get("code").Int()
		msg := apiErr.Get("msg").String()
		if msg == "" {
			msg = "Unknown error"
		}
		logging.Warn("cBridge API error", zap.Int64("code", code), zap.String("msg", msg))
		return nil, bridge.ErrBadResponse(fmt.Sprintf("cBridge error %d: %s", code, msg))
	}

	estTime := c.fetchLatency(ctx, srcChainID, dstChainID, req)

	decimals := bridge.TokenDecimals(req.Asset)
	divisor := math.Pow10(decimals)
	amountF, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		amountF = math.Pow10(decimals)
	}

	estimatedReceive := amountF
	if v := doc.Get("estimated_receive_amt"); v.Exists() {
		if f, perr := strconv.ParseFloat(v.String(), 64); perr == nil {
			estimatedReceive = f
		}
	}
	fee := amountF/divisor - estimatedReceive/divisor

	quote := &bridge.Quote{
		Bridge:  "Celer cBridge",
		Fee:     fee,
		EstTime: estTime,
		Metadata: map[string]any{
			"eq_value_token_amt":    doc.Get("eq_value_token_amt").String(),
			"bridge_rate":           doc.Get("bridge_rate").Float(),
			"perc_fee":              doc.Get("perc_fee").String(),
			"base_fee":              doc.Get("base_fee").String(),
			"estimated_receive_amt": doc.Get("estimated_receive_amt").String(),
			"max_slippage":          doc.Get("max_slippage").Int(),
			"drop_gas_amt":          doc.Get("drop_gas_amt").String(),
			"network":               "Celer cBridge",
			"architecture":          "state_guardian_network",
			"security_model":        "sgn_pos_with_optimistic_rollup",
			"route":                 routeLabel(req),
			"note":                  "Real-time quote from cBridge API",
		},
	}

	logging.Info("cBridge quote retrieved",
		zap.Float64("fee", quote.Fee),
		zap.Int64("est_time", quote.EstTime))
	return quote, nil
}

// fetchLatency asks for the 7-day median transfer latency; any failure falls
// back to the static heuristic.
func (c *CBridge) fetchLatency(ctx context.Context, srcChainID, dstChainID int64, req bridge.QuoteRequest) int64 {
	url := fmt.Sprintf("%s/getLatest7DayTransferLatencyForQuery?src_chain_id=%d&dst_chain_id=%d",
		c.baseURL, srcChainID, dstChainID)

	doc, err := getJSON(ctx, c.cfg.Client, url)
	if err != nil {
		return cbridgeTransferTime(req.FromChain, req.ToChain)
	}
	if v := doc.Get("median_transfer_latency_in_second"); v.Exists() && v.Float() > 0 {
		return int64(v.Float())
	}
	return cbridgeTransferTime(req.FromChain, req.ToChain)
}

func (c *CBridge) estimate(req bridge.QuoteRequest) (*bridge.Quote, error) {
	if _, err := cbridgeChainID(req.FromChain); err != nil {
		return nil, bridge.ErrUnsupportedRoute(req.FromChain, req.ToChain)
	}
	if _, err := cbridgeChainID(req.ToChain); err != nil {
		return nil, bridge.ErrUnsupportedRoute(req.FromChain, req.ToChain)
	}
	if _, err := cbridgeToken(req.Asset); err != nil {
		return nil, err
	}

	amountReadable := readableAmount(req.Amount, req.Asset)

	// Roughly 0.04% base fee plus liquidity provider fee, with a flat base
	// cost varying by token.
	var feePercentage, baseGasCost float64
	switch strings.ToUpper(req.Asset) {
	case "USDC", "USDT":
		feePercentage, baseGasCost = 0.001, 0.08
	case "ETH", "WETH":
		feePercentage, baseGasCost = 0.001, 0.0002
	case "DAI", "BUSD":
		feePercentage, baseGasCost = 0.001, 0.10
	case "WBTC":
		feePercentage, baseGasCost = 0.0012, 0.000008
	case "CELR":
		feePercentage, baseGasCost = 0.002, 5.0
	default:
		feePercentage, baseGasCost = 0.0015, 0.5
	}

	estTime := cbridgeTransferTime(req.FromChain, req.ToChain)

	return &bridge.Quote{
		Bridge:  "Celer cBridge",
		Fee:     amountReadable*feePercentage + baseGasCost,
		EstTime: estTime,
		Metadata: map[string]any{
			"estimated":        true,
			"fee_percentage":   feePercentage,
			"base_gas_cost":    baseGasCost,
			"amount":           amountReadable,
			"network":          "Celer cBridge",
			"architecture":     "state_guardian_network",
			"security_model":   "sgn_pos_with_optimistic_rollup",
			"supported_chains": []string{"ethereum", "bsc", "arbitrum", "optimism", "polygon", "avalanche", "fantom", "base", "scroll"},
			"note":             "Estimated quote (API unavailable) - Calculated using typical cBridge fees",
			"route":            routeLabel(req),
			"typical_time":     fmt.Sprintf("%d-%d minutes", estTime/60-2, estTime/60+2),
			"fee_formula":      fmt.Sprintf("%g%% + %g %s base fee", feePercentage*100, baseGasCost, req.Asset),
			"liquidity":        "Deep liquidity pools",
		},
	}, nil
}
