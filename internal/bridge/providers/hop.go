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

const (
	hopAPIBase    = "https://api.hop.exchange"
	hopAPIVersion = "v1"
)

// Hop quotes via the Hop Protocol /v1/quote endpoint.
type Hop struct {
	cfg     Config
	retry   *bridge.RetryPolicy
	baseURL string
}

func NewHop(cfg Config) *Hop {
	cfg = cfg.withDefaults()
	return &Hop{cfg: cfg, retry: bridge.DefaultRetryPolicy(cfg.Retries), baseURL: hopAPIBase}
}

func (h *Hop) Name() string { return "Hop" }

func (h *Hop) GetQuote(ctx context.Context, req bridge.QuoteRequest) (*bridge.Quote, error) {
	return throughCache(ctx, h.cfg, h.retry, cacheKey("hop", req), func(ctx context.Context) (*bridge.Quote, error) {
		return h.fetchOnce(ctx, req)
	}, func() (*bridge.Quote, error) {
		return h.estimate(req)
	})
}

// hopChainSlug maps chain names to Hop chain slugs.
func hopChainSlug(chain string) (string, error) {
	switch strings.ToLower(chain) {
	case "ethereum", "eth", "mainnet":
		return "ethereum", nil
	case "optimism", "opt":
		return "optimism", nil
	case "arbitrum", "arbitrum-one", "arb":
		return "arbitrum", nil
	case "polygon", "matic":
		return "polygon", nil
	case "gnosis", "xdai":
		return "gnosis", nil
	case "nova", "arbitrum-nova":
		return "nova", nil
	case "base":
		return "base", nil
	case "linea":
		return "linea", nil
	case "polygonzk", "polygon-zk", "zkevm", "polygon-zkevm":
		return "polygonzk", nil
	default:
		return "", bridge.ErrUnsupportedRoute(chain, "")
	}
}

// hopToken maps asset symbols to Hop token symbols.
func hopToken(asset string) (string, error) {
	switch strings.ToUpper(asset) {
	case "USDC":
		return "USDC", nil
	case "USDC.E", "USDCE":
		return "USDC.e", nil
	case "USDT":
		return "USDT", nil
	case "DAI":
		return "DAI", nil
	case "ETH", "WETH":
		return "ETH", nil
	case "MATIC", "WMATIC":
		return "MATIC", nil
	case "HOP":
		return "HOP", nil
	case "SNX":
		return "SNX", nil
	case "SUSD":
		return "sUSD", nil
	case "RETH":
		return "rETH", nil
	case "MAGIC":
		return "MAGIC", nil
	default:
		return "", bridge.ErrUnsupportedAsset(asset)
	}
}

// hopTransferTime estimates transfer time: L1 legs wait for finality, L2 to
// L2 via bonders is fast.
func hopTransferTime(fromChain, toChain string) int64 {
	switch {
	case strings.EqualFold(fromChain, "ethereum"):
		return 1200
	case strings.EqualFold(toChain, "ethereum"):
		return 900
	default:
		return 180
	}
}

// parseSmallestUnit parses an integer amount string into token units.
func parseSmallestUnit(amount, token string) (float64, error) {
	f, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return 0, bridge.ErrBadResponse(fmt.Sprintf("Invalid amount: %s", amount))
	}
	return f / float64(pow10i(bridge.TokenDecimals(token))), nil
}

func pow10i(n int) int64 {
	out := int64(1)
	for i := 0; i < n; i++ {
		out *= 10
	}
	return out
}

// formatLiquidity renders a liquidity figure as a grouped string, e.g.
// "1,000,000 USDC".
func formatLiquidity(amount float64, asset string) string {
	n := int64(amount)
	s := strconv.FormatInt(n, 10)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String() + " " + asset
}

func (h *Hop) fetchOnce(ctx context.Context, req bridge.QuoteRequest) (*bridge.Quote, error) {
	fromChain, err := hopChainSlug(req.FromChain)
	if err != nil {
		return nil, bridge.ErrUnsupportedRoute(req.FromChain, req.ToChain)
	}
	toChain, err := hopChainSlug(req.ToChain)
	if err != nil {
		return nil, bridge.ErrUnsupportedRoute(req.FromChain, req.ToChain)
	}
	token, err := hopToken(req.Asset)
	if err != nil {
		return nil, err
	}

	amount := req.Amount
	if amount == "" {
		amount = defaultSmallestUnit(token)
	}

	url := fmt.Sprintf("%s/%s/quote?amount=%s&token=%s&fromChain=%s&toChain=%s&slippage=%g",
		h.baseURL, hopAPIVersion, amount, token, fromChain, toChain, slippageOrDefault(req.Slippage))

	doc, err := getJSON(ctx, h.cfg.Client, url)
	if err != nil {
		if errors.Is(err, errEstimate) {
			logging.Info("Hop API unavailable, creating estimate", zap.Error(err))
			return h.estimate(req)
		}
		return nil, err
	}

	// The Hop API spells the field "estimatedRecieved".
	received := doc.Get("estimatedRecieved")
	if !received.Exists() || !doc.Get("amountIn").Exists() {
		logging.Info("Hop response missing amount fields, creating estimate")
		return h.estimate(req)
	}

	bonderFee, err := parseSmallestUnit(doc.Get("bonderFee").String(), token)
	if err != nil {
		return nil, err
	}
	estimatedReceived, err := parseSmallestUnit(received.String(), token)
	if err != nil {
		return nil, err
	}
	amountIn, err := parseSmallestUnit(doc.Get("amountIn").String(), token)
	if err != nil {
		return nil, err
	}

	quote := &bridge.Quote{
		Bridge:    "Hop",
		Fee:       amountIn - estimatedReceived,
		EstTime:   hopTransferTime(req.FromChain, req.ToChain),
		Liquidity: formatLiquidity(1_000_000, req.Asset),
		Metadata: map[string]any{
			"amount_in":                  doc.Get("amountIn").String(),
			"amount_out_min":             doc.Get("amountOutMin").String(),
			"destination_amount_out_min": doc.Get("destinationAmountOutMin").String(),
			"bonder_fee":                 bonderFee,
			"estimated_received":         estimatedReceived,
			"slippage":                   doc.Get("slippage").Float(),
			"deadline":                   doc.Get("deadline").Int(),
			"destination_deadline":       doc.Get("destinationDeadline").Int(),
			"network":                    "Hop Protocol",
			"architecture":               "rollup_to_rollup_amm",
			"security_model":             "optimistic_bridges_with_bonders",
			"route":                      routeLabel(req),
		},
	}

	logging.Info("Hop quote retrieved",
		zap.Float64("fee", quote.Fee),
		zap.Float64("bonder_fee", bonderFee),
		zap.Int64("est_time", quote.EstTime))
	return quote, nil
}

func (h *Hop) estimate(req bridge.QuoteRequest) (*bridge.Quote, error) {
	if _, err := hopChainSlug(req.FromChain); err != nil {
		return nil, bridge.ErrUnsupportedRoute(req.FromChain, req.ToChain)
	}
	if _, err := hopChainSlug(req.ToChain); err != nil {
		return nil, bridge.ErrUnsupportedRoute(req.FromChain, req.ToChain)
	}
	if _, err := hopToken(req.Asset); err != nil {
		return nil, err
	}

	var fee float64
	switch strings.ToUpper(req.Asset) {
	case "USDC", "USDT":
		fee = 0.3
	case "DAI":
		fee = 0.4
	case "ETH", "WETH", "RETH":
		fee = 0.0008
	case "MATIC":
		fee = 0.5
	default:
		fee = 0.002
	}

	return &bridge.Quote{
		Bridge:    "Hop",
		Fee:       fee,
		EstTime:   hopTransferTime(req.FromChain, req.ToChain),
		Liquidity: formatLiquidity(2_000_000, req.Asset),
		Metadata: map[string]any{
			"estimated":        true,
			"network":          "Hop Protocol",
			"architecture":     "rollup_to_rollup_amm",
			"security_model":   "optimistic_bridges_with_bonders",
			"supported_chains": []string{"ethereum", "optimism", "arbitrum", "polygon", "gnosis", "nova", "base", "linea", "polygonzk"},
			"note":             "Estimated quote - Hop uses AMM pools and bonders for fast L2 transfers",
			"route":            routeLabel(req),
		},
	}, nil
}
