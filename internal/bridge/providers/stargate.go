package providers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/wudi/bridgerouter/internal/bridge"
	"github.com/wudi/bridgerouter/internal/logging"
)

const stargateAPIBase = "https://stargate.finance/api/v1"

// Stargate quotes via the Stargate Finance quotes endpoint.
type Stargate struct {
	cfg     Config
	retry   *bridge.RetryPolicy
	baseURL string
}

func NewStargate(cfg Config) *Stargate {
	cfg = cfg.withDefaults()
	return &Stargate{cfg: cfg, retry: bridge.DefaultRetryPolicy(cfg.Retries), baseURL: stargateAPIBase}
}

func (s *Stargate) Name() string { return "Stargate" }

func (s *Stargate) GetQuote(ctx context.Context, req bridge.QuoteRequest) (*bridge.Quote, error) {
	return throughCache(ctx, s.cfg, s.retry, cacheKey("stargate", req), func(ctx context.Context) (*bridge.Quote, error) {
		return s.fetchOnce(ctx, req)
	}, func() (*bridge.Quote, error) {
		return s.estimate(req)
	})
}

// stargateChainKey maps chain names to Stargate API chain keys.
func stargateChainKey(chain string) (string, error) {
	switch strings.ToLower(chain) {
	case "ethereum", "eth", "mainnet":
		return "ethereum", nil
	case "bsc", "binance", "bnb", "bnb-smart-chain":
		return "bsc", nil
	case "avalanche", "avax":
		return "avalanche", nil
	case "polygon", "matic":
		return "polygon", nil
	case "arbitrum", "arb", "arbitrum-one":
		return "arbitrum", nil
	case "optimism", "opt":
		return "optimism", nil
	case "fantom", "ftm":
		return "fantom", nil
	case "metis":
		return "metis", nil
	case "kava":
		return "kava", nil
	case "mantle":
		return "mantle", nil
	case "linea":
		return "linea", nil
	case "base":
		return "base", nil
	case "scroll":
		return "scroll", nil
	case "zksync", "zksync-era":
		return "zksync", nil
	default:
		return "", bridge.ErrUnsupportedRoute(chain, "")
	}
}

// stargateToken resolves the token identifier the API accepts. Native ETH
// uses the conventional 0xEeee... sentinel address.
func stargateToken(asset string) (string, error) {
	switch strings.ToUpper(asset) {
	case "ETH", "WETH":
		return "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE", nil
	case "USDC":
		return "USDC", nil
	case "USDT":
		return "USDT", nil
	case "DAI":
		return "DAI", nil
	default:
		return "", bridge.ErrUnsupportedAsset(asset)
	}
}

// stargateAsset validates the asset for estimates, which cover a wider set
// than the token resolver.
func stargateAsset(asset string) error {
	switch strings.ToUpper(asset) {
	case "USDC", "USDT", "ETH", "WETH", "USDD", "DAI", "FRAX", "MAI", "LUSD", "METIS":
		return nil
	default:
		return bridge.ErrUnsupportedAsset(asset)
	}
}

// stargateTransferTime reflects LayerZero finality requirements: Ethereum
// legs are slow, everything else settles quickly.
func stargateTransferTime(fromChain, toChain string) int64 {
	from := strings.ToLower(fromChain)
	to := strings.ToLower(toChain)
	ethInvolved := func(c string) bool {
		return strings.Contains(c, "ethereum") || strings.Contains(c, "eth") || c == "mainnet"
	}
	if ethInvolved(from) || ethInvolved(to) {
		return 600
	}
	return 180
}

func (s *Stargate) fetchOnce(ctx context.Context, req bridge.QuoteRequest) (*bridge.Quote, error) {
	srcChainKey, err := stargateChainKey(req.FromChain)
	if err != nil {
		return nil, bridge.ErrUnsupportedRoute(req.FromChain, req.ToChain)
	}
	dstChainKey, err := stargateChainKey(req.ToChain)
	if err != nil {
		return nil, bridge.ErrUnsupportedRoute(req.FromChain, req.ToChain)
	}
	srcToken, err := stargateToken(req.Asset)
	if err != nil {
		return nil, err
	}

	decimals := bridge.TokenDecimals(req.Asset)
	srcAmount := req.Amount
	if srcAmount == "" {
		srcAmount = defaultSmallestUnit(req.Asset)
	}
	srcAmountF, err := strconv.ParseFloat(srcAmount, 64)
	if err != nil {
		srcAmountF = math.Pow10(decimals)
	}
	dstAmountMin := uint64(srcAmountF * (1.0 - slippageOrDefault(req.Slippage)/100.0))

	// The API requires wallet addresses even for quoting.
	const srcAddress = "0x1234567890abcdef1234567890abcdef12345678"
	const dstAddress = "0xabcdef1234567890abcdef1234567890abcdef12"

	url := fmt.Sprintf("%s/quotes?srcToken=%s&srcChainKey=%s&dstToken=%s&dstChainKey=%s&srcAddress=%s&dstAddress=%s&srcAmount=%s&dstAmountMin=%d",
		s.baseURL, srcToken, srcChainKey, srcToken, dstChainKey, srcAddress, dstAddress, srcAmount, dstAmountMin)

	doc, err := getJSON(ctx, s.cfg.Client, url)
	if err != nil {
		if errors.Is(err, errEstimate) {
			logging.Info("Stargate API unavailable, creating estimate", zap.Error(err))
			return s.estimate(req)
		}
		return nil, err
	}

	// Pick the fastest error-free route from the quote list.
	var best gjson.Result
	bestTime := math.MaxFloat64
	doc.Get("quotes").ForEach(func(_, q gjson.Result) bool {
		if q.Get("error").Exists() && q.Get("error").String() != "" {
			return true
		}
		t := math.MaxFloat64
		if d := q.Get("duration.estimated"); d.Exists() {
			t = d.Float()
		}
		if t < bestTime {
			bestTime = t
			best = q
		}
		return true
	})
	if !best.Exists() {
		logging.Warn("No valid quotes from Stargate API, creating estimate")
		return s.estimate(req)
	}

	divisor := math.Pow10(decimals)
	dstAmountF := srcAmountF
	if v := best.Get("dstAmount"); v.Exists() {
		if f, perr := strconv.ParseFloat(v.String(), 64); perr == nil {
			dstAmountF = f
		}
	}
	fee := srcAmountF/divisor - dstAmountF/divisor

	estTime := int64(300)
	if d := best.Get("duration.estimated"); d.Exists() {
		estTime = int64(d.Float())
	}

	routeType := best.Get("route").String()
	if routeType == "" {
		routeType = "unknown"
	}

	quote := &bridge.Quote{
		Bridge:  "Stargate",
		Fee:     fee,
		EstTime: estTime,
		Metadata: map[string]any{
			"route":            routeType,
			"src_amount":       best.Get("srcAmount").String(),
			"dst_amount":       best.Get("dstAmount").String(),
			"duration_seconds": estTime,
			"fees":             best.Get("fees").Value(),
			"network":          "Stargate Finance",
			"architecture":     "layerzero_v2_omnichain",
			"security_model":   "unified_liquidity_pools",
			"route_type":       routeType,
			"note":             "Real-time quote from Stargate API",
		},
	}

	logging.Info("Stargate quote retrieved",
		zap.Float64("fee", quote.Fee),
		zap.Int64("est_time", quote.EstTime),
		zap.String("route", routeType))
	return quote, nil
}

func (s *Stargate) estimate(req bridge.QuoteRequest) (*bridge.Quote, error) {
	if _, err := stargateChainKey(req.FromChain); err != nil {
		return nil, bridge.ErrUnsupportedRoute(req.FromChain, req.ToChain)
	}
	if _, err := stargateChainKey(req.ToChain); err != nil {
		return nil, bridge.ErrUnsupportedRoute(req.FromChain, req.ToChain)
	}
	if err := stargateAsset(req.Asset); err != nil {
		return nil, err
	}

	amountReadable := readableAmount(req.Amount, req.Asset)

	// 0.06% transfer fee plus the LayerZero messaging fee, both varying by
	// asset class.
	var feePercentage, messagingCost float64
	switch strings.ToUpper(req.Asset) {
	case "USDC", "USDT":
		feePercentage, messagingCost = 0.0006, 0.12
	case "ETH", "WETH":
		feePercentage, messagingCost = 0.0006, 0.0003
	case "DAI", "FRAX", "LUSD", "MAI":
		feePercentage, messagingCost = 0.0008, 0.15
	default:
		feePercentage, messagingCost = 0.001, 0.5
	}

	estTime := stargateTransferTime(req.FromChain, req.ToChain)

	return &bridge.Quote{
		Bridge:  "Stargate",
		Fee:     amountReadable*feePercentage + messagingCost,
		EstTime: estTime,
		Metadata: map[string]any{
			"estimated":        true,
			"fee_percentage":   feePercentage,
			"messaging_cost":   messagingCost,
			"amount":           amountReadable,
			"network":          "Stargate Finance",
			"architecture":     "layerzero_v2_omnichain",
			"security_model":   "unified_liquidity_pools",
			"supported_chains": []string{"ethereum", "bsc", "avalanche", "polygon", "arbitrum", "optimism", "fantom", "base", "linea", "metis"},
			"note":             "Estimated quote (API unavailable) - Calculated using typical Stargate fees",
			"route":            routeLabel(req),
			"typical_time":     fmt.Sprintf("%d-%d minutes", estTime/60-2, estTime/60+2),
			"fee_formula":      fmt.Sprintf("%g%% + %g %s LayerZero fee", feePercentage*100, messagingCost, req.Asset),
			"tvl":              "~$300M+ liquidity",
		},
	}, nil
}
