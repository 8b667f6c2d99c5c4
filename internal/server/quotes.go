package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wudi/bridgerouter/internal/bridge"
	"github.com/wudi/bridgerouter/internal/cache"
	apperrors "github.com/wudi/bridgerouter/internal/errors"
	"github.com/wudi/bridgerouter/internal/gasprice"
	"github.com/wudi/bridgerouter/internal/logging"
	"github.com/wudi/bridgerouter/internal/security"
	"github.com/wudi/bridgerouter/internal/tokenprice"
)

// handleQuotes serves GET /quotes: validate, rate limit, probe the fresh
// cache, fan out to the bridge providers, enrich and score, then cache and
// respond. When every provider fails, a stale cache entry still serves.
func (s *Server) handleQuotes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	traceID := TraceID(ctx)

	params, appErr := parseQuoteParams(r)
	if appErr != nil {
		appErr.WithRequestID(traceID).WriteJSON(w)
		return
	}

	clientID := s.clients.FromRequest(r)
	admit := s.limiter.Allow(ctx, clientID)
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(admit.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(admit.Remaining))
	if !admit.Allowed {
		if s.metrics != nil {
			s.metrics.RateLimitDenied.Inc()
		}
		retryAfter := int(admit.RetryAfter.Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(admit.RetryAfter).Unix(), 10))
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		logging.Warn("Rate limit exceeded",
			zap.String("client", clientID),
			zap.String("trace_id", traceID))
		apperrors.ErrTooManyRequests.
			WithMessage(fmt.Sprintf("Rate limit exceeded. Maximum %d requests per minute.", admit.Limit)).
			WithRequestID(traceID).
			WriteJSON(w)
		return
	}

	key := cache.Key(params.FromChain, params.ToChain, params.Token, params.Amount)
	if data, ok := s.quotes.GetFresh(ctx, key); ok {
		s.writeQuoteBody(w, data, cache.StateHit)
		return
	}

	req := bridge.QuoteRequest{
		Asset:     strings.ToUpper(params.Token),
		FromChain: strings.ToLower(params.FromChain),
		ToChain:   strings.ToLower(params.ToChain),
		Amount:    bridge.AmountToSmallestUnit(params.Amount, params.Token),
		Slippage:  params.Slippage,
	}

	result := s.aggregator.GetAllQuotes(ctx, req)

	if len(result.Quotes) == 0 {
		if data, ok := s.quotes.GetStale(ctx, key); ok {
			logging.Warn("Serving stale quotes, all providers failed",
				zap.String("key", key),
				zap.Int("errors", len(result.Errors)))
			s.writeQuoteBody(w, data, cache.StateStale)
			return
		}
		logging.Error("No quotes available and no stale cache",
			zap.String("key", key),
			zap.Int("errors", len(result.Errors)))
		s.writeUpstreamFailure(w, traceID, result.Errors)
		return
	}

	bridges := make([]string, 0, len(result.Quotes))
	for _, q := range result.Quotes {
		bridges = append(bridges, q.Bridge)
	}
	metadata := s.securityMetadata(ctx, bridges)

	gasUSD, gasDetails := s.gasEstimate(ctx, req.FromChain, req.ToChain)
	tokenUSD := s.tokenUSD(ctx, params.Token)

	for i := range result.Quotes {
		meta := metadata[result.Quotes[i].Bridge]
		result.Quotes[i].Score = bridge.CalculateScore(
			result.Quotes[i].Fee,
			result.Quotes[i].EstTime,
			meta.HasAudit,
			meta.HasExploit,
		)
	}
	bridge.SortQuotes(result.Quotes)

	routes := make([]bridge.Route, 0, len(result.Quotes))
	for _, q := range result.Quotes {
		routes = append(routes, shapeRoute(q, params, metadata[q.Bridge], tokenUSD, gasUSD, gasDetails))
	}

	response := bridge.AggregatedResponse{
		Routes: routes,
		Metadata: bridge.ResponseMetadata{
			TotalRoutes:     len(routes),
			AvailableRoutes: countAvailable(routes),
			Request: bridge.RequestMetadata{
				From:   req.FromChain,
				To:     req.ToChain,
				Token:  req.Asset,
				Amount: params.Amount,
			},
		},
	}

	data, err := json.Marshal(&response)
	if err != nil {
		logging.Error("Failed to serialize quotes", zap.Error(err))
		apperrors.Wrap(apperrors.ErrInternalServer, err).WithRequestID(traceID).WriteJSON(w)
		return
	}

	s.quotes.Store(ctx, key, data)
	s.writeQuoteBody(w, data, cache.StateMiss)
}

// parseQuoteParams validates the query string. All parameters are camelCase
// on the wire.
func parseQuoteParams(r *http.Request) (bridge.QuoteParams, *apperrors.AppError) {
	q := r.URL.Query()
	params := bridge.QuoteParams{
		FromChain: strings.TrimSpace(q.Get("fromChain")),
		ToChain:   strings.TrimSpace(q.Get("toChain")),
		Token:     strings.TrimSpace(q.Get("token")),
		Slippage:  bridge.DefaultSlippage,
	}

	if params.FromChain == "" {
		return params, apperrors.Validation("fromChain parameter is required")
	}
	if params.ToChain == "" {
		return params, apperrors.Validation("toChain parameter is required")
	}
	if params.Token == "" {
		return params, apperrors.Validation("token parameter is required")
	}
	if strings.EqualFold(params.FromChain, params.ToChain) {
		return params, apperrors.Validation("Source and destination chains must be different")
	}

	amount, err := strconv.ParseFloat(q.Get("amount"), 64)
	if err != nil {
		return params, apperrors.Validation("amount must be a valid number")
	}
	if amount <= 0 {
		return params, apperrors.Validation("amount must be greater than 0")
	}
	params.Amount = amount

	if raw := q.Get("slippage"); raw != "" {
		slippage, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return params, apperrors.Validation("slippage must be a valid number")
		}
		if slippage < 0 || slippage > 100 {
			return params, apperrors.Validation("slippage must be between 0 and 100")
		}
		params.Slippage = slippage
	}

	return params, nil
}

// securityMetadata fetches the audit/exploit batch under its own deadline.
// Any failure degrades to neutral metadata; quotes still serve.
func (s *Server) securityMetadata(ctx context.Context, bridges []string) map[string]security.Metadata {
	out := make(map[string]security.Metadata, len(bridges))
	for _, b := range bridges {
		out[b] = security.Neutral(b)
	}
	if s.repo == nil {
		return out
	}

	sctx, cancel := context.WithTimeout(ctx, securityDeadline)
	defer cancel()

	metas, err := s.repo.GetBatchMetadata(sctx, bridges)
	if err != nil {
		logging.Error("Security metadata lookup failed, using neutral values", zap.Error(err))
		return out
	}
	for _, m := range metas {
		out[m.Bridge] = m
	}
	return out
}

// gasEstimate prices the deposit and withdrawal legs of the transfer in
// USD. Unsupported chains or a missing service yield no gas data.
func (s *Server) gasEstimate(ctx context.Context, fromChain, toChain string) (float64, *bridge.GasDetails) {
	if s.gas == nil {
		return 0, nil
	}

	src, err := s.gas.GetGasPrice(ctx, fromChain)
	if err != nil {
		return 0, nil
	}
	dst, err := s.gas.GetGasPrice(ctx, toChain)
	if err != nil {
		return 0, nil
	}

	srcUSD := gasprice.EstimateCostUSD(src, gasprice.BridgeDepositGas, false)
	dstUSD := gasprice.EstimateCostUSD(dst, gasprice.BridgeWithdrawalGas, false)

	return srcUSD + dstUSD, &bridge.GasDetails{
		SourceGasUSD:            srcUSD,
		DestinationGasUSD:       dstUSD,
		SourceChain:             fromChain,
		DestinationChain:        toChain,
		SourceGasPriceGwei:      src.ProposeGasPrice,
		DestinationGasPriceGwei: dst.ProposeGasPrice,
		SourceGasLimit:          gasprice.BridgeDepositGas,
		DestinationGasLimit:     gasprice.BridgeWithdrawalGas,
	}
}

// tokenUSD resolves the token's USD price for fee conversion.
func (s *Server) tokenUSD(ctx context.Context, token string) float64 {
	if s.prices == nil {
		return tokenprice.Fallback(token).USDPrice
	}
	tp, err := s.prices.GetTokenPrice(ctx, token)
	if err != nil {
		return tokenprice.Fallback(token).USDPrice
	}
	return tp.USDPrice
}

func shapeRoute(q bridge.Quote, params bridge.QuoteParams, meta security.Metadata, tokenUSD, gasUSD float64, gasDetails *bridge.GasDetails) bridge.Route {
	expected := params.Amount - q.Fee
	if expected < 0 {
		expected = 0
	}
	minimum := expected * (1 - params.Slippage/100)

	secScore := bridge.SecurityScore(meta.HasAudit, meta.HasExploit)

	status := "operational"
	var warnings []string
	if q.Estimated() {
		status = "degraded"
		warnings = append(warnings, "Quote is an estimate; live provider data was unavailable")
	}
	if meta.HasExploit {
		warnings = append(warnings, "This bridge has a recorded exploit")
	}

	return bridge.Route{
		Bridge: q.Bridge,
		Score:  q.Score,
		Cost: bridge.CostDetails{
			TotalFee:    q.Fee,
			TotalFeeUSD: q.Fee*tokenUSD + gasUSD,
			Breakdown: bridge.CostBreakdown{
				BridgeFee:      q.Fee,
				GasEstimateUSD: gasUSD,
				GasDetails:     gasDetails,
			},
		},
		Output: bridge.OutputDetails{
			Expected: expected,
			Minimum:  minimum,
			Input:    params.Amount,
		},
		Timing: bridge.TimingDetails{
			Seconds:  q.EstTime,
			Display:  bridge.FormatTiming(q.EstTime),
			Category: bridge.CategorizeTiming(q.EstTime),
		},
		Security: bridge.SecurityDetails{
			Score:      secScore,
			Level:      bridge.CategorizeSecurity(secScore),
			HasAudit:   meta.HasAudit,
			HasExploit: meta.HasExploit,
		},
		Available: true,
		Status:    status,
		Warnings:  warnings,
	}
}

func countAvailable(routes []bridge.Route) int {
	n := 0
	for _, r := range routes {
		if r.Available {
			n++
		}
	}
	return n
}

// writeQuoteBody writes an aggregated response body byte-for-byte, with the
// cache state headers. Fresh and hit responses are publicly cacheable for
// the fresh TTL; stale ones demand revalidation.
func (s *Server) writeQuoteBody(w http.ResponseWriter, data []byte, state cache.State) {
	if s.metrics != nil {
		s.metrics.CacheResults.WithLabelValues(strings.ToLower(string(state))).Inc()
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", string(state))
	if state == cache.StateStale {
		w.Header().Set("Cache-Control", "public, max-age=0, must-revalidate")
		w.Header().Set("Warning", `110 - "Response is Stale"`)
	} else {
		w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(s.cfg.Cache.FreshTTL.Seconds())))
	}
	w.Write(data)
}

// writeUpstreamFailure writes the 502 envelope listing every provider
// failure.
func (s *Server) writeUpstreamFailure(w http.ResponseWriter, traceID string, quoteErrors []bridge.QuoteError) {
	envelope := struct {
		Error     string              `json:"error"`
		Message   string              `json:"message"`
		Code      int                 `json:"code"`
		RequestID string              `json:"request_id,omitempty"`
		Timestamp string              `json:"timestamp"`
		Errors    []bridge.QuoteError `json:"errors"`
	}{
		Error:     "service_unavailable",
		Message:   "No quotes available",
		Code:      http.StatusBadGateway,
		RequestID: traceID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Errors:    quoteErrors,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadGateway)
	json.NewEncoder(w).Encode(&envelope)
}
