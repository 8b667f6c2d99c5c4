// Package bridge defines the normalized quote model shared by all bridge
// provider adapters, the concurrent aggregator that fans out to them, and
// the composite scoring heuristic used to rank routes.
package bridge

import (
	"context"
	"time"
)

// Quote is the normalized quote every provider adapter produces.
type Quote struct {
	// Bridge is the display name, e.g. "Hop", "Axelar".
	Bridge string `json:"bridge"`
	// Fee in token units (e.g. 1.2 means 1.2 USDC).
	Fee float64 `json:"fee"`
	// EstTime is the estimated transfer time in seconds.
	EstTime int64 `json:"est_time"`
	// Liquidity is a human-readable liquidity string, e.g. "1,000,000 USDC".
	Liquidity string `json:"liquidity"`
	// Score is filled in by the scorer after security enrichment.
	Score float64 `json:"score,omitempty"`
	// Metadata carries provider specifics (architecture, security model,
	// whether the quote is a deterministic estimate).
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Estimated reports whether the quote is a deterministic fallback estimate
// rather than a live provider response.
func (q *Quote) Estimated() bool {
	if q.Metadata == nil {
		return false
	}
	v, ok := q.Metadata["estimated"].(bool)
	return ok && v
}

// QuoteRequest is the normalized request passed to every adapter. Amount,
// when present, is an integer string in the token's smallest unit.
type QuoteRequest struct {
	Asset     string
	FromChain string
	ToChain   string
	Amount    string
	// Slippage is the tolerance in percent, e.g. 0.5 for 0.5%.
	Slippage float64
}

// Provider is a single bridge adapter.
type Provider interface {
	// Name returns the provider's display name.
	Name() string
	// GetQuote returns a normalized quote for the route, or an error when
	// the route or asset is unsupported and no estimate can stand in.
	GetQuote(ctx context.Context, req QuoteRequest) (*Quote, error)
}

// QuoteCache caches normalized quotes at the provider level. Implementations
// must treat backend failures as misses.
type QuoteCache interface {
	GetQuote(ctx context.Context, key string) (*Quote, bool)
	SetQuote(ctx context.Context, key string, q *Quote, ttl time.Duration)
}

// QuoteError reports a provider that failed to quote.
type QuoteError struct {
	Bridge string `json:"bridge"`
	Error  string `json:"error"`
}
