package bridge

import "fmt"

// QuoteParams is the validated request for the quotes endpoint. Slippage is
// a percentage: 0.5 means 0.5%.
type QuoteParams struct {
	FromChain string
	ToChain   string
	Token     string
	Amount    float64
	Slippage  float64
}

// DefaultSlippage is applied when the client omits the slippage parameter.
const DefaultSlippage = 0.5

// CostDetails breaks down the cost of a route.
type CostDetails struct {
	TotalFee    float64       `json:"total_fee"`
	TotalFeeUSD float64       `json:"total_fee_usd"`
	Breakdown   CostBreakdown `json:"breakdown"`
}

// CostBreakdown splits fees into protocol fee and gas.
type CostBreakdown struct {
	BridgeFee      float64     `json:"bridge_fee"`
	GasEstimateUSD float64     `json:"gas_estimate_usd"`
	GasDetails     *GasDetails `json:"gas_details,omitempty"`
}

// GasDetails is the per-chain gas cost breakdown.
type GasDetails struct {
	SourceGasUSD            float64 `json:"source_gas_usd"`
	DestinationGasUSD       float64 `json:"destination_gas_usd"`
	SourceChain             string  `json:"source_chain"`
	DestinationChain        string  `json:"destination_chain"`
	SourceGasPriceGwei      float64 `json:"source_gas_price_gwei"`
	DestinationGasPriceGwei float64 `json:"destination_gas_price_gwei"`
	SourceGasLimit          uint64  `json:"source_gas_limit"`
	DestinationGasLimit     uint64  `json:"destination_gas_limit"`
}

// OutputDetails describes expected and guaranteed output amounts.
type OutputDetails struct {
	Expected float64 `json:"expected"`
	Minimum  float64 `json:"minimum"`
	Input    float64 `json:"input"`
}

// TimingDetails describes the expected transfer time.
type TimingDetails struct {
	Seconds  int64  `json:"seconds"`
	Display  string `json:"display"`
	Category string `json:"category"` // "fast" | "medium" | "slow"
}

// SecurityDetails describes the bridge's security posture.
type SecurityDetails struct {
	Score      float64 `json:"score"`
	Level      string  `json:"level"` // "high" | "medium" | "low"
	HasAudit   bool    `json:"has_audit"`
	HasExploit bool    `json:"has_exploit"`
}

// Route is one scored, enriched quote in the aggregated response.
type Route struct {
	Bridge    string          `json:"bridge"`
	Score     float64         `json:"score"`
	Cost      CostDetails     `json:"cost"`
	Output    OutputDetails   `json:"output"`
	Timing    TimingDetails   `json:"timing"`
	Security  SecurityDetails `json:"security"`
	Available bool            `json:"available"`
	Status    string          `json:"status"` // "operational" | "degraded" | "unavailable"
	Warnings  []string        `json:"warnings,omitempty"`
}

// RequestMetadata echoes the request in the response.
type RequestMetadata struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Token  string  `json:"token"`
	Amount float64 `json:"amount"`
}

// ResponseMetadata summarizes the aggregated response.
type ResponseMetadata struct {
	TotalRoutes     int             `json:"total_routes"`
	AvailableRoutes int             `json:"available_routes"`
	Request         RequestMetadata `json:"request"`
}

// AggregatedResponse is the quotes endpoint payload.
type AggregatedResponse struct {
	Routes   []Route          `json:"routes"`
	Metadata ResponseMetadata `json:"metadata"`
	Errors   []QuoteError     `json:"errors,omitempty"`
}

// CategorizeTiming buckets an estimated time into fast/medium/slow.
func CategorizeTiming(seconds int64) string {
	switch {
	case seconds <= 120:
		return "fast"
	case seconds <= 600:
		return "medium"
	default:
		return "slow"
	}
}

// FormatTiming renders a transfer time as "~N sec", "~N min" or "~N hr".
func FormatTiming(seconds int64) string {
	switch {
	case seconds < 60:
		return fmt.Sprintf("~%d sec", seconds)
	case seconds < 3600:
		return fmt.Sprintf("~%d min", seconds/60)
	default:
		return fmt.Sprintf("~%d hr", seconds/3600)
	}
}

// CategorizeSecurity buckets a security score into high/medium/low.
func CategorizeSecurity(score float64) string {
	switch {
	case score >= 0.7:
		return "high"
	case score >= 0.4:
		return "medium"
	default:
		return "low"
	}
}
