package bridge

import "sort"

// Scoring weights. Cost and speed dominate; security metadata nudges.
const (
	feeWeight      = 0.4
	timeWeight     = 0.4
	securityWeight = 0.2

	// feeReference is the fee (in token units) that zeroes the fee score.
	feeReference = 0.01
	// timeReference is the transfer time (seconds) that zeroes the time score.
	timeReference = 3600.0
)

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// FeeScore maps a fee to [0,1]. Zero or negative fees score a perfect 1.
func FeeScore(fee float64) float64 {
	if fee <= 0 {
		return 1
	}
	return clamp01(1 - fee/feeReference)
}

// TimeScore maps an estimated transfer time to [0,1]. Instant transfers
// score a perfect 1; an hour or more scores 0.
func TimeScore(estTime int64) float64 {
	if estTime == 0 {
		return 1
	}
	return clamp01(1 - float64(estTime)/timeReference)
}

// SecurityScore maps audit and exploit history to [0,1]. The baseline is
// 0.5; a passed audit adds 0.2, a known exploit costs 0.5.
func SecurityScore(hasAudit, hasExploit bool) float64 {
	score := 0.5
	if hasAudit {
		score += 0.2
	}
	if hasExploit {
		score -= 0.5
	}
	return clamp01(score)
}

// CalculateScore combines fee, time, and security into the composite
// heuristic used to rank routes.
func CalculateScore(fee float64, estTime int64, hasAudit, hasExploit bool) float64 {
	composite := feeWeight*FeeScore(fee) +
		timeWeight*TimeScore(estTime) +
		securityWeight*SecurityScore(hasAudit, hasExploit)
	return clamp01(composite)
}

// SortQuotes orders quotes by score descending, with bridge name ascending
// as a deterministic tie-break.
func SortQuotes(quotes []Quote) {
	sort.SliceStable(quotes, func(i, j int) bool {
		if quotes[i].Score != quotes[j].Score {
			return quotes[i].Score > quotes[j].Score
		}
		return quotes[i].Bridge < quotes[j].Bridge
	})
}
