package bridge

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestFeeScore(t *testing.T) {
	if got := FeeScore(0); got != 1 {
		t.Errorf("zero fee should score 1, got %f", got)
	}
	if got := FeeScore(-0.5); got != 1 {
		t.Errorf("negative fee should score 1, got %f", got)
	}
	if got := FeeScore(0.005); !almostEqual(got, 0.5) {
		t.Errorf("half the reference fee should score 0.5, got %f", got)
	}
	if got := FeeScore(0.02); got != 0 {
		t.Errorf("fee above reference should score 0, got %f", got)
	}
}

func TestTimeScore(t *testing.T) {
	if got := TimeScore(0); got != 1 {
		t.Errorf("instant transfer should score 1, got %f", got)
	}
	if got := TimeScore(1800); !almostEqual(got, 0.5) {
		t.Errorf("half hour should score 0.5, got %f", got)
	}
	if got := TimeScore(7200); got != 0 {
		t.Errorf("two hours should score 0, got %f", got)
	}
}

func TestSecurityScore(t *testing.T) {
	if got := SecurityScore(false, false); !almostEqual(got, 0.5) {
		t.Errorf("neutral security should score 0.5, got %f", got)
	}
	if got := SecurityScore(true, false); !almostEqual(got, 0.7) {
		t.Errorf("audited bridge should score 0.7, got %f", got)
	}
	if got := SecurityScore(false, true); got != 0 {
		t.Errorf("exploited bridge should score 0, got %f", got)
	}
	if got := SecurityScore(true, true); !almostEqual(got, 0.2) {
		t.Errorf("audited but exploited should score 0.2, got %f", got)
	}
}

func TestCalculateScore(t *testing.T) {
	// Perfect fee and time, audited, clean history.
	if got := CalculateScore(0, 0, true, false); !almostEqual(got, 0.94) {
		t.Errorf("best case should score 0.94, got %f", got)
	}
	// Worst case: expensive, slow, exploited.
	if got := CalculateScore(1, 7200, false, true); got != 0 {
		t.Errorf("worst case should score 0, got %f", got)
	}
	// Everything in between stays clamped.
	got := CalculateScore(0.003, 300, false, false)
	if got < 0 || got > 1 {
		t.Errorf("score out of range: %f", got)
	}
}

func TestSortQuotes(t *testing.T) {
	quotes := []Quote{
		{Bridge: "Hop", Score: 0.8},
		{Bridge: "Across", Score: 0.9},
		{Bridge: "Axelar", Score: 0.8},
	}
	SortQuotes(quotes)

	if quotes[0].Bridge != "Across" {
		t.Errorf("expected Across first, got %s", quotes[0].Bridge)
	}
	// Tie broken by name.
	if quotes[1].Bridge != "Axelar" || quotes[2].Bridge != "Hop" {
		t.Errorf("tie-break wrong: %s, %s", quotes[1].Bridge, quotes[2].Bridge)
	}
}
