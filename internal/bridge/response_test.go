package bridge

import "testing"

func TestCategorizeTiming(t *testing.T) {
	cases := map[int64]string{
		60:   "fast",
		120:  "fast",
		300:  "medium",
		600:  "medium",
		1200: "slow",
	}
	for seconds, want := range cases {
		if got := CategorizeTiming(seconds); got != want {
			t.Errorf("CategorizeTiming(%d) = %s, want %s", seconds, got, want)
		}
	}
}

func TestFormatTiming(t *testing.T) {
	cases := map[int64]string{
		45:   "~45 sec",
		180:  "~3 min",
		3600: "~1 hr",
		7200: "~2 hr",
	}
	for seconds, want := range cases {
		if got := FormatTiming(seconds); got != want {
			t.Errorf("FormatTiming(%d) = %s, want %s", seconds, got, want)
		}
	}
}

func TestCategorizeSecurity(t *testing.T) {
	cases := map[float64]string{
		0.85: "high",
		0.7:  "high",
		0.5:  "medium",
		0.4:  "medium",
		0.3:  "low",
	}
	for score, want := range cases {
		if got := CategorizeSecurity(score); got != want {
			t.Errorf("CategorizeSecurity(%g) = %s, want %s", score, got, want)
		}
	}
}

func TestQuoteEstimated(t *testing.T) {
	q := &Quote{Bridge: "Hop"}
	if q.Estimated() {
		t.Error("quote without metadata should not be estimated")
	}
	q.Metadata = map[string]any{"estimated": true}
	if !q.Estimated() {
		t.Error("quote with estimated metadata should report estimated")
	}
	q.Metadata = map[string]any{"estimated": "yes"}
	if q.Estimated() {
		t.Error("non-bool estimated flag should not count")
	}
}
