package bridge

import "testing"

func TestTokenDecimals(t *testing.T) {
	cases := map[string]int{
		"USDC": 6,
		"usdt": 6,
		"WBTC": 8,
		"ETH":  18,
		"DAI":  18,
	}
	for symbol, want := range cases {
		if got := TokenDecimals(symbol); got != want {
			t.Errorf("TokenDecimals(%q) = %d, want %d", symbol, got, want)
		}
	}
}

func TestAmountToSmallestUnit(t *testing.T) {
	cases := []struct {
		amount float64
		symbol string
		want   string
	}{
		{1, "USDC", "1000000"},
		{1.5, "USDC", "1500000"},
		{0.000001, "USDT", "1"},
		{1, "WBTC", "100000000"},
		{1, "ETH", "1000000000000000000"},
		{2.5, "ETH", "2500000000000000000"},
		{0, "USDC", "0"},
		{-1, "USDC", "0"},
	}
	for _, tc := range cases {
		if got := AmountToSmallestUnit(tc.amount, tc.symbol); got != tc.want {
			t.Errorf("AmountToSmallestUnit(%g, %q) = %s, want %s", tc.amount, tc.symbol, got, tc.want)
		}
	}
}
