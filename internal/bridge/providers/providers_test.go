package providers

import (
	"context"
	"strings"
	"testing"

	"github.com/wudi/bridgerouter/internal/bridge"
)

func TestCacheKeyDefaultsAmount(t *testing.T) {
	req := bridge.QuoteRequest{Asset: "USDC", FromChain: "ethereum", ToChain: "polygon"}
	if got := cacheKey("hop", req); got != "hop:USDC:ethereum:polygon:1000000" {
		t.Errorf("unexpected cache key: %s", got)
	}

	req.Amount = "500000"
	if got := cacheKey("hop", req); got != "hop:USDC:ethereum:polygon:500000" {
		t.Errorf("unexpected cache key with amount: %s", got)
	}
}

func TestReadableAmount(t *testing.T) {
	cases := []struct {
		amount string
		asset  string
		want   float64
	}{
		{"1000000", "USDC", 1.0},
		{"500000", "USDC", 0.5},
		{"1000000000000000000", "ETH", 1.0},
		{"", "USDC", 1.0},
		{"garbage", "USDC", 1.0},
	}
	for _, tc := range cases {
		if got := readableAmount(tc.amount, tc.asset); got != tc.want {
			t.Errorf("readableAmount(%q, %q) = %v, want %v", tc.amount, tc.asset, got, tc.want)
		}
	}
}

func TestFormatLiquidity(t *testing.T) {
	if got := formatLiquidity(1_000_000, "USDC"); got != "1,000,000 USDC" {
		t.Errorf("unexpected liquidity string: %s", got)
	}
	if got := formatLiquidity(950, "ETH"); got != "950 ETH" {
		t.Errorf("unexpected liquidity string: %s", got)
	}
}

func TestChainMappings(t *testing.T) {
	if id, err := acrossChainID("arbitrum"); err != nil || id != 42161 {
		t.Errorf("across arbitrum = %d, %v", id, err)
	}
	if slug, err := hopChainSlug("zkevm"); err != nil || slug != "polygonzk" {
		t.Errorf("hop zkevm = %s, %v", slug, err)
	}
	if key, err := stargateChainKey("bnb-smart-chain"); err != nil || key != "bsc" {
		t.Errorf("stargate bnb = %s, %v", key, err)
	}
	if id, err := cbridgeChainID("aurora"); err != nil || id != 1313161554 {
		t.Errorf("cbridge aurora = %d, %v", id, err)
	}
	if name, err := axelarChainName("cosmos"); err != nil || name != "cosmoshub" {
		t.Errorf("axelar cosmos = %s, %v", name, err)
	}
	if id, err := everclearChainID("solana"); err != nil || id != 1399811149 {
		t.Errorf("everclear solana = %d, %v", id, err)
	}
	if id, err := orbiterChainID("starknet"); err != nil || id != "SN_MAIN" {
		t.Errorf("orbiter starknet = %s, %v", id, err)
	}
	if id, err := wormholeChainID("base"); err != nil || id != 30 {
		t.Errorf("wormhole base = %d, %v", id, err)
	}
	if id, err := layerzeroChainID("zora"); err != nil || id != 7777777 {
		t.Errorf("layerzero zora = %d, %v", id, err)
	}

	if _, e := acrossChainID("invalid-chain"); bridge.KindOf(e) != bridge.KindUnsupportedRoute {
		t.Errorf("unknown chain should map to unsupported route, got %v", e)
	}
}

func TestAssetMappings(t *testing.T) {
	if tok, e := hopToken("USDCE"); e != nil || tok != "USDC.e" {
		t.Errorf("hop USDCE = %s, %v", tok, e)
	}
	if tok, e := hopToken("SUSD"); e != nil || tok != "sUSD" {
		t.Errorf("hop SUSD = %s, %v", tok, e)
	}
	if tok, e := cbridgeToken("ETH"); e != nil || tok != "WETH" {
		t.Errorf("cbridge ETH = %s, %v", tok, e)
	}
	if tok, e := everclearTicker("AVAX"); e != nil || tok != "WAVAX" {
		t.Errorf("everclear AVAX = %s, %v", tok, e)
	}
	if tok, e := wormholeToken("MATIC"); e != nil || tok != "WMATIC" {
		t.Errorf("wormhole MATIC = %s, %v", tok, e)
	}
	if d := axelarDenom("USDC"); d != "uusdc" {
		t.Errorf("axelar USDC denom = %s", d)
	}
	// Axelar passes unknown assets through lowercased.
	if d := axelarDenom("NEWTOKEN"); d != "newtoken" {
		t.Errorf("axelar unknown denom = %s", d)
	}

	if _, e := hopToken("UNKNOWN"); bridge.KindOf(e) != bridge.KindUnsupportedAsset {
		t.Errorf("expected unsupported asset, got %v", e)
	}
}

func TestTransferTimeHeuristics(t *testing.T) {
	if hopTransferTime("ethereum", "arbitrum") != 1200 || hopTransferTime("arbitrum", "ethereum") != 900 || hopTransferTime("arbitrum", "optimism") != 180 {
		t.Error("hop transfer time heuristic broken")
	}
	if stargateTransferTime("ethereum", "polygon") != 600 || stargateTransferTime("arbitrum", "polygon") != 180 {
		t.Error("stargate transfer time heuristic broken")
	}
	if cbridgeTransferTime("bsc", "arbitrum") != 1200 || cbridgeTransferTime("optimism", "base") != 360 {
		t.Error("cbridge transfer time heuristic broken")
	}
	if orbiterTransferTime("ethereum", "arbitrum") != 900 || orbiterTransferTime("zksync", "linea") != 120 {
		t.Error("orbiter transfer time heuristic broken")
	}
	if everclearSettlementTime("arbitrum", "optimism") != 45 || everclearSettlementTime("ethereum", "base") != 240 {
		t.Error("everclear settlement time heuristic broken")
	}
	if axelarTransferTime("cosmos", "osmosis") != 60 || axelarTransferTime("sui", "ethereum") != 1200 || axelarTransferTime("ethereum", "polygon") != 900 {
		t.Error("axelar transfer time heuristic broken")
	}
}

func TestEstimates(t *testing.T) {
	req := bridge.QuoteRequest{
		Asset:     "USDC",
		FromChain: "ethereum",
		ToChain:   "polygon",
		Amount:    "1000000",
		Slippage:  0.5,
	}

	hop := NewHop(Config{Retries: 1})
	q, e := hop.estimate(bridge.QuoteRequest{Asset: "USDC", FromChain: "optimism", ToChain: "arbitrum", Amount: "1000000"})
	if e != nil {
		t.Fatalf("hop estimate failed: %v", e)
	}
	if q.Bridge != "Hop" || q.Fee != 0.3 || q.EstTime != 180 || q.Liquidity == "" {
		t.Errorf("unexpected hop estimate: %+v", q)
	}
	if !q.Estimated() {
		t.Error("hop estimate should be flagged estimated")
	}

	sg := NewStargate(Config{Retries: 1})
	q, e = sg.estimate(req)
	if e != nil {
		t.Fatalf("stargate estimate failed: %v", e)
	}
	// 1 USDC at 0.06% plus $0.12 messaging.
	if q.EstTime != 600 || q.Fee < 0.12 || q.Fee > 0.20 {
		t.Errorf("unexpected stargate estimate: %+v", q)
	}

	cb := NewCBridge(Config{Retries: 1})
	q, e = cb.estimate(req)
	if e != nil {
		t.Fatalf("cbridge estimate failed: %v", e)
	}
	if q.EstTime != 1200 || q.Fee < 0.08 || q.Fee > 0.15 {
		t.Errorf("unexpected cbridge estimate: %+v", q)
	}

	orb := NewOrbiter(Config{Retries: 1})
	q, e = orb.estimate(bridge.QuoteRequest{Asset: "ETH", FromChain: "arbitrum", ToChain: "optimism", Amount: "1000000000000000000"})
	if e != nil {
		t.Fatalf("orbiter estimate failed: %v", e)
	}
	if q.EstTime != 120 || q.Fee < 0.0001 || q.Fee > 0.01 {
		t.Errorf("unexpected orbiter estimate: %+v", q)
	}
}

func TestEstimateRejectsUnsupportedRoutes(t *testing.T) {
	ctx := context.Background()
	bad := bridge.QuoteRequest{Asset: "USDC", FromChain: "invalid-chain", ToChain: "arbitrum", Amount: "1000000"}
	badAsset := bridge.QuoteRequest{Asset: "UNKNOWN-TOKEN", FromChain: "optimism", ToChain: "arbitrum", Amount: "1000000"}

	for _, p := range All(Config{Retries: 1}) {
		if _, e := p.GetQuote(ctx, bad); bridge.KindOf(e) != bridge.KindUnsupportedRoute {
			t.Errorf("%s: expected unsupported route, got %v", p.Name(), e)
		}
		// Axelar passes unknown assets through to cover new gateway tokens.
		if p.Name() == "Axelar" {
			continue
		}
		if _, e := p.GetQuote(ctx, badAsset); e == nil {
			t.Errorf("%s: expected error for unknown asset", p.Name())
		}
	}
}

func TestEstimateOnlyAdapters(t *testing.T) {
	ctx := context.Background()
	req := bridge.QuoteRequest{Asset: "USDC", FromChain: "ethereum", ToChain: "polygon", Amount: "1000000"}

	for _, p := range []bridge.Provider{NewSynapse(Config{Retries: 1}), NewWormhole(Config{Retries: 1}), NewLayerZero(Config{Retries: 1})} {
		q, e := p.GetQuote(ctx, req)
		if e != nil {
			t.Fatalf("%s quote failed: %v", p.Name(), e)
		}
		if q.Bridge != p.Name() || q.Fee <= 0 || q.EstTime <= 0 {
			t.Errorf("%s: unexpected quote %+v", p.Name(), q)
		}
		if !q.Estimated() {
			t.Errorf("%s: quote should be flagged estimated", p.Name())
		}
	}
}

func TestRegistryOrder(t *testing.T) {
	names := make([]string, 0, 10)
	for _, p := range All(Config{Retries: 1}) {
		names = append(names, p.Name())
	}
	want := "Hop,Across,Stargate,Celer cBridge,Axelar,Everclear,Orbiter,Synapse,Wormhole,LayerZero"
	if got := strings.Join(names, ","); got != want {
		t.Errorf("registry order = %s, want %s", got, want)
	}
}
