package tokenprice

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/wudi/bridgerouter/internal/cache"
)

func TestCoingeckoIDMapping(t *testing.T) {
	cases := []struct {
		token string
		want  string
	}{
		{"ETH", "ethereum"},
		{"WETH", "ethereum"},
		{"USDC", "usd-coin"},
		{"USDT", "tether"},
		{"WBTC", "wrapped-bitcoin"},
	}
	for _, tc := range cases {
		id, ok := coingeckoID(tc.token)
		if !ok || id != tc.want {
			t.Errorf("coingeckoID(%q) = %q, %v, want %q", tc.token, id, ok, tc.want)
		}
	}

	if _, ok := coingeckoID("UNKNOWN"); ok {
		t.Error("unknown token should not map")
	}
}

func TestFallbackPrices(t *testing.T) {
	eth := Fallback("ETH")
	if eth.Symbol != "ETH" || eth.USDPrice != 3000.0 {
		t.Errorf("unexpected ETH fallback: %+v", eth)
	}

	usdc := Fallback("usdc")
	if usdc.Symbol != "USDC" || usdc.USDPrice != 1.0 {
		t.Errorf("unexpected USDC fallback: %+v", usdc)
	}

	unknown := Fallback("XYZ")
	if unknown.USDPrice != 1.0 || unknown.CoinGeckoID != "unknown" {
		t.Errorf("unexpected unknown fallback: %+v", unknown)
	}
}

func TestConvertToUSD(t *testing.T) {
	price := &TokenPrice{Symbol: "ETH", CoinGeckoID: "ethereum", USDPrice: 3000.0}

	if got := ConvertToUSD(1.0, price); got != 3000.0 {
		t.Errorf("1 ETH = %v, want 3000", got)
	}
	if got := ConvertToUSD(0.5, price); got != 1500.0 {
		t.Errorf("0.5 ETH = %v, want 1500", got)
	}
}

func TestGetTokenPriceLive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("ids"); got != "ethereum" {
			t.Errorf("unexpected ids: %s", got)
		}
		if got := r.Header.Get("x-cg-demo-api-key"); got != "demo-key" {
			t.Errorf("unexpected api key header: %s", got)
		}
		w.Write([]byte(`{"ethereum":{"usd":3421.55,"usd_24h_change":-2.31}}`))
	}))
	defer srv.Close()

	s := New("demo-key", nil, time.Minute)
	s.client = srv.Client()
	s.baseURL = srv.URL

	tp, err := s.GetTokenPrice(context.Background(), "WETH")
	if err != nil {
		t.Fatalf("get token price: %v", err)
	}
	if tp.Symbol != "WETH" || tp.USDPrice != 3421.55 {
		t.Errorf("unexpected price: %+v", tp)
	}
	if tp.PriceChange24h == nil || *tp.PriceChange24h != -2.31 {
		t.Errorf("unexpected 24h change: %v", tp.PriceChange24h)
	}
}

func TestGetTokenPriceFallsBackWhenAPIDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := New("", nil, time.Minute)
	s.client = srv.Client()
	s.baseURL = srv.URL

	tp, err := s.GetTokenPrice(context.Background(), "WBTC")
	if err != nil {
		t.Fatalf("expected fallback, got error: %v", err)
	}
	if tp.USDPrice != 60000.0 {
		t.Errorf("fallback WBTC price = %v, want 60000", tp.USDPrice)
	}
}

func TestGetTokenPriceCaches(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := cache.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.Write([]byte(`{"usd-coin":{"usd":1.0}}`))
	}))
	defer srv.Close()

	s := New("", rc, time.Minute)
	s.client = srv.Client()
	s.baseURL = srv.URL

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := s.GetTokenPrice(ctx, "USDC"); err != nil {
			t.Fatalf("get token price %d: %v", i, err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("expected 1 API call, got %d", calls)
	}
	if !mr.Exists("token_price:USDC") {
		t.Error("token price not written to redis")
	}
}

func TestUnknownTokenUsesFallbackWithoutAPI(t *testing.T) {
	s := New("", nil, time.Minute)
	tp, err := s.GetTokenPrice(context.Background(), "NEWCOIN")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tp.USDPrice != 1.0 {
		t.Errorf("unknown token price = %v, want 1.0", tp.USDPrice)
	}
}
