package bridge

import (
	"context"
	"sort"
	"testing"
	"time"
)

type stubProvider struct {
	name  string
	quote *Quote
	err   error
	delay time.Duration
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) GetQuote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.quote, nil
}

func TestAggregatorCollectsPartialResults(t *testing.T) {
	providers := []Provider{
		&stubProvider{name: "Across", quote: &Quote{Bridge: "Across", Fee: 0.1, EstTime: 60}},
		&stubProvider{name: "Hop", err: ErrServiceUnavailable()},
		&stubProvider{name: "Synapse", quote: &Quote{Bridge: "Synapse", Fee: 0.3, EstTime: 300}},
	}
	a := NewAggregator(providers, time.Second, nil)

	result := a.GetAllQuotes(context.Background(), QuoteRequest{
		Asset: "USDC", FromChain: "ethereum", ToChain: "arbitrum",
	})

	if len(result.Quotes) != 2 {
		t.Fatalf("expected 2 quotes, got %d", len(result.Quotes))
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 error, got %d", len(result.Errors))
	}
	if result.Errors[0].Bridge != "Hop" {
		t.Errorf("expected Hop to fail, got %s", result.Errors[0].Bridge)
	}
}

func TestAggregatorEnforcesProviderDeadline(t *testing.T) {
	providers := []Provider{
		&stubProvider{name: "Fast", quote: &Quote{Bridge: "Fast", Fee: 0.1}},
		&stubProvider{name: "Slow", delay: 5 * time.Second, quote: &Quote{Bridge: "Slow"}},
	}
	a := NewAggregator(providers, 50*time.Millisecond, nil)

	start := time.Now()
	result := a.GetAllQuotes(context.Background(), QuoteRequest{Asset: "USDC"})
	elapsed := time.Since(start)

	if elapsed > time.Second {
		t.Fatalf("slow provider blocked the fan-out for %v", elapsed)
	}
	if len(result.Quotes) != 1 || result.Quotes[0].Bridge != "Fast" {
		t.Fatalf("expected only the fast provider's quote, got %+v", result.Quotes)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected the slow provider to be reported, got %+v", result.Errors)
	}
}

func TestAggregatorCircuitBreakerSkipsFlappingProvider(t *testing.T) {
	failing := &stubProvider{name: "Down", err: ErrServiceUnavailable()}
	a := NewAggregator([]Provider{failing}, time.Second, nil)

	req := QuoteRequest{Asset: "USDC", FromChain: "ethereum", ToChain: "base"}
	for i := 0; i < 6; i++ {
		// Vary the amount so coalescing does not collapse the calls.
		req.Amount = string(rune('a' + i))
		a.GetAllQuotes(context.Background(), req)
	}

	// Breaker should now be open: the provider is not called anymore.
	failing.err = nil
	failing.quote = &Quote{Bridge: "Down"}
	req.Amount = "final"
	result := a.GetAllQuotes(context.Background(), req)

	if len(result.Quotes) != 0 {
		t.Fatal("expected breaker to keep the provider out of rotation")
	}
	if len(result.Errors) != 1 || result.Errors[0].Error != "Bridge service unavailable" {
		t.Fatalf("expected a service unavailable error, got %+v", result.Errors)
	}
}

func TestAggregatorUnsupportedRouteDoesNotTripBreaker(t *testing.T) {
	p := &stubProvider{name: "Picky", err: ErrUnsupportedRoute("ethereum", "solana")}
	a := NewAggregator([]Provider{p}, time.Second, nil)

	req := QuoteRequest{Asset: "USDC", FromChain: "ethereum", ToChain: "solana"}
	for i := 0; i < 10; i++ {
		req.Amount = string(rune('a' + i))
		a.GetAllQuotes(context.Background(), req)
	}

	// The provider starts supporting the route; the breaker must not be open.
	p.err = nil
	p.quote = &Quote{Bridge: "Picky", Fee: 0.2}
	req.Amount = "final"
	result := a.GetAllQuotes(context.Background(), req)

	if len(result.Quotes) != 1 {
		t.Fatalf("unsupported-route errors must not trip the breaker: %+v", result.Errors)
	}
}

func TestAggregatorFanOutSurvivesCallerCancel(t *testing.T) {
	p := &stubProvider{name: "Steady", delay: 10 * time.Millisecond, quote: &Quote{Bridge: "Steady", Fee: 0.1}}
	a := NewAggregator([]Provider{p}, time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := a.GetAllQuotes(ctx, QuoteRequest{Asset: "USDC", FromChain: "ethereum", ToChain: "base"})
	if len(result.Quotes) != 1 {
		t.Fatalf("a cancelled caller must not cancel the shared fan-out: %+v", result.Errors)
	}
}

func TestAggregatorProviders(t *testing.T) {
	a := NewAggregator([]Provider{
		&stubProvider{name: "Hop"},
		&stubProvider{name: "Across"},
	}, time.Second, nil)

	names := a.Providers()
	sort.Strings(names)
	if len(names) != 2 || names[0] != "Across" || names[1] != "Hop" {
		t.Errorf("unexpected provider names: %v", names)
	}
}
