package bridge

import (
	"context"
	"testing"
	"time"
)

func fastPolicy(maxRetries int) *RetryPolicy {
	return &RetryPolicy{
		MaxRetries:        maxRetries,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestRetrySucceedsAfterFailure(t *testing.T) {
	p := fastPolicy(3)
	attempts := 0

	quote, err := p.Execute(context.Background(), func(ctx context.Context) (*Quote, error) {
		attempts++
		if attempts < 3 {
			return nil, ErrNetwork(context.DeadlineExceeded)
		}
		return &Quote{Bridge: "Hop", Fee: 0.1}, nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if quote.Bridge != "Hop" {
		t.Errorf("unexpected quote: %+v", quote)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
	if got := p.Metrics.Retries.Load(); got != 2 {
		t.Errorf("expected 2 retries recorded, got %d", got)
	}
}

func TestRetryShortCircuitsNonRetryable(t *testing.T) {
	p := fastPolicy(5)
	attempts := 0

	_, err := p.Execute(context.Background(), func(ctx context.Context) (*Quote, error) {
		attempts++
		return nil, ErrUnsupportedRoute("ethereum", "solana")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("non-retryable error must not retry, got %d attempts", attempts)
	}
	if KindOf(err) != KindUnsupportedRoute {
		t.Errorf("expected unsupported route error, got %v", err)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	p := fastPolicy(2)
	attempts := 0

	_, err := p.Execute(context.Background(), func(ctx context.Context) (*Quote, error) {
		attempts++
		return nil, ErrServiceUnavailable()
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts (1 + 2 retries), got %d", attempts)
	}
}

func TestRetryHonorsContextDeadline(t *testing.T) {
	p := &RetryPolicy{
		MaxRetries:        10,
		InitialBackoff:    50 * time.Millisecond,
		MaxBackoff:        time.Second,
		BackoffMultiplier: 2.0,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := p.Execute(ctx, func(ctx context.Context) (*Quote, error) {
		return nil, ErrServiceUnavailable()
	})
	if err != context.DeadlineExceeded {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("retry loop outlived its deadline: %v", elapsed)
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(ErrUnsupportedAsset("XYZ")) {
		t.Error("unsupported asset should not be retryable")
	}
	if IsRetryable(ErrJSONParse(nil)) {
		t.Error("parse failure should not be retryable")
	}
	if !IsRetryable(ErrTimeout(time.Second)) {
		t.Error("timeout should be retryable")
	}
	if !IsRetryable(context.DeadlineExceeded) {
		t.Error("foreign errors default to retryable")
	}
}
