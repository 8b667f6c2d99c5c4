package bridge

import (
	"context"
	"math"
	"sync/atomic"
	"time"
)

// RetryPolicy retries a provider call with exponential backoff. The caller's
// context bounds the whole loop, so a provider deadline covers every attempt
// plus the sleeps between them.
type RetryPolicy struct {
	// MaxRetries is the number of attempts after the first.
	MaxRetries int
	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration
	// MaxBackoff caps the computed backoff.
	MaxBackoff time.Duration
	// BackoffMultiplier grows the delay per attempt.
	BackoffMultiplier float64

	Metrics RetryMetrics
}

// RetryMetrics counts retry activity with atomic counters.
type RetryMetrics struct {
	Attempts  atomic.Int64
	Retries   atomic.Int64
	Successes atomic.Int64
	Failures  atomic.Int64
}

// DefaultRetryPolicy mirrors the upstream client behavior: three retries,
// 100ms initial backoff, doubling per attempt.
func DefaultRetryPolicy(maxRetries int) *RetryPolicy {
	return &RetryPolicy{
		MaxRetries:        maxRetries,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// Execute runs fn until it succeeds, a non-retryable error occurs, retries
// are exhausted, or ctx expires.
func (p *RetryPolicy) Execute(ctx context.Context, fn func(ctx context.Context) (*Quote, error)) (*Quote, error) {
	var lastErr error

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			p.Metrics.Retries.Add(1)
			select {
			case <-ctx.Done():
				p.Metrics.Failures.Add(1)
				return nil, ctx.Err()
			case <-time.After(p.backoff(attempt - 1)):
			}
		}

		p.Metrics.Attempts.Add(1)
		quote, err := fn(ctx)
		if err == nil {
			p.Metrics.Successes.Add(1)
			return quote, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			p.Metrics.Failures.Add(1)
			return nil, err
		}
		if ctx.Err() != nil {
			p.Metrics.Failures.Add(1)
			return nil, ctx.Err()
		}
	}

	p.Metrics.Failures.Add(1)
	return nil, lastErr
}

// backoff computes the delay before retry number attempt (0-based).
func (p *RetryPolicy) backoff(attempt int) time.Duration {
	d := time.Duration(float64(p.InitialBackoff) * math.Pow(p.BackoffMultiplier, float64(attempt)))
	if d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	return d
}
