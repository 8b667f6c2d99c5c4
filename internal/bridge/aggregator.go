package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/wudi/bridgerouter/internal/logging"
	"github.com/wudi/bridgerouter/internal/metrics"
)

// AggregateResult holds the outcome of one fan-out: quotes from providers
// that answered, errors from those that did not.
type AggregateResult struct {
	Quotes []Quote
	Errors []QuoteError
}

// Aggregator fans a quote request out to every provider concurrently. Each
// provider gets its own deadline covering its full retry loop, and sits
// behind a circuit breaker so a flapping upstream is skipped instead of
// burning its deadline on every request.
type Aggregator struct {
	providers []Provider
	timeout   time.Duration
	breakers  map[string]*gobreaker.CircuitBreaker[*Quote]
	group     singleflight.Group
	metrics   *metrics.Metrics
}

// NewAggregator creates an aggregator over the given providers. timeout
// bounds a single provider's quote including retries; m may be nil.
func NewAggregator(providers []Provider, timeout time.Duration, m *metrics.Metrics) *Aggregator {
	breakers := make(map[string]*gobreaker.CircuitBreaker[*Quote], len(providers))
	for _, p := range providers {
		name := p.Name()
		breakers[name] = gobreaker.NewCircuitBreaker[*Quote](gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.Requests >= 5 && counts.ConsecutiveFailures >= 5
			},
			IsSuccessful: func(err error) bool {
				if err == nil {
					return true
				}
				// Unsupported routes/assets are answers, not upstream
				// failures; they must not trip the breaker.
				return !IsRetryable(err)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logging.Warn("Bridge circuit breaker state change",
					zap.String("provider", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		})
	}

	return &Aggregator{
		providers: providers,
		timeout:   timeout,
		breakers:  breakers,
		metrics:   m,
	}
}

// GetAllQuotes fans out to every provider and collects whatever arrives
// before the per-provider deadlines expire. Identical concurrent requests
// are coalesced so a burst of cache misses hits each upstream once.
func (a *Aggregator) GetAllQuotes(ctx context.Context, req QuoteRequest) AggregateResult {
	key := coalesceKey(req)
	v, _, shared := a.group.Do(key, func() (any, error) {
		// The shared fan-out must not die with whichever caller happened to
		// start it; the per-provider timeout still bounds the work.
		return a.fanOut(context.WithoutCancel(ctx), req), nil
	})
	if shared {
		logging.Debug("Coalesced identical quote request", zap.String("key", key))
	}
	return v.(AggregateResult)
}

func (a *Aggregator) fanOut(ctx context.Context, req QuoteRequest) AggregateResult {
	type outcome struct {
		quote *Quote
		err   error
	}

	// Indexed by provider so results keep registry order regardless of
	// completion order.
	outcomes := make([]outcome, len(a.providers))
	var wg sync.WaitGroup

	for i, p := range a.providers {
		wg.Add(1)
		go func(i int, p Provider) {
			defer wg.Done()

			pctx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()

			start := time.Now()
			quote, err := a.breakers[p.Name()].Execute(func() (*Quote, error) {
				return p.GetQuote(pctx, req)
			})
			elapsed := time.Since(start)

			if a.metrics != nil {
				kind := ""
				if err != nil {
					kind = failureKind(err)
				}
				a.metrics.ObserveProvider(p.Name(), elapsed, kind)
			}

			outcomes[i] = outcome{quote: quote, err: err}
		}(i, p)
	}

	wg.Wait()

	var out AggregateResult
	for i, r := range outcomes {
		name := a.providers[i].Name()
		switch {
		case r.err != nil:
			logging.Warn("Bridge quote failed",
				zap.String("provider", name),
				zap.Error(r.err),
			)
			out.Errors = append(out.Errors, QuoteError{
				Bridge: name,
				Error:  quoteErrorMessage(r.err, a.timeout),
			})
		case r.quote != nil:
			out.Quotes = append(out.Quotes, *r.quote)
		}
	}

	logging.Info("Bridge fan-out complete",
		zap.Int("quotes", len(out.Quotes)),
		zap.Int("errors", len(out.Errors)),
	)
	return out
}

// Providers returns the provider names in fan-out order.
func (a *Aggregator) Providers() []string {
	names := make([]string, 0, len(a.providers))
	for _, p := range a.providers {
		names = append(names, p.Name())
	}
	return names
}

func coalesceKey(req QuoteRequest) string {
	return strings.Join([]string{
		strings.ToLower(req.FromChain),
		strings.ToLower(req.ToChain),
		strings.ToUpper(req.Asset),
		req.Amount,
	}, ":")
}

func failureKind(err error) string {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "circuit_open"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return KindOf(err).String()
}

func quoteErrorMessage(err error, timeout time.Duration) string {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "Bridge service unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("Request timeout after %dms", timeout.Milliseconds())
	default:
		return err.Error()
	}
}
