// Package metrics exposes Prometheus collectors for the quote service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultBuckets are histogram buckets in seconds, sized for an endpoint
// whose slow path is a 10s provider fan-out.
var DefaultBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0}

// Metrics holds all collectors behind a private registry.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	ProviderDuration *prometheus.HistogramVec
	ProviderFailures *prometheus.CounterVec
	CacheResults     *prometheus.CounterVec
	RateLimitDenied  prometheus.Counter
}

// New creates and registers all collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridgerouter_requests_total",
			Help: "HTTP requests by path and status code.",
		}, []string{"path", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bridgerouter_request_duration_seconds",
			Help:    "HTTP request latency by path.",
			Buckets: DefaultBuckets,
		}, []string{"path"}),
		ProviderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bridgerouter_provider_duration_seconds",
			Help:    "Bridge provider quote latency.",
			Buckets: DefaultBuckets,
		}, []string{"provider"}),
		ProviderFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridgerouter_provider_failures_total",
			Help: "Bridge provider quote failures by kind.",
		}, []string{"provider", "kind"}),
		CacheResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridgerouter_cache_results_total",
			Help: "Aggregated quote cache lookups by outcome (hit, miss, stale).",
		}, []string{"result"}),
		RateLimitDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bridgerouter_rate_limit_denied_total",
			Help: "Requests rejected by the per-client rate limit.",
		}),
	}

	registry.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.ProviderDuration,
		m.ProviderFailures,
		m.CacheResults,
		m.RateLimitDenied,
	)

	return m
}

// Handler returns the /metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveProvider records one provider call.
func (m *Metrics) ObserveProvider(provider string, d time.Duration, failureKind string) {
	m.ProviderDuration.WithLabelValues(provider).Observe(d.Seconds())
	if failureKind != "" {
		m.ProviderFailures.WithLabelValues(provider, failureKind).Inc()
	}
}
