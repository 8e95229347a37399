// Package metrics defines the Prometheus collectors used by the autophrase
// service and serves them for scraping.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/autophrase/pkg/resilience"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal      *prometheus.CounterVec
	HTTPRequestDuration    *prometheus.HistogramVec
	HTTPRequestsInFlight   prometheus.Gauge
	RewritesTotal          *prometheus.CounterVec
	RewriteDuration        prometheus.Histogram
	PhrasesMatchedTotal    prometheus.Counter
	DelegationErrorsTotal  *prometheus.CounterVec
	DictionaryPhrases      prometheus.Gauge
	DictionaryVersion      prometheus.Gauge
	DictionaryReloadsTotal *prometheus.CounterVec
	PlanCacheHitsTotal     prometheus.Counter
	PlanCacheMissesTotal   prometheus.Counter
	CircuitBreakerState    *prometheus.GaugeVec
}

// New creates all collectors and registers them with reg. The service
// passes NewRegistry(); tests pass a bare prometheus.NewRegistry().
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		RewritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autophrase_rewrites_total",
				Help: "Total query rewrites by outcome (rewritten, unchanged).",
			},
			[]string{"outcome"},
		),
		RewriteDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "autophrase_rewrite_duration_seconds",
				Help:    "Time spent tokenizing and rewriting one query.",
				Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
			},
		),
		PhrasesMatchedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "autophrase_phrases_matched_total",
				Help: "Total phrases detected and joined across all rewrites.",
			},
		),
		DelegationErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autophrase_delegation_errors_total",
				Help: "Downstream parser failures by reason (unknown_parser, parser_error).",
			},
			[]string{"reason"},
		),
		DictionaryPhrases: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "autophrase_dictionary_phrases",
				Help: "Number of distinct phrases in the published dictionary.",
			},
		),
		DictionaryVersion: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "autophrase_dictionary_version",
				Help: "Version of the published dictionary snapshot.",
			},
		),
		DictionaryReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autophrase_dictionary_reloads_total",
				Help: "Dictionary builds by trigger and status.",
			},
			[]string{"trigger", "status"},
		),
		PlanCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "autophrase_plan_cache_hits_total",
				Help: "Total number of plan cache hits.",
			},
		),
		PlanCacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "autophrase_plan_cache_misses_total",
				Help: "Total number of plan cache misses.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.RewritesTotal,
		m.RewriteDuration,
		m.PhrasesMatchedTotal,
		m.DelegationErrorsTotal,
		m.DictionaryPhrases,
		m.DictionaryVersion,
		m.DictionaryReloadsTotal,
		m.PlanCacheHitsTotal,
		m.PlanCacheMissesTotal,
		m.CircuitBreakerState,
	)

	return m
}

// ObserveBreaker records a circuit breaker transition. It is shaped to be
// used as resilience.CircuitBreakerConfig.OnStateChange and is a no-op on a
// nil *Metrics.
func (m *Metrics) ObserveBreaker(name string, _, to resilience.State) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
}
