package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iho/cashflow/internal/infrastructure/circuitbreaker"
)

const namespace = "cashflow"

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Consolidation metrics
	ConsolidationRuns     *prometheus.CounterVec
	ConsolidationDuration *prometheus.HistogramVec
	RetriesPublished      prometheus.Counter
	RetriesExhausted      prometheus.Counter

	// Circuit breaker metrics
	BreakerState       *prometheus.GaugeVec
	BreakerTransitions *prometheus.CounterVec

	// Cache metrics
	CacheRequests *prometheus.CounterVec
	CacheErrors   *prometheus.CounterVec

	// API metrics
	HTTPRequests         *prometheus.CounterVec
	HTTPDuration         *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	RateLimitHits        prometheus.Counter
}

// New creates all metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Consolidation metrics
		ConsolidationRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "consolidation_runs_total",
				Help:      "Daily consolidation attempts by trigger and outcome",
			},
			[]string{"trigger", "outcome"},
		),
		ConsolidationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "consolidation_duration_seconds",
				Help:      "Duration of daily consolidation attempts",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"trigger"},
		),
		RetriesPublished: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consolidation_retries_published_total",
			Help:      "Consolidation requests republished for retry",
		}),
		RetriesExhausted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consolidation_retries_exhausted_total",
			Help:      "Consolidation requests dropped after the last retry",
		}),

		// Circuit breaker metrics
		BreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0 closed, 1 open, 2 half-open)",
			},
			[]string{"name"},
		),
		BreakerTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_transitions_total",
				Help:      "Circuit breaker state changes",
			},
			[]string{"name", "to"},
		),

		// Cache metrics
		CacheRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_requests_total",
				Help:      "Report cache lookups by namespace and result",
			},
			[]string{"namespace", "result"},
		),
		CacheErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_errors_total",
				Help:      "Report cache backend errors by operation",
			},
			[]string{"operation"},
		),

		// API metrics
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
		HTTPRequestsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		}),
		RateLimitHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_hits_total",
			Help:      "Requests rejected by the rate limiter",
		}),
	}
}

// CacheHit records a report cache hit.
func (m *Metrics) CacheHit(ns string) {
	m.CacheRequests.WithLabelValues(ns, "hit").Inc()
}

// CacheMiss records a report cache miss.
func (m *Metrics) CacheMiss(ns string) {
	m.CacheRequests.WithLabelValues(ns, "miss").Inc()
}

// CacheError records a failed cache operation.
func (m *Metrics) CacheError(operation string) {
	m.CacheErrors.WithLabelValues(operation).Inc()
}

// ObserveConsolidation records one consolidation attempt.
func (m *Metrics) ObserveConsolidation(trigger, outcome string, d time.Duration) {
	m.ConsolidationRuns.WithLabelValues(trigger, outcome).Inc()
	m.ConsolidationDuration.WithLabelValues(trigger).Observe(d.Seconds())
}

func (m *Metrics) IncRetryPublished() { m.RetriesPublished.Inc() }
func (m *Metrics) IncRetryExhausted() { m.RetriesExhausted.Inc() }

// BreakerStateChanged matches circuitbreaker.Config.OnStateChange.
func (m *Metrics) BreakerStateChanged(name string, _, to circuitbreaker.State) {
	m.BreakerState.WithLabelValues(name).Set(float64(to))
	m.BreakerTransitions.WithLabelValues(name, to.String()).Inc()
}

// ObserveHTTP records a served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) RequestStarted()  { m.HTTPRequestsInFlight.Inc() }
func (m *Metrics) RequestFinished() { m.HTTPRequestsInFlight.Dec() }

// RateLimited counts a request rejected by the rate limiter.
func (m *Metrics) RateLimited() { m.RateLimitHits.Inc() }
