package metrics

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/iho/cashflow/internal/adapter/http/middleware"
	"github.com/iho/cashflow/internal/infrastructure/circuitbreaker"
	"github.com/iho/cashflow/internal/infrastructure/worker"
	"github.com/iho/cashflow/internal/usecase"
)

var (
	_ usecase.CacheObserver = (*Metrics)(nil)
	_ worker.Metrics        = (*Metrics)(nil)

	_ middleware.HTTPObserver      = (*Metrics)(nil)
	_ middleware.RateLimitObserver = (*Metrics)(nil)
)

func TestNewRegistersMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.ObserveConsolidation(worker.TriggerTimer, worker.OutcomeSuccess, time.Second)
	m.CacheHit(usecase.NamespaceDaily)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	if len(families) == 0 {
		t.Fatalf("expected registered metrics, got none")
	}
}

func TestNewTwiceOnSeparateRegistries(t *testing.T) {
	New(prometheus.NewRegistry())
	New(prometheus.NewRegistry())
}

func TestCacheObserver(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.CacheHit(usecase.NamespaceDaily)
	m.CacheHit(usecase.NamespaceDaily)
	m.CacheMiss(usecase.NamespacePeriod)
	m.CacheError("get")

	if got := testutil.ToFloat64(m.CacheRequests.WithLabelValues(usecase.NamespaceDaily, "hit")); got != 2 {
		t.Fatalf("expected 2 daily hits, got %v", got)
	}
	if got := testutil.ToFloat64(m.CacheRequests.WithLabelValues(usecase.NamespacePeriod, "miss")); got != 1 {
		t.Fatalf("expected 1 period miss, got %v", got)
	}
	if got := testutil.ToFloat64(m.CacheErrors.WithLabelValues("get")); got != 1 {
		t.Fatalf("expected 1 get error, got %v", got)
	}
}

func TestWorkerMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveConsolidation(worker.TriggerQueue, worker.OutcomeFailure, 10*time.Millisecond)
	m.IncRetryPublished()
	m.IncRetryExhausted()

	if got := testutil.ToFloat64(m.ConsolidationRuns.WithLabelValues(worker.TriggerQueue, worker.OutcomeFailure)); got != 1 {
		t.Fatalf("expected one failed run, got %v", got)
	}
	if got := testutil.ToFloat64(m.RetriesPublished); got != 1 {
		t.Fatalf("expected one retry, got %v", got)
	}
	if got := testutil.ToFloat64(m.RetriesExhausted); got != 1 {
		t.Fatalf("expected one exhaustion, got %v", got)
	}
}

func TestBreakerStateChanged(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.BreakerStateChanged("consolidation", circuitbreaker.StateClosed, circuitbreaker.StateOpen)
	if got := testutil.ToFloat64(m.BreakerState.WithLabelValues("consolidation")); got != 1 {
		t.Fatalf("expected open gauge value 1, got %v", got)
	}

	m.BreakerStateChanged("consolidation", circuitbreaker.StateOpen, circuitbreaker.StateHalfOpen)
	if got := testutil.ToFloat64(m.BreakerState.WithLabelValues("consolidation")); got != 2 {
		t.Fatalf("expected half-open gauge value 2, got %v", got)
	}
	if got := testutil.ToFloat64(m.BreakerTransitions.WithLabelValues("consolidation", "open")); got != 1 {
		t.Fatalf("expected one transition to open, got %v", got)
	}
}

func TestObserveHTTP(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveHTTP(http.MethodGet, "/api/v1/ledgers/{id}", http.StatusNotFound, time.Millisecond)

	counter := m.HTTPRequests.WithLabelValues(http.MethodGet, "/api/v1/ledgers/{id}", "404")
	if got := testutil.ToFloat64(counter); got != 1 {
		t.Fatalf("expected one request, got %v", got)
	}
}
