package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

type observed struct {
	method, route string
	status        int
}

type recordingObserver struct {
	mu       sync.Mutex
	requests []observed
	inFlight int
	peak     int
}

func (o *recordingObserver) ObserveHTTP(method, route string, status int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.requests = append(o.requests, observed{method, route, status})
}

func (o *recordingObserver) RequestStarted() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inFlight++
	o.peak = max(o.peak, o.inFlight)
}

func (o *recordingObserver) RequestFinished() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inFlight--
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	testCases := []struct {
		name       string
		method     string
		path       string
		statusCode int
		wantRoute  string
	}{
		{
			name:       "labels by route pattern",
			method:     http.MethodGet,
			path:       "/api/v1/ledgers/01HXYZ",
			statusCode: http.StatusTeapot,
			wantRoute:  "/api/v1/ledgers/{id}",
		},
		{
			name:       "static route",
			method:     http.MethodPost,
			path:       "/health",
			statusCode: http.StatusCreated,
			wantRoute:  "/health",
		},
		{
			name:       "unknown path",
			method:     http.MethodGet,
			path:       "/nope/123",
			statusCode: http.StatusNotFound,
			wantRoute:  "unmatched",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			obs := &recordingObserver{}
			r := chi.NewRouter()
			r.Use(Metrics(obs))
			h := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(tc.statusCode) }
			r.Get("/api/v1/ledgers/{id}", h)
			r.Post("/health", h)

			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(tc.method, tc.path, nil))

			if obs.inFlight != 0 || obs.peak != 1 {
				t.Fatalf("expected in-flight to rise to 1 and return to 0, got peak=%d now=%d", obs.peak, obs.inFlight)
			}
			if len(obs.requests) != 1 {
				t.Fatalf("expected one observation, got %d", len(obs.requests))
			}
			got := obs.requests[0]
			if got.method != tc.method || got.route != tc.wantRoute || got.status != tc.statusCode {
				t.Fatalf("unexpected observation %+v", got)
			}
		})
	}
}
