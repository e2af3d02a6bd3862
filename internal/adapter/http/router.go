package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/iho/cashflow/internal/adapter/http/handler"
	"github.com/iho/cashflow/internal/adapter/http/middleware"
	"github.com/iho/cashflow/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	LedgerHandler    *handler.LedgerHandler
	ReportHandler    *handler.ReportHandler
	HealthHandler    *handler.HealthHandler
	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration
	Logger           zerolog.Logger
	Metrics          middleware.HTTPObserver
	MetricsHandler   http.Handler
	RateLimiter      *middleware.RateLimiter
	CORSOrigins      []string
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", middleware.IdempotencyKeyHeader},
			ExposedHeaders: []string{middleware.IdempotencyReplayHeader},
			MaxAge:         300,
		}))
	}
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.IdempotencyStore != nil {
			idempotency := middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL, cfg.Logger)
			r.Use(idempotency.Wrap)
		}

		r.Route("/ledgers", func(r chi.Router) {
			r.Post("/", cfg.LedgerHandler.Register)
			r.Get("/", cfg.LedgerHandler.List)
			r.Get("/{id}", cfg.LedgerHandler.Get)
			r.Patch("/{id}", cfg.LedgerHandler.Rename)
			r.Delete("/{id}", cfg.LedgerHandler.Delete)
			r.Post("/{id}/credits", cfg.LedgerHandler.Credit)
			r.Post("/{id}/debits", cfg.LedgerHandler.Debit)
			r.Get("/{id}/entries", cfg.LedgerHandler.Entries)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/", cfg.ReportHandler.Stored)
			r.Get("/daily", cfg.ReportHandler.Daily)
			r.Get("/period", cfg.ReportHandler.Period)
			r.Get("/snapshot", cfg.ReportHandler.Snapshot)
			r.Get("/reconcile", cfg.ReportHandler.Reconcile)
			r.Post("/consolidate", cfg.ReportHandler.Consolidate)
		})
	})

	return r
}
