package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	httpAdapter "github.com/iho/cashflow/internal/adapter/http"
	"github.com/iho/cashflow/internal/adapter/http/handler"
	"github.com/iho/cashflow/internal/adapter/http/middleware"
	memoryQueue "github.com/iho/cashflow/internal/adapter/messaging/memory"
	redisQueue "github.com/iho/cashflow/internal/adapter/messaging/redis"
	memoryRepo "github.com/iho/cashflow/internal/adapter/repository/memory"
	postgresRepo "github.com/iho/cashflow/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/cashflow/internal/adapter/repository/redis"
	sqliteRepo "github.com/iho/cashflow/internal/adapter/repository/sqlite"
	"github.com/iho/cashflow/internal/infrastructure/circuitbreaker"
	"github.com/iho/cashflow/internal/infrastructure/config"
	"github.com/iho/cashflow/internal/infrastructure/logger"
	"github.com/iho/cashflow/internal/infrastructure/metrics"
	"github.com/iho/cashflow/internal/infrastructure/postgres"
	"github.com/iho/cashflow/internal/infrastructure/redis"
	"github.com/iho/cashflow/internal/infrastructure/worker"
	"github.com/iho/cashflow/internal/usecase"
)

const visitorIdleTimeout = 10 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: "cashflow",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
	log.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := newApp(ctx, cfg, log, registry)
	if err != nil {
		return err
	}
	defer a.close()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      a.handler,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if cfg.WorkerEnabled {
		g.Go(func() error {
			if err := a.worker.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if a.limiter != nil {
		g.Go(func() error {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					if n := a.limiter.CleanupVisitors(visitorIdleTimeout); n > 0 {
						log.Debug().Int("removed", n).Msg("rate limiter visitors cleaned up")
					}
				}
			}
		})
	}

	return g.Wait()
}

// app is the wired service: everything run needs besides the listener.
type app struct {
	handler http.Handler
	worker  *worker.Worker
	limiter *middleware.RateLimiter
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newApp(ctx context.Context, cfg *config.Config, log zerolog.Logger, registry *prometheus.Registry) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	m := metrics.New(registry)
	checks := map[string]handler.Check{}

	repo, err := openStore(ctx, cfg, log, a, checks)
	if err != nil {
		return nil, err
	}

	var redisClient *goredis.Client
	if cfg.NeedsRedis() {
		redisClient, err = redis.NewClient(ctx, redis.Options{
			URL:         cfg.RedisURL,
			PoolSize:    cfg.RedisPoolSize,
			ConnectWait: cfg.RedisConnectWait,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.closers = append(a.closers, func() { redisClient.Close() })
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
		log.Info().Msg("connected to redis")
	}

	var cache usecase.Cache = memoryRepo.NopCache{}
	switch {
	case !cfg.CacheEnabled:
	case cfg.CacheBackend == config.CacheMemory:
		cache = memoryRepo.NewCache(nil)
	default:
		cache = redisRepo.NewCache(redisClient, cfg.RedisPrefix)
	}
	reportCache := usecase.NewReportCache(cache, log, m)

	var channel usecase.MessageChannel
	if cfg.QueueBackend == config.QueueRedis {
		host, _ := os.Hostname()
		channel = redisQueue.NewChannel(redisClient, redisQueue.Config{
			Prefix:      cfg.RedisPrefix + "queue:",
			Group:       "consolidation-workers",
			Consumer:    fmt.Sprintf("%s-%d", host, os.Getpid()),
			Concurrency: cfg.QueueConcurrency,
			Logger:      log,
		})
	} else {
		channel = memoryQueue.NewChannel(64)
	}

	var (
		dateLock    usecase.DateLock
		idempotency usecase.IdempotencyStore
	)
	if redisClient != nil {
		dateLock = redisRepo.NewDateLock(redisClient, cfg.RedisPrefix)
		idempotency = redisRepo.NewIdempotencyStore(redisClient, cfg.RedisPrefix)
	}

	idGen := postgresRepo.NewULIDGenerator()

	ledgerUC := usecase.NewLedgerUseCase(repo, reportCache, idGen, usecase.WithDebitPolicy(cfg.Policy()))
	reportUC := usecase.NewReportUseCase(repo, reportCache, idGen, usecase.WithReportTTLs(cfg.DailyReportTTL, cfg.SnapshotTTL))
	reconciliationUC := usecase.NewReconciliationUseCase(repo)

	breaker := circuitbreaker.New(circuitbreaker.Config{
		Name:          "consolidation",
		Threshold:     cfg.BreakerThreshold,
		Cooldown:      cfg.BreakerCooldown,
		OnStateChange: m.BreakerStateChanged,
	})

	a.worker = worker.New(worker.Config{
		Consolidator:      reportUC,
		Channel:           channel,
		Breaker:           breaker,
		Lock:              dateLock,
		Logger:            log,
		Metrics:           m,
		Queue:             cfg.QueueName,
		Interval:          cfg.ConsolidationInterval,
		MaxRetries:        cfg.MaxRetries,
		RetryInitialDelay: cfg.RetryInitialDelay,
		RetryMaxDelay:     cfg.RetryMaxDelay,
		LockTTL:           cfg.DateLockTTL,
	})

	if cfg.RateLimitRPS > 0 {
		a.limiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, m)
	}

	a.handler = httpAdapter.NewRouter(httpAdapter.RouterConfig{
		LedgerHandler:    handler.NewLedgerHandler(ledgerUC, cfg.Currency),
		ReportHandler:    handler.NewReportHandler(reportUC, a.worker, reconciliationUC, cfg.Currency),
		HealthHandler:    handler.NewHealthHandler(checks),
		IdempotencyStore: idempotency,
		IdempotencyTTL:   cfg.IdempotencyTTL,
		Logger:           log,
		Metrics:          m,
		MetricsHandler:   promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		RateLimiter:      a.limiter,
		CORSOrigins:      cfg.CORSAllowedOrigins,
	})

	return a, nil
}

// openStore opens the configured ledger store and registers its cleanup
// and readiness probe.
func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger, a *app, checks map[string]handler.Check) (usecase.LedgerRepository, error) {
	switch cfg.StoreBackend {
	case config.StorePostgres:
		if err := postgres.RunMigrations(cfg.DatabaseURL, log); err != nil {
			return nil, err
		}
		pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
			DatabaseURL:    cfg.DatabaseURL,
			MaxConns:       cfg.DatabaseMaxConns,
			MinConns:       cfg.DatabaseMinConns,
			ConnectTimeout: cfg.DatabaseTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		checks["postgres"] = pool.Ping
		log.Info().Msg("connected to postgres")
		return postgresRepo.NewLedgerRepository(pool, log), nil

	case config.StoreSQLite:
		repo, err := sqliteRepo.New(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		a.closers = append(a.closers, func() { repo.Close() })
		checks["sqlite"] = repo.Ping
		log.Info().Str("path", cfg.SQLitePath).Msg("opened sqlite store")
		return repo, nil

	default:
		log.Warn().Msg("using in-memory store, data is lost on restart")
		return memoryRepo.NewLedgerRepository(), nil
	}
}
