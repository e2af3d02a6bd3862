// Package worker drives daily consolidation from a ticker and from a work
// queue, with a circuit breaker and bounded, delayed retries.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/iho/cashflow/internal/domain"
	"github.com/iho/cashflow/internal/infrastructure/circuitbreaker"
	"github.com/iho/cashflow/internal/usecase"
)

// Triggers label what started a consolidation attempt.
const (
	TriggerStartup = "startup"
	TriggerTimer   = "timer"
	TriggerQueue   = "queue"
	TriggerManual  = "manual"
)

// Outcomes of a consolidation attempt.
const (
	OutcomeSuccess     = "success"
	OutcomeFailure     = "failure"
	OutcomeCircuitOpen = "circuit_open"
	OutcomeSkipped     = "skipped"
)

// DefaultQueue is the queue consolidation requests travel on.
const DefaultQueue = "daily-consolidation"

// DefaultMaxRetries is used when Config.MaxRetries is negative.
const DefaultMaxRetries = 3

// Request is the queue message asking for a date to be consolidated.
type Request struct {
	Date       string `json:"date"`
	RetryCount int    `json:"retryCount"`
}

// Consolidator runs the consolidation of one date.
type Consolidator interface {
	ProcessDailyConsolidation(ctx context.Context, date time.Time) (*usecase.ConsolidationResult, error)
}

// Metrics records worker activity.
type Metrics interface {
	ObserveConsolidation(trigger, outcome string, duration time.Duration)
	IncRetryPublished()
	IncRetryExhausted()
}

type nopMetrics struct{}

func (nopMetrics) ObserveConsolidation(string, string, time.Duration) {}
func (nopMetrics) IncRetryPublished()                                 {}
func (nopMetrics) IncRetryExhausted()                                 {}

// Config for Worker.
type Config struct {
	Consolidator Consolidator
	Channel      usecase.MessageChannel
	Breaker      *circuitbreaker.Breaker
	Lock         usecase.DateLock // Optional cross-process guard
	Logger       zerolog.Logger
	Metrics      Metrics

	Queue             string
	Interval          time.Duration // Timer period, consolidating "today"
	MaxRetries        int           // Attempts after the first one; negative means DefaultMaxRetries
	RetryInitialDelay time.Duration
	RetryMaxDelay     time.Duration
	LockTTL           time.Duration
	PublishTimeout    time.Duration
	Now               func() time.Time
}

// Worker consolidates dates on a schedule and on request.
type Worker struct {
	consolidator Consolidator
	channel      usecase.MessageChannel
	breaker      *circuitbreaker.Breaker
	lock         usecase.DateLock
	log          zerolog.Logger
	metrics      Metrics

	queue             string
	interval          time.Duration
	maxRetries        int
	retryInitialDelay time.Duration
	retryMaxDelay     time.Duration
	lockTTL           time.Duration
	publishTimeout    time.Duration
	now               func() time.Time

	mu       sync.Mutex
	inflight map[time.Time]struct{}
	wg       sync.WaitGroup
}

// New creates a Worker.
func New(cfg Config) *Worker {
	if cfg.Queue == "" {
		cfg.Queue = DefaultQueue
	}
	if cfg.Interval == 0 {
		cfg.Interval = 24 * time.Hour
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryInitialDelay == 0 {
		cfg.RetryInitialDelay = 5 * time.Second
	}
	if cfg.RetryMaxDelay == 0 {
		cfg.RetryMaxDelay = time.Minute
	}
	if cfg.LockTTL == 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	if cfg.PublishTimeout == 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Metrics == nil {
		cfg.Metrics = nopMetrics{}
	}
	if cfg.Breaker == nil {
		cfg.Breaker = circuitbreaker.New(circuitbreaker.Config{Name: "consolidation"})
	}

	return &Worker{
		consolidator:      cfg.Consolidator,
		channel:           cfg.Channel,
		breaker:           cfg.Breaker,
		lock:              cfg.Lock,
		log:               cfg.Logger.With().Str("component", "consolidation_worker").Logger(),
		metrics:           cfg.Metrics,
		queue:             cfg.Queue,
		interval:          cfg.Interval,
		maxRetries:        cfg.MaxRetries,
		retryInitialDelay: cfg.RetryInitialDelay,
		retryMaxDelay:     cfg.RetryMaxDelay,
		lockTTL:           cfg.LockTTL,
		publishTimeout:    cfg.PublishTimeout,
		now:               cfg.Now,
		inflight:          make(map[time.Time]struct{}),
	}
}

// Start subscribes to the queue, consolidates yesterday once, then
// consolidates today on every tick. It returns after ctx is cancelled and
// every in-flight consolidation has finished.
func (w *Worker) Start(ctx context.Context) error {
	w.log.Info().
		Str("queue", w.queue).
		Dur("interval", w.interval).
		Int("max_retries", w.maxRetries).
		Msg("consolidation worker started")

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.subscribe(ctx)
	}()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Catch up on the previous day on start
	today := domain.Day(w.now())
	w.spawn(ctx, TriggerStartup, today.AddDate(0, 0, -1), 0)

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("consolidation worker shutting down")
			w.wg.Wait()
			return ctx.Err()
		case <-ticker.C:
			w.spawn(ctx, TriggerTimer, domain.Day(w.now()), 0)
		}
	}
}

func (w *Worker) subscribe(ctx context.Context) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.retryInitialDelay
	b.MaxInterval = w.retryMaxDelay
	b.MaxElapsedTime = 0

	err := backoff.RetryNotify(func() error {
		err := w.channel.Subscribe(ctx, w.queue, w.HandleMessage)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if err == nil {
			err = errors.New("subscription ended")
		}
		return err
	}, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		w.log.Error().Err(err).Dur("retry_in", next).Msg("queue subscription failed")
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		w.log.Error().Err(err).Msg("queue subscription stopped")
	}
}

// spawn runs process on its own goroutine. Start waits for it on shutdown.
func (w *Worker) spawn(ctx context.Context, trigger string, day time.Time, retryCount int) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.process(ctx, trigger, day, retryCount); err != nil {
			w.log.Error().Err(err).
				Str("date", day.Format(domain.DateLayout)).
				Int("retry_count", retryCount).
				Msg("consolidation retry lost")
		}
	}()
}

// HandleMessage hands one consolidation request from the queue to its own
// goroutine and returns, so neither a slow consolidation nor a retry delay
// holds up the consumer. Malformed requests are dropped.
func (w *Worker) HandleMessage(ctx context.Context, payload []byte) error {
	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		w.log.Error().Err(err).Bytes("payload", payload).Msg("dropping malformed consolidation request")
		return nil
	}
	day, err := domain.ParseDay(req.Date)
	if err != nil {
		w.log.Error().Err(err).Msg("dropping consolidation request with invalid date")
		return nil
	}

	w.spawn(ctx, TriggerQueue, day, req.RetryCount)
	return nil
}

// process runs one attempt and decides between retry and exhaustion.
func (w *Worker) process(ctx context.Context, trigger string, day time.Time, retryCount int) error {
	date := day.Format(domain.DateLayout)

	_, err := w.attempt(ctx, trigger, day)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrConsolidationInProgress):
		w.log.Debug().Str("date", date).Str("trigger", trigger).Msg("consolidation already running, skipping")
		return nil
	case errors.Is(err, domain.ErrCircuitOpen):
		// The store was never reached, so the attempt does not count.
		delay := max(w.retryDelay(retryCount), w.breaker.RetryAfter())
		w.log.Warn().Err(err).
			Str("date", date).
			Str("trigger", trigger).
			Int("retry_count", retryCount).
			Dur("retry_in", delay).
			Msg("circuit open, deferring consolidation")
		return w.republish(ctx, day, retryCount, delay)
	}

	if retryCount >= w.maxRetries {
		w.metrics.IncRetryExhausted()
		w.log.Error().
			Err(fmt.Errorf("%w: %w", domain.ErrRetryExhausted, err)).
			Str("date", date).
			Int("attempts", retryCount+1).
			Msg("consolidation retries exhausted")
		return nil
	}

	w.log.Warn().Err(err).
		Str("date", date).
		Str("trigger", trigger).
		Int("retry_count", retryCount).
		Msg("consolidation failed, scheduling retry")

	return w.republish(ctx, day, retryCount+1, w.retryDelay(retryCount+1))
}

// republish waits delay and publishes the request with retryCount.
// Cancellation cuts the wait short so pending retries survive shutdown.
func (w *Worker) republish(ctx context.Context, day time.Time, retryCount int, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}

	payload, err := json.Marshal(Request{Date: day.Format(domain.DateLayout), RetryCount: retryCount})
	if err != nil {
		return err
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.publishTimeout)
	defer cancel()

	if err := w.channel.Publish(pubCtx, w.queue, payload); err != nil {
		return fmt.Errorf("republish consolidation for %s: %w", day.Format(domain.DateLayout), err)
	}

	w.metrics.IncRetryPublished()
	w.log.Info().Str("date", day.Format(domain.DateLayout)).Int("retry_count", retryCount).Msg("consolidation retry published")
	return nil
}

// retryDelay is the exponential backoff delay before retry number n (1-based).
func (w *Worker) retryDelay(n int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.retryInitialDelay
	b.MaxInterval = w.retryMaxDelay
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	d := b.InitialInterval
	for i := 0; i < n; i++ {
		d = b.NextBackOff()
	}
	return d
}

// RunNow consolidates date immediately and returns the outcome. It never
// schedules a retry.
func (w *Worker) RunNow(ctx context.Context, date time.Time) (*usecase.ConsolidationResult, error) {
	return w.attempt(ctx, TriggerManual, domain.Day(date))
}

func (w *Worker) attempt(ctx context.Context, trigger string, day time.Time) (*usecase.ConsolidationResult, error) {
	date := day.Format(domain.DateLayout)
	start := time.Now()

	if !w.begin(day) {
		w.metrics.ObserveConsolidation(trigger, OutcomeSkipped, 0)
		return nil, fmt.Errorf("%w: %s", domain.ErrConsolidationInProgress, date)
	}
	defer w.end(day)

	if w.lock != nil {
		key := "consolidation:" + domain.DayKey(day)
		acquired, err := w.lock.Acquire(ctx, key, w.lockTTL)
		switch {
		case err != nil:
			w.log.Warn().Err(err).Str("date", date).Msg("date lock unavailable, consolidating without it")
		case !acquired:
			w.metrics.ObserveConsolidation(trigger, OutcomeSkipped, 0)
			return nil, fmt.Errorf("%w: %s (held by another process)", domain.ErrConsolidationInProgress, date)
		default:
			defer func() {
				if err := w.lock.Release(context.WithoutCancel(ctx), key); err != nil {
					w.log.Warn().Err(err).Str("date", date).Msg("date lock release failed")
				}
			}()
		}
	}

	var result *usecase.ConsolidationResult
	err := w.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		result, err = w.consolidator.ProcessDailyConsolidation(ctx, day)
		return err
	})

	elapsed := time.Since(start)
	switch {
	case err == nil:
		w.metrics.ObserveConsolidation(trigger, OutcomeSuccess, elapsed)
		w.log.Info().
			Str("date", date).
			Str("trigger", trigger).
			Int("reports", len(result.Reports)).
			Int("inserted", result.Inserted).
			Dur("duration", elapsed).
			Msg("consolidation succeeded")
	case errors.Is(err, domain.ErrCircuitOpen):
		w.metrics.ObserveConsolidation(trigger, OutcomeCircuitOpen, elapsed)
	default:
		w.metrics.ObserveConsolidation(trigger, OutcomeFailure, elapsed)
	}

	return result, err
}

func (w *Worker) begin(day time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.inflight[day]; ok {
		return false
	}
	w.inflight[day] = struct{}{}
	return true
}

func (w *Worker) end(day time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	delete(w.inflight, day)
}
