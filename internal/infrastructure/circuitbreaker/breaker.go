// Package circuitbreaker stops calling a failing dependency for a cooldown
// period after a run of consecutive failures.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/iho/cashflow/internal/domain"
)

// State is the breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config for Breaker.
type Config struct {
	Name          string
	Threshold     int           // Consecutive failures that open the circuit
	Cooldown      time.Duration // Time spent open before a trial call
	Now           func() time.Time
	OnStateChange func(name string, from, to State)
}

// Breaker is a consecutive-failure circuit breaker. While open, calls fail
// with domain.ErrCircuitOpen. After the cooldown exactly one trial call is
// let through; its outcome closes or reopens the circuit.
type Breaker struct {
	name          string
	threshold     int
	cooldown      time.Duration
	now           func() time.Time
	onStateChange func(name string, from, to State)

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	trialing bool
}

// New creates a Breaker.
func New(cfg Config) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Breaker{
		name:          cfg.Name,
		threshold:     cfg.Threshold,
		cooldown:      cfg.Cooldown,
		now:           cfg.Now,
		onStateChange: cfg.OnStateChange,
	}
}

// State returns the current state, moving an expired open circuit to half-open.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.expireLocked()
	return b.state
}

// RetryAfter returns how long the circuit stays open. It is zero unless the
// circuit is open.
func (b *Breaker) RetryAfter() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.expireLocked()
	if b.state != StateOpen {
		return 0
	}
	return b.openedAt.Add(b.cooldown).Sub(b.now())
}

// Execute runs fn unless the circuit is open. A cancelled context is not
// counted as a failure of the dependency.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.before(); err != nil {
		return err
	}

	err := fn(ctx)
	b.after(err)
	return err
}

func (b *Breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.expireLocked()

	switch b.state {
	case StateOpen:
		return fmt.Errorf("%w: %s", domain.ErrCircuitOpen, b.name)
	case StateHalfOpen:
		if b.trialing {
			return fmt.Errorf("%w: %s trial in progress", domain.ErrCircuitOpen, b.name)
		}
		b.trialing = true
	}
	return nil
}

func (b *Breaker) after(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	wasTrial := b.state == StateHalfOpen
	if wasTrial {
		b.trialing = false
	}

	if err == nil {
		b.failures = 0
		if b.state != StateClosed {
			b.setStateLocked(StateClosed)
		}
		return
	}

	if errors.Is(err, context.Canceled) {
		return
	}

	if wasTrial {
		b.openLocked()
		return
	}

	b.failures++
	if b.failures >= b.threshold {
		b.openLocked()
	}
}

func (b *Breaker) expireLocked() {
	if b.state == StateOpen && !b.now().Before(b.openedAt.Add(b.cooldown)) {
		b.setStateLocked(StateHalfOpen)
	}
}

func (b *Breaker) openLocked() {
	b.failures = 0
	b.openedAt = b.now()
	b.setStateLocked(StateOpen)
}

func (b *Breaker) setStateLocked(to State) {
	from := b.state
	b.state = to
	if b.onStateChange != nil && from != to {
		b.onStateChange(b.name, from, to)
	}
}
