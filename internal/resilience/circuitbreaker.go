// Package resilience provides the circuit breaker that guards calls to the
// completion and transcription services. A tripped breaker fails fast
// instead of queueing more requests against a provider that is down; it
// never retries on the caller's behalf.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the breaker rejects a call without
// running it.
var ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

// State is the operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrCircuitOpen] until the reset timeout
	// has elapsed.
	StateOpen

	// StateHalfOpen lets a limited number of probe calls through. One failed
	// probe re-opens the breaker; HalfOpenMax successes close it.
	StateHalfOpen
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config holds the tuning knobs of a [CircuitBreaker].
type Config struct {
	// Name labels log lines and state-change callbacks.
	Name string

	// MaxFailures is the number of consecutive failures that opens the
	// breaker. Default: 5.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open. Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is the number of probe calls allowed while half-open.
	// Default: 1.
	HalfOpenMax int

	// OnStateChange, if set, is called after every transition with the
	// breaker's lock released.
	OnStateChange func(name string, from, to State)
}

// CircuitBreaker is a three-state breaker. It is safe for concurrent use.
type CircuitBreaker struct {
	name          string
	maxFailures   int
	resetTimeout  time.Duration
	halfOpenMax   int
	onStateChange func(name string, from, to State)
	now           func() time.Time

	mu              sync.Mutex
	state           State
	consecutiveFail int
	openedAt        time.Time
	halfOpenCalls   int
	halfOpenOK      int
}

// NewCircuitBreaker creates a [CircuitBreaker]. Zero-value config fields
// are replaced with defaults.
func NewCircuitBreaker(cfg Config) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 1
	}
	return &CircuitBreaker{
		name:          cfg.Name,
		maxFailures:   cfg.MaxFailures,
		resetTimeout:  cfg.ResetTimeout,
		halfOpenMax:   cfg.HalfOpenMax,
		onStateChange: cfg.OnStateChange,
		now:           time.Now,
		state:         StateClosed,
	}
}

// Execute runs fn if the breaker allows it and records the outcome. A
// context cancellation from the caller is not counted as a provider
// failure.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	probe, err := cb.admit()
	if err != nil {
		return err
	}

	err = fn(ctx)

	switch {
	case err == nil:
		cb.record(probe, true)
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		cb.release(probe)
	default:
		cb.record(probe, false)
	}
	return err
}

// Call is Execute for functions that return a value.
func Call[T any](ctx context.Context, cb *CircuitBreaker, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := cb.Execute(ctx, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}

// admit decides whether a call may run and reports whether it is a
// half-open probe.
func (cb *CircuitBreaker) admit() (probe bool, err error) {
	cb.mu.Lock()
	var change func()
	defer func() {
		cb.mu.Unlock()
		if change != nil {
			change()
		}
	}()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.resetTimeout {
			return false, ErrCircuitOpen
		}
		change = cb.transition(StateHalfOpen)
		cb.halfOpenCalls = 0
		cb.halfOpenOK = 0
	case StateClosed:
		return false, nil
	}

	if cb.halfOpenCalls >= cb.halfOpenMax {
		return false, ErrCircuitOpen
	}
	cb.halfOpenCalls++
	return true, nil
}

// release returns an unused probe slot.
func (cb *CircuitBreaker) release(probe bool) {
	if !probe {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateHalfOpen && cb.halfOpenCalls > 0 {
		cb.halfOpenCalls--
	}
}

func (cb *CircuitBreaker) record(probe, ok bool) {
	cb.mu.Lock()
	var change func()
	defer func() {
		cb.mu.Unlock()
		if change != nil {
			change()
		}
	}()

	if probe && cb.state == StateHalfOpen {
		if !ok {
			cb.openedAt = cb.now()
			change = cb.transition(StateOpen)
			slog.Warn("circuit breaker re-opened", "name", cb.name)
			return
		}
		cb.halfOpenOK++
		if cb.halfOpenOK >= cb.halfOpenMax {
			cb.consecutiveFail = 0
			change = cb.transition(StateClosed)
			slog.Info("circuit breaker closed", "name", cb.name)
		}
		return
	}

	if ok {
		cb.consecutiveFail = 0
		return
	}
	cb.consecutiveFail++
	if cb.state == StateClosed && cb.consecutiveFail >= cb.maxFailures {
		cb.openedAt = cb.now()
		change = cb.transition(StateOpen)
		slog.Warn("circuit breaker opened", "name", cb.name, "consecutive_failures", cb.consecutiveFail)
	}
}

// transition sets the new state and returns the callback to run once the
// lock is released. Must be called with cb.mu held.
func (cb *CircuitBreaker) transition(to State) func() {
	from := cb.state
	cb.state = to
	if cb.onStateChange == nil || from == to {
		return nil
	}
	name, hook := cb.name, cb.onStateChange
	return func() { hook(name, from, to) }
}

// State returns the current state. An open breaker whose reset timeout has
// elapsed reports [StateHalfOpen]; the transition itself happens on the
// next call.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.resetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Name returns the configured label.
func (cb *CircuitBreaker) Name() string { return cb.name }

// Reset forces the breaker closed and clears all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	change := cb.transition(StateClosed)
	cb.consecutiveFail = 0
	cb.halfOpenCalls = 0
	cb.halfOpenOK = 0
	cb.mu.Unlock()
	if change != nil {
		change()
	}
}
