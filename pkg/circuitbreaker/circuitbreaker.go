package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrOpen is returned when the circuit rejects a request without
// executing it. Callers can errors.Is against it to tell rejection
// apart from a failure of the wrapped call.
var ErrOpen = errors.New("circuit breaker open")

// State is the breaker's position in its three-state cycle.
type State int

const (
	StateClosed   State = iota // requests pass through
	StateOpen                  // requests fail immediately
	StateHalfOpen              // limited probes test the target
)

var stateNames = [...]string{
	StateClosed:   "closed",
	StateOpen:     "open",
	StateHalfOpen: "half-open",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Config tunes the breaker's transition thresholds.
type Config struct {
	FailureThreshold    int           // consecutive failures that open the circuit
	SuccessThreshold    int           // half-open successes that close it again
	Timeout             time.Duration // open-state cooldown before probing
	MaxRequestsHalfOpen int           // probe budget while half-open
}

// DefaultConfig returns thresholds suited to a flaky local agent.
func DefaultConfig() Config {
	return Config{
		FailureThreshold:    5,
		SuccessThreshold:    2,
		Timeout:             30 * time.Second,
		MaxRequestsHalfOpen: 3,
	}
}

// CircuitBreaker guards a downstream call, failing fast once the
// target has proven unhealthy and probing it back to life after a
// cooldown.
type CircuitBreaker struct {
	config Config

	mu               sync.RWMutex
	state            State
	failureCount     int
	successCount     int
	halfOpenRequests int
	lastFailureTime  time.Time
	stateChangeTime  time.Time

	onStateChange func(from, to State)
}

// New creates a closed breaker with the given thresholds.
func New(config Config) *CircuitBreaker {
	return &CircuitBreaker{
		config:          config,
		state:           StateClosed,
		stateChangeTime: time.Now(),
	}
}

// OnStateChange sets a callback invoked on every state transition.
// Callbacks run on their own goroutine.
func (b *CircuitBreaker) OnStateChange(fn func(from, to State)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onStateChange = fn
}

// Execute runs fn through the breaker. A rejected request returns a
// wrapped ErrOpen without invoking fn.
func (b *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if !b.admit() {
		return fmt.Errorf("%w: state %s", ErrOpen, b.GetState())
	}

	if err := fn(); err != nil {
		b.record(true)
		return fmt.Errorf("circuit breaker: %w", err)
	}
	b.record(false)
	return nil
}

// admit decides whether a request may proceed, counting half-open
// probes against the budget.
func (b *CircuitBreaker) admit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if time.Since(b.stateChangeTime) < b.config.Timeout {
			return false
		}
		// Cooldown elapsed; this request becomes the first probe.
		b.transitionTo(StateHalfOpen)
		return true
	case StateHalfOpen:
		if b.halfOpenRequests >= b.config.MaxRequestsHalfOpen {
			return false
		}
		b.halfOpenRequests++
		return true
	default:
		return true
	}
}

// record folds one call outcome into the state machine.
func (b *CircuitBreaker) record(failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if failed {
		b.failureCount++
		b.successCount = 0
		b.lastFailureTime = time.Now()

		switch {
		case b.state == StateHalfOpen:
			// Any half-open failure sends the breaker straight back.
			b.transitionTo(StateOpen)
		case b.state == StateClosed && b.failureCount >= b.config.FailureThreshold:
			b.transitionTo(StateOpen)
		}
		return
	}

	b.successCount++
	b.failureCount = 0
	if b.state == StateHalfOpen && b.successCount >= b.config.SuccessThreshold {
		b.transitionTo(StateClosed)
	}
}

// transitionTo moves the breaker to next. Caller must hold the write
// lock.
func (b *CircuitBreaker) transitionTo(next State) {
	if b.state == next {
		return
	}

	prev := b.state
	b.state = next
	b.stateChangeTime = time.Now()

	if next != StateOpen {
		b.failureCount = 0
		b.successCount = 0
		b.halfOpenRequests = 0
	}

	if b.onStateChange != nil {
		go b.onStateChange(prev, next)
	}
}

// GetState returns the current state.
func (b *CircuitBreaker) GetState() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Stats is a point-in-time snapshot of the breaker's counters.
type Stats struct {
	State            State
	FailureCount     int
	SuccessCount     int
	HalfOpenRequests int
	LastFailureTime  time.Time
	StateChangeTime  time.Time
}

// GetStats snapshots the current counters.
func (b *CircuitBreaker) GetStats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return Stats{
		State:            b.state,
		FailureCount:     b.failureCount,
		SuccessCount:     b.successCount,
		HalfOpenRequests: b.halfOpenRequests,
		LastFailureTime:  b.lastFailureTime,
		StateChangeTime:  b.stateChangeTime,
	}
}

// Reset forces the breaker closed and clears its counters, even when
// it never left the closed state.
func (b *CircuitBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transitionTo(StateClosed)
	b.failureCount = 0
	b.successCount = 0
	b.halfOpenRequests = 0
}
