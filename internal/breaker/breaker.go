// Package breaker implements a per-component circuit breaker: CLOSED,
// OPEN, HALF_OPEN states with exponential backoff, protecting any fallible
// I/O operation (collector connect, store write, outbound notification).
//
// Grounded on the teacher's internal/store/redis/circuitbreaker.go, with
// the fuller contract demanded by the spec: success_threshold, max_timeout,
// and exponential backoff of the reset timeout.
package breaker

import (
	"fmt"
	"sync"
	"time"
)

// State is one of CLOSED, OPEN, HALF_OPEN.
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
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitOpen is returned by Guard when the breaker is OPEN and its current
// timeout has not elapsed.
type CircuitOpen struct {
	Component  string
	RetryAfter time.Duration
}

func (e *CircuitOpen) Error() string {
	return fmt.Sprintf("circuit %q open, retry after %s", e.Component, e.RetryAfter)
}

// Config carries the breaker's tunables (spec 4.1 defaults).
type Config struct {
	Component          string
	FailureThreshold   int           // default 5
	Timeout            time.Duration // default 60s, base reset timeout
	SuccessThreshold   int           // default 2
	MaxTimeout         time.Duration // default 300s
	ExponentialBackoff bool
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 2
	}
	if c.MaxTimeout <= 0 {
		c.MaxTimeout = 300 * time.Second
	}
	return c
}

// Breaker is a single circuit breaker instance. One per protected
// component; internal mutual exclusion serializes its state mutations.
type Breaker struct {
	cfg Config

	mu             sync.Mutex
	state          State
	failures       int
	successes      int
	openedAt       time.Time
	currentTimeout time.Duration

	// OnStateChange, if set, is invoked (outside the lock) on every
	// transition. Used to flush buffered writes when a store breaker closes.
	OnStateChange func(from, to State)
}

// New creates a Breaker, starting CLOSED.
func New(cfg Config) *Breaker {
	cfg = cfg.withDefaults()
	return &Breaker{
		cfg:            cfg,
		state:          StateClosed,
		currentTimeout: cfg.Timeout,
	}
}

// Guard runs op through the breaker. It returns *CircuitOpen without
// calling op when the breaker is OPEN and its timeout has not elapsed.
func (b *Breaker) Guard(op func() error) error {
	b.mu.Lock()
	switch b.state {
	case StateOpen:
		if time.Since(b.openedAt) >= b.currentTimeout {
			b.transitionLocked(StateHalfOpen)
		} else {
			retryAfter := b.currentTimeout - time.Since(b.openedAt)
			b.mu.Unlock()
			return &CircuitOpen{Component: b.cfg.Component, RetryAfter: retryAfter}
		}
	}
	b.mu.Unlock()

	err := op()

	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		b.successes = 0
		if b.state == StateHalfOpen {
			b.openedAt = time.Now()
			b.applyBackoffLocked()
			b.transitionLocked(StateOpen)
		} else if b.state == StateClosed && b.failures >= b.cfg.FailureThreshold {
			b.openedAt = time.Now()
			b.applyBackoffLocked()
			b.transitionLocked(StateOpen)
		}
		return err
	}

	switch b.state {
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.failures = 0
			b.successes = 0
			b.currentTimeout = b.cfg.Timeout
			b.transitionLocked(StateClosed)
		}
	case StateClosed:
		b.failures = 0
	}
	return nil
}

// applyBackoffLocked doubles currentTimeout, capped at MaxTimeout, when
// exponential backoff is enabled. Must be called with mu held.
func (b *Breaker) applyBackoffLocked() {
	if !b.cfg.ExponentialBackoff {
		return
	}
	next := b.currentTimeout * 2
	if next > b.cfg.MaxTimeout {
		next = b.cfg.MaxTimeout
	}
	b.currentTimeout = next
}

func (b *Breaker) transitionLocked(to State) {
	from := b.state
	b.state = to
	if cb := b.OnStateChange; cb != nil {
		go cb(from, to)
	}
}

// CurrentState returns the breaker's current state.
func (b *Breaker) CurrentState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
