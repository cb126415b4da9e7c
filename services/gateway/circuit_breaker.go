package gateway

import (
	"sync"
	"time"
)

// CircuitBreaker counts consecutive terminal primary failures.
//
// closed: every call may use the primary provider.
// open: no call touches the primary provider until the cooldown elapses.
// half-open: exactly one trial call is granted; its outcome closes or re-opens the breaker.
type CircuitBreaker struct {
	mu            sync.Mutex
	threshold     int
	cooldown      time.Duration
	state         BreakerState
	failures      int
	openedAt      time.Time
	trialInFlight bool
	now           func() time.Time
	onTransition  func(from, to BreakerState)
}

// NewCircuitBreaker creates a closed breaker
func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 60 * time.Second
	}
	return &CircuitBreaker{
		threshold: threshold,
		cooldown:  cooldown,
		state:     StateClosed,
		now:       time.Now,
	}
}

// OnTransition registers a callback invoked (under the breaker lock) on every state change
func (cb *CircuitBreaker) OnTransition(fn func(from, to BreakerState)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onTransition = fn
}

// Allow reports whether the caller may use the primary provider.
// When the cooldown has elapsed, the first caller receives the half-open trial.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.cooldown {
			return false
		}
		cb.transition(StateHalfOpen)
		cb.trialInFlight = true
		return true
	case StateHalfOpen:
		if cb.trialInFlight {
			return false
		}
		cb.trialInFlight = true
		return true
	}
	return false
}

// RecordSuccess closes the breaker and clears the failure streak
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.trialInFlight = false
	if cb.state != StateClosed {
		cb.transition(StateClosed)
	}
}

// RecordFailure registers one terminal primary failure
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.threshold {
			cb.open()
		}
	case StateHalfOpen:
		cb.open()
	}
}

// ReleaseTrial returns an unused half-open trial, e.g. when the call was rate limited or cancelled
func (cb *CircuitBreaker) ReleaseTrial() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen {
		cb.trialInFlight = false
	}
}

// IsOpen reports whether the primary provider is being bypassed
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state == StateOpen
}

// State returns a snapshot
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s := CircuitBreakerState{
		ConsecutiveFailures: cb.failures,
		State:               cb.state,
	}
	if cb.state != StateClosed {
		openedAt := cb.openedAt
		s.OpenedAt = &openedAt
	}
	return s
}

// Reset forces the breaker closed
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.trialInFlight = false
	cb.openedAt = time.Time{}
	if cb.state != StateClosed {
		cb.transition(StateClosed)
	}
}

// must be called with lock held
func (cb *CircuitBreaker) open() {
	cb.openedAt = cb.now()
	cb.trialInFlight = false
	if cb.state != StateOpen {
		cb.transition(StateOpen)
	}
}

// must be called with lock held
func (cb *CircuitBreaker) transition(to BreakerState) {
	from := cb.state
	cb.state = to
	if cb.onTransition != nil {
		cb.onTransition(from, to)
	}
}
