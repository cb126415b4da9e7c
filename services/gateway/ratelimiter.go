package gateway

import (
	"sync"
	"time"
)

// RateLimiter admits at most limit calls per fixed window.
// State is process-local; separate gateway instances each enforce their own window.
type RateLimiter struct {
	mu          sync.Mutex
	limit       int
	window      time.Duration
	count       int
	windowStart time.Time
	now         func() time.Time
}

// NewRateLimiter creates a fixed-window limiter
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 10
	}
	if window <= 0 {
		window = time.Second
	}
	return &RateLimiter{
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Allow consumes one admission from the current window.
// It never blocks; exhaustion is reported as false.
func (r *RateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.roll(r.now())
	if r.count >= r.limit {
		return false
	}
	r.count++
	return true
}

// Info returns the current window without consuming from it
func (r *RateLimiter) Info() RateLimitState {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.roll(now)

	return RateLimitState{
		Limit:     r.limit,
		Remaining: r.limit - r.count,
		ResetAt:   r.windowStart.Add(r.window),
		Window:    r.window,
	}
}

// Reset starts a fresh window
func (r *RateLimiter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.count = 0
	r.windowStart = r.now()
}

// must be called with lock held
func (r *RateLimiter) roll(now time.Time) {
	if r.windowStart.IsZero() || now.Sub(r.windowStart) >= r.window {
		r.windowStart = now
		r.count = 0
	}
}
