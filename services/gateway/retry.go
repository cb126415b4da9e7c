package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/tradelens/ai-gateway/services/providers"
)

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxAttempts    int           // total attempts including the first
	InitialDelay   time.Duration // delay after the first failure; doubles each attempt
	AttemptTimeout time.Duration // bound on a single attempt; 0 disables
	Classify       bool          // stop early on errors providers mark non-retryable
}

// RetryExecutor runs a call with exponential backoff.
// Delay before attempt n+1 is InitialDelay * 2^n, n starting at 0.
type RetryExecutor struct {
	config  RetryConfig
	breaker *CircuitBreaker
	onRetry func(attempt int, err error)
}

// NewRetryExecutor creates a RetryExecutor. breaker may be nil.
func NewRetryExecutor(config RetryConfig, breaker *CircuitBreaker) *RetryExecutor {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.InitialDelay < 0 {
		config.InitialDelay = 0
	}
	return &RetryExecutor{config: config, breaker: breaker}
}

// OnRetry registers a hook called before each retry with the 1-based attempt about to run
func (r *RetryExecutor) OnRetry(fn func(attempt int, err error)) {
	r.onRetry = fn
}

// Delay returns the backoff before the attempt following attempt n (0-based)
func (r *RetryExecutor) Delay(n int) time.Duration {
	return r.config.InitialDelay * time.Duration(1<<uint(n))
}

// Execute calls fn until it succeeds or attempts run out, returning the number
// of attempts made and the last error. Retries stop early when ctx is done,
// when the breaker has been opened by a concurrent call, or (with Classify)
// when the error is marked non-retryable.
func Execute[T any](ctx context.Context, r *RetryExecutor, fn func(context.Context) (T, error)) (T, int, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt < r.config.MaxAttempts; attempt++ {
		if attempt > 0 {
			if r.breaker != nil && r.breaker.IsOpen() {
				return zero, attempt, lastErr
			}
			if r.onRetry != nil {
				r.onRetry(attempt+1, lastErr)
			}
			if err := sleep(ctx, r.Delay(attempt-1)); err != nil {
				return zero, attempt, fmt.Errorf("retry aborted after %d attempts (last error: %v): %w", attempt, lastErr, err)
			}
		}

		result, err := runAttempt(ctx, r.config.AttemptTimeout, fn)
		if err == nil {
			return result, attempt + 1, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, attempt + 1, lastErr
		}
		if r.config.Classify && !providers.IsRetryable(err) {
			return zero, attempt + 1, lastErr
		}
	}

	return zero, r.config.MaxAttempts, lastErr
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(attemptCtx)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
