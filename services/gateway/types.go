package gateway

import (
	"time"

	"github.com/tradelens/ai-gateway/services/providers"
)

// Provider roles reported on responses and health snapshots
const (
	ProviderPrimary  = "primary"
	ProviderFallback = "fallback"
)

// Request is one text-generation call through the gateway
type Request struct {
	Prompt    string `json:"prompt" validate:"required,max=100000"`
	CacheKey  string `json:"cache_key,omitempty" validate:"omitempty,max=256"`
	SkipCache bool   `json:"skip_cache,omitempty"`
	Model     string `json:"model,omitempty" validate:"omitempty,max=128"`
	Feature   string `json:"feature,omitempty" validate:"omitempty,max=64"`
	MaxTokens int    `json:"max_tokens,omitempty" validate:"omitempty,min=1,max=32768"`
}

// Usage is token accounting reported by the provider
type Usage = providers.Usage

// Response is the result of a gateway call. A batch slot for a failed item
// carries an empty Content, Provider and Model.
type Response struct {
	Content   string        `json:"content"`
	Provider  string        `json:"provider"`
	Model     string        `json:"model"`
	Usage     Usage         `json:"usage"`
	Cached    bool          `json:"cached"`
	Latency   time.Duration `json:"latency_ns"`
	RequestID string        `json:"request_id"`
}

// RateLimitState is the limiter window as seen by callers
type RateLimitState struct {
	Limit     int           `json:"limit"`
	Remaining int           `json:"remaining"`
	ResetAt   time.Time     `json:"reset_at"`
	Window    time.Duration `json:"window_ns"`
}

// BreakerState is the circuit breaker mode
type BreakerState string

const (
	StateClosed   BreakerState = "closed"
	StateOpen     BreakerState = "open"
	StateHalfOpen BreakerState = "half-open"
)

// CircuitBreakerState is a snapshot of the breaker
type CircuitBreakerState struct {
	ConsecutiveFailures int          `json:"consecutive_failures"`
	State               BreakerState `json:"state"`
	OpenedAt            *time.Time   `json:"opened_at,omitempty"`
}

// HealthMetrics is the read-only health snapshot
type HealthMetrics struct {
	RequestCount       int64        `json:"request_count"`
	ErrorCount         int64        `json:"error_count"`
	ErrorRate          float64      `json:"error_rate"`
	CircuitBreakerOpen bool         `json:"circuit_breaker_open"`
	BreakerState       BreakerState `json:"breaker_state"`
	Provider           string       `json:"provider"`
	Healthy            bool         `json:"healthy"`
	CacheHits          int64        `json:"cache_hits"`
	CacheMisses        int64        `json:"cache_misses"`
	FallbackCount      int64        `json:"fallback_count"`
	RetryCount         int64        `json:"retry_count"`
}

// Status describes configuration of both providers without doing I/O
type Status struct {
	Configured         bool   `json:"configured"`
	FallbackConfigured bool   `json:"fallback_configured"`
	Primary            string `json:"primary"`
	PrimaryModel       string `json:"primary_model"`
	Fallback           string `json:"fallback,omitempty"`
	FallbackModel      string `json:"fallback_model,omitempty"`
}
