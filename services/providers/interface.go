package providers

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// ErrNotConfigured is returned by adapters called without credentials
var ErrNotConfigured = errors.New("provider not configured")

// Provider represents a text-generation backend reachable over the network
type Provider interface {
	// Name returns the provider name (e.g., "gemini", "openai")
	Name() string

	// Model returns the default model used when a request carries none
	Model() string

	// IsConfigured reports whether credentials are present. It performs no I/O.
	IsConfigured() bool

	// Generate performs a single text completion. Adapters never retry internally.
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)
}

// GenerateRequest is a provider-neutral completion request
type GenerateRequest struct {
	// Prompt is sent verbatim as the single user turn
	Prompt string `json:"prompt"`

	// Model overrides the provider default when set
	Model string `json:"model,omitempty"`

	// MaxTokens limits the response length
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls randomness
	Temperature float64 `json:"temperature,omitempty"`
}

// GenerateResponse is a provider-neutral completion result
type GenerateResponse struct {
	Content string        `json:"content"`
	Model   string        `json:"model"`
	Usage   Usage         `json:"usage"`
	Latency time.Duration `json:"latency"`
}

// Usage represents token usage statistics
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ProviderConfig holds common configuration for providers
type ProviderConfig struct {
	// APIKey for authentication
	APIKey string

	// BaseURL for the API (optional override)
	BaseURL string

	// Model used when the request does not name one
	Model string

	// Timeout for the underlying HTTP client
	Timeout time.Duration

	// Additional headers
	Headers map[string]string

	// HTTPClient replaces the default client (tests)
	HTTPClient *http.Client
}

// ResolveModel returns the request model or the fallback default
func ResolveModel(req *GenerateRequest, defaultModel string) string {
	if req != nil && req.Model != "" {
		return req.Model
	}
	return defaultModel
}

// ProviderError represents an error from a provider
type ProviderError struct {
	// Provider that generated the error
	Provider string

	// Code is the error code
	Code string

	// Message is the error message
	Message string

	// StatusCode is the HTTP status code (if applicable)
	StatusCode int

	// Retryable indicates if the request can be retried
	Retryable bool

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	msg := e.Provider + ": " + e.Message
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap implements error unwrapping
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError creates a new provider error
func NewProviderError(provider, code, message string, statusCode int, retryable bool, cause error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
		Cause:      cause,
	}
}

// IsRetryable reports whether err may succeed on a later attempt.
// Errors that are not ProviderErrors (network failures, timeouts) count as retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Retryable
	}
	return true
}

// RetryableStatus reports whether an HTTP status is worth retrying
func RetryableStatus(statusCode int) bool {
	return statusCode >= 500 || statusCode == http.StatusTooManyRequests
}

// HTTPClient returns cfg.HTTPClient or a client bounded by cfg.Timeout
func HTTPClient(cfg ProviderConfig) *http.Client {
	if cfg.HTTPClient != nil {
		return cfg.HTTPClient
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
