package models

import (
	"time"

	"github.com/google/uuid"
)

// GenerationStatus is how a gateway call ended
type GenerationStatus string

const (
	GenerationStatusSuccess     GenerationStatus = "success"
	GenerationStatusCached      GenerationStatus = "cached"
	GenerationStatusFallback    GenerationStatus = "fallback"
	GenerationStatusFailed      GenerationStatus = "failed"
	GenerationStatusRateLimited GenerationStatus = "rate_limited"
)

// GenerationRecord is one row of the generation ledger.
// The prompt text is never stored, only its length.
type GenerationRecord struct {
	ID        uuid.UUID        `json:"id" db:"id"`
	RequestID string           `json:"request_id" db:"request_id"`
	Feature   string           `json:"feature" db:"feature"`
	Status    GenerationStatus `json:"status" db:"status"`

	// Provider details
	Provider string `json:"provider" db:"provider"` // primary or fallback
	Model    string `json:"model" db:"model"`
	CacheKey string `json:"cache_key" db:"cache_key"`
	Cached   bool   `json:"cached" db:"cached"`
	Attempts int    `json:"attempts" db:"attempts"`

	// Metrics
	PromptChars      int `json:"prompt_chars" db:"prompt_chars"`
	PromptTokens     int `json:"prompt_tokens" db:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens" db:"completion_tokens"`
	TotalTokens      int `json:"total_tokens" db:"total_tokens"`
	LatencyMs        int `json:"latency_ms" db:"latency_ms"`

	ErrorMessage *string   `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the GenerationRecord model
func (GenerationRecord) TableName() string {
	return "gateway_requests"
}

// NewGenerationRecord creates a record with a fresh ID
func NewGenerationRecord(requestID string, status GenerationStatus) *GenerationRecord {
	return &GenerationRecord{
		ID:        uuid.New(),
		RequestID: requestID,
		Status:    status,
		CreatedAt: time.Now().UTC(),
	}
}

// WithError sets the error message; an empty message clears it
func (r *GenerationRecord) WithError(msg string) *GenerationRecord {
	if msg == "" {
		r.ErrorMessage = nil
		return r
	}
	r.ErrorMessage = &msg
	return r
}

// WithUsage sets token counts
func (r *GenerationRecord) WithUsage(prompt, completion, total int) *GenerationRecord {
	r.PromptTokens = prompt
	r.CompletionTokens = completion
	r.TotalTokens = total
	return r
}

// Failed reports whether the call returned an error to the caller
func (r *GenerationRecord) Failed() bool {
	return r.Status == GenerationStatusFailed || r.Status == GenerationStatusRateLimited
}

// UsageSummary aggregates ledger rows over a time range
type UsageSummary struct {
	TotalRequests    int64   `json:"total_requests"`
	SuccessRequests  int64   `json:"success_requests"`
	CachedRequests   int64   `json:"cached_requests"`
	FallbackRequests int64   `json:"fallback_requests"`
	FailedRequests   int64   `json:"failed_requests"`
	RateLimited      int64   `json:"rate_limited"`
	TotalTokens      int64   `json:"total_tokens"`
	AvgLatencyMs     float64 `json:"avg_latency_ms"`
}
