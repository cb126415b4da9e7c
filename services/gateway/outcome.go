package gateway

import "time"

// Outcome statuses
const (
	OutcomeSuccess     = "success"
	OutcomeCached      = "cached"
	OutcomeFallback    = "fallback"
	OutcomeFailed      = "failed"
	OutcomeRateLimited = "rate_limited"
)

// Outcome describes how a single Generate call ended. The prompt itself is not kept.
type Outcome struct {
	RequestID   string
	Feature     string
	Provider    string
	Model       string
	Status      string
	CacheKey    string
	Cached      bool
	Attempts    int
	Usage       Usage
	Latency     time.Duration
	PromptChars int
	Error       string
	CreatedAt   time.Time
}

// OutcomeRecorder receives one Outcome per Generate call. Implementations must not block.
type OutcomeRecorder interface {
	RecordOutcome(out Outcome)
}

func (o Outcome) withStatus(status string) Outcome {
	o.Status = status
	return o
}

func (o Outcome) withResponse(status string, resp *Response) Outcome {
	o.Status = status
	o.Provider = resp.Provider
	o.Model = resp.Model
	o.Cached = resp.Cached
	o.Usage = resp.Usage
	o.Latency = resp.Latency
	return o
}
