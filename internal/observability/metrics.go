package observability

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Metrics is a fire-and-forget sink for gateway events.
// Implementations must be safe for concurrent use and must never block the caller for long.
type Metrics interface {
	RecordRequest(labels RequestLabels, latency time.Duration)
	RecordError(labels RequestLabels, reason string)
	RecordCacheHit()
	RecordCacheMiss()
	RecordFallback(reason string)
	RecordRetry(provider string, attempt int)
	RecordBreakerTransition(from, to string)
}

// RequestLabels contains metric dimensions.
type RequestLabels struct {
	Provider string
	Model    string
	Feature  string
	Status   string
}

// MetricsSnapshot is a point-in-time copy of the in-memory counters
type MetricsSnapshot struct {
	Requests           int64            `json:"requests"`
	Errors             int64            `json:"errors"`
	CacheHits          int64            `json:"cache_hits"`
	CacheMisses        int64            `json:"cache_misses"`
	Fallbacks          int64            `json:"fallbacks"`
	Retries            int64            `json:"retries"`
	BreakerTransitions int64            `json:"breaker_transitions"`
	TotalLatency       time.Duration    `json:"total_latency"`
	ByStatus           map[string]int64 `json:"by_status"`
}

// ZapMetrics emits every event as a structured zap entry and keeps running counters
type ZapMetrics struct {
	logger *zap.Logger

	requests           atomic.Int64
	errors             atomic.Int64
	cacheHits          atomic.Int64
	cacheMisses        atomic.Int64
	fallbacks          atomic.Int64
	retries            atomic.Int64
	breakerTransitions atomic.Int64
	latencyNanos       atomic.Int64

	mu       sync.Mutex
	byStatus map[string]int64
}

// NewZapMetrics creates a zap-backed metrics sink
func NewZapMetrics(logger *zap.Logger) *ZapMetrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapMetrics{
		logger:   logger.Named("metrics"),
		byStatus: make(map[string]int64),
	}
}

// RecordRequest counts a completed request and adds its latency to the total
func (m *ZapMetrics) RecordRequest(labels RequestLabels, latency time.Duration) {
	m.requests.Add(1)
	m.latencyNanos.Add(int64(latency))
	m.countStatus(labels.Status)

	m.logger.Debug("ai_request",
		zap.String("provider", labels.Provider),
		zap.String("model", labels.Model),
		zap.String("feature", labels.Feature),
		zap.String("status", labels.Status),
		zap.Duration("latency", latency))
}

// RecordError counts a failed request under its status label
func (m *ZapMetrics) RecordError(labels RequestLabels, reason string) {
	m.errors.Add(1)
	m.countStatus(labels.Status)

	m.logger.Debug("ai_error",
		zap.String("provider", labels.Provider),
		zap.String("feature", labels.Feature),
		zap.String("status", labels.Status),
		zap.String("reason", reason))
}

// RecordCacheHit counts a response served from the cache
func (m *ZapMetrics) RecordCacheHit() {
	m.cacheHits.Add(1)
}

// RecordCacheMiss counts a cache lookup that found nothing usable
func (m *ZapMetrics) RecordCacheMiss() {
	m.cacheMisses.Add(1)
}

// RecordFallback counts a request routed to the fallback provider
func (m *ZapMetrics) RecordFallback(reason string) {
	m.fallbacks.Add(1)
	m.logger.Debug("ai_fallback", zap.String("reason", reason))
}

// RecordRetry counts one retry attempt against provider
func (m *ZapMetrics) RecordRetry(provider string, attempt int) {
	m.retries.Add(1)
	m.logger.Debug("ai_retry", zap.String("provider", provider), zap.Int("attempt", attempt))
}

// RecordBreakerTransition counts a circuit state change and logs it at Info level
func (m *ZapMetrics) RecordBreakerTransition(from, to string) {
	m.breakerTransitions.Add(1)
	m.logger.Info("ai_circuit_breaker_transition", zap.String("from", from), zap.String("to", to))
}

// Snapshot returns the current counters
func (m *ZapMetrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	byStatus := make(map[string]int64, len(m.byStatus))
	for k, v := range m.byStatus {
		byStatus[k] = v
	}
	m.mu.Unlock()

	return MetricsSnapshot{
		Requests:           m.requests.Load(),
		Errors:             m.errors.Load(),
		CacheHits:          m.cacheHits.Load(),
		CacheMisses:        m.cacheMisses.Load(),
		Fallbacks:          m.fallbacks.Load(),
		Retries:            m.retries.Load(),
		BreakerTransitions: m.breakerTransitions.Load(),
		TotalLatency:       time.Duration(m.latencyNanos.Load()),
		ByStatus:           byStatus,
	}
}

func (m *ZapMetrics) countStatus(status string) {
	if status == "" {
		return
	}
	m.mu.Lock()
	m.byStatus[status]++
	m.mu.Unlock()
}

// NopMetrics discards everything
type NopMetrics struct{}

func (NopMetrics) RecordRequest(RequestLabels, time.Duration) {}
func (NopMetrics) RecordError(RequestLabels, string)          {}
func (NopMetrics) RecordCacheHit()                            {}
func (NopMetrics) RecordCacheMiss()                           {}
func (NopMetrics) RecordFallback(string)                      {}
func (NopMetrics) RecordRetry(string, int)                    {}
func (NopMetrics) RecordBreakerTransition(string, string)     {}
