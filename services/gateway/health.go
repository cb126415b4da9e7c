package gateway

import "sync/atomic"

// DefaultHealthyThreshold is the error rate at which the gateway reports unhealthy
const DefaultHealthyThreshold = 0.5

// HealthMonitor holds the lifetime counters behind HealthMetrics
type HealthMonitor struct {
	requests    atomic.Int64
	errors      atomic.Int64
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
	fallbacks   atomic.Int64
	retries     atomic.Int64
	threshold   float64
}

// NewHealthMonitor creates a monitor; threshold outside (0,1] uses the default
func NewHealthMonitor(threshold float64) *HealthMonitor {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultHealthyThreshold
	}
	return &HealthMonitor{threshold: threshold}
}

// RecordRequest counts a Generate call, whatever its outcome
func (h *HealthMonitor) RecordRequest() {
	h.requests.Add(1)
}

// RecordError counts a Generate call that returned an error.
// It must follow the matching RecordRequest so ErrorCount never exceeds RequestCount.
func (h *HealthMonitor) RecordError() {
	h.errors.Add(1)
}

// RecordCacheHit counts a response served from the cache
func (h *HealthMonitor) RecordCacheHit() {
	h.cacheHits.Add(1)
}

// RecordCacheMiss counts a cache lookup that fell through to a provider
func (h *HealthMonitor) RecordCacheMiss() {
	h.cacheMisses.Add(1)
}

// RecordFallback counts a request the fallback provider was asked to serve
func (h *HealthMonitor) RecordFallback() {
	h.fallbacks.Add(1)
}

// RecordRetries adds n retries (attempts beyond the first)
func (h *HealthMonitor) RecordRetries(n int) {
	if n > 0 {
		h.retries.Add(int64(n))
	}
}

// Snapshot combines the counters with the breaker state
func (h *HealthMonitor) Snapshot(breaker CircuitBreakerState) HealthMetrics {
	// errors first: every error is counted after its request, so errors <= requests
	errs := h.errors.Load()
	reqs := h.requests.Load()

	var rate float64
	if reqs > 0 {
		rate = float64(errs) / float64(reqs)
	}

	bypassed := breaker.State != StateClosed
	provider := ProviderPrimary
	if bypassed {
		provider = ProviderFallback
	}

	return HealthMetrics{
		RequestCount:       reqs,
		ErrorCount:         errs,
		ErrorRate:          rate,
		CircuitBreakerOpen: bypassed,
		BreakerState:       breaker.State,
		Provider:           provider,
		Healthy:            rate < h.threshold,
		CacheHits:          h.cacheHits.Load(),
		CacheMisses:        h.cacheMisses.Load(),
		FallbackCount:      h.fallbacks.Load(),
		RetryCount:         h.retries.Load(),
	}
}

// Reset zeroes every counter
func (h *HealthMonitor) Reset() {
	h.requests.Store(0)
	h.errors.Store(0)
	h.cacheHits.Store(0)
	h.cacheMisses.Store(0)
	h.fallbacks.Store(0)
	h.retries.Store(0)
}
