// Package gateway turns rate-limited, failure-prone text-generation providers
// into a predictable internal API: response caching, fixed-window admission,
// retries with backoff, a circuit breaker and a fallback provider.
package gateway

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tradelens/ai-gateway/config"
	"github.com/tradelens/ai-gateway/internal/observability"
	"github.com/tradelens/ai-gateway/services"
	"github.com/tradelens/ai-gateway/services/cache"
	"github.com/tradelens/ai-gateway/services/providers"
)

var errPrimarySkipped = errors.New("primary provider skipped: circuit breaker open")

// Gateway is the only entry point callers use to generate text.
// Construct one per process and share it.
type Gateway struct {
	primary  providers.Provider
	fallback providers.Provider
	cache    *cache.ResponseCache
	limiter  *RateLimiter
	breaker  *CircuitBreaker
	retry    *RetryExecutor
	health   *HealthMonitor
	metrics  observability.Metrics
	recorder OutcomeRecorder
	cfg      config.GatewayConfig
	logger   *zap.Logger
	now      func() time.Time
}

// Option customizes a Gateway
type Option func(*Gateway)

// WithFallback sets the provider used when the primary is exhausted or bypassed
func WithFallback(p providers.Provider) Option {
	return func(g *Gateway) { g.fallback = p }
}

// WithCache enables response caching
func WithCache(c *cache.ResponseCache) Option {
	return func(g *Gateway) { g.cache = c }
}

// WithMetrics sets the metrics sink
func WithMetrics(m observability.Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// WithRecorder sets the sink that receives one Outcome per call
func WithRecorder(r OutcomeRecorder) Option {
	return func(g *Gateway) { g.recorder = r }
}

// New creates a Gateway around the primary provider
func New(primary providers.Provider, cfg config.GatewayConfig, logger *zap.Logger, opts ...Option) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}

	g := &Gateway{
		primary: primary,
		limiter: NewRateLimiter(cfg.RateLimit, cfg.RateWindow),
		breaker: NewCircuitBreaker(cfg.FailureThreshold, cfg.Cooldown),
		health:  NewHealthMonitor(cfg.HealthyThreshold),
		metrics: observability.NopMetrics{},
		cfg:     cfg,
		logger:  logger.Named("gateway"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}

	g.retry = NewRetryExecutor(RetryConfig{
		MaxAttempts:    cfg.MaxRetries,
		InitialDelay:   cfg.InitialDelay,
		AttemptTimeout: cfg.ProviderTimeout,
		Classify:       cfg.RetryClassify,
	}, g.breaker)
	g.retry.OnRetry(func(attempt int, err error) {
		g.metrics.RecordRetry(g.primary.Name(), attempt)
		g.logger.Debug("retrying primary provider", zap.Int("attempt", attempt), zap.Error(err))
	})

	g.breaker.OnTransition(func(from, to BreakerState) {
		g.metrics.RecordBreakerTransition(string(from), string(to))
		g.logger.Warn("circuit breaker transition",
			zap.String("from", string(from)),
			zap.String("to", string(to)))
	})

	return g
}

// Generate runs one request through cache, rate limiter, breaker, retries and fallback
func (g *Gateway) Generate(ctx context.Context, req *Request) (*Response, error) {
	if req == nil || strings.TrimSpace(req.Prompt) == "" {
		return nil, services.ErrEmptyPrompt
	}

	start := g.now()
	requestID := observability.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	logger := g.logger.With(zap.String("request_id", requestID), zap.String("feature", req.Feature))

	g.health.RecordRequest()

	model := req.Model
	if model == "" {
		model = g.primary.Model()
	}
	key := req.CacheKey
	if key == "" {
		key = cache.Key(req.Prompt, model)
	}

	out := Outcome{
		RequestID:   requestID,
		Feature:     req.Feature,
		CacheKey:    key,
		PromptChars: len(req.Prompt),
		CreatedAt:   start,
	}

	if resp := g.lookupCache(ctx, logger, req, key); resp != nil {
		resp.RequestID = requestID
		resp.Latency = g.now().Sub(start)
		g.finish(out.withResponse(OutcomeCached, resp), nil)
		return resp, nil
	}

	var primaryErr error
	switch {
	case !g.primary.IsConfigured():
		primaryErr = providers.ErrNotConfigured
		logger.Debug("primary provider not configured, routing to fallback")
	case g.breaker.Allow():
		if !g.limiter.Allow() {
			g.breaker.ReleaseTrial()
			info := g.limiter.Info()
			err := services.NewRateLimitError(info.Limit, info.Remaining, info.ResetAt.Unix())
			g.health.RecordError()
			out.Latency = g.now().Sub(start)
			g.finish(out.withStatus(OutcomeRateLimited), err)
			logger.Warn("rate limit exceeded", zap.Int("limit", info.Limit), zap.Time("reset_at", info.ResetAt))
			return nil, err
		}

		providerReq := &providers.GenerateRequest{Prompt: req.Prompt, Model: req.Model, MaxTokens: req.MaxTokens}
		result, attempts, err := Execute(ctx, g.retry, func(ctx context.Context) (*providers.GenerateResponse, error) {
			return g.primary.Generate(ctx, providerReq)
		})
		g.health.RecordRetries(attempts - 1)
		out.Attempts = attempts

		if err == nil {
			g.breaker.RecordSuccess()
			resp := g.respond(ProviderPrimary, result, requestID, start)
			g.storeCache(ctx, logger, req, key, resp)
			g.finish(out.withResponse(OutcomeSuccess, resp), nil)
			return resp, nil
		}
		primaryErr = err

		if ctx.Err() != nil {
			g.breaker.ReleaseTrial()
			g.health.RecordError()
			out.Latency = g.now().Sub(start)
			g.finish(out.withStatus(OutcomeFailed), err)
			return nil, services.WrapError(services.ErrorTypeUnavailable, "generation cancelled", ctx.Err())
		}

		g.breaker.RecordFailure()
		logger.Warn("primary provider exhausted",
			zap.String("provider", g.primary.Name()),
			zap.Int("attempts", attempts),
			zap.Error(err))
	default:
		primaryErr = errPrimarySkipped
		logger.Debug("circuit open, routing to fallback")
	}

	if g.fallback == nil || !g.fallback.IsConfigured() {
		err := services.NewAllProvidersFailedError(primaryErr, nil)
		if errors.Is(primaryErr, providers.ErrNotConfigured) {
			err = services.ErrProviderNotConfigured
		}
		g.health.RecordError()
		out.Latency = g.now().Sub(start)
		g.finish(out.withStatus(OutcomeFailed), err)
		logger.Error("generation failed, no fallback configured", zap.Error(primaryErr))
		return nil, err
	}

	g.health.RecordFallback()
	g.metrics.RecordFallback(primaryErr.Error())

	result, err := runAttempt(ctx, g.cfg.ProviderTimeout, func(ctx context.Context) (*providers.GenerateResponse, error) {
		return g.fallback.Generate(ctx, &providers.GenerateRequest{Prompt: req.Prompt, MaxTokens: req.MaxTokens})
	})
	if err != nil {
		terminal := services.NewAllProvidersFailedError(primaryErr, err)
		g.health.RecordError()
		out.Latency = g.now().Sub(start)
		g.finish(out.withStatus(OutcomeFailed), terminal)
		logger.Error("all providers failed",
			zap.NamedError("primary_error", primaryErr),
			zap.NamedError("fallback_error", err))
		return nil, terminal
	}

	resp := g.respond(ProviderFallback, result, requestID, start)
	g.storeCache(ctx, logger, req, key, resp)
	g.finish(out.withResponse(OutcomeFallback, resp), nil)
	logger.Info("served by fallback provider", zap.String("provider", g.fallback.Name()))
	return resp, nil
}

// HealthStatus returns the current health snapshot
func (g *Gateway) HealthStatus() HealthMetrics {
	return g.health.Snapshot(g.breaker.State())
}

// BreakerState returns the circuit breaker snapshot
func (g *Gateway) BreakerState() CircuitBreakerState {
	return g.breaker.State()
}

// RateLimitInfo returns the current rate limit window
func (g *Gateway) RateLimitInfo() RateLimitState {
	return g.limiter.Info()
}

// ResetHealthMetrics zeroes counters, closes the breaker and starts a fresh rate-limit window
func (g *Gateway) ResetHealthMetrics() {
	g.health.Reset()
	g.breaker.Reset()
	g.limiter.Reset()
	g.logger.Info("health metrics reset")
}

// IsConfigured reports whether the primary provider has credentials. No I/O.
func (g *Gateway) IsConfigured() bool {
	return g.primary.IsConfigured()
}

// Status describes both providers. No I/O.
func (g *Gateway) Status() Status {
	s := Status{
		Configured:   g.primary.IsConfigured(),
		Primary:      g.primary.Name(),
		PrimaryModel: g.primary.Model(),
	}
	if g.fallback != nil {
		s.FallbackConfigured = g.fallback.IsConfigured()
		s.Fallback = g.fallback.Name()
		s.FallbackModel = g.fallback.Model()
	}
	return s
}

// Ping checks the cache store when it supports it
func (g *Gateway) Ping(ctx context.Context) error {
	if g.cache == nil {
		return nil
	}
	if p, ok := g.cache.Store().(cache.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (g *Gateway) lookupCache(ctx context.Context, logger *zap.Logger, req *Request, key string) *Response {
	if req.SkipCache || g.cache == nil {
		return nil
	}

	entry, err := g.cache.Get(ctx, key)
	if err != nil {
		logger.Warn("cache read failed, treating as miss", zap.Error(err))
	}
	if entry == nil {
		g.health.RecordCacheMiss()
		g.metrics.RecordCacheMiss()
		return nil
	}

	g.health.RecordCacheHit()
	g.metrics.RecordCacheHit()
	return &Response{
		Content:  entry.Content,
		Provider: entry.Provider,
		Model:    entry.Model,
		Usage:    entry.Usage,
		Cached:   true,
	}
}

func (g *Gateway) storeCache(ctx context.Context, logger *zap.Logger, req *Request, key string, resp *Response) {
	if req.SkipCache || g.cache == nil {
		return
	}

	err := g.cache.Set(ctx, key, &cache.CacheEntry{
		Content:  resp.Content,
		Provider: resp.Provider,
		Model:    resp.Model,
		Usage:    resp.Usage,
		StoredAt: g.now().UTC(),
	}, g.cfg.CacheTTL)
	if err != nil {
		logger.Warn("cache write failed", zap.Error(err))
	}
}

func (g *Gateway) respond(role string, result *providers.GenerateResponse, requestID string, start time.Time) *Response {
	return &Response{
		Content:   result.Content,
		Provider:  role,
		Model:     result.Model,
		Usage:     result.Usage,
		Latency:   g.now().Sub(start),
		RequestID: requestID,
	}
}

func (g *Gateway) finish(out Outcome, err error) {
	labels := observability.RequestLabels{
		Provider: out.Provider,
		Model:    out.Model,
		Feature:  out.Feature,
		Status:   out.Status,
	}
	if err != nil {
		out.Error = err.Error()
		g.metrics.RecordError(labels, out.Error)
	} else {
		g.metrics.RecordRequest(labels, out.Latency)
	}

	if g.recorder != nil {
		g.recorder.RecordOutcome(out)
	}
}
