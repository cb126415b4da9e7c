package gateway

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tradelens/ai-gateway/internal/observability"
	"github.com/tradelens/ai-gateway/services"
	"github.com/tradelens/ai-gateway/services/cache"
	"github.com/tradelens/ai-gateway/services/providers"
)

func TestGateway_Generate_Primary(t *testing.T) {
	primary := newFakeProvider("gemini", echo("gemini"))
	g := New(primary, testConfig(), zaptest.NewLogger(t))

	resp, err := g.Generate(context.Background(), &Request{Prompt: "daily bias ES", SkipCache: true})
	require.NoError(t, err)

	assert.Equal(t, "gemini:daily bias ES", resp.Content)
	assert.Equal(t, ProviderPrimary, resp.Provider)
	assert.Equal(t, "gemini-model", resp.Model)
	assert.Equal(t, 5, resp.Usage.TotalTokens)
	assert.False(t, resp.Cached)
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, 1, primary.Calls())
}

func TestGateway_Generate_RequestIDFromContext(t *testing.T) {
	g := New(newFakeProvider("gemini", echo("gemini")), testConfig(), zaptest.NewLogger(t))

	ctx := observability.WithRequestID(context.Background(), "req-abc")
	resp, err := g.Generate(ctx, &Request{Prompt: "x", SkipCache: true})
	require.NoError(t, err)
	assert.Equal(t, "req-abc", resp.RequestID)
}

func TestGateway_Generate_EmptyPrompt(t *testing.T) {
	primary := newFakeProvider("gemini", echo("gemini"))
	g := New(primary, testConfig(), zaptest.NewLogger(t))

	_, err := g.Generate(context.Background(), &Request{Prompt: "   "})
	assert.True(t, services.IsValidationError(err))

	_, err = g.Generate(context.Background(), nil)
	assert.True(t, services.IsValidationError(err))

	assert.Equal(t, 0, primary.Calls())
	assert.Equal(t, int64(0), g.HealthStatus().RequestCount)
}

func TestGateway_RateLimit_TenAdmittedThenExhausted(t *testing.T) {
	primary := newFakeProvider("gemini", echo("gemini"))
	g := New(primary, testConfig(), zaptest.NewLogger(t))
	pinClock(g, time.Now())

	for i := 0; i < 10; i++ {
		_, err := g.Generate(context.Background(), &Request{Prompt: fmt.Sprintf("p%d", i), SkipCache: true})
		require.NoError(t, err, "call %d", i)
	}

	info := g.RateLimitInfo()
	assert.LessOrEqual(t, info.Remaining, 0)
	assert.Equal(t, 10, info.Limit)

	_, err := g.Generate(context.Background(), &Request{Prompt: "p10", SkipCache: true})
	require.Error(t, err)
	assert.True(t, services.IsRateLimitError(err))
	assert.Equal(t, 10, services.GetErrorDetails(err)["limit"])
	assert.Equal(t, 10, primary.Calls())

	health := g.HealthStatus()
	assert.Equal(t, int64(11), health.RequestCount)
	assert.Equal(t, int64(1), health.ErrorCount)
}

func TestGateway_RateLimit_WindowRolls(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = 2
	g := New(newFakeProvider("gemini", echo("gemini")), cfg, zaptest.NewLogger(t))
	now := pinClock(g, time.Now())

	for i := 0; i < 2; i++ {
		_, err := g.Generate(context.Background(), &Request{Prompt: "x", SkipCache: true})
		require.NoError(t, err)
	}
	_, err := g.Generate(context.Background(), &Request{Prompt: "x", SkipCache: true})
	require.True(t, services.IsRateLimitError(err))

	*now = now.Add(time.Second)
	_, err = g.Generate(context.Background(), &Request{Prompt: "x", SkipCache: true})
	assert.NoError(t, err)
}

func TestGateway_CacheKeyHit(t *testing.T) {
	primary := newFakeProvider("gemini", echo("gemini"))
	rc := cache.NewResponseCache(cache.NewMemoryStore(100), time.Minute)
	g := New(primary, testConfig(), zaptest.NewLogger(t), WithCache(rc))

	require.NoError(t, rc.Set(context.Background(), "coach:trade-42", &cache.CacheEntry{
		Content:  "Cut losers faster.",
		Provider: ProviderPrimary,
		Model:    "gemini-1.5-flash",
	}, 0))

	resp, err := g.Generate(context.Background(), &Request{Prompt: "review trade 42", CacheKey: "coach:trade-42"})
	require.NoError(t, err)

	assert.True(t, resp.Cached)
	assert.Equal(t, "Cut losers faster.", resp.Content)
	assert.Equal(t, 0, primary.Calls())

	health := g.HealthStatus()
	assert.Equal(t, int64(1), health.RequestCount)
	assert.Equal(t, int64(1), health.CacheHits)
	assert.Equal(t, 10, g.RateLimitInfo().Remaining)
}

func TestGateway_WriteThroughThenHit(t *testing.T) {
	primary := newFakeProvider("gemini", echo("gemini"))
	rc := cache.NewResponseCache(cache.NewMemoryStore(100), time.Minute)
	g := New(primary, testConfig(), zaptest.NewLogger(t), WithCache(rc))

	first, err := g.Generate(context.Background(), &Request{Prompt: "bias NQ"})
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := g.Generate(context.Background(), &Request{Prompt: "bias NQ"})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Content, second.Content)
	assert.Equal(t, ProviderPrimary, second.Provider)
	assert.Equal(t, 1, primary.Calls())

	// a different model is a different key
	_, err = g.Generate(context.Background(), &Request{Prompt: "bias NQ", Model: "gemini-1.5-pro"})
	require.NoError(t, err)
	assert.Equal(t, 2, primary.Calls())
}

func TestGateway_SkipCacheNeverReadsOrWrites(t *testing.T) {
	primary := newFakeProvider("gemini", echo("gemini"))
	store := &countingStore{Store: cache.NewMemoryStore(100)}
	rc := cache.NewResponseCache(store, time.Minute)
	g := New(primary, testConfig(), zaptest.NewLogger(t), WithCache(rc))

	key := cache.Key("bias CL", primary.Model())
	require.NoError(t, rc.Set(context.Background(), key, &cache.CacheEntry{Content: "stale"}, 0))
	store.sets.Store(0)

	resp, err := g.Generate(context.Background(), &Request{Prompt: "bias CL", SkipCache: true})
	require.NoError(t, err)

	assert.False(t, resp.Cached)
	assert.Equal(t, "gemini:bias CL", resp.Content)
	assert.Equal(t, int64(0), store.gets.Load())
	assert.Equal(t, int64(0), store.sets.Load())
	assert.Equal(t, 1, primary.Calls())
}

func TestGateway_CacheStoreFailureIsAMiss(t *testing.T) {
	primary := newFakeProvider("gemini", echo("gemini"))
	g := New(primary, testConfig(), zaptest.NewLogger(t), WithCache(cache.NewResponseCache(brokenStore{}, time.Minute)))

	resp, err := g.Generate(context.Background(), &Request{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, ProviderPrimary, resp.Provider)
	assert.Equal(t, int64(1), g.HealthStatus().CacheMisses)
}

func TestGateway_RetryFailFailSucceed(t *testing.T) {
	primary := newFakeProvider("gemini", func(call int, req *providers.GenerateRequest) (*providers.GenerateResponse, error) {
		if call < 3 {
			return nil, errUpstream
		}
		return echo("gemini")(call, req)
	})
	g := New(primary, testConfig(), zaptest.NewLogger(t))

	resp, err := g.Generate(context.Background(), &Request{Prompt: "x", SkipCache: true})
	require.NoError(t, err)

	assert.Equal(t, ProviderPrimary, resp.Provider)
	assert.Equal(t, 3, primary.Calls())
	assert.Equal(t, int64(2), g.HealthStatus().RetryCount)
	assert.Equal(t, 0, g.BreakerState().ConsecutiveFailures)
}

func TestGateway_AllFailTerminal(t *testing.T) {
	primaryErr := errors.New("gemini: status 500")
	fallbackErr := errors.New("openai: status 502")
	primary := newFakeProvider("gemini", failing(primaryErr))
	fallback := newFakeProvider("openai", failing(fallbackErr))
	g := New(primary, testConfig(), zaptest.NewLogger(t), WithFallback(fallback))

	resp, err := g.Generate(context.Background(), &Request{Prompt: "x", SkipCache: true})
	require.Error(t, err)
	assert.Nil(t, resp)

	assert.True(t, services.IsUnavailableError(err))
	assert.ErrorIs(t, err, services.ErrAllProvidersFailed)
	assert.ErrorIs(t, err, primaryErr)
	assert.ErrorIs(t, err, fallbackErr)

	assert.Equal(t, 3, primary.Calls())
	assert.Equal(t, 1, fallback.Calls())

	health := g.HealthStatus()
	assert.Equal(t, int64(1), health.ErrorCount)
	assert.Equal(t, int64(1), health.FallbackCount)
	assert.Equal(t, 1, g.BreakerState().ConsecutiveFailures)
}

func TestGateway_NoFallbackPrimaryErrorIsTerminal(t *testing.T) {
	g := New(newFakeProvider("gemini", failing(errUpstream)), testConfig(), zaptest.NewLogger(t))

	_, err := g.Generate(context.Background(), &Request{Prompt: "x", SkipCache: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, errUpstream)
	assert.True(t, services.IsUnavailableError(err))
}

func TestGateway_UnconfiguredFallbackIsSkipped(t *testing.T) {
	fallback := newFakeProvider("openai", echo("openai"))
	fallback.configured = false
	g := New(newFakeProvider("gemini", failing(errUpstream)), testConfig(), zaptest.NewLogger(t), WithFallback(fallback))

	_, err := g.Generate(context.Background(), &Request{Prompt: "x", SkipCache: true})
	require.Error(t, err)
	assert.Equal(t, 0, fallback.Calls())
}

func TestGateway_UnconfiguredPrimaryGoesStraightToFallback(t *testing.T) {
	cfg := testConfig()
	cfg.InitialDelay = 100 * time.Millisecond
	primary := newFakeProvider("gemini", failing(providers.ErrNotConfigured))
	primary.configured = false
	fallback := newFakeProvider("openai", echo("openai"))
	g := New(primary, cfg, zaptest.NewLogger(t), WithFallback(fallback))

	start := time.Now()
	resp, err := g.Generate(context.Background(), &Request{Prompt: "x", SkipCache: true})
	require.NoError(t, err)

	assert.Equal(t, ProviderFallback, resp.Provider)
	assert.Equal(t, "openai:x", resp.Content)
	assert.Equal(t, 0, primary.Calls())
	assert.Equal(t, 1, fallback.Calls())
	assert.Less(t, time.Since(start), cfg.InitialDelay, "no backoff may be paid for a primary without credentials")

	assert.Equal(t, 0, g.BreakerState().ConsecutiveFailures)
	assert.Equal(t, StateClosed, g.BreakerState().State)
	assert.Equal(t, cfg.RateLimit, g.RateLimitInfo().Remaining)
	assert.Equal(t, int64(1), g.HealthStatus().FallbackCount)
	assert.Equal(t, int64(0), g.HealthStatus().RetryCount)
}

func TestGateway_NoProviderConfigured(t *testing.T) {
	primary := newFakeProvider("gemini", echo("gemini"))
	primary.configured = false
	fallback := newFakeProvider("openai", echo("openai"))
	fallback.configured = false

	for name, opts := range map[string][]Option{
		"no fallback":           nil,
		"unconfigured fallback": {WithFallback(fallback)},
	} {
		t.Run(name, func(t *testing.T) {
			g := New(primary, testConfig(), zaptest.NewLogger(t), opts...)

			resp, err := g.Generate(context.Background(), &Request{Prompt: "x", SkipCache: true})
			require.Error(t, err)
			assert.Nil(t, resp)
			assert.ErrorIs(t, err, services.ErrProviderNotConfigured)
			assert.True(t, services.IsUnavailableError(err))

			assert.Equal(t, int64(1), g.HealthStatus().ErrorCount)
			assert.Equal(t, 0, g.BreakerState().ConsecutiveFailures)
		})
	}

	assert.Equal(t, 0, primary.Calls())
	assert.Equal(t, 0, fallback.Calls())
}

func TestGateway_FallbackSuccess(t *testing.T) {
	primary := newFakeProvider("gemini", failing(errUpstream))
	fallback := newFakeProvider("openai", func(call int, req *providers.GenerateRequest) (*providers.GenerateResponse, error) {
		assert.Empty(t, req.Model, "primary model override must not leak to fallback")
		return echo("openai")(call, req)
	})
	rc := cache.NewResponseCache(cache.NewMemoryStore(10), time.Minute)
	g := New(primary, testConfig(), zaptest.NewLogger(t), WithFallback(fallback), WithCache(rc))

	resp, err := g.Generate(context.Background(), &Request{Prompt: "coach me", Model: "gemini-1.5-pro"})
	require.NoError(t, err)

	assert.Equal(t, ProviderFallback, resp.Provider)
	assert.Equal(t, "openai:coach me", resp.Content)
	assert.Equal(t, 3, primary.Calls())
	assert.Equal(t, 1, fallback.Calls())

	// fallback responses are written through too
	cached, err := g.Generate(context.Background(), &Request{Prompt: "coach me", Model: "gemini-1.5-pro"})
	require.NoError(t, err)
	assert.True(t, cached.Cached)
	assert.Equal(t, ProviderFallback, cached.Provider)
	assert.Equal(t, 3, primary.Calls())
}

func TestGateway_BreakerOpensAndSkipsPrimary(t *testing.T) {
	primary := newFakeProvider("gemini", failing(errUpstream))
	fallback := newFakeProvider("openai", failing(errors.New("openai down")))
	g := New(primary, testConfig(), zaptest.NewLogger(t), WithFallback(fallback))
	pinClock(g, time.Now())

	for i := 0; i < 5; i++ {
		_, err := g.Generate(context.Background(), &Request{Prompt: "x", SkipCache: true})
		require.Error(t, err)
	}

	health := g.HealthStatus()
	assert.True(t, health.CircuitBreakerOpen)
	assert.Equal(t, ProviderFallback, health.Provider)
	assert.Equal(t, 15, primary.Calls())

	remaining := g.RateLimitInfo().Remaining
	fallback.setFn(echo("openai"))

	resp, err := g.Generate(context.Background(), &Request{Prompt: "x", SkipCache: true})
	require.NoError(t, err)
	assert.Equal(t, ProviderFallback, resp.Provider)
	assert.Equal(t, 15, primary.Calls(), "primary must not be attempted while open")
	assert.Equal(t, remaining, g.RateLimitInfo().Remaining, "open breaker must not consume rate-limit budget")
}

func TestGateway_BreakerHalfOpenTrial(t *testing.T) {
	cfg := testConfig()
	cfg.FailureThreshold = 1
	cfg.MaxRetries = 1
	primary := newFakeProvider("gemini", failing(errUpstream))
	fallback := newFakeProvider("openai", echo("openai"))
	g := New(primary, cfg, zaptest.NewLogger(t), WithFallback(fallback))
	now := pinClock(g, time.Now())

	_, err := g.Generate(context.Background(), &Request{Prompt: "a", SkipCache: true})
	require.NoError(t, err)
	require.True(t, g.HealthStatus().CircuitBreakerOpen)

	// trial fails: back to open with a fresh cooldown
	*now = now.Add(61 * time.Second)
	resp, err := g.Generate(context.Background(), &Request{Prompt: "b", SkipCache: true})
	require.NoError(t, err)
	assert.Equal(t, ProviderFallback, resp.Provider)
	assert.Equal(t, 2, primary.Calls())
	assert.Equal(t, StateOpen, g.BreakerState().State)

	_, err = g.Generate(context.Background(), &Request{Prompt: "c", SkipCache: true})
	require.NoError(t, err)
	assert.Equal(t, 2, primary.Calls())

	// trial succeeds: closed
	*now = now.Add(61 * time.Second)
	primary.setFn(echo("gemini"))
	resp, err = g.Generate(context.Background(), &Request{Prompt: "d", SkipCache: true})
	require.NoError(t, err)
	assert.Equal(t, ProviderPrimary, resp.Provider)
	assert.Equal(t, StateClosed, g.BreakerState().State)
	assert.False(t, g.HealthStatus().CircuitBreakerOpen)
}

func TestGateway_RetryClassification(t *testing.T) {
	nonRetryable := providers.NewProviderError("gemini", "INVALID_ARGUMENT", "status 400", 400, false, nil)

	tests := []struct {
		name      string
		classify  bool
		wantCalls int
	}{
		{"classification off retries everything", false, 3},
		{"classification on stops at non-retryable", true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.RetryClassify = tt.classify
			primary := newFakeProvider("gemini", failing(nonRetryable))
			g := New(primary, cfg, zaptest.NewLogger(t))

			_, err := g.Generate(context.Background(), &Request{Prompt: "x", SkipCache: true})
			require.Error(t, err)
			assert.Equal(t, tt.wantCalls, primary.Calls())
		})
	}
}

func TestGateway_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	primary := newFakeProvider("gemini", func(int, *providers.GenerateRequest) (*providers.GenerateResponse, error) {
		cancel()
		return nil, context.Canceled
	})
	fallback := newFakeProvider("openai", echo("openai"))
	g := New(primary, testConfig(), zaptest.NewLogger(t), WithFallback(fallback))

	_, err := g.Generate(ctx, &Request{Prompt: "x", SkipCache: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, primary.Calls())
	assert.Equal(t, 0, fallback.Calls())
	assert.Equal(t, 0, g.BreakerState().ConsecutiveFailures)
}

func TestGateway_AttemptTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.ProviderTimeout = 20 * time.Millisecond
	cfg.MaxRetries = 1
	primary := &fakeProvider{name: "gemini", model: "m", configured: true}
	primary.fn = func(int, *providers.GenerateRequest) (*providers.GenerateResponse, error) {
		return nil, errUpstream
	}
	slow := &slowProvider{fakeProvider: primary, delay: time.Second}
	g := New(slow, cfg, zaptest.NewLogger(t))

	start := time.Now()
	_, err := g.Generate(context.Background(), &Request{Prompt: "x", SkipCache: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

type slowProvider struct {
	*fakeProvider
	delay time.Duration
}

func (p *slowProvider) Generate(ctx context.Context, req *providers.GenerateRequest) (*providers.GenerateResponse, error) {
	select {
	case <-time.After(p.delay):
		return p.fakeProvider.Generate(ctx, req)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestGateway_ResetHealthMetrics(t *testing.T) {
	g := New(newFakeProvider("gemini", failing(errUpstream)), testConfig(), zaptest.NewLogger(t))
	pinClock(g, time.Now())

	for i := 0; i < 5; i++ {
		_, _ = g.Generate(context.Background(), &Request{Prompt: "x", SkipCache: true})
	}
	require.True(t, g.HealthStatus().CircuitBreakerOpen)
	require.Equal(t, int64(5), g.HealthStatus().ErrorCount)

	g.ResetHealthMetrics()

	health := g.HealthStatus()
	assert.Equal(t, int64(0), health.RequestCount)
	assert.Equal(t, int64(0), health.ErrorCount)
	assert.Equal(t, int64(0), health.RetryCount)
	assert.False(t, health.CircuitBreakerOpen)
	assert.Equal(t, ProviderPrimary, health.Provider)
	assert.True(t, health.Healthy)
	assert.Equal(t, 10, g.RateLimitInfo().Remaining)
}

func TestGateway_ErrorRate(t *testing.T) {
	primary := newFakeProvider("gemini", echo("gemini"))
	g := New(primary, testConfig(), zaptest.NewLogger(t))
	pinClock(g, time.Now())

	assert.Equal(t, 0.0, g.HealthStatus().ErrorRate)
	assert.True(t, g.HealthStatus().Healthy)

	for i := 0; i < 3; i++ {
		_, err := g.Generate(context.Background(), &Request{Prompt: "ok", SkipCache: true})
		require.NoError(t, err)
	}
	primary.setFn(failing(errUpstream))
	_, _ = g.Generate(context.Background(), &Request{Prompt: "bad", SkipCache: true})

	health := g.HealthStatus()
	assert.Equal(t, int64(4), health.RequestCount)
	assert.Equal(t, int64(1), health.ErrorCount)
	assert.InDelta(t, 0.25, health.ErrorRate, 1e-9)
	assert.True(t, health.Healthy)

	_, _ = g.Generate(context.Background(), &Request{Prompt: "bad", SkipCache: true})
	_, _ = g.Generate(context.Background(), &Request{Prompt: "bad", SkipCache: true})

	health = g.HealthStatus()
	assert.InDelta(t, float64(health.ErrorCount)/float64(health.RequestCount), health.ErrorRate, 1e-9)
	assert.InDelta(t, 0.5, health.ErrorRate, 1e-9)
	assert.False(t, health.Healthy)
}

func TestGateway_RecordsOutcomes(t *testing.T) {
	rec := &mockRecorder{}
	rec.On("RecordOutcome", mock.MatchedBy(func(o Outcome) bool {
		return o.Status == OutcomeSuccess && o.Provider == ProviderPrimary && o.Attempts == 1 && o.PromptChars == 5
	})).Once()
	rec.On("RecordOutcome", mock.MatchedBy(func(o Outcome) bool {
		return o.Status == OutcomeCached && o.Cached
	})).Once()

	rc := cache.NewResponseCache(cache.NewMemoryStore(10), time.Minute)
	g := New(newFakeProvider("gemini", echo("gemini")), testConfig(), zaptest.NewLogger(t), WithCache(rc), WithRecorder(rec))

	_, err := g.Generate(context.Background(), &Request{Prompt: "hello", Feature: "coach"})
	require.NoError(t, err)
	_, err = g.Generate(context.Background(), &Request{Prompt: "hello", Feature: "coach"})
	require.NoError(t, err)

	rec.AssertExpectations(t)
}

func TestGateway_RecordsFailureOutcome(t *testing.T) {
	rec := &mockRecorder{}
	rec.On("RecordOutcome", mock.MatchedBy(func(o Outcome) bool {
		return o.Status == OutcomeFailed && o.Error != "" && o.Attempts == 3
	})).Once()

	g := New(newFakeProvider("gemini", failing(errUpstream)), testConfig(), zaptest.NewLogger(t), WithRecorder(rec))
	_, err := g.Generate(context.Background(), &Request{Prompt: "x", SkipCache: true})
	require.Error(t, err)

	rec.AssertExpectations(t)
}

func TestGateway_MetricsSink(t *testing.T) {
	metrics := observability.NewZapMetrics(zaptest.NewLogger(t))
	primary := newFakeProvider("gemini", func(call int, req *providers.GenerateRequest) (*providers.GenerateResponse, error) {
		if call == 1 {
			return nil, errUpstream
		}
		return echo("gemini")(call, req)
	})
	g := New(primary, testConfig(), zaptest.NewLogger(t), WithMetrics(metrics))

	_, err := g.Generate(context.Background(), &Request{Prompt: "x", SkipCache: true})
	require.NoError(t, err)

	snap := metrics.Snapshot()
	assert.Equal(t, int64(1), snap.Requests)
	assert.Equal(t, int64(1), snap.Retries)
	assert.Equal(t, int64(1), snap.ByStatus[OutcomeSuccess])
}

func TestGateway_StatusAndConfigured(t *testing.T) {
	primary := newFakeProvider("gemini", echo("gemini"))
	fallback := newFakeProvider("openai", echo("openai"))

	g := New(primary, testConfig(), zaptest.NewLogger(t), WithFallback(fallback))
	assert.True(t, g.IsConfigured())
	assert.Equal(t, Status{
		Configured:         true,
		FallbackConfigured: true,
		Primary:            "gemini",
		PrimaryModel:       "gemini-model",
		Fallback:           "openai",
		FallbackModel:      "openai-model",
	}, g.Status())

	primary.configured = false
	bare := New(primary, testConfig(), zaptest.NewLogger(t))
	assert.False(t, bare.IsConfigured())
	assert.False(t, bare.Status().FallbackConfigured)
	assert.Empty(t, bare.Status().Fallback)
	assert.Equal(t, 0, primary.Calls())
}

func TestGateway_Ping(t *testing.T) {
	g := New(newFakeProvider("gemini", echo("gemini")), testConfig(), zaptest.NewLogger(t))
	assert.NoError(t, g.Ping(context.Background()))

	withCache := New(newFakeProvider("gemini", echo("gemini")), testConfig(), zaptest.NewLogger(t),
		WithCache(cache.NewResponseCache(cache.NewMemoryStore(1), time.Minute)))
	assert.NoError(t, withCache.Ping(context.Background()))
}
