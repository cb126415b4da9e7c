package gateway

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/tradelens/ai-gateway/config"
	"github.com/tradelens/ai-gateway/services/cache"
	"github.com/tradelens/ai-gateway/services/providers"
)

var errUpstream = errors.New("upstream 503")

// fakeProvider answers through fn; call numbers start at 1
type fakeProvider struct {
	name       string
	model      string
	configured bool
	calls      atomic.Int64

	mu sync.Mutex
	fn func(call int, req *providers.GenerateRequest) (*providers.GenerateResponse, error)
}

func newFakeProvider(name string, fn func(call int, req *providers.GenerateRequest) (*providers.GenerateResponse, error)) *fakeProvider {
	return &fakeProvider{name: name, model: name + "-model", configured: true, fn: fn}
}

func (p *fakeProvider) Name() string       { return p.name }
func (p *fakeProvider) Model() string      { return p.model }
func (p *fakeProvider) IsConfigured() bool { return p.configured }

func (p *fakeProvider) Generate(ctx context.Context, req *providers.GenerateRequest) (*providers.GenerateResponse, error) {
	call := int(p.calls.Add(1))
	p.mu.Lock()
	fn := p.fn
	p.mu.Unlock()
	return fn(call, req)
}

func (p *fakeProvider) setFn(fn func(call int, req *providers.GenerateRequest) (*providers.GenerateResponse, error)) {
	p.mu.Lock()
	p.fn = fn
	p.mu.Unlock()
}

func (p *fakeProvider) Calls() int { return int(p.calls.Load()) }

func echo(prefix string) func(int, *providers.GenerateRequest) (*providers.GenerateResponse, error) {
	return func(_ int, req *providers.GenerateRequest) (*providers.GenerateResponse, error) {
		return &providers.GenerateResponse{
			Content: prefix + ":" + req.Prompt,
			Model:   prefix + "-model",
			Usage:   providers.Usage{PromptTokens: 2, CompletionTokens: 3, TotalTokens: 5},
		}, nil
	}
}

func failing(err error) func(int, *providers.GenerateRequest) (*providers.GenerateResponse, error) {
	return func(int, *providers.GenerateRequest) (*providers.GenerateResponse, error) {
		return nil, err
	}
}

func testConfig() config.GatewayConfig {
	return config.GatewayConfig{
		RateLimit:        10,
		RateWindow:       time.Second,
		CacheTTL:         300 * time.Second,
		FailureThreshold: 5,
		Cooldown:         60 * time.Second,
		MaxRetries:       3,
		InitialDelay:     time.Millisecond,
		ProviderTimeout:  time.Second,
		HealthyThreshold: 0.5,
		BatchConcurrency: 4,
	}
}

// pinClock freezes the limiter and breaker clocks so tests never cross a window by accident
func pinClock(g *Gateway, at time.Time) *time.Time {
	now := at
	clock := func() time.Time { return now }
	g.limiter.now = clock
	g.breaker.now = clock
	return &now
}

// countingStore wraps a Store and counts calls
type countingStore struct {
	cache.Store
	gets atomic.Int64
	sets atomic.Int64
}

func (s *countingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.gets.Add(1)
	return s.Store.Get(ctx, key)
}

func (s *countingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.sets.Add(1)
	return s.Store.Set(ctx, key, value, ttl)
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("dial tcp: connection refused")
}

func (brokenStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("dial tcp: connection refused")
}

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) RecordOutcome(out Outcome) {
	m.Called(out)
}
