package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tradelens/ai-gateway/config"
	"github.com/tradelens/ai-gateway/services/cache"
	"github.com/tradelens/ai-gateway/services/gateway"
	"github.com/tradelens/ai-gateway/services/providers"
)

// stubProvider answers every prompt with "<name>:<prompt>" unless the prompt contains "fail"
type stubProvider struct {
	name  string
	calls atomic.Int64
}

func (p *stubProvider) Name() string       { return p.name }
func (p *stubProvider) Model() string      { return p.name + "-model" }
func (p *stubProvider) IsConfigured() bool { return true }

func (p *stubProvider) Generate(_ context.Context, req *providers.GenerateRequest) (*providers.GenerateResponse, error) {
	p.calls.Add(1)
	if strings.Contains(req.Prompt, "fail") {
		return nil, errors.New("upstream 503")
	}
	return &providers.GenerateResponse{
		Content: p.name + ":" + req.Prompt,
		Model:   p.name + "-model",
		Usage:   providers.Usage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3},
	}, nil
}

type failingPingStore struct {
	*cache.MemoryStore
}

func (failingPingStore) Ping(context.Context) error {
	return errors.New("dial tcp 127.0.0.1:6379: connection refused")
}

func handlerGatewayConfig() config.GatewayConfig {
	return config.GatewayConfig{
		RateLimit:        10,
		RateWindow:       time.Minute,
		CacheTTL:         time.Minute,
		FailureThreshold: 5,
		Cooldown:         time.Minute,
		MaxRetries:       2,
		InitialDelay:     time.Millisecond,
		ProviderTimeout:  time.Second,
		HealthyThreshold: 0.5,
		BatchConcurrency: 2,
	}
}

func newTestGateway(t *testing.T, store cache.Store, opts ...gateway.Option) (*gateway.Gateway, *stubProvider) {
	t.Helper()

	primary := &stubProvider{name: "gemini"}
	if store == nil {
		store = cache.NewMemoryStore(100)
	}
	opts = append(opts, gateway.WithCache(cache.NewResponseCache(store, time.Minute)))
	return gateway.New(primary, handlerGatewayConfig(), zaptest.NewLogger(t), opts...), primary
}

func doRequest(t *testing.T, h http.HandlerFunc, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, reader)
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

// decodeData unwraps the {"data": ...} envelope into out
func decodeData(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}
