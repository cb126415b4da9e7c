package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tradelens/ai-gateway/internal/observability"
	"github.com/tradelens/ai-gateway/models"
	"github.com/tradelens/ai-gateway/services"
	"github.com/tradelens/ai-gateway/services/gateway"
	"github.com/tradelens/ai-gateway/services/ledger"
	"github.com/tradelens/ai-gateway/utils"
)

const maxBodyBytes = 1 << 20

// UsageReader is the read side of the generation ledger
type UsageReader interface {
	Recent(ctx context.Context, feature string, limit, offset int) ([]*models.GenerationRecord, error)
	Get(ctx context.Context, requestID string) (*models.GenerationRecord, error)
	Summary(ctx context.Context, since time.Duration) (*models.UsageSummary, error)
	Stats() ledger.Stats
}

// MetricsReader exposes in-memory metric counters
type MetricsReader interface {
	Snapshot() observability.MetricsSnapshot
}

// MetricsResponse is the body of GET /metrics. Ledger is set only when usage recording is enabled.
type MetricsResponse struct {
	observability.MetricsSnapshot
	Ledger *ledger.Stats `json:"ledger,omitempty"`
}

// BatchRequest is the body of POST /generate/batch
type BatchRequest struct {
	Requests []*gateway.Request `json:"requests" validate:"max=100"`
}

// BatchResponse keeps one response per request, in request order
type BatchResponse struct {
	Responses []*gateway.Response `json:"responses"`
}

// GatewayHandler exposes the provider gateway over HTTP
type GatewayHandler struct {
	gateway *gateway.Gateway
	usage   UsageReader
	metrics MetricsReader
	logger  *zap.Logger
}

// NewGatewayHandler creates a GatewayHandler. usage and metrics may be nil.
func NewGatewayHandler(gw *gateway.Gateway, usage UsageReader, metrics MetricsReader, logger *zap.Logger) *GatewayHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GatewayHandler{
		gateway: gw,
		usage:   usage,
		metrics: metrics,
		logger:  logger,
	}
}

// HandleGenerate handles POST /api/v1/ai/generate
func (h *GatewayHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	logger := observability.LoggerFromContext(r.Context(), h.logger)

	var req gateway.Request
	if err := decodeBody(w, r, &req); err != nil {
		HandleValidationError(w, err, logger)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, logger)
		return
	}

	resp, err := h.gateway.Generate(r.Context(), &req)
	h.writeRateLimitHeaders(w)
	if err != nil {
		HandleServiceError(w, err, logger)
		return
	}

	if err := utils.WriteOK(w, resp); err != nil {
		logger.Error("failed to write generate response", zap.Error(err))
	}
}

// HandleGenerateBatch handles POST /api/v1/ai/generate/batch.
// Individual failures come back as empty responses, never as an error status.
func (h *GatewayHandler) HandleGenerateBatch(w http.ResponseWriter, r *http.Request) {
	logger := observability.LoggerFromContext(r.Context(), h.logger)

	var body BatchRequest
	if err := decodeBody(w, r, &body); err != nil {
		HandleValidationError(w, err, logger)
		return
	}
	if len(body.Requests) == 0 {
		HandleServiceError(w, services.ErrEmptyBatch, logger)
		return
	}
	if err := utils.ValidateStruct(&body); err != nil {
		HandleValidationError(w, err, logger)
		return
	}

	responses := h.gateway.GenerateBatch(r.Context(), body.Requests)
	h.writeRateLimitHeaders(w)

	if err := utils.WriteOK(w, BatchResponse{Responses: responses}); err != nil {
		logger.Error("failed to write batch response", zap.Error(err))
	}
}

// HandleHealth handles GET /api/v1/ai/health
func (h *GatewayHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	metrics := h.gateway.HealthStatus()

	status := http.StatusOK
	if !metrics.Healthy {
		status = http.StatusServiceUnavailable
	}

	if err := utils.WriteJSON(w, status, utils.SuccessResponse{Data: metrics}); err != nil {
		h.logger.Error("failed to write health response", zap.Error(err))
	}
}

// HandleResetHealth handles POST /api/v1/ai/health/reset
func (h *GatewayHandler) HandleResetHealth(w http.ResponseWriter, r *http.Request) {
	h.gateway.ResetHealthMetrics()
	observability.LoggerFromContext(r.Context(), h.logger).Info("gateway health reset via API")
	utils.WriteNoContent(w)
}

// HandleRateLimit handles GET /api/v1/ai/rate-limit
func (h *GatewayHandler) HandleRateLimit(w http.ResponseWriter, r *http.Request) {
	if err := utils.WriteOK(w, h.gateway.RateLimitInfo()); err != nil {
		h.logger.Error("failed to write rate limit response", zap.Error(err))
	}
}

// HandleCircuitBreaker handles GET /api/v1/ai/circuit-breaker
func (h *GatewayHandler) HandleCircuitBreaker(w http.ResponseWriter, r *http.Request) {
	if err := utils.WriteOK(w, h.gateway.BreakerState()); err != nil {
		h.logger.Error("failed to write circuit breaker response", zap.Error(err))
	}
}

// HandleStatus handles GET /api/v1/ai/status
func (h *GatewayHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if err := utils.WriteOK(w, h.gateway.Status()); err != nil {
		h.logger.Error("failed to write status response", zap.Error(err))
	}
}

// HandleMetrics handles GET /api/v1/ai/metrics
func (h *GatewayHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	if h.metrics == nil {
		_ = utils.WriteServiceUnavailable(w, "metrics are not enabled")
		return
	}
	resp := MetricsResponse{MetricsSnapshot: h.metrics.Snapshot()}
	if h.usage != nil {
		stats := h.usage.Stats()
		resp.Ledger = &stats
	}
	if err := utils.WriteOK(w, resp); err != nil {
		h.logger.Error("failed to write metrics response", zap.Error(err))
	}
}

// HandleListUsage handles GET /api/v1/ai/usage?feature=&limit=&offset=
func (h *GatewayHandler) HandleListUsage(w http.ResponseWriter, r *http.Request) {
	if h.usage == nil {
		_ = utils.WriteServiceUnavailable(w, "usage ledger is not configured")
		return
	}
	logger := observability.LoggerFromContext(r.Context(), h.logger)

	q := r.URL.Query()
	limit, err := queryInt(q.Get("limit"), 0)
	if err != nil {
		HandleServiceError(w, services.NewDomainError(services.ErrorTypeValidation, "limit must be an integer", err), logger)
		return
	}
	offset, err := queryInt(q.Get("offset"), 0)
	if err != nil {
		HandleServiceError(w, services.NewDomainError(services.ErrorTypeValidation, "offset must be an integer", err), logger)
		return
	}

	records, err := h.usage.Recent(r.Context(), q.Get("feature"), limit, offset)
	if err != nil {
		HandleServiceError(w, err, logger)
		return
	}
	if records == nil {
		records = []*models.GenerationRecord{}
	}

	if err := utils.WriteOK(w, records); err != nil {
		logger.Error("failed to write usage response", zap.Error(err))
	}
}

// HandleGetUsage handles GET /api/v1/ai/usage/{requestID}
func (h *GatewayHandler) HandleGetUsage(w http.ResponseWriter, r *http.Request) {
	if h.usage == nil {
		_ = utils.WriteServiceUnavailable(w, "usage ledger is not configured")
		return
	}
	logger := observability.LoggerFromContext(r.Context(), h.logger)

	record, err := h.usage.Get(r.Context(), chi.URLParam(r, "requestID"))
	if err != nil {
		HandleServiceError(w, err, logger)
		return
	}

	if err := utils.WriteOK(w, record); err != nil {
		logger.Error("failed to write usage record response", zap.Error(err))
	}
}

// HandleUsageSummary handles GET /api/v1/ai/usage/summary?since=24h
func (h *GatewayHandler) HandleUsageSummary(w http.ResponseWriter, r *http.Request) {
	if h.usage == nil {
		_ = utils.WriteServiceUnavailable(w, "usage ledger is not configured")
		return
	}
	logger := observability.LoggerFromContext(r.Context(), h.logger)

	since := 24 * time.Hour
	if raw := r.URL.Query().Get("since"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			HandleServiceError(w, services.NewDomainError(services.ErrorTypeValidation, "since must be a positive duration such as 1h", err), logger)
			return
		}
		since = d
	}

	summary, err := h.usage.Summary(r.Context(), since)
	if err != nil {
		HandleServiceError(w, err, logger)
		return
	}

	if err := utils.WriteOK(w, summary); err != nil {
		logger.Error("failed to write usage summary response", zap.Error(err))
	}
}

func (h *GatewayHandler) writeRateLimitHeaders(w http.ResponseWriter) {
	info := h.gateway.RateLimitInfo()
	remaining := info.Remaining
	if remaining < 0 {
		remaining = 0
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errors.New("request body too large")
		}
		return errors.New("invalid JSON request body")
	}
	return nil
}

func queryInt(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
