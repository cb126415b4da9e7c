package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tradelens/ai-gateway/services/gateway"
	"github.com/tradelens/ai-gateway/utils"
)

// Check results reported by readiness
const (
	checkHealthy   = "healthy"
	checkUnhealthy = "unhealthy"
	checkDegraded  = "degraded"
	checkDisabled  = "disabled"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// GatewayChecker is what readiness needs from the gateway
type GatewayChecker interface {
	Ping(ctx context.Context) error
	HealthStatus() gateway.HealthMetrics
}

// HealthHandler handles liveness and readiness checks
type HealthHandler struct {
	db      *sql.DB
	gateway GatewayChecker
	logger  *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. db may be nil when the ledger is disabled.
func NewHealthHandler(db *sql.DB, gw GatewayChecker, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		db:      db,
		gateway: gw,
		logger:  logger,
	}
}

// HandleHealth handles GET /healthz
// Basic liveness check - always returns 200 if the process is serving
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    checkHealthy,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	_ = utils.WriteOK(w, response)
}

// HandleReadiness handles GET /readyz
// The ledger database and the cache store must answer. A degraded gateway
// (error rate over threshold) is reported but does not fail readiness, since
// the fallback provider may still serve traffic.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	if h.db == nil {
		checks["database"] = checkDisabled
	} else if err := h.checkDatabase(ctx); err != nil {
		h.logger.Warn("database health check failed", zap.Error(err))
		checks["database"] = checkUnhealthy
		allHealthy = false
	} else {
		checks["database"] = checkHealthy
	}

	if h.gateway != nil {
		if err := h.gateway.Ping(ctx); err != nil {
			h.logger.Warn("cache store health check failed", zap.Error(err))
			checks["cache"] = checkUnhealthy
			allHealthy = false
		} else {
			checks["cache"] = checkHealthy
		}

		if h.gateway.HealthStatus().Healthy {
			checks["gateway"] = checkHealthy
		} else {
			checks["gateway"] = checkDegraded
		}
	}

	status := checkHealthy
	httpStatus := http.StatusOK
	if !allHealthy {
		status = checkUnhealthy
		httpStatus = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	if err := utils.WriteJSON(w, httpStatus, utils.SuccessResponse{Data: response}); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}

// checkDatabase checks database connectivity
func (h *HealthHandler) checkDatabase(ctx context.Context) error {
	if err := h.db.PingContext(ctx); err != nil {
		return err
	}

	var result int
	return h.db.QueryRowContext(ctx, "SELECT 1").Scan(&result)
}
