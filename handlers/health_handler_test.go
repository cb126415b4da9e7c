package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tradelens/ai-gateway/services/cache"
)

func readinessChecks(t *testing.T, w *httptest.ResponseRecorder) (string, map[string]string) {
	t.Helper()

	var resp HealthResponse
	decodeData(t, w, &resp)
	return resp.Status, resp.Checks
}

func TestHandleHealth_Liveness(t *testing.T) {
	handler := NewHealthHandler(nil, nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	handler.HandleHealth(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))

	data := response["data"].(map[string]interface{})
	assert.Equal(t, "healthy", data["status"])
	assert.NotEmpty(t, data["timestamp"])
}

func TestHandleReadiness(t *testing.T) {
	logger := zap.NewNop()

	t.Run("healthy when database and cache are available", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectPing()
		mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

		gw, _ := newTestGateway(t, nil)
		handler := NewHealthHandler(db, gw, logger)

		w := httptest.NewRecorder()
		handler.HandleReadiness(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		status, checks := readinessChecks(t, w)
		assert.Equal(t, "healthy", status)
		assert.Equal(t, map[string]string{
			"database": "healthy",
			"cache":    "healthy",
			"gateway":  "healthy",
		}, checks)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unhealthy when database ping fails", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectPing().WillReturnError(errors.New("connection refused"))

		gw, _ := newTestGateway(t, nil)
		handler := NewHealthHandler(db, gw, logger)

		w := httptest.NewRecorder()
		handler.HandleReadiness(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		status, checks := readinessChecks(t, w)
		assert.Equal(t, "unhealthy", status)
		assert.Equal(t, "unhealthy", checks["database"])

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unhealthy when query fails", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectPing()
		mock.ExpectQuery("SELECT 1").WillReturnError(errors.New("query failed"))

		handler := NewHealthHandler(db, nil, logger)

		w := httptest.NewRecorder()
		handler.HandleReadiness(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database disabled", func(t *testing.T) {
		gw, _ := newTestGateway(t, nil)
		handler := NewHealthHandler(nil, gw, logger)

		w := httptest.NewRecorder()
		handler.HandleReadiness(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		_, checks := readinessChecks(t, w)
		assert.Equal(t, "disabled", checks["database"])
	})

	t.Run("unhealthy when cache store is unreachable", func(t *testing.T) {
		gw, _ := newTestGateway(t, failingPingStore{cache.NewMemoryStore(10)})
		handler := NewHealthHandler(nil, gw, logger)

		w := httptest.NewRecorder()
		handler.HandleReadiness(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		_, checks := readinessChecks(t, w)
		assert.Equal(t, "unhealthy", checks["cache"])
	})

	t.Run("degraded gateway stays ready", func(t *testing.T) {
		gw, _ := newTestGateway(t, nil)
		handler := NewHealthHandler(nil, gw, logger)
		gwHandler := NewGatewayHandler(gw, nil, nil, logger)
		doRequest(t, gwHandler.HandleGenerate, http.MethodPost, "/api/v1/ai/generate", map[string]interface{}{"prompt": "fail"})

		w := httptest.NewRecorder()
		handler.HandleReadiness(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		_, checks := readinessChecks(t, w)
		assert.Equal(t, "degraded", checks["gateway"])
	})
}
