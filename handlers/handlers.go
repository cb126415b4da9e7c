// Package handlers holds the HTTP surface of the AI gateway. Handlers stay
// thin: decode, validate, call the service, map errors.
package handlers

import (
	"net/http"

	"github.com/tradelens/ai-gateway/utils"
)

// NotFound writes a JSON 404 for unknown routes
func NotFound(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteError(w, http.StatusNotFound, "endpoint not found", map[string]interface{}{
		"path": r.URL.Path,
	})
}

// MethodNotAllowed writes a JSON 405
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteError(w, http.StatusMethodNotAllowed, "method not allowed", map[string]interface{}{
		"method": r.Method,
		"path":   r.URL.Path,
	})
}
