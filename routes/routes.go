package routes

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/tradelens/ai-gateway/app"
	"github.com/tradelens/ai-gateway/handlers"
	gwmiddleware "github.com/tradelens/ai-gateway/middleware"
)

// requestTimeout bounds a whole HTTP request; batches may run several provider calls
const requestTimeout = 120 * time.Second

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(gwmiddleware.RequestID)
	r.Use(gwmiddleware.RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", gwmiddleware.RequestIDHeader},
		ExposedHeaders:   []string{gwmiddleware.RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	var db *sql.DB
	if deps.DB != nil {
		db = deps.DB.DB
	}
	health := handlers.NewHealthHandler(db, deps.Gateway, deps.Logger)

	// Health check endpoints
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	// the ledger is optional; a typed nil must not reach the handler
	var usage handlers.UsageReader
	if deps.Ledger != nil {
		usage = deps.Ledger
	}
	var metrics handlers.MetricsReader
	if deps.Metrics != nil {
		metrics = deps.Metrics
	}
	ai := handlers.NewGatewayHandler(deps.Gateway, usage, metrics, deps.Logger)

	// API v1 routes
	r.Route("/api/v1/ai", func(r chi.Router) {
		r.Post("/generate", ai.HandleGenerate)
		r.Post("/generate/batch", ai.HandleGenerateBatch)

		r.Get("/health", ai.HandleHealth)
		r.Post("/health/reset", ai.HandleResetHealth)
		r.Get("/rate-limit", ai.HandleRateLimit)
		r.Get("/circuit-breaker", ai.HandleCircuitBreaker)
		r.Get("/status", ai.HandleStatus)
		r.Get("/metrics", ai.HandleMetrics)

		r.Route("/usage", func(r chi.Router) {
			r.Get("/", ai.HandleListUsage)
			r.Get("/summary", ai.HandleUsageSummary)
			r.Get("/{requestID}", ai.HandleGetUsage)
		})
	})

	r.NotFound(handlers.NotFound)
	r.MethodNotAllowed(handlers.MethodNotAllowed)

	return r
}
