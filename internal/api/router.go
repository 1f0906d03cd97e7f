// Package api provides the HTTP API for KortekStream.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/kortekstream/kortekstream/internal/api/handler"
	"github.com/kortekstream/kortekstream/internal/api/middleware"
	"github.com/kortekstream/kortekstream/internal/auth"
	"github.com/kortekstream/kortekstream/internal/endpoint"
	"github.com/kortekstream/kortekstream/internal/fallback"
	"github.com/kortekstream/kortekstream/internal/health"
	"github.com/kortekstream/kortekstream/internal/monitor"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	Pool        *pgxpool.Pool

	AuthService    *auth.Service
	Registry       *endpoint.Registry
	HealthChecker  *health.Checker
	HealthRecords  health.Repository
	FallbackClient *fallback.Client
	Monitor        *monitor.Monitor
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Set default service name if not provided
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "kortekstream-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS)           // TLS enforcement (enabled via REQUIRE_TLS=true)
	r.Use(middleware.ContentTypeJSON)      // JSON content type

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Pool, cfg.Registry, cfg.HealthRecords)
	catalogHandler := handler.NewCatalogHandler(cfg.FallbackClient, cfg.Registry)
	endpointsHandler := handler.NewEndpointsHandler(cfg.Registry, cfg.HealthChecker, cfg.Monitor, cfg.Logger)

	// Create auth middleware
	authMiddleware := middleware.Auth(cfg.AuthService)

	// Create rate limit middleware for different endpoint categories
	catalogRateLimit := middleware.RateLimitByIP(middleware.CatalogRateLimit)   // 60 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit) // 100 req/min

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(standardRateLimit).Get("/status", opsHandler.SystemStatus)
		})

		// Catalog endpoints (public) - every route fans out to upstream
		// sources, so the limit is tighter than the standard one
		r.Route("/catalog", func(r chi.Router) {
			r.Use(catalogRateLimit)
			r.Get("/home", catalogHandler.Home)
			r.Get("/anime-terbaru", catalogHandler.AnimeTerbaru)
			r.Get("/movie", catalogHandler.MovieList)
			r.Get("/jadwal-rilis", catalogHandler.JadwalRilis)
			r.Get("/jadwal-rilis/{day}", catalogHandler.JadwalRilis)
			r.Get("/anime/{animeSlug}", catalogHandler.AnimeDetail)
			r.Get("/episode", catalogHandler.EpisodeDetail)
			r.Get("/search", catalogHandler.Search)
			r.Get("/source", catalogHandler.Source)
		})

		// Admin endpoints (authenticated) - registry management and sweeps
		r.Route("/admin", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RateLimitByOperator(middleware.AdminRateLimit)) // 30 req/min per operator

			r.Get("/probes", opsHandler.RecentProbes)

			r.Route("/endpoints", func(r chi.Router) {
				r.Get("/", endpointsHandler.List)
				r.Post("/", endpointsHandler.Create)
				r.Post("/sweep", endpointsHandler.Sweep)
				r.Route("/{endpointId}", func(r chi.Router) {
					r.Get("/", endpointsHandler.Get)
					r.Patch("/", endpointsHandler.Update)
					r.Delete("/", endpointsHandler.Delete)
					r.Post("/deactivate", endpointsHandler.Deactivate)
					r.Post("/test", endpointsHandler.Test)
				})
			})
		})
	})

	return r
}
