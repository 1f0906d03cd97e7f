// Package main provides the entrypoint for the KortekStream API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/kortekstream/kortekstream/internal/api"
	"github.com/kortekstream/kortekstream/internal/api/middleware"
	"github.com/kortekstream/kortekstream/internal/auth"
	"github.com/kortekstream/kortekstream/internal/database"
	"github.com/kortekstream/kortekstream/internal/endpoint"
	"github.com/kortekstream/kortekstream/internal/fallback"
	"github.com/kortekstream/kortekstream/internal/health"
	"github.com/kortekstream/kortekstream/internal/monitor"
	"github.com/kortekstream/kortekstream/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "kortekstream-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting KortekStream API")

	// Get configuration from environment
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	telemetryEnabled := os.Getenv("OTEL_ENABLED") == "true"

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        telemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryEnabled {
		log.Info().
			Str("otlp_endpoint", otlpEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	upstreamMetrics, err := middleware.NewUpstreamMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize upstream metrics")
		os.Exit(1)
	}

	// Connect to database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Database).
		Msg("database connected")

	// Initialize token service (get signing key from environment)
	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		jwtSigningKey = "local-dev-signing-key-change-in-production"
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}

	authService := auth.NewService(auth.Config{
		SigningKey: jwtSigningKey,
	})
	log.Info().Msg("auth service initialized")

	// Initialize endpoint registry
	registry := endpoint.NewRegistry(endpoint.RegistryConfig{
		Repository: endpoint.NewPostgresRepository(pool),
		Logger:     log,
		CacheTTL:   cacheTTLFromEnv(log),
	})
	log.Info().Msg("endpoint registry initialized")

	// Initialize health checker and records
	healthRecords := health.NewPostgresRepository(pool)
	checker := health.NewChecker(health.CheckerConfig{Logger: log})

	// Initialize the fallback client over the registry
	fallbackClient := fallback.NewClient(fallback.ClientConfig{
		Registry: registry,
		Logger:   log,
		Observer: upstreamMetrics,
	})
	log.Info().Msg("fallback client initialized")

	// Monitor backs the manual sweep trigger on the admin surface; the
	// periodic schedule runs in cmd/monitor.
	mon := monitor.New(monitor.Config{
		Registry: registry,
		Checker:  checker,
		Records:  healthRecords,
		Logger:   log,
	})

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:        Version,
		BuildTime:      BuildTime,
		Logger:         log,
		ServiceName:    serviceName,
		Metrics:        metrics,
		Pool:           pool,
		AuthService:    authService,
		Registry:       registry,
		HealthChecker:  checker,
		HealthRecords:  healthRecords,
		FallbackClient: fallbackClient,
		Monitor:        mon,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}

// cacheTTLFromEnv reads ENDPOINT_CACHE_TTL, falling back to the registry
// default on absence or garbage.
func cacheTTLFromEnv(log zerolog.Logger) time.Duration {
	raw := os.Getenv("ENDPOINT_CACHE_TTL")
	if raw == "" {
		return 0
	}
	ttl, err := time.ParseDuration(raw)
	if err != nil {
		log.Warn().Str("value", raw).Msg("invalid ENDPOINT_CACHE_TTL, using default")
		return 0
	}
	return ttl
}
