// Package main provides the entrypoint for the KortekStream status monitor.
// It sweeps every active endpoint on a schedule and persists the results;
// a Pub/Sub subscription can additionally trigger on-demand sweeps.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/kortekstream/kortekstream/internal/database"
	"github.com/kortekstream/kortekstream/internal/endpoint"
	"github.com/kortekstream/kortekstream/internal/health"
	"github.com/kortekstream/kortekstream/internal/monitor"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const (
	defaultSweepInterval = 5 * time.Minute
	defaultRetention     = 7 * 24 * time.Hour
)

func main() {
	const serviceName = "kortekstream-monitor"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting KortekStream status monitor")

	// Worker also exposes a health endpoint for Cloud Run
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	sweepInterval := defaultSweepInterval
	if raw := os.Getenv("SWEEP_INTERVAL"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			log.Fatal().Str("value", raw).Msg("invalid SWEEP_INTERVAL")
		}
		sweepInterval = parsed
	}

	retention := defaultRetention
	if raw := os.Getenv("HEALTH_RETENTION"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			log.Fatal().Str("value", raw).Msg("invalid HEALTH_RETENTION")
		}
		retention = parsed
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Str("database", dbConfig.Database).
		Msg("database connected")

	registry := endpoint.NewRegistry(endpoint.RegistryConfig{
		Repository: endpoint.NewPostgresRepository(pool),
		Logger:     log,
	})

	records := health.NewPostgresRepository(pool)

	mon := monitor.New(monitor.Config{
		Registry: registry,
		Checker:  health.NewChecker(health.CheckerConfig{Logger: log}),
		Records:  records,
		Logger:   log,
	})

	// Health check server for the platform probe
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","version":"%s"}`, Version)
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health check server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	// Ticker-driven sweep loop
	go func() {
		log.Info().Dur("interval", sweepInterval).Msg("sweep loop started")
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()

		runSweep(ctx, mon, log)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runSweep(ctx, mon, log)
				pruneRecords(ctx, records, retention, log)
			}
		}
	}()

	// Optional Pub/Sub trigger for on-demand sweeps
	projectID := os.Getenv("PUBSUB_PROJECT_ID")
	subscription := os.Getenv("PUBSUB_SUBSCRIPTION")
	if projectID != "" && subscription != "" {
		handler, err := monitor.NewPubSubHandler(ctx, monitor.PubSubConfig{
			ProjectID:        projectID,
			SubscriptionName: subscription,
			Monitor:          mon,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer handler.Close()

		go func() {
			if err := handler.Start(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	} else {
		log.Info().Msg("pubsub trigger disabled, running on schedule only")
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down monitor")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("monitor stopped")
}

func runSweep(ctx context.Context, mon *monitor.Monitor, log zerolog.Logger) {
	sweepCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	if _, err := mon.RunOnce(sweepCtx, nil); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("scheduled sweep failed")
	}
}

func pruneRecords(ctx context.Context, records health.Repository, retention time.Duration, log zerolog.Logger) {
	pruneCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	pruned, err := records.Prune(pruneCtx, time.Now().Add(-retention))
	if err != nil {
		if ctx.Err() == nil {
			log.Error().Err(err).Msg("pruning health records failed")
		}
		return
	}
	if pruned > 0 {
		log.Info().Int64("records", pruned).Msg("pruned old health records")
	}
}
