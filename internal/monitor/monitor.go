// Package monitor runs batch health sweeps across the configured
// endpoints and persists the results for the operator dashboard.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/kortekstream/kortekstream/internal/endpoint"
	"github.com/kortekstream/kortekstream/internal/health"
)

// DefaultPaths are the well-known paths probed when none are given:
// the liveness path plus the resource roots pages depend on.
var DefaultPaths = []string{
	health.DefaultPath,
	"/home",
	"/anime-terbaru",
	"/search",
}

// Config holds configuration for the status monitor.
type Config struct {
	Registry *endpoint.Registry
	Checker  *health.Checker
	Records  health.Repository
	Logger   zerolog.Logger

	// Concurrency bounds how many probes run at once. Default: 4.
	Concurrency int
}

// Monitor exercises the health checker across all active endpoints.
// Scheduling is external: cmd/monitor drives it from a ticker or a
// Pub/Sub trigger, and the admin API exposes a manual trigger.
type Monitor struct {
	registry    *endpoint.Registry
	checker     *health.Checker
	records     health.Repository
	logger      zerolog.Logger
	concurrency int
}

// New creates a new status monitor.
func New(cfg Config) *Monitor {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	return &Monitor{
		registry:    cfg.Registry,
		checker:     cfg.Checker,
		records:     cfg.Records,
		logger:      cfg.Logger,
		concurrency: concurrency,
	}
}

// EndpointSummary aggregates one endpoint's probe outcomes in a sweep.
type EndpointSummary struct {
	Endpoint *endpoint.Endpoint `json:"endpoint"`
	Up       int                `json:"up"`
	Down     int                `json:"down"`
	Errors   int                `json:"errors"`
}

// Summary is the result of one full sweep.
type Summary struct {
	StartedAt  time.Time          `json:"started_at"`
	Duration   time.Duration      `json:"duration"`
	Paths      []string           `json:"paths"`
	Endpoints  []*EndpointSummary `json:"endpoints"`
	TotalUp    int                `json:"total_up"`
	TotalDown  int                `json:"total_down"`
	TotalError int                `json:"total_error"`
}

// RunOnce probes every active endpoint on every path and persists one
// health record per probe. Probes run with bounded concurrency; the sweep
// itself always completes, record-write failures are logged and counted
// against nothing.
func (m *Monitor) RunOnce(ctx context.Context, paths []string) (*Summary, error) {
	if len(paths) == 0 {
		paths = DefaultPaths
	}

	endpoints, err := m.registry.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing active endpoints: %w", err)
	}

	start := time.Now()
	summary := &Summary{
		StartedAt: start,
		Paths:     paths,
		Endpoints: make([]*EndpointSummary, len(endpoints)),
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)

	for i, ep := range endpoints {
		epSummary := &EndpointSummary{Endpoint: ep}
		summary.Endpoints[i] = epSummary

		for _, path := range paths {
			g.Go(func() error {
				res := m.checker.Check(ctx, ep, path)

				rec := health.NewRecord(ep.ID, path, res)
				if err := m.records.Insert(ctx, rec); err != nil {
					m.logger.Error().
						Str("endpoint", ep.Name).
						Str("path", path).
						Err(err).
						Msg("failed to persist health record")
				}

				mu.Lock()
				switch res.Status {
				case health.StatusUp:
					epSummary.Up++
					summary.TotalUp++
				case health.StatusDown:
					epSummary.Down++
					summary.TotalDown++
				default:
					epSummary.Errors++
					summary.TotalError++
				}
				mu.Unlock()
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary.Duration = time.Since(start)

	m.logger.Info().
		Int("endpoints", len(endpoints)).
		Int("paths", len(paths)).
		Int("up", summary.TotalUp).
		Int("down", summary.TotalDown).
		Int("errors", summary.TotalError).
		Dur("duration", summary.Duration).
		Msg("health sweep completed")

	return summary, nil
}
