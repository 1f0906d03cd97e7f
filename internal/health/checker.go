package health

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kortekstream/kortekstream/internal/endpoint"
)

const (
	// DefaultPath is the liveness path probed when none is given.
	DefaultPath = "/health"

	// snapshotLimit bounds how much of a response body is retained.
	snapshotLimit = 4 << 10
)

// CheckerConfig holds configuration for the health checker.
type CheckerConfig struct {
	// ConnectTimeout bounds TCP connection establishment.
	// Default: 3 seconds.
	ConnectTimeout time.Duration

	// ReadTimeout bounds the whole request including body read.
	// Default: 10 seconds.
	ReadTimeout time.Duration

	// Logger for probe outcomes.
	Logger zerolog.Logger
}

// Checker issues bounded-time health probes against endpoints.
type Checker struct {
	client *http.Client
	logger zerolog.Logger
}

// NewChecker creates a new health checker.
func NewChecker(cfg CheckerConfig) *Checker {
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout == 0 {
		connectTimeout = 3 * time.Second
	}
	readTimeout := cfg.ReadTimeout
	if readTimeout == 0 {
		readTimeout = 10 * time.Second
	}

	dialer := &net.Dialer{Timeout: connectTimeout}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: connectTimeout,
	}

	return &Checker{
		client: &http.Client{
			Transport: transport,
			Timeout:   readTimeout,
		},
		logger: cfg.Logger,
	}
}

// Check probes one path on the endpoint and classifies the outcome.
// All expected failure classes are reported through the Result; a Go
// error is never returned for them. Persistence is the caller's concern:
// the periodic monitor writes records, inline checks do not.
func (c *Checker) Check(ctx context.Context, ep *endpoint.Endpoint, path string) Result {
	if path == "" {
		path = DefaultPath
	}
	url := strings.TrimRight(ep.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return Result{Status: StatusError, Error: fmt.Sprintf("building request: %v", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "KortekStream Go Client")

	start := time.Now()
	resp, err := c.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		c.logger.Debug().
			Str("endpoint", ep.Name).
			Str("url", url).
			Err(err).
			Msg("health probe unreachable")
		return Result{Status: StatusDown, Latency: latency, Error: err.Error()}
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, snapshotLimit))

	if resp.StatusCode != http.StatusOK {
		return Result{
			Status:   StatusError,
			Latency:  latency,
			Error:    fmt.Sprintf("unexpected status code: %d", resp.StatusCode),
			Snapshot: body,
		}
	}

	if readErr != nil {
		return Result{
			Status:  StatusError,
			Latency: latency,
			Error:   fmt.Sprintf("reading body: %v", readErr),
		}
	}

	if !json.Valid(body) {
		return Result{
			Status:   StatusError,
			Latency:  latency,
			Error:    "response body is not valid JSON",
			Snapshot: body,
		}
	}

	c.logger.Debug().
		Str("endpoint", ep.Name).
		Str("url", url).
		Dur("latency", latency).
		Msg("health probe up")

	return Result{Status: StatusUp, Latency: latency, Snapshot: body}
}
