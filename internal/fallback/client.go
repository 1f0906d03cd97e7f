package fallback

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kortekstream/kortekstream/internal/endpoint"
	"github.com/kortekstream/kortekstream/internal/upstream/resilience"
)

// responseLimit bounds how much of an upstream body is read.
const responseLimit = 8 << 20

// Transport executes one HTTP request against an upstream endpoint.
// The default implementation is a breaker-protected resilience.Client;
// tests substitute a mock to assert on call counts.
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
}

// AttemptObserver receives the outcome of every network attempt, for
// metrics. A nil observer is allowed.
type AttemptObserver interface {
	ObserveAttempt(endpointName, resource string, duration time.Duration, err error)
}

// ClientConfig holds configuration for the fallback client.
type ClientConfig struct {
	// Registry supplies the ordered active endpoints.
	Registry *endpoint.Registry

	// Logger for attempt outcomes.
	Logger zerolog.Logger

	// Backoff configures the per-endpoint failure windows.
	Backoff FailureTrackerConfig

	// ConnectTimeout and RequestTimeout bound each endpoint attempt.
	// Defaults: 3s connect, 10s total.
	ConnectTimeout time.Duration
	RequestTimeout time.Duration

	// Observer receives per-attempt metrics. Optional.
	Observer AttemptObserver

	// NewTransport overrides how per-endpoint transports are built.
	// Defaults to a circuit-breaker client per endpoint. Tests use this
	// to inject mock transports.
	NewTransport func(ep *endpoint.Endpoint) Transport
}

// Source identifies which upstream served a response.
type Source struct {
	EndpointID uuid.UUID `json:"endpoint_id"`
	Name       string    `json:"name"`
	Domain     string    `json:"domain"`
}

// Response is the normalized result returned to callers.
type Response struct {
	// Payload is the logical data for the requested resource.
	Payload any `json:"data"`

	// Confidence is the upstream-supplied completeness score, 1.0 when
	// the upstream did not supply one.
	Confidence float64 `json:"confidence_score"`

	// Shape records which envelope the upstream used.
	Shape Shape `json:"-"`

	Source    Source    `json:"source"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Client iterates the active endpoints in priority order and returns the
// first successful normalized response. Failures on one endpoint are
// recorded in the backoff tracker and the iteration moves on; only when
// every endpoint fails or is skipped does the caller see an error.
//
// A low confidence score does not trigger fallback within a call: the
// score is surfaced on the Response and any confidence policy belongs to
// the caller. Fallback happens on hard failure only.
type Client struct {
	registry     *endpoint.Registry
	logger       zerolog.Logger
	tracker      *FailureTracker
	observer     AttemptObserver
	newTransport func(ep *endpoint.Endpoint) Transport

	mu         sync.Mutex
	transports map[uuid.UUID]Transport
}

// NewClient creates a new fallback client.
func NewClient(cfg ClientConfig) *Client {
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout == 0 {
		connectTimeout = 3 * time.Second
	}
	requestTimeout := cfg.RequestTimeout
	if requestTimeout == 0 {
		requestTimeout = 10 * time.Second
	}

	newTransport := cfg.NewTransport
	if newTransport == nil {
		newTransport = func(ep *endpoint.Endpoint) Transport {
			rcfg := resilience.DefaultClientConfig(ep.Name)
			rcfg.ConnectTimeout = connectTimeout
			rcfg.Timeout = requestTimeout
			return resilience.NewClient(rcfg)
		}
	}

	return &Client{
		registry:     cfg.Registry,
		logger:       cfg.Logger,
		tracker:      NewFailureTracker(cfg.Backoff),
		observer:     cfg.Observer,
		newTransport: newTransport,
		transports:   make(map[uuid.UUID]Transport),
	}
}

// Request fetches the resource from the first healthy endpoint.
// Endpoints are attempted strictly in priority order, one at a time; the
// first success wins and no further endpoints are tried. Safe to call
// concurrently and safe for callers to retry: success has no side effects
// beyond the success counter and last-used timestamp.
func (c *Client) Request(ctx context.Context, resourcePath string, params url.Values) (*Response, error) {
	endpoints, err := c.registry.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing active endpoints: %w", err)
	}

	attempts := make([]Attempt, 0, len(endpoints))
	for _, ep := range endpoints {
		if inBackoff, remaining := c.tracker.InBackoff(ep.ID); inBackoff {
			c.logger.Debug().
				Str("endpoint", ep.Name).
				Str("resource", resourcePath).
				Dur("remaining", remaining).
				Msg("endpoint in backoff window, skipping")
			attempts = append(attempts, Attempt{
				EndpointID:   ep.ID,
				EndpointName: ep.Name,
				Err:          fmt.Errorf("in backoff window for another %s", remaining.Round(time.Second)),
				Skipped:      true,
			})
			continue
		}

		resp, attemptErr := c.attempt(ctx, ep, resourcePath, params)
		if attemptErr != nil {
			attempts = append(attempts, Attempt{
				EndpointID:   ep.ID,
				EndpointName: ep.Name,
				Err:          attemptErr,
			})

			// A dead context is the caller's doing, not the endpoint's:
			// don't put it into backoff, and stop iterating since every
			// remaining endpoint would fail the same way.
			if ctx.Err() != nil {
				break
			}

			failures, until := c.tracker.RecordFailure(ep.ID)
			c.logger.Warn().
				Str("endpoint", ep.Name).
				Str("resource", resourcePath).
				Int("consecutive_failures", failures).
				Time("backoff_until", until).
				Err(attemptErr).
				Msg("endpoint attempt failed")
			continue
		}

		c.tracker.Clear(ep.ID)
		if recErr := c.registry.RecordSuccess(ctx, ep.ID); recErr != nil {
			c.logger.Warn().
				Str("endpoint", ep.Name).
				Err(recErr).
				Msg("failed to record endpoint success")
		}

		c.logger.Debug().
			Str("endpoint", ep.Name).
			Str("resource", resourcePath).
			Str("shape", resp.Shape.String()).
			Float64("confidence", resp.Confidence).
			Msg("resource fetched")
		return resp, nil
	}

	return nil, &AllEndpointsFailedError{Resource: resourcePath, Attempts: attempts}
}

// attempt issues one GET against one endpoint and normalizes the result.
func (c *Client) attempt(ctx context.Context, ep *endpoint.Endpoint, resourcePath string, params url.Values) (*Response, error) {
	reqURL := strings.TrimRight(ep.BaseURL, "/") + "/" + strings.TrimLeft(resourcePath, "/")
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "KortekStream Go Client")

	start := time.Now()
	resp, err := c.transport(ep).Do(req)
	duration := time.Since(start)
	if c.observer != nil {
		c.observer.ObserveAttempt(ep.Name, resourcePath, duration, err)
	}
	if err != nil {
		// A 5xx through the breaker carries the response alongside the
		// error; drain and close it or the connection leaks.
		if resp != nil {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, responseLimit))
			resp.Body.Close()
		}
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, responseLimit))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decoding response body: %w", err)
	}

	payload, confidence, shape := Normalize(decoded)

	return &Response{
		Payload:    payload,
		Confidence: confidence,
		Shape:      shape,
		Source: Source{
			EndpointID: ep.ID,
			Name:       ep.Name,
			Domain:     ep.SourceDomain,
		},
		FetchedAt: time.Now(),
	}, nil
}

// transport returns the per-endpoint transport, creating it on first use.
func (c *Client) transport(ep *endpoint.Endpoint) Transport {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.transports[ep.ID]
	if !ok {
		t = c.newTransport(ep)
		c.transports[ep.ID] = t
	}
	return t
}

// Tracker exposes the failure tracker, mainly for tests and diagnostics.
func (c *Client) Tracker() *FailureTracker {
	return c.tracker
}
