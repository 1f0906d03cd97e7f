package fallback_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kortekstream/kortekstream/internal/endpoint"
	"github.com/kortekstream/kortekstream/internal/fallback"
	"github.com/kortekstream/kortekstream/internal/upstream/resilience"
)

// stubTransport scripts the response of one endpoint and counts calls.
type stubTransport struct {
	mu      sync.Mutex
	calls   int
	lastURL *url.URL

	status int
	body   string
	err    error
}

func (s *stubTransport) Do(req *http.Request) (*http.Response, error) {
	s.mu.Lock()
	s.calls++
	s.lastURL = req.URL
	s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	return &http.Response{
		StatusCode: s.status,
		Body:       io.NopCloser(strings.NewReader(s.body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}, nil
}

func (s *stubTransport) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// testClient wires a fallback client over an in-memory registry with one
// scripted transport per endpoint name.
func testClient(t *testing.T, transports map[string]*stubTransport) (*fallback.Client, *endpoint.Registry) {
	t.Helper()

	registry := endpoint.NewRegistry(endpoint.RegistryConfig{
		Repository: endpoint.NewInMemoryRepository(),
		Logger:     zerolog.Nop(),
	})

	client := fallback.NewClient(fallback.ClientConfig{
		Registry: registry,
		Logger:   zerolog.Nop(),
		NewTransport: func(ep *endpoint.Endpoint) fallback.Transport {
			st, ok := transports[ep.Name]
			require.True(t, ok, "no stub transport for endpoint %q", ep.Name)
			return st
		},
	})
	return client, registry
}

func seedEndpoint(t *testing.T, registry *endpoint.Registry, name string, priority int) *endpoint.Endpoint {
	t.Helper()
	ep, err := registry.Add(context.Background(), endpoint.AddParams{
		Name:         name,
		BaseURL:      "https://" + name + ".example.com",
		SourceDomain: name + ".example.com",
		Priority:     priority,
		Active:       true,
	})
	require.NoError(t, err)
	return ep
}

func TestClient_FirstEndpointWins(t *testing.T) {
	transports := map[string]*stubTransport{
		"primary": {status: 200, body: `{"confidence_score": 0.9, "data": {"items": []}}`},
		"backup":  {status: 200, body: `{"confidence_score": 0.5, "data": {}}`},
	}
	client, registry := testClient(t, transports)
	seedEndpoint(t, registry, "primary", 10)
	seedEndpoint(t, registry, "backup", 1)

	resp, err := client.Request(context.Background(), "home", nil)
	require.NoError(t, err)

	assert.Equal(t, "primary", resp.Source.Name)
	assert.Equal(t, 0.9, resp.Confidence)
	assert.Equal(t, fallback.ShapeWrapped, resp.Shape)
	assert.Equal(t, 1, transports["primary"].callCount())
	assert.Zero(t, transports["backup"].callCount(), "first success wins, backup never attempted")
}

func TestClient_FallsBackOnFailure(t *testing.T) {
	transports := map[string]*stubTransport{
		"primary": {status: 500, body: `{}`},
		"backup":  {status: 200, body: `{"confidence_score": 0.7, "data": {"items": [1]}}`},
	}
	client, registry := testClient(t, transports)
	primary := seedEndpoint(t, registry, "primary", 10)
	backup := seedEndpoint(t, registry, "backup", 1)

	resp, err := client.Request(context.Background(), "anime-terbaru", nil)
	require.NoError(t, err)

	assert.Equal(t, "backup", resp.Source.Name)
	assert.Equal(t, 1, transports["primary"].callCount())
	assert.Equal(t, 1, transports["backup"].callCount())

	// The failed endpoint entered its backoff window
	inBackoff, _ := client.Tracker().InBackoff(primary.ID)
	assert.True(t, inBackoff)

	// The serving endpoint's counters were bumped
	got, err := registry.Get(context.Background(), backup.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.SuccessCount)
}

func TestClient_BackoffSuppressesAttempts(t *testing.T) {
	transports := map[string]*stubTransport{
		"primary": {err: errors.New("connection refused")},
		"backup":  {status: 200, body: `{"items": []}`},
	}
	client, registry := testClient(t, transports)
	seedEndpoint(t, registry, "primary", 10)
	seedEndpoint(t, registry, "backup", 1)

	ctx := context.Background()

	_, err := client.Request(ctx, "home", nil)
	require.NoError(t, err)
	require.Equal(t, 1, transports["primary"].callCount())

	// Within the backoff window the primary is skipped without a call.
	_, err = client.Request(ctx, "home", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, transports["primary"].callCount(), "backoff must suppress the network call")
	assert.Equal(t, 2, transports["backup"].callCount())
}

func TestClient_SuccessClearsBackoff(t *testing.T) {
	primary := &stubTransport{err: errors.New("connection refused")}
	transports := map[string]*stubTransport{
		"primary": primary,
		"backup":  {status: 200, body: `{}`},
	}
	client, registry := testClient(t, transports)
	ep := seedEndpoint(t, registry, "primary", 10)
	seedEndpoint(t, registry, "backup", 1)

	ctx := context.Background()
	_, err := client.Request(ctx, "home", nil)
	require.NoError(t, err)
	require.Equal(t, 1, client.Tracker().Failures(ep.ID))

	// Recovery: next direct success wipes the failure history.
	primary.mu.Lock()
	primary.err = nil
	primary.status = 200
	primary.body = `{}`
	primary.mu.Unlock()
	client.Tracker().Clear(ep.ID)

	resp, err := client.Request(ctx, "home", nil)
	require.NoError(t, err)
	assert.Equal(t, "primary", resp.Source.Name)
	assert.Zero(t, client.Tracker().Failures(ep.ID))
}

func TestClient_AllEndpointsFailed(t *testing.T) {
	transports := map[string]*stubTransport{
		"primary": {status: 503, body: `{}`},
		"backup":  {err: errors.New("connection refused")},
	}
	client, registry := testClient(t, transports)
	seedEndpoint(t, registry, "primary", 10)
	seedEndpoint(t, registry, "backup", 1)

	_, err := client.Request(context.Background(), "movie", nil)
	require.Error(t, err)

	var exhausted *fallback.AllEndpointsFailedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, "movie", exhausted.Resource)
	require.Len(t, exhausted.Attempts, 2)
	assert.Equal(t, "primary", exhausted.Attempts[0].EndpointName)
	assert.Equal(t, "backup", exhausted.Attempts[1].EndpointName)
	assert.False(t, exhausted.Attempts[0].Skipped)
}

func TestClient_AllEndpointsFailed_SkippedMarked(t *testing.T) {
	transports := map[string]*stubTransport{
		"primary": {err: errors.New("connection refused")},
	}
	client, registry := testClient(t, transports)
	seedEndpoint(t, registry, "primary", 10)

	ctx := context.Background()

	_, err := client.Request(ctx, "home", nil)
	require.Error(t, err)

	// Second request: the only endpoint is inside its window, so it is
	// skipped rather than attempted.
	_, err = client.Request(ctx, "home", nil)
	var exhausted *fallback.AllEndpointsFailedError
	require.ErrorAs(t, err, &exhausted)
	require.Len(t, exhausted.Attempts, 1)
	assert.True(t, exhausted.Attempts[0].Skipped)
	assert.Equal(t, 1, transports["primary"].callCount())
}

// trackingBody flags whether its Close was ever called.
type trackingBody struct {
	io.Reader
	mu     sync.Mutex
	closed bool
}

func (b *trackingBody) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *trackingBody) wasClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// serverErrTransport surfaces a 5xx the way the breaker client does:
// the response and a ServerError together.
type serverErrTransport struct {
	body *trackingBody
}

func (s *serverErrTransport) Do(*http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: http.StatusBadGateway,
		Body:       s.body,
	}, &resilience.ServerError{StatusCode: http.StatusBadGateway}
}

func TestClient_ServerErrorBodyClosed(t *testing.T) {
	primaryBody := &trackingBody{Reader: strings.NewReader("bad gateway")}
	backup := &stubTransport{status: 200, body: `{"items": []}`}

	registry := endpoint.NewRegistry(endpoint.RegistryConfig{
		Repository: endpoint.NewInMemoryRepository(),
		Logger:     zerolog.Nop(),
	})
	client := fallback.NewClient(fallback.ClientConfig{
		Registry: registry,
		Logger:   zerolog.Nop(),
		NewTransport: func(ep *endpoint.Endpoint) fallback.Transport {
			if ep.Name == "primary" {
				return &serverErrTransport{body: primaryBody}
			}
			return backup
		},
	})
	seedEndpoint(t, registry, "primary", 10)
	seedEndpoint(t, registry, "backup", 1)

	resp, err := client.Request(context.Background(), "home", nil)
	require.NoError(t, err)

	assert.Equal(t, "backup", resp.Source.Name)
	assert.True(t, primaryBody.wasClosed(), "5xx response body must be closed before falling back")
}

// ctxErrTransport fails with the request context's error, mimicking a
// transport interrupted by cancellation.
type ctxErrTransport struct{}

func (ctxErrTransport) Do(req *http.Request) (*http.Response, error) {
	return nil, req.Context().Err()
}

func TestClient_CancellationDoesNotPenalizeEndpoint(t *testing.T) {
	registry := endpoint.NewRegistry(endpoint.RegistryConfig{
		Repository: endpoint.NewInMemoryRepository(),
		Logger:     zerolog.Nop(),
	})
	client := fallback.NewClient(fallback.ClientConfig{
		Registry: registry,
		Logger:   zerolog.Nop(),
		NewTransport: func(*endpoint.Endpoint) fallback.Transport {
			return ctxErrTransport{}
		},
	})
	ep := seedEndpoint(t, registry, "primary", 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Request(ctx, "home", nil)
	require.Error(t, err)

	assert.Zero(t, client.Tracker().Failures(ep.ID), "caller cancellation must not count against the endpoint")
	inBackoff, _ := client.Tracker().InBackoff(ep.ID)
	assert.False(t, inBackoff)
}

func TestClient_NoEndpointsConfigured(t *testing.T) {
	client, _ := testClient(t, nil)

	_, err := client.Request(context.Background(), "home", nil)

	var exhausted *fallback.AllEndpointsFailedError
	require.ErrorAs(t, err, &exhausted)
	assert.Empty(t, exhausted.Attempts)
}

func TestClient_RequestURL(t *testing.T) {
	primary := &stubTransport{status: 200, body: `{}`}
	client, registry := testClient(t, map[string]*stubTransport{"primary": primary})
	seedEndpoint(t, registry, "primary", 10)

	params := url.Values{}
	params.Set("page", "2")
	_, err := client.Request(context.Background(), "anime-terbaru", params)
	require.NoError(t, err)

	require.NotNil(t, primary.lastURL)
	assert.Equal(t, "/anime-terbaru", primary.lastURL.Path)
	assert.Equal(t, "2", primary.lastURL.Query().Get("page"))
}

func TestClient_InvalidJSONIsFailure(t *testing.T) {
	transports := map[string]*stubTransport{
		"primary": {status: 200, body: `<html>cloudflare</html>`},
		"backup":  {status: 200, body: `{"items": []}`},
	}
	client, registry := testClient(t, transports)
	seedEndpoint(t, registry, "primary", 10)
	seedEndpoint(t, registry, "backup", 1)

	resp, err := client.Request(context.Background(), "home", nil)
	require.NoError(t, err)
	assert.Equal(t, "backup", resp.Source.Name, "undecodable body falls through to the next endpoint")
}

func TestClient_ResourceHelpers(t *testing.T) {
	primary := &stubTransport{status: 200, body: `{}`}
	client, registry := testClient(t, map[string]*stubTransport{"primary": primary})
	seedEndpoint(t, registry, "primary", 10)

	ctx := context.Background()

	_, err := client.JadwalRilis(ctx, "Monday")
	require.NoError(t, err)
	assert.Equal(t, "/jadwal-rilis/monday", primary.lastURL.Path, "day segment is lowercased")

	_, err = client.Search(ctx, "one piece")
	require.NoError(t, err)
	assert.Equal(t, "/search", primary.lastURL.Path)
	assert.Equal(t, "one piece", primary.lastURL.Query().Get("query"))

	_, err = client.AnimeDetail(ctx, "naruto-shippuden")
	require.NoError(t, err)
	assert.Equal(t, "/anime-detail", primary.lastURL.Path)
	assert.Equal(t, "naruto-shippuden", primary.lastURL.Query().Get("anime_slug"))

	_, err = client.MovieList(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "1", primary.lastURL.Query().Get("page"), "pages clamp to 1")
}
