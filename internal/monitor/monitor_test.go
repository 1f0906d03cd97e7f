package monitor_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kortekstream/kortekstream/internal/endpoint"
	"github.com/kortekstream/kortekstream/internal/health"
	"github.com/kortekstream/kortekstream/internal/monitor"
)

type testFixture struct {
	monitor  *monitor.Monitor
	registry *endpoint.Registry
	records  *health.InMemoryRepository
}

func newFixture() *testFixture {
	logger := zerolog.Nop()
	registry := endpoint.NewRegistry(endpoint.RegistryConfig{
		Repository: endpoint.NewInMemoryRepository(),
		Logger:     logger,
	})
	records := health.NewInMemoryRepository()

	mon := monitor.New(monitor.Config{
		Registry: registry,
		Checker:  health.NewChecker(health.CheckerConfig{Logger: logger}),
		Records:  records,
		Logger:   logger,
	})

	return &testFixture{monitor: mon, registry: registry, records: records}
}

func (f *testFixture) addEndpoint(t *testing.T, name, baseURL string, active bool) *endpoint.Endpoint {
	t.Helper()
	ep, err := f.registry.Add(context.Background(), endpoint.AddParams{
		Name:     name,
		BaseURL:  baseURL,
		Priority: 1,
		Active:   active,
	})
	require.NoError(t, err)
	return ep
}

func jsonServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": "ok"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestMonitor_RunOnce(t *testing.T) {
	f := newFixture()
	srv := jsonServer(t)
	ep := f.addEndpoint(t, "primary", srv.URL, true)

	paths := []string{"/health", "/home"}
	summary, err := f.monitor.RunOnce(context.Background(), paths)
	require.NoError(t, err)

	assert.Equal(t, paths, summary.Paths)
	assert.Equal(t, 2, summary.TotalUp)
	assert.Zero(t, summary.TotalDown)
	assert.Zero(t, summary.TotalError)
	require.Len(t, summary.Endpoints, 1)
	assert.Equal(t, 2, summary.Endpoints[0].Up)

	// One record persisted per probe
	assert.Equal(t, 2, f.records.Count())

	latest, err := f.records.LatestByEndpoint(context.Background(), ep.ID)
	require.NoError(t, err)
	assert.Len(t, latest, 2)
}

func TestMonitor_RunOnce_DefaultPaths(t *testing.T) {
	f := newFixture()
	srv := jsonServer(t)
	f.addEndpoint(t, "primary", srv.URL, true)

	summary, err := f.monitor.RunOnce(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, monitor.DefaultPaths, summary.Paths)
	assert.Equal(t, len(monitor.DefaultPaths), summary.TotalUp)
}

func TestMonitor_RunOnce_MixedOutcomes(t *testing.T) {
	f := newFixture()
	upSrv := jsonServer(t)

	errSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(errSrv.Close)

	downSrv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	downURL := downSrv.URL
	downSrv.Close()

	f.addEndpoint(t, "up", upSrv.URL, true)
	f.addEndpoint(t, "erroring", errSrv.URL, true)
	f.addEndpoint(t, "down", downURL, true)

	summary, err := f.monitor.RunOnce(context.Background(), []string{"/health"})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.TotalUp)
	assert.Equal(t, 1, summary.TotalError)
	assert.Equal(t, 1, summary.TotalDown)
	assert.Equal(t, 3, f.records.Count())
}

func TestMonitor_RunOnce_SkipsInactive(t *testing.T) {
	f := newFixture()
	srv := jsonServer(t)
	f.addEndpoint(t, "active", srv.URL, true)
	f.addEndpoint(t, "inactive", srv.URL, false)

	summary, err := f.monitor.RunOnce(context.Background(), []string{"/health"})
	require.NoError(t, err)

	require.Len(t, summary.Endpoints, 1)
	assert.Equal(t, "active", summary.Endpoints[0].Endpoint.Name)
	assert.Equal(t, 1, f.records.Count())
}

func TestMonitor_RunOnce_NoEndpoints(t *testing.T) {
	f := newFixture()

	summary, err := f.monitor.RunOnce(context.Background(), nil)
	require.NoError(t, err)

	assert.Empty(t, summary.Endpoints)
	assert.Zero(t, summary.TotalUp+summary.TotalDown+summary.TotalError)
}
