package endpoint_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kortekstream/kortekstream/internal/endpoint"
)

// countingRepository wraps a repository and counts ListActive calls so
// tests can observe cache behavior.
type countingRepository struct {
	endpoint.Repository

	mu              sync.Mutex
	listActiveCalls int
}

func (r *countingRepository) ListActive(ctx context.Context) ([]*endpoint.Endpoint, error) {
	r.mu.Lock()
	r.listActiveCalls++
	r.mu.Unlock()
	return r.Repository.ListActive(ctx)
}

func (r *countingRepository) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listActiveCalls
}

func newTestRegistry(cacheTTL time.Duration) (*endpoint.Registry, *countingRepository) {
	repo := &countingRepository{Repository: endpoint.NewInMemoryRepository()}
	registry := endpoint.NewRegistry(endpoint.RegistryConfig{
		Repository: repo,
		Logger:     zerolog.Nop(),
		CacheTTL:   cacheTTL,
	})
	return registry, repo
}

func addEndpoint(t *testing.T, registry *endpoint.Registry, name string, priority int, active bool) *endpoint.Endpoint {
	t.Helper()
	ep, err := registry.Add(context.Background(), endpoint.AddParams{
		Name:     name,
		BaseURL:  "https://" + name + ".example.com",
		Priority: priority,
		Active:   active,
	})
	require.NoError(t, err)
	return ep
}

func TestRegistry_ListActive_Ordering(t *testing.T) {
	registry, _ := newTestRegistry(time.Minute)
	ctx := context.Background()

	addEndpoint(t, registry, "low", 1, true)
	addEndpoint(t, registry, "high", 10, true)
	addEndpoint(t, registry, "mid", 5, true)

	endpoints, err := registry.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, endpoints, 3)

	assert.Equal(t, "high", endpoints[0].Name)
	assert.Equal(t, "mid", endpoints[1].Name)
	assert.Equal(t, "low", endpoints[2].Name)
}

func TestRegistry_ListActive_PriorityTieBrokenByID(t *testing.T) {
	registry, _ := newTestRegistry(time.Minute)
	ctx := context.Background()

	a := addEndpoint(t, registry, "a", 5, true)
	b := addEndpoint(t, registry, "b", 5, true)

	endpoints, err := registry.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, endpoints, 2)

	// Same priority: lexicographically smaller ID comes first, so the
	// order is deterministic across calls.
	wantFirst := a.ID
	if b.ID.String() < a.ID.String() {
		wantFirst = b.ID
	}
	assert.Equal(t, wantFirst, endpoints[0].ID)
}

func TestRegistry_ListActive_ExcludesInactive(t *testing.T) {
	registry, _ := newTestRegistry(time.Minute)
	ctx := context.Background()

	addEndpoint(t, registry, "active", 5, true)
	addEndpoint(t, registry, "inactive", 10, false)

	endpoints, err := registry.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, endpoints, 1)
	assert.Equal(t, "active", endpoints[0].Name)

	all, err := registry.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRegistry_ListActive_Cached(t *testing.T) {
	registry, repo := newTestRegistry(time.Minute)
	ctx := context.Background()

	addEndpoint(t, registry, "primary", 5, true)

	_, err := registry.ListActive(ctx)
	require.NoError(t, err)
	_, err = registry.ListActive(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, repo.calls(), "second read should be served from cache")
}

func TestRegistry_MutationsInvalidateCache(t *testing.T) {
	registry, repo := newTestRegistry(time.Hour)
	ctx := context.Background()

	ep := addEndpoint(t, registry, "primary", 5, true)

	_, err := registry.ListActive(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, repo.calls())

	// Update invalidates synchronously: the next read reflects the new
	// priority without waiting for the TTL.
	newPriority := 99
	_, err = registry.Update(ctx, ep.ID, endpoint.UpdateParams{Priority: &newPriority})
	require.NoError(t, err)

	endpoints, err := registry.ListActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.calls())
	assert.Equal(t, 99, endpoints[0].Priority)
}

func TestRegistry_RecordSuccess_KeepsCache(t *testing.T) {
	registry, repo := newTestRegistry(time.Hour)
	ctx := context.Background()

	ep := addEndpoint(t, registry, "primary", 5, true)

	_, err := registry.ListActive(ctx)
	require.NoError(t, err)

	require.NoError(t, registry.RecordSuccess(ctx, ep.ID))

	_, err = registry.ListActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.calls(), "success counters never change ordering, cache stays valid")

	got, err := registry.Get(ctx, ep.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.SuccessCount)
	assert.NotNil(t, got.LastUsedAt)
}

func TestRegistry_CacheExpiry(t *testing.T) {
	registry, repo := newTestRegistry(10 * time.Millisecond)
	ctx := context.Background()

	addEndpoint(t, registry, "primary", 5, true)

	_, err := registry.ListActive(ctx)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	_, err = registry.ListActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.calls(), "expired cache should trigger a repository read")
}

func TestRegistry_ListActive_ReturnsCopies(t *testing.T) {
	registry, _ := newTestRegistry(time.Hour)
	ctx := context.Background()

	addEndpoint(t, registry, "primary", 5, true)

	first, err := registry.ListActive(ctx)
	require.NoError(t, err)
	first[0].Name = "mutated"

	second, err := registry.ListActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "primary", second[0].Name)
}

func TestRegistry_Add_Validation(t *testing.T) {
	registry, _ := newTestRegistry(time.Minute)
	ctx := context.Background()

	tests := []struct {
		name   string
		params endpoint.AddParams
		field  string
	}{
		{"empty name", endpoint.AddParams{BaseURL: "https://example.com"}, "name"},
		{"empty base url", endpoint.AddParams{Name: "x"}, "base_url"},
		{"relative url", endpoint.AddParams{Name: "x", BaseURL: "example.com/api"}, "base_url"},
		{"bad scheme", endpoint.AddParams{Name: "x", BaseURL: "ftp://example.com"}, "base_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := registry.Add(ctx, tt.params)
			require.Error(t, err)

			var validationErr *endpoint.ValidationError
			require.ErrorAs(t, err, &validationErr)
			require.NotEmpty(t, validationErr.Fields)
			assert.Equal(t, tt.field, validationErr.Fields[0].Field)
		})
	}
}

func TestRegistry_Deactivate(t *testing.T) {
	registry, _ := newTestRegistry(time.Minute)
	ctx := context.Background()

	ep := addEndpoint(t, registry, "primary", 5, true)

	updated, err := registry.Deactivate(ctx, ep.ID)
	require.NoError(t, err)
	assert.False(t, updated.Active)

	endpoints, err := registry.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, endpoints)

	// Still retrievable for history
	got, err := registry.Get(ctx, ep.ID)
	require.NoError(t, err)
	assert.Equal(t, "primary", got.Name)
}

func TestRegistry_Delete(t *testing.T) {
	registry, _ := newTestRegistry(time.Minute)
	ctx := context.Background()

	ep := addEndpoint(t, registry, "primary", 5, true)

	require.NoError(t, registry.Delete(ctx, ep.ID))

	_, err := registry.Get(ctx, ep.ID)
	assert.ErrorIs(t, err, endpoint.ErrEndpointNotFound)
}

func TestRegistry_Delete_NotFound(t *testing.T) {
	registry, _ := newTestRegistry(time.Minute)

	err := registry.Delete(context.Background(), uuid.New())
	assert.ErrorIs(t, err, endpoint.ErrEndpointNotFound)
}

func TestRegistry_ActiveSourceDomain(t *testing.T) {
	registry, _ := newTestRegistry(time.Minute)
	ctx := context.Background()

	domain, err := registry.ActiveSourceDomain(ctx)
	require.NoError(t, err)
	assert.Empty(t, domain)

	_, err = registry.Add(ctx, endpoint.AddParams{
		Name:         "backup",
		BaseURL:      "https://backup.example.com",
		SourceDomain: "backup.example.com",
		Priority:     1,
		Active:       true,
	})
	require.NoError(t, err)

	_, err = registry.Add(ctx, endpoint.AddParams{
		Name:         "primary",
		BaseURL:      "https://primary.example.com",
		SourceDomain: "primary.example.com",
		Priority:     10,
		Active:       true,
	})
	require.NoError(t, err)

	domain, err = registry.ActiveSourceDomain(ctx)
	require.NoError(t, err)
	assert.Equal(t, "primary.example.com", domain)
}
