package endpoint

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RegistryConfig holds configuration for the endpoint registry.
type RegistryConfig struct {
	Repository Repository
	Logger     zerolog.Logger

	// CacheTTL bounds how long the active-endpoint list is served from
	// memory before being re-read from the repository. Mutations always
	// invalidate the cache synchronously regardless of TTL.
	// Default: 1 hour.
	CacheTTL time.Duration
}

// Registry provides cached, ordered access to the configured endpoints
// and the mutation operations exposed to operators.
type Registry struct {
	repo     Repository
	logger   zerolog.Logger
	cacheTTL time.Duration

	mu          sync.RWMutex
	cached      []*Endpoint
	cacheExpiry time.Time
}

// NewRegistry creates a new endpoint registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 1 * time.Hour
	}

	return &Registry{
		repo:     cfg.Repository,
		logger:   cfg.Logger,
		cacheTTL: cacheTTL,
	}
}

// AddParams holds the fields for creating an endpoint.
type AddParams struct {
	Name         string
	BaseURL      string
	SourceDomain string
	Priority     int
	Active       bool
}

// UpdateParams holds the optional fields for updating an endpoint.
// Nil fields are left unchanged.
type UpdateParams struct {
	Name         *string
	BaseURL      *string
	SourceDomain *string
	Priority     *int
	Active       *bool
}

// ListActive returns all active endpoints ordered by priority descending,
// id ascending. The result is cached; mutations invalidate synchronously
// so a read after a committed write never observes stale data.
func (r *Registry) ListActive(ctx context.Context) ([]*Endpoint, error) {
	if cached := r.getCached(); cached != nil {
		return cached, nil
	}

	endpoints, err := r.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cached = endpoints
	r.cacheExpiry = time.Now().Add(r.cacheTTL)
	r.mu.Unlock()

	return copyEndpoints(endpoints), nil
}

// ListAll returns every endpoint, active or not, bypassing the cache.
// Intended for the operator management surface.
func (r *Registry) ListAll(ctx context.Context) ([]*Endpoint, error) {
	return r.repo.ListAll(ctx)
}

// Get retrieves a single endpoint by id.
func (r *Registry) Get(ctx context.Context, id uuid.UUID) (*Endpoint, error) {
	return r.repo.Get(ctx, id)
}

// Add validates and stores a new endpoint.
func (r *Registry) Add(ctx context.Context, params AddParams) (*Endpoint, error) {
	now := time.Now()
	ep := &Endpoint{
		ID:           uuid.New(),
		Name:         params.Name,
		BaseURL:      params.BaseURL,
		SourceDomain: params.SourceDomain,
		Priority:     params.Priority,
		Active:       params.Active,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := ep.Validate(); err != nil {
		return nil, err
	}

	if err := r.repo.Insert(ctx, ep); err != nil {
		return nil, err
	}
	r.InvalidateCache()

	r.logger.Info().
		Str("endpoint_id", ep.ID.String()).
		Str("name", ep.Name).
		Int("priority", ep.Priority).
		Bool("active", ep.Active).
		Msg("endpoint added")

	return ep, nil
}

// Update applies the non-nil fields of params to the endpoint.
func (r *Registry) Update(ctx context.Context, id uuid.UUID, params UpdateParams) (*Endpoint, error) {
	ep, err := r.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if params.Name != nil {
		ep.Name = *params.Name
	}
	if params.BaseURL != nil {
		ep.BaseURL = *params.BaseURL
	}
	if params.SourceDomain != nil {
		ep.SourceDomain = *params.SourceDomain
	}
	if params.Priority != nil {
		ep.Priority = *params.Priority
	}
	if params.Active != nil {
		ep.Active = *params.Active
	}
	ep.UpdatedAt = time.Now()

	if err := ep.Validate(); err != nil {
		return nil, err
	}

	if err := r.repo.Update(ctx, ep); err != nil {
		return nil, err
	}
	r.InvalidateCache()

	r.logger.Info().
		Str("endpoint_id", ep.ID.String()).
		Str("name", ep.Name).
		Msg("endpoint updated")

	return ep, nil
}

// Deactivate soft-removes an endpoint from fallback rotation.
// Preferred over Delete for unreliable endpoints so history is retained.
func (r *Registry) Deactivate(ctx context.Context, id uuid.UUID) (*Endpoint, error) {
	inactive := false
	return r.Update(ctx, id, UpdateParams{Active: &inactive})
}

// Delete removes an endpoint permanently.
func (r *Registry) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}
	r.InvalidateCache()

	r.logger.Info().
		Str("endpoint_id", id.String()).
		Msg("endpoint deleted")
	return nil
}

// RecordSuccess bumps the success counter and last-used timestamp.
// The cache stays valid: counters never change ordering or activity.
func (r *Registry) RecordSuccess(ctx context.Context, id uuid.UUID) error {
	return r.repo.RecordSuccess(ctx, id, time.Now())
}

// ActiveSourceDomain returns the source domain of the highest-priority
// active endpoint, or "" when none is configured.
func (r *Registry) ActiveSourceDomain(ctx context.Context) (string, error) {
	endpoints, err := r.ListActive(ctx)
	if err != nil {
		return "", err
	}
	for _, ep := range endpoints {
		if ep.SourceDomain != "" {
			return ep.SourceDomain, nil
		}
	}
	return "", nil
}

// InvalidateCache clears the cached active list, forcing a repository
// read on the next ListActive call.
func (r *Registry) InvalidateCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cached = nil
	r.cacheExpiry = time.Time{}
}

func (r *Registry) getCached() []*Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.cached == nil || time.Now().After(r.cacheExpiry) {
		return nil
	}
	return copyEndpoints(r.cached)
}

// copyEndpoints returns a shallow per-element copy so callers cannot
// mutate the cached entries.
func copyEndpoints(endpoints []*Endpoint) []*Endpoint {
	result := make([]*Endpoint, len(endpoints))
	for i, ep := range endpoints {
		clone := *ep
		result[i] = &clone
	}
	return result
}
