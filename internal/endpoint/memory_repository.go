package endpoint

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepository is an in-memory implementation of Repository for testing.
type InMemoryRepository struct {
	mu        sync.RWMutex
	endpoints map[uuid.UUID]*Endpoint
}

// NewInMemoryRepository creates a new in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		endpoints: make(map[uuid.UUID]*Endpoint),
	}
}

// Insert stores a new endpoint.
func (r *InMemoryRepository) Insert(_ context.Context, ep *Endpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *ep
	r.endpoints[ep.ID] = &clone
	return nil
}

// Update replaces a stored endpoint's mutable fields.
func (r *InMemoryRepository) Update(_ context.Context, ep *Endpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.endpoints[ep.ID]
	if !ok {
		return ErrEndpointNotFound
	}

	stored.Name = ep.Name
	stored.BaseURL = ep.BaseURL
	stored.SourceDomain = ep.SourceDomain
	stored.Priority = ep.Priority
	stored.Active = ep.Active
	stored.UpdatedAt = ep.UpdatedAt
	return nil
}

// Get retrieves a single endpoint by id.
func (r *InMemoryRepository) Get(_ context.Context, id uuid.UUID) (*Endpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ep, ok := r.endpoints[id]
	if !ok {
		return nil, ErrEndpointNotFound
	}
	clone := *ep
	return &clone, nil
}

// ListActive returns active endpoints in fallback order.
func (r *InMemoryRepository) ListActive(_ context.Context) ([]*Endpoint, error) {
	return r.listWhere(func(ep *Endpoint) bool { return ep.Active }), nil
}

// ListAll returns every endpoint in fallback order.
func (r *InMemoryRepository) ListAll(_ context.Context) ([]*Endpoint, error) {
	return r.listWhere(func(*Endpoint) bool { return true }), nil
}

func (r *InMemoryRepository) listWhere(keep func(*Endpoint) bool) []*Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*Endpoint
	for _, ep := range r.endpoints {
		if keep(ep) {
			clone := *ep
			result = append(result, &clone)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Less(result[j])
	})
	return result
}

// Delete removes an endpoint permanently.
func (r *InMemoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.endpoints[id]; !ok {
		return ErrEndpointNotFound
	}
	delete(r.endpoints, id)
	return nil
}

// RecordSuccess increments the success counter and stamps last_used_at.
func (r *InMemoryRepository) RecordSuccess(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ep, ok := r.endpoints[id]
	if !ok {
		return ErrEndpointNotFound
	}
	ep.SuccessCount++
	ep.LastUsedAt = &at
	return nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
