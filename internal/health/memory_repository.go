package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepository is an in-memory implementation of Repository for testing.
type InMemoryRepository struct {
	mu      sync.RWMutex
	records []*Record
}

// NewInMemoryRepository creates a new in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{}
}

// Insert stores a new health record.
func (r *InMemoryRepository) Insert(_ context.Context, rec *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *rec
	r.records = append(r.records, &clone)
	return nil
}

// LatestByEndpoint returns the most recent record per path for the endpoint.
func (r *InMemoryRepository) LatestByEndpoint(_ context.Context, endpointID uuid.UUID) ([]*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	latest := make(map[string]*Record)
	for _, rec := range r.records {
		if rec.EndpointID != endpointID {
			continue
		}
		if cur, ok := latest[rec.Path]; !ok || rec.CheckedAt.After(cur.CheckedAt) {
			latest[rec.Path] = rec
		}
	}

	result := make([]*Record, 0, len(latest))
	for _, rec := range latest {
		clone := *rec
		result = append(result, &clone)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Path < result[j].Path })
	return result, nil
}

// ListRecent returns records checked after the given time, newest first.
func (r *InMemoryRepository) ListRecent(_ context.Context, since time.Time, limit int) ([]*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*Record
	for _, rec := range r.records {
		if rec.CheckedAt.After(since) {
			clone := *rec
			result = append(result, &clone)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CheckedAt.After(result[j].CheckedAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Prune removes records older than the given time.
func (r *InMemoryRepository) Prune(_ context.Context, olderThan time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.records[:0]
	var removed int64
	for _, rec := range r.records {
		if rec.CheckedAt.Before(olderThan) {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	r.records = kept
	return removed, nil
}

// Count returns the number of stored records.
func (r *InMemoryRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
