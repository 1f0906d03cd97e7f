package health

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for health record storage.
// Records are append-only; Prune is the only destructive operation and
// is driven by operator retention policy.
type Repository interface {
	// Insert stores a new health record.
	Insert(ctx context.Context, rec *Record) error

	// LatestByEndpoint returns the most recent record per path for the
	// given endpoint.
	LatestByEndpoint(ctx context.Context, endpointID uuid.UUID) ([]*Record, error)

	// ListRecent returns records checked after the given time, newest first.
	ListRecent(ctx context.Context, since time.Time, limit int) ([]*Record, error)

	// Prune removes records older than the given time and returns how
	// many were removed.
	Prune(ctx context.Context, olderThan time.Time) (int64, error)
}
