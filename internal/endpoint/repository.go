package endpoint

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrEndpointNotFound is returned when an endpoint id is unknown.
var ErrEndpointNotFound = errors.New("endpoint not found")

// Repository defines the interface for endpoint storage.
type Repository interface {
	// Insert stores a new endpoint.
	Insert(ctx context.Context, ep *Endpoint) error

	// Update replaces a stored endpoint's mutable fields.
	// Returns ErrEndpointNotFound if the id is unknown.
	Update(ctx context.Context, ep *Endpoint) error

	// Get retrieves a single endpoint by id.
	Get(ctx context.Context, id uuid.UUID) (*Endpoint, error)

	// ListActive returns active endpoints ordered by priority descending,
	// id ascending.
	ListActive(ctx context.Context) ([]*Endpoint, error)

	// ListAll returns every endpoint in the same order, active or not.
	ListAll(ctx context.Context) ([]*Endpoint, error)

	// Delete removes an endpoint permanently.
	Delete(ctx context.Context, id uuid.UUID) error

	// RecordSuccess increments the success counter and stamps last_used_at.
	RecordSuccess(ctx context.Context, id uuid.UUID, at time.Time) error
}
