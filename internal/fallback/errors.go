package fallback

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Attempt records the outcome of one endpoint during a fallback iteration.
type Attempt struct {
	// EndpointID identifies the endpoint.
	EndpointID uuid.UUID `json:"endpoint_id"`

	// EndpointName is the endpoint's display name.
	EndpointName string `json:"endpoint_name"`

	// Err is why the attempt failed or was skipped.
	Err error `json:"-"`

	// Skipped is true when the endpoint was inside its backoff window and
	// no network call was made.
	Skipped bool `json:"skipped"`
}

// AllEndpointsFailedError is returned when every active endpoint has
// failed or was skipped. It carries the full per-endpoint attempt list so
// the presentation layer can decide how to degrade.
type AllEndpointsFailedError struct {
	// Resource is the requested resource path.
	Resource string

	// Attempts lists every endpoint considered, in priority order.
	Attempts []Attempt
}

func (e *AllEndpointsFailedError) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("no active endpoints configured for %s", e.Resource)
	}

	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		verb := "failed"
		if a.Skipped {
			verb = "skipped"
		}
		parts = append(parts, fmt.Sprintf("%s %s: %v", a.EndpointName, verb, a.Err))
	}
	return fmt.Sprintf("all endpoints failed for %s: %s", e.Resource, strings.Join(parts, "; "))
}
