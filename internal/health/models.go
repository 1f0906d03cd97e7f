// Package health probes upstream API endpoints and records the outcomes.
package health

import (
	"time"

	"github.com/google/uuid"
)

// Status classifies the outcome of a single health probe.
type Status string

const (
	// StatusUp means the endpoint answered 200 with a decodable JSON body.
	StatusUp Status = "up"

	// StatusDown means the endpoint could not be reached at all
	// (connection refused, DNS failure, timeout).
	StatusDown Status = "down"

	// StatusError means the endpoint answered but with a non-200 status
	// or an unreadable body.
	StatusError Status = "error"

	// StatusUnknown means the endpoint has never been probed.
	StatusUnknown Status = "unknown"
)

// Result is the outcome of one probe. Expected failure classes are
// represented here, never as a returned Go error.
type Result struct {
	Status  Status
	Latency time.Duration

	// Error holds a human-readable description for down/error outcomes.
	Error string

	// Snapshot holds the start of the response body, when one was read.
	Snapshot []byte
}

// IsUp reports whether the probe classified the endpoint as healthy.
func (r Result) IsUp() bool {
	return r.Status == StatusUp
}

// Record is one persisted health probe outcome. Records are append-only;
// the latest record per (endpoint, path) drives the operator dashboard.
type Record struct {
	ID         uuid.UUID `json:"id"`
	EndpointID uuid.UUID `json:"endpoint_id"`
	Path       string    `json:"path"`
	Status     Status    `json:"status"`
	LatencyMS  *int64    `json:"latency_ms,omitempty"`
	Error      *string   `json:"error,omitempty"`
	Snapshot   []byte    `json:"snapshot,omitempty"`
	CheckedAt  time.Time `json:"checked_at"`
}

// NewRecord builds a Record from a probe result.
func NewRecord(endpointID uuid.UUID, path string, res Result) *Record {
	rec := &Record{
		ID:         uuid.New(),
		EndpointID: endpointID,
		Path:       path,
		Status:     res.Status,
		Snapshot:   res.Snapshot,
		CheckedAt:  time.Now(),
	}
	if res.Latency > 0 {
		ms := res.Latency.Milliseconds()
		rec.LatencyMS = &ms
	}
	if res.Error != "" {
		msg := res.Error
		rec.Error = &msg
	}
	return rec
}
