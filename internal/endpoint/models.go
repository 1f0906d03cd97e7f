// Package endpoint manages the registry of upstream scraping API endpoints.
package endpoint

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Endpoint represents one configured upstream API.
type Endpoint struct {
	// ID uniquely identifies the endpoint.
	ID uuid.UUID `json:"id"`

	// Name is the operator-facing display name.
	Name string `json:"name"`

	// BaseURL is the absolute HTTP(S) base URL of the upstream API.
	BaseURL string `json:"base_url"`

	// SourceDomain is the human-facing website domain the endpoint's data
	// originates from, used for building display links.
	SourceDomain string `json:"source_domain"`

	// Priority orders fallback attempts; higher is tried first.
	// Ties are broken by ID ascending so ordering stays deterministic.
	Priority int `json:"priority"`

	// Active endpoints participate in fallback; inactive ones are retained
	// for history but never attempted.
	Active bool `json:"active"`

	// SuccessCount counts successful data requests served by this endpoint.
	SuccessCount int64 `json:"success_count"`

	// LastUsedAt is when the endpoint last served a successful request.
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FieldError describes a validation failure on a single field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned for malformed endpoint configuration.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "invalid endpoint"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "invalid endpoint: " + strings.Join(parts, "; ")
}

// Validate checks the endpoint's configuration invariants.
func (e *Endpoint) Validate() error {
	var fields []FieldError

	if strings.TrimSpace(e.Name) == "" {
		fields = append(fields, FieldError{Field: "name", Message: "must not be empty"})
	}

	if strings.TrimSpace(e.BaseURL) == "" {
		fields = append(fields, FieldError{Field: "base_url", Message: "must not be empty"})
	} else if err := validateBaseURL(e.BaseURL); err != nil {
		fields = append(fields, FieldError{Field: "base_url", Message: err.Error()})
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("not a valid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

// Less reports whether e orders before other in fallback order:
// priority descending, ID ascending as the stable tiebreak.
func (e *Endpoint) Less(other *Endpoint) bool {
	if e.Priority != other.Priority {
		return e.Priority > other.Priority
	}
	return e.ID.String() < other.ID.String()
}
