package models

// CreateEndpointRequest is the admin payload for registering an endpoint.
type CreateEndpointRequest struct {
	Name         string `json:"name"`
	BaseURL      string `json:"base_url"`
	SourceDomain string `json:"source_domain"`
	Priority     int    `json:"priority"`
	Active       *bool  `json:"active,omitempty"`
}

// UpdateEndpointRequest is the admin payload for editing an endpoint.
// Omitted fields are left unchanged.
type UpdateEndpointRequest struct {
	Name         *string `json:"name,omitempty"`
	BaseURL      *string `json:"base_url,omitempty"`
	SourceDomain *string `json:"source_domain,omitempty"`
	Priority     *int    `json:"priority,omitempty"`
	Active       *bool   `json:"active,omitempty"`
}

// TestEndpointResponse is the result of an inline, non-persisted probe.
type TestEndpointResponse struct {
	Status    string  `json:"status"`
	LatencyMS int64   `json:"latency_ms"`
	Error     *string `json:"error,omitempty"`
}

// SweepRequest optionally narrows a manual health sweep to given paths.
type SweepRequest struct {
	Paths []string `json:"paths,omitempty"`
}
