package models

import "github.com/kortekstream/kortekstream/internal/health"

// Health represents the health status of the service.
type Health struct {
	Status  HealthStatus           `json:"status"`
	Time    Timestamp              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SystemStatus represents the overall system status: subsystems this
// service depends on plus the configured upstream endpoints.
type SystemStatus struct {
	Status     HealthStatus      `json:"status"`
	Time       Timestamp         `json:"time"`
	Subsystems []SubsystemStatus `json:"subsystems"`
	Upstreams  []UpstreamStatus  `json:"upstreams"`
}

// SubsystemStatus represents the status of a subsystem.
type SubsystemStatus struct {
	Name   string       `json:"name"`
	Status HealthStatus `json:"status"`
	Detail *string      `json:"detail,omitempty"`
}

// UpstreamStatus summarizes the latest health probes of one endpoint.
type UpstreamStatus struct {
	EndpointID   string        `json:"endpointId"`
	Name         string        `json:"name"`
	SourceDomain string        `json:"sourceDomain,omitempty"`
	Priority     int           `json:"priority"`
	Active       bool          `json:"active"`
	SuccessCount int64         `json:"successCount"`
	LastUsedAt   *Timestamp    `json:"lastUsedAt,omitempty"`
	Probes       []ProbeStatus `json:"probes,omitempty"`
}

// ProbeHistory is a page of recent health records, newest first.
type ProbeHistory struct {
	Since   Timestamp        `json:"since"`
	Records []*health.Record `json:"records"`
}

// ProbeStatus is the latest recorded probe for one path.
type ProbeStatus struct {
	Path      string    `json:"path"`
	Status    string    `json:"status"`
	LatencyMS *int64    `json:"latencyMs,omitempty"`
	Error     *string   `json:"error,omitempty"`
	CheckedAt Timestamp `json:"checkedAt"`
}
