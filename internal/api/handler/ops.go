// Package handler provides HTTP handlers for the KortekStream API.
package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kortekstream/kortekstream/internal/api/models"
	"github.com/kortekstream/kortekstream/internal/api/response"
	"github.com/kortekstream/kortekstream/internal/endpoint"
	"github.com/kortekstream/kortekstream/internal/health"
)

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	pool      *pgxpool.Pool
	registry  *endpoint.Registry
	records   health.Repository
}

// NewOpsHandler creates a new OpsHandler. The pool may be nil when the
// service runs without a database (readiness then only reports the process
// itself).
func NewOpsHandler(version, buildTime string, pool *pgxpool.Pool, registry *endpoint.Registry, records health.Repository) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		pool:      pool,
		registry:  registry,
		records:   records,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	healthStatus := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, healthStatus)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	status := models.HealthStatusOK
	code := http.StatusOK

	if h.pool != nil {
		if err := h.pool.Ping(r.Context()); err != nil {
			status = models.HealthStatusFail
			code = http.StatusServiceUnavailable
		}
	}

	response.JSON(w, r, code, models.Health{
		Status: status,
		Time:   models.Timestamp(time.Now()),
	})
}

// SystemStatus handles GET /v1/ops/status - upstream and subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := models.Timestamp(time.Now())

	overall := models.HealthStatusOK
	subsystems := []models.SubsystemStatus{h.postgresStatus(r)}
	for _, s := range subsystems {
		if s.Status != models.HealthStatusOK {
			overall = models.HealthStatusDegraded
		}
	}

	endpoints, err := h.registry.ListAll(ctx)
	if err != nil {
		response.InternalError(w, r, "listing endpoints failed")
		return
	}

	upstreams := make([]models.UpstreamStatus, 0, len(endpoints))
	anyUp := false
	for _, ep := range endpoints {
		up := models.UpstreamStatus{
			EndpointID:   ep.ID.String(),
			Name:         ep.Name,
			SourceDomain: ep.SourceDomain,
			Priority:     ep.Priority,
			Active:       ep.Active,
			SuccessCount: ep.SuccessCount,
		}
		if ep.LastUsedAt != nil {
			ts := models.Timestamp(*ep.LastUsedAt)
			up.LastUsedAt = &ts
		}

		if h.records != nil {
			recs, err := h.records.LatestByEndpoint(ctx, ep.ID)
			if err == nil {
				for _, rec := range recs {
					up.Probes = append(up.Probes, models.ProbeStatus{
						Path:      rec.Path,
						Status:    string(rec.Status),
						LatencyMS: rec.LatencyMS,
						Error:     rec.Error,
						CheckedAt: models.Timestamp(rec.CheckedAt),
					})
					if rec.Status == health.StatusUp {
						anyUp = true
					}
				}
			}
		}

		upstreams = append(upstreams, up)
	}

	// With every upstream down the service can no longer serve catalog
	// traffic, which is worth surfacing even if our own subsystems are fine.
	if len(endpoints) > 0 && !anyUp && h.records != nil {
		overall = models.HealthStatusDegraded
	}

	response.JSON(w, r, http.StatusOK, models.SystemStatus{
		Status:     overall,
		Time:       now,
		Subsystems: subsystems,
		Upstreams:  upstreams,
	})
}

// RecentProbes handles GET /v1/admin/probes - the probe history feed for
// the operator dashboard, newest first.
func (h *OpsHandler) RecentProbes(w http.ResponseWriter, r *http.Request) {
	window := 24 * time.Hour
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			response.BadRequest(w, r, "since must be a positive duration such as 1h", nil)
			return
		}
		window = parsed
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			response.BadRequest(w, r, "limit must be a positive integer", nil)
			return
		}
		if parsed > maxProbeHistoryLimit {
			parsed = maxProbeHistoryLimit
		}
		limit = parsed
	}

	records, err := h.records.ListRecent(r.Context(), time.Now().Add(-window), limit)
	if err != nil {
		response.InternalError(w, r, "listing probe history failed")
		return
	}

	response.JSON(w, r, http.StatusOK, models.ProbeHistory{
		Since:   models.Timestamp(time.Now().Add(-window)),
		Records: records,
	})
}

const maxProbeHistoryLimit = 500

func (h *OpsHandler) postgresStatus(r *http.Request) models.SubsystemStatus {
	s := models.SubsystemStatus{Name: "postgres", Status: models.HealthStatusOK}
	if h.pool == nil {
		detail := "not configured"
		s.Detail = &detail
		return s
	}
	if err := h.pool.Ping(r.Context()); err != nil {
		detail := err.Error()
		s.Status = models.HealthStatusFail
		s.Detail = &detail
	}
	return s
}
