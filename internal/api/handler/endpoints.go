package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kortekstream/kortekstream/internal/api/models"
	"github.com/kortekstream/kortekstream/internal/api/response"
	"github.com/kortekstream/kortekstream/internal/endpoint"
	"github.com/kortekstream/kortekstream/internal/health"
	"github.com/kortekstream/kortekstream/internal/monitor"
)

// EndpointsHandler exposes the operator management surface for the
// endpoint registry: CRUD, one-off probes, and manual health sweeps.
type EndpointsHandler struct {
	registry *endpoint.Registry
	checker  *health.Checker
	monitor  *monitor.Monitor
	logger   zerolog.Logger
}

// NewEndpointsHandler creates a new EndpointsHandler.
func NewEndpointsHandler(registry *endpoint.Registry, checker *health.Checker, mon *monitor.Monitor, logger zerolog.Logger) *EndpointsHandler {
	return &EndpointsHandler{
		registry: registry,
		checker:  checker,
		monitor:  mon,
		logger:   logger,
	}
}

// audit logs a registry mutation with the acting operator.
func (h *EndpointsHandler) audit(r *http.Request, action string, endpointID uuid.UUID) {
	h.logger.Info().
		Str("operator", GetOperator(r.Context())).
		Str("action", action).
		Str("endpoint_id", endpointID.String()).
		Msg("endpoint registry mutation")
}

// List handles GET /v1/admin/endpoints - all endpoints, active or not.
func (h *EndpointsHandler) List(w http.ResponseWriter, r *http.Request) {
	endpoints, err := h.registry.ListAll(r.Context())
	if err != nil {
		response.InternalError(w, r, "listing endpoints failed")
		return
	}
	response.JSON(w, r, http.StatusOK, endpoints)
}

// Get handles GET /v1/admin/endpoints/{endpointId}.
func (h *EndpointsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := endpointIDParam(w, r)
	if !ok {
		return
	}

	ep, err := h.registry.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, ep)
}

// Create handles POST /v1/admin/endpoints.
func (h *EndpointsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input models.CreateEndpointRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	active := true
	if input.Active != nil {
		active = *input.Active
	}

	ep, err := h.registry.Add(r.Context(), endpoint.AddParams{
		Name:         input.Name,
		BaseURL:      input.BaseURL,
		SourceDomain: input.SourceDomain,
		Priority:     input.Priority,
		Active:       active,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.audit(r, "create", ep.ID)
	location := fmt.Sprintf("/v1/admin/endpoints/%s", ep.ID)
	response.Created(w, r, location, ep)
}

// Update handles PATCH /v1/admin/endpoints/{endpointId}.
func (h *EndpointsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := endpointIDParam(w, r)
	if !ok {
		return
	}

	var input models.UpdateEndpointRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	ep, err := h.registry.Update(r.Context(), id, endpoint.UpdateParams{
		Name:         input.Name,
		BaseURL:      input.BaseURL,
		SourceDomain: input.SourceDomain,
		Priority:     input.Priority,
		Active:       input.Active,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.audit(r, "update", ep.ID)
	response.JSON(w, r, http.StatusOK, ep)
}

// Deactivate handles POST /v1/admin/endpoints/{endpointId}/deactivate.
// Soft removal: the endpoint leaves fallback rotation but keeps its history.
func (h *EndpointsHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := endpointIDParam(w, r)
	if !ok {
		return
	}

	ep, err := h.registry.Deactivate(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.audit(r, "deactivate", ep.ID)
	response.JSON(w, r, http.StatusOK, ep)
}

// Delete handles DELETE /v1/admin/endpoints/{endpointId}.
func (h *EndpointsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := endpointIDParam(w, r)
	if !ok {
		return
	}

	if err := h.registry.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.audit(r, "delete", id)
	response.NoContent(w, r)
}

// Test handles POST /v1/admin/endpoints/{endpointId}/test - an inline
// probe that is returned to the operator but never persisted.
func (h *EndpointsHandler) Test(w http.ResponseWriter, r *http.Request) {
	id, ok := endpointIDParam(w, r)
	if !ok {
		return
	}

	ep, err := h.registry.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result := h.checker.Check(r.Context(), ep, health.DefaultPath)

	resp := models.TestEndpointResponse{
		Status:    string(result.Status),
		LatencyMS: result.Latency.Milliseconds(),
	}
	if result.Error != "" {
		errMsg := result.Error
		resp.Error = &errMsg
	}
	response.JSON(w, r, http.StatusOK, resp)
}

// Sweep handles POST /v1/admin/endpoints/sweep - runs a full health sweep
// synchronously and returns the summary.
func (h *EndpointsHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	var input models.SweepRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			response.BadRequest(w, r, "invalid JSON body", nil)
			return
		}
	}

	summary, err := h.monitor.RunOnce(r.Context(), input.Paths)
	if err != nil {
		response.InternalError(w, r, "health sweep failed")
		return
	}
	response.JSON(w, r, http.StatusOK, summary)
}

// writeError maps registry errors onto problem responses.
func (h *EndpointsHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *endpoint.ValidationError
	switch {
	case errors.Is(err, endpoint.ErrEndpointNotFound):
		response.NotFound(w, r, "endpoint not found")
	case errors.As(err, &validationErr):
		fieldErrors := make([]models.FieldError, 0, len(validationErr.Fields))
		for _, f := range validationErr.Fields {
			fieldErrors = append(fieldErrors, models.FieldError{
				Field:   f.Field,
				Message: f.Message,
			})
		}
		response.BadRequest(w, r, "invalid endpoint configuration", fieldErrors)
	default:
		response.InternalError(w, r, "endpoint operation failed")
	}
}

// endpointIDParam parses the endpointId URL parameter, writing a 400 on
// failure.
func endpointIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "endpointId")
	id, err := uuid.Parse(raw)
	if err != nil {
		response.BadRequest(w, r, "endpointId must be a valid UUID", nil)
		return uuid.Nil, false
	}
	return id, true
}
