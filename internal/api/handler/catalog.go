package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kortekstream/kortekstream/internal/api/middleware"
	"github.com/kortekstream/kortekstream/internal/api/models"
	"github.com/kortekstream/kortekstream/internal/api/response"
	"github.com/kortekstream/kortekstream/internal/endpoint"
	"github.com/kortekstream/kortekstream/internal/fallback"
)

// CatalogHandler serves the public catalog endpoints. Every route proxies
// one upstream resource through the fallback client and returns the
// normalized envelope.
type CatalogHandler struct {
	client   *fallback.Client
	registry *endpoint.Registry
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(client *fallback.Client, registry *endpoint.Registry) *CatalogHandler {
	return &CatalogHandler{client: client, registry: registry}
}

// Source handles GET /v1/catalog/source - the domain outbound links should
// point at, taken from the highest-priority active endpoint.
func (h *CatalogHandler) Source(w http.ResponseWriter, r *http.Request) {
	domain, err := h.registry.ActiveSourceDomain(r.Context())
	if err != nil {
		response.InternalError(w, r, "resolving source domain failed")
		return
	}
	response.JSON(w, r, http.StatusOK, models.SourceDomain{Domain: domain})
}

// Home handles GET /v1/catalog/home.
func (h *CatalogHandler) Home(w http.ResponseWriter, r *http.Request) {
	res, err := h.client.Home(r.Context())
	h.write(w, r, res, err)
}

// AnimeTerbaru handles GET /v1/catalog/anime-terbaru.
func (h *CatalogHandler) AnimeTerbaru(w http.ResponseWriter, r *http.Request) {
	res, err := h.client.AnimeTerbaru(r.Context(), pageParam(r))
	h.write(w, r, res, err)
}

// MovieList handles GET /v1/catalog/movie.
func (h *CatalogHandler) MovieList(w http.ResponseWriter, r *http.Request) {
	res, err := h.client.MovieList(r.Context(), pageParam(r))
	h.write(w, r, res, err)
}

// JadwalRilis handles GET /v1/catalog/jadwal-rilis and
// GET /v1/catalog/jadwal-rilis/{day}.
func (h *CatalogHandler) JadwalRilis(w http.ResponseWriter, r *http.Request) {
	day := chi.URLParam(r, "day")
	res, err := h.client.JadwalRilis(r.Context(), day)
	h.write(w, r, res, err)
}

// AnimeDetail handles GET /v1/catalog/anime/{animeSlug}.
func (h *CatalogHandler) AnimeDetail(w http.ResponseWriter, r *http.Request) {
	animeSlug := chi.URLParam(r, "animeSlug")
	if animeSlug == "" {
		response.BadRequest(w, r, "animeSlug is required", nil)
		return
	}
	res, err := h.client.AnimeDetail(r.Context(), animeSlug)
	h.write(w, r, res, err)
}

// EpisodeDetail handles GET /v1/catalog/episode.
func (h *CatalogHandler) EpisodeDetail(w http.ResponseWriter, r *http.Request) {
	episodeURL := r.URL.Query().Get("episode_url")
	if episodeURL == "" {
		response.BadRequest(w, r, "episode_url is required", nil)
		return
	}
	res, err := h.client.EpisodeDetail(r.Context(), episodeURL)
	h.write(w, r, res, err)
}

// Search handles GET /v1/catalog/search.
func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		response.BadRequest(w, r, "query is required", nil)
		return
	}
	res, err := h.client.Search(r.Context(), query)
	h.write(w, r, res, err)
}

// write maps a fallback result onto the HTTP response. Exhaustion of all
// upstream endpoints is a 503: the request was fine, the sources were not.
func (h *CatalogHandler) write(w http.ResponseWriter, r *http.Request, res *fallback.Response, err error) {
	if err != nil {
		var exhausted *fallback.AllEndpointsFailedError
		if errors.As(err, &exhausted) {
			response.ServiceUnavailable(w, r, "all upstream sources failed or are backing off")
			return
		}
		response.InternalError(w, r, "upstream request failed")
		return
	}

	w.Header().Set(middleware.SourceHeader, res.Source.Name)
	response.JSON(w, r, http.StatusOK, models.CatalogResponse{
		Data:            res.Payload,
		ConfidenceScore: res.Confidence,
		Source: models.CatalogSource{
			Name:   res.Source.Name,
			Domain: res.Source.Domain,
		},
		FetchedAt: models.Timestamp(res.FetchedAt),
	})
}

// pageParam reads the optional page query parameter, defaulting to 1.
func pageParam(r *http.Request) int {
	raw := r.URL.Query().Get("page")
	if raw == "" {
		return 1
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 1
	}
	return page
}
