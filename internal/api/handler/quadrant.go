package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aire-xalapa/aire/internal/api/models"
	"github.com/aire-xalapa/aire/internal/api/response"
	"github.com/aire-xalapa/aire/internal/quadrant"
)

// QuadrantHandler handles quadrant statistics endpoints.
type QuadrantHandler struct {
	service *quadrant.Service
	logger  zerolog.Logger
}

// NewQuadrantHandler creates a new QuadrantHandler.
func NewQuadrantHandler(service *quadrant.Service, logger zerolog.Logger) *QuadrantHandler {
	return &QuadrantHandler{service: service, logger: logger}
}

// GetStats handles GET /api/quadrants/{name}/stats. The body is null when
// the quadrant is unknown or has no statistics yet.
func (h *QuadrantHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	stats, err := h.service.LatestStats(r.Context(), name)
	switch {
	case errors.Is(err, quadrant.ErrStatisticsNotFound), errors.Is(err, quadrant.ErrUnknownQuadrant):
		response.JSON(w, r, http.StatusOK, nil)
	case err != nil:
		h.logger.Error().Err(err).Str("quadrant", name).Msg("query quadrant statistics")
		response.InternalError(w, r, "failed to load quadrant statistics")
	default:
		response.JSON(w, r, http.StatusOK, stats)
	}
}

// UpdateStats handles GET /api/quadrants/update-stats.
func (h *QuadrantHandler) UpdateStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.UpdateStats(r.Context())
	if err != nil && !isNoData(err) {
		h.logger.Error().Err(err).Msg("update quadrant statistics")
		response.InternalError(w, r, "failed to update quadrant statistics")
		return
	}

	response.JSON(w, r, http.StatusOK, models.StatsUpdate{
		Message: "quadrant statistics updated",
		Data:    nonNil(stats),
	})
}

// GetEstimates handles GET /api/quadrants/estimates.
func (h *QuadrantHandler) GetEstimates(w http.ResponseWriter, r *http.Request) {
	estimates, err := h.service.Estimates(r.Context())
	if err != nil && !isNoData(err) {
		h.logger.Error().Err(err).Msg("estimate quadrant pollution")
		response.InternalError(w, r, "failed to estimate quadrant pollution")
		return
	}
	response.List(w, r, estimates)
}
