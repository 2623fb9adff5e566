package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/aire-xalapa/aire/internal/api/response"
	"github.com/aire-xalapa/aire/internal/traffic"
)

const latestTrafficLimit = 10

// TrafficHandler handles traffic endpoints.
type TrafficHandler struct {
	service *traffic.Service
	repo    traffic.Repository
	logger  zerolog.Logger
}

// NewTrafficHandler creates a new TrafficHandler.
func NewTrafficHandler(service *traffic.Service, repo traffic.Repository, logger zerolog.Logger) *TrafficHandler {
	return &TrafficHandler{service: service, repo: repo, logger: logger}
}

// GetTraffic handles GET /api/traffic - latest stored samples.
func (h *TrafficHandler) GetTraffic(w http.ResponseWriter, r *http.Request) {
	samples, err := h.repo.Latest(r.Context(), latestTrafficLimit)
	if err != nil {
		h.logger.Error().Err(err).Msg("query latest traffic")
		response.InternalError(w, r, "failed to load traffic data")
		return
	}
	response.List(w, r, samples)
}

// GetLiveTraffic handles GET /api/traffic/live. Samples are collected from
// the provider, or synthesized when every point fails, and persisted.
func (h *TrafficHandler) GetLiveTraffic(w http.ResponseWriter, r *http.Request) {
	batch := h.service.FetchWithFallback(r.Context())

	if err := h.repo.StoreBatch(r.Context(), batch.Samples); err != nil {
		h.logger.Error().Err(err).Int("samples", len(batch.Samples)).Msg("persist traffic samples")
	}

	source := response.SourceFallback
	if batch.Live {
		source = response.SourceLive
	}
	response.Sourced(w, r, source, batch.Samples)
}
