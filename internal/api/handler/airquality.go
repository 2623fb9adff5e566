package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aire-xalapa/aire/internal/airquality"
	"github.com/aire-xalapa/aire/internal/api/models"
	"github.com/aire-xalapa/aire/internal/api/response"
	"github.com/aire-xalapa/aire/internal/region"
)

const (
	latestReadingsLimit  = 10
	historyReadingsLimit = 1000
)

// AirQualityHandler handles air quality endpoints.
type AirQualityHandler struct {
	service *airquality.Service
	repo    airquality.Repository
	logger  zerolog.Logger
	now     func() time.Time
}

// NewAirQualityHandler creates a new AirQualityHandler.
func NewAirQualityHandler(service *airquality.Service, repo airquality.Repository, logger zerolog.Logger) *AirQualityHandler {
	return &AirQualityHandler{
		service: service,
		repo:    repo,
		logger:  logger,
		now:     time.Now,
	}
}

// GetAirQuality handles GET /api/air-quality.
//
// With both start_time and end_time it pages through stored readings. An
// empty page, or no range at all, triggers a live fetch that is persisted.
// When the provider fails the latest stored readings of source are served,
// and synthetic readings when nothing is stored.
func (h *AirQualityHandler) GetAirQuality(w http.ResponseWriter, r *http.Request) {
	q, err := bindReadingsQuery(r)
	if err != nil {
		response.InternalError(w, r, err.Error())
		return
	}
	ctx := r.Context()

	if q.Ranged() {
		readings, err := h.repo.InRange(ctx, airquality.RangeQuery{
			From:   q.Start,
			To:     q.End,
			Limit:  q.Limit,
			Offset: q.Offset,
		})
		if err != nil {
			h.logger.Error().Err(err).Msg("query readings in range")
			response.InternalError(w, r, "failed to load air quality readings")
			return
		}
		if len(readings) > 0 {
			response.JSON(w, r, http.StatusOK, readings)
			return
		}
	}

	readings, err := h.service.Fetch(ctx)
	if err == nil {
		for i := range readings {
			readings[i].Source = airquality.SourceOpenMeteo
		}
		if err := h.repo.StoreBatch(ctx, readings); err != nil {
			h.logger.Error().Err(err).Int("readings", len(readings)).Msg("persist live readings")
		}
		response.Sourced(w, r, response.SourceLive, readings)
		return
	}

	h.logger.Warn().Err(err).Msg("live air quality unavailable, serving stored readings")

	source := q.Source
	if source == "" {
		source = airquality.SourceOpenMeteo
	}
	stored, err := h.repo.LatestBySource(ctx, source, q.Limit)
	if err != nil {
		h.logger.Error().Err(err).Str("source", source).Msg("query latest readings by source")
		response.InternalError(w, r, "failed to load air quality readings")
		return
	}
	if len(stored) > 0 {
		response.Sourced(w, r, response.SourceStored, stored)
		return
	}

	response.Sourced(w, r, response.SourceFallback, h.service.Fallback())
}

// GetLatest handles GET /api/air-quality/latest.
func (h *AirQualityHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	readings, err := h.repo.Latest(r.Context(), latestReadingsLimit)
	if err != nil {
		h.logger.Error().Err(err).Msg("query latest readings")
		response.InternalError(w, r, "failed to load latest readings")
		return
	}
	response.List(w, r, readings)
}

// GetHistory handles GET /api/air-quality/history.
func (h *AirQualityHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	q, err := bindHistoryQuery(r)
	if err != nil {
		response.InternalError(w, r, err.Error())
		return
	}

	readings, err := h.repo.InRange(r.Context(), airquality.RangeQuery{
		From:  q.Start,
		To:    q.End,
		Limit: historyReadingsLimit,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("query reading history")
		response.InternalError(w, r, "failed to load air quality history")
		return
	}
	response.List(w, r, readings)
}

// GetDailyHistory handles GET /api/air-quality/history/daily.
func (h *AirQualityHandler) GetDailyHistory(w http.ResponseWriter, r *http.Request) {
	q, err := bindDailyQuery(r)
	if err != nil {
		response.InternalError(w, r, err.Error())
		return
	}
	from, to := q.Bounds()
	ctx := r.Context()

	total, err := h.repo.CountInRange(ctx, from, to)
	if err != nil {
		h.logger.Error().Err(err).Str("date", q.Date).Msg("count daily readings")
		response.InternalError(w, r, "failed to load daily history")
		return
	}

	readings, err := h.repo.InRange(ctx, airquality.RangeQuery{
		From:   from,
		To:     to,
		Limit:  q.Limit,
		Offset: q.Offset,
	})
	if err != nil {
		h.logger.Error().Err(err).Str("date", q.Date).Msg("query daily readings")
		response.InternalError(w, r, "failed to load daily history")
		return
	}

	response.JSON(w, r, http.StatusOK, models.DailyHistory{
		Total:  total,
		Limit:  q.Limit,
		Offset: q.Offset,
		Data:   nonNil(readings),
	})
}

// TestDatabase handles GET /api/test-db. It stores a reading with source
// "test" and reads back the newest reading.
func (h *AirQualityHandler) TestDatabase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sample := airquality.Reading{
		Timestamp: h.now(),
		Latitude:  region.Site.Lat,
		Longitude: region.Site.Lon,
		Pollutants: airquality.Pollutants{
			PM25: 25.0,
			PM10: 50.0,
			NO2:  30.0,
			O3:   40.0,
			CO:   1.0,
		},
		Source: airquality.SourceTest,
	}
	if err := h.repo.Store(ctx, &sample); err != nil {
		h.logger.Error().Err(err).Msg("database test write")
		response.InternalError(w, r, "Database test failed: "+err.Error())
		return
	}

	latest, err := h.repo.Latest(ctx, 1)
	if err != nil {
		h.logger.Error().Err(err).Msg("database test read")
		response.InternalError(w, r, "Database test failed: "+err.Error())
		return
	}

	result := models.DatabaseCheck{Message: "Database test successful"}
	if len(latest) > 0 {
		result.Data = &latest[0]
	}
	response.JSON(w, r, http.StatusOK, result)
}

// nonNil turns a nil slice into an empty one so it encodes as [].
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// isNoData reports whether err only means there was nothing to compute.
func isNoData(err error) bool {
	return errors.Is(err, airquality.ErrNoReadings)
}
