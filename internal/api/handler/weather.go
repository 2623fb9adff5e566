package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/aire-xalapa/aire/internal/api/response"
	"github.com/aire-xalapa/aire/internal/weather"
)

// WeatherHandler handles the weather endpoint.
type WeatherHandler struct {
	service *weather.Service
	logger  zerolog.Logger
}

// NewWeatherHandler creates a new WeatherHandler.
func NewWeatherHandler(service *weather.Service, logger zerolog.Logger) *WeatherHandler {
	return &WeatherHandler{service: service, logger: logger}
}

// GetWeather handles GET /api/weather - current conditions at the site.
// There is no synthetic weather: provider failures are reported as 500.
func (h *WeatherHandler) GetWeather(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.service.Current(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("fetch current weather")
		response.InternalError(w, r, "weather data unavailable")
		return
	}
	response.JSON(w, r, http.StatusOK, snapshot)
}
