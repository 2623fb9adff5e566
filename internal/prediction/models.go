// Package prediction stores air quality forecasts produced by an external model.
package prediction

import (
	"errors"
	"time"
)

// Prediction errors.
var (
	ErrInvalidPrediction = errors.New("invalid prediction")
)

// Prediction is a forecast of pollutant levels for one quadrant.
type Prediction struct {
	ID              int64          `json:"id,omitempty"`
	Timestamp       time.Time      `json:"timestamp" validate:"required"`
	QuadrantName    string         `json:"quadrant_name" validate:"required,oneof=Noroeste Noreste Suroeste Sureste"`
	PredictedPM25   float64        `json:"predicted_pm25" validate:"gte=0"`
	PredictedPM10   float64        `json:"predicted_pm10" validate:"gte=0"`
	PredictedNO2    float64        `json:"predicted_no2" validate:"gte=0"`
	PredictedO3     float64        `json:"predicted_o3" validate:"gte=0"`
	PredictedCO     float64        `json:"predicted_co" validate:"gte=0"`
	ConfidenceLevel float64        `json:"confidence_level" validate:"gte=0,lte=1"`
	ModelMetadata   map[string]any `json:"model_metadata,omitempty"`
}
