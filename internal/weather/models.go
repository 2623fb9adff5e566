// Package weather provides current weather conditions for the monitored site.
package weather

import (
	"errors"
	"time"
)

// Weather errors.
var (
	ErrProviderUnavailable = errors.New("weather provider unavailable")
	ErrInvalidCoordinates  = errors.New("invalid coordinates")
)

// Snapshot is the current weather at a point.
type Snapshot struct {
	// Temperature in Celsius at 2 m.
	Temperature float64 `json:"temperature"`

	// Relative humidity percentage (0-100) at 2 m.
	Humidity float64 `json:"humidity"`

	// Wind speed in km/h at 10 m.
	WindSpeed float64 `json:"wind_speed"`

	// Cloud cover percentage (0-100).
	CloudCover float64 `json:"cloud_cover"`

	ObservedAt time.Time `json:"observed_at"`
}
