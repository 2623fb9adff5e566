// Package airquality collects and stores hourly pollutant readings for the monitored site.
package airquality

import (
	"encoding/json"
	"errors"
	"sort"
	"time"
)

// Reading errors.
var (
	ErrNoReadings          = errors.New("no air quality readings")
	ErrProviderUnavailable = errors.New("air quality provider unavailable")
)

// Reading sources.
const (
	SourceOpenMeteo = "openmeteo"
	SourceFallback  = "fallback"
	SourceTest      = "test"
)

// Pollutants holds the five tracked concentrations.
// PM2.5, PM10, NO2 and O3 are in µg/m³; CO is in mg/m³.
type Pollutants struct {
	PM25 float64 `json:"pm25"`
	PM10 float64 `json:"pm10"`
	NO2  float64 `json:"no2"`
	O3   float64 `json:"o3"`
	CO   float64 `json:"co"`
}

// Reading is one hourly air quality record at a coordinate.
type Reading struct {
	ID        int64     `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Pollutants
	Source string          `json:"source"`
	Raw    json.RawMessage `json:"raw_data,omitempty"`
}

// Batch is the result of a collection attempt.
type Batch struct {
	// Readings is never empty and ordered by timestamp, newest first.
	Readings []Reading

	// Live is false when Readings were substituted.
	Live bool

	// Reason is the failure that caused substitution, nil when Live.
	Reason error
}

// SortNewestFirst orders readings by timestamp descending in place.
func SortNewestFirst(readings []Reading) {
	sort.SliceStable(readings, func(i, j int) bool {
		return readings[i].Timestamp.After(readings[j].Timestamp)
	})
}
