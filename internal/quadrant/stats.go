package quadrant

import (
	"time"

	"github.com/aire-xalapa/aire/internal/airquality"
)

// Statistics is a stored per-quadrant average.
type Statistics struct {
	ID               int64          `json:"id,omitempty"`
	Timestamp        time.Time      `json:"timestamp"`
	QuadrantName     string         `json:"quadrant_name"`
	AvgPM25          float64        `json:"avg_pm25"`
	AvgPM10          float64        `json:"avg_pm10"`
	AvgNO2           float64        `json:"avg_no2"`
	AvgO3            float64        `json:"avg_o3"`
	AvgCO            float64        `json:"avg_co"`
	TrafficIntensity *float64       `json:"traffic_intensity"`
	Metrics          map[string]any `json:"additional_metrics,omitempty"`
}

// CalculateStats averages each pollutant over the readings. It reports
// false for an empty input rather than producing zeroed statistics.
func CalculateStats(name string, readings []airquality.Reading) (Statistics, bool) {
	if len(readings) == 0 {
		return Statistics{}, false
	}

	var sum airquality.Pollutants
	for _, r := range readings {
		sum.PM25 += r.PM25
		sum.PM10 += r.PM10
		sum.NO2 += r.NO2
		sum.O3 += r.O3
		sum.CO += r.CO
	}
	n := float64(len(readings))

	return Statistics{
		QuadrantName: name,
		AvgPM25:      sum.PM25 / n,
		AvgPM10:      sum.PM10 / n,
		AvgNO2:       sum.NO2 / n,
		AvgO3:        sum.O3 / n,
		AvgCO:        sum.CO / n,
		Metrics: map[string]any{
			"reading_count": len(readings),
		},
	}, true
}

// ReadingsWithin returns the readings located inside the quadrant.
func ReadingsWithin(readings []airquality.Reading, q Quadrant) []airquality.Reading {
	var within []airquality.Reading
	for _, r := range readings {
		if q.Bounds.Contains(r.Latitude, r.Longitude) {
			within = append(within, r)
		}
	}
	return within
}
