package airquality

import (
	"math/rand"
	"time"

	"github.com/aire-xalapa/aire/internal/region"
)

// DefaultFallbackCount is the number of synthetic hourly readings generated.
const DefaultFallbackCount = 24

// Uniform ranges for synthetic pollutant values.
var fallbackRanges = struct {
	PM25, PM10, NO2, O3, CO [2]float64
}{
	PM25: [2]float64{10, 50},
	PM10: [2]float64{20, 70},
	NO2:  [2]float64{20, 60},
	O3:   [2]float64{30, 80},
	CO:   [2]float64{0.5, 2.0},
}

// FallbackReadings generates n synthetic hourly readings starting at the
// beginning of now's day, located at the monitoring site.
// n == 0 means DefaultFallbackCount and a negative n yields nil.
// A nil rng uses a time-seeded source.
func FallbackReadings(now time.Time, n int, rng *rand.Rand) []Reading {
	switch {
	case n < 0:
		return nil
	case n == 0:
		n = DefaultFallbackCount
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // synthetic data
	}

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	readings := make([]Reading, n)
	for i := range readings {
		readings[i] = Reading{
			Timestamp: dayStart.Add(time.Duration(i) * time.Hour),
			Latitude:  region.Site.Lat,
			Longitude: region.Site.Lon,
			Pollutants: Pollutants{
				PM25: uniform(rng, fallbackRanges.PM25),
				PM10: uniform(rng, fallbackRanges.PM10),
				NO2:  uniform(rng, fallbackRanges.NO2),
				O3:   uniform(rng, fallbackRanges.O3),
				CO:   uniform(rng, fallbackRanges.CO),
			},
			Source: SourceFallback,
		}
	}
	return readings
}

func uniform(rng *rand.Rand, r [2]float64) float64 {
	return r[0] + rng.Float64()*(r[1]-r[0])
}
