package quadrant

import (
	"github.com/aire-xalapa/aire/internal/airquality"
	"github.com/aire-xalapa/aire/internal/traffic"
)

// Per-pollutant sensitivity to traffic congestion.
const (
	pm25TrafficWeight = 0.35
	pm10TrafficWeight = 0.25
	no2TrafficWeight  = 0.45
	o3TrafficWeight   = -0.15
	coTrafficWeight   = 0.40
)

// SamplesWithin returns the samples located inside the quadrant.
func SamplesWithin(samples []traffic.Sample, q Quadrant) []traffic.Sample {
	var within []traffic.Sample
	for _, s := range samples {
		if q.Bounds.Contains(s.Latitude, s.Longitude) {
			within = append(within, s)
		}
	}
	return within
}

// EstimateLocalPollution scales a baseline by the mean congestion of the
// traffic samples inside the quadrant. Without samples in the quadrant the
// baseline is returned unchanged. Results are not clamped.
func EstimateLocalPollution(baseline airquality.Pollutants, samples []traffic.Sample, q Quadrant) airquality.Pollutants {
	mean, ok := traffic.MeanCongestion(SamplesWithin(samples, q))
	if !ok {
		return baseline
	}
	factor := mean / 100

	return airquality.Pollutants{
		PM25: baseline.PM25 * (1 + pm25TrafficWeight*factor),
		PM10: baseline.PM10 * (1 + pm10TrafficWeight*factor),
		NO2:  baseline.NO2 * (1 + no2TrafficWeight*factor),
		O3:   baseline.O3 * (1 + o3TrafficWeight*factor),
		CO:   baseline.CO * (1 + coTrafficWeight*factor),
	}
}
