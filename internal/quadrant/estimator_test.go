package quadrant_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aire-xalapa/aire/internal/airquality"
	"github.com/aire-xalapa/aire/internal/quadrant"
	"github.com/aire-xalapa/aire/internal/traffic"
)

var baseline = airquality.Pollutants{PM25: 10, PM10: 20, NO2: 30, O3: 40, CO: 1}

func noroeste(t *testing.T) quadrant.Quadrant {
	t.Helper()
	q, err := quadrant.Lookup(quadrant.Noroeste)
	if err != nil {
		t.Fatal(err)
	}
	return q
}

func TestEstimateLocalPollution_NoTrafficReturnsBaseline(t *testing.T) {
	q := noroeste(t)

	assert.Equal(t, baseline, quadrant.EstimateLocalPollution(baseline, nil, q))

	outside := []traffic.Sample{{Latitude: 19.51, Longitude: -96.85, CongestionPercentage: 90}}
	assert.Equal(t, baseline, quadrant.EstimateLocalPollution(baseline, outside, q))
}

func TestEstimateLocalPollution_FullCongestion(t *testing.T) {
	q := noroeste(t)
	samples := []traffic.Sample{{Latitude: 19.57, Longitude: -96.95, CongestionPercentage: 100}}

	got := quadrant.EstimateLocalPollution(baseline, samples, q)
	assert.InDelta(t, 13.5, got.PM25, 1e-9)
	assert.InDelta(t, 25.0, got.PM10, 1e-9)
	assert.InDelta(t, 43.5, got.NO2, 1e-9)
	assert.InDelta(t, 34.0, got.O3, 1e-9)
	assert.InDelta(t, 1.4, got.CO, 1e-9)
}

func TestEstimateLocalPollution_MeanOfSamplesInside(t *testing.T) {
	q := noroeste(t)
	samples := []traffic.Sample{
		{Latitude: 19.57, Longitude: -96.95, CongestionPercentage: 20},
		{Latitude: 19.58, Longitude: -96.92, CongestionPercentage: 60},
		{Latitude: 19.51, Longitude: -96.85, CongestionPercentage: 100},
	}

	got := quadrant.EstimateLocalPollution(baseline, samples, q)
	assert.InDelta(t, 10*(1+0.35*0.4), got.PM25, 1e-9)
	assert.InDelta(t, 40*(1-0.15*0.4), got.O3, 1e-9)
}

func TestEstimateLocalPollution_InclusiveBounds(t *testing.T) {
	q := noroeste(t)
	corner := []traffic.Sample{{Latitude: q.Bounds.South, Longitude: q.Bounds.East, CongestionPercentage: 100}}

	got := quadrant.EstimateLocalPollution(baseline, corner, q)
	assert.InDelta(t, 13.5, got.PM25, 1e-9)
}
