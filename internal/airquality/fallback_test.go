package airquality_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aire-xalapa/aire/internal/airquality"
	"github.com/aire-xalapa/aire/internal/region"
)

func TestFallbackReadings(t *testing.T) {
	now := time.Date(2024, 3, 15, 17, 42, 10, 0, time.UTC)
	dayStart := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	readings := airquality.FallbackReadings(now, 24, rand.New(rand.NewSource(7)))
	require.Len(t, readings, 24)

	for i, rd := range readings {
		assert.Equal(t, dayStart.Add(time.Duration(i)*time.Hour), rd.Timestamp)
		assert.Equal(t, region.Site.Lat, rd.Latitude)
		assert.Equal(t, region.Site.Lon, rd.Longitude)
		assert.Equal(t, airquality.SourceFallback, rd.Source)

		assert.GreaterOrEqual(t, rd.PM25, 10.0)
		assert.LessOrEqual(t, rd.PM25, 50.0)
		assert.GreaterOrEqual(t, rd.PM10, 20.0)
		assert.LessOrEqual(t, rd.PM10, 70.0)
		assert.GreaterOrEqual(t, rd.NO2, 20.0)
		assert.LessOrEqual(t, rd.NO2, 60.0)
		assert.GreaterOrEqual(t, rd.O3, 30.0)
		assert.LessOrEqual(t, rd.O3, 80.0)
		assert.GreaterOrEqual(t, rd.CO, 0.5)
		assert.LessOrEqual(t, rd.CO, 2.0)
	}
}

func TestFallbackReadings_Count(t *testing.T) {
	now := time.Now()

	assert.Len(t, airquality.FallbackReadings(now, 5, nil), 5)
	assert.Len(t, airquality.FallbackReadings(now, 0, nil), airquality.DefaultFallbackCount)
	assert.Nil(t, airquality.FallbackReadings(now, -1, nil))
}
