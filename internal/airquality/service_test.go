package airquality_test

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aire-xalapa/aire/internal/airquality"
)

// mockProvider is a test provider that returns configurable data.
type mockProvider struct {
	readings   []airquality.Reading
	err        error
	fetchCount atomic.Int32
	from, to   time.Time
}

func (m *mockProvider) FetchAirQuality(_ context.Context, _, _ float64, from, to time.Time) ([]airquality.Reading, error) {
	m.fetchCount.Add(1)
	m.from, m.to = from, to
	if m.err != nil {
		return nil, m.err
	}
	out := make([]airquality.Reading, len(m.readings))
	copy(out, m.readings)
	return out, nil
}

func (m *mockProvider) Name() string { return "mock" }

var fixedNow = time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)

func newTestService(p airquality.Provider) *airquality.Service {
	return airquality.NewService(airquality.ServiceConfig{
		Provider: p,
		Logger:   zerolog.New(io.Discard),
		Now:      func() time.Time { return fixedNow },
		Rand:     rand.New(rand.NewSource(1)),
	})
}

func hourlyReadings(n int) []airquality.Reading {
	readings := make([]airquality.Reading, n)
	for i := range readings {
		readings[i] = airquality.Reading{
			Timestamp:  fixedNow.Add(-time.Duration(n-i) * time.Hour),
			Pollutants: airquality.Pollutants{PM25: float64(i)},
			Source:     airquality.SourceOpenMeteo,
		}
	}
	return readings
}

func TestService_Fetch_SortsAndTruncates(t *testing.T) {
	provider := &mockProvider{readings: hourlyReadings(30)}
	svc := newTestService(provider)

	readings, err := svc.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, readings, 24)

	for i := 1; i < len(readings); i++ {
		assert.True(t, readings[i-1].Timestamp.After(readings[i].Timestamp))
	}
	assert.Equal(t, fixedNow.Add(-time.Hour), readings[0].Timestamp)
	assert.Equal(t, fixedNow.Add(-24*time.Hour), provider.from)
	assert.Equal(t, fixedNow, provider.to)
}

func TestService_Fetch_ProviderError(t *testing.T) {
	providerErr := errors.New("boom")
	svc := newTestService(&mockProvider{err: providerErr})

	readings, err := svc.Fetch(context.Background())
	assert.Nil(t, readings)
	assert.ErrorIs(t, err, airquality.ErrProviderUnavailable)
	assert.ErrorIs(t, err, providerErr)
}

func TestService_Fetch_Empty(t *testing.T) {
	svc := newTestService(&mockProvider{})

	_, err := svc.Fetch(context.Background())
	assert.ErrorIs(t, err, airquality.ErrNoReadings)
}

func TestService_FetchWithFallback_Live(t *testing.T) {
	svc := newTestService(&mockProvider{readings: hourlyReadings(3)})

	batch := svc.FetchWithFallback(context.Background())
	assert.True(t, batch.Live)
	assert.NoError(t, batch.Reason)
	assert.Len(t, batch.Readings, 3)
}

func TestService_FetchWithFallback_SubstitutesOnFailure(t *testing.T) {
	providerErr := errors.New("status 503")
	svc := newTestService(&mockProvider{err: providerErr})

	batch := svc.FetchWithFallback(context.Background())
	assert.False(t, batch.Live)
	assert.ErrorIs(t, batch.Reason, providerErr)
	require.Len(t, batch.Readings, airquality.DefaultFallbackCount)

	for i, rd := range batch.Readings {
		assert.Equal(t, airquality.SourceFallback, rd.Source)
		if i > 0 {
			assert.True(t, batch.Readings[i-1].Timestamp.After(rd.Timestamp), "not descending at %d", i)
		}
	}
}
