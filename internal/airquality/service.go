package airquality

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aire-xalapa/aire/internal/region"
	"github.com/aire-xalapa/aire/internal/telemetry"
)

// Provider defines the interface for air quality data providers.
type Provider interface {
	// FetchAirQuality returns hourly readings for a coordinate within [from, to].
	FetchAirQuality(ctx context.Context, lat, lon float64, from, to time.Time) ([]Reading, error)

	// Name returns the provider name for logging.
	Name() string
}

// ServiceConfig holds configuration for the air quality service.
type ServiceConfig struct {
	// Provider is the air quality data provider.
	Provider Provider

	// Logger for service operations.
	Logger zerolog.Logger

	// Metrics records provider calls and fallback substitutions. Optional.
	Metrics *telemetry.ProviderMetrics

	// Window is the lookback period of a live fetch (default: 24 hours).
	Window time.Duration

	// MaxReadings caps the number of live readings returned (default: 24).
	MaxReadings int

	// FallbackCount is the number of synthetic readings on failure (default: 24).
	FallbackCount int

	// Now overrides the clock, for tests.
	Now func() time.Time

	// Rand overrides the source of synthetic values, for tests.
	Rand *rand.Rand
}

// Service collects air quality readings for the monitoring site.
type Service struct {
	provider      Provider
	logger        zerolog.Logger
	metrics       *telemetry.ProviderMetrics
	window        time.Duration
	maxReadings   int
	fallbackCount int
	now           func() time.Time

	randMu sync.Mutex
	rand   *rand.Rand
}

// NewService creates a new air quality service.
func NewService(cfg ServiceConfig) *Service {
	window := cfg.Window
	if window == 0 {
		window = 24 * time.Hour
	}

	maxReadings := cfg.MaxReadings
	if maxReadings == 0 {
		maxReadings = 24
	}

	fallbackCount := cfg.FallbackCount
	if fallbackCount <= 0 {
		fallbackCount = DefaultFallbackCount
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // synthetic data
	}

	return &Service{
		provider:      cfg.Provider,
		logger:        cfg.Logger,
		metrics:       cfg.Metrics,
		window:        window,
		maxReadings:   maxReadings,
		fallbackCount: fallbackCount,
		now:           now,
		rand:          rng,
	}
}

// Fetch returns live readings for the last window, newest first.
// Provider failures are returned wrapped in ErrProviderUnavailable.
func (s *Service) Fetch(ctx context.Context) ([]Reading, error) {
	now := s.now()
	start := time.Now()

	s.logger.Debug().
		Str("provider", s.provider.Name()).
		Time("from", now.Add(-s.window)).
		Time("to", now).
		Msg("fetching air quality from provider")

	readings, err := s.provider.FetchAirQuality(ctx, region.Site.Lat, region.Site.Lon, now.Add(-s.window), now)
	s.metrics.RecordRequest(s.provider.Name(), "air_quality", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	if len(readings) == 0 {
		return nil, ErrNoReadings
	}

	SortNewestFirst(readings)
	if len(readings) > s.maxReadings {
		readings = readings[:s.maxReadings]
	}

	return readings, nil
}

// FetchWithFallback returns live readings, or synthetic readings when the
// provider fails. The result is never empty.
func (s *Service) FetchWithFallback(ctx context.Context) Batch {
	readings, err := s.Fetch(ctx)
	if err == nil {
		return Batch{Readings: readings, Live: true}
	}

	s.logger.Warn().
		Err(err).
		Str("provider", s.provider.Name()).
		Msg("substituting synthetic air quality readings")
	s.metrics.RecordFallback(s.provider.Name(), "air_quality")

	return Batch{Readings: s.Fallback(), Reason: err}
}

// Fallback returns synthetic readings for today, newest first.
func (s *Service) Fallback() []Reading {
	s.randMu.Lock()
	readings := FallbackReadings(s.now(), s.fallbackCount, s.rand)
	s.randMu.Unlock()

	SortNewestFirst(readings)
	return readings
}
