package weather

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/aire-xalapa/aire/internal/region"
	"github.com/aire-xalapa/aire/internal/telemetry"
)

const dataset = "weather"

// Provider defines the interface for weather data providers.
type Provider interface {
	// GetCurrentWeather fetches current weather for a location.
	GetCurrentWeather(ctx context.Context, lat, lon float64) (*Snapshot, error)

	// Name returns the provider name for logging.
	Name() string
}

// ServiceConfig holds configuration for the weather service.
type ServiceConfig struct {
	Provider Provider
	Logger   zerolog.Logger

	// Metrics records provider calls and cache lookups. Optional.
	Metrics *telemetry.ProviderMetrics

	// CacheTTL is how long a snapshot is served without asking the
	// provider (default: 10 minutes).
	CacheTTL time.Duration

	// StaleIfErrorTTL is how long after fetching a snapshot may still be
	// served when the provider fails (default: 1 hour).
	StaleIfErrorTTL time.Duration

	// CacheGridSize is the cell size in degrees; points in one cell share a
	// snapshot (default: 0.1, about 11 km).
	CacheGridSize float64

	// Now returns the current time (default: time.Now).
	Now func() time.Time
}

// Service provides cached current weather.
// It never substitutes synthetic data: when the provider fails and no
// recent snapshot is cached, callers get ErrProviderUnavailable.
type Service struct {
	provider        Provider
	logger          zerolog.Logger
	metrics         *telemetry.ProviderMetrics
	cacheTTL        time.Duration
	staleIfErrorTTL time.Duration
	gridSize        float64
	now             func() time.Time

	group singleflight.Group

	mu    sync.RWMutex
	cache map[cell]entry
}

// cell is a grid cell index.
type cell struct {
	lat, lon int64
}

type entry struct {
	snapshot  *Snapshot
	fetchedAt time.Time
}

// NewService creates a new weather service.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		provider:        cfg.Provider,
		logger:          cfg.Logger,
		metrics:         cfg.Metrics,
		cacheTTL:        cfg.CacheTTL,
		staleIfErrorTTL: cfg.StaleIfErrorTTL,
		gridSize:        cfg.CacheGridSize,
		now:             cfg.Now,
		cache:           make(map[cell]entry),
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = 10 * time.Minute
	}
	if s.staleIfErrorTTL <= 0 {
		s.staleIfErrorTTL = time.Hour
	}
	if s.gridSize <= 0 {
		s.gridSize = 0.1
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Current returns the weather at the monitoring site.
func (s *Service) Current(ctx context.Context) (*Snapshot, error) {
	return s.GetCurrentWeather(ctx, region.Site.Lat, region.Site.Lon)
}

// GetCurrentWeather returns current weather for a location. A snapshot
// younger than the cache TTL is served without a provider call, and
// concurrent misses for one cell share a single call.
func (s *Service) GetCurrentWeather(ctx context.Context, lat, lon float64) (*Snapshot, error) {
	if err := validateCoordinates(lat, lon); err != nil {
		return nil, err
	}

	key := s.cellOf(lat, lon)
	if e, ok := s.lookup(key); ok && s.now().Sub(e.fetchedAt) < s.cacheTTL {
		s.metrics.RecordCacheLookup(s.provider.Name(), dataset, telemetry.CacheHit)
		return e.snapshot, nil
	}
	s.metrics.RecordCacheLookup(s.provider.Name(), dataset, telemetry.CacheMiss)

	v, err, _ := s.group.Do(fmt.Sprintf("%d:%d", key.lat, key.lon), func() (any, error) {
		return s.refresh(ctx, key, lat, lon)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

// refresh asks the provider and falls back to a stale snapshot on failure.
func (s *Service) refresh(ctx context.Context, key cell, lat, lon float64) (*Snapshot, error) {
	start := s.now()
	snapshot, err := s.provider.GetCurrentWeather(ctx, lat, lon)
	now := s.now()
	s.metrics.RecordRequest(s.provider.Name(), dataset, now.Sub(start), err)

	if err != nil {
		log := s.logger.Error().Err(err).Str("provider", s.provider.Name()).Float64("lat", lat).Float64("lon", lon)

		if e, ok := s.lookup(key); ok && now.Sub(e.fetchedAt) < s.staleIfErrorTTL {
			log.Time("fetched_at", e.fetchedAt).Msg("weather provider failed, serving stale snapshot")
			s.metrics.RecordCacheLookup(s.provider.Name(), dataset, telemetry.CacheStale)
			return e.snapshot, nil
		}
		log.Msg("weather provider failed")
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[key] = entry{snapshot: snapshot, fetchedAt: now}
	for k, e := range s.cache {
		if now.Sub(e.fetchedAt) >= s.staleIfErrorTTL {
			delete(s.cache, k)
		}
	}
	return snapshot, nil
}

func (s *Service) lookup(key cell) (entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.cache[key]
	return e, ok
}

func (s *Service) cellOf(lat, lon float64) cell {
	return cell{
		lat: int64(math.Floor(lat / s.gridSize)),
		lon: int64(math.Floor(lon / s.gridSize)),
	}
}

// InvalidateCache clears all cached data.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[cell]entry)
}

func validateCoordinates(lat, lon float64) error {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}
