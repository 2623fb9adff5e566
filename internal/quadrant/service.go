package quadrant

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aire-xalapa/aire/internal/airquality"
	"github.com/aire-xalapa/aire/internal/traffic"
)

const (
	// DefaultStatsWindow is the number of latest readings averaged per update.
	DefaultStatsWindow = 100
)

// ServiceConfig holds configuration for the quadrant service.
type ServiceConfig struct {
	Readings airquality.Repository
	Traffic  traffic.Repository
	Stats    Repository

	// Logger for service operations.
	Logger zerolog.Logger

	// StatsWindow is the number of latest readings used by UpdateStats (default: 100).
	StatsWindow int

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Service computes and stores per-quadrant statistics.
type Service struct {
	readings    airquality.Repository
	traffic     traffic.Repository
	stats       Repository
	logger      zerolog.Logger
	statsWindow int
	now         func() time.Time
}

// NewService creates a new quadrant service.
func NewService(cfg ServiceConfig) *Service {
	window := cfg.StatsWindow
	if window == 0 {
		window = DefaultStatsWindow
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		readings:    cfg.Readings,
		traffic:     cfg.Traffic,
		stats:       cfg.Stats,
		logger:      cfg.Logger,
		statsWindow: window,
		now:         now,
	}
}

// Estimate is the traffic-adjusted pollution of one quadrant.
type Estimate struct {
	Quadrant       string                `json:"quadrant_name"`
	Timestamp      time.Time             `json:"timestamp"`
	Baseline       airquality.Pollutants `json:"baseline"`
	Estimated      airquality.Pollutants `json:"estimated"`
	TrafficSamples int                   `json:"traffic_samples"`
}

// UpdateStats averages the latest readings per quadrant and stores one
// record for every quadrant that holds at least one reading. Traffic
// intensity is the mean congestion of the latest samples in the quadrant.
func (s *Service) UpdateStats(ctx context.Context) ([]Statistics, error) {
	readings, err := s.readings.Latest(ctx, s.statsWindow)
	if err != nil {
		return nil, fmt.Errorf("load readings: %w", err)
	}
	if len(readings) == 0 {
		return nil, airquality.ErrNoReadings
	}

	samples, err := s.traffic.Latest(ctx, len(traffic.MonitoredPoints))
	if err != nil {
		return nil, fmt.Errorf("load traffic: %w", err)
	}

	now := s.now()
	stats := make([]Statistics, 0, len(Quadrants))
	for _, q := range Quadrants {
		st, ok := CalculateStats(q.Name, ReadingsWithin(readings, q))
		if !ok {
			s.logger.Debug().Str("quadrant", q.Name).Msg("no readings in quadrant")
			continue
		}
		st.Timestamp = now

		within := SamplesWithin(samples, q)
		if mean, ok := traffic.MeanCongestion(within); ok {
			st.TrafficIntensity = &mean
		}
		st.Metrics["traffic_sample_count"] = len(within)

		stats = append(stats, st)
	}

	if len(stats) == 0 {
		return stats, nil
	}
	if err := s.stats.StoreBatch(ctx, stats); err != nil {
		return nil, fmt.Errorf("store statistics: %w", err)
	}

	s.logger.Info().Int("quadrants", len(stats)).Int("readings", len(readings)).Msg("quadrant statistics updated")
	return stats, nil
}

// LatestStats returns the newest stored statistics for a quadrant.
func (s *Service) LatestStats(ctx context.Context, name string) (*Statistics, error) {
	if _, err := Lookup(name); err != nil {
		return nil, err
	}
	return s.stats.LatestByQuadrant(ctx, name)
}

// Estimates applies the latest traffic to the latest reading for every quadrant.
func (s *Service) Estimates(ctx context.Context) ([]Estimate, error) {
	latest, err := s.readings.Latest(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("load readings: %w", err)
	}
	if len(latest) == 0 {
		return nil, airquality.ErrNoReadings
	}
	baseline := latest[0]

	samples, err := s.traffic.Latest(ctx, len(traffic.MonitoredPoints))
	if err != nil {
		return nil, fmt.Errorf("load traffic: %w", err)
	}

	estimates := make([]Estimate, len(Quadrants))
	for i, q := range Quadrants {
		estimates[i] = Estimate{
			Quadrant:       q.Name,
			Timestamp:      baseline.Timestamp,
			Baseline:       baseline.Pollutants,
			Estimated:      EstimateLocalPollution(baseline.Pollutants, samples, q),
			TrafficSamples: len(SamplesWithin(samples, q)),
		}
	}
	return estimates, nil
}
