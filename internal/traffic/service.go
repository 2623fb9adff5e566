package traffic

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aire-xalapa/aire/internal/region"
	"github.com/aire-xalapa/aire/internal/telemetry"
)

// Provider defines the interface for traffic flow providers.
type Provider interface {
	// FetchFlow returns the flow of the road segment nearest to a point.
	FetchFlow(ctx context.Context, p region.Point) (Flow, error)

	// Name returns the provider name for logging.
	Name() string
}

// ServiceConfig holds configuration for the traffic service.
type ServiceConfig struct {
	// Provider is the traffic flow provider.
	Provider Provider

	// Logger for service operations.
	Logger zerolog.Logger

	// Metrics records provider calls and fallback substitutions. Optional.
	Metrics *telemetry.ProviderMetrics

	// Points overrides MonitoredPoints, for tests.
	Points []MonitoredPoint

	// Now overrides the clock, for tests.
	Now func() time.Time

	// Rand overrides the source of synthetic values, for tests.
	Rand *rand.Rand
}

// Service collects traffic samples for the monitored points.
type Service struct {
	provider Provider
	logger   zerolog.Logger
	metrics  *telemetry.ProviderMetrics
	points   []MonitoredPoint
	now      func() time.Time

	randMu sync.Mutex
	rand   *rand.Rand
}

// NewService creates a new traffic service.
func NewService(cfg ServiceConfig) *Service {
	points := cfg.Points
	if len(points) == 0 {
		points = MonitoredPoints
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
		provider: cfg.Provider,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		points:   points,
		now:      now,
		rand:     rng,
	}
}

// Fetch queries every monitored point concurrently. Points that fail are
// skipped; the remaining samples keep point order. When every point fails
// the per-point errors are joined under ErrAllPointsFailed.
func (s *Service) Fetch(ctx context.Context) ([]Sample, error) {
	at := s.now()

	type result struct {
		sample Sample
		err    error
	}
	results := make([]result, len(s.points))

	var wg sync.WaitGroup
	for i, p := range s.points {
		wg.Add(1)
		go func(i int, p MonitoredPoint) {
			defer wg.Done()

			start := time.Now()
			flow, err := s.provider.FetchFlow(ctx, p.Point)
			s.metrics.RecordRequest(s.provider.Name(), "traffic", time.Since(start), err)
			if err != nil {
				results[i].err = fmt.Errorf("%s: %w", p.Name, err)
				return
			}
			results[i].sample = NewSample(p, flow, at)
		}(i, p)
	}
	wg.Wait()

	samples := make([]Sample, 0, len(results))
	var errs []error
	for _, r := range results {
		if r.err != nil {
			s.logger.Warn().Err(r.err).Msg("skipping traffic point")
			errs = append(errs, r.err)
			continue
		}
		samples = append(samples, r.sample)
	}

	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrAllPointsFailed, errors.Join(errs...))
	}
	return samples, nil
}

// FetchWithFallback returns live samples, or one synthetic sample per point
// when every point failed. The result is never empty.
func (s *Service) FetchWithFallback(ctx context.Context) Batch {
	samples, err := s.Fetch(ctx)
	if err == nil {
		return Batch{Samples: samples, Live: true}
	}

	s.logger.Warn().
		Err(err).
		Str("provider", s.provider.Name()).
		Msg("substituting synthetic traffic samples")
	s.metrics.RecordFallback(s.provider.Name(), "traffic")

	s.randMu.Lock()
	fallback := FallbackSamples(s.now(), s.rand)
	s.randMu.Unlock()

	return Batch{Samples: fallback, Reason: err}
}
