package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aire-xalapa/aire/internal/airquality"
	"github.com/aire-xalapa/aire/internal/quadrant"
	"github.com/aire-xalapa/aire/internal/traffic"
)

// Collection steps.
const (
	StepAirQuality = "air_quality"
	StepTraffic    = "traffic"
	StepStats      = "stats"
)

// CollectJob collects air quality and traffic, persists them and refreshes
// the quadrant statistics.
type CollectJob struct {
	config CollectConfig
	logger zerolog.Logger

	airQuality *airquality.Service
	readings   airquality.Repository
	traffic    *traffic.Service
	samples    traffic.Repository
	quadrants  *quadrant.Service

	metrics *CollectMetrics
}

// CollectMetrics tracks collection job statistics.
type CollectMetrics struct {
	mu sync.RWMutex

	TotalRuns          int64
	FailedRuns         int64
	ReadingsStored     int64
	SamplesStored      int64
	StatisticsStored   int64
	AirQualityFallback int64
	TrafficFallback    int64

	LastRunAt       time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration
}

// CollectJobConfig holds configuration for creating a CollectJob.
// A nil service disables its step.
type CollectJobConfig struct {
	Config CollectConfig
	Logger zerolog.Logger

	AirQuality *airquality.Service
	Readings   airquality.Repository
	Traffic    *traffic.Service
	Samples    traffic.Repository
	Quadrants  *quadrant.Service
}

// NewCollectJob creates a new collection job.
func NewCollectJob(cfg CollectJobConfig) *CollectJob {
	config := cfg.Config
	defaults := DefaultCollectConfig()
	if config.Interval == 0 {
		config.Interval = defaults.Interval
	}
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}

	return &CollectJob{
		config:     config,
		logger:     cfg.Logger,
		airQuality: cfg.AirQuality,
		readings:   cfg.Readings,
		traffic:    cfg.Traffic,
		samples:    cfg.Samples,
		quadrants:  cfg.Quadrants,
		metrics:    &CollectMetrics{},
	}
}

// Config returns the job configuration.
func (j *CollectJob) Config() CollectConfig {
	return j.config
}

// CollectResult contains the result of one run.
type CollectResult struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	Readings       int
	AirQualityLive bool
	Samples        int
	TrafficLive    bool
	Statistics     int

	Errors []CollectError
}

// CollectError records a failed step.
type CollectError struct {
	Step  string
	Error string
}

// Err joins the step failures, or returns nil when every step succeeded.
// Fallback substitution is not a failure.
func (r *CollectResult) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = fmt.Errorf("%s: %s", e.Step, e.Error)
	}
	return errors.Join(errs...)
}

// Run executes one collection. Air quality and traffic are collected
// concurrently; statistics are updated once both have been stored.
func (j *CollectJob) Run(ctx context.Context) *CollectResult {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	startTime := time.Now()
	result := &CollectResult{StartTime: startTime}

	j.logger.Info().
		Bool("air_quality", j.airQualityEnabled()).
		Bool("traffic", j.trafficEnabled()).
		Bool("stats", j.statsEnabled()).
		Msg("starting collection job")

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	fail := func(step string, err error) {
		mu.Lock()
		defer mu.Unlock()
		result.Errors = append(result.Errors, CollectError{Step: step, Error: err.Error()})
	}

	if j.airQualityEnabled() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stored, live, err := j.collectAirQuality(ctx)
			mu.Lock()
			result.Readings, result.AirQualityLive = stored, live
			mu.Unlock()
			if err != nil {
				fail(StepAirQuality, err)
			}
		}()
	}

	if j.trafficEnabled() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stored, live, err := j.collectTraffic(ctx)
			mu.Lock()
			result.Samples, result.TrafficLive = stored, live
			mu.Unlock()
			if err != nil {
				fail(StepTraffic, err)
			}
		}()
	}

	wg.Wait()

	if j.statsEnabled() {
		stats, err := j.quadrants.UpdateStats(ctx)
		switch {
		case errors.Is(err, airquality.ErrNoReadings):
			j.logger.Info().Msg("no readings yet, skipping quadrant statistics")
		case err != nil:
			fail(StepStats, err)
		default:
			result.Statistics = len(stats)
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	event := j.logger.Info()
	if len(result.Errors) > 0 {
		event = j.logger.Warn().Err(result.Err())
	}
	event.
		Dur("duration", result.Duration).
		Int("readings", result.Readings).
		Bool("air_quality_live", result.AirQualityLive).
		Int("samples", result.Samples).
		Bool("traffic_live", result.TrafficLive).
		Int("statistics", result.Statistics).
		Msg("collection job completed")

	return result
}

// collectAirQuality stores live readings. Synthetic readings span the
// whole current day and are never persisted.
func (j *CollectJob) collectAirQuality(ctx context.Context) (int, bool, error) {
	batch := j.airQuality.FetchWithFallback(ctx)
	if !batch.Live {
		j.logger.Warn().
			Err(batch.Reason).
			Msg("air quality provider unavailable, nothing stored")
		return 0, false, nil
	}

	for i := range batch.Readings {
		batch.Readings[i].Source = airquality.SourceOpenMeteo
	}

	if err := j.readings.StoreBatch(ctx, batch.Readings); err != nil {
		return 0, batch.Live, fmt.Errorf("store readings: %w", err)
	}
	return len(batch.Readings), batch.Live, nil
}

func (j *CollectJob) collectTraffic(ctx context.Context) (int, bool, error) {
	batch := j.traffic.FetchWithFallback(ctx)

	if err := j.samples.StoreBatch(ctx, batch.Samples); err != nil {
		return 0, batch.Live, fmt.Errorf("store traffic samples: %w", err)
	}
	return len(batch.Samples), batch.Live, nil
}

// HealthCheck queries the providers once without storing anything.
func (j *CollectJob) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	var errs []error
	if j.airQuality != nil {
		if _, err := j.airQuality.Fetch(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", StepAirQuality, err))
		}
	}
	if j.traffic != nil {
		if _, err := j.traffic.Fetch(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", StepTraffic, err))
		}
	}
	return errors.Join(errs...)
}

func (j *CollectJob) airQualityEnabled() bool {
	return j.config.CollectAirQuality && j.airQuality != nil && j.readings != nil
}

func (j *CollectJob) trafficEnabled() bool {
	return j.config.CollectTraffic && j.traffic != nil && j.samples != nil
}

func (j *CollectJob) statsEnabled() bool {
	return j.config.UpdateStats && j.quadrants != nil
}

func (j *CollectJob) updateMetrics(result *CollectResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	if len(result.Errors) > 0 {
		j.metrics.FailedRuns++
	}
	j.metrics.ReadingsStored += int64(result.Readings)
	j.metrics.SamplesStored += int64(result.Samples)
	j.metrics.StatisticsStored += int64(result.Statistics)
	if j.airQualityEnabled() && !result.AirQualityLive {
		j.metrics.AirQualityFallback++
	}
	if j.trafficEnabled() && !result.TrafficLive {
		j.metrics.TrafficFallback++
	}
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *CollectJob) GetMetrics() CollectMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return CollectMetrics{
		TotalRuns:          j.metrics.TotalRuns,
		FailedRuns:         j.metrics.FailedRuns,
		ReadingsStored:     j.metrics.ReadingsStored,
		SamplesStored:      j.metrics.SamplesStored,
		StatisticsStored:   j.metrics.StatisticsStored,
		AirQualityFallback: j.metrics.AirQualityFallback,
		TrafficFallback:    j.metrics.TrafficFallback,
		LastRunAt:          j.metrics.LastRunAt,
		LastRunDuration:    j.metrics.LastRunDuration,
		TotalDuration:      j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *CollectJob) MetricsSnapshot() map[string]any {
	m := j.GetMetrics()
	return map[string]any{
		"total_runs":           m.TotalRuns,
		"failed_runs":          m.FailedRuns,
		"readings_stored":      m.ReadingsStored,
		"samples_stored":       m.SamplesStored,
		"statistics_stored":    m.StatisticsStored,
		"air_quality_fallback": m.AirQualityFallback,
		"traffic_fallback":     m.TrafficFallback,
		"last_run_at":          m.LastRunAt,
		"last_run_duration":    m.LastRunDuration.String(),
		"total_duration":       m.TotalDuration.String(),
	}
}
