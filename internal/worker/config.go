// Package worker runs the periodic data collection for aire.
package worker

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// CollectConfig holds configuration for the collection job.
type CollectConfig struct {
	// Interval between scheduled runs.
	// Default: 15 minutes
	Interval time.Duration

	// Timeout bounds one complete run.
	// Default: 2 minutes
	Timeout time.Duration

	// CollectAirQuality enables the air quality step.
	// Default: true
	CollectAirQuality bool

	// CollectTraffic enables the traffic step.
	// Default: true
	CollectTraffic bool

	// UpdateStats enables the quadrant statistics step.
	// Default: true
	UpdateStats bool
}

// DefaultCollectConfig returns the default collection configuration.
func DefaultCollectConfig() CollectConfig {
	return CollectConfig{
		Interval:          15 * time.Minute,
		Timeout:           2 * time.Minute,
		CollectAirQuality: true,
		CollectTraffic:    true,
		UpdateStats:       true,
	}
}

// ConfigFromEnv reads COLLECT_INTERVAL, COLLECT_TIMEOUT and
// COLLECT_SKIP (a comma list of air_quality, traffic, stats) on top of
// the defaults. Intervals accept durations ("10m") or whole minutes ("10").
func ConfigFromEnv() CollectConfig {
	cfg := DefaultCollectConfig()

	if d, ok := parseInterval(os.Getenv("COLLECT_INTERVAL")); ok {
		cfg.Interval = d
	}
	if d, ok := parseInterval(os.Getenv("COLLECT_TIMEOUT")); ok {
		cfg.Timeout = d
	}

	for _, step := range strings.Split(os.Getenv("COLLECT_SKIP"), ",") {
		switch strings.TrimSpace(step) {
		case StepAirQuality:
			cfg.CollectAirQuality = false
		case StepTraffic:
			cfg.CollectTraffic = false
		case StepStats:
			cfg.UpdateStats = false
		}
	}

	return cfg
}

func parseInterval(raw string) (time.Duration, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if minutes, err := strconv.Atoi(raw); err == nil {
		if minutes <= 0 {
			return 0, false
		}
		return time.Duration(minutes) * time.Minute, true
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}
