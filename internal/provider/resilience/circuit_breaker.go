// Package resilience wraps outbound provider calls (Open-Meteo, TomTom) with
// timeouts, bounded retries and a circuit breaker per provider.
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// Trip thresholds for provider breakers.
const (
	// ConsecutiveFailuresToTrip opens the breaker regardless of the failure ratio.
	ConsecutiveFailuresToTrip = 8
	// MinRequestsToTrip is the sample size below which the ratio is ignored.
	MinRequestsToTrip = 5
	// FailureRatioToTrip opens the breaker once enough requests were seen.
	FailureRatioToTrip = 0.5
)

// DefaultOpenFor is how long a tripped provider is skipped before a trial call.
const DefaultOpenFor = time.Minute

// CircuitBreakerConfig tunes the breaker in front of one provider.
type CircuitBreakerConfig struct {
	// Name is the provider name, shared with the registry and logs.
	Name string

	// HalfOpenRequests is how many trial calls pass while half-open. The
	// breaker closes once they all succeed. Default: 1
	HalfOpenRequests uint32

	// CountWindow clears the closed-state counts periodically. Zero keeps them
	// until the next state change.
	CountWindow time.Duration

	// OpenFor is how long the breaker stays open. Default: DefaultOpenFor
	OpenFor time.Duration

	// ReadyToTrip decides when to open. Default: DefaultReadyToTrip
	ReadyToTrip func(counts gobreaker.Counts) bool

	// OnStateChange runs after every transition, in addition to the client's
	// logging and registry bookkeeping.
	OnStateChange func(name string, from gobreaker.State, to gobreaker.State)
}

// DefaultCircuitBreakerConfig returns the breaker used for every provider
// unless the caller overrides it.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		HalfOpenRequests: 1,
		OpenFor:          DefaultOpenFor,
		ReadyToTrip:      DefaultReadyToTrip,
	}
}

// DefaultReadyToTrip opens after ConsecutiveFailuresToTrip failures in a row,
// or when at least MinRequestsToTrip calls were made and half of them failed.
func DefaultReadyToTrip(counts gobreaker.Counts) bool {
	if counts.ConsecutiveFailures >= ConsecutiveFailuresToTrip {
		return true
	}
	if counts.Requests < MinRequestsToTrip {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= FailureRatioToTrip
}

// countsAsSuccess keeps caller cancellations out of the failure counts: a
// dashboard closing its connection says nothing about the provider.
func countsAsSuccess(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}

// NewCircuitBreaker builds a gobreaker breaker from cfg, filling defaults.
func NewCircuitBreaker[T any](cfg CircuitBreakerConfig) *gobreaker.CircuitBreaker[T] {
	settings := gobreaker.Settings{
		Name:          cfg.Name,
		MaxRequests:   cfg.HalfOpenRequests,
		Interval:      cfg.CountWindow,
		Timeout:       cfg.OpenFor,
		ReadyToTrip:   cfg.ReadyToTrip,
		IsSuccessful:  countsAsSuccess,
		OnStateChange: cfg.OnStateChange,
	}
	if settings.MaxRequests == 0 {
		settings.MaxRequests = 1
	}
	if settings.Timeout <= 0 {
		settings.Timeout = DefaultOpenFor
	}
	if settings.ReadyToTrip == nil {
		settings.ReadyToTrip = DefaultReadyToTrip
	}

	return gobreaker.NewCircuitBreaker[T](settings)
}

// logStateChange reports transitions. Opening is a warning because the
// provider's dataset switches to stored or synthetic data; recovery is info.
func logStateChange(logger zerolog.Logger, dataset string) func(name string, from, to gobreaker.State) {
	return func(name string, from, to gobreaker.State) {
		event := logger.Info()
		if to == gobreaker.StateOpen {
			event = logger.Warn()
		}
		event.
			Str("provider", name).
			Str("dataset", dataset).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("circuit breaker state changed")
	}
}
