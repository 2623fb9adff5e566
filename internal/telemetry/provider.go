package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const providerMeterName = "github.com/aire-xalapa/aire/internal/telemetry"

// Cache lookup outcomes.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheStale = "stale"
)

// ProviderMetrics records calls to the air quality, weather and traffic
// providers. A nil *ProviderMetrics records nothing.
type ProviderMetrics struct {
	requestDuration metric.Float64Histogram
	fallbacks       metric.Int64Counter
	cacheLookups    metric.Int64Counter
}

// NewProviderMetrics creates the provider instruments on mp.
func NewProviderMetrics(mp metric.MeterProvider) (*ProviderMetrics, error) {
	meter := mp.Meter(providerMeterName)

	requestDuration, err := meter.Float64Histogram(
		"aire.provider.request.duration",
		metric.WithDescription("Duration of upstream provider requests"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, err
	}

	fallbacks, err := meter.Int64Counter(
		"aire.provider.fallbacks",
		metric.WithDescription("Responses replaced by synthetic data"),
		metric.WithUnit("{fallback}"),
	)
	if err != nil {
		return nil, err
	}

	cacheLookups, err := meter.Int64Counter(
		"aire.provider.cache.lookups",
		metric.WithDescription("Provider cache lookups by outcome"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	return &ProviderMetrics{
		requestDuration: requestDuration,
		fallbacks:       fallbacks,
		cacheLookups:    cacheLookups,
	}, nil
}

// RecordRequest records one provider call. The count is the histogram's.
func (m *ProviderMetrics) RecordRequest(provider, dataset string, duration time.Duration, err error) {
	if m == nil {
		return
	}

	attrs := append(providerAttrs(provider, dataset), attribute.Bool("error", err != nil))

	// Background context so a cancelled request still records.
	m.requestDuration.Record(context.Background(), duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordFallback records a synthetic data substitution.
func (m *ProviderMetrics) RecordFallback(provider, dataset string) {
	if m == nil {
		return
	}
	m.fallbacks.Add(context.Background(), 1, metric.WithAttributes(providerAttrs(provider, dataset)...))
}

// RecordCacheLookup records a cache lookup with outcome CacheHit, CacheMiss
// or CacheStale.
func (m *ProviderMetrics) RecordCacheLookup(provider, dataset, outcome string) {
	if m == nil {
		return
	}
	attrs := append(providerAttrs(provider, dataset), attribute.String("cache.outcome", outcome))
	m.cacheLookups.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

func providerAttrs(provider, dataset string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("provider.name", provider),
		attribute.String("aire.dataset", dataset),
	}
}
