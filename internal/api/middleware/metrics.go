package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/aire-xalapa/aire/internal/api/middleware"

// Metrics holds the HTTP server instruments.
type Metrics struct {
	duration metric.Float64Histogram
	active   metric.Int64UpDownCounter
	bodySize metric.Int64Histogram
}

// NewMetrics creates the HTTP server instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)

	duration, err := meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("Duration of HTTP server requests"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, err
	}

	active, err := meter.Int64UpDownCounter(
		"http.server.active_requests",
		metric.WithDescription("Number of in-flight HTTP server requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	bodySize, err := meter.Int64Histogram(
		"http.server.response.body.size",
		metric.WithDescription("Size of HTTP response bodies"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{duration: duration, active: active, bodySize: bodySize}, nil
}

// Middleware records one duration and body size per request, labelled with
// the chi route pattern so quadrant names do not create new series.
// Air-quality and traffic responses are also labelled with X-Data-Source.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := r.Context()

			method := metric.WithAttributes(attribute.String("http.request.method", r.Method))
			m.active.Add(ctx, 1, method)
			defer m.active.Add(ctx, -1, method)

			wrapped := record(w)
			next.ServeHTTP(wrapped, r)

			attrs := []attribute.KeyValue{
				attribute.String("http.request.method", r.Method),
				attribute.String("http.route", routePattern(r)),
				attribute.Int("http.response.status_code", wrapped.status),
			}
			if source := wrapped.Header().Get(DataSourceHeader); source != "" {
				attrs = append(attrs, attribute.String("aire.data_source", source))
			}
			set := metric.WithAttributes(attrs...)

			m.duration.Record(ctx, time.Since(start).Seconds(), set)
			m.bodySize.Record(ctx, wrapped.bytes, set)
		})
	}
}

// routePattern returns the matched chi route pattern, or the raw path when
// the request was not routed by chi.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
