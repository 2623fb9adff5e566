package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// DataSourceHeader tells clients whether a collection response holds live
// provider data, stored rows or synthetic fallback data.
const DataSourceHeader = "X-Data-Source"

// healthPaths are polled by the platform and logged at debug level.
var healthPaths = map[string]bool{
	"/api/health": true,
	"/api/ready":  true,
}

// Logger writes one "request completed" line per request. Server errors log
// at error level, client errors at warn and health checks at debug.
func Logger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := record(w)
			next.ServeHTTP(rec, r)

			event := log.WithLevel(requestLevel(r.URL.Path, rec.status))
			if event == nil {
				return
			}
			event = event.
				Str("request_id", GetRequestID(r.Context())).
				Str("method", r.Method).
				Str("route", routePattern(r)).
				Str("path", r.URL.Path).
				Int("status", rec.status).
				Int64("bytes", rec.bytes).
				Dur("duration", time.Since(start)).
				Str("remote_addr", r.RemoteAddr).
				Str("user_agent", r.UserAgent())

			if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
				event = event.Stringer("trace_id", sc.TraceID()).Stringer("span_id", sc.SpanID())
			}
			if r.URL.RawQuery != "" {
				event = event.Str("query", r.URL.RawQuery)
			}
			if quadrant := chi.URLParam(r, "name"); quadrant != "" {
				event = event.Str("quadrant", quadrant)
			}
			if source := rec.Header().Get(DataSourceHeader); source != "" {
				event = event.Str("data_source", source)
			}
			event.Msg("request completed")
		})
	}
}

func requestLevel(path string, status int) zerolog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zerolog.ErrorLevel
	case status >= http.StatusBadRequest:
		return zerolog.WarnLevel
	case healthPaths[path]:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}
