package middleware_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"

	"github.com/aire-xalapa/aire/internal/api/middleware"
)

func TestRecovery_ConvertsPanicTo500(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	handler := middleware.Recovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/traffic", http.NoBody)
	rec := httptest.NewRecorder()

	assert.NotPanics(t, func() { handler.ServeHTTP(rec, req) })
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"an unexpected error occurred"}`, rec.Body.String())
	assert.Contains(t, buf.String(), "panic recovered")
	assert.Contains(t, buf.String(), "/api/traffic")
	assert.Contains(t, buf.String(), `"panic":"boom"`)
}

func TestRecovery_MarksSpanAndLogsRoute(t *testing.T) {
	sr := setupTestTracer(t)
	var buf bytes.Buffer

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing("aire-api"))
	r.Use(middleware.Recovery(zerolog.New(&buf)))
	r.Get("/api/quadrants/{name}/stats", func(http.ResponseWriter, *http.Request) {
		var stats map[string]float64
		stats["avg_pm25"]++ // nil map write
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/quadrants/Sureste/stats", http.NoBody))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, buf.String(), `"route":"/api/quadrants/{name}/stats"`)
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	require.NotEmpty(t, spans[0].Events())
	assert.Equal(t, "exception", spans[0].Events()[0].Name)
}

func TestRecovery_ReraisesAbortHandler(t *testing.T) {
	handler := middleware.Recovery(zerolog.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithError(t, http.ErrAbortHandler.Error(), func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/traffic/live", http.NoBody))
	})
}
