package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aire-xalapa/aire/internal/api/middleware"
)

// echoRequestID serves the request ID seen by the handler as the body.
func echoRequestID() http.Handler {
	return middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(middleware.GetRequestID(r.Context())))
	}))
}

func TestRequestID_Generated(t *testing.T) {
	w := httptest.NewRecorder()
	echoRequestID().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/air-quality/latest", http.NoBody))

	id := w.Header().Get(middleware.RequestIDHeader)
	require.True(t, strings.HasPrefix(id, "req_"), id)
	assert.Len(t, id, len("req_")+32)
	assert.NotContains(t, id, "-")
	assert.Equal(t, id, w.Body.String(), "context and header carry the same ID")
}

func TestRequestID_CallerSupplied(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		kept     bool
	}{
		{"dashboard id", "dash-7f3a.quadrants_2", true},
		{"max length", strings.Repeat("a", 64), true},
		{"too long", strings.Repeat("a", 65), false},
		{"spaces", "quadrant Noreste", false},
		{"log injection", "id\nlevel=error", false},
		{"non ascii", "calidad-del-aire-ñ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/traffic", http.NoBody)
			req.Header.Set(middleware.RequestIDHeader, tt.incoming)
			w := httptest.NewRecorder()

			echoRequestID().ServeHTTP(w, req)

			got := w.Header().Get(middleware.RequestIDHeader)
			assert.Equal(t, got, w.Body.String())
			if tt.kept {
				assert.Equal(t, tt.incoming, got)
			} else {
				assert.NotEqual(t, tt.incoming, got)
				assert.True(t, strings.HasPrefix(got, "req_"), got)
			}
		})
	}
}

func TestGetRequestID_OutsideMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/weather", http.NoBody)
	assert.Empty(t, middleware.GetRequestID(req.Context()))
}

func TestNewRequestID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for range 200 {
		id := middleware.NewRequestID()
		require.False(t, seen[id], "duplicate request ID %s", id)
		seen[id] = true
	}
}
