package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/aire-xalapa/aire/internal/api/models"
)

// securityHeaders are set on every response. The API only serves JSON, so
// the CSP forbids everything, while CORP allows the dashboard on another
// origin to read responses.
var securityHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Strict-Transport-Security", "max-age=31536000; includeSubDomains"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Cross-Origin-Resource-Policy", "cross-origin"},
	{"Referrer-Policy", "no-referrer"},
	{"Permissions-Policy", "geolocation=(), camera=(), microphone=()"},
}

// SecurityHeaders adds the security headers to all responses.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		for _, kv := range securityHeaders {
			h.Set(kv[0], kv[1])
		}
		next.ServeHTTP(w, r)
	})
}

// RequireTLS rejects requests that a proxy reports as plain HTTP with 403.
// Requests without X-Forwarded-Proto and the health endpoints always pass.
func RequireTLS(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			proto := r.Header.Get("X-Forwarded-Proto")
			if r.TLS == nil && proto != "" && proto != "https" && !healthPaths[r.URL.Path] {
				models.WriteError(w, GetRequestID(r.Context()), http.StatusForbidden, "this endpoint requires HTTPS")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CORS allows the public dashboard to read the API from any origin.
// Credentials are never shared, so a wildcard origin is safe here.
func CORS() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader, DataSourceHeader, "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}
