package middleware

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/aire-xalapa/aire/internal/api/models"
)

// RateLimit is a request budget per caller and window.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

// RateLimits groups the budgets of the three endpoint tiers.
type RateLimits struct {
	// Live covers endpoints that call Open-Meteo or TomTom on every request.
	Live RateLimit
	// Standard covers endpoints served from PostgreSQL.
	Standard RateLimit
	// Ingest covers POST /api/predictions, per service token subject.
	Ingest RateLimit
}

// DefaultRateLimits keeps live traffic well inside the TomTom free tier.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		Live:     RateLimit{Requests: 20, Window: time.Minute},
		Standard: RateLimit{Requests: 100, Window: time.Minute},
		Ingest:   RateLimit{Requests: 30, Window: time.Minute},
	}
}

// RateLimitsFromEnv overrides the per-minute defaults with
// RATE_LIMIT_LIVE, RATE_LIMIT_STANDARD and RATE_LIMIT_INGEST. Values that
// are not positive integers are ignored.
func RateLimitsFromEnv() RateLimits {
	limits := DefaultRateLimits()
	for key, tier := range map[string]*RateLimit{
		"RATE_LIMIT_LIVE":     &limits.Live,
		"RATE_LIMIT_STANDARD": &limits.Standard,
		"RATE_LIMIT_INGEST":   &limits.Ingest,
	} {
		if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
			tier.Requests = n
		}
	}
	return limits
}

// ByIP limits each client address. chi's RealIP middleware has already
// resolved X-Forwarded-For by the time this runs.
func (l RateLimit) ByIP() func(http.Handler) http.Handler {
	return l.limiter(httprate.KeyByRealIP)
}

// BySubject limits each service token subject, so a prediction model
// posting from several hosts shares one budget. Anonymous requests are
// limited by address.
func (l RateLimit) BySubject() func(http.Handler) http.Handler {
	return l.limiter(func(r *http.Request) (string, error) {
		if subject := GetSubject(r.Context()); subject != "" {
			return "svc:" + subject, nil
		}
		return httprate.KeyByRealIP(r)
	})
}

func (l RateLimit) limiter(key httprate.KeyFunc) func(http.Handler) http.Handler {
	// httprate does not expose the reset time, so Retry-After is the full window.
	retryAfter := strconv.Itoa(int(l.Window.Seconds()))
	return httprate.Limit(l.Requests, l.Window,
		httprate.WithKeyFuncs(key),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", retryAfter)
			models.WriteError(w, GetRequestID(r.Context()), http.StatusTooManyRequests,
				"rate limit exceeded, please try again later")
		}),
	)
}
