// Package api provides the HTTP API for aire.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/aire-xalapa/aire/internal/airquality"
	"github.com/aire-xalapa/aire/internal/api/handler"
	"github.com/aire-xalapa/aire/internal/api/middleware"
	"github.com/aire-xalapa/aire/internal/auth"
	"github.com/aire-xalapa/aire/internal/prediction"
	"github.com/aire-xalapa/aire/internal/provider/resilience"
	"github.com/aire-xalapa/aire/internal/quadrant"
	"github.com/aire-xalapa/aire/internal/traffic"
	"github.com/aire-xalapa/aire/internal/weather"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	// RequireTLS rejects plain-HTTP requests forwarded by a proxy.
	RequireTLS bool

	// RateLimits defaults to middleware.DefaultRateLimits when zero.
	RateLimits middleware.RateLimits

	// DB is pinged by the readiness and status endpoints. Optional.
	DB handler.Pinger

	// Registry reports provider health (default: resilience.GlobalRegistry).
	Registry *resilience.Registry

	// Tokens validates service tokens on ingestion routes.
	Tokens middleware.TokenValidator

	AirQualityService *airquality.Service
	Readings          airquality.Repository
	TrafficService    *traffic.Service
	TrafficSamples    traffic.Repository
	QuadrantService   *quadrant.Service
	Predictions       prediction.Repository
	WeatherService    *weather.Service
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "aire-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))         // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))       // Panic recovery
	r.Use(chimiddleware.RealIP)                  // Real IP extraction
	r.Use(middleware.CORS())                     // Public dashboard access
	r.Use(middleware.SecurityHeaders)            // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS(cfg.RequireTLS)) // 403 for forwarded plain HTTP when enabled
	r.Use(middleware.ContentTypeJSON)            // JSON content type

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		DB:        cfg.DB,
		Registry:  cfg.Registry,
	})
	airQualityHandler := handler.NewAirQualityHandler(cfg.AirQualityService, cfg.Readings, cfg.Logger)
	trafficHandler := handler.NewTrafficHandler(cfg.TrafficService, cfg.TrafficSamples, cfg.Logger)
	quadrantHandler := handler.NewQuadrantHandler(cfg.QuadrantService, cfg.Logger)
	predictionHandler := handler.NewPredictionHandler(cfg.Predictions, cfg.Logger)
	weatherHandler := handler.NewWeatherHandler(cfg.WeatherService, cfg.Logger)

	ingestAuth := middleware.ServiceAuth(cfg.Tokens, auth.ScopePredictionsWrite)

	limits := cfg.RateLimits
	if limits == (middleware.RateLimits{}) {
		limits = middleware.DefaultRateLimits()
	}
	liveRateLimit := limits.Live.ByIP()
	standardRateLimit := limits.Standard.ByIP()
	ingestRateLimit := limits.Ingest.BySubject()

	r.Route("/api", func(r chi.Router) {
		// Ops endpoints (public)
		r.Get("/health", opsHandler.HealthCheck)
		r.Get("/ready", opsHandler.ReadinessCheck)
		r.Get("/status", opsHandler.SystemStatus)
		r.With(standardRateLimit).Get("/test-db", airQualityHandler.TestDatabase)

		// Air quality: the root endpoint may call the provider
		r.Route("/air-quality", func(r chi.Router) {
			r.With(liveRateLimit).Get("/", airQualityHandler.GetAirQuality)
			r.Group(func(r chi.Router) {
				r.Use(standardRateLimit)
				r.Get("/latest", airQualityHandler.GetLatest)
				r.Get("/history", airQualityHandler.GetHistory)
				r.Get("/history/daily", airQualityHandler.GetDailyHistory)
			})
		})

		r.Route("/traffic", func(r chi.Router) {
			r.With(standardRateLimit).Get("/", trafficHandler.GetTraffic)
			r.With(liveRateLimit).Get("/live", trafficHandler.GetLiveTraffic)
		})

		r.Route("/quadrants", func(r chi.Router) {
			r.With(liveRateLimit).Get("/update-stats", quadrantHandler.UpdateStats)
			r.With(standardRateLimit).Get("/estimates", quadrantHandler.GetEstimates)
			r.With(standardRateLimit).Get("/{name}/stats", quadrantHandler.GetStats)
		})

		r.Route("/predictions", func(r chi.Router) {
			r.With(standardRateLimit).Get("/", predictionHandler.ListPredictions)
			// Ingestion (service token) - caller-based rate limiting
			r.With(ingestAuth, ingestRateLimit, middleware.RequireJSON, middleware.LimitBody(middleware.MaxIngestBodyBytes)).
				Post("/", predictionHandler.CreatePredictions)
		})

		r.With(liveRateLimit).Get("/weather", weatherHandler.GetWeather)
	})

	return r
}
