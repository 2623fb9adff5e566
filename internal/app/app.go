// Package app builds the aire services shared by the API, the worker and
// the operator CLI.
package app

import (
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/aire-xalapa/aire/internal/airquality"
	airqualityopenmeteo "github.com/aire-xalapa/aire/internal/airquality/openmeteo"
	"github.com/aire-xalapa/aire/internal/auth"
	"github.com/aire-xalapa/aire/internal/prediction"
	"github.com/aire-xalapa/aire/internal/quadrant"
	"github.com/aire-xalapa/aire/internal/telemetry"
	"github.com/aire-xalapa/aire/internal/traffic"
	"github.com/aire-xalapa/aire/internal/traffic/tomtom"
	"github.com/aire-xalapa/aire/internal/weather"
	weatheropenmeteo "github.com/aire-xalapa/aire/internal/weather/openmeteo"
)

// Config holds provider and auth configuration.
type Config struct {
	// TomTomAPIKey authenticates traffic flow requests. Without it every
	// traffic collection falls back to synthetic samples.
	TomTomAPIKey string

	// IngestSigningKey signs service tokens. Empty disables ingestion.
	IngestSigningKey string

	// Base URL overrides, for staging and tests. Empty uses the public endpoints.
	AirQualityBaseURL string
	WeatherBaseURL    string
	TrafficBaseURL    string

	// ProviderTimeout bounds each provider request (default: 10s).
	ProviderTimeout time.Duration

	// WeatherCacheTTL is how long weather snapshots are reused (default: 10m).
	WeatherCacheTTL time.Duration
}

// ConfigFromEnv creates a Config from environment variables.
func ConfigFromEnv() Config {
	return Config{
		TomTomAPIKey:      os.Getenv("TOMTOM_API_KEY"),
		IngestSigningKey:  os.Getenv("INGEST_SIGNING_KEY"),
		AirQualityBaseURL: os.Getenv("OPENMETEO_AIR_QUALITY_URL"),
		WeatherBaseURL:    os.Getenv("OPENMETEO_FORECAST_URL"),
		TrafficBaseURL:    os.Getenv("TOMTOM_FLOW_URL"),
		ProviderTimeout:   durationEnv("PROVIDER_TIMEOUT", 10*time.Second),
		WeatherCacheTTL:   durationEnv("WEATHER_CACHE_TTL", 10*time.Minute),
	}
}

func durationEnv(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return def
}

// Repositories are the persistence ports of the services.
type Repositories struct {
	Readings    airquality.Repository
	Samples     traffic.Repository
	Stats       quadrant.Repository
	Predictions prediction.Repository
}

// PostgresRepositories returns repositories backed by pool.
func PostgresRepositories(pool *pgxpool.Pool) Repositories {
	return Repositories{
		Readings:    airquality.NewPostgresRepository(pool),
		Samples:     traffic.NewPostgresRepository(pool),
		Stats:       quadrant.NewPostgresRepository(pool),
		Predictions: prediction.NewPostgresRepository(pool),
	}
}

// InMemoryRepositories returns process-local repositories.
func InMemoryRepositories() Repositories {
	return Repositories{
		Readings:    airquality.NewInMemoryRepository(),
		Samples:     traffic.NewInMemoryRepository(),
		Stats:       quadrant.NewInMemoryRepository(),
		Predictions: prediction.NewInMemoryRepository(),
	}
}

// Services holds the wired domain services and their repositories.
type Services struct {
	Repositories

	AirQuality *airquality.Service
	Traffic    *traffic.Service
	Quadrants  *quadrant.Service
	Weather    *weather.Service
	Tokens     *auth.JWTService
}

// NewServices wires the provider clients into the domain services.
// metrics may be nil.
func NewServices(cfg Config, repos Repositories, logger zerolog.Logger, metrics *telemetry.ProviderMetrics) *Services {
	if cfg.TomTomAPIKey == "" {
		logger.Warn().Msg("TOMTOM_API_KEY not set - traffic will be synthetic")
	}

	airQualityClient := airqualityopenmeteo.NewClient(airqualityopenmeteo.ClientConfig{
		BaseURL: cfg.AirQualityBaseURL,
		Timeout: cfg.ProviderTimeout,
	})
	weatherClient := weatheropenmeteo.NewClient(weatheropenmeteo.ClientConfig{
		BaseURL: cfg.WeatherBaseURL,
		Timeout: cfg.ProviderTimeout,
	})
	trafficClient := tomtom.NewClient(tomtom.ClientConfig{
		BaseURL: cfg.TrafficBaseURL,
		APIKey:  cfg.TomTomAPIKey,
		Timeout: cfg.ProviderTimeout,
	})

	return &Services{
		Repositories: repos,
		AirQuality: airquality.NewService(airquality.ServiceConfig{
			Provider: airQualityClient,
			Logger:   logger.With().Str("component", "airquality").Logger(),
			Metrics:  metrics,
		}),
		Traffic: traffic.NewService(traffic.ServiceConfig{
			Provider: trafficClient,
			Logger:   logger.With().Str("component", "traffic").Logger(),
			Metrics:  metrics,
		}),
		Quadrants: quadrant.NewService(quadrant.ServiceConfig{
			Readings: repos.Readings,
			Traffic:  repos.Samples,
			Stats:    repos.Stats,
			Logger:   logger.With().Str("component", "quadrant").Logger(),
		}),
		Weather: weather.NewService(weather.ServiceConfig{
			Provider: weatherClient,
			Logger:   logger.With().Str("component", "weather").Logger(),
			Metrics:  metrics,
			CacheTTL: cfg.WeatherCacheTTL,
		}),
		Tokens: auth.NewJWTService(auth.JWTConfig{SigningKey: cfg.IngestSigningKey}),
	}
}
