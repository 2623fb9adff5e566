// Package main provides the entrypoint for the aire API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/aire-xalapa/aire/internal/api"
	"github.com/aire-xalapa/aire/internal/api/middleware"
	"github.com/aire-xalapa/aire/internal/app"
	"github.com/aire-xalapa/aire/internal/database"
	"github.com/aire-xalapa/aire/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const (
	serviceName     = "aire-api"
	shutdownTimeout = 30 * time.Second
)

func main() {
	// .env must be loaded before LOG_LEVEL is read.
	envErr := godotenv.Load()

	log := zerolog.New(os.Stdout).
		Level(logLevel(os.Getenv("LOG_LEVEL"))).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()
	if envErr != nil {
		log.Debug().Err(envErr).Msg("no .env file loaded")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, log); err != nil {
		log.Error().Err(err).Msg("aire API stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("server stopped")
}

func run(ctx context.Context, log zerolog.Logger) error {
	log.Info().Str("build_time", BuildTime).Msg("starting aire API")

	telemetryConfig := telemetry.ConfigFromEnv(serviceName, Version)
	tp, err := telemetry.Init(ctx, telemetryConfig)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(flushCtx); err != nil {
			log.Error().Err(err).Msg("failed to flush telemetry")
		}
	}()
	if telemetryConfig.Enabled {
		log.Info().
			Str("otlp_endpoint", telemetryConfig.OTLPEndpoint).
			Float64("sample_ratio", telemetryConfig.SampleRatio).
			Msg("OpenTelemetry initialized")
	}

	httpMetrics, err := middleware.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		return fmt.Errorf("init http metrics: %w", err)
	}
	providerMetrics, err := telemetry.NewProviderMetrics(otel.GetMeterProvider())
	if err != nil {
		return fmt.Errorf("init provider metrics: %w", err)
	}

	dbConfig := database.ConfigFromEnv()
	dbConfig.ApplicationName = serviceName
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Database).
		Msg("database connected")

	if err := database.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	services := app.NewServices(app.ConfigFromEnv(), app.PostgresRepositories(pool), log, providerMetrics)
	if !services.Tokens.Enabled() {
		log.Warn().Msg("INGEST_SIGNING_KEY not set, prediction ingestion is disabled")
	}

	server := &http.Server{
		Addr: ":" + envOr("APP_PORT", "8080"),
		Handler: api.NewRouter(api.RouterConfig{
			Version:           Version,
			BuildTime:         BuildTime,
			Logger:            log,
			ServiceName:       serviceName,
			Metrics:           httpMetrics,
			RequireTLS:        os.Getenv("REQUIRE_TLS") == "true",
			RateLimits:        middleware.RateLimitsFromEnv(),
			DB:                pool,
			Tokens:            services.Tokens,
			AirQualityService: services.AirQuality,
			Readings:          services.Readings,
			TrafficService:    services.Traffic,
			TrafficSamples:    services.Samples,
			QuadrantService:   services.Quadrants,
			Predictions:       services.Predictions,
			WeatherService:    services.Weather,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second, // live collection calls several providers
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// logLevel parses LOG_LEVEL, defaulting to info.
func logLevel(s string) zerolog.Level {
	level, err := zerolog.ParseLevel(s)
	if err != nil || s == "" {
		return zerolog.InfoLevel
	}
	return level
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
