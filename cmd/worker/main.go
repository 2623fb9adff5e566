// Package main provides the entrypoint for the aire collection worker.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"github.com/aire-xalapa/aire/internal/app"
	"github.com/aire-xalapa/aire/internal/database"
	"github.com/aire-xalapa/aire/internal/telemetry"
	"github.com/aire-xalapa/aire/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "aire-worker"

	envErr := godotenv.Load()

	level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()
	if envErr != nil {
		log.Debug().Err(envErr).Msg("no .env file loaded")
	}

	log.Info().Str("build_time", BuildTime).Msg("starting aire worker")

	// Worker also exposes a health endpoint for the platform health check
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := telemetry.Init(ctx, telemetry.ConfigFromEnv(serviceName, Version))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	providerMetrics, err := telemetry.NewProviderMetrics(otel.GetMeterProvider())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize provider metrics")
	}

	dbConfig := database.ConfigFromEnv()
	dbConfig.ApplicationName = serviceName
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("failed to apply database schema")
	}

	services := app.NewServices(app.ConfigFromEnv(), app.PostgresRepositories(pool), log, providerMetrics)

	job := worker.NewCollectJob(worker.CollectJobConfig{
		Config:     worker.ConfigFromEnv(),
		Logger:     log.With().Str("component", "collect").Logger(),
		AirQuality: services.AirQuality,
		Readings:   services.Readings,
		Traffic:    services.Traffic,
		Samples:    services.Samples,
		Quadrants:  services.Quadrants,
	})

	scheduler := worker.NewScheduler(job, log)
	if err := scheduler.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}
	defer scheduler.Stop()

	// On-demand collection through Pub/Sub, when configured
	if projectID := os.Getenv("PUBSUB_PROJECT_ID"); projectID != "" {
		subscription := os.Getenv("PUBSUB_SUBSCRIPTION")
		if subscription == "" {
			subscription = "aire-collect"
		}

		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        projectID,
			SubscriptionName: subscription,
			Dispatcher:       worker.NewDispatcher(job, log),
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer func() {
			if err := handler.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close pubsub client")
			}
		}()

		go func() {
			if err := handler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  "healthy",
			"version": Version,
			"collect": job.MetricsSnapshot(),
		})
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health check server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
