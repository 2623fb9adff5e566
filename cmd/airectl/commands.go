package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/aire-xalapa/aire/internal/airquality"
	"github.com/aire-xalapa/aire/internal/auth"
	"github.com/aire-xalapa/aire/internal/database"
	"github.com/aire-xalapa/aire/internal/worker"
)

func newMigrateCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the tables and indexes if they do not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.v.GetBool("print") {
				_, err := fmt.Fprint(cmd.OutOrStdout(), database.Schema())
				return err
			}

			ctx, cancel := c.context(cmd)
			defer cancel()

			pool, err := c.connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := database.Migrate(ctx, pool); err != nil {
				return err
			}
			c.logger.Info().Msg("schema applied")
			return nil
		},
	}
	cmd.Flags().Bool("print", false, "print the schema instead of applying it")
	return cmd
}

// collectSummary is printed by the collect command.
type collectSummary struct {
	Duration       string                `json:"duration"`
	Readings       int                   `json:"readings"`
	AirQualityLive bool                  `json:"air_quality_live"`
	Samples        int                   `json:"samples"`
	TrafficLive    bool                  `json:"traffic_live"`
	Statistics     int                   `json:"statistics"`
	Errors         []worker.CollectError `json:"errors,omitempty"`
}

func newCollectCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Run one collection: air quality, traffic and quadrant statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()

			pool, err := c.connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			services := c.services(pool)

			cfg := worker.DefaultCollectConfig()
			cfg.Timeout = c.v.GetDuration("timeout")
			cfg.CollectTraffic = !c.v.GetBool("skip-traffic")
			cfg.UpdateStats = !c.v.GetBool("skip-stats")

			job := worker.NewCollectJob(worker.CollectJobConfig{
				Config:     cfg,
				Logger:     c.logger,
				AirQuality: services.AirQuality,
				Readings:   services.Readings,
				Traffic:    services.Traffic,
				Samples:    services.Samples,
				Quadrants:  services.Quadrants,
			})

			result := job.Run(ctx)
			if err := printJSON(cmd, collectSummary{
				Duration:       result.Duration.Round(time.Millisecond).String(),
				Readings:       result.Readings,
				AirQualityLive: result.AirQualityLive,
				Samples:        result.Samples,
				TrafficLive:    result.TrafficLive,
				Statistics:     result.Statistics,
				Errors:         result.Errors,
			}); err != nil {
				return err
			}
			return result.Err()
		},
	}
	cmd.Flags().Bool("skip-traffic", false, "do not collect traffic")
	cmd.Flags().Bool("skip-stats", false, "do not update quadrant statistics")
	cmd.Flags().String("tomtom-api-key", "", "TomTom API key (default: TOMTOM_API_KEY)")
	return cmd
}

func newUpdateStatsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "update-stats",
		Short: "Recompute quadrant statistics from the latest stored readings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()

			pool, err := c.connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			stats, err := c.services(pool).Quadrants.UpdateStats(ctx)
			if errors.Is(err, airquality.ErrNoReadings) {
				c.logger.Warn().Msg("no readings stored yet")
				return nil
			}
			if err != nil {
				return err
			}
			return printJSON(cmd, stats)
		},
	}
}

// tokenOutput is printed by the token command.
type tokenOutput struct {
	Token     string    `json:"token"`
	Subject   string    `json:"subject"`
	Scopes    []string  `json:"scopes"`
	ExpiresAt time.Time `json:"expires_at"`
}

func newTokenCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a service token for the ingestion API",
		Long: `token signs a service token with the API's signing key. The key is read from
--signing-key, AIRE_SIGNING_KEY or INGEST_SIGNING_KEY, in that order.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key := c.v.GetString("signing-key")
			if key == "" {
				key = os.Getenv("INGEST_SIGNING_KEY")
			}

			jwtService := auth.NewJWTService(auth.JWTConfig{
				SigningKey: key,
				Expiry:     c.v.GetDuration("expiry"),
			})

			subject := c.v.GetString("subject")
			scopes := c.v.GetStringSlice("scope")
			token, expiresAt, err := jwtService.IssueServiceToken(subject, scopes...)
			if err != nil {
				return err
			}

			return printJSON(cmd, tokenOutput{
				Token:     token,
				Subject:   subject,
				Scopes:    scopes,
				ExpiresAt: expiresAt.UTC(),
			})
		},
	}
	cmd.Flags().String("signing-key", "", "HS256 signing key shared with the API")
	cmd.Flags().String("subject", "", "name of the calling service")
	cmd.Flags().StringSlice("scope", []string{auth.ScopePredictionsWrite}, "granted scopes")
	cmd.Flags().Duration("expiry", auth.DefaultTokenExpiry, "token lifetime")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
