package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aire-xalapa/aire/internal/app"
	"github.com/aire-xalapa/aire/internal/database"
)

// cli carries the configuration shared by every subcommand.
type cli struct {
	v       *viper.Viper
	cfgFile string
	logger  zerolog.Logger
}

// newRootCmd builds the airectl command tree. Flags can also be set through
// AIRE_-prefixed environment variables (--database-url is AIRE_DATABASE_URL)
// or a YAML config file.
func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}

	root := &cobra.Command{
		Use:           "airectl",
		Short:         "Operate the aire air quality service",
		Long:          `airectl applies the database schema, runs collections on demand and issues service tokens for the aire ingestion API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.init(cmd)
		},
	}

	root.PersistentFlags().StringVar(&c.cfgFile, "config", "", "config file (default is $HOME/.airectl.yaml)")
	root.PersistentFlags().String("database-url", "", "PostgreSQL URL (default: DB_* environment variables)")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().Duration("timeout", 2*time.Minute, "timeout for the whole command")

	root.AddCommand(
		newMigrateCmd(c),
		newCollectCmd(c),
		newUpdateStatsCmd(c),
		newTokenCmd(c),
	)

	return root
}

func (c *cli) init(cmd *cobra.Command) error {
	c.v.SetEnvPrefix("AIRE")
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	if err := c.v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}

	if c.cfgFile != "" {
		c.v.SetConfigFile(c.cfgFile)
		if err := c.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", c.cfgFile, err)
		}
	} else if home, err := os.UserHomeDir(); err == nil {
		c.v.AddConfigPath(home)
		c.v.SetConfigType("yaml")
		c.v.SetConfigName(".airectl")
		_ = c.v.ReadInConfig()
	}

	level, err := zerolog.ParseLevel(c.v.GetString("log-level"))
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	c.logger = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.Kitchen}).
		Level(level).
		With().
		Timestamp().
		Logger()

	return nil
}

// context returns a context bounded by --timeout.
func (c *cli) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), c.v.GetDuration("timeout"))
}

// connect opens the database named by --database-url or the DB_* variables.
func (c *cli) connect(ctx context.Context) (*pgxpool.Pool, error) {
	cfg := database.ConfigFromEnv()
	if url := c.v.GetString("database-url"); url != "" {
		cfg.URL = url
	}
	return database.Connect(ctx, cfg)
}

// services wires the domain services against the database.
func (c *cli) services(pool *pgxpool.Pool) *app.Services {
	cfg := app.ConfigFromEnv()
	if key := c.v.GetString("tomtom-api-key"); key != "" {
		cfg.TomTomAPIKey = key
	}
	return app.NewServices(cfg, app.PostgresRepositories(pool), c.logger, nil)
}
