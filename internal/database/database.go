// Package database opens the PostgreSQL pool shared by the API, the worker
// and airectl, and applies the schema.
package database

import (
	"context"
	_ "embed"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

// migrationLockID serializes Migrate across the API and the worker when
// both start at once.
const migrationLockID int64 = 0x61697265

// Config describes how to reach PostgreSQL.
type Config struct {
	// URL, when set, takes precedence over the individual fields.
	URL string

	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration

	// ApplicationName is reported in pg_stat_activity.
	ApplicationName string

	// ConnectTimeout is how long Connect keeps retrying while PostgreSQL
	// is still starting. Zero tries once.
	ConnectTimeout time.Duration
}

// ConfigFromEnv reads DATABASE_URL or the DB_* variables.
func ConfigFromEnv() Config {
	return Config{
		URL:             os.Getenv("DATABASE_URL"),
		Host:            env("DB_HOST", "localhost"),
		Port:            envInt("DB_PORT", 5432),
		User:            env("DB_USER", "aire"),
		Password:        env("DB_PASSWORD", "localdev"),
		Database:        env("DB_NAME", "aire"),
		SSLMode:         env("DB_SSL_MODE", "disable"),
		MaxConns:        int32(envInt("DB_MAX_OPEN_CONNS", 10)), //nolint:gosec // small config value
		MinConns:        int32(envInt("DB_MAX_IDLE_CONNS", 2)),  //nolint:gosec // small config value
		ConnMaxLifetime: envDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		ApplicationName: env("DB_APPLICATION_NAME", "aire"),
		ConnectTimeout:  envDuration("DB_CONNECT_TIMEOUT", 30*time.Second),
	}
}

// ConnectionString returns URL, or a postgres:// URL built from the fields.
func (c Config) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": []string{c.SSLMode}}.Encode(),
	}
	return u.String()
}

// PoolConfig parses the connection string and applies the pool settings.
// Sessions run in UTC so timestamps round-trip unchanged.
func (c Config) PoolConfig() (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(c.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	if c.MaxConns > 0 {
		pc.MaxConns = c.MaxConns
	}
	if c.MinConns > 0 && c.MinConns <= pc.MaxConns {
		pc.MinConns = c.MinConns
	}
	if c.ConnMaxLifetime > 0 {
		pc.MaxConnLifetime = c.ConnMaxLifetime
	}

	params := pc.ConnConfig.RuntimeParams
	params["timezone"] = "UTC"
	if c.ApplicationName != "" {
		params["application_name"] = c.ApplicationName
	}
	return pc, nil
}

// Connect opens a pool and waits up to cfg.ConnectTimeout for PostgreSQL
// to answer a ping.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pc, err := cfg.PoolConfig()
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	var wait backoff.BackOff = &backoff.StopBackOff{}
	if cfg.ConnectTimeout > 0 {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = 250 * time.Millisecond
		eb.MaxInterval = 5 * time.Second
		eb.MaxElapsedTime = cfg.ConnectTimeout
		wait = eb
	}
	if err := backoff.Retry(func() error { return pool.Ping(ctx) }, backoff.WithContext(wait, ctx)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// Migrate applies the schema. Every statement is idempotent, and an
// advisory lock keeps concurrent callers from interleaving.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockID); err != nil {
			return fmt.Errorf("acquire migration lock: %w", err)
		}
		if _, err := tx.Exec(ctx, schema); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
		return nil
	})
}

// Schema returns the DDL applied by Migrate.
func Schema() string {
	return schema
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return fallback
}
