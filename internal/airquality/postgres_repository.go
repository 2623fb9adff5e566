package airquality

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL reading repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const insertReadingQuery = `
	INSERT INTO air_quality_readings (
		timestamp, latitude, longitude,
		pm25, pm10, no2, o3, co,
		source, raw_data
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	RETURNING id
`

const selectReadingColumns = `
	SELECT
		id, timestamp, latitude, longitude,
		pm25, pm10, no2, o3, co,
		source, raw_data
	FROM air_quality_readings
`

// Store persists one reading.
func (r *PostgresRepository) Store(ctx context.Context, reading *Reading) error {
	batch := []Reading{*reading}
	if err := r.StoreBatch(ctx, batch); err != nil {
		return err
	}
	reading.ID = batch[0].ID
	return nil
}

// StoreBatch persists all readings in a single transaction.
func (r *PostgresRepository) StoreBatch(ctx context.Context, readings []Reading) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	ids := make([]int64, len(readings))
	for i := range readings {
		rd := &readings[i]
		err := tx.QueryRow(ctx, insertReadingQuery,
			rd.Timestamp, rd.Latitude, rd.Longitude,
			rd.PM25, rd.PM10, rd.NO2, rd.O3, rd.CO,
			rd.Source, rd.Raw,
		).Scan(&ids[i])
		if err != nil {
			return fmt.Errorf("insert reading %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit readings: %w", err)
	}

	for i := range readings {
		readings[i].ID = ids[i]
	}
	return nil
}

// Latest returns the most recent readings.
func (r *PostgresRepository) Latest(ctx context.Context, limit int) ([]Reading, error) {
	query := selectReadingColumns + `
		ORDER BY timestamp DESC, id DESC
		LIMIT $1
	`
	return r.query(ctx, query, limit)
}

// LatestBySource returns the most recent readings from one source.
func (r *PostgresRepository) LatestBySource(ctx context.Context, source string, limit int) ([]Reading, error) {
	query := selectReadingColumns + `
		WHERE source = $1
		ORDER BY timestamp DESC, id DESC
		LIMIT $2
	`
	return r.query(ctx, query, source, limit)
}

// InRange returns a page of readings within a time range.
func (r *PostgresRepository) InRange(ctx context.Context, q RangeQuery) ([]Reading, error) {
	query := selectReadingColumns + `
		WHERE timestamp >= $1 AND timestamp <= $2
		ORDER BY timestamp DESC, id DESC
		LIMIT $3 OFFSET $4
	`
	return r.query(ctx, query, q.From, q.To, q.Limit, q.Offset)
}

// CountInRange counts readings within a time range.
func (r *PostgresRepository) CountInRange(ctx context.Context, from, to time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM air_quality_readings
		WHERE timestamp >= $1 AND timestamp <= $2
	`, from, to).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count readings: %w", err)
	}
	return count, nil
}

func (r *PostgresRepository) query(ctx context.Context, query string, args ...any) ([]Reading, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query readings: %w", err)
	}

	readings, err := pgx.CollectRows(rows, scanReading)
	if err != nil {
		return nil, fmt.Errorf("scan readings: %w", err)
	}
	return readings, nil
}

func scanReading(row pgx.CollectableRow) (Reading, error) {
	var rd Reading
	err := row.Scan(
		&rd.ID,
		&rd.Timestamp,
		&rd.Latitude,
		&rd.Longitude,
		&rd.PM25,
		&rd.PM10,
		&rd.NO2,
		&rd.O3,
		&rd.CO,
		&rd.Source,
		&rd.Raw,
	)
	return rd, err
}

var _ Repository = (*PostgresRepository)(nil)
