package traffic

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL traffic repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Store persists one sample.
func (r *PostgresRepository) Store(ctx context.Context, sample *Sample) error {
	batch := []Sample{*sample}
	if err := r.StoreBatch(ctx, batch); err != nil {
		return err
	}
	sample.ID = batch[0].ID
	return nil
}

// StoreBatch persists all samples in a single transaction.
func (r *PostgresRepository) StoreBatch(ctx context.Context, samples []Sample) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := `
		INSERT INTO traffic_data (
			timestamp, latitude, longitude, area_name,
			current_speed, free_flow_speed,
			congestion_percentage, congestion_level, raw_data
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	ids := make([]int64, len(samples))
	for i := range samples {
		s := &samples[i]
		err := tx.QueryRow(ctx, query,
			s.Timestamp, s.Latitude, s.Longitude, s.AreaName,
			s.CurrentSpeed, s.FreeFlowSpeed,
			s.CongestionPercentage, string(s.Level), s.Raw,
		).Scan(&ids[i])
		if err != nil {
			return fmt.Errorf("insert traffic sample %s: %w", s.AreaName, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit traffic samples: %w", err)
	}

	for i := range samples {
		samples[i].ID = ids[i]
	}
	return nil
}

// Latest returns the most recent samples.
func (r *PostgresRepository) Latest(ctx context.Context, limit int) ([]Sample, error) {
	query := `
		SELECT
			id, timestamp, latitude, longitude, area_name,
			current_speed, free_flow_speed,
			congestion_percentage, congestion_level, raw_data
		FROM traffic_data
		ORDER BY timestamp DESC, id DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query traffic samples: %w", err)
	}

	samples, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Sample, error) {
		var s Sample
		var level string
		err := row.Scan(
			&s.ID,
			&s.Timestamp,
			&s.Latitude,
			&s.Longitude,
			&s.AreaName,
			&s.CurrentSpeed,
			&s.FreeFlowSpeed,
			&s.CongestionPercentage,
			&level,
			&s.Raw,
		)
		s.Level = Level(level)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan traffic samples: %w", err)
	}
	return samples, nil
}

var _ Repository = (*PostgresRepository)(nil)
