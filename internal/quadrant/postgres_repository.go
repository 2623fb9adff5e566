package quadrant

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL statistics repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Store persists one statistics record.
func (r *PostgresRepository) Store(ctx context.Context, stats *Statistics) error {
	batch := []Statistics{*stats}
	if err := r.StoreBatch(ctx, batch); err != nil {
		return err
	}
	stats.ID = batch[0].ID
	return nil
}

// StoreBatch persists all records in a single transaction.
func (r *PostgresRepository) StoreBatch(ctx context.Context, stats []Statistics) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := `
		INSERT INTO quadrant_statistics (
			timestamp, quadrant_name,
			avg_pm25, avg_pm10, avg_no2, avg_o3, avg_co,
			traffic_intensity, additional_metrics
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	ids := make([]int64, len(stats))
	for i := range stats {
		s := &stats[i]
		err := tx.QueryRow(ctx, query,
			s.Timestamp, s.QuadrantName,
			s.AvgPM25, s.AvgPM10, s.AvgNO2, s.AvgO3, s.AvgCO,
			s.TrafficIntensity, s.Metrics,
		).Scan(&ids[i])
		if err != nil {
			return fmt.Errorf("insert statistics for %s: %w", s.QuadrantName, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit statistics: %w", err)
	}

	for i := range stats {
		stats[i].ID = ids[i]
	}
	return nil
}

// LatestByQuadrant returns the newest record for a quadrant.
func (r *PostgresRepository) LatestByQuadrant(ctx context.Context, name string) (*Statistics, error) {
	query := `
		SELECT
			id, timestamp, quadrant_name,
			avg_pm25, avg_pm10, avg_no2, avg_o3, avg_co,
			traffic_intensity, additional_metrics
		FROM quadrant_statistics
		WHERE quadrant_name = $1
		ORDER BY timestamp DESC, id DESC
		LIMIT 1
	`

	var s Statistics
	err := r.pool.QueryRow(ctx, query, name).Scan(
		&s.ID,
		&s.Timestamp,
		&s.QuadrantName,
		&s.AvgPM25,
		&s.AvgPM10,
		&s.AvgNO2,
		&s.AvgO3,
		&s.AvgCO,
		&s.TrafficIntensity,
		&s.Metrics,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStatisticsNotFound
		}
		return nil, fmt.Errorf("query statistics: %w", err)
	}
	return &s, nil
}

var _ Repository = (*PostgresRepository)(nil)
