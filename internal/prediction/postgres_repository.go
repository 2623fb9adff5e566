package prediction

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

// NewPostgresRepository creates a new PostgreSQL prediction repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// StoreBatch persists all predictions in a single transaction.
func (r *PostgresRepository) StoreBatch(ctx context.Context, predictions []Prediction) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := `
		INSERT INTO air_quality_predictions (
			timestamp, quadrant_name,
			predicted_pm25, predicted_pm10, predicted_no2, predicted_o3, predicted_co,
			confidence_level, model_metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	ids := make([]int64, len(predictions))
	for i := range predictions {
		p := &predictions[i]
		err := tx.QueryRow(ctx, query,
			p.Timestamp, p.QuadrantName,
			p.PredictedPM25, p.PredictedPM10, p.PredictedNO2, p.PredictedO3, p.PredictedCO,
			p.ConfidenceLevel, p.ModelMetadata,
		).Scan(&ids[i])
		if err != nil {
			return fmt.Errorf("insert prediction for %s: %w", p.QuadrantName, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit predictions: %w", err)
	}

	for i := range predictions {
		predictions[i].ID = ids[i]
	}
	return nil
}

// Latest returns the newest predictions, optionally for one quadrant.
func (r *PostgresRepository) Latest(ctx context.Context, quadrant string, limit int) ([]Prediction, error) {
	query := `
		SELECT
			id, timestamp, quadrant_name,
			predicted_pm25, predicted_pm10, predicted_no2, predicted_o3, predicted_co,
			confidence_level, model_metadata
		FROM air_quality_predictions
		WHERE ($1 = '' OR quadrant_name = $1)
		ORDER BY timestamp DESC, id DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, quadrant, limit)
	if err != nil {
		return nil, fmt.Errorf("query predictions: %w", err)
	}

	predictions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Prediction, error) {
		var p Prediction
		err := row.Scan(
			&p.ID,
			&p.Timestamp,
			&p.QuadrantName,
			&p.PredictedPM25,
			&p.PredictedPM10,
			&p.PredictedNO2,
			&p.PredictedO3,
			&p.PredictedCO,
			&p.ConfidenceLevel,
			&p.ModelMetadata,
		)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan predictions: %w", err)
	}
	return predictions, nil
}

var _ Repository = (*PostgresRepository)(nil)
