package prediction

import "context"

// Repository defines the interface for prediction persistence.
type Repository interface {
	// StoreBatch persists all predictions in one transaction and sets their IDs.
	StoreBatch(ctx context.Context, predictions []Prediction) error

	// Latest returns the newest predictions. An empty quadrant matches all.
	Latest(ctx context.Context, quadrant string, limit int) ([]Prediction, error)
}
