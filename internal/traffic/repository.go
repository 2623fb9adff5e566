package traffic

import "context"

// Repository defines the interface for traffic sample persistence.
type Repository interface {
	// Store persists one sample and sets its ID.
	Store(ctx context.Context, sample *Sample) error

	// StoreBatch persists all samples in one transaction and sets their IDs.
	// On failure nothing is written.
	StoreBatch(ctx context.Context, samples []Sample) error

	// Latest returns the most recent samples, newest first.
	Latest(ctx context.Context, limit int) ([]Sample, error)
}
