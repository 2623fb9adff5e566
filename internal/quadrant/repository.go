package quadrant

import "context"

// Repository defines the interface for quadrant statistics persistence.
type Repository interface {
	// Store persists one statistics record and sets its ID.
	Store(ctx context.Context, stats *Statistics) error

	// StoreBatch persists all records in one transaction and sets their IDs.
	// On failure nothing is written.
	StoreBatch(ctx context.Context, stats []Statistics) error

	// LatestByQuadrant returns the newest record for a quadrant.
	// Returns ErrStatisticsNotFound if none exists.
	LatestByQuadrant(ctx context.Context, name string) (*Statistics, error)
}
