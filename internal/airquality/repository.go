package airquality

import (
	"context"
	"time"
)

// RangeQuery selects readings with From <= timestamp <= To.
type RangeQuery struct {
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}

// Repository defines the interface for reading persistence.
// All listing methods return readings newest first.
type Repository interface {
	// Store persists one reading and sets its ID.
	Store(ctx context.Context, reading *Reading) error

	// StoreBatch persists all readings in one transaction and sets their IDs.
	// On failure nothing is written.
	StoreBatch(ctx context.Context, readings []Reading) error

	// Latest returns the most recent readings.
	Latest(ctx context.Context, limit int) ([]Reading, error)

	// LatestBySource returns the most recent readings from one source.
	LatestBySource(ctx context.Context, source string, limit int) ([]Reading, error)

	// InRange returns a page of readings within a time range.
	InRange(ctx context.Context, q RangeQuery) ([]Reading, error)

	// CountInRange counts readings within a time range.
	CountInRange(ctx context.Context, from, to time.Time) (int, error)
}
