package quadrant

import (
	"context"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu       sync.RWMutex
	stats    []Statistics
	nextID   int64
	storeErr error
}

// NewInMemoryRepository creates a new in-memory statistics repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{nextID: 1}
}

// FailStores makes subsequent store calls return err without writing.
func (r *InMemoryRepository) FailStores(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.storeErr = err
}

// Store persists one statistics record.
func (r *InMemoryRepository) Store(ctx context.Context, stats *Statistics) error {
	batch := []Statistics{*stats}
	if err := r.StoreBatch(ctx, batch); err != nil {
		return err
	}
	stats.ID = batch[0].ID
	return nil
}

// StoreBatch persists all records or none.
func (r *InMemoryRepository) StoreBatch(_ context.Context, stats []Statistics) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.storeErr != nil {
		return r.storeErr
	}
	for i := range stats {
		stats[i].ID = r.nextID
		r.nextID++
		r.stats = append(r.stats, stats[i])
	}
	return nil
}

// LatestByQuadrant returns the newest record for a quadrant.
func (r *InMemoryRepository) LatestByQuadrant(_ context.Context, name string) (*Statistics, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *Statistics
	for i := range r.stats {
		s := &r.stats[i]
		if s.QuadrantName != name {
			continue
		}
		if latest == nil || !s.Timestamp.Before(latest.Timestamp) {
			latest = s
		}
	}
	if latest == nil {
		return nil, ErrStatisticsNotFound
	}

	cpy := *latest
	return &cpy, nil
}

// Count returns the number of stored records.
func (r *InMemoryRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.stats)
}

var _ Repository = (*InMemoryRepository)(nil)
