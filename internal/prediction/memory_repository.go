package prediction

import (
	"context"
	"sort"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu          sync.RWMutex
	predictions []Prediction
	nextID      int64
}

// NewInMemoryRepository creates a new in-memory prediction repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{nextID: 1}
}

// StoreBatch persists all predictions.
func (r *InMemoryRepository) StoreBatch(_ context.Context, predictions []Prediction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range predictions {
		predictions[i].ID = r.nextID
		r.nextID++
		r.predictions = append(r.predictions, predictions[i])
	}
	return nil
}

// Latest returns the newest predictions.
func (r *InMemoryRepository) Latest(_ context.Context, quadrant string, limit int) ([]Prediction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Prediction, 0, len(r.predictions))
	for _, p := range r.predictions {
		if quadrant == "" || p.QuadrantName == quadrant {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ Repository = (*InMemoryRepository)(nil)
