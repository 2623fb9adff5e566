package traffic

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu       sync.RWMutex
	samples  []Sample
	nextID   int64
	storeErr error
	failAt   int
	failErr  error
}

// NewInMemoryRepository creates a new in-memory traffic repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{nextID: 1}
}

// FailStores makes subsequent store calls return err without writing.
func (r *InMemoryRepository) FailStores(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.storeErr = err
}

// FailAt makes the next StoreBatch fail on the sample at index after the
// earlier samples were written; the written samples are rolled back.
func (r *InMemoryRepository) FailAt(index int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failAt, r.failErr = index, err
}

// Store persists one sample.
func (r *InMemoryRepository) Store(_ context.Context, sample *Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.storeErr != nil {
		return r.storeErr
	}
	sample.ID = r.nextID
	r.nextID++
	r.samples = append(r.samples, *sample)
	return nil
}

// StoreBatch persists all samples or none.
func (r *InMemoryRepository) StoreBatch(_ context.Context, samples []Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.storeErr != nil {
		return r.storeErr
	}

	start, startID := len(r.samples), r.nextID
	ids := make([]int64, len(samples))
	for i := range samples {
		if r.failErr != nil && i == r.failAt {
			err := r.failErr
			r.samples, r.nextID, r.failErr = r.samples[:start], startID, nil
			return fmt.Errorf("insert traffic sample %s: %w", samples[i].AreaName, err)
		}
		ids[i] = r.nextID
		r.nextID++
		s := samples[i]
		s.ID = ids[i]
		r.samples = append(r.samples, s)
	}

	for i := range samples {
		samples[i].ID = ids[i]
	}
	return nil
}

// Latest returns the most recent samples.
func (r *InMemoryRepository) Latest(_ context.Context, limit int) ([]Sample, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Sample, len(r.samples))
	copy(out, r.samples)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID > out[j].ID
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Count returns the number of stored samples.
func (r *InMemoryRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.samples)
}

var _ Repository = (*InMemoryRepository)(nil)
