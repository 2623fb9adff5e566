package airquality

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu       sync.RWMutex
	readings []Reading
	nextID   int64
	storeErr error
	failAt   int
	failErr  error
}

// NewInMemoryRepository creates a new in-memory reading repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{nextID: 1}
}

// FailStores makes subsequent store calls return err without writing.
// Pass nil to restore normal behavior.
func (r *InMemoryRepository) FailStores(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.storeErr = err
}

// FailAt makes the next StoreBatch insert readings one at a time and fail
// on the reading at index, discarding the ones already written.
func (r *InMemoryRepository) FailAt(index int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failAt, r.failErr = index, err
}

// Store persists one reading.
func (r *InMemoryRepository) Store(_ context.Context, reading *Reading) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.storeErr != nil {
		return r.storeErr
	}

	reading.ID = r.nextID
	r.nextID++
	r.readings = append(r.readings, *reading)
	return nil
}

// StoreBatch persists all readings or none.
func (r *InMemoryRepository) StoreBatch(_ context.Context, readings []Reading) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.storeErr != nil {
		return r.storeErr
	}

	start, startID := len(r.readings), r.nextID
	ids := make([]int64, len(readings))
	for i := range readings {
		if r.failErr != nil && i == r.failAt {
			err := r.failErr
			r.readings, r.nextID, r.failErr = r.readings[:start], startID, nil
			return fmt.Errorf("insert reading %d: %w", i, err)
		}
		ids[i] = r.nextID
		r.nextID++
		rd := readings[i]
		rd.ID = ids[i]
		r.readings = append(r.readings, rd)
	}

	for i := range readings {
		readings[i].ID = ids[i]
	}
	return nil
}

// Latest returns the most recent readings.
func (r *InMemoryRepository) Latest(_ context.Context, limit int) ([]Reading, error) {
	return r.filter(func(Reading) bool { return true }, limit, 0), nil
}

// LatestBySource returns the most recent readings from one source.
func (r *InMemoryRepository) LatestBySource(_ context.Context, source string, limit int) ([]Reading, error) {
	return r.filter(func(rd Reading) bool { return rd.Source == source }, limit, 0), nil
}

// InRange returns a page of readings within a time range.
func (r *InMemoryRepository) InRange(_ context.Context, q RangeQuery) ([]Reading, error) {
	return r.filter(inRange(q.From, q.To), q.Limit, q.Offset), nil
}

// CountInRange counts readings within a time range.
func (r *InMemoryRepository) CountInRange(_ context.Context, from, to time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	match := inRange(from, to)
	count := 0
	for _, rd := range r.readings {
		if match(rd) {
			count++
		}
	}
	return count, nil
}

// Count returns the number of stored readings.
func (r *InMemoryRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.readings)
}

func (r *InMemoryRepository) filter(match func(Reading) bool, limit, offset int) []Reading {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Reading
	for _, rd := range r.readings {
		if match(rd) {
			out = append(out, rd)
		}
	}
	SortNewestFirst(out)

	if offset >= len(out) {
		return []Reading{}
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func inRange(from, to time.Time) func(Reading) bool {
	return func(rd Reading) bool {
		return !rd.Timestamp.Before(from) && !rd.Timestamp.After(to)
	}
}

var _ Repository = (*InMemoryRepository)(nil)
