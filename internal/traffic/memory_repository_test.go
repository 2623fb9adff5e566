package traffic_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aire-xalapa/aire/internal/traffic"
)

func TestInMemoryRepository_Latest(t *testing.T) {
	ctx := context.Background()
	repo := traffic.NewInMemoryRepository()

	first := time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)
	require.NoError(t, repo.StoreBatch(ctx, traffic.FallbackSamples(first, nil)))
	require.NoError(t, repo.StoreBatch(ctx, traffic.FallbackSamples(first.Add(15*time.Minute), nil)))

	latest, err := repo.Latest(ctx, 5)
	require.NoError(t, err)
	require.Len(t, latest, 5)
	for _, s := range latest {
		assert.Equal(t, first.Add(15*time.Minute), s.Timestamp)
	}
}

func TestInMemoryRepository_FailedBatchLeavesStoreUnchanged(t *testing.T) {
	ctx := context.Background()
	repo := traffic.NewInMemoryRepository()

	repo.FailStores(errors.New("connection reset"))
	err := repo.StoreBatch(ctx, traffic.FallbackSamples(time.Now(), nil))
	require.Error(t, err)
	assert.Zero(t, repo.Count())
}

func TestInMemoryRepository_PartialBatchRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := traffic.NewInMemoryRepository()

	first := time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)
	require.NoError(t, repo.StoreBatch(ctx, traffic.FallbackSamples(first, nil)))
	before := repo.Count()

	batch := traffic.FallbackSamples(first.Add(15*time.Minute), nil)
	require.Greater(t, len(batch), 3)
	repo.FailAt(3, errors.New("congestion_level violates check constraint"))

	err := repo.StoreBatch(ctx, batch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), batch[3].AreaName)
	assert.Equal(t, before, repo.Count())

	latest, err := repo.Latest(ctx, 1)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, first, latest[0].Timestamp, "no sample of the failed batch survives")
}
