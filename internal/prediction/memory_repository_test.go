package prediction_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aire-xalapa/aire/internal/prediction"
)

func TestInMemoryRepository_Latest(t *testing.T) {
	ctx := context.Background()
	repo := prediction.NewInMemoryRepository()

	base := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	batch := []prediction.Prediction{
		{Timestamp: base, QuadrantName: "Noroeste", PredictedPM25: 11},
		{Timestamp: base.Add(time.Hour), QuadrantName: "Sureste", PredictedPM25: 12},
		{Timestamp: base.Add(2 * time.Hour), QuadrantName: "Noroeste", PredictedPM25: 13},
	}
	require.NoError(t, repo.StoreBatch(ctx, batch))
	assert.Equal(t, int64(3), batch[2].ID)

	all, err := repo.Latest(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 13.0, all[0].PredictedPM25)

	filtered, err := repo.Latest(ctx, "Noroeste", 10)
	require.NoError(t, err)
	require.Len(t, filtered, 2)
	assert.Equal(t, 13.0, filtered[0].PredictedPM25)
	assert.Equal(t, 11.0, filtered[1].PredictedPM25)

	limited, err := repo.Latest(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
