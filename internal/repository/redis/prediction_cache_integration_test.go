package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskstrat/internal/repository/redis"
	"riskstrat/internal/testsupport"
)

func TestPredictionCache_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	client := testsupport.NewTestRedis(t)
	cache := redis.NewPredictionCache(client, time.Minute)
	ctx := context.Background()

	version := testsupport.UniqueVersion()
	vec := testsupport.Vector(70)

	_, hit, err := cache.Get(ctx, version, vec)
	require.NoError(t, err)
	assert.False(t, hit)

	pred := testsupport.NewPrediction("P001", version, 42)
	require.NoError(t, cache.Set(ctx, version, vec, pred))

	got, hit, err := cache.Get(ctx, version, vec)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Empty(t, got.PatientID)
	assert.Equal(t, uuid.Nil, got.ID)
	assert.InDelta(t, pred.Risk30D, got.Risk30D, 1e-12)
	assert.Equal(t, pred.Label, got.Label)
	assert.Equal(t, pred.TopFeatures, got.TopFeatures)
	assert.Equal(t, "P001", pred.PatientID, "caller's prediction is not modified")

	_, hit, err = cache.Get(ctx, testsupport.UniqueVersion(), vec)
	require.NoError(t, err)
	assert.False(t, hit)

	removed, err := cache.Invalidate(ctx, version)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}
