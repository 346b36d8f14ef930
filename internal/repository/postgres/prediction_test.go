package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskstrat/internal/ml"
	"riskstrat/internal/model"
	"riskstrat/internal/repository/postgres"
	"riskstrat/internal/testsupport"
	"riskstrat/pkg/errors"
)

func TestPredictionRepository_StoreAndGetLatest(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	db := testsupport.NewTestPostgres(t)
	repo := postgres.NewPredictionRepository(db.Tx())
	ctx := context.Background()

	patientID := testsupport.UniquePatientID()
	version := testsupport.UniqueVersion()

	older := testsupport.NewPrediction(patientID, version, 30)
	older.CreatedAt = older.CreatedAt.Add(-time.Hour)
	require.NoError(t, repo.Store(ctx, older, testsupport.Vector(60)))

	newer := testsupport.NewPrediction(patientID, version, 85)
	require.NoError(t, repo.Store(ctx, newer, testsupport.Vector(82)))

	got, err := repo.GetLatest(ctx, patientID)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, got.ID)
	assert.Equal(t, newer.Label, got.Label)
	assert.Equal(t, newer.TopFeatures, got.TopFeatures)
	assert.InDelta(t, 89, got.Risk90D, 1e-9)

	_, err = repo.GetLatest(ctx, testsupport.UniquePatientID())
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestPredictionRepository_FindSimilar(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	db := testsupport.NewTestPostgres(t)
	repo := postgres.NewPredictionRepository(db.Tx())
	ctx := context.Background()
	version := testsupport.UniqueVersion()

	for _, age := range []float64{20, 50, 79, 81} {
		p := testsupport.NewPrediction(testsupport.UniquePatientID(), version, age)
		require.NoError(t, repo.Store(ctx, p, testsupport.Vector(age)))
	}

	similar, err := repo.FindSimilar(ctx, testsupport.Vector(80), 2)
	require.NoError(t, err)
	require.Len(t, similar, 2)
	for _, p := range similar {
		assert.InDelta(t, 80, p.Risk30D, 1.01)
	}

	none, err := repo.FindSimilar(ctx, testsupport.Vector(80), 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPredictionRepository_StoreFillsIdentity(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	db := testsupport.NewTestPostgres(t)
	repo := postgres.NewPredictionRepository(db.Tx())

	p := testsupport.NewPrediction(testsupport.UniquePatientID(), testsupport.UniqueVersion(), 10)
	p.ID = uuid.Nil
	p.CreatedAt = time.Time{}
	require.NoError(t, repo.Store(context.Background(), p, testsupport.Vector(40)))
	assert.NotEqual(t, uuid.Nil, p.ID)
	assert.False(t, p.CreatedAt.IsZero())

	counts, err := repo.CountByLabel(context.Background(), p.ModelVersion)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[p.Label])
}

func TestModelRegistry_RegisterAndActivate(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	db := testsupport.NewTestPostgres(t)
	registry := postgres.NewModelRegistry(db.Tx())
	ctx := context.Background()

	first := model.Meta{
		ID:           uuid.NewString(),
		Version:      testsupport.UniqueVersion(),
		CreatedAt:    time.Now().UTC().Add(-time.Minute).Truncate(time.Millisecond),
		FeatureNames: []string{"AGE", "BMI"},
		Champion:     ml.KindRandomForest,
		Metrics:      map[string]ml.Score{"RISK_30D": {MAE: 1, MSE: 2, R2: 0.9}},
		Importances:  []model.Importance{{Feature: "AGE", Value: 0.7}},
		Path:         "/models/a.bin.gz",
	}
	second := first
	second.ID = uuid.NewString()
	second.Version = testsupport.UniqueVersion()
	second.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	second.Champion = ml.KindGradientBoosting

	require.NoError(t, registry.Register(ctx, first, true))
	require.NoError(t, registry.Register(ctx, second, true))

	active, err := registry.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.Version, active.Version)
	assert.Equal(t, ml.KindGradientBoosting, active.Champion)
	assert.InDelta(t, 0.9, active.Metrics["RISK_30D"].R2, 1e-12)
	assert.Equal(t, "AGE", active.Importances[0].Feature)

	list, err := registry.List(ctx, 10)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(list), 2)

	bad := first
	bad.ID = "not-a-uuid"
	assert.ErrorIs(t, registry.Register(ctx, bad, false), errors.ErrInvalidInput)
}
