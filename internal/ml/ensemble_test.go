package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sumContrib(bias float64, contrib []float64) float64 {
	for _, c := range contrib {
		bias += c
	}
	return bias
}

func TestForest_FitsAndIsDeterministic(t *testing.T) {
	X, y := synthetic(300, 11)
	trainIdx, testIdx := TrainTestSplit(len(X), 0.2, 1)

	for _, extra := range []bool{false, true} {
		est := &ForestEstimator{NumTrees: 20, Tree: TreeParams{MaxDepth: 8}, Extra: extra, Seed: 42}
		m1, err := est.Fit(Rows(X, trainIdx), Values(y, trainIdx))
		require.NoError(t, err)
		m2, err := est.Fit(Rows(X, trainIdx), Values(y, trainIdx))
		require.NoError(t, err)

		p1, err := PredictAll(m1, Rows(X, testIdx))
		require.NoError(t, err)
		p2, err := PredictAll(m2, Rows(X, testIdx))
		require.NoError(t, err)
		assert.Equal(t, p1, p2, "extra=%v", extra)

		score := Evaluate(p1, Values(y, testIdx))
		assert.Greater(t, score.R2, 0.8, "extra=%v", extra)
	}
}

func TestForest_ContributionsSumToPrediction(t *testing.T) {
	X, y := synthetic(120, 12)
	m, err := (&ForestEstimator{NumTrees: 10, Tree: TreeParams{MaxDepth: 5}, Seed: 3}).Fit(X, y)
	require.NoError(t, err)
	forest := m.(*Forest)

	for _, x := range X[:10] {
		pred, err := forest.Predict(x)
		require.NoError(t, err)
		assert.InDelta(t, pred, sumContrib(forest.Contributions(x)), 1e-9)
	}
	assert.Equal(t, KindRandomForest, forest.Kind())
}

func TestBoosting_FitsAndDecomposes(t *testing.T) {
	X, y := synthetic(300, 13)
	m, err := (&BoostingEstimator{Stages: 80, LearningRate: 0.1, Subsample: 0.8, Seed: 5}).Fit(X, y)
	require.NoError(t, err)
	gb := m.(*Boosting)

	pred, err := PredictAll(gb, X)
	require.NoError(t, err)
	assert.Greater(t, Evaluate(pred, y).R2, 0.9)

	for _, x := range X[:10] {
		p, _ := gb.Predict(x)
		assert.InDelta(t, p, sumContrib(gb.Contributions(x)), 1e-9)
	}

	imp := gb.FeatureImportances()
	assert.Greater(t, imp[0], imp[2])
}

func TestRidge_RecoversCoefficients(t *testing.T) {
	X, y := synthetic(200, 14)
	m, err := (&RidgeEstimator{Alpha: 0.01}).Fit(X, y)
	require.NoError(t, err)
	lin := m.(*Linear)

	assert.InDelta(t, 4.0, lin.Coef[0], 0.05)
	assert.InDelta(t, 0.5, lin.Coef[1], 0.05)
	assert.InDelta(t, 0.0, lin.Coef[2], 0.05)

	x := X[0]
	p, err := lin.Predict(x)
	require.NoError(t, err)
	assert.InDelta(t, p, sumContrib(lin.Contributions(x)), 1e-9)
}

func TestRidge_PenaltyShrinks(t *testing.T) {
	X, y := synthetic(100, 15)
	weak, err := (&RidgeEstimator{Alpha: 0.01}).Fit(X, y)
	require.NoError(t, err)
	strong, err := (&RidgeEstimator{Alpha: 1e5}).Fit(X, y)
	require.NoError(t, err)

	assert.Less(t, abs(strong.(*Linear).Coef[0]), abs(weak.(*Linear).Coef[0]))
}

func TestOLS_Fits(t *testing.T) {
	X, y := synthetic(100, 16)
	m, err := (&OLSEstimator{}).Fit(X, y)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, m.(*Linear).Coef[0], 0.05)
	assert.Equal(t, KindOLS, m.Kind())
}

func TestOLS_TooFewRows(t *testing.T) {
	_, err := (&OLSEstimator{}).Fit([][]float64{{1, 2, 3}, {4, 5, 6}}, []float64{1, 2})
	assert.Error(t, err)
}

func TestFit_RejectsRaggedInput(t *testing.T) {
	_, err := (&RidgeEstimator{}).Fit([][]float64{{1, 2}, {3}}, []float64{1, 2})
	assert.Error(t, err)

	_, err = (&ForestEstimator{NumTrees: 2}).Fit(nil, nil)
	assert.Error(t, err)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
