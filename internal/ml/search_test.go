package ml

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrid_AtCoversAllCombinations(t *testing.T) {
	g := Grid{"a": {1, 2}, "b": {10, 20, 30}}
	require.Equal(t, 6, g.Size())

	seen := map[string]bool{}
	for i := 0; i < g.Size(); i++ {
		seen[g.At(i).String()] = true
	}
	assert.Len(t, seen, 6)
	assert.Equal(t, 1, Grid{}.Size())
}

func TestKFold_PartitionsRows(t *testing.T) {
	folds := KFold(10, 3, 1)
	require.Len(t, folds, 3)

	count := map[int]int{}
	for _, f := range folds {
		assert.Equal(t, 10, len(f.Train)+len(f.Test))
		for _, i := range f.Test {
			count[i]++
		}
	}
	assert.Len(t, count, 10)
	for _, c := range count {
		assert.Equal(t, 1, c)
	}
}

func TestTrainTestSplit(t *testing.T) {
	train, test := TrainTestSplit(100, 0.2, 9)
	assert.Len(t, test, 20)
	assert.Len(t, train, 80)

	train2, test2 := TrainTestSplit(100, 0.2, 9)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)

	train, test = TrainTestSplit(2, 0.01, 1)
	assert.Len(t, train, 1)
	assert.Len(t, test, 1)
}

func TestSearch_PicksWorkingCandidate(t *testing.T) {
	X, y := synthetic(120, 21)
	fam := Families()[KindRidge]

	res, err := Search(context.Background(), fam, X, y, SearchConfig{Iterations: 3, Folds: 3, Seed: 7})
	require.NoError(t, err)
	assert.Equal(t, KindRidge, res.Family)
	assert.Equal(t, 3, res.Tried)
	assert.Greater(t, res.CVScore, 0.9)
	require.NotNil(t, res.Model)
}

func TestSearch_AllCandidatesFail(t *testing.T) {
	X := [][]float64{{1, 2, 3}, {2, 3, 4}, {3, 4, 5}, {4, 5, 6}}
	y := []float64{1, 2, 3, 4}

	_, err := Search(context.Background(), Families()[KindOLS], X, y, SearchConfig{Iterations: 1, Folds: 2, Seed: 1})
	assert.Error(t, err)
}

func TestSearch_HonorsContext(t *testing.T) {
	X, y := synthetic(30, 22)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Search(ctx, Families()[KindRidge], X, y, SearchConfig{Iterations: 2, Folds: 2})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEvaluate(t *testing.T) {
	s := Evaluate([]float64{1, 2, 3}, []float64{1, 2, 3})
	assert.InDelta(t, 1.0, s.R2, 1e-12)
	assert.Zero(t, s.MAE)

	s = Evaluate([]float64{1, 1}, []float64{2, 2})
	assert.Zero(t, s.R2)
	assert.InDelta(t, 1.0, s.MSE, 1e-12)
}
