package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskstrat/pkg/errors"
)

func allRows(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

func TestTree_StepFunction(t *testing.T) {
	X := [][]float64{{1}, {2}, {3}, {10}, {11}, {12}}
	y := []float64{0, 0, 0, 5, 5, 5}

	tree, err := growTree(X, y, allRows(len(X)), TreeParams{}, newRNG(1))
	require.NoError(t, err)

	assert.Equal(t, 1, tree.Depth())
	assert.InDelta(t, 6.5, tree.Nodes[0].Threshold, 1e-9)

	v, err := tree.Predict([]float64{2.5})
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)

	v, err = tree.Predict([]float64{100})
	require.NoError(t, err)
	assert.Equal(t, 5.0, v)
}

func TestTree_MaxDepthAndLeafSize(t *testing.T) {
	X, y := synthetic(200, 3)

	tree, err := growTree(X, y, allRows(len(X)), TreeParams{MaxDepth: 3, MinSamplesLeaf: 5}, newRNG(2))
	require.NoError(t, err)
	assert.LessOrEqual(t, tree.Depth(), 3)

	for _, n := range tree.Nodes {
		assert.GreaterOrEqual(t, n.Samples, 5)
	}
}

func TestTree_ContributionsSumToPrediction(t *testing.T) {
	X, y := synthetic(150, 4)
	tree, err := growTree(X, y, allRows(len(X)), TreeParams{MaxDepth: 5}, newRNG(5))
	require.NoError(t, err)

	for _, x := range X[:20] {
		pred, err := tree.Predict(x)
		require.NoError(t, err)
		bias, contrib := tree.Contributions(x)
		sum := bias
		for _, c := range contrib {
			sum += c
		}
		assert.InDelta(t, pred, sum, 1e-9)
	}
}

func TestTree_ImportanceFavorsSignal(t *testing.T) {
	X, y := synthetic(300, 6)
	tree, err := growTree(X, y, allRows(len(X)), TreeParams{MaxDepth: 4}, newRNG(7))
	require.NoError(t, err)

	imp := tree.FeatureImportances()
	require.Len(t, imp, 3)
	assert.Greater(t, imp[0], imp[1])
	assert.Greater(t, imp[0], imp[2])
	assert.InDelta(t, 1.0, imp[0]+imp[1]+imp[2], 1e-9)
}

func TestTree_PredictShapeMismatch(t *testing.T) {
	X, y := synthetic(20, 8)
	tree, err := growTree(X, y, allRows(len(X)), TreeParams{}, newRNG(9))
	require.NoError(t, err)

	_, err = tree.Predict([]float64{1, 2})
	assert.True(t, errors.Is(err, errors.ErrShapeMismatch))
}

func TestTree_ConstantTargetIsSingleLeaf(t *testing.T) {
	X := [][]float64{{1, 2}, {3, 4}, {5, 6}}
	y := []float64{7, 7, 7}
	tree, err := growTree(X, y, allRows(3), TreeParams{}, newRNG(1))
	require.NoError(t, err)
	assert.Len(t, tree.Nodes, 1)
	assert.Equal(t, 7.0, tree.Nodes[0].Value)
}

func TestNewRNG_ZeroSeedIsDeterministic(t *testing.T) {
	a, b := newRNG(0), newRNG(0)
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Uint32(), b.Uint32())
	}
}
