package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskstrat/pkg/errors"
)

func TestStandardScaler(t *testing.T) {
	X := [][]float64{{1, 5}, {3, 5}, {5, 5}}
	s, err := FitScaler(X)
	require.NoError(t, err)

	assert.Equal(t, []float64{3, 5}, s.Mean)
	assert.Equal(t, 1.0, s.Scale[1], "constant column keeps unit scale")

	out, err := s.Transform([]float64{3, 5})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, out)

	all, err := s.TransformAll(X)
	require.NoError(t, err)
	assert.InDelta(t, -all[2][0], all[0][0], 1e-12)

	_, err = s.Transform([]float64{1})
	assert.True(t, errors.Is(err, errors.ErrShapeMismatch))
}

func TestFitScaler_Empty(t *testing.T) {
	_, err := FitScaler(nil)
	assert.True(t, errors.Is(err, errors.ErrEmptyDataset))
}
