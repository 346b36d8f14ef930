package ml

import (
	"gonum.org/v1/gonum/stat"

	"riskstrat/pkg/errors"
)

// StandardScaler centers each feature to zero mean and unit variance.
// Constant columns keep a scale of 1 so they transform to zero.
type StandardScaler struct {
	Mean  []float64
	Scale []float64
}

// FitScaler computes per-column mean and population standard deviation
func FitScaler(X [][]float64) (*StandardScaler, error) {
	if len(X) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyDataset, "fit scaler")
	}
	width := len(X[0])
	s := &StandardScaler{Mean: make([]float64, width), Scale: make([]float64, width)}

	col := make([]float64, len(X))
	for j := 0; j < width; j++ {
		for i, row := range X {
			if len(row) != width {
				return nil, errors.Wrapf(errors.ErrShapeMismatch, "row %d has %d columns, expected %d", i, len(row), width)
			}
			col[i] = row[j]
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		s.Mean[j] = mean
		if std == 0 {
			std = 1
		}
		s.Scale[j] = std
	}
	return s, nil
}

// Width returns the number of features the scaler was fitted on
func (s *StandardScaler) Width() int {
	return len(s.Mean)
}

// Transform returns a scaled copy of x
func (s *StandardScaler) Transform(x []float64) ([]float64, error) {
	if len(x) != len(s.Mean) {
		return nil, &errors.ShapeError{Expected: len(s.Mean), Got: len(x), Position: -1}
	}
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return out, nil
}

// TransformAll scales every row
func (s *StandardScaler) TransformAll(X [][]float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, x := range X {
		row, err := s.Transform(x)
		if err != nil {
			return nil, err
		}
		out[i] = row
	}
	return out, nil
}
