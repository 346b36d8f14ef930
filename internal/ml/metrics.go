package ml

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Score holds regression quality metrics for one evaluation
type Score struct {
	MAE float64 `json:"mae"`
	MSE float64 `json:"mse"`
	R2  float64 `json:"r2"`
}

// Evaluate compares predictions against targets. R² is 0 when the target has
// no variance.
func Evaluate(pred, y []float64) Score {
	if len(y) == 0 {
		return Score{}
	}
	var abs, sq float64
	for i := range y {
		d := y[i] - pred[i]
		abs += math.Abs(d)
		sq += d * d
	}
	n := float64(len(y))
	s := Score{MAE: abs / n, MSE: sq / n}
	if _, v := stat.PopMeanVariance(y, nil); v > 0 {
		s.R2 = stat.RSquaredFrom(pred, y, nil)
	}
	return s
}

// MeanStd returns the mean and population standard deviation
func MeanStd(v []float64) (float64, float64) {
	if len(v) == 0 {
		return 0, 0
	}
	return stat.PopMeanStdDev(v, nil)
}
