package ml

import (
	"fmt"
	"math"

	"github.com/sajari/regression"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"riskstrat/pkg/errors"
)

const (
	KindRidge = "ridge"
	KindOLS   = "ols"
)

// Linear is a fitted linear model y = Intercept + Coef·x
type Linear struct {
	Family    string
	Intercept float64
	Coef      []float64
}

// Kind implements Regressor
func (l *Linear) Kind() string { return l.Family }

// Predict implements Regressor
func (l *Linear) Predict(x []float64) (float64, error) {
	if len(x) != len(l.Coef) {
		return 0, &errors.ShapeError{Expected: len(l.Coef), Got: len(x), Position: -1}
	}
	out := l.Intercept
	for j, c := range l.Coef {
		out += c * x[j]
	}
	return out, nil
}

// Contributions returns coef*x per feature with the intercept as bias
func (l *Linear) Contributions(x []float64) (float64, []float64) {
	contrib := make([]float64, len(l.Coef))
	if len(x) != len(l.Coef) {
		return l.Intercept, contrib
	}
	for j, c := range l.Coef {
		contrib[j] = c * x[j]
	}
	return l.Intercept, contrib
}

// FeatureImportances returns normalized absolute coefficients
func (l *Linear) FeatureImportances() []float64 {
	return normalize(l.Coef)
}

// RidgeEstimator solves the L2-penalized normal equations on centered data.
// The intercept is not penalized.
type RidgeEstimator struct {
	Alpha float64
}

// Fit implements Estimator
func (e *RidgeEstimator) Fit(X [][]float64, y []float64) (Regressor, error) {
	if err := checkXY(X, y); err != nil {
		return nil, err
	}
	n, p := len(X), len(X[0])

	means := make([]float64, p)
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		for i := range X {
			col[i] = X[i][j]
		}
		means[j] = stat.Mean(col, nil)
	}
	yMean := stat.Mean(y, nil)

	xc := mat.NewDense(n, p, nil)
	yc := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			xc.Set(i, j, X[i][j]-means[j])
		}
		yc.SetVec(i, y[i]-yMean)
	}

	var gram mat.Dense
	gram.Mul(xc.T(), xc)
	for j := 0; j < p; j++ {
		gram.Set(j, j, gram.At(j, j)+e.Alpha)
	}
	var rhs mat.VecDense
	rhs.MulVec(xc.T(), yc)

	var w mat.VecDense
	if err := w.SolveVec(&gram, &rhs); err != nil {
		return nil, errors.Wrap(err, "ridge solve")
	}

	coef := make([]float64, p)
	intercept := yMean
	for j := 0; j < p; j++ {
		coef[j] = w.AtVec(j)
		intercept -= coef[j] * means[j]
	}
	model := &Linear{Family: KindRidge, Intercept: intercept, Coef: coef}
	if err := model.checkFinite(); err != nil {
		return nil, err
	}
	return model, nil
}

// OLSEstimator fits ordinary least squares with no penalty
type OLSEstimator struct{}

// Fit implements Estimator
func (e *OLSEstimator) Fit(X [][]float64, y []float64) (model Regressor, err error) {
	defer func() {
		if r := recover(); r != nil {
			model, err = nil, errors.Newf("ols: %v", r)
		}
	}()
	if err := checkXY(X, y); err != nil {
		return nil, err
	}
	p := len(X[0])
	if len(X) <= p {
		return nil, errors.Newf("ols: %d rows cannot determine %d coefficients", len(X), p+1)
	}

	r := new(regression.Regression)
	r.SetObserved("risk")
	for j := 0; j < p; j++ {
		r.SetVar(j, fmt.Sprintf("x%d", j))
	}
	for i, row := range X {
		r.Train(regression.DataPoint(y[i], row))
	}
	if err := r.Run(); err != nil {
		return nil, errors.Wrap(err, "ols run")
	}

	coeffs := r.GetCoeffs()
	if len(coeffs) != p+1 {
		return nil, errors.Newf("ols: expected %d coefficients, got %d", p+1, len(coeffs))
	}
	coef := make([]float64, p)
	copy(coef, coeffs[1:])
	fitted := &Linear{Family: KindOLS, Intercept: coeffs[0], Coef: coef}
	if err := fitted.checkFinite(); err != nil {
		return nil, err
	}
	return fitted, nil
}

// checkFinite rejects solutions from rank-deficient designs
func (l *Linear) checkFinite() error {
	if math.IsNaN(l.Intercept) || math.IsInf(l.Intercept, 0) {
		return errors.Newf("%s: non-finite intercept", l.Family)
	}
	for j, c := range l.Coef {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return errors.Newf("%s: non-finite coefficient at %d", l.Family, j)
		}
	}
	return nil
}
