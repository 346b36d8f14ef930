package ml

import (
	"fmt"
	"sort"
	"strings"
)

// Regressor predicts a single continuous target from a scaled feature vector
type Regressor interface {
	Predict(x []float64) (float64, error)
	// Kind identifies the model family for persistence and reporting
	Kind() string
}

// Contributor decomposes a prediction into a bias term plus one additive
// contribution per feature, so that bias + sum(contrib) == Predict(x)
type Contributor interface {
	Contributions(x []float64) (bias float64, contrib []float64)
}

// Importancer exposes native (impurity or coefficient based) feature importances
type Importancer interface {
	FeatureImportances() []float64
}

// Estimator fits a Regressor on a design matrix
type Estimator interface {
	Fit(X [][]float64, y []float64) (Regressor, error)
}

// Params is one hyperparameter combination. Values are numeric; integer
// parameters are truncated by the family builder.
type Params map[string]float64

// Int returns a parameter as int, or def when absent
func (p Params) Int(name string, def int) int {
	if v, ok := p[name]; ok {
		return int(v)
	}
	return def
}

// Float returns a parameter, or def when absent
func (p Params) Float(name string, def float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return def
}

// String renders parameters in a stable order for logs
func (p Params) String() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%g", k, p[k])
	}
	return strings.Join(parts, " ")
}

// Grid maps each hyperparameter to its candidate values
type Grid map[string][]float64

// Size returns the number of distinct combinations
func (g Grid) Size() int {
	n := 1
	for _, vals := range g {
		n *= len(vals)
	}
	return n
}

// keys returns grid parameter names in a stable order
func (g Grid) keys() []string {
	keys := make([]string, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// At decodes combination index i (0 <= i < Size) into concrete parameters
func (g Grid) At(i int) Params {
	p := make(Params, len(g))
	for _, k := range g.keys() {
		vals := g[k]
		p[k] = vals[i%len(vals)]
		i /= len(vals)
	}
	return p
}

// Family is a candidate estimator family with its search grid
type Family struct {
	Name  string
	Grid  Grid
	Build func(p Params, seed int64) Estimator
}

// predictAll runs a regressor over many rows
func predictAll(r Regressor, X [][]float64) ([]float64, error) {
	out := make([]float64, len(X))
	for i, x := range X {
		v, err := r.Predict(x)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// PredictAll runs a regressor over many rows
func PredictAll(r Regressor, X [][]float64) ([]float64, error) {
	return predictAll(r, X)
}
