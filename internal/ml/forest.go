package ml

import (
	"github.com/exascience/pargo/parallel"

	"riskstrat/pkg/errors"
)

const (
	KindRandomForest = "random_forest"
	KindExtraTrees   = "extra_trees"
)

// Forest averages an ensemble of regression trees
type Forest struct {
	Family    string
	Trees     []*Tree
	NFeatures int
}

// Kind implements Regressor
func (f *Forest) Kind() string { return f.Family }

// Predict implements Regressor
func (f *Forest) Predict(x []float64) (float64, error) {
	if len(x) != f.NFeatures {
		return 0, &errors.ShapeError{Expected: f.NFeatures, Got: len(x), Position: -1}
	}
	var sum float64
	for _, t := range f.Trees {
		sum += t.Nodes[t.leaf(x)].Value
	}
	return sum / float64(len(f.Trees)), nil
}

// Contributions averages per-tree path decompositions
func (f *Forest) Contributions(x []float64) (float64, []float64) {
	contrib := make([]float64, f.NFeatures)
	var bias float64
	for _, t := range f.Trees {
		b, c := t.Contributions(x)
		bias += b
		for j, v := range c {
			contrib[j] += v
		}
	}
	n := float64(len(f.Trees))
	for j := range contrib {
		contrib[j] /= n
	}
	return bias / n, contrib
}

// FeatureImportances averages normalized tree importances
func (f *Forest) FeatureImportances() []float64 {
	out := make([]float64, f.NFeatures)
	for _, t := range f.Trees {
		for j, v := range t.FeatureImportances() {
			out[j] += v
		}
	}
	return normalize(out)
}

// ForestEstimator fits random forests (bootstrap, exhaustive splits) or
// extra-trees (full sample, random thresholds)
type ForestEstimator struct {
	NumTrees int
	Tree     TreeParams
	Extra    bool
	Seed     int64
}

// Fit implements Estimator. Trees are grown in parallel, each with its own
// seeded generator so results do not depend on scheduling.
func (e *ForestEstimator) Fit(X [][]float64, y []float64) (Regressor, error) {
	if err := checkXY(X, y); err != nil {
		return nil, err
	}
	n := e.NumTrees
	if n < 1 {
		n = 1
	}
	params := e.Tree
	params.RandomSplits = e.Extra
	family := KindRandomForest
	if e.Extra {
		family = KindExtraTrees
	}

	trees := make([]*Tree, n)
	errs := make([]error, n)
	parallel.Range(0, n, 0, func(low, high int) {
		for i := low; i < high; i++ {
			rng := newRNG(e.Seed + int64(i)*7919 + 1)
			idx := make([]int, len(X))
			for k := range idx {
				if e.Extra {
					idx[k] = k
				} else {
					idx[k] = int(rng.Uint32n(uint32(len(X))))
				}
			}
			trees[i], errs[i] = growTree(X, y, idx, params, rng)
		}
	})
	for _, err := range errs {
		if err != nil {
			return nil, errors.Wrap(err, "grow forest")
		}
	}
	return &Forest{Family: family, Trees: trees, NFeatures: len(X[0])}, nil
}

func checkXY(X [][]float64, y []float64) error {
	if len(X) == 0 {
		return errors.Wrap(errors.ErrEmptyDataset, "fit")
	}
	if len(X) != len(y) {
		return errors.Wrapf(errors.ErrShapeMismatch, "%d rows but %d targets", len(X), len(y))
	}
	width := len(X[0])
	if width == 0 {
		return errors.Wrap(errors.ErrShapeMismatch, "zero-width design matrix")
	}
	for i, row := range X {
		if len(row) != width {
			return errors.Wrapf(errors.ErrShapeMismatch, "row %d has %d columns, expected %d", i, len(row), width)
		}
	}
	return nil
}
