package ml

import (
	"github.com/valyala/fastrand"

	"riskstrat/pkg/errors"
)

const KindGradientBoosting = "gradient_boosting"

// Boosting is a squared-loss gradient boosted tree ensemble
type Boosting struct {
	Init         float64
	LearningRate float64
	Trees        []*Tree
	NFeatures    int
}

// Kind implements Regressor
func (b *Boosting) Kind() string { return KindGradientBoosting }

// Predict implements Regressor
func (b *Boosting) Predict(x []float64) (float64, error) {
	if len(x) != b.NFeatures {
		return 0, &errors.ShapeError{Expected: b.NFeatures, Got: len(x), Position: -1}
	}
	out := b.Init
	for _, t := range b.Trees {
		out += b.LearningRate * t.Nodes[t.leaf(x)].Value
	}
	return out, nil
}

// Contributions sums scaled per-stage path decompositions
func (b *Boosting) Contributions(x []float64) (float64, []float64) {
	contrib := make([]float64, b.NFeatures)
	bias := b.Init
	for _, t := range b.Trees {
		tb, tc := t.Contributions(x)
		bias += b.LearningRate * tb
		for j, v := range tc {
			contrib[j] += b.LearningRate * v
		}
	}
	return bias, contrib
}

// FeatureImportances sums stage impurity decreases
func (b *Boosting) FeatureImportances() []float64 {
	out := make([]float64, b.NFeatures)
	for _, t := range b.Trees {
		for j, v := range t.Importance {
			out[j] += v
		}
	}
	return normalize(out)
}

// BoostingEstimator fits Boosting models. Stages are sequential by nature.
type BoostingEstimator struct {
	Stages       int
	LearningRate float64
	Subsample    float64 // fraction of rows per stage, 0 or >=1 means all
	Tree         TreeParams
	Seed         int64
}

// Fit implements Estimator
func (e *BoostingEstimator) Fit(X [][]float64, y []float64) (Regressor, error) {
	if err := checkXY(X, y); err != nil {
		return nil, err
	}
	stages := e.Stages
	if stages < 1 {
		stages = 1
	}
	lr := e.LearningRate
	if lr <= 0 {
		lr = 0.1
	}
	params := e.Tree
	if params.MaxDepth == 0 {
		params.MaxDepth = 3
	}

	var init float64
	for _, v := range y {
		init += v
	}
	init /= float64(len(y))

	pred := make([]float64, len(y))
	for i := range pred {
		pred[i] = init
	}
	resid := make([]float64, len(y))
	rng := newRNG(e.Seed + 1)

	model := &Boosting{Init: init, LearningRate: lr, NFeatures: len(X[0])}
	for s := 0; s < stages; s++ {
		for i := range y {
			resid[i] = y[i] - pred[i]
		}
		idx := e.sampleRows(len(y), rng)
		t, err := growTree(X, resid, idx, params, rng)
		if err != nil {
			return nil, errors.Wrapf(err, "boosting stage %d", s)
		}
		model.Trees = append(model.Trees, t)
		for i, x := range X {
			pred[i] += lr * t.Nodes[t.leaf(x)].Value
		}
	}
	return model, nil
}

func (e *BoostingEstimator) sampleRows(n int, rng *fastrand.RNG) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	if e.Subsample <= 0 || e.Subsample >= 1 {
		return idx
	}
	k := int(e.Subsample * float64(n))
	if k < 2 {
		k = 2
	}
	if k > n {
		k = n
	}
	for i := 0; i < k; i++ {
		j := i + int(rng.Uint32n(uint32(n-i)))
		idx[i], idx[j] = idx[j], idx[i]
	}
	return idx[:k]
}
