package ml

import (
	"context"
	"math"

	"riskstrat/pkg/errors"
)

// SearchConfig bounds a randomized hyperparameter search
type SearchConfig struct {
	Iterations int
	Folds      int
	Seed       int64
}

// SearchResult is the best candidate of one family, refit on all rows
type SearchResult struct {
	Family  string
	Params  Params
	CVScore float64
	Model   Regressor
	Tried   int
}

// Search samples up to cfg.Iterations distinct grid points, scores each with
// k-fold cross-validated R² and refits the best one on the full data.
func Search(ctx context.Context, fam Family, X [][]float64, y []float64, cfg SearchConfig) (*SearchResult, error) {
	if err := checkXY(X, y); err != nil {
		return nil, err
	}
	size := fam.Grid.Size()
	iters := cfg.Iterations
	if iters < 1 {
		iters = 1
	}
	if iters > size {
		iters = size
	}
	folds := KFold(len(X), cfg.Folds, cfg.Seed)
	order := permutation(size, cfg.Seed+int64(len(fam.Name)))

	var (
		best     *SearchResult
		failures errors.MultiError
	)
	for it := 0; it < iters; it++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		params := fam.Grid.At(order[it])
		score, err := crossValidate(fam, params, X, y, folds, cfg.Seed)
		if err != nil {
			failures.Add(errors.Wrapf(err, "%s [%s]", fam.Name, params))
			continue
		}
		if best == nil || score > best.CVScore {
			best = &SearchResult{Family: fam.Name, Params: params, CVScore: score}
		}
	}
	if best == nil {
		return nil, errors.Wrapf(failures.ToError(), "%s: every candidate failed", fam.Name)
	}

	model, err := fam.Build(best.Params, cfg.Seed).Fit(X, y)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: refit", fam.Name)
	}
	best.Model = model
	best.Tried = iters
	return best, nil
}

func crossValidate(fam Family, params Params, X [][]float64, y []float64, folds []Fold, seed int64) (float64, error) {
	var total float64
	for i, f := range folds {
		model, err := fam.Build(params, seed+int64(i)).Fit(Rows(X, f.Train), Values(y, f.Train))
		if err != nil {
			return 0, err
		}
		pred, err := predictAll(model, Rows(X, f.Test))
		if err != nil {
			return 0, err
		}
		total += Evaluate(pred, Values(y, f.Test)).R2
	}
	score := total / float64(len(folds))
	if math.IsNaN(score) {
		return 0, errors.New("cross-validated score is NaN")
	}
	return score, nil
}
