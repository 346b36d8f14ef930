package ml

import (
	"sort"
)

// Families returns every supported estimator family keyed by name
func Families() map[string]Family {
	return map[string]Family{
		KindGradientBoosting: {
			Name: KindGradientBoosting,
			Grid: Grid{
				"stages":        {50, 100, 200},
				"learning_rate": {0.05, 0.1, 0.2},
				"max_depth":     {2, 3, 4},
				"subsample":     {0.8, 1.0},
			},
			Build: func(p Params, seed int64) Estimator {
				return &BoostingEstimator{
					Stages:       p.Int("stages", 100),
					LearningRate: p.Float("learning_rate", 0.1),
					Subsample:    p.Float("subsample", 1.0),
					Tree:         TreeParams{MaxDepth: p.Int("max_depth", 3), MinSamplesLeaf: 2},
					Seed:         seed,
				}
			},
		},
		KindRandomForest: {
			Name: KindRandomForest,
			Grid: Grid{
				"trees":            {50, 100},
				"max_depth":        {6, 10, 0},
				"min_samples_leaf": {1, 2, 4},
				"max_features":     {0.5, 1.0},
			},
			Build: func(p Params, seed int64) Estimator {
				return &ForestEstimator{
					NumTrees: p.Int("trees", 100),
					Tree: TreeParams{
						MaxDepth:       p.Int("max_depth", 0),
						MinSamplesLeaf: p.Int("min_samples_leaf", 1),
						MaxFeatures:    p.Float("max_features", 1.0),
					},
					Seed: seed,
				}
			},
		},
		KindExtraTrees: {
			Name: KindExtraTrees,
			Grid: Grid{
				"trees":            {50, 100},
				"max_depth":        {8, 12, 0},
				"min_samples_leaf": {1, 2},
				"max_features":     {0.5, 1.0},
			},
			Build: func(p Params, seed int64) Estimator {
				return &ForestEstimator{
					NumTrees: p.Int("trees", 100),
					Tree: TreeParams{
						MaxDepth:       p.Int("max_depth", 0),
						MinSamplesLeaf: p.Int("min_samples_leaf", 1),
						MaxFeatures:    p.Float("max_features", 1.0),
					},
					Extra: true,
					Seed:  seed,
				}
			},
		},
		KindRidge: {
			Name: KindRidge,
			Grid: Grid{"alpha": {0.01, 0.1, 1, 10, 100}},
			Build: func(p Params, _ int64) Estimator {
				return &RidgeEstimator{Alpha: p.Float("alpha", 1)}
			},
		},
		KindOLS: {
			Name: KindOLS,
			Grid: Grid{},
			Build: func(Params, int64) Estimator {
				return &OLSEstimator{}
			},
		},
	}
}

// FamilyNames lists supported family names in sorted order
func FamilyNames() []string {
	fams := Families()
	names := make([]string, 0, len(fams))
	for n := range fams {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
