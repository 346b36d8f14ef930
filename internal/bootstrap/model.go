package bootstrap

import (
	"riskstrat/internal/adapters/config"
	"riskstrat/internal/domain/patient"
	"riskstrat/internal/features"
	"riskstrat/internal/ml"
	"riskstrat/internal/model"
	"riskstrat/internal/scoring"
	"riskstrat/internal/workers"
	"riskstrat/pkg/errors"
)

// LoadScorer resolves the model to serve: ONNX files when all three are
// configured, else an explicit artifact path, else the newest artifact in store.
func LoadScorer(cfg config.ScoringConfig, store *model.FileStore, mode features.Mode) (*scoring.Scorer, error) {
	var (
		set *model.Set
		err error
	)
	switch {
	case cfg.UsesONNX():
		set, err = loadONNXSet(cfg)
	case cfg.ModelPath != "":
		set, err = store.Load(cfg.ModelPath)
	default:
		set, err = store.Latest()
	}
	if err != nil {
		return nil, err
	}
	return workers.BuildScorer(set, mode)
}

func loadONNXSet(cfg config.ScoringConfig) (*model.Set, error) {
	if err := ml.InitONNX(cfg.ONNXLibrary); err != nil {
		return nil, errors.Wrap(err, "failed to initialize ONNX runtime")
	}
	paths := map[patient.Horizon]string{
		patient.Horizon30: cfg.ONNXModel30D,
		patient.Horizon60: cfg.ONNXModel60D,
		patient.Horizon90: cfg.ONNXModel90D,
	}
	regs := make(map[patient.Horizon]ml.Regressor, len(paths))
	for h, path := range paths {
		r, err := ml.LoadONNXRegressor(path, len(patient.FeatureNames))
		if err != nil {
			for _, loaded := range regs {
				loaded.(*ml.ONNXRegressor).Destroy()
			}
			return nil, err
		}
		regs[h] = r
	}
	return model.NewExternalSet(patient.FeatureNames, nil, regs)
}
