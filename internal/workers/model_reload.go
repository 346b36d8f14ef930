package workers

import (
	"context"
	"time"

	"riskstrat/internal/attribution"
	"riskstrat/internal/features"
	"riskstrat/internal/model"
	"riskstrat/internal/scoring"
	"riskstrat/pkg/errors"
)

// ArtifactSource lists and loads persisted model sets
type ArtifactSource interface {
	List() ([]model.Meta, error)
	Load(path string) (*model.Set, error)
}

// ScorerHolder is the component serving predictions
type ScorerHolder interface {
	ModelVersion() string
	Swap(scorer *scoring.Scorer)
}

// CacheInvalidator drops cached predictions of a retired model version
type CacheInvalidator interface {
	Invalidate(ctx context.Context, modelVersion string) (int, error)
}

// ModelReloadWorker swaps in the newest model artifact when one appears
type ModelReloadWorker struct {
	*BaseWorker
	source   ArtifactSource
	holder   ScorerHolder
	mode     features.Mode
	registry model.Registry
	cache    CacheInvalidator
}

// NewModelReloadWorker creates the worker. registry and cache may be nil.
func NewModelReloadWorker(
	source ArtifactSource,
	holder ScorerHolder,
	mode features.Mode,
	registry model.Registry,
	cache CacheInvalidator,
	interval time.Duration,
	enabled bool,
) *ModelReloadWorker {
	return &ModelReloadWorker{
		BaseWorker: NewBaseWorker("model_reload", interval, enabled),
		source:     source,
		holder:     holder,
		mode:       mode,
		registry:   registry,
		cache:      cache,
	}
}

// Run loads the newest artifact if its version differs from the active one
func (w *ModelReloadWorker) Run(ctx context.Context) error {
	metas, err := w.source.List()
	if err != nil {
		return errors.Wrap(err, "list model artifacts")
	}
	if len(metas) == 0 {
		w.Log().Debug("No model artifacts yet")
		return nil
	}

	newest := metas[0]
	current := w.holder.ModelVersion()
	if newest.Version == current {
		return nil
	}

	set, err := w.source.Load(newest.Path)
	if err != nil {
		return errors.Wrapf(err, "load model %s", newest.Version)
	}
	scorer, err := BuildScorer(set, w.mode)
	if err != nil {
		return err
	}
	w.holder.Swap(scorer)
	w.Log().Infow("Model reloaded", "from", current, "to", set.Version(), "champion", set.Champion())

	if w.registry != nil {
		meta := set.Meta()
		meta.Path = newest.Path
		if err := w.registry.Register(ctx, meta, true); err != nil {
			w.Log().Warnw("Failed to activate model in registry", "version", set.Version(), "error", err)
		}
	}
	if w.cache != nil && current != "" {
		n, err := w.cache.Invalidate(ctx, current)
		if err != nil {
			w.Log().Warnw("Failed to invalidate cached predictions", "version", current, "error", err)
		} else {
			w.Log().Infow("Cached predictions invalidated", "version", current, "keys", n)
		}
	}
	return nil
}

// BuildScorer wires a loaded set with attribution and an inference preprocessor
func BuildScorer(set *model.Set, mode features.Mode) (*scoring.Scorer, error) {
	var explainer scoring.Explainer
	if set.Attributable() {
		explainer = attribution.NewExplainer()
	}
	scorer, err := scoring.NewScorer(set, explainer)
	if err != nil {
		return nil, err
	}
	return scorer.WithPreprocessor(features.NewPreprocessor(mode, features.InferenceDefaults)), nil
}
