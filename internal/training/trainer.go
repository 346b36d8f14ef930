package training

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"riskstrat/internal/attribution"
	"riskstrat/internal/domain/patient"
	"riskstrat/internal/features"
	"riskstrat/internal/metrics"
	"riskstrat/internal/ml"
	"riskstrat/internal/model"
	"riskstrat/pkg/errors"
	"riskstrat/pkg/logger"
)

// Importance sources
const (
	SourceAttribution = "attribution"
	SourceNative      = "native"
)

// Candidate is the outcome of searching one estimator family across all horizons
type Candidate struct {
	Family      string                        `json:"family"`
	Params      map[patient.Horizon]ml.Params `json:"params,omitempty"`
	CVScore     map[patient.Horizon]float64   `json:"cv_score,omitempty"`
	TestMetrics map[patient.Horizon]ml.Score  `json:"test_metrics,omitempty"`
	MeanCV      float64                       `json:"mean_cv"`
	MeanTestR2  float64                       `json:"mean_test_r2"`
	Err         error                         `json:"-"`

	regressors map[patient.Horizon]ml.Regressor
}

// Fitted reports whether the family produced a model for every horizon
func (c *Candidate) Fitted() bool {
	return c.Err == nil
}

// Result is the outcome of a training run
type Result struct {
	Set              *model.Set
	Champion         string
	Candidates       []Candidate
	Metrics          map[patient.Horizon]ml.Score
	Importances      []model.Importance
	ImportanceSource string
	Confusion        *ConfusionMatrix

	TotalRows    int
	DroppedRows  int
	RejectedRows []features.Failure
	TrainRows    int
	TestRows     int
	// MissingLabels wraps ErrMissingLabels when rows were dropped for missing targets
	MissingLabels error
	Duration      time.Duration
}

// Trainer fits one regressor per horizon and selects a champion family
type Trainer struct {
	cfg       Config
	pre       *features.Preprocessor
	explainer *attribution.Explainer
	log       *logger.Logger
}

// NewTrainer creates a trainer. Preprocessing uses the training defaults
// (absent fields are zero) in the configured mode.
func NewTrainer(cfg Config) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Trainer{
		cfg:       cfg,
		pre:       features.NewPreprocessor(cfg.Mode, features.TrainingDefaults),
		explainer: attribution.NewExplainer(),
		log:       logger.Get().Component("trainer"),
	}, nil
}

// prepared holds the design matrix after label filtering and preprocessing
type prepared struct {
	vectors []patient.FeatureVector
	targets map[patient.Horizon][]float64
	dropped int
	failed  []features.Failure
}

// Train runs the full pipeline on labeled records. Rows missing any horizon
// label are dropped; an empty remainder or a run where every family fails is fatal.
func (t *Trainer) Train(ctx context.Context, rows []patient.LabeledRecord) (res *Result, err error) {
	start := time.Now()
	preset := string(t.cfg.Preset)
	if t.cfg.Budget.Iterations > 0 {
		preset = "custom"
	}
	defer func() {
		metrics.RecordTrainingRun(preset, time.Since(start), err)
	}()

	budget, err := t.cfg.budget()
	if err != nil {
		return nil, err
	}

	data, err := t.prepare(rows)
	if err != nil {
		return nil, err
	}

	n := len(data.vectors)
	trainIdx, testIdx := ml.TrainTestSplit(n, t.cfg.Holdout, t.cfg.Seed)
	if len(trainIdx) < budget.Folds || len(testIdx) == 0 {
		return nil, errors.Wrapf(errors.ErrEmptyDataset, "%d usable rows cannot support a %d-fold search with holdout", n, budget.Folds)
	}

	X := make([][]float64, n)
	for i, v := range data.vectors {
		X[i] = v.Values
	}

	// Scaler sees the training partition only
	scaler, err := ml.FitScaler(ml.Rows(X, trainIdx))
	if err != nil {
		return nil, errors.Wrap(err, "fit scaler")
	}
	Xtr, err := scaler.TransformAll(ml.Rows(X, trainIdx))
	if err != nil {
		return nil, err
	}
	Xte, err := scaler.TransformAll(ml.Rows(X, testIdx))
	if err != nil {
		return nil, err
	}

	t.log.Infow("Training started",
		"rows", n,
		"train", len(trainIdx),
		"test", len(testIdx),
		"dropped", data.dropped,
		"rejected", len(data.failed),
		"families", budget.Families,
		"iterations", budget.Iterations,
		"folds", budget.Folds,
	)

	candidates := make([]Candidate, 0, len(budget.Families))
	var failures errors.MultiError
	for _, name := range budget.Families {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c := t.evaluate(ctx, ml.Families()[name], budget, Xtr, Xte, data.targets, trainIdx, testIdx)
		metrics.RecordCandidate(name, c.Err)
		if c.Err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			t.log.Warnw("Estimator family skipped", "family", name, "error", c.Err)
			failures.Add(c.Err)
		} else {
			t.log.Infow("Estimator family evaluated",
				"family", name,
				"mean_test_r2", c.MeanTestR2,
				"mean_cv_r2", c.MeanCV,
			)
		}
		candidates = append(candidates, c)
	}

	champion := selectChampion(candidates, t.cfg.TieTolerance)
	if champion == nil {
		return nil, errors.Wrapf(errors.ErrTrainingFailure, "%d families tried: %v", len(candidates), failures.ToError())
	}

	created := time.Now().UTC()
	spec := model.Spec{
		FeatureNames: append([]string(nil), patient.FeatureNames...),
		Scaler:       scaler,
		Regressors:   champion.regressors,
		Champion:     champion.Family,
		Params:       champion.Params[patient.Horizon30],
		Metrics:      champion.TestMetrics,
		CreatedAt:    created,
	}
	provisional, err := model.New(spec)
	if err != nil {
		return nil, errors.Wrap(err, "assemble model set")
	}

	testVectors := make([]patient.FeatureVector, len(testIdx))
	for i, r := range testIdx {
		testVectors[i] = data.vectors[r]
	}
	importances, source := t.importances(provisional, testVectors)
	spec.Importances = importances
	set, err := model.New(spec)
	if err != nil {
		return nil, errors.Wrap(err, "assemble model set")
	}

	anchorPred, err := ml.PredictAll(champion.regressors[patient.Horizon30], Xte)
	if err != nil {
		return nil, errors.Wrap(err, "confusion matrix")
	}

	res = &Result{
		Set:              set,
		Champion:         champion.Family,
		Candidates:       candidates,
		Metrics:          champion.TestMetrics,
		Importances:      importances,
		ImportanceSource: source,
		Confusion:        NewConfusionMatrix(ml.Values(data.targets[patient.Horizon30], testIdx), anchorPred),
		TotalRows:        len(rows),
		DroppedRows:      data.dropped,
		RejectedRows:     data.failed,
		TrainRows:        len(trainIdx),
		TestRows:         len(testIdx),
		Duration:         time.Since(start),
	}
	if data.dropped > 0 {
		res.MissingLabels = errors.Wrapf(errors.ErrMissingLabels, "%d rows dropped", data.dropped)
	}
	for h, m := range champion.TestMetrics {
		metrics.RecordChampion(h.Target(), m.R2)
	}

	t.log.Infow("Training finished",
		"champion", champion.Family,
		"version", set.Version(),
		"r2_30d", champion.TestMetrics[patient.Horizon30].R2,
		"importance_source", source,
		"duration", res.Duration,
	)
	return res, nil
}

// prepare drops unlabeled rows, preprocesses the rest and collects targets
func (t *Trainer) prepare(rows []patient.LabeledRecord) (*prepared, error) {
	if len(rows) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyDataset, "no training rows")
	}

	var (
		kept    []patient.LabeledRecord
		source  []int
		dropped int
	)
	for i, r := range rows {
		if r.Record == nil || !r.Complete() {
			dropped++
			continue
		}
		kept = append(kept, r)
		source = append(source, i)
	}
	if dropped > 0 {
		t.log.Warnw("Dropped rows with missing horizon labels", "count", dropped, "total", len(rows))
	}
	if len(kept) == 0 {
		return nil, errors.Wrapf(errors.ErrEmptyDataset, "all %d rows lack horizon labels: %v", len(rows), errors.ErrMissingLabels)
	}

	recs := make([]*patient.Record, len(kept))
	for i, r := range kept {
		recs[i] = r.Record
	}
	batch := t.pre.PreprocessBatch(recs)

	failed := make([]features.Failure, len(batch.Failures))
	for i, f := range batch.Failures {
		f.Row = source[f.Row]
		failed[i] = f
	}
	if len(failed) > 0 {
		t.log.Warnw("Rejected rows during preprocessing", "count", len(failed))
	}
	if len(batch.Features) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyDataset, "no rows survived preprocessing")
	}

	data := &prepared{
		vectors: batch.Vectors(),
		targets: make(map[patient.Horizon][]float64, len(patient.Horizons)),
		dropped: dropped,
		failed:  failed,
	}
	for _, h := range patient.Horizons {
		y := make([]float64, len(batch.Rows))
		for i, r := range batch.Rows {
			y[i] = *kept[r].Labels[h]
		}
		data.targets[h] = y
	}
	return data, nil
}

// evaluate searches one family for every horizon. Any horizon failing, or a
// panic inside the estimator, fails the whole family.
func (t *Trainer) evaluate(ctx context.Context, fam ml.Family, budget Budget, Xtr, Xte [][]float64,
	targets map[patient.Horizon][]float64, trainIdx, testIdx []int) (c Candidate) {

	c = Candidate{
		Family:      fam.Name,
		Params:      make(map[patient.Horizon]ml.Params),
		CVScore:     make(map[patient.Horizon]float64),
		TestMetrics: make(map[patient.Horizon]ml.Score),
		regressors:  make(map[patient.Horizon]ml.Regressor),
	}
	defer func() {
		if r := recover(); r != nil {
			c = Candidate{Family: fam.Name, Err: fmt.Errorf("%s: panic during fit: %v", fam.Name, r)}
		}
	}()

	var cvSum, r2Sum float64
	for _, h := range patient.Horizons {
		cfg := ml.SearchConfig{
			Iterations: budget.Iterations,
			Folds:      budget.Folds,
			Seed:       t.cfg.Seed + int64(h),
		}
		res, err := ml.Search(ctx, fam, Xtr, ml.Values(targets[h], trainIdx), cfg)
		if err != nil {
			return Candidate{Family: fam.Name, Err: errors.Wrapf(err, "%s %s", fam.Name, h.Target())}
		}
		pred, err := ml.PredictAll(res.Model, Xte)
		if err != nil {
			return Candidate{Family: fam.Name, Err: errors.Wrapf(err, "%s %s predict", fam.Name, h.Target())}
		}
		score := ml.Evaluate(pred, ml.Values(targets[h], testIdx))
		if math.IsNaN(score.R2) || math.IsNaN(res.CVScore) {
			return Candidate{Family: fam.Name, Err: errors.Newf("%s %s: non-finite score", fam.Name, h.Target())}
		}

		c.Params[h] = res.Params
		c.CVScore[h] = res.CVScore
		c.TestMetrics[h] = score
		c.regressors[h] = res.Model
		cvSum += res.CVScore
		r2Sum += score.R2
	}
	c.MeanCV = cvSum / float64(len(patient.Horizons))
	c.MeanTestR2 = r2Sum / float64(len(patient.Horizons))
	return c
}

// selectChampion picks the highest mean held-out R². Candidates within
// tolerance of each other are ordered by mean cross-validated R².
func selectChampion(candidates []Candidate, tolerance float64) *Candidate {
	var best *Candidate
	for i := range candidates {
		c := &candidates[i]
		if !c.Fitted() {
			continue
		}
		if best == nil {
			best = c
			continue
		}
		diff := c.MeanTestR2 - best.MeanTestR2
		switch {
		case math.Abs(diff) <= tolerance:
			if c.MeanCV > best.MeanCV {
				best = c
			}
		case diff > 0:
			best = c
		}
	}
	return best
}

// importances ranks features by mean |attribution| on the test partition and
// falls back to the anchor model's native importances
func (t *Trainer) importances(set *model.Set, testVectors []patient.FeatureVector) ([]model.Importance, string) {
	global := t.explainer.Global(set, testVectors)
	if global.Err == nil {
		return global.Ranked, SourceAttribution
	}
	t.log.Warnw("Attribution importances unavailable, using native importances", "error", global.Err)

	names := set.FeatureNames()
	out := make([]model.Importance, len(names))
	for i, name := range names {
		out[i] = model.Importance{Feature: name}
	}
	reg, _ := set.Regressor(patient.Horizon30)
	if imp, ok := reg.(ml.Importancer); ok {
		values := imp.FeatureImportances()
		for i := range out {
			if i < len(values) {
				out[i].Value = values[i]
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	return out, SourceNative
}

// TopFeatures returns the n highest ranked importance names
func (r *Result) TopFeatures(n int) []string {
	if n > len(r.Importances) {
		n = len(r.Importances)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = r.Importances[i].Feature
	}
	return out
}

// FailedFamilies lists candidates that were skipped
func (r *Result) FailedFamilies() []string {
	var out []string
	for _, c := range r.Candidates {
		if !c.Fitted() {
			out = append(out, c.Family)
		}
	}
	return out
}
