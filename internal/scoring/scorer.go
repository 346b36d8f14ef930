package scoring

import (
	"time"

	"github.com/exascience/pargo/parallel"

	"riskstrat/internal/attribution"
	"riskstrat/internal/domain/patient"
	"riskstrat/internal/features"
	"riskstrat/internal/metrics"
	"riskstrat/internal/model"
	"riskstrat/pkg/errors"
	"riskstrat/pkg/logger"
)

// TopN is the number of features reported per prediction
const TopN = 3

// Explainer attributes a prediction to features. Explanations carry their
// own error; a failing explainer never fails scoring.
type Explainer interface {
	Explain(set *model.Set, v patient.FeatureVector) attribution.Explanation
}

// Scorer produces risk predictions from one immutable model set.
// It is safe for concurrent use.
type Scorer struct {
	set       *model.Set
	explainer Explainer
	pre       *features.Preprocessor
	log       *logger.Logger
}

// NewScorer binds a scorer to a model set. A nil explainer disables
// attribution and every prediction reports the default top features.
func NewScorer(set *model.Set, explainer Explainer) (*Scorer, error) {
	if set == nil {
		return nil, errors.ErrModelNotLoaded
	}
	return &Scorer{
		set:       set,
		explainer: explainer,
		pre:       features.NewPreprocessor(features.ModeLenient, features.InferenceDefaults),
		log:       logger.Get().Component("scorer").With("model_version", set.Version()),
	}, nil
}

// WithPreprocessor replaces the preprocessor used by ScoreRecord
func (s *Scorer) WithPreprocessor(p *features.Preprocessor) *Scorer {
	cp := *s
	cp.pre = p
	return &cp
}

// Set returns the bound model set
func (s *Scorer) Set() *model.Set {
	return s.set
}

// Score predicts every horizon for one feature vector. A vector whose length
// or order differs from the model's feature list fails with ErrShapeMismatch.
func (s *Scorer) Score(v patient.FeatureVector) (*patient.Prediction, error) {
	start := time.Now()
	pred, err := s.score(v)
	label := ""
	attributed := false
	if pred != nil {
		label = pred.Label.String()
		attributed = pred.AttributionAvailable
	}
	metrics.RecordPrediction(s.set.Version(), label, time.Since(start), attributed, err)
	return pred, err
}

func (s *Scorer) score(v patient.FeatureVector) (*patient.Prediction, error) {
	if err := s.set.CheckShape(v); err != nil {
		return nil, err
	}
	if !v.Finite() {
		return nil, errors.Wrap(errors.ErrInvalidInput, "feature vector contains non-finite values")
	}
	scaled, err := s.set.Scale(v)
	if err != nil {
		return nil, err
	}
	risks, err := s.set.Predict(scaled)
	if err != nil {
		return nil, err
	}

	pred := &patient.Prediction{ModelVersion: s.set.Version()}
	for h, r := range risks {
		pred.SetRisk(h, r)
	}
	pred.Label = patient.LabelFor(pred.Risk30D)
	pred.TopFeatures, pred.AttributionAvailable = s.topFeatures(v)
	return pred, nil
}

func (s *Scorer) topFeatures(v patient.FeatureVector) ([]string, bool) {
	fallback := append([]string(nil), patient.DefaultTopFeatures...)
	if s.explainer == nil {
		return fallback, false
	}
	exp := s.explainer.Explain(s.set, v)
	if !exp.Available() {
		if exp.Err != nil {
			s.log.Debugw("Using default top features", "error", exp.Err)
		}
		return fallback, false
	}
	return exp.Top(TopN), true
}

// Explain exposes the full attribution for one vector
func (s *Scorer) Explain(v patient.FeatureVector) attribution.Explanation {
	if s.explainer == nil {
		return attribution.Explanation{Horizon: attribution.Target, Err: errors.Wrap(errors.ErrAttributionUnavailable, "attribution disabled")}
	}
	return s.explainer.Explain(s.set, v)
}

// BatchItem is the outcome of scoring one vector of a batch
type BatchItem struct {
	Index      int
	Prediction *patient.Prediction
	Err        error
}

// ScoreBatch scores vectors in parallel. Results keep input order and a
// failing vector only fails its own item.
func (s *Scorer) ScoreBatch(vectors []patient.FeatureVector) []BatchItem {
	items := make([]BatchItem, len(vectors))
	if len(vectors) == 0 {
		return items
	}
	parallel.Range(0, len(vectors), 0, func(low, high int) {
		for i := low; i < high; i++ {
			pred, err := s.Score(vectors[i])
			items[i] = BatchItem{Index: i, Prediction: pred, Err: err}
		}
	})
	return items
}

// Preprocess builds the feature set of a raw record with inference defaults
func (s *Scorer) Preprocess(rec *patient.Record) (*patient.Features, error) {
	f, err := s.pre.Preprocess(rec)
	if err != nil {
		metrics.RecordPreprocessFailure(errors.Is(err, errors.ErrDataValidation))
		return nil, err
	}
	return f, nil
}

// ScoreRecord preprocesses a raw record with inference defaults and scores it
func (s *Scorer) ScoreRecord(rec *patient.Record) (*patient.Prediction, *patient.Features, error) {
	f, err := s.Preprocess(rec)
	if err != nil {
		return nil, nil, err
	}
	pred, err := s.Score(f.ToFeatureVector())
	if err != nil {
		return nil, f, err
	}
	pred.PatientID = rec.ID
	return pred, f, nil
}

// RecordItem is the outcome of scoring one raw record of a table
type RecordItem struct {
	Index      int
	ID         string
	Prediction *patient.Prediction
	Features   *patient.Features
	Err        error
}

// ScoreRecords preprocesses records as one table, so missing and placeholder
// cells take the column median, then scores every accepted row. Rejected rows
// carry their validation error and the rest of the table is still scored.
func (s *Scorer) ScoreRecords(recs []*patient.Record) []RecordItem {
	items := make([]RecordItem, len(recs))
	for i, rec := range recs {
		items[i].Index = i
		if rec != nil {
			items[i].ID = rec.ID
		}
	}
	if len(recs) == 0 {
		return items
	}

	table := s.pre.PreprocessBatch(recs)
	for _, fail := range table.Failures {
		metrics.RecordPreprocessFailure(errors.Is(fail.Err, errors.ErrDataValidation))
		items[fail.Row].Err = fail.Err
	}
	if len(table.Imputed) > 0 {
		s.log.Debugw("Imputed missing cells with column medians", "columns", table.Imputed)
	}

	scored := s.ScoreBatch(table.Vectors())
	for k, row := range table.Rows {
		item := &items[row]
		item.Features = table.Features[k]
		item.Err = scored[k].Err
		if scored[k].Prediction != nil {
			item.Prediction = scored[k].Prediction
			item.Prediction.PatientID = item.ID
		}
	}
	return items
}
