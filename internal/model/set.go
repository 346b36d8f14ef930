package model

import (
	"time"

	"github.com/google/uuid"

	"riskstrat/internal/domain/patient"
	"riskstrat/internal/ml"
	"riskstrat/pkg/errors"
)

// VersionLayout formats set versions from their creation time
const VersionLayout = "20060102_150405.000"

// Importance is one ranked feature importance entry
type Importance struct {
	Feature string  `json:"feature"`
	Value   float64 `json:"value"`
}

// Spec carries everything needed to assemble a Set
type Spec struct {
	FeatureNames []string
	Scaler       *ml.StandardScaler
	Regressors   map[patient.Horizon]ml.Regressor
	Champion     string
	Params       ml.Params
	Metrics      map[patient.Horizon]ml.Score
	Importances  []Importance
	CreatedAt    time.Time
}

// Set is a trained, immutable bundle: one regressor per horizon, the scaler
// fitted at training time and the feature order it expects.
// Sets are replaced on retraining, never modified.
type Set struct {
	id           uuid.UUID
	version      string
	createdAt    time.Time
	featureNames []string
	scaler       *ml.StandardScaler
	regressors   map[patient.Horizon]ml.Regressor
	champion     string
	params       ml.Params
	metrics      map[patient.Horizon]ml.Score
	importances  []Importance
	external     bool
}

// New validates a spec and builds a Set
func New(spec Spec) (*Set, error) {
	if len(spec.FeatureNames) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidInput, "model set needs feature names")
	}
	if spec.Scaler == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "model set needs a scaler")
	}
	if spec.Scaler.Width() != len(spec.FeatureNames) {
		return nil, &errors.ShapeError{Expected: len(spec.FeatureNames), Got: spec.Scaler.Width(), Position: -1}
	}
	for _, h := range patient.Horizons {
		if spec.Regressors[h] == nil {
			return nil, errors.Wrapf(errors.ErrInvalidInput, "model set missing %s regressor", h.Target())
		}
	}
	created := spec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	created = created.UTC()

	s := &Set{
		id:           uuid.New(),
		version:      created.Format(VersionLayout),
		createdAt:    created,
		featureNames: append([]string(nil), spec.FeatureNames...),
		scaler:       cloneScaler(spec.Scaler),
		regressors:   make(map[patient.Horizon]ml.Regressor, len(patient.Horizons)),
		champion:     spec.Champion,
		params:       make(ml.Params, len(spec.Params)),
		metrics:      make(map[patient.Horizon]ml.Score, len(spec.Metrics)),
		importances:  append([]Importance(nil), spec.Importances...),
	}
	for _, h := range patient.Horizons {
		s.regressors[h] = spec.Regressors[h]
	}
	for k, v := range spec.Params {
		s.params[k] = v
	}
	for h, m := range spec.Metrics {
		s.metrics[h] = m
	}
	return s, nil
}

// NewExternalSet wraps externally trained regressors (e.g. ONNX). A nil
// scaler means inputs are already on the model's scale. External sets score
// but cannot be explained or persisted by FileStore.
func NewExternalSet(featureNames []string, scaler *ml.StandardScaler, regressors map[patient.Horizon]ml.Regressor) (*Set, error) {
	if scaler == nil {
		scaler = &ml.StandardScaler{Mean: make([]float64, len(featureNames)), Scale: make([]float64, len(featureNames))}
		for i := range scaler.Scale {
			scaler.Scale[i] = 1
		}
	}
	s, err := New(Spec{FeatureNames: featureNames, Scaler: scaler, Regressors: regressors, Champion: ml.KindONNX})
	if err != nil {
		return nil, err
	}
	s.external = true
	return s, nil
}

func cloneScaler(sc *ml.StandardScaler) *ml.StandardScaler {
	return &ml.StandardScaler{
		Mean:  append([]float64(nil), sc.Mean...),
		Scale: append([]float64(nil), sc.Scale...),
	}
}

// ID returns the unique set identifier
func (s *Set) ID() uuid.UUID { return s.id }

// Version returns the creation timestamp version string
func (s *Set) Version() string { return s.version }

// CreatedAt returns the creation time
func (s *Set) CreatedAt() time.Time { return s.createdAt }

// Champion returns the winning estimator family
func (s *Set) Champion() string { return s.champion }

// External reports whether the set wraps externally trained models
func (s *Set) External() bool { return s.external }

// FeatureNames returns a copy of the feature order used at fit time
func (s *Set) FeatureNames() []string {
	return append([]string(nil), s.featureNames...)
}

// Params returns a copy of the champion hyperparameters
func (s *Set) Params() ml.Params {
	out := make(ml.Params, len(s.params))
	for k, v := range s.params {
		out[k] = v
	}
	return out
}

// Metrics returns a copy of the held-out metrics per horizon
func (s *Set) Metrics() map[patient.Horizon]ml.Score {
	out := make(map[patient.Horizon]ml.Score, len(s.metrics))
	for h, m := range s.metrics {
		out[h] = m
	}
	return out
}

// Importances returns a copy of the ranked feature importances
func (s *Set) Importances() []Importance {
	return append([]Importance(nil), s.importances...)
}

// Regressor returns the model for a horizon
func (s *Set) Regressor(h patient.Horizon) (ml.Regressor, bool) {
	r, ok := s.regressors[h]
	return r, ok
}

// Attributable reports whether the anchor horizon model can be decomposed
func (s *Set) Attributable() bool {
	if s.external {
		return false
	}
	_, ok := s.regressors[patient.Horizon30].(ml.Contributor)
	return ok
}

// CheckShape verifies a vector matches the fitted feature list exactly.
// A vector without names is checked on length only.
func (s *Set) CheckShape(v patient.FeatureVector) error {
	if len(v.Values) != len(s.featureNames) {
		return &errors.ShapeError{Expected: len(s.featureNames), Got: len(v.Values), Position: -1}
	}
	if v.Names == nil {
		return nil
	}
	if len(v.Names) != len(v.Values) {
		return &errors.ShapeError{Expected: len(s.featureNames), Got: len(v.Names), Position: -1}
	}
	for i, name := range s.featureNames {
		if v.Names[i] != name {
			return &errors.ShapeError{Expected: len(s.featureNames), Got: len(v.Values), Position: i, Want: name, Have: v.Names[i]}
		}
	}
	return nil
}

// Scale checks shape and applies the fitted scaler. The scaler is never refit.
func (s *Set) Scale(v patient.FeatureVector) ([]float64, error) {
	if err := s.CheckShape(v); err != nil {
		return nil, err
	}
	return s.scaler.Transform(v.Values)
}

// Predict returns one score per horizon for an already scaled vector
func (s *Set) Predict(scaled []float64) (map[patient.Horizon]float64, error) {
	out := make(map[patient.Horizon]float64, len(patient.Horizons))
	for _, h := range patient.Horizons {
		v, err := s.regressors[h].Predict(scaled)
		if err != nil {
			return nil, errors.Wrapf(err, "predict %s", h.Target())
		}
		out[h] = v
	}
	return out, nil
}

// Close releases runtime resources held by external regressors
func (s *Set) Close() {
	for _, r := range s.regressors {
		if d, ok := r.(interface{ Destroy() }); ok {
			d.Destroy()
		}
	}
}
