package riskservice

import (
	"context"
	"sync"
	"time"

	"github.com/exascience/pargo/parallel"
	"github.com/google/uuid"

	"riskstrat/internal/adapters/errors/sentry"
	"riskstrat/internal/attribution"
	"riskstrat/internal/domain/patient"
	"riskstrat/internal/recommend"
	"riskstrat/internal/scoring"
	"riskstrat/pkg/errors"
	"riskstrat/pkg/logger"
)

// Deps are the optional collaborators of the service; nil members are skipped
type Deps struct {
	Predictions     patient.PredictionRepository
	History         HistorySink
	Cache           patient.PredictionCache
	Publisher       Publisher
	Topic           string
	Tracker         errors.Tracker
	SimilarPatients int
}

// Service scores patients with the current model set and fans the result out
// to storage and the message bus. Storage and publishing failures are logged
// and tracked but never fail an assessment.
type Service struct {
	mu     sync.RWMutex
	scorer *scoring.Scorer

	deps Deps
	log  *logger.Logger
	now  func() time.Time
}

// NewService creates the service. scorer may be nil until a model is loaded.
func NewService(scorer *scoring.Scorer, deps Deps) *Service {
	return &Service{
		scorer: scorer,
		deps:   deps,
		log:    logger.Get().Component("risk_service"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Swap replaces the scorer; in-flight assessments finish on the old one
func (s *Service) Swap(scorer *scoring.Scorer) {
	s.mu.Lock()
	old := s.scorer
	s.scorer = scorer
	s.mu.Unlock()

	var from, to string
	if old != nil {
		from = old.Set().Version()
	}
	if scorer != nil {
		to = scorer.Set().Version()
	}
	s.log.Infow("Model set swapped", "from", from, "to", to)
}

// Scorer returns the active scorer, or nil
func (s *Service) Scorer() *scoring.Scorer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scorer
}

// ModelVersion returns the active model version, or "" when none is loaded
func (s *Service) ModelVersion() string {
	if sc := s.Scorer(); sc != nil {
		return sc.Set().Version()
	}
	return ""
}

// Ready reports whether a model set is loaded
func (s *Service) Ready() bool {
	return s.Scorer() != nil
}

// Assess preprocesses, scores and explains one record, then stores and
// publishes the prediction
func (s *Service) Assess(ctx context.Context, rec *patient.Record) (*Assessment, error) {
	sc := s.Scorer()
	if sc == nil {
		return nil, errors.ErrModelNotLoaded
	}
	if rec == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "nil record")
	}
	version := sc.Set().Version()
	ctx = sentry.WithModelVersion(ctx, version)

	f, err := sc.Preprocess(rec)
	if err != nil {
		return nil, err
	}
	vec := f.ToFeatureVector()

	pred, cached := s.lookup(ctx, version, vec)
	if pred == nil {
		pred, err = sc.Score(vec)
		if err != nil {
			s.track(ctx, err, "score")
			return nil, err
		}
		pred.Recommendations = recommend.Generate(f, pred.TopFeatures, pred.Label)
		s.remember(ctx, version, vec, pred)
	}

	pred.ID = uuid.New()
	pred.PatientID = rec.ID
	pred.CreatedAt = s.now()

	out := &Assessment{
		Prediction: pred,
		Features:   f,
		Cached:     cached,
		Similar:    s.similar(ctx, vec),
	}
	if sc.Set().Attributable() {
		out.Explanation = sc.Explain(vec).Describe(scoring.TopN)
	}

	s.persist(ctx, pred, vec)
	return out, nil
}

func (s *Service) lookup(ctx context.Context, version string, vec patient.FeatureVector) (*patient.Prediction, bool) {
	if s.deps.Cache == nil {
		return nil, false
	}
	pred, ok, err := s.deps.Cache.Get(ctx, version, vec)
	if err != nil {
		s.log.Warnw("Cache lookup failed", "error", err)
		return nil, false
	}
	if !ok || pred.ModelVersion != version {
		return nil, false
	}
	return pred, true
}

func (s *Service) remember(ctx context.Context, version string, vec patient.FeatureVector, pred *patient.Prediction) {
	if s.deps.Cache == nil {
		return
	}
	if err := s.deps.Cache.Set(ctx, version, vec, pred); err != nil {
		s.log.Warnw("Cache write failed", "error", err)
	}
}

func (s *Service) similar(ctx context.Context, vec patient.FeatureVector) []*patient.Prediction {
	if s.deps.Predictions == nil || s.deps.SimilarPatients <= 0 {
		return nil
	}
	similar, err := s.deps.Predictions.FindSimilar(ctx, vec, s.deps.SimilarPatients)
	if err != nil {
		s.log.Warnw("Similar patient search failed", "error", err)
		return nil
	}
	return similar
}

func (s *Service) persist(ctx context.Context, pred *patient.Prediction, vec patient.FeatureVector) {
	if s.deps.Predictions != nil {
		if err := s.deps.Predictions.Store(ctx, pred, vec); err != nil {
			s.track(ctx, err, "store_prediction")
		}
	}
	if s.deps.History != nil {
		if err := s.deps.History.Add(ctx, pred); err != nil {
			s.track(ctx, err, "append_history")
		}
	}
	if s.deps.Publisher != nil && s.deps.Topic != "" {
		if err := s.deps.Publisher.Publish(ctx, s.deps.Topic, pred.PatientID, newEvent(pred)); err != nil {
			s.track(ctx, err, "publish_prediction")
		}
	}
}

func (s *Service) track(ctx context.Context, err error, stage string) {
	s.log.Errorw("Assessment stage failed", "stage", stage, "error", err)
	if s.deps.Tracker != nil {
		_ = s.deps.Tracker.CaptureError(ctx, err, errors.StageTags("risk_service", stage))
	}
}

// AssessBatch assesses records in parallel. Outcomes keep input order and a
// failing record only fails its own outcome.
func (s *Service) AssessBatch(ctx context.Context, recs []*patient.Record) []BatchOutcome {
	out := make([]BatchOutcome, len(recs))
	if len(recs) == 0 {
		return out
	}
	parallel.Range(0, len(recs), 0, func(low, high int) {
		for i := low; i < high; i++ {
			o := BatchOutcome{Index: i}
			if recs[i] != nil {
				o.ID = recs[i].ID
			}
			if err := ctx.Err(); err != nil {
				o.Err = err
			} else {
				o.Assessment, o.Err = s.Assess(ctx, recs[i])
			}
			out[i] = o
		}
	})
	return out
}

// Explain returns the attribution of a record without storing anything
func (s *Service) Explain(rec *patient.Record) (attribution.Explanation, error) {
	sc := s.Scorer()
	if sc == nil {
		return attribution.Explanation{}, errors.ErrModelNotLoaded
	}
	f, err := sc.Preprocess(rec)
	if err != nil {
		return attribution.Explanation{}, err
	}
	return sc.Explain(f.ToFeatureVector()), nil
}
