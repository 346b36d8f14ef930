package riskservice

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskstrat/internal/adapters/errors/noop"
	"riskstrat/internal/attribution"
	"riskstrat/internal/domain/patient"
	"riskstrat/internal/ml"
	"riskstrat/internal/model"
	"riskstrat/internal/scoring"
	"riskstrat/pkg/errors"
)

type memoryRepo struct {
	mu      sync.Mutex
	stored  []*patient.Prediction
	similar []*patient.Prediction
	err     error
}

func (m *memoryRepo) Store(ctx context.Context, p *patient.Prediction, v patient.FeatureVector) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.stored = append(m.stored, p)
	return nil
}

func (m *memoryRepo) GetLatest(ctx context.Context, id string) (*patient.Prediction, error) {
	return nil, errors.ErrNotFound
}

func (m *memoryRepo) FindSimilar(ctx context.Context, v patient.FeatureVector, limit int) ([]*patient.Prediction, error) {
	return m.similar, m.err
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]patient.Prediction
	gets    int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string]patient.Prediction{}}
}

func cacheKey(version string, v patient.FeatureVector) string {
	return fmt.Sprint(version, v.Values)
}

func (c *memoryCache) Get(ctx context.Context, version string, v patient.FeatureVector) (*patient.Prediction, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	p, ok := c.entries[cacheKey(version, v)]
	if !ok {
		return nil, false, nil
	}
	return &p, true, nil
}

func (c *memoryCache) Set(ctx context.Context, version string, v patient.FeatureVector, p *patient.Prediction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(version, v)] = *p
	return nil
}

type memoryHistory struct {
	mu    sync.Mutex
	preds []*patient.Prediction
}

func (h *memoryHistory) Add(ctx context.Context, preds ...*patient.Prediction) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.preds = append(h.preds, preds...)
	return nil
}

type memoryPublisher struct {
	mu     sync.Mutex
	events []PredictionEvent
	keys   []string
	err    error
}

func (p *memoryPublisher) Publish(ctx context.Context, topic, key string, event interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.keys = append(p.keys, key)
	p.events = append(p.events, event.(PredictionEvent))
	return nil
}

// newScorer scores RISK_30D as AGE*0.5 - RX_ADH*3
func newScorer(t *testing.T) *scoring.Scorer {
	t.Helper()
	n := len(patient.FeatureNames)
	coef := func(w map[string]float64) []float64 {
		out := make([]float64, n)
		for i, name := range patient.FeatureNames {
			out[i] = w[name]
		}
		return out
	}
	scaler := &ml.StandardScaler{Mean: make([]float64, n), Scale: make([]float64, n)}
	for i := range scaler.Scale {
		scaler.Scale[i] = 1
	}
	set, err := model.New(model.Spec{
		FeatureNames: patient.FeatureNames,
		Scaler:       scaler,
		Regressors: map[patient.Horizon]ml.Regressor{
			patient.Horizon30: &ml.Linear{Family: ml.KindRidge, Coef: coef(map[string]float64{"AGE": 0.5, "RX_ADH": -3})},
			patient.Horizon60: &ml.Linear{Family: ml.KindRidge, Intercept: 5, Coef: coef(map[string]float64{"AGE": 0.5})},
			patient.Horizon90: &ml.Linear{Family: ml.KindRidge, Intercept: 10, Coef: coef(map[string]float64{"AGE": 0.5})},
		},
		Champion: ml.KindRidge,
	})
	require.NoError(t, err)
	sc, err := scoring.NewScorer(set, attribution.NewExplainer())
	require.NoError(t, err)
	return sc
}

func elderly(id string) *patient.Record {
	return patient.NewRecord(id).
		Set(patient.FeatureAge, 170.0).
		Set(patient.FeatureRxAdherence, 0.3).
		Set(patient.FeatureHeartFailure, 1)
}

func TestAssess_NoModel(t *testing.T) {
	svc := NewService(nil, Deps{})
	assert.False(t, svc.Ready())
	assert.Empty(t, svc.ModelVersion())

	_, err := svc.Assess(context.Background(), elderly("P1"))
	assert.ErrorIs(t, err, errors.ErrModelNotLoaded)
}

func TestAssess_FullPipeline(t *testing.T) {
	repo := &memoryRepo{similar: []*patient.Prediction{{PatientID: "P0"}}}
	history := &memoryHistory{}
	pub := &memoryPublisher{}
	sc := newScorer(t)
	svc := NewService(sc, Deps{
		Predictions:     repo,
		History:         history,
		Cache:           newMemoryCache(),
		Publisher:       pub,
		Topic:           "patients.predictions",
		Tracker:         noop.New(),
		SimilarPatients: 3,
	})
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	out, err := svc.Assess(context.Background(), elderly("P1"))
	require.NoError(t, err)

	pred := out.Prediction
	assert.Equal(t, "P1", pred.PatientID)
	assert.NotEqual(t, uuid.Nil, pred.ID)
	assert.Equal(t, fixed, pred.CreatedAt)
	assert.Equal(t, sc.Set().Version(), pred.ModelVersion)
	// 170*0.5 - 0.3*3
	assert.InDelta(t, 84.1, pred.Risk30D, 1e-9)
	assert.Equal(t, patient.LabelVeryHigh, pred.Label)
	assert.True(t, pred.AttributionAvailable)
	assert.Equal(t, patient.FeatureAge, pred.TopFeatures[0])
	assert.Contains(t, pred.Recommendations, "geriatric")
	assert.Contains(t, out.Explanation, "AGE (increases risk by")
	assert.False(t, out.Cached)
	assert.Len(t, out.Similar, 1)

	require.Len(t, repo.stored, 1)
	require.Len(t, history.preds, 1)
	require.Len(t, pub.events, 1)
	assert.Equal(t, "P1", pub.keys[0])
	assert.Equal(t, pred.ID.String(), pub.events[0].PredictionID)
	assert.Equal(t, "Very High", pub.events[0].Label)
}

func TestAssess_CacheHitKeepsIdentityFresh(t *testing.T) {
	cache := newMemoryCache()
	svc := NewService(newScorer(t), Deps{Cache: cache})

	first, err := svc.Assess(context.Background(), elderly("P1"))
	require.NoError(t, err)
	second, err := svc.Assess(context.Background(), elderly("P2"))
	require.NoError(t, err)

	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Equal(t, "P2", second.Prediction.PatientID)
	assert.NotEqual(t, first.Prediction.ID, second.Prediction.ID)
	assert.Equal(t, first.Prediction.Risk30D, second.Prediction.Risk30D)
	assert.Equal(t, first.Prediction.Recommendations, second.Prediction.Recommendations)
}

func TestAssess_StorageFailuresDoNotFail(t *testing.T) {
	repo := &memoryRepo{err: errors.ErrUnavailable}
	pub := &memoryPublisher{err: errors.ErrUnavailable}
	svc := NewService(newScorer(t), Deps{Predictions: repo, Publisher: pub, Topic: "t", SimilarPatients: 5})

	out, err := svc.Assess(context.Background(), elderly("P1"))
	require.NoError(t, err)
	assert.Nil(t, out.Similar)
	assert.Empty(t, repo.stored)
}

func TestAssess_FreeTextIsImputed(t *testing.T) {
	svc := NewService(newScorer(t), Deps{})
	rec := patient.NewRecord("P1").Set(patient.FeatureBMI, "obese")

	out, err := svc.Assess(context.Background(), rec)
	require.NoError(t, err)
	assert.NotNil(t, out.Prediction)

	_, err = svc.Assess(context.Background(), nil)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestAssessBatch_PerRecordOutcomes(t *testing.T) {
	svc := NewService(newScorer(t), Deps{})
	recs := []*patient.Record{elderly("A"), nil, elderly("C")}

	out := svc.AssessBatch(context.Background(), recs)
	require.Len(t, out, 3)
	assert.NoError(t, out[0].Err)
	assert.Equal(t, "A", out[0].ID)
	assert.ErrorIs(t, out[1].Err, errors.ErrInvalidInput)
	assert.NoError(t, out[2].Err)
	assert.Equal(t, "C", out[2].Assessment.Prediction.PatientID)
}

func TestSwap(t *testing.T) {
	svc := NewService(nil, Deps{})
	sc := newScorer(t)
	svc.Swap(sc)
	assert.True(t, svc.Ready())
	assert.Equal(t, sc.Set().Version(), svc.ModelVersion())

	exp, err := svc.Explain(elderly("P1"))
	require.NoError(t, err)
	assert.True(t, exp.Available())
}
