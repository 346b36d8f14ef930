package workers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskstrat/internal/domain/patient"
	"riskstrat/internal/features"
	"riskstrat/internal/ml"
	"riskstrat/internal/model"
	"riskstrat/internal/scoring"
	"riskstrat/pkg/errors"
)

func linearSet(t *testing.T, created time.Time) *model.Set {
	t.Helper()
	n := len(patient.FeatureNames)
	scaler := &ml.StandardScaler{Mean: make([]float64, n), Scale: make([]float64, n)}
	for i := range scaler.Scale {
		scaler.Scale[i] = 1
	}
	coef := make([]float64, n)
	coef[0] = 0.5
	reg := &ml.Linear{Family: ml.KindRidge, Coef: coef}
	set, err := model.New(model.Spec{
		FeatureNames: patient.FeatureNames,
		Scaler:       scaler,
		Regressors:   map[patient.Horizon]ml.Regressor{patient.Horizon30: reg, patient.Horizon60: reg, patient.Horizon90: reg},
		Champion:     ml.KindRidge,
		CreatedAt:    created,
	})
	require.NoError(t, err)
	return set
}

type fakeSource struct {
	sets  map[string]*model.Set
	order []string
	loads int
	err   error
}

func (f *fakeSource) add(s *model.Set) {
	if f.sets == nil {
		f.sets = map[string]*model.Set{}
	}
	f.sets[s.Version()] = s
	f.order = append([]string{s.Version()}, f.order...)
}

func (f *fakeSource) List() ([]model.Meta, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]model.Meta, 0, len(f.order))
	for _, v := range f.order {
		out = append(out, model.Meta{Version: v, Path: v})
	}
	return out, nil
}

func (f *fakeSource) Load(path string) (*model.Set, error) {
	f.loads++
	s, ok := f.sets[path]
	if !ok {
		return nil, errors.ErrNotFound
	}
	return s, nil
}

type fakeHolder struct {
	mu     sync.Mutex
	scorer *scoring.Scorer
}

func (h *fakeHolder) ModelVersion() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.scorer == nil {
		return ""
	}
	return h.scorer.Set().Version()
}

func (h *fakeHolder) Swap(s *scoring.Scorer) {
	h.mu.Lock()
	h.scorer = s
	h.mu.Unlock()
}

type fakeRegistry struct {
	activated []string
}

func (r *fakeRegistry) Register(_ context.Context, meta model.Meta, activate bool) error {
	if activate {
		r.activated = append(r.activated, meta.Version)
	}
	return nil
}

func (r *fakeRegistry) Active(context.Context) (*model.Meta, error) {
	if len(r.activated) == 0 {
		return nil, errors.ErrNotFound
	}
	return &model.Meta{Version: r.activated[len(r.activated)-1]}, nil
}

type fakeInvalidator struct {
	versions []string
}

func (c *fakeInvalidator) Invalidate(_ context.Context, v string) (int, error) {
	c.versions = append(c.versions, v)
	return 3, nil
}

func TestModelReload_SwapsNewerArtifact(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{}
	holder := &fakeHolder{}
	reg := &fakeRegistry{}
	cache := &fakeInvalidator{}
	w := NewModelReloadWorker(src, holder, features.ModeLenient, reg, cache, time.Minute, true)

	require.NoError(t, w.Run(ctx), "no artifacts is not an error")
	assert.Equal(t, "", holder.ModelVersion())

	first := linearSet(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	src.add(first)
	require.NoError(t, w.Run(ctx))
	assert.Equal(t, first.Version(), holder.ModelVersion())
	assert.Empty(t, cache.versions, "nothing to invalidate on first load")

	require.NoError(t, w.Run(ctx))
	assert.Equal(t, 1, src.loads, "unchanged version is not reloaded")

	second := linearSet(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	src.add(second)
	require.NoError(t, w.Run(ctx))
	assert.Equal(t, second.Version(), holder.ModelVersion())
	assert.Equal(t, []string{first.Version()}, cache.versions)
	assert.Equal(t, []string{first.Version(), second.Version()}, reg.activated)
}

func TestModelReload_ListFailure(t *testing.T) {
	src := &fakeSource{err: errors.ErrUnavailable}
	w := NewModelReloadWorker(src, &fakeHolder{}, features.ModeStrict, nil, nil, time.Minute, true)
	assert.ErrorIs(t, w.Run(context.Background()), errors.ErrUnavailable)
}

func TestBuildScorer_UsesConfiguredMode(t *testing.T) {
	set := linearSet(t, time.Now())
	scorer, err := BuildScorer(set, features.ModeStrict)
	require.NoError(t, err)

	rec := patient.NewRecord("P1").Set(patient.FeatureBMI, "twenty")
	_, err = scorer.Preprocess(rec)
	assert.ErrorIs(t, err, errors.ErrDataValidation)
}
