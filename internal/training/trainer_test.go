package training

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskstrat/internal/attribution"
	"riskstrat/internal/dataset"
	"riskstrat/internal/domain/patient"
	"riskstrat/internal/features"
	"riskstrat/internal/ml"
	"riskstrat/internal/model"
	"riskstrat/internal/scoring"
	"riskstrat/pkg/errors"
)

func label(v float64) *float64 { return &v }

// ageDominated builds rows whose targets rise deterministically with AGE,
// with a small heart failure effect and noise
func ageDominated(n int, seed int64) []patient.LabeledRecord {
	rng := rand.New(rand.NewSource(seed))
	rows := make([]patient.LabeledRecord, n)
	for i := range rows {
		age := 40 + rng.Float64()*50
		hf := float64(rng.Intn(2))
		rec := patient.NewRecord("p").
			Set("AGE", age).
			Set("GENDER", rng.Intn(2)).
			Set("HEARTFAILURE", hf).
			Set("STROKE", rng.Intn(2)).
			Set("BMI", 18+rng.Float64()*20).
			Set("BP_S", 100+rng.Float64()*60).
			Set("GLUCOSE", 70+rng.Float64()*80).
			Set("RX_ADH", rng.Float64()).
			Set("TOTAL_CLAIMS_COST", rng.Float64()*5000)
		risk := 1.5*(age-40) + 3*hf + rng.NormFloat64()
		rows[i] = patient.LabeledRecord{
			Record: rec,
			Labels: map[patient.Horizon]*float64{
				patient.Horizon30: label(risk),
				patient.Horizon60: label(risk + 5),
				patient.Horizon90: label(risk + 10),
			},
		}
	}
	return rows
}

func config(families ...string) Config {
	cfg := DefaultConfig()
	cfg.Budget = Budget{Iterations: 1, Folds: 3, Families: families}
	return cfg
}

func TestTrain_AgeDominantEndToEnd(t *testing.T) {
	trainer, err := NewTrainer(config(ml.KindGradientBoosting, ml.KindRandomForest))
	require.NoError(t, err)

	res, err := trainer.Train(context.Background(), ageDominated(1000, 7))
	require.NoError(t, err)
	require.NotNil(t, res.Set)

	assert.Contains(t, res.TopFeatures(3), patient.FeatureAge)
	assert.Equal(t, patient.FeatureAge, res.Importances[0].Feature)
	assert.Equal(t, SourceAttribution, res.ImportanceSource)
	assert.Greater(t, res.Metrics[patient.Horizon30].R2, 0.5)

	assert.Equal(t, 800, res.TrainRows)
	assert.Equal(t, 200, res.TestRows)
	assert.Equal(t, 200, res.Confusion.Total())
	assert.Greater(t, res.Confusion.Accuracy(), 0.5)
	assert.Len(t, res.Candidates, 2)
	assert.Empty(t, res.FailedFamilies())
	assert.NoError(t, res.MissingLabels)

	assert.Equal(t, patient.FeatureNames, res.Set.FeatureNames())
	assert.Equal(t, res.Champion, res.Set.Champion())
	assert.Len(t, res.Set.Importances(), len(patient.FeatureNames))
}

func TestTrain_RoundTripScoresIdentically(t *testing.T) {
	trainer, err := NewTrainer(config(ml.KindRandomForest))
	require.NoError(t, err)
	res, err := trainer.Train(context.Background(), ageDominated(200, 3))
	require.NoError(t, err)

	store := model.NewFileStore(t.TempDir())
	path, err := store.Save(res.Set)
	require.NoError(t, err)
	loaded, err := store.Load(path)
	require.NoError(t, err)

	before, err := scoring.NewScorer(res.Set, attribution.NewExplainer())
	require.NoError(t, err)
	after, err := scoring.NewScorer(loaded, attribution.NewExplainer())
	require.NoError(t, err)

	rec := patient.NewRecord("x").Set("AGE", 77).Set("HEARTFAILURE", 1).Set("BMI", 31)
	p1, _, err := before.ScoreRecord(rec)
	require.NoError(t, err)
	p2, _, err := after.ScoreRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
}

func TestTrain_Deterministic(t *testing.T) {
	rows := ageDominated(150, 11)
	vec := (&patient.Features{Age: 66, BMI: 28}).ToFeatureVector()

	var scores []float64
	for i := 0; i < 2; i++ {
		trainer, err := NewTrainer(config(ml.KindExtraTrees, ml.KindRidge))
		require.NoError(t, err)
		res, err := trainer.Train(context.Background(), rows)
		require.NoError(t, err)

		s, err := scoring.NewScorer(res.Set, nil)
		require.NoError(t, err)
		pred, err := s.Score(vec)
		require.NoError(t, err)
		scores = append(scores, pred.Risk30D)
	}
	assert.Equal(t, scores[0], scores[1])
}

func TestTrain_DropsRowsMissingLabels(t *testing.T) {
	rows := ageDominated(120, 5)
	rows[3].Labels[patient.Horizon60] = nil
	delete(rows[9].Labels, patient.Horizon90)
	rows[10].Record = nil

	trainer, err := NewTrainer(config(ml.KindRidge))
	require.NoError(t, err)
	res, err := trainer.Train(context.Background(), rows)
	require.NoError(t, err)

	assert.Equal(t, 3, res.DroppedRows)
	assert.Equal(t, 120, res.TotalRows)
	assert.Equal(t, 117, res.TrainRows+res.TestRows)
	assert.ErrorIs(t, res.MissingLabels, errors.ErrMissingLabels)
}

func TestTrain_NonFiniteLabelsAreDropped(t *testing.T) {
	rows := ageDominated(90, 6)
	rows[4].Labels[patient.Horizon30] = label(math.NaN())
	rows[7].Labels[patient.Horizon90] = label(math.Inf(1))

	trainer, err := NewTrainer(config(ml.KindRidge))
	require.NoError(t, err)
	res, err := trainer.Train(context.Background(), rows)
	require.NoError(t, err)

	assert.Equal(t, 2, res.DroppedRows)
	assert.Equal(t, 88, res.TrainRows+res.TestRows)
}

func TestTrain_CSVWithNaNLabelRow(t *testing.T) {
	var b strings.Builder
	b.WriteString("DESYNPUF_ID,AGE,BMI,RISK_30D,RISK_60D,RISK_90D\n")
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 60; i++ {
		age := 40 + rng.Float64()*50
		risk := 1.5 * (age - 40)
		fmt.Fprintf(&b, "p%d,%.2f,%.1f,%.3f,%.3f,%.3f\n", i, age, 20+rng.Float64()*15, risk, risk+5, risk+10)
	}
	b.WriteString("bad,70,30,NaN,50,60\n")

	table, err := dataset.ReadCSV(strings.NewReader(b.String()))
	require.NoError(t, err)
	rows, err := table.Labeled()
	require.NoError(t, err)
	require.Len(t, rows, 61)

	trainer, err := NewTrainer(config(ml.KindRidge))
	require.NoError(t, err)
	res, err := trainer.Train(context.Background(), rows)
	require.NoError(t, err)
	assert.Equal(t, 1, res.DroppedRows)
	assert.Equal(t, 61, res.TotalRows)
}

func TestTrain_EmptyAfterDropIsFatal(t *testing.T) {
	rows := ageDominated(5, 1)
	for i := range rows {
		rows[i].Labels[patient.Horizon30] = nil
	}
	trainer, err := NewTrainer(config(ml.KindRidge))
	require.NoError(t, err)

	_, err = trainer.Train(context.Background(), rows)
	assert.ErrorIs(t, err, errors.ErrEmptyDataset)

	_, err = trainer.Train(context.Background(), nil)
	assert.ErrorIs(t, err, errors.ErrEmptyDataset)
}

func TestTrain_FailingFamilyIsSkipped(t *testing.T) {
	// 30 rows leave too few rows per fold for unpenalized OLS on 29 features
	trainer, err := NewTrainer(config(ml.KindOLS, ml.KindRidge))
	require.NoError(t, err)

	res, err := trainer.Train(context.Background(), ageDominated(30, 2))
	require.NoError(t, err)
	assert.Equal(t, ml.KindRidge, res.Champion)
	assert.Equal(t, []string{ml.KindOLS}, res.FailedFamilies())
	require.Len(t, res.Candidates, 2)
	assert.Error(t, res.Candidates[0].Err)
}

func TestTrain_AllFamiliesFailIsFatal(t *testing.T) {
	trainer, err := NewTrainer(config(ml.KindOLS))
	require.NoError(t, err)

	_, err = trainer.Train(context.Background(), ageDominated(30, 2))
	assert.ErrorIs(t, err, errors.ErrTrainingFailure)
}

func TestTrain_StrictModeRejectsRows(t *testing.T) {
	rows := ageDominated(60, 4)
	rows[2].Record.Set("BMI", "obese")
	rows[2].Labels[patient.Horizon30] = nil // dropped before preprocessing
	rows[5].Record.Set("GLUCOSE", "high")

	cfg := config(ml.KindRidge)
	cfg.Mode = features.ModeStrict
	trainer, err := NewTrainer(cfg)
	require.NoError(t, err)

	res, err := trainer.Train(context.Background(), rows)
	require.NoError(t, err)
	require.Len(t, res.RejectedRows, 1)
	assert.Equal(t, 5, res.RejectedRows[0].Row)
	assert.ErrorIs(t, res.RejectedRows[0].Err, errors.ErrDataValidation)
	assert.Equal(t, 58, res.TrainRows+res.TestRows)
}

func TestTrain_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	trainer, err := NewTrainer(config(ml.KindRidge))
	require.NoError(t, err)

	_, err = trainer.Train(ctx, ageDominated(50, 1))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSelectChampion(t *testing.T) {
	cands := []Candidate{
		{Family: "a", MeanTestR2: 0.80, MeanCV: 0.70},
		{Family: "b", MeanTestR2: 0.8005, MeanCV: 0.60},
		{Family: "c", MeanTestR2: 0.7999, MeanCV: 0.75},
		{Family: "d", MeanTestR2: 0.99, Err: errors.New("boom")},
	}
	best := selectChampion(cands, 1e-3)
	require.NotNil(t, best)
	assert.Equal(t, "c", best.Family, "ties resolved by cross-validated score")

	best = selectChampion(cands, 0)
	assert.Equal(t, "b", best.Family)

	assert.Nil(t, selectChampion([]Candidate{{Family: "x", Err: errors.New("no")}}, 0))
}

func TestImportances_NativeFallback(t *testing.T) {
	X := make([][]float64, 40)
	y := make([]float64, 40)
	for i := range X {
		X[i] = make([]float64, len(patient.FeatureNames))
		X[i][0] = float64(i)
		y[i] = float64(i)
	}
	forest, err := (&ml.ForestEstimator{NumTrees: 3, Seed: 1}).Fit(X, y)
	require.NoError(t, err)
	set, err := model.NewExternalSet(patient.FeatureNames, nil, map[patient.Horizon]ml.Regressor{
		patient.Horizon30: forest, patient.Horizon60: forest, patient.Horizon90: forest,
	})
	require.NoError(t, err)

	trainer, err := NewTrainer(DefaultConfig())
	require.NoError(t, err)
	imp, source := trainer.importances(set, []patient.FeatureVector{(&patient.Features{Age: 3}).ToFeatureVector()})
	assert.Equal(t, SourceNative, source)
	assert.Equal(t, patient.FeatureAge, imp[0].Feature)
	assert.InDelta(t, 1.0, imp[0].Value, 1e-9)
}
