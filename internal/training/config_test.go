package training

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskstrat/internal/domain/patient"
	"riskstrat/internal/ml"
	"riskstrat/pkg/errors"
)

func TestPresets(t *testing.T) {
	p, err := ParsePreset(" Fast ")
	require.NoError(t, err)
	assert.Equal(t, PresetFast, p)

	_, err = ParsePreset("turbo")
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	quick, err := BudgetFor(PresetQuick)
	require.NoError(t, err)
	assert.Equal(t, 2, quick.Iterations)
	assert.Equal(t, 3, quick.Folds)
	assert.Equal(t, []string{ml.KindGradientBoosting, ml.KindRandomForest}, quick.Families)

	advanced, err := BudgetFor(PresetAdvanced)
	require.NoError(t, err)
	assert.Equal(t, 25, advanced.Iterations)
	assert.Equal(t, 5, advanced.Folds)
	assert.ElementsMatch(t, ml.FamilyNames(), advanced.Families)

	quick.Families[0] = "mutated"
	again, _ := BudgetFor(PresetQuick)
	assert.Equal(t, ml.KindGradientBoosting, again.Families[0])
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Holdout = 1
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Preset = "nope"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Budget = Budget{Iterations: 1, Families: []string{"svm"}}
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Budget = Budget{Iterations: 3, Folds: 1, Families: []string{ml.KindRidge}}
	b, err := cfg.budget()
	require.NoError(t, err)
	assert.Equal(t, 2, b.Folds)
}

func TestConfusionMatrix(t *testing.T) {
	cm := NewConfusionMatrix([]float64{10, 25, 45, 65, 95, 19.99}, []float64{12, 41, 45, 79.9, 80, 20})
	assert.Equal(t, 6, cm.Total())
	assert.InDelta(t, 4.0/6.0, cm.Accuracy(), 1e-12)
	assert.Equal(t, 1, cm.Counts[patient.LabelLow.Rank()][patient.LabelModerate.Rank()])
	assert.Equal(t, 1, cm.Counts[patient.LabelVeryLow.Rank()][patient.LabelLow.Rank()])
	assert.Contains(t, cm.String(), "Very High")
}
