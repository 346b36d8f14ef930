package patient

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureNames_Canonical(t *testing.T) {
	require.Len(t, FeatureNames, 29)

	seen := make(map[string]bool)
	for _, n := range FeatureNames {
		assert.False(t, seen[n], "duplicate feature %s", n)
		seen[n] = true
	}
	assert.False(t, seen[FeatureOutVisits])
	assert.False(t, seen[FeatureComorCount])
}

func TestFeatures_ToFeatureVector(t *testing.T) {
	f := &Features{Age: 72, BMI: 31.5, ComorWeightedScore: 5.8, ClaimsFlag: 1, OutVisits: 4}

	vec := f.ToFeatureVector()
	require.Equal(t, 29, vec.Len())
	assert.Equal(t, FeatureNames, vec.Names)
	assert.Equal(t, 72.0, vec.Values[0])

	bmi, ok := vec.Get(FeatureBMI)
	require.True(t, ok)
	assert.Equal(t, 31.5, bmi)

	_, ok = vec.Get(FeatureOutVisits)
	assert.False(t, ok, "auxiliary fields stay out of the vector")
	assert.True(t, vec.Finite())
}

func TestFeatures_SetValue(t *testing.T) {
	var f Features
	assert.True(t, f.SetValue(FeatureGlucose, 130))
	assert.False(t, f.SetValue("SHOE_SIZE", 9))
	assert.Equal(t, 130.0, f.Glucose)
}

func TestRawFeatures(t *testing.T) {
	raw := RawFeatures()
	assert.Len(t, raw, 28)
	assert.Contains(t, raw, FeatureOutVisits)
	assert.NotContains(t, raw, FeatureClaimsFlag)
	assert.NotContains(t, raw, FeatureComorWeightedScore)
}

func TestLabeledRecord_Complete(t *testing.T) {
	v := 12.0
	full := LabeledRecord{Labels: map[Horizon]*float64{Horizon30: &v, Horizon60: &v, Horizon90: &v}}
	partial := LabeledRecord{Labels: map[Horizon]*float64{Horizon30: &v, Horizon60: nil}}

	assert.True(t, full.Complete())
	assert.False(t, partial.Complete())

	nan := math.NaN()
	inf := math.Inf(-1)
	assert.False(t, LabeledRecord{Labels: map[Horizon]*float64{Horizon30: &nan, Horizon60: &v, Horizon90: &v}}.Complete())
	assert.False(t, LabeledRecord{Labels: map[Horizon]*float64{Horizon30: &v, Horizon60: &v, Horizon90: &inf}}.Complete())
}

func TestParseTopFeatures(t *testing.T) {
	p := &Prediction{TopFeatures: []string{"AGE", "BMI", "GLUCOSE"}}
	assert.Equal(t, "AGE, BMI, GLUCOSE", p.TopFeaturesString())
	assert.Equal(t, p.TopFeatures, ParseTopFeatures(p.TopFeaturesString()))
	assert.Nil(t, ParseTopFeatures("  "))
}
