package patient

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLabelFor_TierBoundaries(t *testing.T) {
	tests := []struct {
		score float64
		want  RiskLabel
	}{
		{19.99, LabelVeryLow},
		{20.0, LabelLow},
		{39.99, LabelLow},
		{40.0, LabelModerate},
		{59.99, LabelModerate},
		{60.0, LabelHigh},
		{79.99, LabelHigh},
		{80.0, LabelVeryHigh},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, LabelFor(tt.score), "score %.2f", tt.score)
	}
}

func TestLabelFor_Saturates(t *testing.T) {
	assert.Equal(t, LabelVeryLow, LabelFor(-15))
	assert.Equal(t, LabelVeryHigh, LabelFor(140))
	assert.Equal(t, LabelVeryLow, LabelFor(math.NaN()))
}

func TestRiskLabel_Rank(t *testing.T) {
	assert.Equal(t, 0, LabelVeryLow.Rank())
	assert.Equal(t, 4, LabelVeryHigh.Rank())
	assert.Equal(t, -1, RiskLabel("Medium").Rank())
	assert.False(t, RiskLabel("Medium").Valid())
	assert.True(t, LabelHigh.Elevated())
	assert.False(t, LabelModerate.Elevated())
}
