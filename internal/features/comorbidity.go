package features

import "riskstrat/internal/domain/patient"

// ConditionWeights is the fixed severity-informed weight table for chronic
// conditions. The weights are clinical judgement, not learned.
var ConditionWeights = map[string]float64{
	patient.FeatureHeartFailure: 3.0,
	patient.FeatureStroke:       2.8,
	patient.FeatureCancer:       2.5,
	patient.FeatureRenalDisease: 2.3,
	patient.FeaturePulmonary:    2.0,
	patient.FeatureAlzheimer:    1.8,
	patient.FeatureRheumatoid:   1.5,
	patient.FeatureOsteoporosis: 1.2,
}

// ScoreComorbidity computes the chronic disease burden of a set of 0/1 flags.
//
// Flags are normalized to 0/1 first (any positive value counts as set). count
// is the sum of the normalized flags, kept for models trained before the
// weighted score existed; weighted is the sum of flag*weight. Names outside
// ConditionWeights are ignored so callers can pass a whole record's flag map.
func ScoreComorbidity(flags map[string]float64) (count int, weighted float64) {
	for _, name := range patient.ChronicConditions {
		flag, ok := flags[name]
		if !ok || binarize(flag) == 0 {
			continue
		}
		count++
		weighted += ConditionWeights[name]
	}
	return count, weighted
}
