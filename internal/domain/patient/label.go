package patient

// RiskLabel is the categorical tier derived from the 30-day score
type RiskLabel string

const (
	LabelVeryLow  RiskLabel = "Very Low"
	LabelLow      RiskLabel = "Low"
	LabelModerate RiskLabel = "Moderate"
	LabelHigh     RiskLabel = "High"
	LabelVeryHigh RiskLabel = "Very High"
)

// Labels lists tiers from lowest to highest
var Labels = []RiskLabel{LabelVeryLow, LabelLow, LabelModerate, LabelHigh, LabelVeryHigh}

// tierFloors holds the inclusive lower bound of each tier above Very Low
var tierFloors = []float64{20, 40, 60, 80}

// LabelFor assigns a tier to a 30-day score. Lower bounds are inclusive and
// scores outside [0,100] saturate into the boundary tiers. NaN maps to Very Low.
func LabelFor(risk30 float64) RiskLabel {
	idx := 0
	for _, floor := range tierFloors {
		if risk30 >= floor {
			idx++
		}
	}
	return Labels[idx]
}

// Valid checks if label is one of the canonical tiers
func (l RiskLabel) Valid() bool {
	switch l {
	case LabelVeryLow, LabelLow, LabelModerate, LabelHigh, LabelVeryHigh:
		return true
	}
	return false
}

// Rank returns the tier position (0 = Very Low), or -1 for unknown labels
func (l RiskLabel) Rank() int {
	for i, v := range Labels {
		if v == l {
			return i
		}
	}
	return -1
}

// Elevated reports whether the tier calls for active care coordination
func (l RiskLabel) Elevated() bool {
	return l == LabelHigh || l == LabelVeryHigh
}

// String returns string representation
func (l RiskLabel) String() string {
	return string(l)
}
