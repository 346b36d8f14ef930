package features

import (
	"github.com/markcheno/go-talib"

	"riskstrat/internal/domain/patient"
)

// trendSources maps each trend feature to the vital whose history feeds it
var trendSources = map[string]string{
	patient.FeatureBPTrend:    patient.FeatureBPSystolic,
	patient.FeatureHbA1cTrend: patient.FeatureHbA1c,
}

// Slope returns the least-squares slope of chronological readings per step.
// Fewer than two readings carry no trend.
func Slope(readings []float64) (float64, bool) {
	if len(readings) < 2 {
		return 0, false
	}
	out := talib.LinearRegSlope(readings, len(readings))
	return out[len(out)-1], true
}

// trendFromHistory derives a trend feature from record history when available
func trendFromHistory(rec *patient.Record, feature string) (float64, bool) {
	source, ok := trendSources[feature]
	if !ok || rec.History == nil {
		return 0, false
	}
	return Slope(rec.History[source])
}
