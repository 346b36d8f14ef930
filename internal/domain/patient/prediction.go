package patient

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultTopFeatures is reported when attribution is unavailable
var DefaultTopFeatures = []string{FeatureAge, FeatureBMI, FeatureGlucose}

// Prediction is the scored outcome for one patient
type Prediction struct {
	ID           uuid.UUID `db:"id" json:"id"`
	PatientID    string    `db:"patient_id" json:"patient_id"`
	ModelVersion string    `db:"model_version" json:"model_version"`

	Risk30D float64   `db:"risk_30d" json:"RISK_30D"`
	Risk60D float64   `db:"risk_60d" json:"RISK_60D"`
	Risk90D float64   `db:"risk_90d" json:"RISK_90D"`
	Label   RiskLabel `db:"risk_label" json:"RISK_LABEL"`

	// TopFeatures are ordered by attribution magnitude toward RISK_30D
	TopFeatures          []string `db:"-" json:"TOP_3_FEATURES"`
	AttributionAvailable bool     `db:"attribution_available" json:"attribution_available"`

	Recommendations string    `db:"recommendations" json:"AI_RECOMMENDATIONS"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// Risk returns the score for a horizon
func (p *Prediction) Risk(h Horizon) float64 {
	switch h {
	case Horizon30:
		return p.Risk30D
	case Horizon60:
		return p.Risk60D
	case Horizon90:
		return p.Risk90D
	}
	return 0
}

// SetRisk stores the score for a horizon
func (p *Prediction) SetRisk(h Horizon, v float64) {
	switch h {
	case Horizon30:
		p.Risk30D = v
	case Horizon60:
		p.Risk60D = v
	case Horizon90:
		p.Risk90D = v
	}
}

// TopFeaturesString renders the top features the way reports expect ("AGE, BMI, GLUCOSE")
func (p *Prediction) TopFeaturesString() string {
	return strings.Join(p.TopFeatures, ", ")
}

// ParseTopFeatures splits a comma-joined top feature string
func ParseTopFeatures(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
