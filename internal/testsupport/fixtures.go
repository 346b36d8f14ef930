package testsupport

import (
	"time"

	"github.com/google/uuid"

	"riskstrat/internal/domain/patient"
)

// NewPrediction builds a stored-shape prediction with a fresh id
func NewPrediction(patientID, version string, risk30 float64) *patient.Prediction {
	return &patient.Prediction{
		ID:                   uuid.New(),
		PatientID:            patientID,
		ModelVersion:         version,
		Risk30D:              risk30,
		Risk60D:              risk30 + 2,
		Risk90D:              risk30 + 4,
		Label:                patient.LabelFor(risk30),
		TopFeatures:          []string{patient.FeatureAge, patient.FeatureBMI, patient.FeatureGlucose},
		AttributionAvailable: true,
		Recommendations:      "Continue preventive care routine",
		CreatedAt:            time.Now().UTC().Truncate(time.Millisecond),
	}
}

// Vector returns a canonical feature vector whose AGE is age and other features are zero
func Vector(age float64) patient.FeatureVector {
	f := &patient.Features{Age: age}
	return f.ToFeatureVector()
}
