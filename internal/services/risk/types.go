package riskservice

import (
	"context"
	"time"

	"riskstrat/internal/domain/patient"
)

// Assessment is the full outcome of scoring one patient
type Assessment struct {
	Prediction *patient.Prediction
	Features   *patient.Features
	// Explanation is the human-readable attribution of RISK_30D
	Explanation string
	// Similar holds previously scored patients with the nearest feature vectors
	Similar []*patient.Prediction
	Cached  bool
}

// BatchOutcome is the result of one record of a batch
type BatchOutcome struct {
	Index      int
	ID         string
	Assessment *Assessment
	Err        error
}

// PredictionEvent is published for every completed assessment.
// It carries the patient id so downstream care systems can route it.
type PredictionEvent struct {
	PredictionID    string    `json:"prediction_id"`
	PatientID       string    `json:"patient_id"`
	ModelVersion    string    `json:"model_version"`
	Risk30D         float64   `json:"RISK_30D"`
	Risk60D         float64   `json:"RISK_60D"`
	Risk90D         float64   `json:"RISK_90D"`
	Label           string    `json:"RISK_LABEL"`
	TopFeatures     []string  `json:"TOP_3_FEATURES"`
	Recommendations string    `json:"AI_RECOMMENDATIONS"`
	CreatedAt       time.Time `json:"created_at"`
}

// Publisher sends events to the message bus
type Publisher interface {
	Publish(ctx context.Context, topic string, key string, event interface{}) error
}

// HistorySink accepts predictions for the analytical log; implementations may buffer
type HistorySink interface {
	Add(ctx context.Context, preds ...*patient.Prediction) error
}

func newEvent(p *patient.Prediction) PredictionEvent {
	return PredictionEvent{
		PredictionID:    p.ID.String(),
		PatientID:       p.PatientID,
		ModelVersion:    p.ModelVersion,
		Risk30D:         p.Risk30D,
		Risk60D:         p.Risk60D,
		Risk90D:         p.Risk90D,
		Label:           p.Label.String(),
		TopFeatures:     p.TopFeatures,
		Recommendations: p.Recommendations,
		CreatedAt:       p.CreatedAt,
	}
}
