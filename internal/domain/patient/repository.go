package patient

import (
	"context"
	"time"
)

// PredictionRepository persists scored predictions together with the feature
// vector they were computed from
type PredictionRepository interface {
	Store(ctx context.Context, pred *Prediction, vector FeatureVector) error
	GetLatest(ctx context.Context, patientID string) (*Prediction, error)
	// FindSimilar returns predictions whose feature vectors are closest to vector
	FindSimilar(ctx context.Context, vector FeatureVector, limit int) ([]*Prediction, error)
}

// HistoryRepository keeps an append-only analytical log of predictions
type HistoryRepository interface {
	Append(ctx context.Context, preds []*Prediction) error
	LabelDistribution(ctx context.Context, modelVersion string, since time.Time) (map[RiskLabel]uint64, error)
}

// PredictionCache memoizes predictions per model version and feature vector
type PredictionCache interface {
	Get(ctx context.Context, modelVersion string, vector FeatureVector) (*Prediction, bool, error)
	Set(ctx context.Context, modelVersion string, vector FeatureVector, pred *Prediction) error
}
