package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"riskstrat/internal/domain/patient"
	"riskstrat/internal/metrics"
	"riskstrat/pkg/errors"
)

// Compile-time check
var _ patient.PredictionRepository = (*PredictionRepository)(nil)

// PredictionRepository stores predictions with their feature vectors in pgvector
type PredictionRepository struct {
	db DBTX
}

// NewPredictionRepository creates a new prediction repository
func NewPredictionRepository(db DBTX) *PredictionRepository {
	return &PredictionRepository{db: db}
}

// predictionRow mirrors the predictions table
type predictionRow struct {
	ID                   uuid.UUID       `db:"id"`
	PatientID            string          `db:"patient_id"`
	ModelVersion         string          `db:"model_version"`
	Risk30D              float64         `db:"risk_30d"`
	Risk60D              float64         `db:"risk_60d"`
	Risk90D              float64         `db:"risk_90d"`
	RiskLabel            string          `db:"risk_label"`
	TopFeatures          pq.StringArray  `db:"top_features"`
	AttributionAvailable bool            `db:"attribution_available"`
	Recommendations      string          `db:"recommendations"`
	FeatureVector        pgvector.Vector `db:"feature_vector"`
	CreatedAt            time.Time       `db:"created_at"`
}

func (r predictionRow) toDomain() *patient.Prediction {
	return &patient.Prediction{
		ID:                   r.ID,
		PatientID:            r.PatientID,
		ModelVersion:         r.ModelVersion,
		Risk30D:              r.Risk30D,
		Risk60D:              r.Risk60D,
		Risk90D:              r.Risk90D,
		Label:                patient.RiskLabel(r.RiskLabel),
		TopFeatures:          []string(r.TopFeatures),
		AttributionAvailable: r.AttributionAvailable,
		Recommendations:      r.Recommendations,
		CreatedAt:            r.CreatedAt,
	}
}

// Embedding converts a feature vector to the pgvector column type
func Embedding(v patient.FeatureVector) pgvector.Vector {
	values := make([]float32, len(v.Values))
	for i, x := range v.Values {
		values[i] = float32(x)
	}
	return pgvector.NewVector(values)
}

const predictionColumns = `id, patient_id, model_version, risk_30d, risk_60d, risk_90d, risk_label,
	top_features, attribution_available, recommendations, feature_vector, created_at`

// Store inserts a prediction. An unset ID or timestamp is filled in.
func (r *PredictionRepository) Store(ctx context.Context, pred *patient.Prediction, vector patient.FeatureVector) error {
	if pred == nil {
		return errors.Wrap(errors.ErrInvalidInput, "nil prediction")
	}
	if pred.ID == uuid.Nil {
		pred.ID = uuid.New()
	}
	if pred.CreatedAt.IsZero() {
		pred.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO predictions (` + predictionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	start := time.Now()
	_, err := r.db.ExecContext(ctx, query,
		pred.ID, pred.PatientID, pred.ModelVersion,
		pred.Risk30D, pred.Risk60D, pred.Risk90D, pred.Label.String(),
		pq.StringArray(pred.TopFeatures), pred.AttributionAvailable, pred.Recommendations,
		Embedding(vector), pred.CreatedAt,
	)
	metrics.RecordDBQuery("postgres", "insert_prediction", time.Since(start), err)
	if err != nil {
		return errors.Wrap(err, "failed to store prediction")
	}
	return nil
}

// GetLatest returns the most recent prediction for a patient
func (r *PredictionRepository) GetLatest(ctx context.Context, patientID string) (*patient.Prediction, error) {
	query := `SELECT ` + predictionColumns + ` FROM predictions
		WHERE patient_id = $1
		ORDER BY created_at DESC
		LIMIT 1`

	var row predictionRow
	start := time.Now()
	err := r.db.GetContext(ctx, &row, query, patientID)
	metrics.RecordDBQuery("postgres", "get_latest_prediction", time.Since(start), err)
	if err == sql.ErrNoRows {
		return nil, errors.Wrap(errors.ErrNotFound, "no prediction for patient")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get latest prediction")
	}
	return row.toDomain(), nil
}

// FindSimilar returns the predictions whose feature vectors are nearest by L2 distance
func (r *PredictionRepository) FindSimilar(ctx context.Context, vector patient.FeatureVector, limit int) ([]*patient.Prediction, error) {
	if limit <= 0 {
		return nil, nil
	}
	query := `SELECT ` + predictionColumns + ` FROM predictions
		ORDER BY feature_vector <-> $1
		LIMIT $2`

	var rows []predictionRow
	start := time.Now()
	err := r.db.SelectContext(ctx, &rows, query, Embedding(vector), limit)
	metrics.RecordDBQuery("postgres", "find_similar", time.Since(start), err)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find similar predictions")
	}

	out := make([]*patient.Prediction, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

// CountByLabel tallies stored predictions per risk tier for a model version
func (r *PredictionRepository) CountByLabel(ctx context.Context, modelVersion string) (map[patient.RiskLabel]int, error) {
	var rows []struct {
		Label string `db:"risk_label"`
		Count int    `db:"count"`
	}
	err := r.db.SelectContext(ctx, &rows,
		`SELECT risk_label, COUNT(*) AS count FROM predictions WHERE model_version = $1 GROUP BY risk_label`,
		modelVersion,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count predictions by label")
	}
	out := make(map[patient.RiskLabel]int, len(rows))
	for _, row := range rows {
		out[patient.RiskLabel(row.Label)] = row.Count
	}
	return out, nil
}
