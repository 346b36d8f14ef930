package clickhouse

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"riskstrat/internal/domain/patient"
	"riskstrat/internal/metrics"
	"riskstrat/pkg/errors"
)

// Compile-time check
var _ patient.HistoryRepository = (*HistoryRepository)(nil)

// HistoryRepository is the append-only prediction log
type HistoryRepository struct {
	conn driver.Conn
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(conn driver.Conn) *HistoryRepository {
	return &HistoryRepository{conn: conn}
}

// Append inserts predictions in a single batch
func (r *HistoryRepository) Append(ctx context.Context, preds []*patient.Prediction) error {
	if len(preds) == 0 {
		return nil
	}

	start := time.Now()
	err := r.append(ctx, preds)
	metrics.RecordDBQuery("clickhouse", "append_history", time.Since(start), err)
	return err
}

func (r *HistoryRepository) append(ctx context.Context, preds []*patient.Prediction) error {
	batch, err := r.conn.PrepareBatch(ctx, `
		INSERT INTO prediction_history (
			prediction_id, patient_id, model_version, risk_30d, risk_60d, risk_90d,
			risk_label, top_features, attribution_available, created_at
		)`)
	if err != nil {
		return errors.Wrap(err, "failed to prepare history batch")
	}

	for _, p := range preds {
		if p == nil {
			continue
		}
		var attributed uint8
		if p.AttributionAvailable {
			attributed = 1
		}
		topFeatures := p.TopFeatures
		if topFeatures == nil {
			topFeatures = []string{}
		}
		if err := batch.Append(
			p.ID, p.PatientID, p.ModelVersion, p.Risk30D, p.Risk60D, p.Risk90D,
			p.Label.String(), topFeatures, attributed, p.CreatedAt,
		); err != nil {
			_ = batch.Abort()
			return errors.Wrap(err, "failed to append history row")
		}
	}

	if err := batch.Send(); err != nil {
		return errors.Wrap(err, "failed to send history batch")
	}
	return nil
}

// LabelDistribution counts predictions per tier for a model version since a point in time
func (r *HistoryRepository) LabelDistribution(ctx context.Context, modelVersion string, since time.Time) (map[patient.RiskLabel]uint64, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT risk_label, count() AS n
		FROM prediction_history
		WHERE model_version = ? AND created_at >= ?
		GROUP BY risk_label`,
		modelVersion, since,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query label distribution")
	}
	defer rows.Close()

	out := make(map[patient.RiskLabel]uint64)
	for rows.Next() {
		var label string
		var n uint64
		if err := rows.Scan(&label, &n); err != nil {
			return nil, errors.Wrap(err, "failed to scan label distribution")
		}
		out[patient.RiskLabel(label)] = n
	}
	return out, rows.Err()
}
