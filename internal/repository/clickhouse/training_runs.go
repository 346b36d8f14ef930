package clickhouse

import (
	"context"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"riskstrat/internal/domain/patient"
	"riskstrat/internal/training"
	"riskstrat/pkg/errors"
)

// Compile-time check
var _ training.RunLog = (*TrainingRunRepository)(nil)

// TrainingRunRepository logs training run summaries
type TrainingRunRepository struct {
	conn driver.Conn
}

// NewTrainingRunRepository creates a new training run repository
func NewTrainingRunRepository(conn driver.Conn) *TrainingRunRepository {
	return &TrainingRunRepository{conn: conn}
}

// RecordRun stores one run summary
func (r *TrainingRunRepository) RecordRun(ctx context.Context, run training.RunRecord) error {
	err := r.conn.Exec(ctx, `
		INSERT INTO training_runs (
			version, preset, champion, total_rows, train_rows, test_rows, dropped_rows, rejected_rows,
			r2_30d, r2_60d, r2_90d, mae_30d, mae_60d, mae_90d, label_accuracy,
			top_features, failed, duration_ms, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.Version, run.Preset, run.Champion,
		uint32(run.TotalRows), uint32(run.TrainRows), uint32(run.TestRows),
		uint32(run.DroppedRows), uint32(run.RejectedRows),
		run.R2[patient.Horizon30], run.R2[patient.Horizon60], run.R2[patient.Horizon90],
		run.MAE[patient.Horizon30], run.MAE[patient.Horizon60], run.MAE[patient.Horizon90],
		run.Accuracy, run.TopFeatures, run.Failed,
		uint64(run.Duration.Milliseconds()), run.FinishedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to record training run")
	}
	return nil
}

// Recent returns the champion and 30-day R² of the latest runs, newest first
func (r *TrainingRunRepository) Recent(ctx context.Context, limit int) ([]training.RunRecord, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT version, preset, champion, r2_30d, finished_at
		FROM training_runs
		ORDER BY finished_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query training runs")
	}
	defer rows.Close()

	var out []training.RunRecord
	for rows.Next() {
		run := training.RunRecord{R2: map[patient.Horizon]float64{}}
		var r2 float64
		if err := rows.Scan(&run.Version, &run.Preset, &run.Champion, &r2, &run.FinishedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan training run")
		}
		run.R2[patient.Horizon30] = r2
		out = append(out, run)
	}
	return out, rows.Err()
}
