package training

import (
	"context"
	"strings"
	"time"

	"riskstrat/internal/domain/patient"
)

// RunRecord is the flat summary of a training run kept in the analytical log
type RunRecord struct {
	Version      string
	Preset       string
	Champion     string
	TotalRows    int
	TrainRows    int
	TestRows     int
	DroppedRows  int
	RejectedRows int
	R2           map[patient.Horizon]float64
	MAE          map[patient.Horizon]float64
	TopFeatures  string
	Failed       string
	Accuracy     float64
	Duration     time.Duration
	FinishedAt   time.Time
}

// RunLog persists training run summaries
type RunLog interface {
	RecordRun(ctx context.Context, run RunRecord) error
}

// Record flattens the result for the run log
func (r *Result) Record(preset Preset, finishedAt time.Time) RunRecord {
	rec := RunRecord{
		Preset:       string(preset),
		Champion:     r.Champion,
		TotalRows:    r.TotalRows,
		TrainRows:    r.TrainRows,
		TestRows:     r.TestRows,
		DroppedRows:  r.DroppedRows,
		RejectedRows: len(r.RejectedRows),
		R2:           make(map[patient.Horizon]float64, len(r.Metrics)),
		MAE:          make(map[patient.Horizon]float64, len(r.Metrics)),
		TopFeatures:  strings.Join(r.TopFeatures(3), ", "),
		Failed:       strings.Join(r.FailedFamilies(), ","),
		Duration:     r.Duration,
		FinishedAt:   finishedAt,
	}
	if r.Set != nil {
		rec.Version = r.Set.Version()
	}
	for h, sc := range r.Metrics {
		rec.R2[h] = sc.R2
		rec.MAE[h] = sc.MAE
	}
	if r.Confusion != nil {
		rec.Accuracy = r.Confusion.Accuracy()
	}
	return rec
}
