package clickhouse

import (
	"context"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"riskstrat/pkg/errors"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS prediction_history (
		prediction_id         UUID,
		patient_id            String,
		model_version         LowCardinality(String),
		risk_30d              Float64,
		risk_60d              Float64,
		risk_90d              Float64,
		risk_label            LowCardinality(String),
		top_features          Array(String),
		attribution_available UInt8,
		created_at            DateTime64(3)
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMM(created_at)
	ORDER BY (model_version, created_at)`,

	`CREATE TABLE IF NOT EXISTS training_runs (
		version       String,
		preset        LowCardinality(String),
		champion      LowCardinality(String),
		total_rows    UInt32,
		train_rows    UInt32,
		test_rows     UInt32,
		dropped_rows  UInt32,
		rejected_rows UInt32,
		r2_30d        Float64,
		r2_60d        Float64,
		r2_90d        Float64,
		mae_30d       Float64,
		mae_60d       Float64,
		mae_90d       Float64,
		label_accuracy Float64,
		top_features  String,
		failed        String,
		duration_ms   UInt64,
		finished_at   DateTime64(3)
	) ENGINE = MergeTree()
	ORDER BY finished_at`,
}

// Migrate creates the analytical tables
func Migrate(ctx context.Context, conn driver.Conn) error {
	for _, stmt := range schema {
		if err := conn.Exec(ctx, stmt); err != nil {
			return errors.Wrap(err, "apply clickhouse schema")
		}
	}
	return nil
}
