package postgres

import (
	"context"

	"riskstrat/pkg/errors"
)

// Schema creates the prediction store and model registry. The vector
// dimension matches the canonical feature list.
const Schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS predictions (
	id                    UUID PRIMARY KEY,
	patient_id            TEXT NOT NULL,
	model_version         TEXT NOT NULL,
	risk_30d              DOUBLE PRECISION NOT NULL,
	risk_60d              DOUBLE PRECISION NOT NULL,
	risk_90d              DOUBLE PRECISION NOT NULL,
	risk_label            TEXT NOT NULL,
	top_features          TEXT[] NOT NULL DEFAULT '{}',
	attribution_available BOOLEAN NOT NULL DEFAULT FALSE,
	recommendations       TEXT NOT NULL DEFAULT '',
	feature_vector        vector(29) NOT NULL,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_predictions_patient ON predictions (patient_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_predictions_vector ON predictions USING hnsw (feature_vector vector_l2_ops);

CREATE TABLE IF NOT EXISTS model_sets (
	id            UUID PRIMARY KEY,
	version       TEXT NOT NULL UNIQUE,
	path          TEXT NOT NULL,
	champion      TEXT NOT NULL,
	feature_names TEXT[] NOT NULL,
	metrics       JSONB NOT NULL DEFAULT '{}',
	importances   JSONB NOT NULL DEFAULT '[]',
	active        BOOLEAN NOT NULL DEFAULT FALSE,
	created_at    TIMESTAMPTZ NOT NULL
);
`

// Migrate applies Schema; every statement is idempotent
func Migrate(ctx context.Context, db DBTX) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return errors.Wrap(err, "apply postgres schema")
	}
	return nil
}
