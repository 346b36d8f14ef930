package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"riskstrat/internal/ml"
	"riskstrat/internal/model"
	"riskstrat/pkg/errors"
)

// Compile-time check
var _ model.Registry = (*ModelRegistry)(nil)

// ModelRegistry records published model sets in the model_sets table
type ModelRegistry struct {
	db DBTX
}

// NewModelRegistry creates a new model registry repository
func NewModelRegistry(db DBTX) *ModelRegistry {
	return &ModelRegistry{db: db}
}

type modelSetRow struct {
	ID           uuid.UUID      `db:"id"`
	Version      string         `db:"version"`
	Path         string         `db:"path"`
	Champion     string         `db:"champion"`
	FeatureNames pq.StringArray `db:"feature_names"`
	Metrics      []byte         `db:"metrics"`
	Importances  []byte         `db:"importances"`
	Active       bool           `db:"active"`
	CreatedAt    time.Time      `db:"created_at"`
}

func (r modelSetRow) toMeta() (*model.Meta, error) {
	meta := &model.Meta{
		ID:           r.ID.String(),
		Version:      r.Version,
		CreatedAt:    r.CreatedAt,
		FeatureNames: []string(r.FeatureNames),
		Champion:     r.Champion,
		Path:         r.Path,
	}
	if err := json.Unmarshal(r.Metrics, &meta.Metrics); err != nil {
		return nil, errors.Wrapf(err, "decode metrics of model set %s", r.Version)
	}
	if err := json.Unmarshal(r.Importances, &meta.Importances); err != nil {
		return nil, errors.Wrapf(err, "decode importances of model set %s", r.Version)
	}
	return meta, nil
}

// Register inserts a model set and optionally marks it active, in one transaction
// when the handle supports it
func (r *ModelRegistry) Register(ctx context.Context, meta model.Meta, activate bool) error {
	id, err := uuid.Parse(meta.ID)
	if err != nil {
		return errors.Wrapf(errors.ErrInvalidInput, "model set id %q", meta.ID)
	}
	if meta.Metrics == nil {
		meta.Metrics = map[string]ml.Score{}
	}
	metricsJSON, err := json.Marshal(meta.Metrics)
	if err != nil {
		return errors.Wrap(err, "encode metrics")
	}
	importancesJSON, err := json.Marshal(meta.Importances)
	if err != nil {
		return errors.Wrap(err, "encode importances")
	}

	if activate {
		if _, err := r.db.ExecContext(ctx, `UPDATE model_sets SET active = FALSE WHERE active`); err != nil {
			return errors.Wrap(err, "failed to deactivate model sets")
		}
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO model_sets (id, version, path, champion, feature_names, metrics, importances, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (version) DO UPDATE SET path = EXCLUDED.path, active = EXCLUDED.active`,
		id, meta.Version, meta.Path, meta.Champion, pq.StringArray(meta.FeatureNames),
		metricsJSON, importancesJSON, activate, meta.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to register model set %s", meta.Version)
	}
	return nil
}

// Active returns the model set currently marked active
func (r *ModelRegistry) Active(ctx context.Context) (*model.Meta, error) {
	var row modelSetRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM model_sets WHERE active ORDER BY created_at DESC LIMIT 1`)
	if err == sql.ErrNoRows {
		return nil, errors.Wrap(errors.ErrNotFound, "no active model set")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get active model set")
	}
	return row.toMeta()
}

// List returns registered model sets, newest first
func (r *ModelRegistry) List(ctx context.Context, limit int) ([]model.Meta, error) {
	var rows []modelSetRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT * FROM model_sets ORDER BY created_at DESC LIMIT $1`, limit); err != nil {
		return nil, errors.Wrap(err, "failed to list model sets")
	}
	out := make([]model.Meta, 0, len(rows))
	for _, row := range rows {
		meta, err := row.toMeta()
		if err != nil {
			return nil, err
		}
		out = append(out, *meta)
	}
	return out, nil
}
