package testsupport

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"

	"riskstrat/internal/adapters/config"
	"riskstrat/internal/adapters/postgres"
	pgrepo "riskstrat/internal/repository/postgres"
)

// PostgresTestHelper runs a test inside a transaction that is always rolled back
type PostgresTestHelper struct {
	client     *postgres.Client
	tx         *sqlx.Tx
	rolledBack bool
}

// NewPostgresTestHelper connects, applies the schema and begins a transaction
func NewPostgresTestHelper(t *testing.T, cfg config.PostgresConfig) *PostgresTestHelper {
	t.Helper()

	ctx := context.Background()
	client, err := postgres.NewClient(ctx, cfg)
	if err != nil {
		t.Fatalf("failed to create postgres client: %v", err)
	}
	if err := pgrepo.Migrate(ctx, client.DB()); err != nil {
		_ = client.Close()
		t.Fatalf("failed to migrate postgres: %v", err)
	}

	tx, err := client.DB().BeginTxx(ctx, nil)
	if err != nil {
		_ = client.Close()
		t.Fatalf("failed to start transaction: %v", err)
	}

	helper := &PostgresTestHelper{client: client, tx: tx}
	t.Cleanup(func() { _ = client.Close() })
	t.Cleanup(helper.Rollback)
	return helper
}

// NewTestPostgres skips unless POSTGRES_HOST is set
func NewTestPostgres(t *testing.T) *PostgresTestHelper {
	t.Helper()
	return NewPostgresTestHelper(t, LoadDatabaseConfigsFromEnv(t, "POSTGRES_HOST").Postgres)
}

// Tx returns the active transaction for the test.
func (h *PostgresTestHelper) Tx() *sqlx.Tx {
	return h.tx
}

// Rollback rolls back the transaction once.
func (h *PostgresTestHelper) Rollback() {
	if h.rolledBack {
		return
	}
	_ = h.tx.Rollback()
	h.rolledBack = true
}
