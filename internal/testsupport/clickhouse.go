package testsupport

import (
	"context"
	"fmt"
	"testing"
	"time"

	"riskstrat/internal/adapters/clickhouse"
	chrepo "riskstrat/internal/repository/clickhouse"
)

// NewTestClickHouse connects, applies the schema and skips unless CLICKHOUSE_HOST is set
func NewTestClickHouse(t *testing.T) *clickhouse.Client {
	t.Helper()

	cfg := LoadDatabaseConfigsFromEnv(t, "CLICKHOUSE_HOST").ClickHouse
	ctx := context.Background()
	client, err := clickhouse.NewClient(ctx, cfg)
	if err != nil {
		t.Fatalf("failed to connect to clickhouse: %v", err)
	}
	if err := chrepo.Migrate(ctx, client.Conn()); err != nil {
		_ = client.Close()
		t.Fatalf("failed to migrate clickhouse: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// CleanupRows deletes rows matching condition after the test
func CleanupRows(t *testing.T, client *clickhouse.Client, table, condition string) {
	t.Helper()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Conn().Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s", table, condition))
	})
}
