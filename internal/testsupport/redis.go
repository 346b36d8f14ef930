package testsupport

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
)

// NewTestRedis returns a flushed client on the test database and skips unless REDIS_HOST is set
func NewTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	cfg := LoadDatabaseConfigsFromEnv(t, "REDIS_HOST").Redis
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("failed to connect to redis: %v", err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("failed to flush redis before test: %v", err)
	}

	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})
	return client
}
