//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"notesync/internal/platform/config"
	platformredis "notesync/internal/platform/redis"
)

// RedisContainer is a Redis server plus an admin client for poking at it
// directly (publishing raw payloads, for instance).
type RedisContainer struct {
	Container testcontainers.Container
	URL       string
	Client    *redis.Client
}

// NewRedisContainer starts Redis 7 and connects through the same code path
// the server uses.
func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}
	url, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("redis connection string: %v", err)
	}
	admin, err := platformredis.New(ctx, config.RedisConfig{URL: url})
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("connect to redis: %v", err)
	}

	// Shared across suites by the Manager; Ryuk reaps the container.
	return &RedisContainer{Container: container, URL: url, Client: admin.Client}
}

// NewClient opens a separate connection, closed when t ends. Pub/sub needs
// the publisher and subscriber on different connections.
func (r *RedisContainer) NewClient(t *testing.T) *redis.Client {
	t.Helper()
	c, err := platformredis.New(context.Background(), config.RedisConfig{URL: r.URL})
	if err != nil {
		t.Fatalf("connect to redis: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c.Client
}
