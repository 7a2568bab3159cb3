//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// redisImage needs GEOSEARCH (6.2+) and Lua scripting.
const redisImage = "redis:7.2-alpine"

// RedisContainer backs the GEO index and rate limiter suites.
type RedisContainer struct {
	Container testcontainers.Container
	URL       string
	Client    *redis.Client
}

func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, redisImage)
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}
	fail := func(msg string, err error) {
		_ = container.Terminate(ctx)
		t.Fatalf("%s: %v", msg, err)
	}

	url, err := container.ConnectionString(ctx)
	if err != nil {
		fail("redis connection string", err)
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		fail("parse redis url", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		fail("ping redis", err)
	}

	// Shared across suites through Manager; no t.Cleanup.
	return &RedisContainer{Container: container, URL: url, Client: client}
}

// FlushAll empties the database between tests.
func (r *RedisContainer) FlushAll(ctx context.Context) error {
	return r.Client.FlushAll(ctx).Err()
}

// Keys lists keys matching pattern, for asserting on temporary or expired keys.
func (r *RedisContainer) Keys(ctx context.Context, pattern string) ([]string, error) {
	return r.Client.Keys(ctx, pattern).Result()
}
