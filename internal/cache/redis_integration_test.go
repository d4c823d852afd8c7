//go:build integration

package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestRedisClient_Container(t *testing.T) {
	ctx := context.Background()

	container, err := redis.Run(ctx,
		"redis:7.4-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := NewRedisClient(RedisConfig{Addr: strings.TrimPrefix(uri, "redis://")})
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(ctx, "fused:1", []byte(`{"type":"product_search"}`), time.Minute))
	got, err := client.Get(ctx, "fused:1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"product_search"}`, string(got))

	require.NoError(t, client.DeleteByPrefix(ctx, "fused:"))
	_, err = client.Get(ctx, "fused:1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}
