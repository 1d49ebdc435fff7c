package cache

import (
	"context"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, `photos/a\*b\?\[c\]\\`, escapeGlob(`photos/a*b?[c]\`))
	assert.Equal(t, "magsav:photo:photos/lyre.jpg:64x64", redisKey("photos/lyre.jpg", Size{64, 64}))
}

func TestRedisInvalidateLive(t *testing.T) {
	addr := os.Getenv("MAGSAV_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("MAGSAV_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, client.Ping(ctx).Err())
	c := NewRedisFromClient(client)
	defer c.Close()

	keys := []string{"test/lyre*.jpg", "test/lyre-x.jpg"}
	t.Cleanup(func() {
		for _, k := range keys {
			_ = c.Invalidate(context.Background(), k)
		}
	})

	seed := map[string][]byte{
		redisKey(keys[0], Size{64, 64}):   []byte("a"),
		redisKey(keys[0], Size{640, 480}): []byte("b"),
		redisKey(keys[1], Size{64, 64}):   []byte("c"),
	}
	for k, v := range seed {
		require.NoError(t, client.Set(ctx, k, v, 0).Err())
	}

	require.NoError(t, c.Invalidate(ctx, keys[0]))

	n, err := client.Exists(ctx, redisKey(keys[0], Size{64, 64}), redisKey(keys[0], Size{640, 480})).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
	data, err := client.Get(ctx, redisKey(keys[1], Size{64, 64})).Bytes()
	require.NoError(t, err, "glob characters in the key must not widen the match")
	assert.Equal(t, []byte("c"), data)
}
