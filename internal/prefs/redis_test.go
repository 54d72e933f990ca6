package prefs

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a live server only when KANBAN_TEST_REDIS_ADDR is set.
func TestRedisStore(t *testing.T) {
	addr := os.Getenv("KANBAN_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("KANBAN_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()

	r, err := NewRedisStore(ctx, RedisConfig{Addr: addr})
	require.NoError(t, err)
	defer r.Close()

	key := "test-" + t.Name()
	t.Cleanup(func() { _ = r.Delete(ctx, key) })

	_, ok, err := r.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.Set(ctx, key, "title"))
	v, ok, err := r.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "title", v)
}

func TestNewRedisStore_Unreachable(t *testing.T) {
	_, err := NewRedisStore(context.Background(), RedisConfig{Addr: "127.0.0.1:1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect redis")
}
