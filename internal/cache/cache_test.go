package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalIndex(t *testing.T) {
	ctx := context.Background()

	t.Run("store, hit, invalidate", func(t *testing.T) {
		idx := NewLocalIndex(time.Minute, 10, time.Minute)
		defer idx.Close()

		_, ok, err := idx.Names(ctx, 5)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, idx.Store(ctx, 5, []string{"Billing", "Escalation"}))
		names, ok, err := idx.Names(ctx, 5)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []string{"Billing", "Escalation"}, names)

		// callers cannot mutate the cached slice
		names[0] = "Mutated"
		again, _, _ := idx.Names(ctx, 5)
		assert.Equal(t, "Billing", again[0])

		require.NoError(t, idx.Invalidate(ctx, 5))
		_, ok, _ = idx.Names(ctx, 5)
		assert.False(t, ok)

		stats := idx.Stats()
		assert.Equal(t, int64(2), stats.Hits)
		assert.Equal(t, int64(2), stats.Misses)
		assert.Equal(t, int64(1), stats.Invalidations)
	})

	t.Run("empty list is a valid cached answer", func(t *testing.T) {
		idx := NewLocalIndex(time.Minute, 10, time.Minute)
		defer idx.Close()
		require.NoError(t, idx.Store(ctx, 9, nil))
		names, ok, _ := idx.Names(ctx, 9)
		assert.True(t, ok)
		assert.Empty(t, names)
	})

	t.Run("entries expire", func(t *testing.T) {
		idx := NewLocalIndex(10*time.Millisecond, 10, time.Minute)
		defer idx.Close()
		require.NoError(t, idx.Store(ctx, 5, []string{"Billing"}))
		time.Sleep(20 * time.Millisecond)
		_, ok, _ := idx.Names(ctx, 5)
		assert.False(t, ok)
	})

	t.Run("evicts least recently used at capacity", func(t *testing.T) {
		idx := NewLocalIndex(time.Minute, 2, time.Minute)
		defer idx.Close()
		require.NoError(t, idx.Store(ctx, 1, []string{"a"}))
		time.Sleep(time.Millisecond)
		require.NoError(t, idx.Store(ctx, 2, []string{"b"}))
		time.Sleep(time.Millisecond)
		_, _, _ = idx.Names(ctx, 1)
		require.NoError(t, idx.Store(ctx, 3, []string{"c"}))

		_, ok1, _ := idx.Names(ctx, 1)
		_, ok2, _ := idx.Names(ctx, 2)
		_, ok3, _ := idx.Names(ctx, 3)
		assert.True(t, ok1)
		assert.False(t, ok2)
		assert.True(t, ok3)
	})

	t.Run("close is idempotent", func(t *testing.T) {
		idx := NewLocalIndex(time.Minute, 1, time.Minute)
		assert.NoError(t, idx.Close())
		assert.NoError(t, idx.Close())
	})
}

func TestNew(t *testing.T) {
	idx, err := New(Options{Backend: "local", TTL: time.Minute}, nil)
	require.NoError(t, err)
	require.NotNil(t, idx)
	idx.Close()

	idx, err = New(Options{Backend: "local"}, nil)
	require.NoError(t, err)
	assert.Nil(t, idx)

	idx, err = New(Options{Backend: "none", TTL: time.Minute}, nil)
	require.NoError(t, err)
	assert.Nil(t, idx)

	_, err = New(Options{Backend: "memcached", TTL: time.Minute}, nil)
	assert.Error(t, err)
}

func TestRedisIndex(t *testing.T) {
	addr := os.Getenv("GOTRS_HITL_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("GOTRS_HITL_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	idx := NewRedisIndexWithClient(client, time.Minute, "gotrs-hitl-test:", prometheus.NewRegistry())

	require.NoError(t, idx.Invalidate(ctx, 5))
	_, ok, err := idx.Names(ctx, 5)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, idx.Store(ctx, 5, []string{"Billing"}))
	names, ok, err := idx.Names(ctx, 5)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"Billing"}, names)

	require.NoError(t, idx.Invalidate(ctx, 5))
	assert.NoError(t, idx.Close())
}
