package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStoreAllow(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	t.Run("requests under the limit pass", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			result, err := store.Allow(ctx, "10.0.0.1", 3, time.Minute)
			require.NoError(t, err)
			assert.True(t, result.Allowed)
			assert.Equal(t, 3, result.Limit)
			assert.Equal(t, 2-i, result.Remaining)
		}
	})

	t.Run("the request over the limit is denied", func(t *testing.T) {
		result, err := store.Allow(ctx, "10.0.0.1", 3, time.Minute)
		require.NoError(t, err)
		assert.False(t, result.Allowed)
		assert.Zero(t, result.Remaining)
		assert.Positive(t, result.RetryAfter)
	})

	t.Run("keys are independent", func(t *testing.T) {
		result, err := store.Allow(ctx, "10.0.0.2", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	})

	t.Run("reset clears the window", func(t *testing.T) {
		require.NoError(t, store.Reset(ctx, "10.0.0.1"))
		result, err := store.Allow(ctx, "10.0.0.1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	})
}

func TestInMemoryStoreWindowSlides(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	result, err := store.Allow(ctx, "10.0.0.1", 1, 20*time.Millisecond)
	require.NoError(t, err)
	require.True(t, result.Allowed)

	result, err = store.Allow(ctx, "10.0.0.1", 1, 20*time.Millisecond)
	require.NoError(t, err)
	require.False(t, result.Allowed)

	time.Sleep(30 * time.Millisecond)

	result, err = store.Allow(ctx, "10.0.0.1", 1, 20*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, result.Allowed, "entries outside the window must age out")
}
