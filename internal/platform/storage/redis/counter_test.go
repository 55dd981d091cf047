package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	return client, mr
}

func TestCounter_IncrementAndGet_WhenNewKey_ShouldReturnIncrementedValue(t *testing.T) {
	client, _ := setupRedis(t)
	counter := NewCounter(client, "live")

	ctx := context.Background()
	key := "round:01HXXXXXXXXXXXXXXXXXXXXX:total"

	result, err := counter.Increment(ctx, key, 1)
	require.NoError(t, err)

	value, err := counter.Get(ctx, key)

	assert.NoError(t, err)
	assert.Equal(t, int64(1), result)
	assert.Equal(t, int64(1), value)
}

func TestCounter_Increment_WhenNegativeDelta_ShouldDecrement(t *testing.T) {
	client, _ := setupRedis(t)
	counter := NewCounter(client, "live")

	ctx := context.Background()
	key := "round:r1:candidate:p1"

	_, err := counter.Increment(ctx, key, 3)
	require.NoError(t, err)

	// Re-votes move one ballot off the replaced candidate.
	result, err := counter.Increment(ctx, key, -1)
	require.NoError(t, err)

	assert.Equal(t, int64(2), result)
}

func TestCounter_Get_WhenKeyMissing_ShouldReturnZero(t *testing.T) {
	client, _ := setupRedis(t)
	counter := NewCounter(client, "live")

	value, err := counter.Get(context.Background(), "missing")

	assert.NoError(t, err)
	assert.Equal(t, int64(0), value)
}

func TestCounter_GetAll_ShouldReturnCompleteMap(t *testing.T) {
	client, _ := setupRedis(t)
	counter := NewCounter(client, "live")

	ctx := context.Background()
	keys := []string{"key1", "key2", "key3"}

	_, err := counter.Increment(ctx, keys[0], 5)
	require.NoError(t, err)
	_, err = counter.Increment(ctx, keys[2], 2)
	require.NoError(t, err)

	values, err := counter.GetAll(ctx, keys)

	require.NoError(t, err)
	assert.Equal(t, int64(5), values["key1"])
	assert.Equal(t, int64(0), values["key2"])
	assert.Equal(t, int64(2), values["key3"])
}

func TestCounter_GetAll_WhenNoKeys_ShouldReturnEmptyMap(t *testing.T) {
	client, _ := setupRedis(t)
	counter := NewCounter(client, "live")

	values, err := counter.GetAll(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, values)
}
