package kv

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_GetSet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()

	// Missing key is not an error
	_, found, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Set(ctx, "k", "v1"))
	value, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v1", value)

	// Overwrite
	require.NoError(t, store.Set(ctx, "k", "v2"))
	value, _, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", value)
}

func TestMemoryStore_DelExists(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()

	require.NoError(t, store.Set(ctx, "a", "1"))
	require.NoError(t, store.SAdd(ctx, "s", "m1"))
	require.NoError(t, store.ZAdd(ctx, "z", 1.0, "m1"))

	for _, key := range []string{"a", "s", "z"} {
		exists, err := store.Exists(ctx, key)
		require.NoError(t, err)
		assert.True(t, exists, key)
	}

	count, err := store.Del(ctx, "a", "s", "z", "missing")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	for _, key := range []string{"a", "s", "z"} {
		exists, err := store.Exists(ctx, key)
		require.NoError(t, err)
		assert.False(t, exists, key)
	}
}

func TestMemoryStore_Sets(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()

	require.NoError(t, store.SAdd(ctx, "s", "b", "a", "c"))
	require.NoError(t, store.SAdd(ctx, "s", "a")) // duplicate is a no-op

	members, err := store.SMembers(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, members)

	require.NoError(t, store.SRem(ctx, "s", "b", "missing"))
	members, err = store.SMembers(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, members)

	// Missing set yields empty, not error
	members, err = store.SMembers(ctx, "nope")
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestMemoryStore_SortedSets(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()

	require.NoError(t, store.ZAdd(ctx, "z", 3, "c"))
	require.NoError(t, store.ZAdd(ctx, "z", 1, "a"))
	require.NoError(t, store.ZAdd(ctx, "z", 2, "b"))

	members, err := store.ZRangeByScore(ctx, "z", math.Inf(-1), math.Inf(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, members)

	// Inclusive bounds
	members, err = store.ZRangeByScore(ctx, "z", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, members)

	// Re-adding replaces the score
	require.NoError(t, store.ZAdd(ctx, "z", 10, "a"))
	members, err = store.ZRangeByScore(ctx, "z", 5, math.Inf(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, members)

	require.NoError(t, store.ZRem(ctx, "z", "a", "b"))
	members, err = store.ZRangeByScore(ctx, "z", math.Inf(-1), math.Inf(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, members)
}

func TestMemoryStore_Closed(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Close())

	err := store.Set(ctx, "k", "v")
	assert.ErrorIs(t, err, ErrClosed)

	_, _, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrClosed)

	_, err = store.SMembers(ctx, "s")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMemoryStore_InvalidKey(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()

	err := store.Set(ctx, "", "v")
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, _, err = store.Get(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidKey)
}
