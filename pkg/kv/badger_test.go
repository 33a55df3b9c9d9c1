package kv

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBadgerStore(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := NewBadgerStoreWithOptions(BadgerOptions{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestBadgerStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestBadgerStore(t)

	require.NoError(t, store.Set(ctx, "domain:root", `{"id":"root"}`))

	value, found, err := store.Get(ctx, "domain:root")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"id":"root"}`, value)

	_, found, err = store.Get(ctx, "domain:other")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestBadgerStore_Sets(t *testing.T) {
	ctx := context.Background()
	store := newTestBadgerStore(t)

	require.NoError(t, store.SAdd(ctx, "domains", "root", "alpha", "beta"))

	members, err := store.SMembers(ctx, "domains")
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta", "root"}, members)

	require.NoError(t, store.SRem(ctx, "domains", "alpha"))
	members, err = store.SMembers(ctx, "domains")
	require.NoError(t, err)
	assert.Equal(t, []string{"beta", "root"}, members)
}

func TestBadgerStore_SortedSets(t *testing.T) {
	ctx := context.Background()
	store := newTestBadgerStore(t)

	require.NoError(t, store.ZAdd(ctx, "bucket", 300, "s3"))
	require.NoError(t, store.ZAdd(ctx, "bucket", 100, "s1"))
	require.NoError(t, store.ZAdd(ctx, "bucket", 200, "s2"))

	members, err := store.ZRangeByScore(ctx, "bucket", math.Inf(-1), math.Inf(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2", "s3"}, members)

	members, err = store.ZRangeByScore(ctx, "bucket", 150, 250)
	require.NoError(t, err)
	assert.Equal(t, []string{"s2"}, members)

	require.NoError(t, store.ZRem(ctx, "bucket", "s2"))
	members, err = store.ZRangeByScore(ctx, "bucket", math.Inf(-1), math.Inf(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s3"}, members)
}

func TestBadgerStore_DelMixedKinds(t *testing.T) {
	ctx := context.Background()
	store := newTestBadgerStore(t)

	require.NoError(t, store.Set(ctx, "v", "x"))
	require.NoError(t, store.SAdd(ctx, "s", "a", "b"))
	require.NoError(t, store.ZAdd(ctx, "z", 1, "a"))

	count, err := store.Del(ctx, "v", "s", "z", "missing")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	exists, err := store.Exists(ctx, "s")
	require.NoError(t, err)
	assert.False(t, exists)

	members, err := store.SMembers(ctx, "s")
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestBadgerStore_Closed(t *testing.T) {
	ctx := context.Background()
	store, err := NewBadgerStoreWithOptions(BadgerOptions{InMemory: true})
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close()) // idempotent

	err = store.Set(ctx, "k", "v")
	assert.ErrorIs(t, err, ErrClosed)
}
