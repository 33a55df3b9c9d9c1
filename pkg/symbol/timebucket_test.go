package symbol

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/runic/pkg/kv"
)

func newTestBuckets(t *testing.T) *BucketIndex {
	t.Helper()
	store := kv.NewMemoryStore()
	t.Cleanup(func() { store.Close() })
	return NewBucketIndex(store)
}

func TestBucketKeyFor(t *testing.T) {
	b := newTestBuckets(t)

	at := time.Date(2026, 8, 25, 23, 59, 59, 0, time.UTC)
	key := b.KeyFor(BucketCategory, at.UnixMilli())
	assert.Equal(t, "runic:bucket:symbols:2026-08-25", key)

	// Same UTC day, different hour, same bucket.
	earlier := time.Date(2026, 8, 25, 0, 0, 1, 0, time.UTC)
	assert.Equal(t, key, b.KeyFor(BucketCategory, earlier.UnixMilli()))
}

func TestBucketIndexAndRemove(t *testing.T) {
	ctx := context.Background()
	b := newTestBuckets(t)

	created := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	sym := &Symbol{ID: "A", CreatedAt: timeToken(created)}
	require.NoError(t, b.IndexCreation(ctx, sym))

	key := b.KeyFor(BucketCategory, created.UnixMilli())
	members, err := b.Members(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, members)

	require.NoError(t, b.RemoveCreation(ctx, sym))
	members, err = b.Members(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestBucketIndexBadTokenIsNoOp(t *testing.T) {
	ctx := context.Background()
	b := newTestBuckets(t)

	assert.NoError(t, b.IndexCreation(ctx, &Symbol{ID: "A", CreatedAt: "not-a-time"}))
	assert.NoError(t, b.IndexCreation(ctx, &Symbol{ID: "B"}))
	assert.NoError(t, b.RemoveCreation(ctx, &Symbol{ID: "A", CreatedAt: ""}))
}

func TestBucketMembersAreTimeOrdered(t *testing.T) {
	ctx := context.Background()
	b := newTestBuckets(t)

	day := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	require.NoError(t, b.IndexCreation(ctx, &Symbol{ID: "late", CreatedAt: timeToken(day.Add(20 * time.Hour))}))
	require.NoError(t, b.IndexCreation(ctx, &Symbol{ID: "early", CreatedAt: timeToken(day.Add(2 * time.Hour))}))
	require.NoError(t, b.IndexCreation(ctx, &Symbol{ID: "mid", CreatedAt: timeToken(day.Add(10 * time.Hour))}))

	members, err := b.Members(ctx, b.KeyFor(BucketCategory, day.UnixMilli()))
	require.NoError(t, err)
	assert.Equal(t, []string{"early", "mid", "late"}, members)
}

func TestKeysForRange(t *testing.T) {
	b := newTestBuckets(t)

	keys, applied := b.KeysForRange(BucketCategory, nil, nil)
	assert.False(t, applied)
	assert.Empty(t, keys)

	from := time.Date(2026, 8, 24, 18, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 26, 6, 0, 0, 0, time.UTC)
	window := [2]time.Time{from, to}
	keys, applied = b.KeysForRange(BucketCategory, nil, &window)
	assert.True(t, applied)
	assert.Equal(t, []string{
		"runic:bucket:symbols:2026-08-24",
		"runic:bucket:symbols:2026-08-25",
		"runic:bucket:symbols:2026-08-26",
	}, keys)

	// Inverted windows apply but span nothing.
	inverted := [2]time.Time{to, from}
	keys, applied = b.KeysForRange(BucketCategory, nil, &inverted)
	assert.True(t, applied)
	assert.Empty(t, keys)

	// A lower bound runs to today.
	since := time.Now().UTC().AddDate(0, 0, -1)
	keys, applied = b.KeysForRange(BucketCategory, &since, nil)
	assert.True(t, applied)
	assert.Len(t, keys, 2)
}
