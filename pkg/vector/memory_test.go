package vector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T) *MemoryIndex {
	t.Helper()
	idx := NewMemoryIndex(NewHashEmbedder(64))
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestMemoryIndexSearchRanksByRelevance(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)

	docs := []Document{
		{ID: "auth", Text: "authentication login password token session"},
		{ID: "db", Text: "database migration schema postgres table"},
		{ID: "cache", Text: "cache eviction redis ttl expiry"},
	}
	indexed, err := idx.IndexBatch(ctx, docs)
	require.NoError(t, err)
	assert.Equal(t, 3, indexed)

	hits, err := idx.Search(ctx, "login password authentication", 10, nil)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "auth", hits[0].ID)
	for i := 1; i < len(hits); i++ {
		assert.LessOrEqual(t, hits[i].Score, hits[i-1].Score)
	}
}

func TestMemoryIndexUpsertReplaces(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)

	require.NoError(t, idx.IndexSymbol(ctx, Document{ID: "a", Text: "old text about cats"}))
	require.NoError(t, idx.IndexSymbol(ctx, Document{ID: "a", Text: "new text about spaceships"}))

	hits, err := idx.Search(ctx, "spaceships", 10, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "new text about spaceships", hits[0].Document)
}

func TestMemoryIndexFilter(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)

	_, err := idx.IndexBatch(ctx, []Document{
		{ID: "s1", Text: "shared words here", Metadata: map[string]any{"domain": "alpha", "kind": "note"}},
		{ID: "s2", Text: "shared words here", Metadata: map[string]any{"domain": "beta", "kind": "note"}},
		{ID: "s3", Text: "shared words here", Metadata: map[string]any{"domain": "alpha", "kind": "task"}},
	})
	require.NoError(t, err)

	hits, err := idx.Search(ctx, "shared words", 10, map[string]any{"domain": "alpha"})
	require.NoError(t, err)
	ids := hitIDs(hits)
	assert.ElementsMatch(t, []string{"s1", "s3"}, ids)

	// Any-of: filter value is a list of acceptable values.
	hits, err = idx.Search(ctx, "shared words", 10, map[string]any{"domain": []string{"alpha", "beta"}, "kind": "note"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"s1", "s2"}, hitIDs(hits))

	// Absent field never matches.
	hits, err = idx.Search(ctx, "shared words", 10, map[string]any{"missing": "x"})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMemoryIndexArrayContainment(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)

	require.NoError(t, idx.IndexSymbol(ctx, Document{
		ID:       "tagged",
		Text:     "tagged symbol",
		Metadata: map[string]any{"tag": []string{"urgent", "backend"}},
	}))

	hits, err := idx.Search(ctx, "tagged", 10, map[string]any{"tag": "urgent"})
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	hits, err = idx.Search(ctx, "tagged", 10, map[string]any{"tag": "frontend"})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMemoryIndexDeleteAndReset(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)

	require.NoError(t, idx.IndexSymbol(ctx, Document{ID: "a", Text: "alpha"}))
	require.NoError(t, idx.IndexSymbol(ctx, Document{ID: "b", Text: "beta"}))

	require.NoError(t, idx.DeleteSymbol(ctx, "a"))
	require.NoError(t, idx.DeleteSymbol(ctx, "a")) // absent id is fine

	hits, err := idx.Search(ctx, "alpha beta", 10, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, hitIDs(hits))

	require.NoError(t, idx.Reset(ctx))
	hits, err = idx.Search(ctx, "alpha beta", 10, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMemoryIndexLimit(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, idx.IndexSymbol(ctx, Document{ID: id, Text: "common terms " + id}))
	}

	hits, err := idx.Search(ctx, "common terms", 2, nil)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestMemoryIndexClosed(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(NewHashEmbedder(16))
	require.NoError(t, idx.Close())

	err := idx.IndexSymbol(ctx, Document{ID: "a", Text: "x"})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = idx.Search(ctx, "x", 1, nil)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, idx.Reset(ctx), ErrClosed)
}

func TestHashEmbedderDeterministic(t *testing.T) {
	ctx := context.Background()
	emb := NewHashEmbedder(32)

	a, err := emb.Embed(ctx, "the same text")
	require.NoError(t, err)
	b, err := emb.Embed(ctx, "the same text")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	empty, err := emb.Embed(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, float64(0), cosineSimilarity(empty, a))
}

func hitIDs(hits []Hit) []string {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	return ids
}
