package vector

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/viterin/vek/vek32"
)

// MemoryIndex is an in-process Index. Every document is embedded on write
// and ranked by cosine similarity on search. Suitable for tests and
// single-node deployments with modest symbol counts; the scan is linear.
type MemoryIndex struct {
	mu       sync.RWMutex
	embedder Embedder
	docs     map[string]memoryDoc
	closed   bool
}

type memoryDoc struct {
	text      string
	metadata  map[string]any
	embedding []float32
}

// NewMemoryIndex builds an in-memory index over the given embedder.
func NewMemoryIndex(embedder Embedder) *MemoryIndex {
	return &MemoryIndex{
		embedder: embedder,
		docs:     make(map[string]memoryDoc),
	}
}

var _ Index = (*MemoryIndex)(nil)

// IndexSymbol embeds and stores doc, replacing any previous version.
func (m *MemoryIndex) IndexSymbol(ctx context.Context, doc Document) error {
	if m.embedder == nil {
		return ErrNoEmbedder
	}
	embedding, err := m.embedder.Embed(ctx, doc.Text)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.docs[doc.ID] = memoryDoc{
		text:      doc.Text,
		metadata:  cloneMetadata(doc.Metadata),
		embedding: embedding,
	}
	return nil
}

// IndexBatch indexes docs one by one, counting successes.
func (m *MemoryIndex) IndexBatch(ctx context.Context, docs []Document) (int, error) {
	indexed := 0
	for _, doc := range docs {
		if err := m.IndexSymbol(ctx, doc); err != nil {
			if err == ErrClosed || err == ErrNoEmbedder {
				return indexed, err
			}
			continue
		}
		indexed++
	}
	return indexed, nil
}

// DeleteSymbol removes id if present.
func (m *MemoryIndex) DeleteSymbol(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.docs, id)
	return nil
}

// Search embeds query and returns the best limit hits passing filter.
func (m *MemoryIndex) Search(ctx context.Context, query string, limit int, filter map[string]any) ([]Hit, error) {
	if m.embedder == nil {
		return nil, ErrNoEmbedder
	}
	queryVec, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	hits := make([]Hit, 0, len(m.docs))
	for id, doc := range m.docs {
		if !MatchesFilter(doc.metadata, filter) {
			continue
		}
		hits = append(hits, Hit{
			ID:       id,
			Score:    cosineSimilarity(queryVec, doc.embedding),
			Metadata: cloneMetadata(doc.metadata),
			Document: doc.text,
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Reset drops every document.
func (m *MemoryIndex) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.docs = make(map[string]memoryDoc)
	return nil
}

// Close marks the index closed. Idempotent.
func (m *MemoryIndex) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.docs = nil
	return nil
}

// cosineSimilarity returns the cosine of the angle between a and b.
// Zero vectors and dimension mismatches score 0 rather than NaN so that
// degenerate embeddings never outrank real ones.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	sim := float64(vek32.CosineSimilarity(a, b))
	if math.IsNaN(sim) || math.IsInf(sim, 0) {
		return 0
	}
	return sim
}

func cloneMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
