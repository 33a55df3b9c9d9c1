// Package vector defines the approximate-nearest-neighbor index the symbol
// store uses for semantic retrieval, and the backends that implement it.
//
// The index is treated as an eventually-consistent mirror of the symbol
// set's text content: symbols are persisted to the key-value store first
// and indexed here second, and a full reindex sweep can rebuild the mirror
// from scratch at any time.
//
// Backends:
//   - MemoryIndex: in-process, cosine similarity over embedded documents
//   - WeaviateIndex: a Weaviate class holding one object per symbol
package vector

import (
	"context"
	"errors"
)

// Document is the unit of indexing: the text rendering of a symbol plus
// the filterable metadata the search coordinator needs.
type Document struct {
	// ID is the symbol id. Indexing the same id twice is an upsert.
	ID string

	// Text is what gets embedded.
	Text string

	// Metadata is a simplified, filterable view of the symbol
	// (domain, kind, tag). Values are strings or string slices.
	Metadata map[string]any
}

// Hit is one similarity-search result.
type Hit struct {
	ID       string
	Score    float64
	Metadata map[string]any
	Document string
}

// Embedder turns text into a vector. The actual model client lives outside
// this module; backends only need this one call.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Index is the vector-index command surface.
type Index interface {
	// IndexSymbol indexes or updates one document.
	IndexSymbol(ctx context.Context, doc Document) error

	// IndexBatch indexes many documents, returning how many succeeded.
	// Individual failures do not abort the batch.
	IndexBatch(ctx context.Context, docs []Document) (int, error)

	// DeleteSymbol removes a document by id. Deleting an absent id is not
	// an error.
	DeleteSymbol(ctx context.Context, id string) error

	// Search returns up to limit hits for query, best first. filter
	// restricts hits by metadata equality; a slice value matches if the
	// document's metadata value equals any element ("any-of").
	Search(ctx context.Context, query string, limit int, filter map[string]any) ([]Hit, error)

	// Reset destroys the whole collection. Destructive; used by the
	// reindex sweep before a full rebuild.
	Reset(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// Index errors.
var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("vector: index is closed")

	// ErrNoEmbedder is returned when a backend that needs an embedder was
	// built without one.
	ErrNoEmbedder = errors.New("vector: no embedder configured")
)

// MatchesFilter reports whether metadata satisfies filter under the
// equality / any-of semantics used by Search. Array-valued metadata fields
// match by containment.
//
// Exported because the search coordinator re-checks hits against the
// hydrated symbol record, whose metadata is richer than the indexed view.
func MatchesFilter(metadata map[string]any, filter map[string]any) bool {
	for field, want := range filter {
		got, ok := metadata[field]
		if !ok {
			return false
		}
		if !matchValue(got, want) {
			return false
		}
	}
	return true
}

func matchValue(got, want any) bool {
	// "any-of": the filter value is a list of acceptable values.
	if alternatives, ok := anySlice(want); ok {
		for _, alt := range alternatives {
			if matchValue(got, alt) {
				return true
			}
		}
		return false
	}

	// Array-valued document field: containment.
	if elements, ok := anySlice(got); ok {
		for _, el := range elements {
			if el == want {
				return true
			}
		}
		return false
	}

	return got == want
}

func anySlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	}
	return nil, false
}
