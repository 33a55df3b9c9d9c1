package vector

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// HashEmbedder is a deterministic, model-free Embedder: each token is
// hashed into a fixed number of buckets and the bucket counts are
// L2-normalized. Texts sharing tokens get similar vectors, which is enough
// for tests and for deployments that run without an embedding model.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder builds a HashEmbedder with the given dimensionality.
// Values below 8 are clamped to 8.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims < 8 {
		dims = 8
	}
	return &HashEmbedder{dims: dims}
}

var _ Embedder = (*HashEmbedder)(nil)

// Embed hashes the lowercase tokens of text into a normalized vector.
// Empty text embeds to the zero vector.
func (h *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dims)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		hasher := fnv.New32a()
		hasher.Write([]byte(token))
		vec[hasher.Sum32()%uint32(h.dims)]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}
