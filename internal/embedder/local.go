package embedder

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// LocalEmbedder is a deterministic, dependency-free embedding backend using
// feature hashing: each whitespace token is hashed into one of D buckets and
// the resulting count vector is L2-normalized. It captures term overlap, not
// deep semantics, which is good enough for local development and for exact,
// reproducible tests. Each text is embedded independently, so results never
// depend on batch composition.
type LocalEmbedder struct {
	// dim is the output vector dimension.
	dim int
}

// DefaultLocalDimensions is the default vector size for the local backend.
const DefaultLocalDimensions = 256

// NewLocalEmbedder constructs a LocalEmbedder with the given dimension.
func NewLocalEmbedder(dim int) *LocalEmbedder {
	if dim <= 0 {
		dim = DefaultLocalDimensions
	}
	return &LocalEmbedder{dim: dim}
}

// Embed hashes each text's tokens into a normalized count vector.
func (e *LocalEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.embedOne(t)
	}
	return out, nil
}

// embedOne builds the hashed token-count vector for a single text.
func (e *LocalEmbedder) embedOne(text string) []float32 {
	vec := make([]float32, e.dim)
	for _, tok := range strings.Fields(text) {
		tok = strings.Trim(tok, ".,;:!?()[]\"'")
		if tok == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[h.Sum32()%uint32(e.dim)]++ //nolint:gosec // dim is a small positive int
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
