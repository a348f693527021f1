// Package embedder provides implementations of the rag.Embedder interface
// for converting text into dense vector embeddings. Remote backends (OpenAI,
// Azure OpenAI, Ollama) are called via plain HTTP — no additional SDK
// dependencies are required — and a deterministic local backend is available
// for offline use and tests.
package embedder

import (
	"context"
	"strings"

	"github.com/gearsage/gearsage-go/internal/rag"
)

// NormalizeText applies the canonical text normalization: lowercase and
// whitespace collapse. The SAME normalization must be applied to indexed
// text and query text — asymmetry here silently degrades retrieval quality,
// which is why every embedder is wrapped in Normalizing rather than relying
// on call sites to remember.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Normalizing wraps an Embedder so that every text, indexed or queried,
// passes through NormalizeText before reaching the backend.
type Normalizing struct {
	// inner is the wrapped backend embedder.
	inner rag.Embedder
}

// WithNormalization wraps inner so all inputs are normalized symmetrically.
func WithNormalization(inner rag.Embedder) *Normalizing {
	return &Normalizing{inner: inner}
}

// Embed normalizes each text and delegates to the wrapped backend.
func (n *Normalizing) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	normalized := make([]string, len(texts))
	for i, t := range texts {
		normalized[i] = NormalizeText(t)
	}
	return n.inner.Embed(ctx, normalized)
}
