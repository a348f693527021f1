// Package rag defines the interfaces for the retrieval-augmented
// recommendation core: vector storage, nearest-neighbor retrieval, and
// embedding. Concrete implementations (Qdrant, SQLite, HTTP embedders)
// satisfy these interfaces so the recommendation layer never depends on a
// specific backend.
package rag

import (
	"context"

	"github.com/gearsage/gearsage-go/internal/catalog"
)

// Payload is the copy of Product display fields stored alongside each
// vector so search results can be rendered without a second lookup.
// Product is the source of truth; a Payload must be rebuilt whenever the
// Product content that produced the embedding changes.
type Payload struct {
	// Title is the product display name.
	Title string `json:"title"`

	// Category is the resolved peripheral category.
	Category string `json:"category"`

	// Price is the rendered currency-tagged price (e.g. "59.99 USD").
	Price string `json:"price"`

	// Specs holds the attribute name/value pairs used for display.
	Specs map[string]string `json:"specs,omitempty"`

	// ReviewSummary is the condensed review text. May be empty.
	ReviewSummary string `json:"review_summary,omitempty"`

	// SourceURL is the page the product was scraped from.
	SourceURL string `json:"source_url,omitempty"`
}

// NewPayload builds the index payload from a canonical Product.
func NewPayload(p *catalog.Product) Payload {
	return Payload{
		Title:         p.Title,
		Category:      string(p.Category),
		Price:         p.Price.String(),
		Specs:         p.Specs,
		ReviewSummary: p.ReviewSummary,
		SourceURL:     p.SourceURL,
	}
}

// IndexEntry is one (vector, id, payload) triple owned by the vector store.
type IndexEntry struct {
	// ID is the Product id this entry represents.
	ID string

	// Vector is the embedding of the product's canonical text. All entries
	// in a store share the same dimension, fixed at store construction.
	Vector []float32

	// Payload is the display-field copy stored with the vector.
	Payload Payload
}

// SearchHit is one scored result returned by VectorStore.Search.
type SearchHit struct {
	// ID is the matching entry's product id.
	ID string

	// Score is the cosine similarity in [-1, 1], higher is more similar.
	Score float32

	// Payload is the display-field copy stored with the vector.
	Payload Payload
}

// Filter restricts a search to entries matching all set fields.
type Filter struct {
	// Category limits results to a single peripheral category when non-empty.
	Category string
}

// VectorStore is the interface for persisting and searching product
// embeddings. Implementations must be safe to call from multiple goroutines:
// concurrent upserts with distinct ids may interleave freely, writes to the
// same id serialize last-writer-wins, and readers never block readers.
type VectorStore interface {
	// Upsert stores or replaces entries keyed by ID. An entry whose vector
	// dimension differs from the store's configured dimension is rejected
	// with IndexError{DimensionMismatch} — never truncated or padded.
	Upsert(ctx context.Context, entries []IndexEntry) error

	// Search returns at most k entries ordered by descending similarity,
	// ties broken by id ascending. An empty store yields an empty slice,
	// not an error.
	Search(ctx context.Context, queryVector []float32, k int, filter *Filter) ([]SearchHit, error)

	// Delete removes entries by id; absent ids are a no-op.
	Delete(ctx context.Context, ids []string) error

	// Close releases any resources held by the store.
	Close() error
}

// Embedder converts text into dense vector embeddings. Implementations must
// be safe for concurrent use, deterministic for a fixed model version, and
// batch-independent: each text's vector must not depend on what else is in
// the batch.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever is the high-level interface the recommendation layer uses to
// fetch a ranked, deduplicated context set for a query.
type Retriever interface {
	// Retrieve returns at most k hits for the query, scores non-increasing.
	Retrieve(ctx context.Context, query string, k int) ([]SearchHit, error)
}
