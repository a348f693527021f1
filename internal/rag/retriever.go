package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// DedupeKey selects the product-identity key used to collapse near-duplicate
// listings in retrieval results.
type DedupeKey string

const (
	// DedupeByID collapses only exact id matches.
	DedupeByID DedupeKey = "id"
	// DedupeByTitle collapses entries sharing a normalized title+category,
	// catching the same product scraped at different times under new ids.
	DedupeByTitle DedupeKey = "title"
)

// RetrieverOptions tunes the retrieval pipeline. The zero value selects
// the documented defaults.
type RetrieverOptions struct {
	// OverfetchFactor is how many candidates to request per final result so
	// dedup and diversity filtering have room to work. Defaults to 3.
	OverfetchFactor int

	// Dedupe selects the product-identity key. Defaults to DedupeByTitle,
	// since scraped catalogs routinely carry the same listing twice.
	Dedupe DedupeKey

	// DiversityCap limits results per category so one dominant category
	// cannot crowd out the rest on ambiguous queries. 0 disables the cap.
	DiversityCap int

	// DefaultTopK is the result count used when Retrieve is called with k=0.
	// Defaults to 5.
	DefaultTopK int
}

// DefaultRetriever implements Retriever by combining an Embedder and a
// VectorStore: it embeds the query, over-fetches candidates, deduplicates,
// applies the diversity cap, and truncates to k in score order.
type DefaultRetriever struct {
	// embedder converts query text to a dense vector.
	embedder Embedder

	// store performs the vector similarity search.
	store VectorStore

	// opts holds the resolved pipeline options.
	opts RetrieverOptions
}

// NewRetriever constructs a DefaultRetriever from the given Embedder and
// VectorStore, applying defaults to unset options.
func NewRetriever(embedder Embedder, store VectorStore, opts RetrieverOptions) (*DefaultRetriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if opts.OverfetchFactor <= 0 {
		opts.OverfetchFactor = 3
	}
	if opts.Dedupe == "" {
		opts.Dedupe = DedupeByTitle
	}
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = 5
	}
	return &DefaultRetriever{embedder: embedder, store: store, opts: opts}, nil
}

// Retrieve embeds the query and returns at most k deduplicated hits with
// scores in non-increasing order. An empty index yields an empty slice, not
// an error; fewer than k survivors are returned as-is, never padded.
func (r *DefaultRetriever) Retrieve(ctx context.Context, query string, k int) ([]SearchHit, error) {
	if k <= 0 {
		k = r.opts.DefaultTopK
	}

	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("rag: embedding query failed: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("rag: embedder returned empty result for query")
	}

	hits, err := r.store.Search(ctx, embeddings[0], k*r.opts.OverfetchFactor, nil)
	if err != nil {
		return nil, fmt.Errorf("rag: vector search failed: %w", err)
	}

	hits = SortHits(hits)
	hits = dedupe(hits, r.opts.Dedupe)
	if r.opts.DiversityCap > 0 {
		hits = capPerCategory(hits, r.opts.DiversityCap)
	}
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// SortHits orders hits by descending score, ties broken by id ascending so
// results are deterministic regardless of backend return order.
func SortHits(hits []SearchHit) []SearchHit {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	return hits
}

// dedupe keeps the highest-scoring hit per identity key. Input must already
// be sorted best-first.
func dedupe(hits []SearchHit, key DedupeKey) []SearchHit {
	seen := make(map[string]bool, len(hits))
	out := hits[:0]
	for _, h := range hits {
		k := h.ID
		if key == DedupeByTitle {
			k = identityKey(h.Payload)
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, h)
	}
	return out
}

// capPerCategory drops hits beyond the per-category cap, preserving order.
func capPerCategory(hits []SearchHit, limit int) []SearchHit {
	counts := make(map[string]int, 4)
	out := hits[:0]
	for _, h := range hits {
		if counts[h.Payload.Category] >= limit {
			continue
		}
		counts[h.Payload.Category]++
		out = append(out, h)
	}
	return out
}

// identityKey mirrors catalog.Product.IdentityKey on the index payload.
func identityKey(p Payload) string {
	title := strings.Join(strings.Fields(strings.ToLower(p.Title)), " ")
	return title + "|" + p.Category
}
