// Package grounding turns ranked retrieval hits into a bounded context block
// for the generator. Because the pipeline supports multiple LLM backends with
// different tokenizers, budgets use a conservative character-based heuristic:
// 1 token ≈ 4 characters. This deliberately under-estimates token counts to
// leave headroom for model-specific overhead.
package grounding

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gearsage/gearsage-go/internal/rag"
)

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English prose; using 3 would
	// be more aggressive but risks overflowing context windows.
	charsPerToken = 4

	// DefaultMaxChars is the default grounding budget in characters. Roughly
	// 1000 tokens — comfortable for 8k-context models once the system prompt,
	// the query, and the answer share the window.
	DefaultMaxChars = 4000
)

// Block is an assembled grounding context: the serialized product units that
// fit the budget, plus the ids of the products they came from so callers can
// report provenance. IncludedIDs is parallel to the units in Text, in rank
// order.
type Block struct {
	// Text is the serialized grounding context, one product unit per block,
	// separated by blank lines. Empty when nothing fit or nothing was
	// retrieved.
	Text string
	// IncludedIDs lists the product ids whose units made it into Text,
	// in rank order.
	IncludedIDs []string
}

// Empty reports whether the block carries no grounding at all.
func (b *Block) Empty() bool {
	return len(b.IncludedIDs) == 0
}

// EstimateTokens returns a rough token count for s using the character
// heuristic.
func EstimateTokens(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// TokensToChars converts a token budget into the character budget Assemble
// expects.
func TokensToChars(tokens int) int {
	return tokens * charsPerToken
}

// Assemble packs retrieval hits into a grounding block of at most maxChars
// characters. Hits are consumed in the order given (callers pass them already
// ranked); each hit is serialized into one indivisible unit, and packing
// stops at the first unit that would overflow the budget — a unit is never
// truncated mid-way, and a lower-ranked hit never displaces a higher-ranked
// one. A maxChars of 0 or less means DefaultMaxChars.
func Assemble(hits []rag.SearchHit, maxChars int) *Block {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	var (
		sb  strings.Builder
		ids []string
	)
	for _, hit := range hits {
		unit := renderUnit(hit.ID, &hit.Payload)
		need := len(unit)
		if sb.Len() > 0 {
			need += len(unitSeparator)
		}
		if sb.Len()+need > maxChars {
			break
		}
		if sb.Len() > 0 {
			sb.WriteString(unitSeparator)
		}
		sb.WriteString(unit)
		ids = append(ids, hit.ID)
	}

	return &Block{Text: sb.String(), IncludedIDs: ids}
}

// unitSeparator separates product units in the assembled text.
const unitSeparator = "\n\n"

// renderUnit serializes one product payload into a compact, LLM-readable
// unit. Spec keys are sorted so the same payload always renders to the same
// bytes.
func renderUnit(id string, p *rag.Payload) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Product: %s\n", p.Title)
	fmt.Fprintf(&sb, "Category: %s\n", p.Category)
	if p.Price != "" {
		fmt.Fprintf(&sb, "Price: %s\n", p.Price)
	}
	if len(p.Specs) > 0 {
		keys := make([]string, 0, len(p.Specs))
		for k := range p.Specs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString("Specs:")
		for _, k := range keys {
			fmt.Fprintf(&sb, " %s=%s;", k, p.Specs[k])
		}
		sb.WriteString("\n")
	}
	if p.ReviewSummary != "" {
		fmt.Fprintf(&sb, "Reviews: %s\n", p.ReviewSummary)
	}
	fmt.Fprintf(&sb, "ID: %s", id)
	return sb.String()
}
