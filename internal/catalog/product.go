// Package catalog defines the canonical Product record and the normalizer
// that produces it from raw scraped input. Product is the source of truth
// for everything stored in the vector index; index payloads are a cache
// derived from it.
package catalog

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
)

// Category is the closed set of peripheral categories a Product can belong to.
type Category string

const (
	// CategoryMouse covers gaming mice and trackballs.
	CategoryMouse Category = "mouse"
	// CategoryKeyboard covers mechanical and membrane keyboards.
	CategoryKeyboard Category = "keyboard"
	// CategoryHeadset covers headsets, headphones, and earbuds.
	CategoryHeadset Category = "headset"
	// CategoryOther is the fallback for anything the keyword table cannot place.
	CategoryOther Category = "other"
)

// Price is a currency-tagged decimal amount stored in minor units (cents)
// to avoid floating-point drift on money values.
type Price struct {
	// Amount is the price in minor units of Currency (e.g. 5999 = 59.99).
	Amount int64
	// Currency is the ISO 4217 code (e.g. "USD", "EUR", "MAD").
	Currency string
}

// String renders the price as "59.99 USD".
func (p Price) String() string {
	return fmt.Sprintf("%d.%02d %s", p.Amount/100, p.Amount%100, p.Currency)
}

// Product is the canonical unit of retrieval. ID is immutable once assigned;
// re-ingesting the same source product updates the other fields in place.
type Product struct {
	// ID is the stable identifier, unique across the catalog.
	ID string

	// Title is the display name of the product.
	Title string

	// Category is the resolved peripheral category.
	Category Category

	// Price is the currency-tagged price.
	Price Price

	// Specs maps free-form attribute names to values (e.g. "weight" → "59g").
	Specs map[string]string

	// ReviewSummary is an optional condensed review text. May be empty.
	ReviewSummary string

	// SourceURL is the page the record was scraped from.
	SourceURL string
}

// EmbeddingText renders the product fields into the canonical text that is
// embedded at index time. Spec keys are emitted in sorted order so the text
// is deterministic for a given Product regardless of map iteration order.
func (p *Product) EmbeddingText() string {
	var sb strings.Builder
	sb.WriteString("Product: ")
	sb.WriteString(p.Title)
	sb.WriteString("\nCategory: ")
	sb.WriteString(string(p.Category))
	sb.WriteString("\nPrice: ")
	sb.WriteString(p.Price.String())

	keys := make([]string, 0, len(p.Specs))
	for k := range p.Specs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString("\n")
		sb.WriteString(k)
		sb.WriteString(": ")
		sb.WriteString(p.Specs[k])
	}

	if p.ReviewSummary != "" {
		sb.WriteString("\nReviews: ")
		sb.WriteString(p.ReviewSummary)
	}
	return sb.String()
}

// IdentityKey returns the normalized title+category key used for
// near-duplicate detection across listings scraped at different times.
func (p *Product) IdentityKey() string {
	title := strings.Join(strings.Fields(strings.ToLower(p.Title)), " ")
	return title + "|" + string(p.Category)
}

// DeriveID produces a stable identifier from a source URL. Re-scraping the
// same page yields the same ID, so ingestion upserts rather than duplicates.
func DeriveID(sourceURL string) string {
	h := sha256.Sum256([]byte(sourceURL))
	return fmt.Sprintf("%x", h[:16])
}
