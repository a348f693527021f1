package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// NormalizationReason identifies why a raw record could not be normalized.
type NormalizationReason string

const (
	// ReasonMissingField means a required field was absent from the raw record.
	ReasonMissingField NormalizationReason = "missing_field"
	// ReasonUnparsablePrice means the price text was ambiguous or not numeric.
	// The normalizer never silently defaults a price to zero.
	ReasonUnparsablePrice NormalizationReason = "unparsable_price"
)

// NormalizationError is returned when a raw record cannot be coerced into a
// Product. It is per-record: callers skip and count, never abort a batch.
type NormalizationError struct {
	// Reason classifies the failure.
	Reason NormalizationReason
	// Field is the offending field name.
	Field string
	// Detail is a human-readable explanation.
	Detail string
}

// Error implements the error interface.
func (e *NormalizationError) Error() string {
	return fmt.Sprintf("catalog: %s (%s): %s", e.Reason, e.Field, e.Detail)
}

// IsNormalizationError reports whether err is (or wraps) a NormalizationError.
func IsNormalizationError(err error) bool {
	var ne *NormalizationError
	return errors.As(err, &ne)
}

// RawRecord is one unit of the cleaned record stream produced by the
// upstream data-acquisition collaborators. Field presence is not guaranteed.
type RawRecord struct {
	// ID is the optional upstream identifier (e.g. ASIN). When empty, a
	// stable ID is derived from SourceURL.
	ID string `json:"id"`
	// Title is the scraped product name.
	Title string `json:"title"`
	// Price is the raw price text, locale formatting included.
	Price string `json:"price"`
	// Category is an optional free-text category hint (breadcrumb, label).
	Category string `json:"category"`
	// Specs holds scraped attribute name/value pairs.
	Specs map[string]string `json:"specs"`
	// ReviewSummary is an optional condensed review text.
	ReviewSummary string `json:"review_summary"`
	// SourceURL is the page the record was scraped from.
	SourceURL string `json:"source_url"`
}

// categoryKeywords maps lowercase keywords to categories. Matching is
// deterministic: keywords are checked in the fixed order below and the first
// hit wins, so "keyboard mouse combo" always resolves the same way.
var categoryKeywords = []struct {
	keyword string
	cat     Category
}{
	{"mouse", CategoryMouse},
	{"mice", CategoryMouse},
	{"trackball", CategoryMouse},
	{"keyboard", CategoryKeyboard},
	{"keypad", CategoryKeyboard},
	{"headset", CategoryHeadset},
	{"headphone", CategoryHeadset},
	{"earbud", CategoryHeadset},
	{"earphone", CategoryHeadset},
}

// Normalize validates and coerces a raw scraped record into a Product.
// It is a pure function of its input: no I/O, no shared state.
func Normalize(raw *RawRecord) (*Product, error) {
	title := strings.TrimSpace(raw.Title)
	if title == "" {
		return nil, &NormalizationError{Reason: ReasonMissingField, Field: "title", Detail: "empty or absent"}
	}
	if strings.TrimSpace(raw.Price) == "" {
		return nil, &NormalizationError{Reason: ReasonMissingField, Field: "price", Detail: "empty or absent"}
	}

	price, err := ParsePrice(raw.Price)
	if err != nil {
		return nil, err
	}

	id := strings.TrimSpace(raw.ID)
	if id == "" {
		if strings.TrimSpace(raw.SourceURL) == "" {
			return nil, &NormalizationError{Reason: ReasonMissingField, Field: "source_url", Detail: "required to derive a stable id when id is absent"}
		}
		id = DeriveID(raw.SourceURL)
	}

	specs := make(map[string]string, len(raw.Specs))
	for k, v := range raw.Specs {
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		specs[k] = v
	}

	return &Product{
		ID:            id,
		Title:         title,
		Category:      inferCategory(raw.Category, title),
		Price:         price,
		Specs:         specs,
		ReviewSummary: strings.TrimSpace(raw.ReviewSummary),
		SourceURL:     strings.TrimSpace(raw.SourceURL),
	}, nil
}

// inferCategory resolves the category from the explicit hint first, then the
// title. Unmatched text maps to CategoryOther — category inference never fails.
func inferCategory(hint, title string) Category {
	for _, text := range []string{hint, title} {
		lower := strings.ToLower(text)
		for _, kw := range categoryKeywords {
			if strings.Contains(lower, kw.keyword) {
				return kw.cat
			}
		}
	}
	return CategoryOther
}

// currencySymbols maps currency markers found in scraped price text to ISO
// codes. Symbols are checked before alphabetic codes so "MAD 499" and
// "499 MAD" both resolve.
var currencySymbols = []struct {
	marker string
	code   string
}{
	{"$", "USD"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"¥", "JPY"},
	{"USD", "USD"},
	{"EUR", "EUR"},
	{"GBP", "GBP"},
	{"MAD", "MAD"},
	{"DH", "MAD"},
}

// ParsePrice coerces locale-formatted price text ("$1,299.99", "59,99 €",
// "499 MAD") into a Price. Text with no digits, more than one plausible
// amount, or an undecidable separator layout fails with
// NormalizationError{UnparsablePrice}. Untagged amounts default to USD.
func ParsePrice(text string) (Price, error) {
	// Scraped prices sometimes carry line breaks between whole and fraction.
	cleaned := strings.Join(strings.Fields(strings.ReplaceAll(text, "\n", ".")), " ")

	currency := ""
	for _, cs := range currencySymbols {
		if strings.Contains(strings.ToUpper(cleaned), strings.ToUpper(cs.marker)) {
			currency = cs.code
			cleaned = strings.ReplaceAll(cleaned, cs.marker, "")
			break
		}
	}
	if currency == "" {
		currency = "USD"
	}

	digits := extractAmountToken(cleaned)
	if digits == "" {
		return Price{}, &NormalizationError{Reason: ReasonUnparsablePrice, Field: "price", Detail: fmt.Sprintf("no numeric amount in %q", text)}
	}

	amount, ok := parseMinorUnits(digits)
	if !ok {
		return Price{}, &NormalizationError{Reason: ReasonUnparsablePrice, Field: "price", Detail: fmt.Sprintf("ambiguous amount %q in %q", digits, text)}
	}

	return Price{Amount: amount, Currency: currency}, nil
}

// extractAmountToken returns the single contiguous run of digits and
// separators in s, or "" when there is no run or more than one (a price range
// like "59 - 79" is ambiguous, not a value).
func extractAmountToken(s string) string {
	var tokens []string
	var cur strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' || r == '.' || r == ',' {
			cur.WriteRune(r)
			continue
		}
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	if cur.Len() > 0 {
		tokens = append(tokens, cur.String())
	}

	var numeric []string
	for _, t := range tokens {
		if strings.Trim(t, ".,") != "" {
			numeric = append(numeric, strings.Trim(t, ".,"))
		}
	}
	if len(numeric) != 1 {
		return ""
	}
	return numeric[0]
}

// parseMinorUnits converts a digit run with optional thousands/decimal
// separators into minor units. The rightmost separator is the decimal point
// when it is followed by exactly one or two digits; separators followed by
// three digits are thousands marks.
func parseMinorUnits(s string) (int64, bool) {
	lastSep := strings.LastIndexAny(s, ".,")

	whole := s
	frac := ""
	if lastSep >= 0 {
		tail := s[lastSep+1:]
		switch {
		case len(tail) == 3 && !strings.ContainsAny(tail, ".,"):
			// Thousands mark: "1.299" or "1,299".
			whole = s
			frac = ""
		case len(tail) >= 1 && len(tail) <= 2:
			whole = s[:lastSep]
			frac = tail
		default:
			return 0, false
		}
	}

	whole = strings.ReplaceAll(strings.ReplaceAll(whole, ",", ""), ".", "")
	if whole == "" && frac == "" {
		return 0, false
	}

	var amount int64
	for _, r := range whole {
		if r < '0' || r > '9' {
			return 0, false
		}
		amount = amount*10 + int64(r-'0')
	}
	amount *= 100

	if frac != "" {
		var cents int64
		for _, r := range frac {
			if r < '0' || r > '9' {
				return 0, false
			}
			cents = cents*10 + int64(r-'0')
		}
		if len(frac) == 1 {
			cents *= 10
		}
		amount += cents
	}

	return amount, true
}
