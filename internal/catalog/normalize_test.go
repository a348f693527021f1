package catalog

import (
	"errors"
	"testing"
)

func Test_Normalize_MinimalRecord(t *testing.T) {
	t.Parallel()
	raw := &RawRecord{
		Title:     "Wireless FPS Mouse",
		Price:     "$59.99",
		SourceURL: "https://example.com/p/1",
	}
	p, err := Normalize(raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if p.Category != CategoryMouse {
		t.Errorf("category = %s, want mouse", p.Category)
	}
	if p.Price.Amount != 5999 || p.Price.Currency != "USD" {
		t.Errorf("price = %+v, want 5999 USD", p.Price)
	}
	if p.ID == "" {
		t.Error("want derived id, got empty")
	}
}

func Test_Normalize_StableIDAcrossRescrape(t *testing.T) {
	t.Parallel()
	mk := func(price string) *RawRecord {
		return &RawRecord{Title: "Quiet Keyboard", Price: price, SourceURL: "https://example.com/p/kb"}
	}
	a, err := Normalize(mk("$99.00"))
	if err != nil {
		t.Fatalf("normalize a: %v", err)
	}
	b, err := Normalize(mk("$89.00"))
	if err != nil {
		t.Fatalf("normalize b: %v", err)
	}
	if a.ID != b.ID {
		t.Errorf("re-scrape changed id: %s vs %s", a.ID, b.ID)
	}
	if a.Price.Amount == b.Price.Amount {
		t.Error("price update was lost")
	}
}

func Test_Normalize_MissingFields(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		raw  *RawRecord
	}{
		{"no title", &RawRecord{Price: "$10", SourceURL: "https://x"}},
		{"no price", &RawRecord{Title: "Mouse", SourceURL: "https://x"}},
		{"no id or url", &RawRecord{Title: "Mouse", Price: "$10"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Normalize(tc.raw)
			var ne *NormalizationError
			if !errors.As(err, &ne) {
				t.Fatalf("want NormalizationError, got %v", err)
			}
			if ne.Reason != ReasonMissingField {
				t.Errorf("reason = %s, want missing_field", ne.Reason)
			}
		})
	}
}

func Test_ParsePrice(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in       string
		amount   int64
		currency string
	}{
		{"$59.99", 5999, "USD"},
		{"$1,299.99", 129999, "USD"},
		{"59,99 €", 5999, "EUR"},
		{"1.299,00 €", 129900, "EUR"},
		{"499 MAD", 49900, "MAD"},
		{"£120", 12000, "GBP"},
		{"89", 8900, "USD"},
		{"59\n99", 5999, "USD"}, // scraped whole/fraction split across lines
	}
	for _, tc := range cases {
		p, err := ParsePrice(tc.in)
		if err != nil {
			t.Errorf("ParsePrice(%q): %v", tc.in, err)
			continue
		}
		if p.Amount != tc.amount || p.Currency != tc.currency {
			t.Errorf("ParsePrice(%q) = %+v, want %d %s", tc.in, p, tc.amount, tc.currency)
		}
	}
}

func Test_ParsePrice_AmbiguousFails(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"", "call for price", "59 - 79 USD", "from $59 to $79"} {
		_, err := ParsePrice(in)
		var ne *NormalizationError
		if !errors.As(err, &ne) {
			t.Errorf("ParsePrice(%q): want NormalizationError, got %v", in, err)
			continue
		}
		if ne.Reason != ReasonUnparsablePrice {
			t.Errorf("ParsePrice(%q): reason = %s, want unparsable_price", in, ne.Reason)
		}
	}
}

func Test_InferCategory_FallbackToOther(t *testing.T) {
	t.Parallel()
	cases := []struct {
		hint, title string
		want        Category
	}{
		{"", "RGB Mechanical Keyboard", CategoryKeyboard},
		{"Computer Headsets", "Pro Wireless", CategoryHeadset},
		{"", "XL Extended Mousepad", CategoryMouse}, // keyword order is deterministic
		{"", "240Hz Gaming Monitor", CategoryOther},
	}
	for _, tc := range cases {
		if got := inferCategory(tc.hint, tc.title); got != tc.want {
			t.Errorf("inferCategory(%q, %q) = %s, want %s", tc.hint, tc.title, got, tc.want)
		}
	}
}

func Test_EmbeddingText_Deterministic(t *testing.T) {
	t.Parallel()
	p := &Product{
		ID:       "a",
		Title:    "Wireless FPS Mouse",
		Category: CategoryMouse,
		Price:    Price{Amount: 5999, Currency: "USD"},
		Specs:    map[string]string{"weight": "59g", "dpi": "26000", "connection": "2.4GHz"},
	}
	first := p.EmbeddingText()
	for range 10 {
		if got := p.EmbeddingText(); got != first {
			t.Fatalf("EmbeddingText not deterministic:\n%s\nvs\n%s", first, got)
		}
	}
}
