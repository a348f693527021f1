package embedder

import (
	"context"
	"math"
	"testing"
)

func Test_NormalizeText(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "Wireless FPS Mouse", "wireless fps mouse"},
		{"collapses whitespace", "quiet   mechanical\tkeyboard", "quiet mechanical keyboard"},
		{"strips newlines", "59g\n26000 DPI", "59g 26000 dpi"},
		{"trims edges", "  headset  ", "headset"},
		{"empty", "", ""},
		{"whitespace only", " \t\n ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := NormalizeText(tt.in); got != tt.want {
				t.Errorf("NormalizeText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// capturingEmbedder records the texts it receives so tests can assert on the
// exact strings reaching the backend.
type capturingEmbedder struct {
	received []string
}

func (c *capturingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	c.received = append(c.received, texts...)
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1}
	}
	return out, nil
}

// Index-time and query-time variants of the same content must reach the
// backend as the same string, otherwise retrieval quality silently degrades.
func Test_Normalizing_SymmetricAcrossIndexAndQuery(t *testing.T) {
	t.Parallel()
	capture := &capturingEmbedder{}
	emb := WithNormalization(capture)
	ctx := context.Background()

	indexed := "Wireless FPS Mouse  59g\t26000 DPI"
	queried := "wireless fps mouse 59g 26000 dpi"

	if _, err := emb.Embed(ctx, []string{indexed}); err != nil {
		t.Fatalf("embed indexed: %v", err)
	}
	if _, err := emb.Embed(ctx, []string{queried}); err != nil {
		t.Fatalf("embed queried: %v", err)
	}

	if len(capture.received) != 2 {
		t.Fatalf("backend received %d texts, want 2", len(capture.received))
	}
	if capture.received[0] != capture.received[1] {
		t.Errorf("asymmetric normalization: index-time %q vs query-time %q",
			capture.received[0], capture.received[1])
	}
}

func Test_LocalEmbedder_Deterministic(t *testing.T) {
	t.Parallel()
	emb := NewLocalEmbedder(64)
	ctx := context.Background()
	text := "lightweight wireless mouse for competitive fps"

	first, err := emb.Embed(ctx, []string{text})
	if err != nil {
		t.Fatalf("first embed: %v", err)
	}
	second, err := emb.Embed(ctx, []string{text})
	if err != nil {
		t.Fatalf("second embed: %v", err)
	}

	const eps = 1e-6
	if len(first[0]) != 64 || len(second[0]) != 64 {
		t.Fatalf("dimensions = %d, %d, want 64", len(first[0]), len(second[0]))
	}
	for i := range first[0] {
		if math.Abs(float64(first[0][i]-second[0][i])) > eps {
			t.Fatalf("component %d differs across calls: %v vs %v", i, first[0][i], second[0][i])
		}
	}
}

// Embedding a text alone and embedding it inside a larger batch must produce
// the same vector.
func Test_LocalEmbedder_BatchIndependent(t *testing.T) {
	t.Parallel()
	emb := NewLocalEmbedder(64)
	ctx := context.Background()

	alone, err := emb.Embed(ctx, []string{"quiet mechanical keyboard"})
	if err != nil {
		t.Fatalf("embed alone: %v", err)
	}
	batched, err := emb.Embed(ctx, []string{"wireless headset", "quiet mechanical keyboard", "fps mouse"})
	if err != nil {
		t.Fatalf("embed batched: %v", err)
	}

	for i := range alone[0] {
		if alone[0][i] != batched[1][i] {
			t.Fatalf("component %d depends on batch composition: %v vs %v", i, alone[0][i], batched[1][i])
		}
	}
}

func Test_LocalEmbedder_UnitNorm(t *testing.T) {
	t.Parallel()
	emb := NewLocalEmbedder(64)
	vecs, err := emb.Embed(context.Background(), []string{"rgb gaming headset with detachable mic"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	var norm float64
	for _, v := range vecs[0] {
		norm += float64(v) * float64(v)
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Errorf("squared norm = %v, want 1", norm)
	}
}

// Similar texts should score higher under cosine than unrelated texts — the
// property retrieval relies on.
func Test_LocalEmbedder_TermOverlapRanksHigher(t *testing.T) {
	t.Parallel()
	emb := NewLocalEmbedder(256)
	ctx := context.Background()
	vecs, err := emb.Embed(ctx, []string{
		"lightweight wireless mouse for fps",
		"wireless fps mouse 59g low latency",
		"full size mechanical keyboard with brown switches",
	})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}

	dot := func(a, b []float32) float64 {
		var s float64
		for i := range a {
			s += float64(a[i]) * float64(b[i])
		}
		return s
	}
	if dot(vecs[0], vecs[1]) <= dot(vecs[0], vecs[2]) {
		t.Errorf("mouse query should score the mouse doc above the keyboard doc: %v vs %v",
			dot(vecs[0], vecs[1]), dot(vecs[0], vecs[2]))
	}
}

func Test_DefaultDimensions(t *testing.T) {
	tests := []struct {
		backend string
		want    int
	}{
		{"local", 256},
		{"ollama", 768},
		{"openai", 1536},
		{"azure", 1536},
		{"", 256},
	}
	for _, tt := range tests {
		if got := DefaultDimensions(tt.backend); got != tt.want {
			t.Errorf("DefaultDimensions(%q) = %d, want %d", tt.backend, got, tt.want)
		}
	}
}

func Test_NewFromEnv_UnknownBackend(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "carrier-pigeon")
	if _, err := NewFromEnv(); err == nil {
		t.Fatal("want error for unknown backend")
	}
}

func Test_NewFromEnv_DefaultsToLocal(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "")
	t.Setenv("MODEL_PROVIDER", "")
	emb, err := NewFromEnv()
	if err != nil {
		t.Fatalf("NewFromEnv: %v", err)
	}
	vecs, err := emb.Embed(context.Background(), []string{"Mouse"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vecs) != 1 || len(vecs[0]) != DefaultLocalDimensions {
		t.Errorf("default local embedder should emit %d-dim vectors, got %d", DefaultLocalDimensions, len(vecs[0]))
	}
}
