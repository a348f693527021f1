package recommend

import (
	"context"
	"testing"

	"github.com/gearsage/gearsage-go/internal/catalog"
	"github.com/gearsage/gearsage-go/internal/embedder"
	"github.com/gearsage/gearsage-go/internal/index"
	"github.com/gearsage/gearsage-go/internal/rag"
)

// Exercises the full local pipeline: normalize → embed → index → retrieve →
// assemble → generate. A query for a lightweight wireless FPS mouse must rank
// both mice above the keyboard and ground the answer in their ids.
func Test_Scenario_FPSMouseQuery(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	records := []catalog.RawRecord{
		{
			Title:     "Featherlight Pro Wireless Mouse",
			Price:     "$59.99",
			Category:  "mouse",
			Specs:     map[string]string{"weight": "59g", "dpi": "26000", "connection": "wireless"},
			ReviewSummary: "Reviewers praise the low weight and flawless wireless sensor for FPS games.",
			SourceURL: "https://example.com/featherlight-pro",
		},
		{
			Title:     "Arena Esports Wired Mouse",
			Price:     "$39.99",
			Category:  "mouse",
			Specs:     map[string]string{"weight": "68g", "dpi": "16000", "connection": "wired"},
			ReviewSummary: "A budget wired mouse with a reliable sensor.",
			SourceURL: "https://example.com/arena-esports",
		},
		{
			Title:     "Silent Type Mechanical Keyboard",
			Price:     "$129.00",
			Category:  "keyboard",
			Specs:     map[string]string{"switches": "silent red", "layout": "tkl"},
			ReviewSummary: "Quiet switches suited to shared offices.",
			SourceURL: "https://example.com/silent-type",
		},
	}

	emb := embedder.WithNormalization(embedder.NewLocalEmbedder(embedder.DefaultLocalDimensions))
	store, err := index.Open(":memory:", embedder.DefaultLocalDimensions)
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	defer store.Close()

	// Ingest: normalize each raw record, embed its canonical text, upsert.
	for _, rec := range records {
		p, err := catalog.Normalize(&rec)
		if err != nil {
			t.Fatalf("normalize %q: %v", rec.Title, err)
		}
		vecs, err := emb.Embed(ctx, []string{p.EmbeddingText()})
		if err != nil {
			t.Fatalf("embed %q: %v", rec.Title, err)
		}
		if err := store.Upsert(ctx, []rag.IndexEntry{{
			ID:      p.ID,
			Vector:  vecs[0],
			Payload: rag.NewPayload(p),
		}}); err != nil {
			t.Fatalf("upsert %q: %v", rec.Title, err)
		}
	}

	retriever, err := rag.NewRetriever(emb, store, rag.RetrieverOptions{})
	if err != nil {
		t.Fatalf("retriever: %v", err)
	}

	query := "recommend a lightweight wireless mouse for fps gaming"

	// Retrieval layer: both mice must outrank the keyboard, wireless first.
	hits, err := retriever.Retrieve(ctx, query, 3)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("no hits for the mouse query")
	}
	if hits[0].Payload.Title != "Featherlight Pro Wireless Mouse" {
		t.Errorf("top hit = %q, want the wireless FPS mouse", hits[0].Payload.Title)
	}
	for i, h := range hits[:len(hits)-1] {
		if h.Score < hits[i+1].Score {
			t.Errorf("scores increase at %d: %v < %v", i, h.Score, hits[i+1].Score)
		}
	}
	if len(hits) >= 3 && hits[0].Payload.Category == "keyboard" {
		t.Error("keyboard ranked first for a mouse query")
	}

	// Full query path with a canned model: provenance must carry the top hit.
	chat := &fakeChatModel{reply: "The Featherlight Pro Wireless Mouse [ID: " + hits[0].ID + "] fits best."}
	rec, err := New(&Config{Retriever: retriever, ChatModel: chat})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	resp, err := rec.Recommend(ctx, query, 3)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if resp.LowConfidence {
		t.Error("grounded scenario flagged low confidence")
	}
	if len(resp.CitedProductIDs) == 0 || resp.CitedProductIDs[0] != hits[0].ID {
		t.Errorf("cited ids = %v, want %s first", resp.CitedProductIDs, hits[0].ID)
	}
}
