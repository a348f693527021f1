package rag

import (
	"context"
	"testing"
)

// fakeEmbedder returns a fixed vector for any input text.
type fakeEmbedder struct {
	vector []float32
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

// fakeStore returns a canned hit list and records the requested k.
type fakeStore struct {
	hits       []SearchHit
	requestedK int
}

func (f *fakeStore) Upsert(context.Context, []IndexEntry) error { return nil }

func (f *fakeStore) Search(_ context.Context, _ []float32, k int, _ *Filter) ([]SearchHit, error) {
	f.requestedK = k
	if len(f.hits) > k {
		return f.hits[:k], nil
	}
	return f.hits, nil
}

func (f *fakeStore) Delete(context.Context, []string) error { return nil }
func (f *fakeStore) Close() error                           { return nil }

func hit(id string, score float32, title, category string) SearchHit {
	return SearchHit{ID: id, Score: score, Payload: Payload{Title: title, Category: category}}
}

func newTestRetriever(t *testing.T, store VectorStore, opts RetrieverOptions) *DefaultRetriever {
	t.Helper()
	r, err := NewRetriever(&fakeEmbedder{vector: []float32{1, 0}}, store, opts)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}
	return r
}

func Test_Retrieve_OrderedAndTruncated(t *testing.T) {
	t.Parallel()
	store := &fakeStore{hits: []SearchHit{
		hit("b", 0.7, "Keyboard B", "keyboard"),
		hit("a", 0.9, "Mouse A", "mouse"),
		hit("c", 0.5, "Headset C", "headset"),
	}}
	r := newTestRetriever(t, store, RetrieverOptions{})

	got, err := r.Retrieve(context.Background(), "anything", 2)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 hits, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Errorf("scores not non-increasing at %d: %v then %v", i, got[i-1].Score, got[i].Score)
		}
	}
	if got[0].ID != "a" {
		t.Errorf("best hit = %s, want a", got[0].ID)
	}
	if store.requestedK != 6 {
		t.Errorf("over-fetch k = %d, want 6 (3x)", store.requestedK)
	}
}

func Test_Retrieve_TieBrokenByID(t *testing.T) {
	t.Parallel()
	store := &fakeStore{hits: []SearchHit{
		hit("z", 0.8, "Listing Z", "mouse"),
		hit("a", 0.8, "Listing A", "keyboard"),
	}}
	r := newTestRetriever(t, store, RetrieverOptions{})

	got, err := r.Retrieve(context.Background(), "q", 2)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if got[0].ID != "a" || got[1].ID != "z" {
		t.Errorf("tie order = [%s %s], want [a z]", got[0].ID, got[1].ID)
	}
}

func Test_Retrieve_DedupeByTitleKeepsHighestScore(t *testing.T) {
	t.Parallel()
	// The same listing scraped twice under different ids, plus case and
	// whitespace noise in the title.
	store := &fakeStore{hits: []SearchHit{
		hit("old", 0.6, "Wireless  FPS Mouse", "mouse"),
		hit("new", 0.9, "wireless fps mouse", "mouse"),
		hit("kb", 0.5, "Quiet Keyboard", "keyboard"),
	}}
	r := newTestRetriever(t, store, RetrieverOptions{Dedupe: DedupeByTitle})

	got, err := r.Retrieve(context.Background(), "q", 5)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 hits after dedup, got %d", len(got))
	}
	if got[0].ID != "new" {
		t.Errorf("kept %s, want the higher-scoring duplicate", got[0].ID)
	}
}

func Test_Retrieve_DedupeByIDKeepsDistinctListings(t *testing.T) {
	t.Parallel()
	store := &fakeStore{hits: []SearchHit{
		hit("a", 0.9, "Same Title", "mouse"),
		hit("b", 0.8, "Same Title", "mouse"),
	}}
	r := newTestRetriever(t, store, RetrieverOptions{Dedupe: DedupeByID})

	got, err := r.Retrieve(context.Background(), "q", 5)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("id dedup collapsed distinct ids: got %d hits", len(got))
	}
}

func Test_Retrieve_DiversityCap(t *testing.T) {
	t.Parallel()
	store := &fakeStore{hits: []SearchHit{
		hit("m1", 0.9, "Mouse 1", "mouse"),
		hit("m2", 0.8, "Mouse 2", "mouse"),
		hit("m3", 0.7, "Mouse 3", "mouse"),
		hit("h1", 0.6, "Headset 1", "headset"),
	}}
	r := newTestRetriever(t, store, RetrieverOptions{DiversityCap: 2})

	got, err := r.Retrieve(context.Background(), "q", 4)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	mice := 0
	for _, h := range got {
		if h.Payload.Category == "mouse" {
			mice++
		}
	}
	if mice != 2 {
		t.Errorf("mice = %d, want capped at 2", mice)
	}
	if len(got) != 3 {
		t.Errorf("want 3 hits (2 mice + 1 headset), got %d", len(got))
	}
}

func Test_Retrieve_EmptyIndexReturnsEmpty(t *testing.T) {
	t.Parallel()
	r := newTestRetriever(t, &fakeStore{}, RetrieverOptions{})

	got, err := r.Retrieve(context.Background(), "q", 3)
	if err != nil {
		t.Fatalf("empty index must not error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("want empty result, got %d hits", len(got))
	}
}

func Test_Retrieve_FewerThanKReturnsAll(t *testing.T) {
	t.Parallel()
	store := &fakeStore{hits: []SearchHit{hit("a", 0.9, "Mouse A", "mouse")}}
	r := newTestRetriever(t, store, RetrieverOptions{})

	got, err := r.Retrieve(context.Background(), "q", 10)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("want 1 hit, never padded, got %d", len(got))
	}
}
