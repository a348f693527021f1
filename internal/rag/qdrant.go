package rag

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// qdrantIDNamespace is the UUIDv5 namespace used to derive deterministic
// Qdrant point ids from product ids, so re-ingesting a product overwrites
// its point instead of creating a duplicate.
var qdrantIDNamespace = uuid.MustParse("8a9e6b1a-54c0-4ed4-9c2b-0f2a7c3d11aa")

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this
	// collection. Upserts with a different dimension are rejected.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements VectorStore backed by a Qdrant instance.
// Similarity is cosine; Qdrant returns scores in [-1, 1].
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig
}

// NewQdrantStore creates a new QdrantStore, ensuring the target collection
// exists (creating it if necessary), and returns a ready-to-use VectorStore.
func NewQdrantStore(ctx context.Context, cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.VectorSize == 0 {
		return nil, &IndexError{Kind: IndexDimensionMismatch, Detail: "vector size must be configured before opening the store"}
	}

	clientCfg := &qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	}

	client, err := qdrant.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	store := &QdrantStore{client: client, cfg: cfg}
	if err := store.ensureCollection(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// ensureCollection creates the Qdrant collection if it does not already exist.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Collection, err)
	}

	return nil
}

// pointID derives the deterministic Qdrant UUID for a product id.
func pointID(productID string) string {
	return uuid.NewSHA1(qdrantIDNamespace, []byte(productID)).String()
}

// Upsert stores or replaces entries keyed by product id. Entries whose
// vector dimension differs from the collection's are rejected before any
// network call so a misconfigured embedder fails loudly at ingest time.
func (s *QdrantStore) Upsert(ctx context.Context, entries []IndexEntry) error {
	points := make([]*qdrant.PointStruct, 0, len(entries))
	for _, e := range entries {
		if uint64(len(e.Vector)) != s.cfg.VectorSize {
			return &IndexError{
				Kind:   IndexDimensionMismatch,
				Detail: fmt.Sprintf("entry %s has dimension %d, store expects %d", e.ID, len(e.Vector), s.cfg.VectorSize),
			}
		}

		payload := map[string]any{
			"product_id":     e.ID,
			"title":          e.Payload.Title,
			"category":       e.Payload.Category,
			"price":          e.Payload.Price,
			"review_summary": e.Payload.ReviewSummary,
			"source_url":     e.Payload.SourceURL,
		}
		specs := make(map[string]any, len(e.Payload.Specs))
		for k, v := range e.Payload.Specs {
			specs[k] = v
		}
		payload["specs"] = specs

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID(e.ID)),
			Vectors: qdrant.NewVectors(e.Vector...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}

	return nil
}

// Search performs a cosine similarity search and returns at most k hits.
// Deterministic tie ordering is applied locally since Qdrant does not
// guarantee it.
func (s *QdrantStore) Search(ctx context.Context, queryVector []float32, k int, filter *Filter) ([]SearchHit, error) {
	if uint64(len(queryVector)) != s.cfg.VectorSize {
		return nil, &IndexError{
			Kind:   IndexDimensionMismatch,
			Detail: fmt.Sprintf("query has dimension %d, store expects %d", len(queryVector), s.cfg.VectorSize),
		}
	}

	limit := uint64(k)
	query := &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(queryVector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if filter != nil && filter.Category != "" {
		query.Filter = &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("category", filter.Category),
			},
		}
	}

	results, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	hits := make([]SearchHit, 0, len(results))
	for _, r := range results {
		hit := SearchHit{Score: r.Score}
		if p := r.Payload; p != nil {
			if v, ok := p["product_id"]; ok {
				hit.ID = v.GetStringValue()
			}
			hit.Payload = Payload{
				Title:         p["title"].GetStringValue(),
				Category:      p["category"].GetStringValue(),
				Price:         p["price"].GetStringValue(),
				ReviewSummary: p["review_summary"].GetStringValue(),
				SourceURL:     p["source_url"].GetStringValue(),
			}
			if v, ok := p["specs"]; ok {
				if sv := v.GetStructValue(); sv != nil {
					specs := make(map[string]string, len(sv.Fields))
					for k, f := range sv.Fields {
						specs[k] = f.GetStringValue()
					}
					hit.Payload.Specs = specs
				}
			}
		}
		hits = append(hits, hit)
	}

	return SortHits(hits), nil
}

// Delete removes entries from the collection by product id. Absent ids are
// a no-op on the Qdrant side.
func (s *QdrantStore) Delete(ctx context.Context, ids []string) error {
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewIDUUID(pointID(id)))
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete failed: %w", err)
	}

	return nil
}

// Client exposes the underlying Qdrant gRPC client, used by readiness probes.
func (s *QdrantStore) Client() *qdrant.Client {
	return s.client
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}
