package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/cloudwego/eino/components/model"

	"github.com/gearsage/gearsage-go/internal/embedder"
	"github.com/gearsage/gearsage-go/internal/index"
	"github.com/gearsage/gearsage-go/internal/rag"
	"github.com/gearsage/gearsage-go/internal/recommend"
	"github.com/gearsage/gearsage-go/internal/server"
)

// buildVectorStore opens the configured vector index backend. VECTOR_BACKEND
// selects between the local SQLite index (default) and a remote Qdrant
// instance. The returned Pinger probes the chosen backend for GET /api/ready;
// the close function must be called before process exit.
func buildVectorStore(ctx context.Context, log *slog.Logger) (rag.VectorStore, server.Pinger, func(), error) {
	backend := getEnvOrDefault("VECTOR_BACKEND", "sqlite")
	dims := embedder.DefaultDimensions(embedder.ResolveBackend())

	switch backend {
	case "sqlite":
		dbPath := os.Getenv("GEARSAGE_INDEX_DB")
		if dbPath == "" {
			var err error
			dbPath, err = index.DefaultDBPath()
			if err != nil {
				return nil, nil, nil, fmt.Errorf("resolve index path: %w", err)
			}
		}
		store, err := index.Open(dbPath, dims)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open local index %s: %w", dbPath, err)
		}
		log.Info("local index opened", slog.String("path", dbPath), slog.Int("dimensions", dims))
		return store, server.NewIndexPinger(store), func() { _ = store.Close() }, nil

	case "qdrant":
		host := getEnvOrDefault("QDRANT_HOST", "localhost")
		port := getEnvInt("QDRANT_PORT", 6334)
		collection := getEnvOrDefault("QDRANT_COLLECTION", "gearsage-catalog")
		store, err := rag.NewQdrantStore(ctx, &rag.QdrantConfig{
			Host:       host,
			Port:       port,
			Collection: collection,
			VectorSize: uint64(dims), //nolint:gosec // dimensions are bounded
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     os.Getenv("QDRANT_TLS") == "true",
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect to Qdrant at %s:%d: %w", host, port, err)
		}
		log.Info("qdrant store ready", slog.String("host", host), slog.Int("port", port), slog.String("collection", collection))
		return store, server.NewQdrantPinger(store.Client()), func() { _ = store.Close() }, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown VECTOR_BACKEND %q (want sqlite or qdrant)", backend)
	}
}

// buildRetriever assembles the retrieval pipeline from env-tunable options.
func buildRetriever(emb rag.Embedder, store rag.VectorStore) (rag.Retriever, error) {
	opts := rag.RetrieverOptions{
		DefaultTopK:  getEnvInt("RETRIEVAL_TOP_K", 0),
		DiversityCap: getEnvInt("RETRIEVAL_DIVERSITY_CAP", 0),
	}
	if d := os.Getenv("RETRIEVAL_DEDUPE"); d != "" {
		opts.Dedupe = rag.DedupeKey(d)
	}
	return rag.NewRetriever(emb, store, opts)
}

// recommendConfig assembles the recommender configuration, picking up the
// env-tunable grounding budget.
func recommendConfig(retriever rag.Retriever, chatModel model.ToolCallingChatModel) *recommend.Config {
	return &recommend.Config{
		Retriever:         retriever,
		ChatModel:         chatModel,
		MaxGroundingChars: getEnvInt("RETRIEVAL_GROUNDING_CHARS", 0),
	}
}

// listenAddr resolves the serve bind address: an explicit flag wins, then
// SERVER_HOST/SERVER_PORT, then the flag default.
func listenAddr(flagHost string, hostSet bool, flagPort int, portSet bool) (string, int) {
	host, port := flagHost, flagPort
	if !hostSet {
		host = getEnvOrDefault("SERVER_HOST", host)
	}
	if !portSet {
		port = getEnvInt("SERVER_PORT", port)
	}
	return host, port
}

// getEnvOrDefault returns the env var value or a fallback if unset.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the env var parsed as int, or a fallback if unset or
// unparsable.
func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
