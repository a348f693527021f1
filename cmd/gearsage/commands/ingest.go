package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/gearsage/gearsage-go/internal/embedder"
	"github.com/gearsage/gearsage-go/internal/ingestion"
	"github.com/gearsage/gearsage-go/internal/logging"
)

// NewIngestCmd constructs the `gearsage ingest` command, which runs the
// catalog ingestion pipeline to populate the vector index.
func NewIngestCmd() *cobra.Command {
	var batchSize int
	var workers int

	cmd := &cobra.Command{
		Use:   "ingest [file.jsonl]",
		Short: "Ingest a scraped product catalog into the vector index",
		Long: `Normalize, embed, and index a JSONL file of scraped product records.

Each line is one scraped record (title, category, price, specs, review
summary). Malformed lines and records that fail normalization are skipped
and counted — a dirty scrape never aborts the run. Re-ingesting a file is
idempotent: the newest record per product id wins.

Backend selection:
  VECTOR_BACKEND       Index backend: sqlite (default) or qdrant
  GEARSAGE_INDEX_DB    SQLite index path (default: ~/.gearsage/index.db)
  QDRANT_*             Qdrant connection settings (see README)
  EMBEDDING_PROVIDER   Embedding backend: local, ollama, openai, azure

Examples:
  gearsage ingest catalog.jsonl
  gearsage ingest --workers 8 --batch-size 64 catalog.jsonl
  VECTOR_BACKEND=qdrant gearsage ingest catalog.jsonl`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if err := embedder.Validate(log); err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("ingest: failed to initialise embedder: %w", err)
			}
			log.Info("embedder initialised", slog.String("provider", embedder.ResolveBackend()))

			store, _, closeStore, err := buildVectorStore(ctx, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer closeStore()

			pipeline, err := ingestion.NewPipeline(emb, store, &ingestion.Config{
				BatchSize: batchSize,
				Workers:   workers,
			})
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			path := args[0]
			log.Info("starting ingestion", slog.String("file", path))

			stats, err := pipeline.IngestFile(ctx, path)
			if err != nil {
				return fmt.Errorf("ingest: pipeline failed: %w", err)
			}

			log.Info("ingestion complete",
				slog.Int("ingested", stats.Ingested),
				slog.Int("skipped", stats.Skipped),
			)
			fmt.Printf("ingested %d products (%d records skipped)\n", stats.Ingested, stats.Skipped)
			return nil
		},
	}

	cmd.Flags().IntVarP(&batchSize, "batch-size", "b", 0, "Products embedded per batch (default 32)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Concurrent embedding batches (default 4)")

	return cmd
}
