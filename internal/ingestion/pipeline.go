// Package ingestion implements the catalog ingestion pipeline.
// It reads scraped product records from a JSONL stream, normalizes each into
// a canonical product, embeds the canonical text in batches, and upserts the
// results into the vector store. This pipeline is invoked by the
// `gearsage ingest` CLI command.
package ingestion

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/gearsage/gearsage-go/internal/catalog"
	"github.com/gearsage/gearsage-go/internal/logging"
	"github.com/gearsage/gearsage-go/internal/rag"
	"github.com/gearsage/gearsage-go/internal/retry"
)

// maxLineBytes bounds a single JSONL record; scraped review summaries can run
// long but anything past this is a corrupt line.
const maxLineBytes = 4 * 1024 * 1024

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// BatchSize is the number of products embedded and upserted per batch.
	// Defaults to 32 if zero.
	BatchSize int

	// Workers is the number of batches processed concurrently.
	// Defaults to 4 if zero.
	Workers int

	// EmbedRetry governs retries of transient embedding failures. Defaults
	// to the standard policy over rag.IsRetryableEmbedding.
	EmbedRetry *retry.Policy
}

// Stats summarizes one ingestion run.
type Stats struct {
	// Ingested is the number of products embedded and stored.
	Ingested int
	// Skipped is the number of input lines dropped: unparsable JSON or
	// records that failed normalization.
	Skipped int
}

// Pipeline orchestrates the parse → normalize → embed → upsert flow for a
// stream of scraped records.
type Pipeline struct {
	// embedder converts canonical product text into dense vector embeddings.
	embedder rag.Embedder

	// store persists the embedded products.
	store rag.VectorStore

	// cfg holds the resolved pipeline configuration.
	cfg *Config
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(embedder rag.Embedder, store rag.VectorStore, cfg *Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.EmbedRetry == nil {
		cfg.EmbedRetry = retry.NewPolicy(rag.IsRetryableEmbedding)
	}

	return &Pipeline{
		embedder: embedder,
		store:    store,
		cfg:      cfg,
	}, nil
}

// IngestFile ingests a JSONL file of scraped records from path.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (*Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ingestion: open %s: %w", path, err)
	}
	defer f.Close()
	return p.IngestStream(ctx, f)
}

// IngestStream reads one JSON record per line from r and ingests them.
// A bad line — unparsable JSON or a record that fails normalization — is
// skipped and counted, never fatal: one corrupt scrape must not abort a
// million-record run. Embedding and upserting happen in parallel batches;
// the first storage or exhausted-retry embedding error cancels the run.
func (p *Pipeline) IngestStream(ctx context.Context, r io.Reader) (*Stats, error) {
	log := logging.FromContext(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)

	var ingested atomic.Int64
	stats := &Stats{}

	flush := func(batch []*catalog.Product) {
		g.Go(func() error {
			if err := p.processBatch(gctx, batch); err != nil {
				return err
			}
			ingested.Add(int64(len(batch)))
			return nil
		})
	}

	reader := bufio.NewReaderSize(r, 64*1024)

	batch := make([]*catalog.Product, 0, p.cfg.BatchSize)
	lineNo := 0
	for {
		line, overlong, readErr := readLine(reader)
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			// Drain in-flight batches before reporting the read failure.
			_ = g.Wait()
			return nil, fmt.Errorf("ingestion: reading input: %w", readErr)
		}
		lineNo++

		switch {
		case overlong:
			stats.Skipped++
			log.Warn("skipping overlong record",
				slog.Int("line", lineNo),
				slog.Int("limit_bytes", maxLineBytes),
			)
		case len(line) > 0:
			var raw catalog.RawRecord
			if err := json.Unmarshal(line, &raw); err != nil {
				stats.Skipped++
				log.Warn("skipping unparsable record",
					slog.Int("line", lineNo),
					slog.Any("error", err),
				)
				break
			}

			product, err := catalog.Normalize(&raw)
			if err != nil {
				stats.Skipped++
				log.Warn("skipping record that failed normalization",
					slog.Int("line", lineNo),
					slog.String("title", raw.Title),
					slog.Any("error", err),
				)
				break
			}

			batch = append(batch, product)
			if len(batch) >= p.cfg.BatchSize {
				flush(batch)
				batch = make([]*catalog.Product, 0, p.cfg.BatchSize)
			}
		}

		if errors.Is(readErr, io.EOF) {
			break
		}
	}
	if len(batch) > 0 {
		flush(batch)
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats.Ingested = int(ingested.Load())
	log.Info("ingestion complete",
		slog.Int("ingested", stats.Ingested),
		slog.Int("skipped", stats.Skipped),
	)
	return stats, nil
}

// readLine returns the next newline-terminated line from r, without the
// newline. A line longer than maxLineBytes is discarded up to the next
// newline and reported as overlong so one runaway record cannot abort the
// stream. The final line may arrive together with io.EOF.
func readLine(r *bufio.Reader) (line []byte, overlong bool, err error) {
	for {
		frag, err := r.ReadSlice('\n')
		if err == nil || errors.Is(err, io.EOF) {
			if len(line)+len(frag) > maxLineBytes {
				return nil, true, err
			}
			line = append(line, frag...)
			return bytes.TrimSuffix(line, []byte{'\n'}), false, err
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return nil, false, err
		}
		line = append(line, frag...)
		if len(line) > maxLineBytes {
			return nil, true, discardLine(r)
		}
	}
}

// discardLine consumes input up to and including the next newline.
func discardLine(r *bufio.Reader) error {
	for {
		_, err := r.ReadSlice('\n')
		if err == nil || errors.Is(err, io.EOF) {
			return err
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return err
		}
	}
}

// processBatch embeds a batch of products and upserts the resulting entries.
func (p *Pipeline) processBatch(ctx context.Context, batch []*catalog.Product) error {
	texts := make([]string, len(batch))
	for i, product := range batch {
		texts[i] = product.EmbeddingText()
	}

	vectors, err := retry.DoValue(ctx, p.cfg.EmbedRetry, func() ([][]float32, error) {
		return p.embedder.Embed(ctx, texts)
	})
	if err != nil {
		return fmt.Errorf("ingestion: embedding batch of %d failed: %w", len(batch), err)
	}
	if len(vectors) != len(batch) {
		return fmt.Errorf("ingestion: embedder returned %d vectors for %d texts", len(vectors), len(batch))
	}

	entries := make([]rag.IndexEntry, len(batch))
	for i, product := range batch {
		entries[i] = rag.IndexEntry{
			ID:      product.ID,
			Vector:  vectors[i],
			Payload: rag.NewPayload(product),
		}
	}

	if err := p.store.Upsert(ctx, entries); err != nil {
		return fmt.Errorf("ingestion: upsert batch of %d failed: %w", len(batch), err)
	}
	return nil
}
