// Package index provides a SQLite-backed vector index for local, single-host
// deployments. Entries survive process restarts and reload into the exact
// same search results given unchanged data. For remote deployments the
// Qdrant store in internal/rag is used instead; both satisfy rag.VectorStore.
package index

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/gearsage/gearsage-go/internal/rag"
)

// SQLiteStore is a rag.VectorStore backed by a local SQLite database.
// Similarity is exact cosine over a full scan, which is more than fast
// enough for a scraped peripheral catalog (thousands of entries, not
// millions). Writes serialize on a single connection; each write is stamped
// with a monotonic sequence number so the last writer wins deterministically
// even under retried, out-of-order upserts.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB

	// dim is the fixed embedding dimension for this index.
	dim int
}

// DefaultDBPath returns the default path for the vector index database.
// It resolves to ~/.gearsage/index.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("index: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".gearsage")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("index: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "index.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path with the given
// embedding dimension and runs the schema migration. Reopening an existing
// index with a different dimension fails with IndexError{DimensionMismatch}
// rather than silently mixing incomparable vectors. Use ":memory:" for an
// in-memory database in tests.
func Open(path string, dim int) (*SQLiteStore, error) {
	if dim <= 0 {
		return nil, &rag.IndexError{Kind: rag.IndexDimensionMismatch, Detail: "embedding dimension must be positive"}
	}

	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("index: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, dim: dim}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist and verifies the
// stored dimension matches the configured one.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS entries (
    id        TEXT    PRIMARY KEY,
    category  TEXT    NOT NULL,
    vector    BLOB    NOT NULL,
    payload   TEXT    NOT NULL,  -- JSON copy of display fields
    seq       INTEGER NOT NULL   -- monotonic write stamp, last writer wins
);
CREATE INDEX IF NOT EXISTS idx_entries_category ON entries (category);
CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("index: migrate: %w", err)
	}

	var stored string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = 'dimension'`).Scan(&stored)
	switch {
	case err == sql.ErrNoRows:
		if _, err := s.db.Exec(`INSERT INTO meta (key, value) VALUES ('dimension', ?)`, fmt.Sprint(s.dim)); err != nil {
			return fmt.Errorf("index: record dimension: %w", err)
		}
	case err != nil:
		return fmt.Errorf("index: read dimension: %w", err)
	case stored != fmt.Sprint(s.dim):
		return &rag.IndexError{
			Kind:   rag.IndexDimensionMismatch,
			Detail: fmt.Sprintf("index was built with dimension %s, configured %d", stored, s.dim),
		}
	}
	return nil
}

// Upsert stores or replaces entries keyed by id. Mixed-dimension vectors are
// a configuration error surfaced here, never truncated or padded. Each write
// takes the next sequence number inside the transaction, so a replayed older
// upsert can never clobber a newer one out of order.
func (s *SQLiteStore) Upsert(ctx context.Context, entries []rag.IndexEntry) error {
	for _, e := range entries {
		if len(e.Vector) != s.dim {
			return &rag.IndexError{
				Kind:   rag.IndexDimensionMismatch,
				Detail: fmt.Sprintf("entry %s has dimension %d, index expects %d", e.ID, len(e.Vector), s.dim),
			}
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	const q = `
INSERT INTO entries (id, category, vector, payload, seq)
VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM entries))
ON CONFLICT(id) DO UPDATE SET
    category = excluded.category,
    vector   = excluded.vector,
    payload  = excluded.payload,
    seq      = excluded.seq
WHERE excluded.seq > entries.seq`

	for _, e := range entries {
		payload, err := json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("index: marshal payload for %s: %w", e.ID, err)
		}
		if _, err := tx.ExecContext(ctx, q, e.ID, e.Payload.Category, encodeVector(e.Vector), payload); err != nil {
			return fmt.Errorf("index: upsert %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("index: commit upsert: %w", err)
	}
	return nil
}

// Search scans all entries (optionally restricted by category), computes
// cosine similarity in [-1, 1], and returns at most k hits ordered by
// descending score with ties broken by id ascending.
func (s *SQLiteStore) Search(ctx context.Context, queryVector []float32, k int, filter *rag.Filter) ([]rag.SearchHit, error) {
	if len(queryVector) != s.dim {
		return nil, &rag.IndexError{
			Kind:   rag.IndexDimensionMismatch,
			Detail: fmt.Sprintf("query has dimension %d, index expects %d", len(queryVector), s.dim),
		}
	}
	if k <= 0 {
		return nil, nil
	}

	q := `SELECT id, vector, payload FROM entries`
	var args []any
	if filter != nil && filter.Category != "" {
		q += ` WHERE category = ?`
		args = append(args, filter.Category)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("index: search query: %w", err)
	}
	defer rows.Close()

	var hits []rag.SearchHit
	for rows.Next() {
		var id string
		var blob []byte
		var payloadJSON []byte
		if err := rows.Scan(&id, &blob, &payloadJSON); err != nil {
			return nil, fmt.Errorf("index: search scan: %w", err)
		}

		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("index: entry %s: %w", id, err)
		}

		var payload rag.Payload
		if err := json.Unmarshal(payloadJSON, &payload); err != nil {
			return nil, fmt.Errorf("index: entry %s payload: %w", id, err)
		}

		hits = append(hits, rag.SearchHit{
			ID:      id,
			Score:   cosine(queryVector, vec),
			Payload: payload,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("index: search rows: %w", err)
	}

	hits = rag.SortHits(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Delete removes entries by id; absent ids are a no-op.
func (s *SQLiteStore) Delete(ctx context.Context, ids []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin delete: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id); err != nil {
			return fmt.Errorf("index: delete %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("index: commit delete: %w", err)
	}
	return nil
}

// Count returns the number of entries currently stored.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("index: count: %w", err)
	}
	return n, nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("index: close: %w", err)
	}
	return nil
}

// encodeVector packs a float32 slice into a little-endian byte blob.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

// decodeVector unpacks a little-endian byte blob into a float32 slice.
func decodeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("malformed vector blob of %d bytes", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[4*i:]))
	}
	return vec, nil
}

// cosine returns the cosine similarity of two equal-length vectors.
// A zero vector yields a score of 0 rather than NaN.
func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
