// Package pgvector provides a vector store implementation backed by
// PostgreSQL with the pgvector extension. Every row carries a namespace,
// and all reads and writes are scoped to one.
package pgvector

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"math"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/resumelab/ragsweep/internal/vectorstore"
	"github.com/resumelab/ragsweep/pkg/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store implements vectorstore.Store using pgvector.
type Store struct {
	db           *sql.DB
	ownsDB       bool // whether this store owns the db connection
	queryTimeout time.Duration
}

// Config contains configuration for the pgvector store.
type Config struct {
	// DSN is the PostgreSQL connection string.
	// If empty, DB must be provided.
	DSN string

	// DB is an existing database connection to reuse.
	// If provided, DSN is ignored and the store will not close the connection.
	DB *sql.DB

	// RunMigrations controls whether to run migrations on startup.
	RunMigrations bool

	// QueryTimeout bounds individual store calls. Zero means no bound
	// beyond the caller's context.
	QueryTimeout time.Duration
}

var _ vectorstore.Store = (*Store)(nil)

// New creates a new pgvector store.
func New(cfg Config) (*Store, error) {
	var db *sql.DB
	var ownsDB bool
	var err error

	if cfg.DB != nil {
		db = cfg.DB
	} else if cfg.DSN != "" {
		db, err = sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		ownsDB = true

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
	} else {
		return nil, fmt.Errorf("either DSN or DB must be provided")
	}

	s := &Store{db: db, ownsDB: ownsDB, queryTimeout: cfg.QueryTimeout}

	if cfg.RunMigrations {
		if err := s.runMigrations(context.Background()); err != nil {
			if ownsDB {
				db.Close()
			}
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return s, nil
}

// withTimeout bounds ctx by the configured query timeout, if any.
func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

// Upsert writes chunks into ns. Each chunk is written in its own
// statement so that a mid-batch failure still reports the IDs that made
// it in.
func (s *Store) Upsert(ctx context.Context, ns string, items []vectorstore.Item) ([]string, error) {
	written := make([]string, 0, len(items))
	if len(items) == 0 {
		return written, nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	stmt, err := s.db.PrepareContext(ctx, `
		INSERT INTO ragsweep_chunks (id, namespace, document_id, chunk_index, content, start_offset, end_offset, metadata, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::vector, $10)
		ON CONFLICT (namespace, id) DO UPDATE SET
			document_id = EXCLUDED.document_id,
			chunk_index = EXCLUDED.chunk_index,
			content = EXCLUDED.content,
			start_offset = EXCLUDED.start_offset,
			end_offset = EXCLUDED.end_offset,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding
	`)
	if err != nil {
		return written, fmt.Errorf("prepare chunk upsert: %w", err)
	}
	defer stmt.Close()

	for i, item := range items {
		chunk := item.Chunk
		if chunk == nil || chunk.ID == "" {
			return written, fmt.Errorf("item %d has no chunk id", i)
		}
		if err := validateEmbedding(chunk.Embedding); err != nil {
			return written, fmt.Errorf("chunk %s: %w", chunk.ID, err)
		}

		metadata, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return written, fmt.Errorf("marshal metadata for chunk %s: %w", chunk.ID, err)
		}

		_, err = stmt.ExecContext(ctx,
			chunk.ID, ns, chunk.DocumentID, chunk.Index, chunk.Text,
			chunk.StartOffset, chunk.EndOffset, string(metadata),
			encodeEmbedding(chunk.Embedding), time.Now())
		if err != nil {
			return written, fmt.Errorf("upsert chunk %s: %w", chunk.ID, err)
		}
		written = append(written, chunk.ID)
	}

	return written, nil
}

// Query returns the topK nearest chunks in ns by cosine similarity.
// An unknown namespace yields an empty result, not an error.
func (s *Store) Query(ctx context.Context, ns string, vector []float32, topK int) ([]vectorstore.Candidate, error) {
	if topK <= 0 {
		return nil, nil
	}
	if err := validateEmbedding(vector); err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, chunk_index, content, start_offset, end_offset, metadata,
		       1 - (embedding <=> $2::vector) AS similarity
		FROM ragsweep_chunks
		WHERE namespace = $1 AND embedding IS NOT NULL
		ORDER BY embedding <=> $2::vector ASC
		LIMIT $3
	`, ns, encodeEmbedding(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	var candidates []vectorstore.Candidate
	for rows.Next() {
		var chunk models.Chunk
		var metadataJSON string
		var similarity float64

		err := rows.Scan(
			&chunk.ID, &chunk.DocumentID, &chunk.Index, &chunk.Text,
			&chunk.StartOffset, &chunk.EndOffset, &metadataJSON, &similarity)
		if err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}

		if err := json.Unmarshal([]byte(metadataJSON), &chunk.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal chunk metadata: %w", err)
		}

		candidates = append(candidates, vectorstore.Candidate{
			Chunk: &chunk,
			Score: float32(similarity),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return candidates, nil
}

// DeleteNamespace removes every chunk in ns. Unknown namespaces are a
// no-op.
func (s *Store) DeleteNamespace(ctx context.Context, ns string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.db.ExecContext(ctx, `DELETE FROM ragsweep_chunks WHERE namespace = $1`, ns)
	if err != nil {
		return fmt.Errorf("delete namespace %s: %w", ns, err)
	}
	return nil
}

// Stats reports vector count and embedding dimension for ns.
func (s *Store) Stats(ctx context.Context, ns string) (*vectorstore.NamespaceStats, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	stats := &vectorstore.NamespaceStats{}
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(MAX(vector_dims(embedding)), 0)
		FROM ragsweep_chunks
		WHERE namespace = $1
	`, ns).Scan(&stats.VectorCount, &stats.Dimension)
	if err != nil {
		return nil, fmt.Errorf("namespace stats: %w", err)
	}
	return stats, nil
}

// Close releases resources.
func (s *Store) Close() error {
	if s.ownsDB && s.db != nil {
		return s.db.Close()
	}
	return nil
}

// runMigrations applies pending database migrations.
func (s *Store) runMigrations(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS ragsweep_schema_migrations (
			id TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("create ragsweep_schema_migrations: %w", err)
	}

	migrations, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	applied, err := s.appliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.ID] {
			continue
		}

		if strings.TrimSpace(m.UpSQL) == "" {
			return fmt.Errorf("missing up migration for %s", m.ID)
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", m.ID, err)
		}

		if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", m.ID, err)
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO ragsweep_schema_migrations (id) VALUES ($1)`, m.ID); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", m.ID, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", m.ID, err)
		}
	}

	return nil
}

func (s *Store) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM ragsweep_schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query ragsweep_schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan ragsweep_schema_migrations: %w", err)
		}
		applied[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ragsweep_schema_migrations: %w", err)
	}
	return applied, nil
}

// Helper functions

func validateEmbedding(embedding []float32) error {
	if len(embedding) == 0 {
		return fmt.Errorf("embedding is empty")
	}
	for _, v := range embedding {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return fmt.Errorf("embedding contains invalid values")
		}
	}
	return nil
}

func encodeEmbedding(embedding []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, f := range embedding {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(fmt.Sprintf("%g", f))
	}
	sb.WriteByte(']')
	return sb.String()
}

// Migration represents an embedded migration.
type Migration struct {
	ID      string
	UpSQL   string
	DownSQL string
}

func loadMigrations() ([]Migration, error) {
	paths, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}

	entries := map[string]*Migration{}
	for _, path := range paths {
		base := strings.TrimPrefix(path, "migrations/")
		suffix := ""
		switch {
		case strings.HasSuffix(base, ".up.sql"):
			suffix = ".up.sql"
		case strings.HasSuffix(base, ".down.sql"):
			suffix = ".down.sql"
		default:
			continue
		}
		id := strings.TrimSuffix(base, suffix)
		entry := entries[id]
		if entry == nil {
			entry = &Migration{ID: id}
			entries[id] = entry
		}
		data, err := migrationsFS.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", path, err)
		}
		if suffix == ".up.sql" {
			entry.UpSQL = string(data)
		} else {
			entry.DownSQL = string(data)
		}
	}

	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	migrations := make([]Migration, 0, len(ids))
	for _, id := range ids {
		migrations = append(migrations, *entries[id])
	}
	return migrations, nil
}
