package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/resumelab/ragsweep/internal/embed"
	"github.com/resumelab/ragsweep/internal/namespace"
	"github.com/resumelab/ragsweep/internal/vectorstore"
	"github.com/resumelab/ragsweep/internal/vectorstore/memory"
	"github.com/resumelab/ragsweep/pkg/models"
)

// ============================================================================
// Fakes
// ============================================================================

type fixedEmbedder struct {
	dim int
}

func (f fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, f.dim)
	v[0] = float32(len(text))
	return v, nil
}

func (f fixedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = f.Embed(ctx, t)
	}
	return out, nil
}

func (fixedEmbedder) Name() string      { return "fixed" }
func (fixedEmbedder) Model() string     { return "fixed-embed" }
func (f fixedEmbedder) Dimension() int  { return f.dim }
func (fixedEmbedder) MaxBatchSize() int { return 2 }

type failingStore struct {
	vectorstore.Store
	failAfter int
}

func (s *failingStore) Upsert(ctx context.Context, ns string, items []vectorstore.Item) ([]string, error) {
	if len(items) > s.failAfter {
		written, _ := s.Store.Upsert(ctx, ns, items[:s.failAfter])
		return written, errors.New("connection reset")
	}
	return s.Store.Upsert(ctx, ns, items)
}

func testWriter(t *testing.T, store vectorstore.Store) (*Writer, *namespace.Store) {
	t.Helper()
	registry := embed.NewRegistry()
	registry.Register("fixed-embed", func() (embed.Provider, error) {
		return fixedEmbedder{dim: 4}, nil
	})
	history := namespace.NewStore(filepath.Join(t.TempDir(), ".ns_history.json"))
	return NewWriter(store, history, registry), history
}

func testVariant() models.Variant {
	return models.Variant{
		Parser:         "baseline",
		Chunking:       "recursive",
		EmbeddingModel: "fixed-embed",
		Reranker:       "none",
		Prompt:         "baseline",
		K:              5,
	}
}

func testDoc() *models.Document {
	return &models.Document{
		ID:            "doc-1",
		Name:          "resume.txt",
		ParserBackend: "baseline",
		Content:       strings.Repeat("Experience building Go services.\n\n", 40),
	}
}

// ============================================================================
// Ingest
// ============================================================================

func TestIngestWritesChunksAndRecordsHistory(t *testing.T) {
	store := memory.New()
	w, history := testWriter(t, store)
	v := testVariant()

	res, err := w.Ingest(context.Background(), testDoc(), v)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.ChunkCount == 0 {
		t.Fatal("no chunks written")
	}
	if res.Dimension != 4 {
		t.Errorf("dimension = %d, want 4", res.Dimension)
	}

	stats, err := store.Stats(context.Background(), res.Namespace)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.VectorCount != res.ChunkCount {
		t.Errorf("store has %d vectors, result says %d", stats.VectorCount, res.ChunkCount)
	}

	entries, err := history.List()
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	if len(entries) != 1 || entries[0].Namespace != res.Namespace {
		t.Errorf("history = %+v, want one entry for %s", entries, res.Namespace)
	}
	if !entries[0].Variant.Equal(v) {
		t.Errorf("history variant = %+v, want %+v", entries[0].Variant, v)
	}
}

func TestIngestIsIdempotent(t *testing.T) {
	store := memory.New()
	w, _ := testWriter(t, store)

	first, err := w.Ingest(context.Background(), testDoc(), testVariant())
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	second, err := w.Ingest(context.Background(), testDoc(), testVariant())
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if first.ChunkCount != second.ChunkCount {
		t.Errorf("chunk counts differ: %d vs %d", first.ChunkCount, second.ChunkCount)
	}

	stats, err := store.Stats(context.Background(), first.Namespace)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.VectorCount != first.ChunkCount {
		t.Errorf("store has %d vectors after re-ingest, want %d", stats.VectorCount, first.ChunkCount)
	}
}

func TestIngestModelMismatch(t *testing.T) {
	store := memory.New()
	w, _ := testWriter(t, store)
	v := testVariant()

	// Pre-seed the variant's namespace with a different dimension.
	ns := namespace.Resolve(v)
	if _, err := store.Upsert(context.Background(), ns, []vectorstore.Item{
		{Chunk: &models.Chunk{ID: "x#0", Text: "t", Embedding: []float32{1, 0}}},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err := w.Ingest(context.Background(), testDoc(), v)
	var mismatch *embed.ModelMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("err = %v, want ModelMismatchError", err)
	}
}

func TestIngestPartialFailureReportsWrittenIDs(t *testing.T) {
	w, _ := testWriter(t, &failingStore{Store: memory.New(), failAfter: 1})

	_, err := w.Ingest(context.Background(), testDoc(), testVariant())
	var partial *PartialError
	if !errors.As(err, &partial) {
		t.Fatalf("err = %v, want PartialError", err)
	}
	if len(partial.WrittenIDs) != 1 {
		t.Errorf("written = %d, want 1", len(partial.WrittenIDs))
	}
	if partial.Total <= len(partial.WrittenIDs) {
		t.Errorf("total %d should exceed written %d", partial.Total, len(partial.WrittenIDs))
	}
}

func TestIngestParserBackendMismatch(t *testing.T) {
	w, _ := testWriter(t, memory.New())
	doc := testDoc()
	doc.ParserBackend = "layout"

	if _, err := w.Ingest(context.Background(), doc, testVariant()); err == nil {
		t.Error("expected error for parser backend mismatch")
	}
}

func TestIngestEmptyDocument(t *testing.T) {
	w, history := testWriter(t, memory.New())
	doc := testDoc()
	doc.Content = ""

	res, err := w.Ingest(context.Background(), doc, testVariant())
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.ChunkCount != 0 {
		t.Errorf("chunk count = %d, want 0", res.ChunkCount)
	}
	// The namespace is still recorded so sweeps can skip re-ingest.
	entries, err := history.List()
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("history entries = %d, want 1", len(entries))
	}
}
