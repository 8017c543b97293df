package memory

import (
	"context"
	"testing"

	"github.com/resumelab/ragsweep/internal/vectorstore"
	"github.com/resumelab/ragsweep/pkg/models"
)

// ============================================================================
// Helpers
// ============================================================================

func item(id string, vec []float32) vectorstore.Item {
	return vectorstore.Item{Chunk: &models.Chunk{
		ID:        id,
		Text:      "text for " + id,
		Embedding: vec,
	}}
}

// ============================================================================
// Upsert / Query
// ============================================================================

func TestQueryRanksByCosine(t *testing.T) {
	s := New()
	ctx := context.Background()

	written, err := s.Upsert(ctx, "ns", []vectorstore.Item{
		item("a", []float32{1, 0, 0}),
		item("b", []float32{0.9, 0.1, 0}),
		item("c", []float32{0, 1, 0}),
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if len(written) != 3 {
		t.Fatalf("written = %d, want 3", len(written))
	}

	got, err := s.Query(ctx, "ns", []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d candidates, want 2", len(got))
	}
	if got[0].Chunk.ID != "a" || got[1].Chunk.ID != "b" {
		t.Errorf("order = [%s %s], want [a b]", got[0].Chunk.ID, got[1].Chunk.ID)
	}
	if got[0].Score < got[1].Score {
		t.Errorf("scores not descending: %f < %f", got[0].Score, got[1].Score)
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()

	items := []vectorstore.Item{item("a", []float32{1, 0})}
	for i := 0; i < 3; i++ {
		if _, err := s.Upsert(ctx, "ns", items); err != nil {
			t.Fatalf("upsert %d: %v", i, err)
		}
	}

	stats, err := s.Stats(ctx, "ns")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.VectorCount != 1 {
		t.Errorf("vector count = %d, want 1", stats.VectorCount)
	}
	if stats.Dimension != 2 {
		t.Errorf("dimension = %d, want 2", stats.Dimension)
	}
}

func TestUpsertRejectsMissingEmbedding(t *testing.T) {
	s := New()
	_, err := s.Upsert(context.Background(), "ns", []vectorstore.Item{
		{Chunk: &models.Chunk{ID: "a"}},
	})
	if err == nil {
		t.Fatal("expected error for chunk without embedding")
	}
}

func TestQueryUnknownNamespaceReturnsEmpty(t *testing.T) {
	s := New()
	got, err := s.Query(context.Background(), "missing", []float32{1}, 5)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d candidates, want 0", len(got))
	}
}

func TestNamespacesAreIsolated(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.Upsert(ctx, "ns-a", []vectorstore.Item{item("a", []float32{1, 0})}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := s.Upsert(ctx, "ns-b", []vectorstore.Item{item("b", []float32{1, 0})}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.Query(ctx, "ns-a", []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 || got[0].Chunk.ID != "a" {
		t.Errorf("ns-a returned %v, want only chunk a", got)
	}
}

// ============================================================================
// DeleteNamespace
// ============================================================================

func TestDeleteNamespace(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.Upsert(ctx, "ns", []vectorstore.Item{item("a", []float32{1})}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.DeleteNamespace(ctx, "ns"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	stats, err := s.Stats(ctx, "ns")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.VectorCount != 0 {
		t.Errorf("vector count after delete = %d, want 0", stats.VectorCount)
	}

	// Deleting an unknown namespace is a no-op.
	if err := s.DeleteNamespace(ctx, "missing"); err != nil {
		t.Errorf("delete unknown namespace: %v", err)
	}
}
