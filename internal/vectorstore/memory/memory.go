// Package memory provides a brute-force in-memory vector store with
// cosine similarity, used for tests and credential-free dry runs.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/resumelab/ragsweep/internal/vectorstore"
	"github.com/resumelab/ragsweep/pkg/models"
)

// Store implements vectorstore.Store with per-namespace maps keyed by
// chunk ID.
type Store struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]entry
}

type entry struct {
	chunk  models.Chunk
	vector []float32
}

var _ vectorstore.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{namespaces: make(map[string]map[string]entry)}
}

// Upsert writes items into ns, creating the namespace on first use.
func (s *Store) Upsert(ctx context.Context, ns string, items []vectorstore.Item) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, ok := s.namespaces[ns]
	if !ok {
		bucket = make(map[string]entry)
		s.namespaces[ns] = bucket
	}

	written := make([]string, 0, len(items))
	for i, item := range items {
		if item.Chunk == nil || item.Chunk.ID == "" {
			return written, fmt.Errorf("item %d has no chunk id", i)
		}
		if len(item.Chunk.Embedding) == 0 {
			return written, fmt.Errorf("chunk %s has no embedding", item.Chunk.ID)
		}
		chunk := *item.Chunk
		bucket[chunk.ID] = entry{chunk: chunk, vector: chunk.Embedding}
		written = append(written, chunk.ID)
	}
	return written, nil
}

// Query returns the topK nearest neighbors by cosine similarity.
func (s *Store) Query(ctx context.Context, ns string, vector []float32, topK int) ([]vectorstore.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	bucket := s.namespaces[ns]
	if len(bucket) == 0 {
		return nil, nil
	}

	candidates := make([]vectorstore.Candidate, 0, len(bucket))
	for _, e := range bucket {
		chunk := e.chunk
		candidates = append(candidates, vectorstore.Candidate{
			Chunk: &chunk,
			Score: cosine(vector, e.vector),
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Chunk.ID < candidates[j].Chunk.ID
	})
	if topK < len(candidates) {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

// DeleteNamespace removes all vectors in ns.
func (s *Store) DeleteNamespace(ctx context.Context, ns string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.namespaces, ns)
	return nil
}

// Stats reports the current contents of ns.
func (s *Store) Stats(ctx context.Context, ns string) (*vectorstore.NamespaceStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &vectorstore.NamespaceStats{}
	for _, e := range s.namespaces[ns] {
		stats.VectorCount++
		if stats.Dimension == 0 {
			stats.Dimension = len(e.vector)
		}
	}
	return stats, nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
