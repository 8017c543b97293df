// Package vectorstore defines the namespace-partitioned vector index
// the pipeline writes into and retrieves from. The core is a
// write-through owner: once chunks are upserted it keeps no copy.
package vectorstore

import (
	"context"

	"github.com/resumelab/ragsweep/pkg/models"
)

// Item is one vector to upsert: a chunk plus its embedding, carried in
// the chunk's Embedding field. The chunk ID is the stable upsert key,
// so re-ingesting the same document overwrites instead of duplicating.
type Item struct {
	Chunk *models.Chunk
}

// Candidate is one nearest-neighbor hit.
type Candidate struct {
	Chunk *models.Chunk

	// Score is cosine similarity, higher is more relevant.
	Score float32
}

// NamespaceStats describes what a namespace currently holds.
type NamespaceStats struct {
	// VectorCount is the number of vectors in the namespace.
	VectorCount int

	// Dimension is the embedding dimension of the stored vectors, or 0
	// for an empty namespace.
	Dimension int
}

// Store is the vector store capability the pipeline depends on.
// Namespaces are created lazily on first upsert and are never shared
// across variants.
type Store interface {
	// Upsert writes items into ns, overwriting items with the same
	// chunk ID. Returns the IDs written in order; on partial failure
	// the returned slice holds what was written before the error.
	Upsert(ctx context.Context, ns string, items []Item) ([]string, error)

	// Query returns up to topK nearest neighbors of vector in ns,
	// ordered by descending score. An unknown or empty namespace
	// returns an empty slice, not an error.
	Query(ctx context.Context, ns string, vector []float32, topK int) ([]Candidate, error)

	// DeleteNamespace removes all vectors in ns. Deleting an unknown
	// namespace is a no-op.
	DeleteNamespace(ctx context.Context, ns string) error

	// Stats reports the current contents of ns.
	Stats(ctx context.Context, ns string) (*NamespaceStats, error)

	// Close releases resources.
	Close() error
}
