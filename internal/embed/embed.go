// Package embed maps chunk and query text to fixed-length vectors.
// Providers are selected by embedding model id; all chunks sharing a
// namespace must be embedded with the same model, and dimension
// mismatches are surfaced as ModelMismatchError rather than silently
// corrupting the index.
package embed

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Provider defines the interface for embedding backends.
// Batched and per-item calls must produce identical vectors for
// identical text; batching is purely an optimization.
type Provider interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Name returns the provider name.
	Name() string

	// Model returns the model id this provider was configured with.
	Model() string

	// Dimension returns the embedding dimension for the model.
	Dimension() int

	// MaxBatchSize returns the maximum number of texts per batch.
	MaxBatchSize() int
}

// ModelMismatchError reports that a namespace's ingested dimensionality
// differs from the active model's output dimensionality. It is a data
// integrity error: fatal for the namespace, never retried.
type ModelMismatchError struct {
	Namespace string
	Model     string
	Want      int // dimension already in the namespace
	Got       int // dimension the active model produces
}

func (e *ModelMismatchError) Error() string {
	return fmt.Sprintf("model mismatch in namespace %q: index dimension %d, model %s produces %d",
		e.Namespace, e.Want, e.Model, e.Got)
}

// Registry maps embedding model ids to provider constructors.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]func() (Provider, error)
}

// NewRegistry creates an empty embedding registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]func() (Provider, error))}
}

// Register adds a provider factory for a model id.
func (r *Registry) Register(model string, factory func() (Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(model)] = factory
}

// Get constructs the provider for a model id.
func (r *Registry) Get(model string) (Provider, error) {
	r.mu.RLock()
	factory, ok := r.factories[strings.ToLower(model)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown embedding model %q (have %s)", model, r.models())
	}
	return factory()
}

func (r *Registry) models() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return strings.Join(ids, ", ")
}
