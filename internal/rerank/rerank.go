// Package rerank implements second-stage ranking over vector store
// candidates. A reranker may reorder, rescore, or drop candidates but
// never introduces chunks the first stage did not return.
package rerank

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/resumelab/ragsweep/pkg/models"
)

// Reranker reorders retrieval candidates for a query and truncates to
// topK.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []models.ScoredChunk, topK int) ([]models.ScoredChunk, error)
	Name() string
}

// Factory builds a Reranker from variant-independent configuration.
type Factory func() (Reranker, error)

// Registry maps reranker tags to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under tag, replacing any existing one.
func (r *Registry) Register(tag string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[tag] = f
}

// New builds the reranker registered under tag.
func (r *Registry) New(tag string) (Reranker, error) {
	r.mu.RLock()
	f, ok := r.factories[tag]
	r.mu.RUnlock()
	if !ok {
		r.mu.RLock()
		tags := make([]string, 0, len(r.factories))
		for t := range r.factories {
			tags = append(tags, t)
		}
		r.mu.RUnlock()
		sort.Strings(tags)
		return nil, fmt.Errorf("unknown reranker %q (registered: %s)", tag, strings.Join(tags, ", "))
	}
	return f()
}

// truncate cuts candidates to topK, tolerating short slices.
func truncate(candidates []models.ScoredChunk, topK int) []models.ScoredChunk {
	if topK > 0 && topK < len(candidates) {
		return candidates[:topK]
	}
	return candidates
}

// sortByScore orders candidates by score descending, breaking ties by
// the first-stage vector rank so equal scores stay deterministic.
func sortByScore(candidates []models.ScoredChunk) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].VectorRank < candidates[j].VectorRank
	})
}

// None is the passthrough policy: first-stage order, truncated to topK.
type None struct{}

func (None) Name() string { return "none" }

func (None) Rerank(ctx context.Context, query string, candidates []models.ScoredChunk, topK int) ([]models.ScoredChunk, error) {
	return truncate(candidates, topK), nil
}
