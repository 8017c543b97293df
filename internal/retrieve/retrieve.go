// Package retrieve runs the two-stage query path: embed the query,
// fetch nearest neighbors from a single namespace, then hand the
// candidates to the variant's reranker.
package retrieve

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/resumelab/ragsweep/internal/embed"
	"github.com/resumelab/ragsweep/internal/observability"
	"github.com/resumelab/ragsweep/internal/rerank"
	"github.com/resumelab/ragsweep/internal/vectorstore"
	"github.com/resumelab/ragsweep/pkg/models"
)

// minOverFetch is the floor for the first-stage candidate count so the
// reranker always has something to work with, even at small k.
const minOverFetch = 10

// Config tunes the first stage.
type Config struct {
	// OverFetchFactor multiplies k to size the first-stage fetch.
	// Values below 1 are treated as 1.
	OverFetchFactor int
}

// Retriever answers queries against one namespace.
type Retriever struct {
	embedder embed.Provider
	store    vectorstore.Store
	reranker rerank.Reranker
	config   Config
	logger   *observability.Logger
	metrics  *observability.Metrics
	tracer   *observability.Tracer
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger sets the logger.
func WithLogger(l *observability.Logger) Option {
	return func(r *Retriever) { r.logger = l }
}

// WithMetrics records retrieval latency.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Retriever) { r.metrics = m }
}

// WithTracer emits a span per query.
func WithTracer(t *observability.Tracer) Option {
	return func(r *Retriever) { r.tracer = t }
}

// New creates a Retriever. The reranker defaults to passthrough when nil.
func New(embedder embed.Provider, store vectorstore.Store, reranker rerank.Reranker, config Config, opts ...Option) *Retriever {
	if reranker == nil {
		reranker = rerank.None{}
	}
	if config.OverFetchFactor < 1 {
		config.OverFetchFactor = 1
	}
	r := &Retriever{
		embedder: embedder,
		store:    store,
		reranker: reranker,
		config:   config,
		logger:   observability.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve returns the top k chunks for query from ns.
//
// Before querying, the namespace's stored dimension is checked against
// the active embedding model; a mismatch means the namespace was built
// with a different model and is returned as *embed.ModelMismatchError.
// An empty namespace yields an empty result, not an error.
func (r *Retriever) Retrieve(ctx context.Context, ns, query string, k int) (result *models.RetrievalResult, retErr error) {
	start := time.Now()
	if r.tracer != nil {
		var span trace.Span
		ctx, span = r.tracer.Start(ctx, "retrieve",
			attribute.String("namespace", ns),
			attribute.String("reranker", r.reranker.Name()))
		defer func() { observability.EndSpan(span, retErr) }()
	}

	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	stats, err := r.store.Stats(ctx, ns)
	if err != nil {
		return nil, fmt.Errorf("namespace stats: %w", err)
	}
	if stats.VectorCount == 0 {
		r.logger.Warn(ctx, "retrieving from empty namespace", "namespace", ns)
		return &models.RetrievalResult{Query: query, Namespace: ns, QueryTime: time.Since(start)}, nil
	}
	if stats.Dimension != 0 && stats.Dimension != r.embedder.Dimension() {
		return nil, &embed.ModelMismatchError{
			Namespace: ns,
			Model:     r.embedder.Model(),
			Want:      stats.Dimension,
			Got:       r.embedder.Dimension(),
		}
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	fetchK := k * r.config.OverFetchFactor
	if fetchK < minOverFetch {
		fetchK = minOverFetch
	}

	candidates, err := r.store.Query(ctx, ns, vector, fetchK)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}

	scored := make([]models.ScoredChunk, len(candidates))
	for i, c := range candidates {
		scored[i] = models.ScoredChunk{Chunk: c.Chunk, Score: c.Score, VectorRank: i}
	}

	ranked, err := r.reranker.Rerank(ctx, query, scored, k)
	if err != nil {
		return nil, fmt.Errorf("rerank (%s): %w", r.reranker.Name(), err)
	}

	elapsed := time.Since(start)
	if r.metrics != nil {
		r.metrics.RetrievalDuration.WithLabelValues(r.reranker.Name()).Observe(elapsed.Seconds())
	}
	r.logger.Debug(ctx, "retrieval complete",
		"namespace", ns,
		"candidates", len(scored),
		"returned", len(ranked),
		"duration", elapsed)

	return &models.RetrievalResult{
		Query:     query,
		Namespace: ns,
		Chunks:    ranked,
		QueryTime: elapsed,
	}, nil
}
