// Package ingest writes a parsed document into the namespace owned by a
// variant: chunk with the variant's strategy, embed with the variant's
// model, upsert into the vector store, and record the namespace in
// history.
package ingest

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/resumelab/ragsweep/internal/chunker"
	"github.com/resumelab/ragsweep/internal/embed"
	"github.com/resumelab/ragsweep/internal/namespace"
	"github.com/resumelab/ragsweep/internal/observability"
	"github.com/resumelab/ragsweep/internal/vectorstore"
	"github.com/resumelab/ragsweep/pkg/models"
)

// PartialError reports an ingest that wrote some chunks before failing.
// Chunk IDs are stable, so re-running the same ingest overwrites the
// written chunks instead of duplicating them.
type PartialError struct {
	Namespace  string
	WrittenIDs []string
	Total      int
	Err        error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("partial ingest into %s: wrote %d of %d chunks: %v",
		e.Namespace, len(e.WrittenIDs), e.Total, e.Err)
}

func (e *PartialError) Unwrap() error { return e.Err }

// ChunkSizes carries per-strategy chunking parameters. Zero values fall
// back to the strategy defaults.
type ChunkSizes struct {
	Recursive chunker.Config
	Token     chunker.Config
}

// Result summarizes a completed ingest.
type Result struct {
	Namespace  string
	ChunkCount int
	Dimension  int
}

// Writer runs the ingest pipeline.
type Writer struct {
	store     vectorstore.Store
	history   *namespace.Store
	embedders *embed.Registry
	sizes     ChunkSizes
	logger    *observability.Logger
	metrics   *observability.Metrics
	tracer    *observability.Tracer
}

// Option configures a Writer.
type Option func(*Writer)

// WithLogger sets the logger.
func WithLogger(l *observability.Logger) Option {
	return func(w *Writer) { w.logger = l }
}

// WithMetrics counts ingested chunks.
func WithMetrics(m *observability.Metrics) Option {
	return func(w *Writer) { w.metrics = m }
}

// WithTracer emits a span per ingest.
func WithTracer(t *observability.Tracer) Option {
	return func(w *Writer) { w.tracer = t }
}

// WithChunkSizes overrides the default chunking parameters.
func WithChunkSizes(sizes ChunkSizes) Option {
	return func(w *Writer) { w.sizes = sizes }
}

// NewWriter creates an ingest Writer.
func NewWriter(store vectorstore.Store, history *namespace.Store, embedders *embed.Registry, opts ...Option) *Writer {
	w := &Writer{
		store:     store,
		history:   history,
		embedders: embedders,
		logger:    observability.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Ingest writes doc into the namespace resolved from v.
//
// The target namespace's stored dimension is checked against the
// variant's embedding model before any write; a mismatch fails with
// *embed.ModelMismatchError and writes nothing. A failure mid-upsert
// returns *PartialError carrying the chunk IDs that made it in.
func (w *Writer) Ingest(ctx context.Context, doc *models.Document, v models.Variant) (result *Result, retErr error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	if doc.ParserBackend != "" && doc.ParserBackend != v.Parser {
		return nil, fmt.Errorf("document was parsed with %q but variant expects %q", doc.ParserBackend, v.Parser)
	}

	ns := namespace.Resolve(v)
	if w.tracer != nil {
		var span trace.Span
		ctx, span = w.tracer.Start(ctx, "ingest",
			attribute.String("namespace", ns),
			attribute.String("document", doc.Name))
		defer func() { observability.EndSpan(span, retErr) }()
	}

	provider, err := w.embedders.Get(v.EmbeddingModel)
	if err != nil {
		return nil, err
	}

	stats, err := w.store.Stats(ctx, ns)
	if err != nil {
		return nil, fmt.Errorf("namespace stats: %w", err)
	}
	if stats.Dimension != 0 && stats.Dimension != provider.Dimension() {
		return nil, &embed.ModelMismatchError{
			Namespace: ns,
			Model:     provider.Model(),
			Want:      stats.Dimension,
			Got:       provider.Dimension(),
		}
	}

	chunks, err := w.chunk(doc, v)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		w.logger.Warn(ctx, "document produced no chunks", "document", doc.Name, "namespace", ns)
		if err := w.history.Record(ns, v); err != nil {
			return nil, err
		}
		return &Result{Namespace: ns, Dimension: provider.Dimension()}, nil
	}

	if err := w.embedChunks(ctx, provider, chunks); err != nil {
		return nil, err
	}

	items := make([]vectorstore.Item, len(chunks))
	for i := range chunks {
		items[i] = vectorstore.Item{Chunk: &chunks[i]}
	}
	written, err := w.store.Upsert(ctx, ns, items)
	if w.metrics != nil && len(written) > 0 {
		w.metrics.ChunksIngested.WithLabelValues(ns).Add(float64(len(written)))
	}
	if err != nil {
		return nil, &PartialError{Namespace: ns, WrittenIDs: written, Total: len(chunks), Err: err}
	}

	if err := w.history.Record(ns, v); err != nil {
		return nil, err
	}

	w.logger.Info(ctx, "document ingested",
		"document", doc.Name,
		"namespace", ns,
		"chunks", len(chunks),
		"model", provider.Model())

	return &Result{
		Namespace:  ns,
		ChunkCount: len(chunks),
		Dimension:  provider.Dimension(),
	}, nil
}

func (w *Writer) chunk(doc *models.Document, v models.Variant) ([]models.Chunk, error) {
	cfg := w.sizes.Recursive
	if v.Chunking == "token" {
		cfg = w.sizes.Token
	}
	c, err := chunker.New(v.Chunking, cfg)
	if err != nil {
		return nil, err
	}
	chunks, err := c.Chunk(doc)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", doc.Name, err)
	}
	for i := range chunks {
		chunks[i].Metadata.Parser = v.Parser
		chunks[i].Metadata.Chunking = v.Chunking
		chunks[i].Metadata.Embedding = v.EmbeddingModel
	}
	return chunks, nil
}

// embedChunks fills in embeddings batch by batch, honoring the
// provider's batch limit.
func (w *Writer) embedChunks(ctx context.Context, provider embed.Provider, chunks []models.Chunk) error {
	batchSize := provider.MaxBatchSize()
	if batchSize <= 0 {
		batchSize = 1
	}
	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, end-start)
		for i := start; i < end; i++ {
			texts[i-start] = chunks[i].Text
		}
		vectors, err := provider.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch [%d:%d]: %w", start, end, err)
		}
		if len(vectors) != len(texts) {
			return fmt.Errorf("embed batch [%d:%d]: got %d vectors for %d texts", start, end, len(vectors), len(texts))
		}
		for i := start; i < end; i++ {
			chunks[i].Embedding = vectors[i-start]
		}
	}
	return nil
}
