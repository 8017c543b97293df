// Package sweep runs a grid of pipeline variants against one document
// and gold set, producing a comparison scorecard. Cells are independent
// and run concurrently up to a bound; a failing cell becomes a failed
// row instead of aborting the sweep.
package sweep

import (
	"context"
	"fmt"
	"sync"

	"github.com/resumelab/ragsweep/internal/eval"
	"github.com/resumelab/ragsweep/internal/namespace"
	"github.com/resumelab/ragsweep/internal/observability"
	"github.com/resumelab/ragsweep/pkg/models"
)

// Grid enumerates variant fields. Empty dimensions default to a single
// sensible value so a sweep can vary just one axis.
type Grid struct {
	Parsers         []string `yaml:"parsers"`
	Chunkings       []string `yaml:"chunkings"`
	EmbeddingModels []string `yaml:"embedding_models"`
	Rerankers       []string `yaml:"rerankers"`
	Prompts         []string `yaml:"prompts"`
	Ks              []int    `yaml:"ks"`
}

// Expand returns the cross-product of all dimensions in deterministic
// order.
func (g Grid) Expand() []models.Variant {
	parsers := defaulted(g.Parsers, "baseline")
	chunkings := defaulted(g.Chunkings, "recursive")
	embeddings := defaulted(g.EmbeddingModels, "text-embedding-3-small")
	rerankers := defaulted(g.Rerankers, "none")
	prompts := defaulted(g.Prompts, "baseline")
	ks := g.Ks
	if len(ks) == 0 {
		ks = []int{5}
	}

	var out []models.Variant
	for _, p := range parsers {
		for _, c := range chunkings {
			for _, e := range embeddings {
				for _, r := range rerankers {
					for _, pr := range prompts {
						for _, k := range ks {
							out = append(out, models.Variant{
								Parser:         p,
								Chunking:       c,
								EmbeddingModel: e,
								Reranker:       r,
								Prompt:         pr,
								K:              k,
							})
						}
					}
				}
			}
		}
	}
	return out
}

func defaulted(values []string, fallback string) []string {
	if len(values) == 0 {
		return []string{fallback}
	}
	return values
}

// Pipeline is the per-cell work the runner drives. Implementations wire
// the variant-specific embedder, reranker, and prompt underneath.
type Pipeline interface {
	// Ingest writes doc into the variant's namespace and returns it.
	Ingest(ctx context.Context, doc *models.Document, v models.Variant) (string, error)

	// Evaluate scores the variant against gold under the given label.
	Evaluate(ctx context.Context, ns string, v models.Variant, gold *eval.GoldSet, label string) (*eval.EvaluationRun, error)
}

// Config tunes the runner.
type Config struct {
	// Concurrency bounds the number of cells in flight. Values below 1
	// run cells sequentially.
	Concurrency int

	// SortMetric orders the final scorecard. Defaults to faithfulness.
	SortMetric string
}

// Runner executes sweeps.
type Runner struct {
	pipeline Pipeline
	history  *namespace.Store
	config   Config
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(l *observability.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithMetrics counts cell outcomes.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// New creates a Runner.
func New(pipeline Pipeline, history *namespace.Store, config Config, opts ...Option) *Runner {
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	if config.SortMetric == "" {
		config.SortMetric = eval.MetricFaithfulness
	}
	r := &Runner{
		pipeline: pipeline,
		history:  history,
		config:   config,
		logger:   observability.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run evaluates every variant and returns one scorecard row per cell,
// sorted by the configured metric. Rows are attributed by cell index,
// so concurrent completion order never mixes up results. The error is
// nil even when individual cells fail; inspect row.Error.
func (r *Runner) Run(ctx context.Context, doc *models.Document, variants []models.Variant, gold *eval.GoldSet, labelPrefix string) (*eval.Scorecard, error) {
	if len(variants) == 0 {
		return nil, fmt.Errorf("sweep has no variants")
	}

	rows := make([]eval.ScorecardRow, len(variants))
	sem := make(chan struct{}, r.config.Concurrency)
	var wg sync.WaitGroup

	for i, v := range variants {
		wg.Add(1)
		go func(i int, v models.Variant) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			rows[i] = r.runCell(ctx, doc, v, gold, labelPrefix)
		}(i, v)
	}
	wg.Wait()

	card := &eval.Scorecard{Rows: rows}
	card.SortBy(r.config.SortMetric)
	return card, nil
}

func (r *Runner) runCell(ctx context.Context, doc *models.Document, v models.Variant, gold *eval.GoldSet, labelPrefix string) eval.ScorecardRow {
	label := CellLabel(labelPrefix, v)
	ns := namespace.Resolve(v)
	row := eval.ScorecardRow{Label: label, Variant: v.Key(), Namespace: ns}

	ingested, err := r.ensureIngested(ctx, doc, v, ns)
	if err != nil {
		r.countCell("failed")
		r.logger.Error(ctx, "sweep cell ingest failed",
			"label", label, "namespace", ns, "error", err)
		row.Error = fmt.Sprintf("ingest into %s: %v", ns, err)
		return row
	}
	if !ingested {
		r.logger.Debug(ctx, "namespace already ingested, skipping",
			"label", label, "namespace", ns)
	}

	run, err := r.pipeline.Evaluate(ctx, ns, v, gold, label)
	if err != nil {
		r.countCell("failed")
		r.logger.Error(ctx, "sweep cell evaluation failed",
			"label", label, "namespace", ns, "error", err)
		row.Error = fmt.Sprintf("evaluate %s: %v", ns, err)
		return row
	}

	r.countCell("scored")
	return eval.RowForRun(run)
}

// ensureIngested ingests doc unless history already records this exact
// variant for the namespace. Returns false when ingest was skipped.
func (r *Runner) ensureIngested(ctx context.Context, doc *models.Document, v models.Variant, ns string) (bool, error) {
	if r.history != nil {
		entry, ok, err := r.history.Get(ns)
		if err != nil {
			return false, err
		}
		if ok && entry.Variant.Equal(v) {
			r.countCell("skipped")
			return false, nil
		}
	}
	if _, err := r.pipeline.Ingest(ctx, doc, v); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Runner) countCell(status string) {
	if r.metrics != nil {
		r.metrics.SweepCells.WithLabelValues(status).Inc()
	}
}

// CellLabel derives the per-cell experiment label: prefix plus the
// variant's canonical key, so two cells can never collide.
func CellLabel(prefix string, v models.Variant) string {
	if prefix == "" {
		return v.Key()
	}
	return prefix + "::" + v.Key()
}
