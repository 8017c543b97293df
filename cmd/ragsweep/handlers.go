// handlers.go implements the command handlers: each run* function wires
// an app and drives one pipeline operation.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/resumelab/ragsweep/internal/eval"
	"github.com/resumelab/ragsweep/internal/namespace"
	"github.com/resumelab/ragsweep/internal/sweep"
	"github.com/resumelab/ragsweep/pkg/models"
)

func (f variantFlags) variant() models.Variant {
	return models.Variant{
		Parser:         f.parser,
		Chunking:       f.chunking,
		EmbeddingModel: f.embedding,
		Reranker:       f.reranker,
		Prompt:         f.prompt,
		K:              f.k,
	}
}

// =============================================================================
// Ingest
// =============================================================================

func runIngest(ctx context.Context, configPath, resume string, flags variantFlags) error {
	v := flags.variant()
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close(ctx)
	if err := a.validateVariant(v); err != nil {
		return err
	}

	doc, err := a.parseDocument(ctx, resume, v.Parser)
	if err != nil {
		return err
	}
	result, err := a.writer.Ingest(ctx, doc, v)
	if err != nil {
		return err
	}

	fmt.Printf("Ingested %s: %d chunks into %s (dimension %d)\n",
		doc.Name, result.ChunkCount, result.Namespace, result.Dimension)
	return nil
}

// =============================================================================
// Ask
// =============================================================================

func runAsk(ctx context.Context, configPath, question string, flags variantFlags) error {
	v := flags.variant()
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close(ctx)
	if err := a.validateVariant(v); err != nil {
		return err
	}

	generator, err := a.generatorFor(v)
	if err != nil {
		return err
	}
	ns := namespace.Resolve(v)
	answer, err := generator.Generate(ctx, ns, question, v)
	if err != nil {
		return err
	}

	fmt.Println(answer.Text)
	fmt.Printf("\n--- %d context chunks from %s ---\n", len(answer.Context), ns)
	for _, c := range answer.Context {
		fmt.Printf("[%.3f] %s\n", c.Score, c.Chunk.ID)
	}
	return nil
}

// =============================================================================
// Eval
// =============================================================================

func runEval(ctx context.Context, configPath, resume, gold, label, output string, flags variantFlags) error {
	v := flags.variant()
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close(ctx)
	if err := a.validateVariant(v); err != nil {
		return err
	}

	goldSet, err := eval.LoadGoldSet(gold)
	if err != nil {
		return err
	}
	if label == "" {
		label = v.Key()
	}

	pipeline := &appPipeline{app: a, resume: resume}
	ns, err := pipeline.ensureIngested(ctx, v)
	if err != nil {
		return err
	}

	evaluator, err := a.evaluatorFor(v)
	if err != nil {
		return err
	}
	run, err := evaluator.Evaluate(ctx, ns, v, goldSet, label)
	if err != nil {
		return err
	}

	printRun(run)
	if output != "" {
		if err := writeJSON(output, run); err != nil {
			return err
		}
		fmt.Printf("\nRun written to %s\n", output)
	}
	return nil
}

// =============================================================================
// Sweep
// =============================================================================

type sweepArgs struct {
	resume      string
	gold        string
	labelPrefix string
	output      string
	sortMetric  string
	concurrency int

	parsers    []string
	chunkings  []string
	embeddings []string
	rerankers  []string
	prompts    []string
	ks         []int
}

func runSweep(ctx context.Context, configPath string, args sweepArgs) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	grid := sweep.Grid{
		Parsers:         args.parsers,
		Chunkings:       args.chunkings,
		EmbeddingModels: args.embeddings,
		Rerankers:       args.rerankers,
		Prompts:         args.prompts,
		Ks:              args.ks,
	}
	variants := grid.Expand()
	for _, v := range variants {
		if err := a.validateVariant(v); err != nil {
			return err
		}
	}

	goldSet, err := eval.LoadGoldSet(args.gold)
	if err != nil {
		return err
	}

	runner := sweep.New(&appPipeline{app: a, resume: args.resume}, a.history,
		sweep.Config{Concurrency: args.concurrency, SortMetric: args.sortMetric},
		sweep.WithLogger(a.logger),
		sweep.WithMetrics(a.metrics))

	doc, err := a.parseDocument(ctx, args.resume, variants[0].Parser)
	if err != nil {
		return err
	}
	card, err := runner.Run(ctx, doc, variants, goldSet, args.labelPrefix)
	if err != nil {
		return err
	}

	printScorecard(card, args.sortMetric)
	if args.output != "" {
		if err := writeJSON(args.output, card); err != nil {
			return err
		}
		fmt.Printf("\nScorecard written to %s\n", args.output)
	}
	return nil
}

// appPipeline adapts the app's component graph to sweep.Pipeline. Each
// cell re-parses with its own variant's parser, since the parser is part
// of what the sweep varies.
type appPipeline struct {
	app    *app
	resume string
}

func (p *appPipeline) Ingest(ctx context.Context, doc *models.Document, v models.Variant) (string, error) {
	if doc == nil || doc.ParserBackend != v.Parser {
		var err error
		doc, err = p.app.parseDocument(ctx, p.resume, v.Parser)
		if err != nil {
			return "", err
		}
	}
	result, err := p.app.writer.Ingest(ctx, doc, v)
	if err != nil {
		return "", err
	}
	return result.Namespace, nil
}

func (p *appPipeline) Evaluate(ctx context.Context, ns string, v models.Variant, gold *eval.GoldSet, label string) (*eval.EvaluationRun, error) {
	evaluator, err := p.app.evaluatorFor(v)
	if err != nil {
		return nil, err
	}
	return evaluator.Evaluate(ctx, ns, v, gold, label)
}

// ensureIngested ingests the resume unless the namespace history already
// records this exact variant.
func (p *appPipeline) ensureIngested(ctx context.Context, v models.Variant) (string, error) {
	ns := namespace.Resolve(v)
	entry, ok, err := p.app.history.Get(ns)
	if err != nil {
		return "", err
	}
	if ok && entry.Variant.Equal(v) {
		return ns, nil
	}
	return p.Ingest(ctx, nil, v)
}

// =============================================================================
// Namespaces
// =============================================================================

func runNsList(ctx context.Context, configPath string) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	entries, err := a.history.List()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No namespaces recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAMESPACE\tVARIANT\tFIRST USED\tLAST USED")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			e.Namespace, e.Variant.Key(),
			e.FirstUsed.Format("2006-01-02 15:04"),
			e.LastUsed.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func runNsPurge(ctx context.Context, configPath, ns string) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	admin := namespace.NewAdmin(a.store, a.history)
	if err := admin.Purge(ctx, ns); err != nil {
		return err
	}
	fmt.Printf("Purged namespace %s\n", ns)
	return nil
}

// =============================================================================
// Output helpers
// =============================================================================

func printRun(run *eval.EvaluationRun) {
	fmt.Printf("Run %s (namespace %s, gold set %s)\n", run.Label, run.Namespace, run.GoldSetID)
	if run.TraceLink != "" {
		fmt.Printf("Trace: %s\n", run.TraceLink)
	}
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "QUESTION\tSTATUS\t"+metricHeader())
	for _, item := range run.Items {
		if item.Unscored {
			fmt.Fprintf(w, "%s\tunscored (%s)\t\n", item.Question, item.Error)
			continue
		}
		fmt.Fprintf(w, "%s\tscored\t%s\n", item.Question, metricCells(item.Scores))
	}
	w.Flush()

	fmt.Println()
	if run.NoData {
		fmt.Println("Aggregate: no data (all items unscored)")
		return
	}
	fmt.Printf("Aggregate: %s\n", metricCells(run.Aggregate))
}

func printScorecard(card *eval.Scorecard, sortMetric string) {
	fmt.Printf("Scorecard (%d cells, sorted by %s)\n\n", len(card.Rows), sortMetric)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LABEL\tNAMESPACE\t"+metricHeader()+"\tSTATUS")
	for _, row := range card.Rows {
		if row.Error != "" {
			fmt.Fprintf(w, "%s\t%s\t\tfailed: %s\n", row.Label, row.Namespace, row.Error)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\tok\n", row.Label, row.Namespace, metricCells(row.Aggregate))
	}
	w.Flush()
}

func metricHeader() string {
	out := ""
	for i, m := range eval.Metrics {
		if i > 0 {
			out += "\t"
		}
		out += m
	}
	return out
}

func metricCells(scores map[string]float64) string {
	out := ""
	for i, m := range eval.Metrics {
		if i > 0 {
			out += "\t"
		}
		if v, ok := scores[m]; ok {
			out += fmt.Sprintf("%.3f", v)
		} else {
			out += "-"
		}
	}
	return out
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
