// Package eval scores a variant's answers against a gold QA set. For
// each gold item it runs the variant's full answer path, grades the
// result with an LLM judge, and aggregates per-metric means into an
// EvaluationRun reported through an experiment tracker.
package eval

import (
	"context"
	"fmt"
	"time"

	"github.com/resumelab/ragsweep/internal/generate"
	"github.com/resumelab/ragsweep/internal/observability"
	"github.com/resumelab/ragsweep/pkg/models"
)

// Answerer is the slice of the generation pipeline the evaluator drives.
type Answerer interface {
	Generate(ctx context.Context, ns, query string, v models.Variant) (*generate.Answer, error)
}

// ItemResult is the outcome for one gold item.
type ItemResult struct {
	Question  string             `json:"question"`
	Reference string             `json:"reference"`
	Facts     []string           `json:"facts,omitempty"`
	Predicted string             `json:"predicted,omitempty"`
	Scores    map[string]float64 `json:"scores,omitempty"`

	// Unscored marks items where generation or every judge call failed.
	// Unscored items are excluded from aggregates.
	Unscored bool   `json:"unscored,omitempty"`
	Error    string `json:"error,omitempty"`
}

// EvaluationRun is the immutable result of evaluating one variant
// against one gold set.
type EvaluationRun struct {
	Variant   models.Variant     `json:"variant"`
	Namespace string             `json:"namespace"`
	GoldSetID string             `json:"gold_set_id"`
	Label     string             `json:"label"`
	TraceID   string             `json:"trace_id,omitempty"`
	TraceLink string             `json:"trace_link,omitempty"`
	Items     []ItemResult       `json:"items"`
	Aggregate map[string]float64 `json:"aggregate,omitempty"`

	// NoData is set when every item ended unscored; the aggregate is
	// then absent instead of a misleading zero.
	NoData   bool          `json:"no_data,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Evaluator runs gold sets through a configured pipeline.
type Evaluator struct {
	answerer Answerer
	judge    *Judge
	tracker  Tracker
	logger   *observability.Logger
}

// New creates an Evaluator. A nil tracker falls back to NoopTracker.
func New(answerer Answerer, judge *Judge, tracker Tracker, logger *observability.Logger) *Evaluator {
	if tracker == nil {
		tracker = NoopTracker{}
	}
	if logger == nil {
		logger = observability.Nop()
	}
	return &Evaluator{answerer: answerer, judge: judge, tracker: tracker, logger: logger}
}

// Evaluate runs every gold item through the variant's pipeline in order.
// A failing item degrades to unscored and the run continues; the
// returned error covers only run-level failures (tracker registration).
func (e *Evaluator) Evaluate(ctx context.Context, ns string, v models.Variant, gold *GoldSet, label string) (*EvaluationRun, error) {
	start := time.Now()

	traceID, err := e.tracker.StartRun(ctx, label, map[string]string{
		"namespace": ns,
		"gold_set":  gold.ID,
		"variant":   v.Key(),
	})
	if err != nil {
		return nil, fmt.Errorf("register run %q: %w", label, err)
	}

	run := &EvaluationRun{
		Variant:   v,
		Namespace: ns,
		GoldSetID: gold.ID,
		Label:     label,
		TraceID:   traceID,
		TraceLink: e.tracker.Link(traceID),
		Items:     make([]ItemResult, 0, len(gold.Items)),
	}

	for _, item := range gold.Items {
		run.Items = append(run.Items, e.evaluateItem(ctx, ns, v, item))
	}

	run.Aggregate, run.NoData = aggregate(run.Items)
	run.Duration = time.Since(start)

	if !run.NoData {
		if err := e.tracker.LogScores(ctx, traceID, run.Aggregate); err != nil {
			// Scores are in the run already; losing the upload is not
			// worth failing the evaluation.
			e.logger.Warn(ctx, "failed to upload scores to tracker", "run", traceID, "error", err)
		}
	}

	e.logger.Info(ctx, "evaluation complete",
		"label", label,
		"namespace", ns,
		"items", len(run.Items),
		"no_data", run.NoData,
		"duration", run.Duration)

	return run, nil
}

func (e *Evaluator) evaluateItem(ctx context.Context, ns string, v models.Variant, item GoldItem) ItemResult {
	result := ItemResult{Question: item.Question, Reference: item.Answer, Facts: item.Facts}

	answer, err := e.answerer.Generate(ctx, ns, item.Question, v)
	if err != nil {
		e.logger.Warn(ctx, "generation failed, item unscored",
			"question", item.Question, "error", err)
		result.Unscored = true
		result.Error = err.Error()
		return result
	}
	result.Predicted = answer.Text

	scores := make(map[string]float64, len(Metrics))
	contextText := answer.ContextText()
	for _, metric := range Metrics {
		var score float64
		var scoreErr error
		switch metric {
		case MetricCorrectness:
			score, scoreErr = e.judge.Correctness(ctx, item.Question, answer.Text, item.Answer)
		case MetricFaithfulness:
			score, scoreErr = e.judge.Faithfulness(ctx, answer.Text, contextText)
		case MetricRelevancy:
			score, scoreErr = e.judge.Relevancy(ctx, item.Question, answer.Text)
		case MetricConciseness:
			score, scoreErr = e.judge.Conciseness(ctx, item.Question, answer.Text)
		}
		if scoreErr != nil {
			e.logger.Warn(ctx, "judge call failed, metric skipped",
				"question", item.Question, "metric", metric, "error", scoreErr)
			continue
		}
		scores[metric] = score
	}

	if len(scores) == 0 {
		result.Unscored = true
		result.Error = "all judge calls failed"
		return result
	}
	result.Scores = scores
	return result
}

// aggregate computes per-metric means over scored items. The second
// return is true when no item produced any score.
func aggregate(items []ItemResult) (map[string]float64, bool) {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, item := range items {
		if item.Unscored {
			continue
		}
		for metric, score := range item.Scores {
			sums[metric] += score
			counts[metric]++
		}
	}
	if len(sums) == 0 {
		return nil, true
	}
	means := make(map[string]float64, len(sums))
	for metric, sum := range sums {
		means[metric] = sum / float64(counts[metric])
	}
	return means, false
}
