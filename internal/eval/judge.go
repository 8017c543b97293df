package eval

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/resumelab/ragsweep/internal/llm"
)

// Metric names reported by the judge.
const (
	MetricCorrectness  = "correctness"
	MetricFaithfulness = "faithfulness"
	MetricRelevancy    = "relevancy"
	MetricConciseness  = "conciseness"
)

// Metrics lists all judge metrics in report order.
var Metrics = []string{MetricCorrectness, MetricFaithfulness, MetricRelevancy, MetricConciseness}

const judgeSystem = `You grade answers from a question-answering system. ` +
	`Reply with a single number between 0.0 and 1.0 and nothing else.`

// Judge scores answers with an LLM. Each metric is one chat call at
// temperature 0.
type Judge struct {
	client llm.Client
}

// NewJudge creates a Judge on top of client.
func NewJudge(client llm.Client) *Judge {
	return &Judge{client: client}
}

// Correctness grades the answer against the gold reference.
func (j *Judge) Correctness(ctx context.Context, question, answer, reference string) (float64, error) {
	return j.score(ctx, fmt.Sprintf(
		"Question: %s\n\nReference answer: %s\n\nCandidate answer: %s\n\n"+
			"How correct is the candidate answer compared to the reference? 0.0 = wrong, 1.0 = fully correct.",
		question, reference, answer))
}

// Faithfulness grades whether the answer is supported by the retrieved
// context.
func (j *Judge) Faithfulness(ctx context.Context, answer, contextText string) (float64, error) {
	return j.score(ctx, fmt.Sprintf(
		"Context:\n%s\n\nAnswer: %s\n\n"+
			"Is every claim in the answer supported by the context? 0.0 = unsupported, 1.0 = fully supported.",
		contextText, answer))
}

// Relevancy grades whether the answer addresses the question.
func (j *Judge) Relevancy(ctx context.Context, question, answer string) (float64, error) {
	return j.score(ctx, fmt.Sprintf(
		"Question: %s\n\nAnswer: %s\n\n"+
			"Does the answer address the question? 0.0 = off-topic, 1.0 = directly addresses it.",
		question, answer))
}

// Conciseness grades brevity without loss of content.
func (j *Judge) Conciseness(ctx context.Context, question, answer string) (float64, error) {
	return j.score(ctx, fmt.Sprintf(
		"Question: %s\n\nAnswer: %s\n\n"+
			"Is the answer concise without dropping relevant content? 0.0 = rambling, 1.0 = concise.",
		question, answer))
}

func (j *Judge) score(ctx context.Context, prompt string) (float64, error) {
	reply, err := j.client.Chat(ctx, &llm.Request{
		System:      judgeSystem,
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		Temperature: 0,
		MaxTokens:   16,
	})
	if err != nil {
		return 0, err
	}
	return parseScore(reply)
}

var scorePattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// parseScore extracts the first number from a judge reply and clamps it
// to [0, 1]. A reply with no number at all is an error; the caller marks
// the item unscored.
func parseScore(reply string) (float64, error) {
	match := scorePattern.FindString(reply)
	if match == "" {
		return 0, fmt.Errorf("no score in judge reply %q", reply)
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, fmt.Errorf("parse score %q: %w", match, err)
	}
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return v, nil
}
