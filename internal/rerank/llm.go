package rerank

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/resumelab/ragsweep/internal/llm"
	"github.com/resumelab/ragsweep/internal/observability"
	"github.com/resumelab/ragsweep/pkg/models"
)

const llmRerankSystem = `You rank text excerpts by relevance to a question. ` +
	`Reply with the excerpt numbers only, comma-separated, most relevant first. ` +
	`Omit excerpts that are not relevant. Reply with nothing else.`

// LLM reranks by asking a chat model to order candidate excerpts.
// Returned chunks are always the original candidates, never model
// output, so provenance fields survive reranking untouched.
type LLM struct {
	client llm.Client
	logger *observability.Logger
}

// NewLLM creates an LLM reranker on top of client.
func NewLLM(client llm.Client, logger *observability.Logger) *LLM {
	if logger == nil {
		logger = observability.Nop()
	}
	return &LLM{client: client, logger: logger}
}

func (r *LLM) Name() string { return "llm" }

// Rerank asks the model to order candidates and maps the answer back to
// the original chunks. An unparseable reply falls back to first-stage
// order rather than failing the query.
func (r *LLM) Rerank(ctx context.Context, query string, candidates []models.ScoredChunk, topK int) ([]models.ScoredChunk, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Question: %s\n\n", query)
	for i, c := range candidates {
		fmt.Fprintf(&sb, "Excerpt %d:\n%s\n\n", i+1, c.Chunk.Text)
	}
	sb.WriteString("Numbers of the relevant excerpts, most relevant first:")

	reply, err := r.client.Chat(ctx, &llm.Request{
		System:      llmRerankSystem,
		Messages:    []llm.Message{{Role: "user", Content: sb.String()}},
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("llm rerank: %w", err)
	}

	order := parseIndexList(reply, len(candidates))
	if len(order) == 0 {
		r.logger.Warn(ctx, "llm reranker returned no usable ranking, keeping first-stage order",
			"reply", reply)
		return truncate(candidates, topK), nil
	}

	ranked := make([]models.ScoredChunk, 0, len(order))
	for rank, idx := range order {
		c := candidates[idx]
		// Rescore so downstream consumers see the new order reflected.
		c.Score = float32(len(order)-rank) / float32(len(order))
		ranked = append(ranked, c)
	}
	return truncate(ranked, topK), nil
}

// parseIndexList extracts 1-based excerpt numbers from a model reply,
// dropping duplicates and anything out of range.
func parseIndexList(reply string, n int) []int {
	fields := strings.FieldsFunc(reply, func(r rune) bool {
		return r < '0' || r > '9'
	})
	seen := make(map[int]bool, n)
	var order []int
	for _, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil || v < 1 || v > n || seen[v] {
			continue
		}
		seen[v] = true
		order = append(order, v-1)
	}
	return order
}
