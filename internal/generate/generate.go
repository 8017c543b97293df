// Package generate produces answers from retrieved context: retrieve,
// render the variant's prompt, call the chat model.
package generate

import (
	"context"
	"fmt"
	"strings"

	"github.com/resumelab/ragsweep/internal/llm"
	"github.com/resumelab/ragsweep/internal/observability"
	"github.com/resumelab/ragsweep/pkg/models"
)

// Retriever is the slice of the retrieval pipeline the generator needs.
type Retriever interface {
	Retrieve(ctx context.Context, ns, query string, k int) (*models.RetrievalResult, error)
}

// Answer is a generated answer plus the exact context it was grounded
// on. Context carries the retrieved chunks verbatim so the judge scores
// what the model actually saw.
type Answer struct {
	Query     string
	Namespace string
	Text      string
	Context   []models.ScoredChunk
}

// ContextText returns the context string as it appeared in the prompt.
func (a *Answer) ContextText() string {
	return joinContext(a.Context)
}

// Generator runs the full answer path for one variant.
type Generator struct {
	retriever Retriever
	client    llm.Client
	logger    *observability.Logger
}

// New creates a Generator.
func New(retriever Retriever, client llm.Client, logger *observability.Logger) *Generator {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Generator{retriever: retriever, client: client, logger: logger}
}

// Generate answers query from ns using the variant's prompt template and
// k. An empty namespace still generates: the model sees an empty context
// and the prompt's refusal instruction does the rest.
func (g *Generator) Generate(ctx context.Context, ns, query string, v models.Variant) (*Answer, error) {
	res, err := g.retriever.Retrieve(ctx, ns, query, v.K)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	prompt, err := RenderPrompt(v.Prompt, joinContext(res.Chunks), query)
	if err != nil {
		return nil, err
	}

	text, err := g.client.Chat(ctx, &llm.Request{
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	g.logger.Debug(ctx, "answer generated",
		"namespace", ns,
		"prompt", v.Prompt,
		"context_chunks", len(res.Chunks))

	return &Answer{
		Query:     query,
		Namespace: ns,
		Text:      text,
		Context:   res.Chunks,
	}, nil
}

func joinContext(chunks []models.ScoredChunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Chunk.Text
	}
	return strings.Join(parts, "\n\n")
}
