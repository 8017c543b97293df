package embed

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/resumelab/ragsweep/internal/observability"
	"github.com/resumelab/ragsweep/internal/retry"
)

// OpenAI implements Provider using OpenAI's embedding models.
type OpenAI struct {
	client  *openai.Client
	model   string
	retry   retry.Config
	metrics *observability.Metrics
}

var _ Provider = (*OpenAI)(nil)

// OpenAIConfig contains configuration for the OpenAI provider.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // optional custom base URL
	Model   string // text-embedding-3-small or text-embedding-3-large

	// Metrics, when set, records request counts and latency.
	Metrics *observability.Metrics
}

// NewOpenAI creates a new OpenAI embedding provider.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return &OpenAI{
		client:  openai.NewClientWithConfig(config),
		model:   cfg.Model,
		retry:   retry.DefaultConfig(),
		metrics: cfg.Metrics,
	}, nil
}

// Name returns the provider name.
func (p *OpenAI) Name() string {
	return "openai"
}

// Model returns the configured model id.
func (p *OpenAI) Model() string {
	return p.model
}

// Dimension returns the embedding dimension for the configured model.
func (p *OpenAI) Dimension() int {
	switch p.model {
	case "text-embedding-3-large":
		return 3072
	case "text-embedding-3-small", "text-embedding-ada-002":
		return 1536
	default:
		return 1536
	}
}

// MaxBatchSize returns the maximum number of texts per batch.
func (p *OpenAI) MaxBatchSize() int {
	return 2048
}

// Embed generates an embedding for a single text.
func (p *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple texts.
func (p *OpenAI) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	start := time.Now()
	resp, err := retry.DoWithValue(ctx, p.retry, func() (openai.EmbeddingResponse, error) {
		return p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: texts,
			Model: openai.EmbeddingModel(p.model),
		})
	})
	if p.metrics != nil {
		p.metrics.ObserveEmbedding(p.model, time.Since(start), err)
	}
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}

	results := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(results) {
			return nil, fmt.Errorf("embedding response index %d out of range", data.Index)
		}
		results[data.Index] = data.Embedding
	}
	return results, nil
}
