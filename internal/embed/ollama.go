package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/resumelab/ragsweep/internal/observability"
	"github.com/resumelab/ragsweep/internal/retry"
)

// Ollama implements Provider using a local Ollama server, for running
// sweeps without burning hosted-API quota.
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
	retry   retry.Config
	metrics *observability.Metrics
}

var _ Provider = (*Ollama)(nil)

// OllamaConfig contains configuration for the Ollama provider.
type OllamaConfig struct {
	BaseURL string // default: http://localhost:11434
	Model   string // nomic-embed-text, mxbai-embed-large

	// Metrics, when set, records request counts and latency.
	Metrics *observability.Metrics
}

// NewOllama creates a new Ollama embedding provider.
func NewOllama(cfg OllamaConfig) (*Ollama, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "nomic-embed-text"
	}
	return &Ollama{
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		client:  &http.Client{Timeout: 60 * time.Second},
		retry:   retry.DefaultConfig(),
		metrics: cfg.Metrics,
	}, nil
}

// Name returns the provider name.
func (p *Ollama) Name() string {
	return "ollama"
}

// Model returns the configured model id.
func (p *Ollama) Model() string {
	return p.model
}

// Dimension returns the embedding dimension for the configured model.
func (p *Ollama) Dimension() int {
	switch p.model {
	case "mxbai-embed-large":
		return 1024
	case "all-minilm":
		return 384
	default:
		return 768 // nomic-embed-text
	}
}

// MaxBatchSize returns the maximum number of texts per batch.
func (p *Ollama) MaxBatchSize() int {
	return 100
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed generates an embedding for a single text.
func (p *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vector, err := retry.DoWithValue(ctx, p.retry, func() ([]float32, error) {
		return p.embed(ctx, text)
	})
	if p.metrics != nil {
		p.metrics.ObserveEmbedding(p.model, time.Since(start), err)
	}
	return vector, err
}

func (p *Ollama) embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaRequest{Model: p.model, Prompt: text})
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, retry.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, msg)
		if !retry.RetryableStatus(resp.StatusCode) {
			return nil, retry.Permanent(err)
		}
		return nil, err
	}

	var result ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return result.Embedding, nil
}

// EmbedBatch generates embeddings one at a time; the Ollama embeddings
// API has no batch endpoint.
func (p *Ollama) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vector, err := p.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		vectors[i] = vector
	}
	return vectors, nil
}
