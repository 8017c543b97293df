package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/resumelab/ragsweep/internal/retry"
	"github.com/resumelab/ragsweep/pkg/models"
)

// Cohere reranks using the hosted Cohere rerank API.
type Cohere struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	retry   retry.Config
}

// CohereConfig contains configuration for the Cohere reranker.
type CohereConfig struct {
	APIKey  string
	BaseURL string // default: https://api.cohere.com
	Model   string // default: rerank-english-v3.0
}

// NewCohere creates a Cohere reranker.
func NewCohere(cfg CohereConfig) (*Cohere, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("cohere api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.cohere.com"
	}
	if cfg.Model == "" {
		cfg.Model = "rerank-english-v3.0"
	}
	return &Cohere{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  &http.Client{Timeout: 60 * time.Second},
		retry:   retry.DefaultConfig(),
	}, nil
}

func (r *Cohere) Name() string { return "cohere" }

type cohereRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n,omitempty"`
}

type cohereResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float32 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank calls /v1/rerank and maps the returned indices back onto the
// original candidates. Indices outside the candidate range are dropped.
func (r *Cohere) Rerank(ctx context.Context, query string, candidates []models.ScoredChunk, topK int) ([]models.ScoredChunk, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	documents := make([]string, len(candidates))
	for i, c := range candidates {
		documents[i] = c.Chunk.Text
	}

	result, err := retry.DoWithValue(ctx, r.retry, func() (*cohereResponse, error) {
		return r.rerank(ctx, query, documents, topK)
	})
	if err != nil {
		return nil, fmt.Errorf("cohere rerank: %w", err)
	}

	ranked := make([]models.ScoredChunk, 0, len(result.Results))
	for _, res := range result.Results {
		if res.Index < 0 || res.Index >= len(candidates) {
			continue
		}
		c := candidates[res.Index]
		c.Score = res.RelevanceScore
		ranked = append(ranked, c)
	}
	return truncate(ranked, topK), nil
}

func (r *Cohere) rerank(ctx context.Context, query string, documents []string, topN int) (*cohereResponse, error) {
	body, err := json.Marshal(cohereRequest{
		Model:     r.model,
		Query:     query,
		Documents: documents,
		TopN:      topN,
	})
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, retry.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cohere request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("cohere returned status %d: %s", resp.StatusCode, msg)
		if !retry.RetryableStatus(resp.StatusCode) {
			return nil, retry.Permanent(err)
		}
		return nil, err
	}

	var result cohereResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}
