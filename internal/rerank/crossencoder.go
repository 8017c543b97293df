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

// CrossEncoder reranks with a cross-encoder model (BGE family) served by
// a local scoring service. The service scores (query, passage) pairs in
// one call.
type CrossEncoder struct {
	baseURL string
	model   string
	client  *http.Client
	retry   retry.Config
}

// CrossEncoderConfig contains configuration for the cross-encoder
// reranker.
type CrossEncoderConfig struct {
	BaseURL string // default: http://localhost:8501
	Model   string // default: BAAI/bge-reranker-large
}

// NewCrossEncoder creates a cross-encoder reranker.
func NewCrossEncoder(cfg CrossEncoderConfig) (*CrossEncoder, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8501"
	}
	if cfg.Model == "" {
		cfg.Model = "BAAI/bge-reranker-large"
	}
	return &CrossEncoder{
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		client:  &http.Client{Timeout: 60 * time.Second},
		retry:   retry.DefaultConfig(),
	}, nil
}

func (r *CrossEncoder) Name() string { return "crossencoder" }

type crossEncoderRequest struct {
	Model    string   `json:"model"`
	Query    string   `json:"query"`
	Passages []string `json:"passages"`
}

type crossEncoderResponse struct {
	Scores []float32 `json:"scores"`
}

// Rerank scores every candidate against the query and reorders by score
// descending.
func (r *CrossEncoder) Rerank(ctx context.Context, query string, candidates []models.ScoredChunk, topK int) ([]models.ScoredChunk, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	passages := make([]string, len(candidates))
	for i, c := range candidates {
		passages[i] = c.Chunk.Text
	}

	scores, err := retry.DoWithValue(ctx, r.retry, func() ([]float32, error) {
		return r.score(ctx, query, passages)
	})
	if err != nil {
		return nil, fmt.Errorf("crossencoder rerank: %w", err)
	}
	if len(scores) != len(candidates) {
		return nil, fmt.Errorf("crossencoder returned %d scores for %d passages", len(scores), len(candidates))
	}

	ranked := make([]models.ScoredChunk, len(candidates))
	copy(ranked, candidates)
	for i := range ranked {
		ranked[i].Score = scores[i]
	}
	sortByScore(ranked)
	return truncate(ranked, topK), nil
}

func (r *CrossEncoder) score(ctx context.Context, query string, passages []string) ([]float32, error) {
	body, err := json.Marshal(crossEncoderRequest{
		Model:    r.model,
		Query:    query,
		Passages: passages,
	})
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/score", bytes.NewReader(body))
	if err != nil {
		return nil, retry.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("crossencoder request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("crossencoder returned status %d: %s", resp.StatusCode, msg)
		if !retry.RetryableStatus(resp.StatusCode) {
			return nil, retry.Permanent(err)
		}
		return nil, err
	}

	var result crossEncoderResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return result.Scores, nil
}
