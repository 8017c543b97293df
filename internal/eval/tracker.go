package eval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/resumelab/ragsweep/internal/retry"
)

// Tracker reports evaluation runs to an external experiment tracking
// service. The returned run ID is attached to the EvaluationRun so the
// hosted experiment can be found later.
type Tracker interface {
	// StartRun registers a run and returns its external ID.
	StartRun(ctx context.Context, name string, metadata map[string]string) (string, error)

	// LogScores attaches aggregate scores to a run.
	LogScores(ctx context.Context, runID string, scores map[string]float64) error

	// Link returns a browsable URL for a run ID.
	Link(runID string) string
}

// NoopTracker satisfies Tracker without a backing service. Runs still
// get unique IDs so local results stay distinguishable.
type NoopTracker struct{}

func (NoopTracker) StartRun(ctx context.Context, name string, metadata map[string]string) (string, error) {
	return uuid.New().String(), nil
}

func (NoopTracker) LogScores(ctx context.Context, runID string, scores map[string]float64) error {
	return nil
}

func (NoopTracker) Link(runID string) string { return "" }

// HTTPTracker talks to a hosted experiment tracking API.
type HTTPTracker struct {
	baseURL string
	apiKey  string
	project string
	client  *http.Client
	retry   retry.Config
}

// TrackerConfig configures the HTTP tracker.
type TrackerConfig struct {
	BaseURL string
	APIKey  string
	Project string
}

// NewHTTPTracker creates a tracker client.
func NewHTTPTracker(cfg TrackerConfig) (*HTTPTracker, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("tracker base url is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("tracker api key is required")
	}
	if cfg.Project == "" {
		cfg.Project = "resume-rag"
	}
	return &HTTPTracker{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		project: cfg.Project,
		client:  &http.Client{Timeout: 30 * time.Second},
		retry:   retry.DefaultConfig(),
	}, nil
}

type startRunRequest struct {
	Name     string            `json:"name"`
	Project  string            `json:"project"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type startRunResponse struct {
	ID string `json:"id"`
}

type logScoresRequest struct {
	Scores map[string]float64 `json:"scores"`
}

// StartRun registers a run under the configured project.
func (t *HTTPTracker) StartRun(ctx context.Context, name string, metadata map[string]string) (string, error) {
	var result startRunResponse
	err := retry.Do(ctx, t.retry, func() error {
		return t.post(ctx, "/api/v1/runs", startRunRequest{
			Name:     name,
			Project:  t.project,
			Metadata: metadata,
		}, &result)
	})
	if err != nil {
		return "", fmt.Errorf("start tracker run: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("tracker returned empty run id")
	}
	return result.ID, nil
}

// LogScores attaches aggregate scores to a run.
func (t *HTTPTracker) LogScores(ctx context.Context, runID string, scores map[string]float64) error {
	err := retry.Do(ctx, t.retry, func() error {
		return t.post(ctx, "/api/v1/runs/"+runID+"/scores", logScoresRequest{Scores: scores}, nil)
	})
	if err != nil {
		return fmt.Errorf("log tracker scores: %w", err)
	}
	return nil
}

// Link returns the run's page in the tracker UI.
func (t *HTTPTracker) Link(runID string) string {
	return fmt.Sprintf("%s/projects/%s/runs/%s", t.baseURL, t.project, runID)
}

func (t *HTTPTracker) post(ctx context.Context, path string, payload, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return retry.Permanent(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("tracker request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("tracker returned status %d: %s", resp.StatusCode, msg)
		if !retry.RetryableStatus(resp.StatusCode) {
			return retry.Permanent(err)
		}
		return err
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
