package llm

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/resumelab/ragsweep/internal/observability"
	"github.com/resumelab/ragsweep/internal/retry"
)

// OpenAIClient implements Client using the OpenAI chat completions API.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	retry   retry.Config
	metrics *observability.Metrics
}

// OpenAIOption configures an OpenAIClient.
type OpenAIOption func(*OpenAIClient)

// WithOpenAIMetrics records request counts and latency.
func WithOpenAIMetrics(m *observability.Metrics) OpenAIOption {
	return func(c *OpenAIClient) { c.metrics = m }
}

// WithOpenAIRetry overrides the default retry policy.
func WithOpenAIRetry(cfg retry.Config) OpenAIOption {
	return func(c *OpenAIClient) { c.retry = cfg }
}

// NewOpenAIClient creates a chat client for the given model.
func NewOpenAIClient(apiKey, model string, opts ...OpenAIOption) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	c := &OpenAIClient{
		client: openai.NewClient(apiKey),
		model:  model,
		retry:  retry.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *OpenAIClient) Name() string  { return "openai" }
func (c *OpenAIClient) Model() string { return c.model }

// Chat runs a completion, retrying transient API failures.
func (c *OpenAIClient) Chat(ctx context.Context, req *Request) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	params := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: req.Temperature,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = req.MaxTokens
	}

	start := time.Now()
	resp, err := retry.DoWithValue(ctx, c.retry, func() (openai.ChatCompletionResponse, error) {
		resp, err := c.client.CreateChatCompletion(ctx, params)
		if err != nil {
			if apiErr, ok := err.(*openai.APIError); ok && !retry.RetryableStatus(apiErr.HTTPStatusCode) {
				return resp, retry.Permanent(err)
			}
			return resp, err
		}
		return resp, nil
	})
	if c.metrics != nil {
		c.metrics.ObserveChat(c.Name(), c.model, time.Since(start), err)
	}
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai chat completion: no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}
