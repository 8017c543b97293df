package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/resumelab/ragsweep/internal/observability"
	"github.com/resumelab/ragsweep/internal/retry"
)

const defaultAnthropicMaxTokens = 1024

// AnthropicClient implements Client using Anthropic's Messages API.
type AnthropicClient struct {
	client  anthropic.Client
	model   string
	retry   retry.Config
	metrics *observability.Metrics
}

// AnthropicOption configures an AnthropicClient.
type AnthropicOption func(*AnthropicClient)

// WithAnthropicMetrics records request counts and latency.
func WithAnthropicMetrics(m *observability.Metrics) AnthropicOption {
	return func(c *AnthropicClient) { c.metrics = m }
}

// NewAnthropicClient creates a chat client for the given model.
func NewAnthropicClient(apiKey, model string, opts ...AnthropicOption) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	c := &AnthropicClient{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		retry:  retry.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *AnthropicClient) Name() string  { return "anthropic" }
func (c *AnthropicClient) Model() string { return c.model }

// Chat runs a completion and concatenates the text blocks of the reply.
func (c *AnthropicClient) Chat(ctx context.Context, req *Request) (string, error) {
	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		block := anthropic.NewTextBlock(m.Content)
		switch m.Role {
		case "assistant":
			messages = append(messages, anthropic.NewAssistantMessage(block))
		default:
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(req.Temperature))
	}

	start := time.Now()
	msg, err := retry.DoWithValue(ctx, c.retry, func() (*anthropic.Message, error) {
		msg, err := c.client.Messages.New(ctx, params)
		if err != nil {
			var apiErr *anthropic.Error
			if errors.As(err, &apiErr) && !retry.RetryableStatus(apiErr.StatusCode) {
				return nil, retry.Permanent(err)
			}
			return nil, err
		}
		return msg, nil
	})
	if c.metrics != nil {
		c.metrics.ObserveChat(c.Name(), c.model, time.Since(start), err)
	}
	if err != nil {
		return "", fmt.Errorf("anthropic message: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}
