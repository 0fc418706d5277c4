package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/filingpulse/filingpulse/internal/domain"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-sonnet-4-20250514"

// DefaultMaxTokens caps one completion.
const DefaultMaxTokens = 8192

// AnthropicClient generates filing summaries through the Anthropic Messages
// API.
type AnthropicClient struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// Option configures the AnthropicClient.
type Option func(*AnthropicClient)

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(c *AnthropicClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithMaxTokens overrides the completion token cap.
func WithMaxTokens(maxTokens int) Option {
	return func(c *AnthropicClient) {
		if maxTokens > 0 {
			c.maxTokens = int64(maxTokens)
		}
	}
}

// NewAnthropicClient creates a client authenticated with the given API key.
func NewAnthropicClient(apiKey string, opts ...Option) *AnthropicClient {
	c := &AnthropicClient{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     DefaultModel,
		maxTokens: DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate runs one completion. Context cancellation aborts the underlying
// HTTP request, which the worker's retry helper relies on for shutdown.
func (c *AnthropicClient) Generate(ctx context.Context, systemPrompt, userPrompt string) (*domain.Generation, error) {
	if userPrompt == "" {
		return nil, fmt.Errorf("user prompt is empty")
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	start := time.Now()
	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic message call failed: %w", err)
	}
	elapsed := time.Since(start)

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("anthropic returned no text content")
	}

	return &domain.Generation{
		Text:         text.String(),
		Model:        string(resp.Model),
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
		Duration:     elapsed,
		StopReason:   string(resp.StopReason),
	}, nil
}
