package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ballotbot-gg/ballotbot/internal/observability"
)

const (
	defaultAnthropicModel     = "claude-3-5-haiku-latest"
	defaultAnthropicMaxTokens = 1024
)

// AnthropicClient completes prompts through the Anthropic messages API.
type AnthropicClient struct {
	client anthropic.Client
	model  string
	opts   Options
	logger *observability.Logger
}

// NewAnthropicClient creates an Anthropic completer.
func NewAnthropicClient(opts Options) *AnthropicClient {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
	}
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(strings.TrimRight(base, "/")))
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" || strings.HasPrefix(model, "gpt-") {
		model = defaultAnthropicModel
	}

	logger := opts.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}

	return &AnthropicClient{
		client: anthropic.NewClient(reqOpts...),
		model:  model,
		opts:   opts,
		logger: logger.WithComponent("llm.anthropic"),
	}
}

// Complete sends one message exchange.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (string, error) {
	text, err := retryWithBackoff(ctx, c.opts.Retry, c.logger, func(ctx context.Context) (string, error) {
		attemptCtx, cancel := attemptContext(ctx, c.opts.Timeout)
		defer cancel()
		return c.complete(attemptCtx, req)
	})
	if err != nil {
		return "", fmt.Errorf("anthropic completion: %w", err)
	}
	return text, nil
}

func (c *AnthropicClient) complete(ctx context.Context, req Request) (string, error) {
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   maxTokens,
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt))},
		Temperature: anthropic.Float(req.Temperature),
	}
	if strings.TrimSpace(req.System) != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", &StatusError{Status: apiErr.StatusCode, Err: err}
		}
		return "", err
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

var _ Completer = (*AnthropicClient)(nil)
