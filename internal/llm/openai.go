package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/ballotbot-gg/ballotbot/internal/observability"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIClient completes prompts through the chat completions API of OpenAI
// or an OpenAI-compatible endpoint.
type OpenAIClient struct {
	client openai.Client
	model  string
	opts   Options
	logger *observability.Logger
}

// NewOpenAIClient creates an OpenAI-compatible completer. SDK retries are
// disabled in favour of retryWithBackoff.
func NewOpenAIClient(opts Options) *OpenAIClient {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
	}
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(strings.TrimRight(base, "/")+"/"))
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultOpenAIModel
	}

	logger := opts.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}

	return &OpenAIClient{
		client: openai.NewClient(reqOpts...),
		model:  model,
		opts:   opts,
		logger: logger.WithComponent("llm.openai"),
	}
}

// Complete sends one chat completion.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	text, err := retryWithBackoff(ctx, c.opts.Retry, c.logger, func(ctx context.Context) (string, error) {
		attemptCtx, cancel := attemptContext(ctx, c.opts.Timeout)
		defer cancel()
		return c.complete(attemptCtx, req)
	})
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	return text, nil
}

func (c *OpenAIClient) complete(ctx context.Context, req Request) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &StatusError{Status: apiErr.StatusCode, Err: err}
		}
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

var _ Completer = (*OpenAIClient)(nil)
