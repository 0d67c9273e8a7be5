// Package llm wraps the hosted chat-completion providers used to summarise
// and classify candidate statements.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ballotbot-gg/ballotbot/internal/config"
	"github.com/ballotbot-gg/ballotbot/internal/observability"
)

var (
	// ErrNoCompleter is returned by New when no provider is configured.
	ErrNoCompleter = errors.New("no completion provider configured")
	// ErrEmptyCompletion is returned when a provider answers with no text.
	ErrEmptyCompletion = errors.New("empty completion")
)

// Request is a single system+user completion.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Completer produces text for a prompt.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req Request) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Options configures the provider clients.
type Options struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	Retry   RetryConfig
	Logger  *observability.Logger
}

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// New builds the completer selected by cfg.Provider.
func New(cfg config.LLMConfig, logger *observability.Logger) (Completer, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" || provider == "none" {
		return nil, ErrNoCompleter
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: %s api key is empty", ErrNoCompleter, provider)
	}

	retry := DefaultRetryConfig()
	if cfg.MaxRetries >= 0 {
		retry.MaxRetries = cfg.MaxRetries
	}

	opts := Options{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
		Retry:   retry,
		Logger:  logger,
	}

	switch provider {
	case "openai":
		return NewOpenAIClient(opts), nil
	case "openrouter":
		if opts.BaseURL == "" {
			opts.BaseURL = openRouterBaseURL
		}
		return NewOpenAIClient(opts), nil
	case "anthropic":
		return NewAnthropicClient(opts), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}

func attemptContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
