package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ballotbot-gg/ballotbot/internal/config"
)

func fastRetry() RetryConfig {
	return RetryConfig{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func TestCalculateBackoff(t *testing.T) {
	cfg := DefaultRetryConfig()
	assert.Equal(t, time.Second, calculateBackoff(0, cfg))
	assert.Equal(t, 2*time.Second, calculateBackoff(1, cfg))
	assert.Equal(t, 4*time.Second, calculateBackoff(2, cfg))
	assert.Equal(t, 30*time.Second, calculateBackoff(10, cfg))
}

func TestRetryWithBackoff(t *testing.T) {
	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantErr   bool
	}{
		{"success first try", nil, 1, false},
		{"rate limited then ok", []error{&StatusError{Status: 429, Err: errors.New("slow down")}}, 2, false},
		{"server errors exhaust budget", []error{
			&StatusError{Status: 503}, &StatusError{Status: 502}, &StatusError{Status: 500}, &StatusError{Status: 504},
		}, 4, true},
		{"bad request not retried", []error{&StatusError{Status: 400, Err: errors.New("bad")}}, 1, true},
		{"transport error retried", []error{errors.New("connection reset")}, 2, false},
		{"empty completion not retried", []error{ErrEmptyCompletion}, 1, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			calls := 0
			text, err := retryWithBackoff(context.Background(), fastRetry(), nil, func(context.Context) (string, error) {
				calls++
				if calls <= len(tc.errs) {
					return "", tc.errs[calls-1]
				}
				return "ok", nil
			})

			assert.Equal(t, tc.wantCalls, calls)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "ok", text)
		})
	}
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := retryWithBackoff(ctx, fastRetry(), nil, func(context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestNew_ProviderSelection(t *testing.T) {
	_, err := New(config.LLMConfig{Provider: "none"}, nil)
	assert.ErrorIs(t, err, ErrNoCompleter)

	_, err = New(config.LLMConfig{Provider: "openai"}, nil)
	assert.ErrorIs(t, err, ErrNoCompleter)

	c, err := New(config.LLMConfig{Provider: "openai", APIKey: "k"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, c)

	c, err = New(config.LLMConfig{Provider: "openrouter", APIKey: "k"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, c)

	c, err = New(config.LLMConfig{Provider: "anthropic", APIKey: "k"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &AnthropicClient{}, c)

	_, err = New(config.LLMConfig{Provider: "gemini", APIKey: "k"}, nil)
	assert.Error(t, err)
}

func TestOpenAIClient_Complete(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"busy"}}`))
			return
		}

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o-mini", body["model"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":0,"model":"gpt-4o-mini",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"  Supports rent caps. "}}]}`))
	}))
	defer srv.Close()

	client := NewOpenAIClient(Options{APIKey: "k", BaseURL: srv.URL, Retry: fastRetry()})
	text, err := client.Complete(context.Background(), Request{System: "sys", Prompt: "p", MaxTokens: 50, Temperature: 0.5})
	require.NoError(t, err)
	assert.Equal(t, "Supports rent caps.", text)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestAnthropicClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"m1","type":"message","role":"assistant","model":"claude-3-5-haiku-latest",
			"content":[{"type":"text","text":"Opposes the levy."}],"stop_reason":"end_turn",
			"usage":{"input_tokens":1,"output_tokens":3}}`))
	}))
	defer srv.Close()

	client := NewAnthropicClient(Options{APIKey: "k", BaseURL: srv.URL, Retry: fastRetry()})
	text, err := client.Complete(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "Opposes the levy.", text)
}

func TestCompleterFunc(t *testing.T) {
	var c Completer = CompleterFunc(func(_ context.Context, req Request) (string, error) {
		return req.Prompt, nil
	})
	out, err := c.Complete(context.Background(), Request{Prompt: "echo"})
	require.NoError(t, err)
	assert.Equal(t, "echo", out)
}
