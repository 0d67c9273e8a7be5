package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/ballotbot-gg/ballotbot/internal/observability"
)

const (
	maxRetries     = 3
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
)

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     maxRetries,
		InitialBackoff: initialBackoff,
		MaxBackoff:     maxBackoff,
	}
}

// StatusError is a provider failure that carries its HTTP status.
type StatusError struct {
	Status int
	Err    error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %v", e.Status, e.Err)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// shouldRetry determines if a status code is retryable
func shouldRetry(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// retryable reports whether err is worth another attempt. Errors without a
// status are transport failures and are retried.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrEmptyCompletion) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return shouldRetry(se.Status)
	}
	return true
}

// calculateBackoff calculates exponential backoff duration
func calculateBackoff(attempt int, config RetryConfig) time.Duration {
	backoff := float64(config.InitialBackoff) * math.Pow(2, float64(attempt))
	if backoff > float64(config.MaxBackoff) {
		backoff = float64(config.MaxBackoff)
	}
	return time.Duration(backoff)
}

// retryWithBackoff runs call until it succeeds, fails permanently or the
// retry budget is spent.
func retryWithBackoff(ctx context.Context, config RetryConfig, logger *observability.Logger, call func(context.Context) (string, error)) (string, error) {
	if logger == nil {
		logger = observability.NopLogger()
	}

	var lastErr error
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		text, err := call(ctx)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if !retryable(err) || attempt == config.MaxRetries {
			break
		}

		backoff := calculateBackoff(attempt, config)
		logger.Warn().
			Int("attempt", attempt+1).
			Int("max_retries", config.MaxRetries).
			Dur("backoff", backoff).
			Err(err).
			Msg("completion failed, retrying")

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
	}

	return "", lastErr
}
