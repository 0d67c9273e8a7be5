// Package ballotbot provides the public Go SDK for the BallotBot API.
package ballotbot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"connectrpc.com/connect"

	"github.com/ballotbot-gg/ballotbot/internal/api/grpc"
	"github.com/ballotbot-gg/ballotbot/internal/monitoring"
	"github.com/ballotbot-gg/ballotbot/internal/retrieval"
)

// Response is a routed answer.
type Response = retrieval.Response

// Payload is the body of a Response.
type Payload = retrieval.Payload

// Candidate is one candidate entry of a Payload.
type Candidate = retrieval.Candidate

// QueryEntry is one logged question.
type QueryEntry = monitoring.QueryEntry

// Client is the public SDK client for a BallotBot server.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	ask        *connect.Client[grpc.AskRequest, grpc.AskResponse]
}

// ClientConfig holds client configuration.
type ClientConfig struct {
	BaseURL string
	// APIKey is sent as X-API-Key. Only the admin endpoints need it.
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ballotbot: %d %s", e.StatusCode, e.Message)
}

// NewClient creates a new BallotBot client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	base := strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		baseURL:    base,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		ask:        grpc.NewChatServiceClient(httpClient, base),
	}, nil
}

// Ask routes one question over the Connect chat service.
func (c *Client) Ask(ctx context.Context, query string) (*Response, error) {
	resp, err := c.ask.CallUnary(ctx, connect.NewRequest(&grpc.AskRequest{Query: query}))
	if err != nil {
		var cerr *connect.Error
		if errors.As(err, &cerr) && cerr.Code() == connect.CodeInvalidArgument {
			return nil, &APIError{StatusCode: http.StatusBadRequest, Message: cerr.Message()}
		}
		return nil, err
	}
	return &Response{
		Payload: resp.Msg.Response,
		Type:    resp.Msg.Type,
		Topic:   resp.Msg.Topic,
	}, nil
}

// Chat routes one question over the plain JSON endpoint.
func (c *Client) Chat(ctx context.Context, query string) (*Response, error) {
	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, err
	}
	var out Response
	if err := c.do(ctx, http.MethodPost, "/api/v1/chat", strings.NewReader(string(body)), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Topic describes one known topic.
type Topic struct {
	Name       string   `json:"name"`
	Label      string   `json:"label"`
	Aliases    []string `json:"aliases"`
	HasSummary bool     `json:"has_summary"`
}

// Topics lists the server's topic table.
func (c *Client) Topics(ctx context.Context) ([]Topic, error) {
	var out struct {
		Topics []Topic `json:"topics"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/topics/", nil, &out); err != nil {
		return nil, err
	}
	return out.Topics, nil
}

// TopicSummary is the precomputed prose summary of a topic.
type TopicSummary struct {
	Topic   string `json:"topic"`
	Summary string `json:"summary"`
}

// TopicSummary fetches the summary of the topic closest to name.
func (c *Client) TopicSummary(ctx context.Context, name string) (*TopicSummary, error) {
	var out TopicSummary
	path := "/api/v1/topics/" + url.PathEscape(name) + "/summary"
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RecentQueries returns up to limit logged questions, newest last.
func (c *Client) RecentQueries(ctx context.Context, limit int) ([]QueryEntry, error) {
	path := "/api/v1/queries"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out struct {
		Queries []QueryEntry `json:"queries"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Queries, nil
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service,omitempty"`
}

// Health checks the service health.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(data, resp.Status)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// errorMessage pulls the message out of either error body the server writes.
func errorMessage(data []byte, fallback string) string {
	var body struct {
		Error    string          `json:"error"`
		Response json.RawMessage `json:"response"`
	}
	if json.Unmarshal(data, &body) != nil {
		return fallback
	}
	if body.Error != "" {
		return body.Error
	}
	var s string
	if json.Unmarshal(body.Response, &s) == nil && s != "" {
		return s
	}
	return fallback
}
