// Package grpc provides the Connect RPC surface for BallotBot.
package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/ballotbot-gg/ballotbot/internal/observability"
	"github.com/ballotbot-gg/ballotbot/internal/retrieval"
)

const (
	// ChatServiceName is the fully-qualified name of the chat service.
	ChatServiceName = "ballotbot.v1.ChatService"
	// ChatServiceAskProcedure is the path of the Ask RPC.
	ChatServiceAskProcedure = "/" + ChatServiceName + "/Ask"
)

// Router answers a raw question.
type Router interface {
	Route(ctx context.Context, query string) (*retrieval.Response, error)
}

// AskRequest is the Ask request message.
type AskRequest struct {
	Query string `json:"query"`
}

// AskResponse is the Ask response message. It has the same shape as the
// HTTP chat response.
type AskResponse struct {
	Response retrieval.Payload `json:"response"`
	Type     string            `json:"type"`
	Topic    string            `json:"topic,omitempty"`
}

// ChatService implements the Connect chat service.
type ChatService struct {
	logger *observability.Logger
	router Router
}

// NewChatService creates a new chat service.
func NewChatService(logger *observability.Logger, router Router) *ChatService {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &ChatService{logger: logger.WithComponent("chat_service"), router: router}
}

// Ask routes one question.
func (s *ChatService) Ask(ctx context.Context, req *connect.Request[AskRequest]) (*connect.Response[AskResponse], error) {
	query := strings.TrimSpace(req.Msg.Query)
	if query == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("query is required"))
	}

	resp, err := s.router.Route(ctx, query)
	if err != nil {
		s.logger.WithContext(ctx).Error().Err(err).Msg("Ask failed")
		return nil, connect.NewError(connect.CodeInternal, errors.New(retrieval.NewErrorBody(err).Response))
	}

	return connect.NewResponse(&AskResponse{
		Response: resp.Payload,
		Type:     resp.Type,
		Topic:    resp.Topic,
	}), nil
}

// NewChatServiceHandler returns the mount path and handler for svc.
func NewChatServiceHandler(svc *ChatService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(JSONCodec{})}, opts...)
	ask := connect.NewUnaryHandler(ChatServiceAskProcedure, svc.Ask, opts...)

	mux := http.NewServeMux()
	mux.Handle(ChatServiceAskProcedure, ask)
	return "/" + ChatServiceName + "/", mux
}

// NewChatServiceClient returns an Ask client for the service at baseURL.
func NewChatServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *connect.Client[AskRequest, AskResponse] {
	opts = append([]connect.ClientOption{connect.WithCodec(JSONCodec{})}, opts...)
	return connect.NewClient[AskRequest, AskResponse](httpClient, strings.TrimRight(baseURL, "/")+ChatServiceAskProcedure, opts...)
}

// JSONCodec serializes plain Go messages with encoding/json under the
// "json" codec name.
type JSONCodec struct{}

// Name implements connect.Codec.
func (JSONCodec) Name() string { return "json" }

// Marshal implements connect.Codec.
func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal implements connect.Codec.
func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
