// Package handlers provides HTTP handlers for the BallotBot API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/ballotbot-gg/ballotbot/internal/observability"
	"github.com/ballotbot-gg/ballotbot/internal/retrieval"
)

// maxBodyBytes bounds chat request bodies.
const maxBodyBytes = 64 << 10

// Router answers a raw question.
type Router interface {
	Route(ctx context.Context, query string) (*retrieval.Response, error)
}

// ChatHandler handles chat requests.
type ChatHandler struct {
	logger *observability.Logger
	router Router
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(logger *observability.Logger, router Router) *ChatHandler {
	return &ChatHandler{logger: logger, router: router}
}

// ChatRequestDTO is the chat request body.
type ChatRequestDTO struct {
	Query string `json:"query"`
}

// Chat handles POST /chat.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ChatRequestDTO
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		writeError(w, http.StatusBadRequest, "No query provided", "")
		return
	}

	resp, err := h.router.Route(ctx, query)
	if err != nil {
		h.logger.WithContext(ctx).Error().Err(err).Str("query", query).Msg("Chat failed")
		writeJSON(w, http.StatusInternalServerError, retrieval.NewErrorBody(err))
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message, detail string) {
	resp := map[string]string{"error": message}
	if detail != "" {
		resp["detail"] = detail
	}
	writeJSON(w, status, resp)
}
