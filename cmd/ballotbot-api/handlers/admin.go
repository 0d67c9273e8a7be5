package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/ballotbot-gg/ballotbot/internal/monitoring"
	"github.com/ballotbot-gg/ballotbot/internal/observability"
)

const (
	defaultQueryLimit = 20
	maxQueryLimit     = 500
)

// QueryLog lists recently routed queries.
type QueryLog interface {
	Recent(ctx context.Context, n int) ([]monitoring.QueryEntry, error)
}

// ResponseCache is the clearable response cache.
type ResponseCache interface {
	Len() int
	Clear(ctx context.Context) error
}

// AdminHandler serves the query log and cache maintenance routes.
type AdminHandler struct {
	logger    *observability.Logger
	queryLog  QueryLog
	responses ResponseCache
}

// NewAdminHandler creates a new admin handler. queryLog may be nil when the
// query log is disabled.
func NewAdminHandler(logger *observability.Logger, queryLog QueryLog, responses ResponseCache) *AdminHandler {
	return &AdminHandler{logger: logger, queryLog: queryLog, responses: responses}
}

// Queries handles GET /queries?limit=n.
func (h *AdminHandler) Queries(w http.ResponseWriter, r *http.Request) {
	if h.queryLog == nil {
		writeError(w, http.StatusNotFound, "query log disabled", "")
		return
	}

	limit := defaultQueryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit", v)
			return
		}
		limit = min(n, maxQueryLimit)
	}

	entries, err := h.queryLog.Recent(r.Context(), limit)
	if err != nil {
		h.logger.WithContext(r.Context()).Error().Err(err).Msg("Failed to read query log")
		writeError(w, http.StatusInternalServerError, "failed to read query log", err.Error())
		return
	}
	if entries == nil {
		entries = []monitoring.QueryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"queries": entries})
}

// ClearResponses handles DELETE /cache/responses.
func (h *AdminHandler) ClearResponses(w http.ResponseWriter, r *http.Request) {
	cleared := h.responses.Len()
	if err := h.responses.Clear(r.Context()); err != nil {
		h.logger.WithContext(r.Context()).Error().Err(err).Msg("Failed to clear response cache")
		writeError(w, http.StatusInternalServerError, "failed to clear cache", err.Error())
		return
	}
	h.logger.WithContext(r.Context()).Info().Int("entries", cleared).Msg("Response cache cleared")
	writeJSON(w, http.StatusOK, map[string]int{"cleared": cleared})
}
