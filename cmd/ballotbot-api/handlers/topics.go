package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ballotbot-gg/ballotbot/internal/topics"
)

// minSummaryMatch is the lowest Closest score accepted for a summary lookup.
const minSummaryMatch = 0.6

// Summaries returns precomputed topic prose.
type Summaries interface {
	Get(topic string) (string, bool)
}

// TopicsHandler serves the topic table and precomputed summaries.
type TopicsHandler struct {
	table     *topics.Table
	summaries Summaries
}

// NewTopicsHandler creates a new topics handler.
func NewTopicsHandler(table *topics.Table, summaries Summaries) *TopicsHandler {
	return &TopicsHandler{table: table, summaries: summaries}
}

// TopicDTO is one row of the topic table.
type TopicDTO struct {
	Name       string   `json:"name"`
	Label      string   `json:"label"`
	Aliases    []string `json:"aliases"`
	HasSummary bool     `json:"has_summary"`
}

// TopicSummaryDTO is a precomputed topic summary.
type TopicSummaryDTO struct {
	Topic   string `json:"topic"`
	Summary string `json:"summary"`
}

// List handles GET /topics.
func (h *TopicsHandler) List(w http.ResponseWriter, _ *http.Request) {
	all := h.table.Topics()
	out := make([]TopicDTO, 0, len(all))
	for _, t := range all {
		_, ok := h.summaries.Get(t.Name)
		out = append(out, TopicDTO{
			Name:       t.Name,
			Label:      h.table.Label(t.Name),
			Aliases:    t.Aliases,
			HasSummary: ok,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"topics": out})
}

// Summary handles GET /topics/{topic}/summary. The path value is resolved to
// the closest canonical topic.
func (h *TopicsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "topic")
	topic, score := h.table.Closest(raw)
	if topic == "" || score < minSummaryMatch {
		writeError(w, http.StatusNotFound, "unknown topic", raw)
		return
	}

	prose, ok := h.summaries.Get(topic)
	if !ok {
		writeError(w, http.StatusNotFound, "no summary for topic", topic)
		return
	}
	writeJSON(w, http.StatusOK, TopicSummaryDTO{Topic: topic, Summary: prose})
}
