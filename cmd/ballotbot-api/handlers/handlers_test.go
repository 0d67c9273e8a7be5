package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ballotbot-gg/ballotbot/internal/monitoring"
	"github.com/ballotbot-gg/ballotbot/internal/observability"
	"github.com/ballotbot-gg/ballotbot/internal/retrieval"
	"github.com/ballotbot-gg/ballotbot/internal/topics"
)

type routerFunc func(ctx context.Context, query string) (*retrieval.Response, error)

func (f routerFunc) Route(ctx context.Context, query string) (*retrieval.Response, error) {
	return f(ctx, query)
}

func TestChatHandler_Chat(t *testing.T) {
	var seen string
	h := NewChatHandler(observability.NopLogger(), routerFunc(func(_ context.Context, q string) (*retrieval.Response, error) {
		seen = q
		if q == "boom" {
			return nil, errors.New("stage exploded")
		}
		return &retrieval.Response{
			Payload: retrieval.CandidatesPayload(retrieval.Candidate{Name: "Jane Doe", Summary: "Ferries."}),
			Type:    retrieval.TypeShortFormMatch,
			Topic:   "transport",
		}, nil
	}))

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "routed",
			body:       `{"query": "  Jane Doe on transport "}`,
			wantStatus: http.StatusOK,
			wantBody: `{"response":{"candidates":[{"name":"Jane Doe","summary":"Ferries.","source_url":""}]},` +
				`"type":"fallback_short_form_match","topic":"transport"}`,
		},
		{
			name:       "missing query",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"No query provided"}`,
		},
		{
			name:       "empty body",
			body:       ``,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"No query provided"}`,
		},
		{
			name:       "route failure",
			body:       `{"query":"boom"}`,
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"response":"An error occurred: stage exploded","type":"exception"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			h.Chat(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
	assert.Equal(t, "boom", seen)

	rec := httptest.NewRecorder()
	h.Chat(rec, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"query":`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type staticSummaries map[string]string

func (s staticSummaries) Get(topic string) (string, bool) {
	v, ok := s[topic]
	return v, ok
}

func serveTopics(h *TopicsHandler, target string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Get("/topics", h.List)
	r.Get("/topics/{topic}/summary", h.Summary)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestTopicsHandler(t *testing.T) {
	h := NewTopicsHandler(topics.DefaultTable(), staticSummaries{"transport": "- [Jane Doe](u): Ferries."})

	t.Run("list", func(t *testing.T) {
		rec := serveTopics(h, "/topics")
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Topics []TopicDTO `json:"topics"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body.Topics, len(topics.DefaultTable().Names()))
		assert.Equal(t, "gst", body.Topics[0].Name)

		for _, tp := range body.Topics {
			assert.Equal(t, tp.Name == "transport", tp.HasSummary, tp.Name)
		}
	})

	t.Run("fuzzy summary", func(t *testing.T) {
		rec := serveTopics(h, "/topics/transprt/summary")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"topic":"transport","summary":"- [Jane Doe](u): Ferries."}`, rec.Body.String())
	})

	t.Run("no summary", func(t *testing.T) {
		rec := serveTopics(h, "/topics/housing/summary")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unknown topic", func(t *testing.T) {
		rec := serveTopics(h, "/topics/zzzzzzzzzzzz/summary")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

type fakeQueryLog struct {
	entries []monitoring.QueryEntry
	asked   int
	err     error
}

func (f *fakeQueryLog) Recent(_ context.Context, n int) ([]monitoring.QueryEntry, error) {
	f.asked = n
	if f.err != nil {
		return nil, f.err
	}
	return f.entries[:min(n, len(f.entries))], nil
}

type fakeResponses struct {
	n   int
	err error
}

func (f *fakeResponses) Len() int { return f.n }

func (f *fakeResponses) Clear(context.Context) error {
	if f.err != nil {
		return f.err
	}
	f.n = 0
	return nil
}

func TestAdminHandler_Queries(t *testing.T) {
	log := &fakeQueryLog{entries: []monitoring.QueryEntry{
		{ID: uuid.New(), Timestamp: time.Date(2025, 10, 1, 9, 0, 0, 0, time.UTC), Query: "q2", Type: "no_short_match"},
		{ID: uuid.New(), Timestamp: time.Date(2025, 10, 1, 8, 0, 0, 0, time.UTC), Query: "q1", Type: "low_mention_query"},
	}}
	h := NewAdminHandler(observability.NopLogger(), log, &fakeResponses{})

	tests := []struct {
		target     string
		wantStatus int
		wantAsked  int
		wantLen    int
	}{
		{"/queries", http.StatusOK, defaultQueryLimit, 2},
		{"/queries?limit=1", http.StatusOK, 1, 1},
		{"/queries?limit=100000", http.StatusOK, maxQueryLimit, 2},
		{"/queries?limit=-3", http.StatusBadRequest, 0, 0},
		{"/queries?limit=abc", http.StatusBadRequest, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			log.asked = 0
			rec := httptest.NewRecorder()
			h.Queries(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))

			require.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantAsked, log.asked)
			if tt.wantStatus != http.StatusOK {
				return
			}
			var body struct {
				Queries []monitoring.QueryEntry `json:"queries"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Len(t, body.Queries, tt.wantLen)
		})
	}

	log.err = errors.New("disk gone")
	rec := httptest.NewRecorder()
	h.Queries(rec, httptest.NewRequest(http.MethodGet, "/queries", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	NewAdminHandler(observability.NopLogger(), nil, &fakeResponses{}).Queries(rec, httptest.NewRequest(http.MethodGet, "/queries", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminHandler_ClearResponses(t *testing.T) {
	responses := &fakeResponses{n: 3}
	h := NewAdminHandler(observability.NopLogger(), nil, responses)

	rec := httptest.NewRecorder()
	h.ClearResponses(rec, httptest.NewRequest(http.MethodDelete, "/cache/responses", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"cleared":3}`, rec.Body.String())
	assert.Zero(t, responses.n)

	responses.err = errors.New("read-only")
	rec = httptest.NewRecorder()
	h.ClearResponses(rec, httptest.NewRequest(http.MethodDelete, "/cache/responses", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
