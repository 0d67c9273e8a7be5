package monitoring

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ballotbot-gg/ballotbot/internal/cache"
	"github.com/ballotbot-gg/ballotbot/internal/observability"
)

func TestQueryLogger_FileSinkNewestFirst(t *testing.T) {
	path := filepath.Join(t.TempDir(), "query_log.json")
	ql := NewQueryLogger(observability.NopLogger(), QueryLogOptions{Path: path, MaxEntries: 2})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ql.Record(ctx, QueryEntry{Query: fmt.Sprintf("q%d", i), Type: "gpt_topic_summary", Topic: "housing"})
	}

	entries, err := ql.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "q2", entries[0].Query)
	assert.Equal(t, "q1", entries[1].Query)
	assert.Equal(t, time.UTC, entries[0].Timestamp.Location())
}

func TestQueryLogger_Defaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "query_log.json")
	ql := NewQueryLogger(nil, QueryLogOptions{Path: path})
	ctx := context.Background()

	ql.Record(ctx, QueryEntry{Query: "hello", Response: strings.Repeat("é", 500), Type: "exception"})

	entries, err := ql.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "unknown", entries[0].Topic)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", entries[0].ID.String())
	assert.Equal(t, 300, len([]rune(entries[0].Response)))
}

func TestQueryLogger_LogEvent(t *testing.T) {
	var buf strings.Builder
	logger := observability.NewLogger(observability.LogConfig{Level: "info", Output: &buf})
	ql := NewQueryLogger(logger, QueryLogOptions{})

	routedAt := time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)
	ql.Record(context.Background(), QueryEntry{Query: "who supports gst", Topic: "gst", Type: "stance_gst", Timestamp: routedAt})

	out := buf.String()
	assert.Contains(t, out, `"message":"Query routed"`)
	assert.Contains(t, out, `"type":"stance_gst"`)
	assert.Contains(t, out, `"routed_at":"2025-05-01T09:30:00Z"`)
}

func TestQueryLogger_CorruptFileStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "query_log.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	ql := NewQueryLogger(observability.NopLogger(), QueryLogOptions{Path: path})
	ql.Record(context.Background(), QueryEntry{Query: "q", Type: "t"})

	entries, err := ql.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "q", entries[0].Query)
}

func TestQueryLogger_ListSink(t *testing.T) {
	client := cache.NewMemoryClient(0)
	defer client.Close()

	ql := NewQueryLogger(observability.NopLogger(), QueryLogOptions{List: client, MaxEntries: 3})
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		ql.Record(ctx, QueryEntry{Query: fmt.Sprintf("q%d", i), Type: "t"})
	}

	entries, err := ql.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "q4", entries[0].Query)
}

type failingList struct{}

func (failingList) PushBounded(context.Context, string, []byte, int) error {
	return errors.New("down")
}

func (failingList) Range(context.Context, string, int) ([][]byte, error) {
	return nil, errors.New("down")
}

func TestQueryLogger_SinkFailureIsSwallowed(t *testing.T) {
	ql := NewQueryLogger(observability.NopLogger(), QueryLogOptions{List: failingList{}})
	assert.NotPanics(t, func() {
		ql.Record(context.Background(), QueryEntry{Query: "q", Type: "t"})
	})

	_, err := ql.Recent(context.Background(), 1)
	assert.Error(t, err)
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.ObserveQuery("gpt_topic_summary", 20*time.Millisecond)
	m.CacheLookup("topic_response_cache", true)
	m.CacheLookup("topic_response_cache", false)
	m.LLMCall(nil)
	m.LLMCall(errors.New("boom"))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	assert.Contains(t, body, `ballotbot_queries_total{type="gpt_topic_summary"} 1`)
	assert.Contains(t, body, `ballotbot_cache_lookups_total{cache="topic_response_cache",result="hit"} 1`)
	assert.Contains(t, body, `ballotbot_llm_calls_total{outcome="error"} 1`)
	assert.Contains(t, body, "ballotbot_route_duration_seconds_count 1")
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveQuery("x", time.Second)
		m.CacheLookup("c", true)
		m.LLMCall(nil)
	})
}
