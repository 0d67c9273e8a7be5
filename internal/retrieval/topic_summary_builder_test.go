package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ballotbot-gg/ballotbot/internal/cache"
	"github.com/ballotbot-gg/ballotbot/internal/llm"
	"github.com/ballotbot-gg/ballotbot/internal/storage"
	"github.com/ballotbot-gg/ballotbot/internal/topics"
)

func newBuilder(t *testing.T, completer llm.Completer) (*TopicSummaryBuilder, *cache.Named) {
	t.Helper()
	named := cache.OpenEmpty(cache.NewFileStore(t.TempDir()), TopicSummaryCache)
	chunks := storage.TopicChunks{
		"transport": {
			{Name: "Jane Doe", Text: "New ferry route.", SourceURL: "https://example.gg/jane"},
			{Name: "Bob Jones", Text: "More buses."},
		},
		"population": {},
	}
	s := NewSummarizer(completer, SummarizerConfig{Mode: ModePerCandidate}, nil, nil)
	return NewTopicSummaryBuilder(topics.DefaultTable(), chunks, s, named, nil), named
}

func TestTopicSummaryBuilder_Build(t *testing.T) {
	b, named := newBuilder(t, llm.CompleterFunc(func(context.Context, llm.Request) (string, error) {
		return "Summary.", nil
	}))

	prose, err := b.Build(context.Background(), "The Ferry")
	require.NoError(t, err)

	want := "- [Jane Doe](https://example.gg/jane): Summary.\n\n" +
		"- [Bob Jones](" + DefaultCandidateURLBase + "/bob-jones): Summary."
	assert.Equal(t, want, prose)

	got, ok := NewSummaryIndex(named, nil).Get("transport")
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestTopicSummaryBuilder_Degraded(t *testing.T) {
	b, named := newBuilder(t, llm.CompleterFunc(func(context.Context, llm.Request) (string, error) {
		return "", errors.New("quota")
	}))

	prose, err := b.Build(context.Background(), "transport")
	assert.ErrorIs(t, err, ErrDegradedSummary)
	assert.Contains(t, prose, ErrorNote)
	assert.Zero(t, named.Len())
}

func TestTopicSummaryBuilder_Edges(t *testing.T) {
	b, named := newBuilder(t, nil)
	ctx := context.Background()

	msg, err := b.Build(ctx, "population")
	require.NoError(t, err)
	assert.Equal(t, "No candidate statements found on population.", msg)

	_, err = b.Build(ctx, "quantum physics")
	assert.ErrorIs(t, err, topics.ErrUnknownTopic)
	assert.Zero(t, named.Len())
}
