package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ballotbot-gg/ballotbot/internal/llm"
	"github.com/ballotbot-gg/ballotbot/internal/storage"
)

func TestParseBatchReply(t *testing.T) {
	reply := "**Jane Doe**: Wants a new ferry route.\n\n" +
		"2. Bob Jones: Favours more buses.\nAlso cheaper fares.\n\n" +
		"   \n\n" +
		"No colon paragraph\n\n" +
		"- Carol King:   "

	got := parseBatchReply(reply)

	assert.Equal(t, map[string]string{
		"jane doe":  "Wants a new ferry route.",
		"bob jones": "Favours more buses.\nAlso cheaper fares.",
	}, got)
}

func TestBatchNameKey(t *testing.T) {
	tests := map[string]string{
		"Jane Doe":       "jane doe",
		"**Jane Doe**":   "jane doe",
		"- Jane Doe":     "jane doe",
		"3) Jane Doe":    "jane doe",
		"## Jane Doe":    "jane doe",
		"  JANE DOE  ":   "jane doe",
		"> Deputy Smith": "deputy smith",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, batchNameKey(in))
		})
	}
}

func TestSummarizeChunks_Batches(t *testing.T) {
	var prompts []string
	completer := llm.CompleterFunc(func(_ context.Context, req llm.Request) (string, error) {
		prompts = append(prompts, req.Prompt)
		return echoBatch(req.Prompt), nil
	})
	s := NewSummarizer(completer, SummarizerConfig{BatchSize: 2}, nil, nil)

	chunks := []storage.TopicChunk{
		{Name: "A", Text: "one"},
		{Name: "B", Text: "  "},
		{Name: "C", Text: "three", SourceURL: "https://example.gg/c"},
		{Name: "D", Text: "four"},
	}
	out := s.SummarizeChunks(context.Background(), "housing", chunks)

	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[0], "positions on 'housing'")
	assert.Contains(t, prompts[0], "A: one")
	assert.Contains(t, prompts[0], "C: three")
	assert.Contains(t, prompts[1], "D: four")

	assert.Zero(t, out.Degraded)
	assert.Equal(t, []Candidate{
		{Name: "A", Summary: "summary of A", SourceURL: DefaultCandidateURLBase + "/a"},
		{Name: "C", Summary: "summary of C", SourceURL: "https://example.gg/c"},
		{Name: "D", Summary: "summary of D", SourceURL: DefaultCandidateURLBase + "/d"},
	}, out.Candidates)
}

func TestSummarizeChunks_BatchDegradation(t *testing.T) {
	call := 0
	completer := llm.CompleterFunc(func(_ context.Context, req llm.Request) (string, error) {
		call++
		if call == 1 {
			return "A: fine", nil
		}
		return "", errors.New("timeout")
	})
	s := NewSummarizer(completer, SummarizerConfig{BatchSize: 2}, nil, nil)

	long := strings.Repeat("x", 500) + "\nsecond line"
	chunks := []storage.TopicChunk{
		{Name: "A", Text: "one"},
		{Name: "B", Text: long},
		{Name: "C", Text: "three"},
	}
	out := s.SummarizeChunks(context.Background(), "housing", chunks)

	require.Len(t, out.Candidates, 3)
	assert.Equal(t, "fine", out.Candidates[0].Summary)
	assert.Equal(t, strings.Repeat("x", 400)+"...", out.Candidates[1].Summary)
	assert.Equal(t, ErrorNote, out.Candidates[2].Summary)
	assert.Equal(t, 2, out.Degraded)
}

func TestSummarizeChunks_PerCandidate(t *testing.T) {
	var systems []string
	completer := llm.CompleterFunc(func(_ context.Context, req llm.Request) (string, error) {
		systems = append(systems, req.System)
		if strings.Contains(req.Prompt, "bad") {
			return "   ", nil
		}
		return "  Clear stance.  ", nil
	})
	s := NewSummarizer(completer, SummarizerConfig{Mode: ModePerCandidate}, nil, nil)

	out := s.SummarizeChunks(context.Background(), "transport", []storage.TopicChunk{
		{Name: "A", Text: "good"},
		{Name: "B", Text: "bad"},
	})

	assert.Equal(t, []string{perCandidateSystem, perCandidateSystem}, systems)
	assert.Equal(t, "Clear stance.", out.Candidates[0].Summary)
	assert.Equal(t, ErrorNote, out.Candidates[1].Summary)
	assert.Equal(t, 1, out.Degraded)
}

func TestSummarizeCandidateTopic(t *testing.T) {
	var prompt string
	completer := llm.CompleterFunc(func(_ context.Context, req llm.Request) (string, error) {
		prompt = req.Prompt
		assert.Equal(t, candidateTopicMaxTokens, req.MaxTokens)
		return "Backs new homes.", nil
	})
	s := NewSummarizer(completer, SummarizerConfig{}, nil, nil)
	ctx := context.Background()
	keywords := []string{"housing", "homes"}

	assert.Equal(t, "No relevant response found for Jane on housing.",
		s.SummarizeCandidateTopic(ctx, "Jane", "housing", keywords, nil))

	assert.Equal(t, "No relevant content found for Jane on housing.",
		s.SummarizeCandidateTopic(ctx, "Jane", "housing", keywords, []string{"Rehoming pets is kind."}))

	got := s.SummarizeCandidateTopic(ctx, "Jane", "housing", keywords, []string{
		"We need more HOMES.",
		"Ferries are late.",
		"Housing costs are rising.",
	})
	assert.Equal(t, "Backs new homes.", got)
	assert.Contains(t, prompt, "We need more HOMES.\nHousing costs are rising.")
	assert.NotContains(t, prompt, "Ferries")
}

func TestSummarizeKeywordMatch(t *testing.T) {
	completer := llm.CompleterFunc(func(_ context.Context, req llm.Request) (string, error) {
		assert.Contains(t, req.Prompt, "User question: fishing?")
		assert.Equal(t, keywordMaxTokens, req.MaxTokens)
		assert.InDelta(t, keywordTemperature, req.Temperature, 1e-9)
		return "Wants fewer quotas.", nil
	})
	s := NewSummarizer(completer, SummarizerConfig{}, nil, nil)
	assert.Equal(t, "Wants fewer quotas.", s.SummarizeKeywordMatch(context.Background(), "Bob", "Fishing text", "fishing?"))

	offline := NewSummarizer(nil, SummarizerConfig{}, nil, nil)
	assert.Equal(t, "Fishing text...", offline.SummarizeKeywordMatch(context.Background(), "Bob", "Fishing text\nmore", "fishing?"))
}

func TestMatchParagraphs(t *testing.T) {
	paragraphs := []string{"GST is unfair.", "Against the gst+ plan.", "Gastronomy rocks.", "Sales tax, again."}
	assert.Equal(t,
		[]string{"GST is unfair.", "Against the gst+ plan.", "Sales tax, again."},
		MatchParagraphs(paragraphs, []string{"gst", "sales tax", ""}))
	assert.Empty(t, MatchParagraphs(paragraphs, nil))
}

func TestTruncateFallback(t *testing.T) {
	assert.Equal(t, "short...", truncateFallback("  short  \nnext"))
	assert.Equal(t, strings.Repeat("é", 400)+"...", truncateFallback(strings.Repeat("é", 450)))
}
