// Package retrieval routes normalized questions through the intent cascade
// and turns topic chunks and corpus matches into candidate summaries.
package retrieval

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ballotbot-gg/ballotbot/internal/llm"
	"github.com/ballotbot-gg/ballotbot/internal/monitoring"
	"github.com/ballotbot-gg/ballotbot/internal/observability"
	"github.com/ballotbot-gg/ballotbot/internal/query"
	"github.com/ballotbot-gg/ballotbot/internal/storage"
)

// SummarizationMode selects how topic chunks are sent to the completer.
type SummarizationMode string

const (
	ModeBatch        SummarizationMode = "batch"
	ModePerCandidate SummarizationMode = "per_candidate"
)

// ErrorNote replaces a summary whose completion failed.
const ErrorNote = "❌ Error summarising statement."

const (
	fallbackRunes = 400

	perCandidateSystem   = "You are a political assistant summarising candidate views."
	candidateTopicSystem = "You summarize political candidate views on a topic."

	candidateTopicMaxTokens = 300
	keywordMaxTokens        = 250
	keywordTemperature      = 0.4
)

// SummarizerConfig configures a Summarizer.
type SummarizerConfig struct {
	Mode             SummarizationMode
	BatchSize        int
	Temperature      float64
	CandidateURLBase string
}

// ChunkSummary is the outcome of summarizing a topic's chunks. Degraded
// counts candidates whose summary is an error note or a truncation.
type ChunkSummary struct {
	Candidates []Candidate
	Degraded   int
}

// Summarizer turns candidate text into short summaries through a Completer.
// Completion failures never escape: they degrade to an error note or to a
// truncation of the source text.
type Summarizer struct {
	completer llm.Completer
	cfg       SummarizerConfig
	logger    *observability.Logger
	metrics   *monitoring.Metrics
}

// NewSummarizer creates a summarizer. A nil completer makes every call
// degrade.
func NewSummarizer(completer llm.Completer, cfg SummarizerConfig, logger *observability.Logger, metrics *monitoring.Metrics) *Summarizer {
	if cfg.Mode == "" {
		cfg.Mode = ModeBatch
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Summarizer{
		completer: completer,
		cfg:       cfg,
		logger:    logger.WithComponent("summarizer"),
		metrics:   metrics,
	}
}

// SummarizeChunks produces one candidate entry per chunk with text, in chunk
// order.
func (s *Summarizer) SummarizeChunks(ctx context.Context, topic string, chunks []storage.TopicChunk) ChunkSummary {
	usable := make([]storage.TopicChunk, 0, len(chunks))
	for _, c := range chunks {
		if strings.TrimSpace(c.Text) != "" {
			usable = append(usable, c)
		}
	}

	if s.cfg.Mode == ModePerCandidate {
		return s.summarizeEach(ctx, topic, usable)
	}
	return s.summarizeBatches(ctx, topic, usable)
}

func (s *Summarizer) summarizeEach(ctx context.Context, topic string, chunks []storage.TopicChunk) ChunkSummary {
	out := ChunkSummary{Candidates: make([]Candidate, 0, len(chunks))}

	for _, c := range chunks {
		prompt := fmt.Sprintf(
			"This is a candidate's statement on the topic of %s:\n\n%s\n\n"+
				"Summarise their stance clearly in 1-2 sentences. Be factual. Avoid repetition. "+
				"Mention the candidate's name at the start.",
			topic, strings.TrimSpace(c.Text))

		summary, err := s.complete(ctx, llm.Request{
			System:      perCandidateSystem,
			Prompt:      prompt,
			Temperature: s.cfg.Temperature,
		})
		if err != nil {
			summary = ErrorNote
			out.Degraded++
		}
		out.Candidates = append(out.Candidates, Candidate{
			Name:      c.Name,
			Summary:   summary,
			SourceURL: s.sourceURL(c),
		})
	}
	return out
}

// SummarizeCandidateTopic summarizes one candidate's paragraphs that mention
// any of keywords as a whole word.
func (s *Summarizer) SummarizeCandidateTopic(ctx context.Context, name, topic string, keywords, paragraphs []string) string {
	if len(paragraphs) == 0 {
		return fmt.Sprintf("No relevant response found for %s on %s.", name, topic)
	}

	relevant := MatchParagraphs(paragraphs, keywords)
	if len(relevant) == 0 {
		return fmt.Sprintf("No relevant content found for %s on %s.", name, topic)
	}

	prompt := fmt.Sprintf("Please summarize %s's views on '%s' based on the following text:\n\n%s",
		name, topic, strings.Join(relevant, "\n"))

	summary, err := s.complete(ctx, llm.Request{
		System:      candidateTopicSystem,
		Prompt:      prompt,
		MaxTokens:   candidateTopicMaxTokens,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		return ErrorNote
	}
	return summary
}

// SummarizeKeywordMatch summarizes text matched by a keyword scan. On failure
// it returns the first line of text, truncated.
func (s *Summarizer) SummarizeKeywordMatch(ctx context.Context, name, text, question string) string {
	prompt := fmt.Sprintf(`The following is campaign content from a candidate in an election. Based on the content and the question, summarize the candidate's position in a clear and concise way suitable for a general audience.

Candidate: %s
User question: %s
Content:
"""
%s
"""

Summary:`, name, question, strings.TrimSpace(text))

	summary, err := s.complete(ctx, llm.Request{
		Prompt:      prompt,
		MaxTokens:   keywordMaxTokens,
		Temperature: keywordTemperature,
	})
	if err != nil {
		return truncateFallback(text)
	}
	return summary
}

// Prose asks for a free-form completion, used by the offline stance classifier.
func (s *Summarizer) Prose(ctx context.Context, system, prompt string, maxTokens int, temperature float64) (string, error) {
	return s.complete(ctx, llm.Request{
		System:      system,
		Prompt:      prompt,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
}

func (s *Summarizer) complete(ctx context.Context, req llm.Request) (string, error) {
	if s.completer == nil {
		s.metrics.LLMCall(llm.ErrNoCompleter)
		return "", llm.ErrNoCompleter
	}

	text, err := s.completer.Complete(ctx, req)
	if err == nil && strings.TrimSpace(text) == "" {
		err = llm.ErrEmptyCompletion
	}
	s.metrics.LLMCall(err)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Completion failed, degrading")
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (s *Summarizer) sourceURL(c storage.TopicChunk) string {
	if c.SourceURL != "" {
		return c.SourceURL
	}
	return CandidateURL(s.cfg.CandidateURLBase, c.Name)
}

// truncateFallback returns the first line of text capped at 400 runes,
// followed by an ellipsis.
func truncateFallback(text string) string {
	line := strings.TrimSpace(text)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	return query.Truncate(strings.TrimSpace(line), fallbackRunes) + "..."
}

// MatchParagraphs keeps the paragraphs containing any keyword as a whole
// word, case-insensitively.
func MatchParagraphs(paragraphs, keywords []string) []string {
	patterns := make([]*regexp.Regexp, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		patterns = append(patterns, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(kw)+`\b`))
	}

	var out []string
	for _, p := range paragraphs {
		for _, re := range patterns {
			if re.MatchString(p) {
				out = append(out, p)
				break
			}
		}
	}
	return out
}
