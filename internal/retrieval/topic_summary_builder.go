package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ballotbot-gg/ballotbot/internal/cache"
	"github.com/ballotbot-gg/ballotbot/internal/observability"
	"github.com/ballotbot-gg/ballotbot/internal/storage"
	"github.com/ballotbot-gg/ballotbot/internal/topics"
)

// ErrDegradedSummary is returned when some candidates could not be
// summarized. The partial prose is not stored.
var ErrDegradedSummary = errors.New("summary degraded")

// TopicSummaryBuilder precomputes the prose summaries served by the
// last-resort topic stage.
type TopicSummaryBuilder struct {
	table      *topics.Table
	chunks     storage.TopicChunks
	summarizer *Summarizer
	named      *cache.Named
	logger     *observability.Logger
}

// NewTopicSummaryBuilder creates a builder writing into named.
func NewTopicSummaryBuilder(table *topics.Table, chunks storage.TopicChunks, summarizer *Summarizer, named *cache.Named, logger *observability.Logger) *TopicSummaryBuilder {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &TopicSummaryBuilder{
		table:      table,
		chunks:     chunks,
		summarizer: summarizer,
		named:      named,
		logger:     logger.WithComponent("topic_summary_builder"),
	}
}

// Build summarizes every chunk of topic into a bulleted prose block and
// stores it under the canonical topic name.
func (b *TopicSummaryBuilder) Build(ctx context.Context, topic string) (string, error) {
	topic = topics.NormalizeTopic(topic)
	if !b.table.Has(topic) {
		if detected, ok := b.table.DetectNormalized(topic); ok {
			topic = detected
		} else if _, ok := b.chunks[topic]; !ok {
			return "", fmt.Errorf("%w: %s", topics.ErrUnknownTopic, topic)
		}
	}

	chunks := b.chunks[topic]
	if len(chunks) == 0 {
		return fmt.Sprintf("No candidate statements found on %s.", topic), nil
	}

	summary := b.summarizer.SummarizeChunks(ctx, topic, chunks)
	prose := renderProse(summary.Candidates)

	if summary.Degraded > 0 {
		b.logger.Warn().Str("topic", topic).Int("degraded", summary.Degraded).Msg("Not storing degraded topic summary")
		return prose, fmt.Errorf("%w: %d of %d candidates", ErrDegradedSummary, summary.Degraded, len(summary.Candidates))
	}

	if err := b.named.PutJSON(ctx, topic, prose); err != nil {
		return prose, fmt.Errorf("store summary for %s: %w", topic, err)
	}

	b.logger.Info().Str("topic", topic).Int("candidates", len(summary.Candidates)).Msg("Topic summary stored")
	return prose, nil
}

func renderProse(candidates []Candidate) string {
	lines := make([]string, 0, len(candidates))
	for _, c := range candidates {
		lines = append(lines, fmt.Sprintf("- [%s](%s): %s", c.Name, c.SourceURL, c.Summary))
	}
	return strings.Join(lines, "\n\n")
}
