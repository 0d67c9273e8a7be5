package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ballotbot-gg/ballotbot/internal/observability"
	"github.com/ballotbot-gg/ballotbot/internal/storage"
	"github.com/ballotbot-gg/ballotbot/internal/topics"
)

const (
	stanceSystem    = "You analyze political candidate positions and determine their stance on a given topic."
	stanceMaxTokens = 800
)

// ErrNoStanceInput is returned when no candidate has text relevant to the topic.
var ErrNoStanceInput = errors.New("no relevant candidate positions found on this topic")

// BatchProgress is called after each classification batch. err is non-nil
// for a failed batch, whose candidates are skipped.
type BatchProgress func(done, total int, err error)

// StanceClassifier labels each candidate's position on a topic as SUPPORT,
// OPPOSE or NO CLEAR STANCE. It runs offline to seed the stance cache.
type StanceClassifier struct {
	summarizer *Summarizer
	table      *topics.Table
	batchSize  int
	urlBase    string
	logger     *observability.Logger
	progress   BatchProgress
}

// StanceClassifierConfig configures a StanceClassifier.
type StanceClassifierConfig struct {
	BatchSize        int
	CandidateURLBase string
	Progress         BatchProgress
}

// NewStanceClassifier creates a classifier that completes through summarizer.
func NewStanceClassifier(summarizer *Summarizer, table *topics.Table, cfg StanceClassifierConfig, logger *observability.Logger) *StanceClassifier {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if cfg.CandidateURLBase == "" {
		cfg.CandidateURLBase = DefaultCandidateURLBase
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &StanceClassifier{
		summarizer: summarizer,
		table:      table,
		batchSize:  cfg.BatchSize,
		urlBase:    cfg.CandidateURLBase,
		logger:     logger.WithComponent("stance_classifier"),
		progress:   cfg.Progress,
	}
}

type stanceInput struct {
	name string
	text string
}

// Classify returns one record per candidate the completer labelled, in
// corpus candidate order. Failed batches are skipped; the error is non-nil
// only when there was nothing to classify or every batch failed.
func (c *StanceClassifier) Classify(ctx context.Context, topic string, corpus *storage.Corpus) ([]storage.StanceRecord, error) {
	keywords := c.table.Keywords(topic)

	var inputs []stanceInput
	for _, name := range corpus.Candidates() {
		relevant := MatchParagraphs(corpus.CandidateParagraphs(name), keywords)
		if len(relevant) == 0 {
			continue
		}
		inputs = append(inputs, stanceInput{name: name, text: strings.Join(relevant, " ")})
	}
	if len(inputs) == 0 {
		return nil, ErrNoStanceInput
	}

	total := (len(inputs) + c.batchSize - 1) / c.batchSize
	var (
		records []storage.StanceRecord
		failed  int
		lastErr error
	)

	for start, n := 0, 0; start < len(inputs); start += c.batchSize {
		n++
		end := start + c.batchSize
		if end > len(inputs) {
			end = len(inputs)
		}
		batch := inputs[start:end]

		reply, err := c.summarizer.Prose(ctx, stanceSystem, stancePrompt(topic, batch), stanceMaxTokens, 0)
		if err != nil {
			failed++
			lastErr = err
			c.logger.Warn().Err(err).Str("topic", topic).Int("batch", n).Msg("Stance batch failed")
		} else {
			records = append(records, c.parseReply(reply, batch)...)
		}

		if c.progress != nil {
			c.progress(n, total, err)
		}
		if ctx.Err() != nil {
			return records, ctx.Err()
		}
	}

	if failed == total {
		return nil, fmt.Errorf("classify stances on %s: every batch failed: %w", topic, lastErr)
	}
	return records, nil
}

func stancePrompt(topic string, batch []stanceInput) string {
	blocks := make([]string, 0, len(batch))
	for _, in := range batch {
		blocks = append(blocks, fmt.Sprintf("%s:\n%s", in.name, in.text))
	}
	return fmt.Sprintf(`Below are statements from political candidates about '%s'.

For each candidate, determine if they SUPPORT, OPPOSE, or express NO CLEAR STANCE on the topic. For each, reply in this format:

Candidate Name: [Stance] - [Brief explanation]

Statements:
%s`, topic, strings.Join(blocks, "\n\n"))
}

// parseReply reads "Name: [Stance] - explanation" lines. Names are matched
// back to the batch so records carry the corpus spelling; lines naming
// anyone else, or with an unknown stance, are dropped.
func (c *StanceClassifier) parseReply(reply string, batch []stanceInput) []storage.StanceRecord {
	names := make(map[string]string, len(batch))
	for _, in := range batch {
		names[batchNameKey(in.name)] = in.name
	}

	seen := make(map[string]bool)
	var out []storage.StanceRecord
	for _, line := range strings.Split(reply, "\n") {
		i := strings.Index(line, ":")
		if i < 0 {
			continue
		}
		name, ok := names[batchNameKey(line[:i])]
		if !ok || seen[name] {
			continue
		}

		rest := strings.TrimSpace(line[i+1:])
		label, reason := rest, ""
		if j := strings.Index(rest, " - "); j >= 0 {
			label, reason = rest[:j], strings.TrimSpace(rest[j+3:])
		}
		stance, ok := storage.ParseStance(label)
		if !ok {
			continue
		}

		seen[name] = true
		out = append(out, storage.StanceRecord{
			Name:   name,
			Stance: stance,
			Reason: reason,
			URL:    CandidateURL(c.urlBase, name),
		})
	}
	return out
}
