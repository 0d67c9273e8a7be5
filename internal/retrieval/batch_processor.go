package retrieval

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ballotbot-gg/ballotbot/internal/llm"
	"github.com/ballotbot-gg/ballotbot/internal/storage"
)

const batchSystem = "You summarize candidate views by individual."

var (
	blankLine     = regexp.MustCompile(`\n\s*\n`)
	namePunctTrim = regexp.MustCompile(`^[\s\-*#>\d.)]+|[\s*#]+$`)
)

// summarizeBatches sends chunks to the completer batch_size at a time,
// sequentially. Candidates missing from a reply fall back to truncated source
// text; a failed batch marks each of its candidates with ErrorNote.
func (s *Summarizer) summarizeBatches(ctx context.Context, topic string, chunks []storage.TopicChunk) ChunkSummary {
	out := ChunkSummary{Candidates: make([]Candidate, 0, len(chunks))}

	for start := 0; start < len(chunks); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		reply, err := s.complete(ctx, llm.Request{
			System:      batchSystem,
			Prompt:      batchPrompt(topic, batch),
			Temperature: s.cfg.Temperature,
		})
		if err != nil {
			s.logger.Warn().
				Err(err).
				Str("topic", topic).
				Int("batch", start/s.cfg.BatchSize+1).
				Msg("Batch summary failed")
			for _, c := range batch {
				out.Candidates = append(out.Candidates, Candidate{Name: c.Name, Summary: ErrorNote, SourceURL: s.sourceURL(c)})
			}
			out.Degraded += len(batch)
			continue
		}

		parsed := parseBatchReply(reply)
		for _, c := range batch {
			summary, ok := parsed[batchNameKey(c.Name)]
			if !ok {
				summary = truncateFallback(c.Text)
				out.Degraded++
			}
			out.Candidates = append(out.Candidates, Candidate{Name: c.Name, Summary: summary, SourceURL: s.sourceURL(c)})
		}
	}

	return out
}

func batchPrompt(topic string, batch []storage.TopicChunk) string {
	blocks := make([]string, 0, len(batch))
	for _, c := range batch {
		blocks = append(blocks, fmt.Sprintf("%s: %s", c.Name, strings.TrimSpace(c.Text)))
	}
	return fmt.Sprintf(
		"Please summarize each of the following political candidate's positions on '%s' individually and clearly. "+
			"Reply with one paragraph per candidate in the form 'Candidate Name: summary', separated by blank lines.\n\n%s",
		topic, strings.Join(blocks, "\n\n"))
}

// parseBatchReply splits a reply on blank lines and each paragraph on its
// first colon, keyed by the normalized candidate name.
func parseBatchReply(reply string) map[string]string {
	out := make(map[string]string)
	for _, block := range blankLine.Split(strings.TrimSpace(reply), -1) {
		i := strings.Index(block, ":")
		if i < 0 {
			continue
		}
		key := batchNameKey(block[:i])
		text := strings.TrimSpace(strings.TrimLeft(block[i+1:], "*"))
		if key == "" || text == "" {
			continue
		}
		if _, dup := out[key]; !dup {
			out[key] = text
		}
	}
	return out
}

// batchNameKey strips list markers and emphasis from a name and lowercases it.
func batchNameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(namePunctTrim.ReplaceAllString(name, "")))
}
