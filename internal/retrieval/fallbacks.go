package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/ballotbot-gg/ballotbot/internal/query"
	"github.com/ballotbot-gg/ballotbot/internal/storage"
)

const (
	noInformationSummary = "Sorry, I couldn't find relevant information on that topic."

	tooLargeSummaryFmt  = "The topic '%s' includes too many sources to summarize. Try a more specific question (e.g., 'active travel in transport')."
	tooLargeFallbackFmt = "The topic '%s' includes too many sources to summarize directly. Please try a more specific question (e.g., 'special needs in schools')."
)

// noteCandidates builds the single-entry guidance list used for oversized topics.
func noteCandidates(format, topic string) Payload {
	return CandidatesPayload(Candidate{Name: "Note", Summary: fmt.Sprintf(format, topic), SourceURL: ""})
}

// lowMentionCandidates lists, sorted by name, the corpus candidates with
// fewer than minMentions statements containing any keyword.
func lowMentionCandidates(corpus *storage.Corpus, topic string, keywords []string, minMentions int, urlBase string) []Candidate {
	counts := corpus.CountMentions(keywords)

	out := make([]Candidate, 0)
	for _, name := range corpus.Candidates() {
		if counts[name] < minMentions {
			out = append(out, Candidate{
				Name:      name,
				Summary:   fmt.Sprintf("No substantial mention of %s.", topic),
				SourceURL: CandidateURL(urlBase, name),
			})
		}
	}
	return out
}

// filterChunks keeps the chunks whose lowercase text contains any keyword.
func filterChunks(chunks []storage.TopicChunk, keywords []string) []storage.TopicChunk {
	var out []storage.TopicChunk
	for _, c := range chunks {
		if query.ContainsAny(strings.ToLower(c.Text), keywords) {
			out = append(out, c)
		}
	}
	return out
}

// keywordSummary scans the whole corpus for keywords and summarizes up to
// topN matched statements per candidate, in first-seen order.
func (r *Router) keywordSummary(ctx context.Context, keywords []string, question string) Payload {
	matches := r.corpus.Match(keywords)
	if len(matches) == 0 {
		return CandidatesPayload(Candidate{Name: "Info", Summary: noInformationSummary, SourceURL: ""})
	}

	out := make([]Candidate, 0, len(matches))
	for _, m := range matches {
		texts := m.Texts
		if len(texts) > r.opts.FallbackTopN {
			texts = texts[:r.opts.FallbackTopN]
		}
		summary := r.summarizer.SummarizeKeywordMatch(ctx, m.Name, strings.Join(texts, " "), question)
		out = append(out, Candidate{
			Name:      m.Name,
			Summary:   summary,
			SourceURL: CandidateURL(r.opts.CandidateURLBase, m.Name),
		})
	}
	return CandidatesPayload(out...)
}
