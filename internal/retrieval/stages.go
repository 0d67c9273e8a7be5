package retrieval

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ballotbot-gg/ballotbot/internal/query"
	"github.com/ballotbot-gg/ballotbot/internal/storage"
	"github.com/ballotbot-gg/ballotbot/internal/topics"
)

// Response type tags.
const (
	TypeNoStanceFound       = "no_stance_found"
	TypeLowMention          = "low_mention_query"
	TypeCachedTopicSummary  = "cached_topic_summary"
	TypeNoTopicChunks       = "no_topic_chunks"
	TypeTopicSummary        = "gpt_topic_summary"
	TypeFilteredSummary     = "gpt_filtered_summary"
	TypeTopicTooLarge       = "fallback_topic_too_large"
	TypeCandidateTopic      = "generated_topic_summary"
	TypeShortFormMatch      = "fallback_short_form_match"
	TypeNoShortMatch        = "no_short_match"
	TypeDirectMatch         = "fallback_direct_match"
	TypeNoCandidateMatch    = "no_candidate_match"
	TypeCachedTopicProse    = "cached_topic_prose"
	TypeFallbackSummary     = "gpt_fallback_summary"
	TypeKeywordTopicSummary = "keyword_gpt_summary"
	TypeKeywordFulltext     = "keyword_fulltext_summary"
	stanceTypePrefix        = "stance_"
)

const phraseClass = `[\p{L}\p{N}_\s\-']`

var (
	stancePattern = regexp.MustCompile(`(?i)\b(who|which candidates)\b\s+(` +
		`supports?|opposes?|opposed\s+to|in\s+favour\s+of|backs?|rejects?|wants?|favours?|` +
		`are\s+against|are\s+for|is\s+against|is\s+for|stands\s+(?:against|for)|` +
		`don't\s+support|do\s+not\s+support|disagree\s+with|doesn't\s+agree\s+with` +
		`)\s+(.*)`)

	lowMentionPattern = regexp.MustCompile(
		`(which|who)\s+(candidates\s+)?(don'?t|do not|rarely|barely|seldom).*?(talk|mention|say).*?\b(about|on)?\b\s+(.+)`)

	// Names and topics keep every letter the normalizer keeps, not just ASCII.
	shortFormPattern = regexp.MustCompile(`^(` + phraseClass + `+?)\s+on\s+(` + phraseClass + `+)$`)

	complexPhrasingPattern = regexp.MustCompile(
		`(?:what does|where does|tell me what)\s+(` + phraseClass + `+?)\s+(?:say|think|stand).*?\b(on|about)?\b\s+(` + phraseClass + `+)`)

	summaryTriggers = []string{
		"what do candidates say", "how do candidates view",
		"what are the candidates", "what is said about",
		"what are the views on", "tell me about", "views on", "tell me candidates' thoughts",
		"summary of", "what do they think", "what do they believe", "what are the candidates' plans",
		"what is their position", "what do they say", "how do they feel about", "what are candidates' ideas",
	}

	positiveStanceWords = []string{"support", "favour", "back", "want", " for"}
)

func (r *Router) buildStages() []Stage {
	return []Stage{
		{Name: "stance", Handle: r.handleStance},
		{Name: "low_mention", Handle: r.handleLowMention},
		{Name: "topic_summary", Handle: r.handleTopicSummary},
		{Name: "candidate_topic", Handle: r.handleCandidateTopic},
		{Name: "short_form", Handle: r.handleShortForm},
		{Name: "complex_phrasing", Handle: r.handleComplexPhrasing},
		{Name: "last_resort_topic", Handle: r.handleLastResortTopic},
		{Name: "keyword_fulltext", Handle: r.handleKeywordFulltext},
	}
}

// handleStance answers "who supports/opposes <topic>" from stance records.
func (r *Router) handleStance(_ context.Context, q *Query) (*Response, error) {
	m := stancePattern.FindStringSubmatch(q.Normalized)
	if m == nil {
		return nil, nil
	}

	topic, ok := r.table.DetectNormalized(m[3])
	if !ok {
		return nil, nil
	}
	records, ok := r.stances.Records(topic)
	if !ok {
		return nil, nil
	}

	want := stancePolarity(m[2])
	primary := formatStances(storage.FilterStances(records, want))
	if len(primary) == 0 {
		return &Response{
			Payload: MessagePayload(fmt.Sprintf("No clear stances found on %s.", r.table.Label(topic))),
			Type:    TypeNoStanceFound,
			Topic:   topic,
		}, nil
	}

	alternate := formatStances(storage.FilterStances(records, want.Opposite()))
	return &Response{
		Payload: StancePayload(primary, alternate),
		Type:    stanceTypePrefix + strings.ReplaceAll(topic, " ", "_"),
		Topic:   topic,
	}, nil
}

// stancePolarity maps the matched verb phrase to the stance listed first.
// Negated support asks for opponents.
func stancePolarity(keyword string) storage.Stance {
	k := " " + strings.ToLower(keyword)
	if strings.Contains(k, "not support") || strings.Contains(k, "don't support") {
		return storage.StanceOppose
	}
	for _, w := range positiveStanceWords {
		if strings.Contains(k, w) {
			return storage.StanceSupport
		}
	}
	return storage.StanceOppose
}

func formatStances(records []storage.StanceRecord) []Candidate {
	out := make([]Candidate, 0, len(records))
	for _, rec := range records {
		out = append(out, Candidate{
			Name:      rec.Name,
			Summary:   fmt.Sprintf("%s - %s", rec.Stance, rec.Reason),
			SourceURL: rec.URL,
		})
	}
	return out
}

// handleLowMention lists candidates who say little or nothing on a topic.
func (r *Router) handleLowMention(_ context.Context, q *Query) (*Response, error) {
	m := lowMentionPattern.FindStringSubmatch(q.Normalized)
	if m == nil {
		return nil, nil
	}

	raw := strings.ToLower(strings.TrimSpace(m[6]))
	topic, ok := r.table.DetectNormalized(raw)
	if !ok {
		topic = raw
	}

	candidates := lowMentionCandidates(r.corpus, topic, r.table.Keywords(topic), r.opts.MinMentions, r.opts.CandidateURLBase)
	return &Response{Payload: CandidatesPayload(candidates...), Type: TypeLowMention, Topic: topic}, nil
}

// handleTopicSummary answers general questions about a topic, from the
// response cache when possible.
func (r *Router) handleTopicSummary(ctx context.Context, q *Query) (*Response, error) {
	if !containsAnyPhrase(q.Normalized, summaryTriggers) {
		return nil, nil
	}
	topic, ok := r.table.DetectNormalized(q.Normalized)
	if !ok {
		return nil, nil
	}

	if p, ok := r.responses.Get(topic); ok {
		return &Response{Payload: p, Type: TypeCachedTopicSummary, Topic: topic}, nil
	}

	chunks := r.chunks[topic]
	if len(chunks) == 0 {
		return &Response{
			Payload: MessagePayload(fmt.Sprintf("No information found on %s.", topic)),
			Type:    TypeNoTopicChunks,
			Topic:   topic,
		}, nil
	}

	if len(chunks) <= r.opts.ChunkThreshold {
		return r.summarizeAndCache(ctx, topic, topic, chunks, TypeTopicSummary)
	}

	keywords := query.ExtractKeywords(q.Normalized)
	filtered := filterChunks(chunks, keywords)
	if len(filtered) == 0 {
		return &Response{Payload: noteCandidates(tooLargeSummaryFmt, topic), Type: TypeTopicTooLarge, Topic: topic}, nil
	}

	key := FilteredKey(topic, keywords)
	if p, ok := r.responses.Get(key); ok {
		return &Response{Payload: p, Type: TypeCachedTopicSummary, Topic: topic}, nil
	}
	return r.summarizeAndCache(ctx, key, topic, filtered, TypeFilteredSummary)
}

// handleCandidateTopic answers "what does <candidate> say about <topic>".
func (r *Router) handleCandidateTopic(ctx context.Context, q *Query) (*Response, error) {
	if !strings.Contains(q.Normalized, "what does") || !strings.Contains(q.Normalized, "say about") {
		return nil, nil
	}

	parts := strings.SplitN(q.Normalized, "say about", 2)
	name := strings.TrimSpace(strings.ReplaceAll(parts[0], "what does", ""))
	topic := topics.NormalizeTopic(parts[1])
	if !r.table.Has(topic) {
		if detected, ok := r.table.DetectNormalized(topic); ok {
			topic = detected
		}
	}

	display := name
	if canonical, ok := r.corpus.CandidateName(name); ok {
		display = canonical
	}

	summary := r.summarizer.SummarizeCandidateTopic(ctx, display, topic, r.table.Keywords(topic), r.corpus.CandidateParagraphs(name))
	return &Response{
		Payload: CandidatesPayload(Candidate{
			Name:      display,
			Summary:   summary,
			SourceURL: CandidateURL(r.opts.CandidateURLBase, display),
		}),
		Type:  TypeCandidateTopic,
		Topic: topic,
	}, nil
}

// handleShortForm answers "<candidate> on <topic>" from the topic chunks.
func (r *Router) handleShortForm(_ context.Context, q *Query) (*Response, error) {
	m := shortFormPattern.FindStringSubmatch(q.Normalized)
	if m == nil {
		return nil, nil
	}
	return r.lookupCandidate(m[1], m[2], TypeShortFormMatch, TypeNoShortMatch), nil
}

// handleComplexPhrasing answers "what does/where does/tell me what <candidate>
// say/think/stand on <topic>" from the topic chunks.
func (r *Router) handleComplexPhrasing(_ context.Context, q *Query) (*Response, error) {
	m := complexPhrasingPattern.FindStringSubmatch(q.Normalized)
	if m == nil {
		return nil, nil
	}
	return r.lookupCandidate(m[1], m[3], TypeDirectMatch, TypeNoCandidateMatch), nil
}

func (r *Router) lookupCandidate(rawName, rawTopic, hitType, missType string) *Response {
	name := strings.TrimSpace(rawName)
	topic := r.resolveTopic(rawTopic)

	if c, ok := r.chunks.FindCandidate(topic, name); ok {
		summary := c.Summary
		if strings.TrimSpace(summary) == "" {
			summary = c.Text
		}
		return &Response{
			Payload: CandidatesPayload(Candidate{
				Name:      c.Name,
				Summary:   summary,
				SourceURL: CandidateURL(r.opts.CandidateURLBase, c.Name),
			}),
			Type:  hitType,
			Topic: topic,
		}
	}

	return &Response{
		Payload: CandidatesPayload(Candidate{
			Name:      name,
			Summary:   fmt.Sprintf("No specific statement found on %s.", topic),
			SourceURL: CandidateURL(r.opts.CandidateURLBase, name),
		}),
		Type:  missType,
		Topic: topic,
	}
}

// resolveTopic detects a topic in raw, falling back to raw itself.
func (r *Router) resolveTopic(raw string) string {
	if topic, ok := r.table.DetectNormalized(raw); ok {
		return topic
	}
	return topics.NormalizeTopic(raw)
}

// handleLastResortTopic summarizes the chunks of any topic found in the
// query. A topic without chunks is handed to the keyword stage.
func (r *Router) handleLastResortTopic(ctx context.Context, q *Query) (*Response, error) {
	topic, ok := r.table.DetectNormalized(q.Normalized)
	if !ok {
		return nil, nil
	}

	chunks := r.chunks[topic]
	if len(chunks) == 0 {
		q.FallbackTopic = topic
		return nil, nil
	}

	if prose, ok := r.summaries.Get(topic); ok {
		return &Response{Payload: MessagePayload(prose), Type: TypeCachedTopicProse, Topic: topic}, nil
	}

	if len(chunks) > r.opts.ChunkThreshold {
		return &Response{Payload: noteCandidates(tooLargeFallbackFmt, topic), Type: TypeTopicTooLarge, Topic: topic}, nil
	}

	summary := r.summarizer.SummarizeChunks(ctx, topic, chunks)
	return &Response{Payload: CandidatesPayload(summary.Candidates...), Type: TypeFallbackSummary, Topic: topic}, nil
}

// handleKeywordFulltext is terminal: it always produces a response.
func (r *Router) handleKeywordFulltext(ctx context.Context, q *Query) (*Response, error) {
	if q.FallbackTopic != "" {
		return &Response{
			Payload: r.keywordSummary(ctx, r.table.Keywords(q.FallbackTopic), q.Raw),
			Type:    TypeKeywordTopicSummary,
			Topic:   q.FallbackTopic,
		}, nil
	}

	return &Response{
		Payload: r.keywordSummary(ctx, query.ExtractKeywords(q.Raw), q.Raw),
		Type:    TypeKeywordFulltext,
	}, nil
}

func containsAnyPhrase(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
