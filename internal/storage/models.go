// Package storage provides the candidate statement corpus, precomputed topic
// chunks and stance records, plus their file and SQL backed loaders.
package storage

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Statement is one corpus record: a candidate's text from one source document.
// Candidate names are not unique; a candidate may have many statements.
type Statement struct {
	ID        uuid.UUID `json:"id,omitempty"`
	Name      string    `json:"name"`
	Text      string    `json:"text"`
	SourceURL string    `json:"source_url,omitempty"`
	Position  int       `json:"-"`
	CreatedAt time.Time `json:"-"`
}

// TopicChunk is a precomputed excerpt of a candidate's text tagged with a topic.
type TopicChunk struct {
	Name      string `json:"name"`
	Text      string `json:"text"`
	Summary   string `json:"summary,omitempty"`
	SourceURL string `json:"source_url,omitempty"`
}

// TopicChunks maps a canonical topic to its ordered chunks.
type TopicChunks map[string][]TopicChunk

// Topics returns the topic keys present in the chunk set.
func (tc TopicChunks) Topics() []string {
	keys := make([]string, 0, len(tc))
	for k := range tc {
		keys = append(keys, k)
	}
	return keys
}

// FindCandidate returns the first chunk for topic whose name equals name,
// ignoring case and surrounding whitespace.
func (tc TopicChunks) FindCandidate(topic, name string) (TopicChunk, bool) {
	want := strings.ToLower(strings.TrimSpace(name))
	for _, c := range tc[topic] {
		if strings.ToLower(strings.TrimSpace(c.Name)) == want {
			return c, true
		}
	}
	return TopicChunk{}, false
}

// Stance is a binary policy position with an explicit "no clear stance" value
// produced by offline classification.
type Stance string

const (
	StanceSupport Stance = "SUPPORT"
	StanceOppose  Stance = "OPPOSE"
	StanceUnclear Stance = "NO CLEAR STANCE"
)

// ParseStance maps free-form classifier output onto a Stance.
func ParseStance(s string) (Stance, bool) {
	s = strings.ToUpper(strings.TrimSpace(strings.Trim(s, "[]*")))
	switch {
	case strings.HasPrefix(s, "SUPPORT"):
		return StanceSupport, true
	case strings.HasPrefix(s, "OPPOSE"):
		return StanceOppose, true
	case strings.HasPrefix(s, "NO CLEAR"), s == "UNCLEAR", s == "NEUTRAL":
		return StanceUnclear, true
	default:
		return "", false
	}
}

// Opposite returns the other binary polarity. StanceUnclear has none.
func (s Stance) Opposite() Stance {
	switch s {
	case StanceSupport:
		return StanceOppose
	case StanceOppose:
		return StanceSupport
	default:
		return ""
	}
}

// StanceRecord is a precomputed stance classification for one candidate.
type StanceRecord struct {
	Name   string `json:"name"`
	Stance Stance `json:"stance"`
	Reason string `json:"reason"`
	URL    string `json:"url,omitempty"`
}

// FilterStances returns the records with the given stance, preserving order.
func FilterStances(records []StanceRecord, stance Stance) []StanceRecord {
	var out []StanceRecord
	for _, r := range records {
		if r.Stance == stance {
			out = append(out, r)
		}
	}
	return out
}
