package retrieval

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DefaultCandidateURLBase is the public profile root for candidates.
const DefaultCandidateURLBase = "https://election2025.gg/candidates"

// CorruptedCacheMessage replaces a cached value that cannot be decoded.
const CorruptedCacheMessage = "⚠️ Corrupted cached response."

// Candidate is one row of a candidates or stance payload.
type Candidate struct {
	Name      string `json:"name"`
	Summary   string `json:"summary"`
	SourceURL string `json:"source_url"`
}

// PayloadKind tags the three response shapes.
type PayloadKind int

const (
	KindMessage PayloadKind = iota
	KindCandidates
	KindStance
)

func (k PayloadKind) String() string {
	switch k {
	case KindCandidates:
		return "candidates"
	case KindStance:
		return "stance"
	default:
		return "message"
	}
}

// Payload is the tagged union returned by every cascade stage. It marshals to
// {"candidates": [...]}, {"primary": [...], "alternate": [...]} or a plain
// JSON string.
type Payload struct {
	Kind       PayloadKind
	Candidates []Candidate
	Primary    []Candidate
	Alternate  []Candidate
	Message    string
}

// CandidatesPayload builds a candidates payload.
func CandidatesPayload(candidates ...Candidate) Payload {
	if candidates == nil {
		candidates = []Candidate{}
	}
	return Payload{Kind: KindCandidates, Candidates: candidates}
}

// StancePayload builds a primary/alternate payload.
func StancePayload(primary, alternate []Candidate) Payload {
	if primary == nil {
		primary = []Candidate{}
	}
	if alternate == nil {
		alternate = []Candidate{}
	}
	return Payload{Kind: KindStance, Primary: primary, Alternate: alternate}
}

// MessagePayload builds an informational message payload.
func MessagePayload(text string) Payload {
	return Payload{Kind: KindMessage, Message: text}
}

type candidatesJSON struct {
	Candidates []Candidate `json:"candidates"`
}

type stanceJSON struct {
	Primary   []Candidate `json:"primary"`
	Alternate []Candidate `json:"alternate"`
}

// MarshalJSON implements json.Marshaler.
func (p Payload) MarshalJSON() ([]byte, error) {
	switch p.Kind {
	case KindCandidates:
		c := p.Candidates
		if c == nil {
			c = []Candidate{}
		}
		return json.Marshal(candidatesJSON{Candidates: c})
	case KindStance:
		s := StancePayload(p.Primary, p.Alternate)
		return json.Marshal(stanceJSON{Primary: s.Primary, Alternate: s.Alternate})
	default:
		return json.Marshal(p.Message)
	}
}

// UnmarshalJSON implements json.Unmarshaler for the wire shapes. A JSON
// string is a message; undecodable input is an error.
func (p *Payload) UnmarshalJSON(data []byte) error {
	decoded, err := decodePayload(data, 1)
	if err != nil {
		return err
	}
	*p = decoded
	return nil
}

// Text renders the payload as plain text, one candidate per paragraph.
func (p Payload) Text() string {
	switch p.Kind {
	case KindCandidates:
		return renderCandidates(p.Candidates)
	case KindStance:
		var sb strings.Builder
		sb.WriteString(renderCandidates(p.Primary))
		if len(p.Alternate) > 0 {
			sb.WriteString("\n\nOn the other side:\n\n")
			sb.WriteString(renderCandidates(p.Alternate))
		}
		return sb.String()
	default:
		return p.Message
	}
}

func renderCandidates(cs []Candidate) string {
	parts := make([]string, 0, len(cs))
	for _, c := range cs {
		parts = append(parts, fmt.Sprintf("%s: %s", c.Name, c.Summary))
	}
	return strings.Join(parts, "\n\n")
}

var errUndecodable = errors.New("undecodable payload")

// DecodePayload coerces a stored value into a Payload. JSON strings holding
// JSON are decoded again, arrays become candidate lists, and objects are
// recognised by their candidates, primary or message keys. Anything else
// yields the corrupted-cache message.
func DecodePayload(raw json.RawMessage) Payload {
	p, err := decodePayload(raw, 0)
	if err != nil {
		return MessagePayload(CorruptedCacheMessage)
	}
	return p
}

func decodePayload(raw []byte, depth int) (Payload, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Payload{}, errUndecodable
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Payload{}, err
		}
		if depth == 0 {
			// Legacy entries stored the response document as a string.
			return decodePayload([]byte(s), depth+1)
		}
		return MessagePayload(s), nil

	case '[':
		var cs []Candidate
		if err := json.Unmarshal(raw, &cs); err != nil {
			return Payload{}, err
		}
		return CandidatesPayload(cs...), nil

	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return Payload{}, err
		}
		if v, ok := obj["candidates"]; ok {
			return decodeCandidatesField(v)
		}
		if v, ok := obj["primary"]; ok {
			var primary, alternate []Candidate
			if err := json.Unmarshal(v, &primary); err != nil {
				return Payload{}, err
			}
			if alt, ok := obj["alternate"]; ok {
				if err := json.Unmarshal(alt, &alternate); err != nil {
					return Payload{}, err
				}
			}
			return StancePayload(primary, alternate), nil
		}
		if v, ok := obj["message"]; ok {
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return Payload{}, err
			}
			return MessagePayload(s), nil
		}
	}

	return Payload{}, errUndecodable
}

// decodeCandidatesField accepts either a candidate array or the prose string
// older summaries stored under "candidates".
func decodeCandidatesField(v json.RawMessage) (Payload, error) {
	v = bytes.TrimSpace(v)
	if len(v) > 0 && v[0] == '"' {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return Payload{}, err
		}
		return MessagePayload(s), nil
	}
	var cs []Candidate
	if err := json.Unmarshal(v, &cs); err != nil {
		return Payload{}, err
	}
	return CandidatesPayload(cs...), nil
}

// Response is the routed answer: a payload, the tag of the stage that
// produced it and the resolved topic, if any.
type Response struct {
	Payload Payload `json:"response"`
	Type    string  `json:"type"`
	Topic   string  `json:"topic,omitempty"`
}

// ExceptionType tags responses produced by the error boundary.
const ExceptionType = "exception"

// ErrorBody is the JSON document returned for a failed route.
type ErrorBody struct {
	Response string `json:"response"`
	Type     string `json:"type"`
}

// NewErrorBody wraps err in the exception document.
func NewErrorBody(err error) ErrorBody {
	return ErrorBody{Response: fmt.Sprintf("An error occurred: %v", err), Type: ExceptionType}
}

// CandidateURL returns base + "/" + the slug of name, where the slug is the
// trimmed, lowercased name with spaces replaced by hyphens.
func CandidateURL(base, name string) string {
	if base == "" {
		base = DefaultCandidateURLBase
	}
	slug := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
	return strings.TrimRight(base, "/") + "/" + slug
}
