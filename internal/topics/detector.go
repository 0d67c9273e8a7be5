package topics

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Detect returns the first topic, in table order, whose name or any alias
// occurs in text. Matching is case-insensitive and whole-word; an alias
// ending in "*" matches any word starting with it. A miss returns ("", false).
func (t *Table) Detect(text string) (string, bool) {
	haystack := strings.ToLower(text)
	if strings.TrimSpace(haystack) == "" {
		return "", false
	}

	for _, tp := range t.topics {
		if containsTerm(haystack, tp.Name) {
			return tp.Name, true
		}
		for _, alias := range tp.Aliases {
			if containsTerm(haystack, alias) {
				return tp.Name, true
			}
		}
	}
	return "", false
}

// DetectNormalized runs Detect and applies NormalizeTopic to the result.
func (t *Table) DetectNormalized(text string) (string, bool) {
	topic, ok := t.Detect(text)
	if !ok {
		return "", false
	}
	return NormalizeTopic(topic), true
}

// NormalizeTopic lowercases and trims a topic string and strips a leading "the ".
func NormalizeTopic(topic string) string {
	topic = strings.ToLower(strings.TrimSpace(topic))
	return strings.TrimPrefix(topic, "the ")
}

// containsTerm reports whether term occurs in haystack on word boundaries.
// Both arguments must already be lowercase.
func containsTerm(haystack, term string) bool {
	prefix := strings.HasSuffix(term, "*")
	if prefix {
		term = strings.TrimSuffix(term, "*")
	}
	if term == "" {
		return false
	}

	for offset := 0; offset < len(haystack); {
		i := strings.Index(haystack[offset:], term)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(term)

		if boundaryBefore(haystack, start, term) && (prefix || boundaryAfter(haystack, end, term)) {
			return true
		}

		_, size := utf8.DecodeRuneInString(haystack[start:])
		offset = start + size
	}
	return false
}

// A boundary is only required where the term itself starts or ends with a
// word character, mirroring \b semantics.
func boundaryBefore(s string, start int, term string) bool {
	first, _ := utf8.DecodeRuneInString(term)
	if !isWordRune(first) || start == 0 {
		return true
	}
	prev, _ := utf8.DecodeLastRuneInString(s[:start])
	return !isWordRune(prev)
}

func boundaryAfter(s string, end int, term string) bool {
	last, _ := utf8.DecodeLastRuneInString(term)
	if !isWordRune(last) || end >= len(s) {
		return true
	}
	next, _ := utf8.DecodeRuneInString(s[end:])
	return !isWordRune(next)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
