// Package query canonicalizes raw user questions before routing.
package query

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	punctuationReplacer = strings.NewReplacer(
		"’", "'", // right single quote
		"‘", "'", // left single quote
		"“", `"`,
		"”", `"`,
		"–", "-", // en dash
		"—", "-", // em dash
	)

	// Everything except word characters, whitespace, apostrophes and hyphens.
	disallowedChars = regexp.MustCompile(`[^\p{L}\p{N}_\s\p{Zs}'\-]`)

	wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)
)

// Normalize lowercases raw, straightens curly quotes and dashes, strips
// punctuation other than apostrophes and hyphens, and collapses the filler
// word " the ". Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string) string {
	s := strings.ToLower(raw)
	s = punctuationReplacer.Replace(s)
	s = disallowedChars.ReplaceAllString(s, "")

	// A single pass leaves "a the the b" as "a the b".
	for strings.Contains(s, " the ") {
		s = strings.ReplaceAll(s, " the ", " ")
	}
	return s
}

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
