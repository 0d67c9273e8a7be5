package query

import "strings"

var stopwords = map[string]bool{
	"what": true, "does": true, "do": true, "say": true, "think": true,
	"about": true, "on": true, "the": true, "is": true, "candidates": true,
	"candidate": true, "view": true, "views": true, "opinions": true,
	"are": true, "their": true, "position": true, "they": true,
}

// ExtractKeywords tokenizes text into lowercase words and drops question
// filler. Order and duplicates are preserved.
func ExtractKeywords(text string) []string {
	tokens := wordPattern.FindAllString(strings.ToLower(text), -1)
	keywords := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if !stopwords[tok] {
			keywords = append(keywords, tok)
		}
	}
	return keywords
}

// ContainsAny reports whether lowered contains any of the keywords as a substring.
func ContainsAny(lowered string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}
