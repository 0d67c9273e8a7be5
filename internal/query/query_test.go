package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase and strip question mark", "Who supports GST?", "who supports gst"},
		{"curly apostrophe", "What’s Jane’s view", "what's jane's view"},
		{"dashes", "island–wide — voting", "island-wide - voting"},
		{"curly double quotes removed", "“housing” policy", "housing policy"},
		{"the collapsed", "what do candidates say about the economy", "what do candidates say about economy"},
		{"repeated the", "a the the b", "a b"},
		{"leading the kept", "the housing crisis", "the housing crisis"},
		{"plus sign stripped", "GST+ now!", "gst now"},
		{"unicode letters kept", "Café policy", "café policy"},
		{"empty", "", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.in))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"Who supports GST?",
		"a the the the b",
		"What do candidates say about THE the housing?!",
		"’‘“”–—",
		"İstanbul the  the  x",
		"tabs\tand\nnewlines the end",
		"   the   ",
		"don't — won't",
	}

	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestExtractKeywords(t *testing.T) {
	assert.Equal(t,
		[]string{"active", "travel", "in", "transport"},
		ExtractKeywords("What do candidates think about active travel in transport?"))

	assert.Equal(t, []string{"plans"}, ExtractKeywords("What are the candidates' plans"))
	assert.Equal(t, []string{"don", "t", "care"}, ExtractKeywords("don't care"))

	assert.Empty(t, ExtractKeywords("What do they say about?"))
}

func TestContainsAny(t *testing.T) {
	assert.True(t, ContainsAny("we will build homes", []string{"housing", "homes"}))
	assert.False(t, ContainsAny("nothing here", []string{"housing", ""}))
	assert.False(t, ContainsAny("anything", nil))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "héllo", Truncate("héllo wörld", 5))
	assert.Equal(t, "short", Truncate("short", 300))
	assert.Equal(t, "", Truncate("x", 0))
}
