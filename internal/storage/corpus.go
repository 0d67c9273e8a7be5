package storage

import (
	"sort"
	"strings"
)

// Corpus is the read-only candidate statement set with a lowercase,
// paragraph-split index built once at load time.
type Corpus struct {
	statements  []Statement
	lowered     []string
	paragraphs  [][]string
	byCandidate map[string][]int
	names       map[string]string
	candidates  []string
}

// CandidateMatch groups the statements of one candidate that matched a scan.
type CandidateMatch struct {
	Name  string
	Texts []string
}

// NewCorpus indexes statements. Statements without a candidate name are dropped.
func NewCorpus(statements []Statement) *Corpus {
	c := &Corpus{
		byCandidate: make(map[string][]int),
		names:       make(map[string]string),
	}

	for _, s := range statements {
		s.Name = strings.TrimSpace(s.Name)
		if s.Name == "" {
			continue
		}
		key := strings.ToLower(s.Name)
		if _, seen := c.names[key]; !seen {
			c.names[key] = s.Name
			c.candidates = append(c.candidates, s.Name)
		}
		s.Name = c.names[key]

		i := len(c.statements)
		c.statements = append(c.statements, s)
		c.lowered = append(c.lowered, strings.ToLower(s.Text))
		c.paragraphs = append(c.paragraphs, splitParagraphs(s.Text))
		c.byCandidate[key] = append(c.byCandidate[key], i)
	}

	sort.Strings(c.candidates)
	return c
}

// Len returns the number of indexed statements.
func (c *Corpus) Len() int {
	return len(c.statements)
}

// Statements returns the indexed statements in load order.
func (c *Corpus) Statements() []Statement {
	out := make([]Statement, len(c.statements))
	copy(out, c.statements)
	return out
}

// Candidates returns the distinct candidate names, sorted.
func (c *Corpus) Candidates() []string {
	out := make([]string, len(c.candidates))
	copy(out, c.candidates)
	return out
}

// CandidateName resolves name case-insensitively to the name used in the corpus.
func (c *Corpus) CandidateName(name string) (string, bool) {
	n, ok := c.names[strings.ToLower(strings.TrimSpace(name))]
	return n, ok
}

// CandidateParagraphs returns the non-empty paragraphs of every statement by
// the named candidate, in load order.
func (c *Corpus) CandidateParagraphs(name string) []string {
	var out []string
	for _, i := range c.byCandidate[strings.ToLower(strings.TrimSpace(name))] {
		out = append(out, c.paragraphs[i]...)
	}
	return out
}

// CountMentions returns, for every candidate, the number of statements whose
// text contains any of the lowercase keywords as a substring.
func (c *Corpus) CountMentions(keywords []string) map[string]int {
	counts := make(map[string]int, len(c.candidates))
	for _, name := range c.candidates {
		counts[name] = 0
	}
	for i, text := range c.lowered {
		if containsAny(text, keywords) {
			counts[c.statements[i].Name]++
		}
	}
	return counts
}

// Match scans every statement for any of the lowercase keywords and groups
// the matching texts by candidate in first-seen order.
func (c *Corpus) Match(keywords []string) []CandidateMatch {
	var matches []CandidateMatch
	pos := make(map[string]int)

	for i, text := range c.lowered {
		if !containsAny(text, keywords) {
			continue
		}
		name := c.statements[i].Name
		j, ok := pos[name]
		if !ok {
			j = len(matches)
			pos[name] = j
			matches = append(matches, CandidateMatch{Name: name})
		}
		matches[j].Texts = append(matches[j].Texts, c.statements[i].Text)
	}
	return matches
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func splitParagraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(text, "\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
