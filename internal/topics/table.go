// Package topics holds the canonical policy topic table and the alias-based
// topic detector used by the routing cascade.
package topics

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownTopic is returned when a topic name is not in the table.
var ErrUnknownTopic = errors.New("unknown topic")

// Topic is a canonical policy category with its surface-form aliases.
type Topic struct {
	Name    string   `yaml:"name" json:"name"`
	Label   string   `yaml:"label" json:"label"`
	Aliases []string `yaml:"aliases" json:"aliases"`
}

// Table is an ordered, immutable set of topics. Detection walks it in
// declaration order and the first match wins.
type Table struct {
	topics []Topic
	index  map[string]int
}

// NewTable builds a table from topics, lowercasing names and aliases.
func NewTable(topics []Topic) (*Table, error) {
	t := &Table{
		topics: make([]Topic, 0, len(topics)),
		index:  make(map[string]int, len(topics)),
	}

	for _, tp := range topics {
		name := strings.ToLower(strings.TrimSpace(tp.Name))
		if name == "" {
			return nil, errors.New("topic with empty name")
		}
		if _, dup := t.index[name]; dup {
			return nil, fmt.Errorf("duplicate topic %q", name)
		}

		aliases := make([]string, 0, len(tp.Aliases))
		for _, a := range tp.Aliases {
			a = strings.ToLower(strings.TrimSpace(a))
			if a == "" || a == "*" {
				continue
			}
			aliases = append(aliases, a)
		}

		label := tp.Label
		if label == "" {
			label = name
		}

		t.index[name] = len(t.topics)
		t.topics = append(t.topics, Topic{Name: name, Label: label, Aliases: aliases})
	}

	return t, nil
}

type tableFile struct {
	Topics []Topic `yaml:"topics"`
}

// LoadTable reads an ordered topic table from a YAML file.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topic table: %w", err)
	}

	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse topic table: %w", err)
	}
	if len(f.Topics) == 0 {
		return nil, fmt.Errorf("topic table %s has no topics", path)
	}

	return NewTable(f.Topics)
}

// Topics returns a copy of the table in detection order.
func (t *Table) Topics() []Topic {
	out := make([]Topic, len(t.topics))
	copy(out, t.topics)
	return out
}

// Names returns canonical topic names in detection order.
func (t *Table) Names() []string {
	names := make([]string, len(t.topics))
	for i, tp := range t.topics {
		names[i] = tp.Name
	}
	return names
}

// Lookup returns the topic with the given canonical name.
func (t *Table) Lookup(name string) (Topic, bool) {
	i, ok := t.index[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Topic{}, false
	}
	return t.topics[i], true
}

// Has reports whether name is a canonical topic.
func (t *Table) Has(name string) bool {
	_, ok := t.Lookup(name)
	return ok
}

// Label returns the display label for a topic, or the name itself.
func (t *Table) Label(name string) string {
	if tp, ok := t.Lookup(name); ok {
		return tp.Label
	}
	return name
}

// Keywords returns the lowercased alias keywords for topic, with prefix
// markers removed. Unknown topics yield the topic itself as the only keyword.
func (t *Table) Keywords(topic string) []string {
	tp, ok := t.Lookup(topic)
	if !ok || len(tp.Aliases) == 0 {
		return []string{strings.ToLower(strings.TrimSpace(topic))}
	}

	keywords := make([]string, len(tp.Aliases))
	for i, a := range tp.Aliases {
		keywords[i] = strings.TrimSuffix(a, "*")
	}
	return keywords
}

// Conflict reports an alias claimed more than once, either by several topics
// or repeatedly by the same topic.
type Conflict struct {
	Alias  string   `json:"alias"`
	Topics []string `json:"topics"`
}

func (c Conflict) String() string {
	return fmt.Sprintf("alias %q claimed by %s", c.Alias, strings.Join(c.Topics, ", "))
}

// Validate returns every alias that is not unique across the table, sorted
// by alias. A topic name counts as an alias of its own topic.
func (t *Table) Validate() []Conflict {
	owners := make(map[string][]string)
	for _, tp := range t.topics {
		owners[tp.Name] = append(owners[tp.Name], tp.Name)
		for _, a := range tp.Aliases {
			a = strings.TrimSuffix(a, "*")
			if a == tp.Name {
				continue
			}
			owners[a] = append(owners[a], tp.Name)
		}
	}

	var conflicts []Conflict
	for alias, names := range owners {
		if len(names) > 1 {
			conflicts = append(conflicts, Conflict{Alias: alias, Topics: names})
		}
	}
	sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].Alias < conflicts[j].Alias })
	return conflicts
}

// CheckTopics returns ErrUnknownTopic if any name is missing from the table.
func (t *Table) CheckTopics(names []string) error {
	var missing []string
	for _, n := range names {
		if !t.Has(n) {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: %s", ErrUnknownTopic, strings.Join(missing, ", "))
	}
	return nil
}
