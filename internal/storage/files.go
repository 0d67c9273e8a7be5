package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrMissingColumn is returned when a statements CSV lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

// Header aliases accepted in statement files, including the scraped export's
// "Candidate Name", "Text" and "URL" columns.
var (
	nameColumns = []string{"name", "candidate name", "candidate"}
	textColumns = []string{"text", "body", "content"}
	urlColumns  = []string{"source_url", "url", "link"}
)

// LoadStatementsFile loads statements from a .csv or .json file.
func LoadStatementsFile(path string) ([]Statement, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open statements: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadStatementsCSV(f)
	case ".json":
		return ReadStatementsJSON(f)
	default:
		return nil, fmt.Errorf("unsupported statements format: %s", filepath.Ext(path))
	}
}

// ReadStatementsCSV parses a CSV with a header row.
func ReadStatementsCSV(r io.Reader) ([]Statement, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	nameIdx := columnIndex(header, nameColumns)
	textIdx := columnIndex(header, textColumns)
	urlIdx := columnIndex(header, urlColumns)
	if nameIdx < 0 {
		return nil, fmt.Errorf("%w: name", ErrMissingColumn)
	}
	if textIdx < 0 {
		return nil, fmt.Errorf("%w: text", ErrMissingColumn)
	}

	var statements []Statement
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}

		s := Statement{
			Name:     field(rec, nameIdx),
			Text:     field(rec, textIdx),
			Position: len(statements),
		}
		if urlIdx >= 0 {
			s.SourceURL = field(rec, urlIdx)
		}
		statements = append(statements, s)
	}
	return statements, nil
}

type statementRecord struct {
	Name          string `json:"name"`
	CandidateName string `json:"candidate name"`
	Text          string `json:"text"`
	SourceURL     string `json:"source_url"`
	URL           string `json:"url"`
}

// ReadStatementsJSON parses a JSON array of statement objects.
func ReadStatementsJSON(r io.Reader) ([]Statement, error) {
	var records []statementRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode statements: %w", err)
	}

	statements := make([]Statement, 0, len(records))
	for i, rec := range records {
		s := Statement{Name: rec.Name, Text: rec.Text, SourceURL: rec.SourceURL, Position: i}
		if s.Name == "" {
			s.Name = rec.CandidateName
		}
		if s.SourceURL == "" {
			s.SourceURL = rec.URL
		}
		statements = append(statements, s)
	}
	return statements, nil
}

// LoadTopicChunks reads the topic → chunks JSON document. Topic keys are
// lowercased and trimmed.
func LoadTopicChunks(path string) (TopicChunks, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topic chunks: %w", err)
	}

	var raw map[string][]TopicChunk
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse topic chunks: %w", err)
	}

	chunks := make(TopicChunks, len(raw))
	for topic, list := range raw {
		key := strings.ToLower(strings.TrimSpace(topic))
		chunks[key] = append(chunks[key], list...)
	}
	return chunks, nil
}

// LoadStances reads a JSON array of stance records.
func LoadStances(path string) ([]StanceRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stances: %w", err)
	}
	return DecodeStances(data)
}

// DecodeStances parses stance records, normalizing the stance values.
func DecodeStances(data []byte) ([]StanceRecord, error) {
	var records []StanceRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse stances: %w", err)
	}
	for i := range records {
		if s, ok := ParseStance(string(records[i].Stance)); ok {
			records[i].Stance = s
		}
	}
	return records, nil
}

// SortedTopics returns the chunk topics in lexical order.
func SortedTopics(chunks TopicChunks) []string {
	topics := chunks.Topics()
	sort.Strings(topics)
	return topics
}

func columnIndex(header []string, names []string) int {
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		for _, n := range names {
			if h == n {
				return i
			}
		}
	}
	return -1
}

func field(rec []string, i int) string {
	if i < len(rec) {
		return strings.TrimSpace(rec[i])
	}
	return ""
}
