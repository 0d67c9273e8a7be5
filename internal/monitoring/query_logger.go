// Package monitoring records routed queries and exposes routing metrics.
package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ballotbot-gg/ballotbot/internal/cache"
	"github.com/ballotbot-gg/ballotbot/internal/observability"
	"github.com/ballotbot-gg/ballotbot/internal/query"
)

const (
	responsePreviewRunes = 300
	defaultMaxEntries    = 5000
	defaultListKey       = "query_log"
	unknownTopic         = "unknown"
)

// QueryEntry is one routed query.
type QueryEntry struct {
	ID        uuid.UUID `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Query     string    `json:"query"`
	Response  string    `json:"response"`
	Topic     string    `json:"topic"`
	Type      string    `json:"type"`
}

// QueryLogOptions selects the sinks beyond the structured log.
type QueryLogOptions struct {
	// Path of the JSON file sink. Empty disables it.
	Path string
	// List receives entries when set, e.g. a RedisClient.
	List       cache.ListClient
	ListKey    string
	MaxEntries int
}

// QueryLogger fans query entries out to the structured log, a JSON file and
// an optional bounded list.
type QueryLogger struct {
	logger *observability.Logger
	opts   QueryLogOptions

	fileMu sync.Mutex
}

// NewQueryLogger creates a query logger.
func NewQueryLogger(logger *observability.Logger, opts QueryLogOptions) *QueryLogger {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = defaultMaxEntries
	}
	if opts.ListKey == "" {
		opts.ListKey = defaultListKey
	}
	return &QueryLogger{
		logger: logger.WithComponent("query_log"),
		opts:   opts,
	}
}

// Record stores entry in every sink. Sink failures are logged and swallowed.
func (q *QueryLogger) Record(ctx context.Context, entry QueryEntry) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	entry.Timestamp = entry.Timestamp.UTC()
	if entry.Topic == "" {
		entry.Topic = unknownTopic
	}
	entry.Response = query.Truncate(entry.Response, responsePreviewRunes)

	q.logger.Info().
		Str("query_id", entry.ID.String()).
		Str("query", entry.Query).
		Str("topic", entry.Topic).
		Str("type", entry.Type).
		Time("routed_at", entry.Timestamp).
		Msg("Query routed")

	if q.opts.Path != "" {
		if err := q.appendFile(entry); err != nil {
			q.logger.Warn().Err(err).Str("path", q.opts.Path).Msg("Failed to write query log file")
		}
	}

	if q.opts.List != nil {
		data, err := json.Marshal(entry)
		if err == nil {
			err = q.opts.List.PushBounded(ctx, q.opts.ListKey, data, q.opts.MaxEntries)
		}
		if err != nil {
			q.logger.Warn().Err(err).Msg("Failed to push query log entry")
		}
	}
}

// Recent returns up to n of the newest entries, preferring the list sink.
func (q *QueryLogger) Recent(ctx context.Context, n int) ([]QueryEntry, error) {
	if n <= 0 {
		return []QueryEntry{}, nil
	}

	if q.opts.List != nil {
		items, err := q.opts.List.Range(ctx, q.opts.ListKey, n)
		if err != nil {
			return nil, fmt.Errorf("read query log list: %w", err)
		}
		entries := make([]QueryEntry, 0, len(items))
		for _, item := range items {
			var e QueryEntry
			if err := json.Unmarshal(item, &e); err != nil {
				continue
			}
			entries = append(entries, e)
		}
		return entries, nil
	}

	if q.opts.Path == "" {
		return []QueryEntry{}, nil
	}

	q.fileMu.Lock()
	entries, err := q.readFile()
	q.fileMu.Unlock()
	if err != nil {
		return nil, err
	}
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}

func (q *QueryLogger) appendFile(entry QueryEntry) error {
	q.fileMu.Lock()
	defer q.fileMu.Unlock()

	entries, err := q.readFile()
	if err != nil {
		q.logger.Warn().Err(err).Str("path", q.opts.Path).Msg("Query log file unreadable, starting fresh")
		entries = nil
	}

	entries = append([]QueryEntry{entry}, entries...)
	if len(entries) > q.opts.MaxEntries {
		entries = entries[:q.opts.MaxEntries]
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode query log: %w", err)
	}

	dir := filepath.Dir(q.opts.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create query log dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(q.opts.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp query log: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write query log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close query log: %w", err)
	}
	return os.Rename(tmp.Name(), q.opts.Path)
}

func (q *QueryLogger) readFile() ([]QueryEntry, error) {
	data, err := os.ReadFile(q.opts.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read query log: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var entries []QueryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode query log: %w", err)
	}
	return entries, nil
}
