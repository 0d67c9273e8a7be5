package retrieval

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/ballotbot-gg/ballotbot/internal/cache"
	"github.com/ballotbot-gg/ballotbot/internal/monitoring"
	"github.com/ballotbot-gg/ballotbot/internal/observability"
	"github.com/ballotbot-gg/ballotbot/internal/storage"
)

// Cache names.
const (
	TopicResponseCache = "topic_response_cache"
	TopicSummaryCache  = "topic_summary_cache"
	StanceCache        = "stance_cache"
)

// ResponseCache stores generated topic responses keyed by topic, or by
// topic and narrowing keywords for filtered summaries.
type ResponseCache struct {
	named   *cache.Named
	logger  *observability.Logger
	metrics *monitoring.Metrics
}

// NewResponseCache wraps the writable topic response cache.
func NewResponseCache(named *cache.Named, logger *observability.Logger, metrics *monitoring.Metrics) *ResponseCache {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &ResponseCache{named: named, logger: logger, metrics: metrics}
}

// FilteredKey is the cache key of a keyword-narrowed topic summary.
func FilteredKey(topic string, keywords []string) string {
	return topic + "|" + strings.Join(keywords, "+")
}

// Get returns the coerced payload stored under key.
func (c *ResponseCache) Get(key string) (Payload, bool) {
	raw, ok := c.named.Get(key)
	c.metrics.CacheLookup(c.named.Name(), ok)
	if !ok {
		return Payload{}, false
	}

	p := DecodePayload(raw)
	if p.Kind == KindMessage && p.Message == CorruptedCacheMessage {
		c.logger.Warn().Str("key", key).Msg("Could not parse cached response")
	}
	return p, true
}

// Put stores p under key and flushes the cache.
func (c *ResponseCache) Put(ctx context.Context, key string, p Payload) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.named.Put(ctx, key, data)
}

// Keys returns the cached keys, sorted.
func (c *ResponseCache) Keys() []string {
	return c.named.Keys()
}

// Len returns the number of cached responses.
func (c *ResponseCache) Len() int {
	return c.named.Len()
}

// Clear drops every cached response.
func (c *ResponseCache) Clear(ctx context.Context) error {
	return c.named.Clear(ctx)
}

// SummaryIndex serves the precomputed prose summaries per topic.
type SummaryIndex struct {
	named   *cache.Named
	metrics *monitoring.Metrics
}

// NewSummaryIndex wraps the topic summary cache.
func NewSummaryIndex(named *cache.Named, metrics *monitoring.Metrics) *SummaryIndex {
	return &SummaryIndex{named: named, metrics: metrics}
}

// Get returns the prose summary for topic. Entries that are not JSON strings
// are ignored.
func (s *SummaryIndex) Get(topic string) (string, bool) {
	if s == nil || s.named == nil {
		return "", false
	}
	var prose string
	raw, ok := s.named.Get(topic)
	if ok {
		if err := json.Unmarshal(raw, &prose); err != nil || strings.TrimSpace(prose) == "" {
			ok = false
		}
	}
	s.metrics.CacheLookup(s.named.Name(), ok)
	if !ok {
		return "", false
	}
	return prose, true
}

// Topics returns the topics with a precomputed summary.
func (s *SummaryIndex) Topics() []string {
	if s == nil || s.named == nil {
		return nil
	}
	return s.named.Keys()
}

// StanceIndex maps topics to their precomputed stance records.
type StanceIndex struct {
	records map[string][]storage.StanceRecord
}

// NewStanceIndex merges the stance cache with per-topic stance files. A
// topic present in files replaces the cached records for that topic.
// Undecodable cache entries are logged and skipped.
func NewStanceIndex(named *cache.Named, files map[string][]storage.StanceRecord, logger *observability.Logger) *StanceIndex {
	if logger == nil {
		logger = observability.NopLogger()
	}
	idx := &StanceIndex{records: make(map[string][]storage.StanceRecord)}

	if named != nil {
		for _, key := range named.Keys() {
			raw, _ := named.Get(key)
			records, err := storage.DecodeStances(raw)
			if err != nil {
				logger.Warn().Err(err).Str("topic", key).Msg("Skipping undecodable stance cache entry")
				continue
			}
			idx.records[strings.ToLower(key)] = records
		}
	}
	for topic, records := range files {
		idx.records[strings.ToLower(topic)] = records
	}
	return idx
}

// Records returns the stance records for topic.
func (s *StanceIndex) Records(topic string) ([]storage.StanceRecord, bool) {
	if s == nil {
		return nil, false
	}
	r, ok := s.records[topic]
	return r, ok && len(r) > 0
}

// Topics returns the topics with stance records, sorted.
func (s *StanceIndex) Topics() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.records))
	for t := range s.records {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
