package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ballotbot-gg/ballotbot/internal/monitoring"
	"github.com/ballotbot-gg/ballotbot/internal/observability"
	"github.com/ballotbot-gg/ballotbot/internal/query"
	"github.com/ballotbot-gg/ballotbot/internal/storage"
	"github.com/ballotbot-gg/ballotbot/internal/topics"
)

// ErrNoResponse is returned if no stage produced a response.
var ErrNoResponse = errors.New("no stage produced a response")

// Query is the routing state shared by the stages of one request.
type Query struct {
	Raw        string
	Normalized string
	// FallbackTopic is set by the last-resort topic stage when the detected
	// topic has no chunks.
	FallbackTopic string
}

// Stage is one step of the cascade. Handle returns a nil response to fall
// through to the next stage.
type Stage struct {
	Name   string
	Handle func(ctx context.Context, q *Query) (*Response, error)
}

// Deps are the collaborators a Router needs.
type Deps struct {
	Table      *topics.Table
	Corpus     *storage.Corpus
	Chunks     storage.TopicChunks
	Stances    *StanceIndex
	Summaries  *SummaryIndex
	Responses  *ResponseCache
	Summarizer *Summarizer
	QueryLog   *monitoring.QueryLogger
	Metrics    *monitoring.Metrics
	Logger     *observability.Logger
}

// Options tunes the cascade.
type Options struct {
	ChunkThreshold   int
	MinMentions      int
	FallbackTopN     int
	CandidateURLBase string
	// CoalesceMisses shares one summarization between concurrent misses on
	// the same cache key.
	CoalesceMisses bool
}

// DefaultOptions returns the deployed cascade settings.
func DefaultOptions() Options {
	return Options{
		ChunkThreshold:   40,
		MinMentions:      1,
		FallbackTopN:     3,
		CandidateURLBase: DefaultCandidateURLBase,
	}
}

// Router classifies a query into an intent and answers it with the first
// cascade stage that matches.
type Router struct {
	table      *topics.Table
	corpus     *storage.Corpus
	chunks     storage.TopicChunks
	stances    *StanceIndex
	summaries  *SummaryIndex
	responses  *ResponseCache
	summarizer *Summarizer
	queryLog   *monitoring.QueryLogger
	metrics    *monitoring.Metrics
	logger     *observability.Logger

	opts   Options
	group  singleflight.Group
	stages []Stage
}

// NewRouter creates a router over the loaded data.
func NewRouter(deps Deps, opts Options) (*Router, error) {
	if deps.Table == nil || deps.Corpus == nil || deps.Responses == nil || deps.Summarizer == nil {
		return nil, errors.New("router requires a topic table, corpus, response cache and summarizer")
	}

	defaults := DefaultOptions()
	if opts.ChunkThreshold <= 0 {
		opts.ChunkThreshold = defaults.ChunkThreshold
	}
	if opts.MinMentions <= 0 {
		opts.MinMentions = defaults.MinMentions
	}
	if opts.FallbackTopN <= 0 {
		opts.FallbackTopN = defaults.FallbackTopN
	}
	if opts.CandidateURLBase == "" {
		opts.CandidateURLBase = defaults.CandidateURLBase
	}

	logger := deps.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}
	chunks := deps.Chunks
	if chunks == nil {
		chunks = storage.TopicChunks{}
	}
	stances := deps.Stances
	if stances == nil {
		stances = NewStanceIndex(nil, nil, logger)
	}

	r := &Router{
		table:      deps.Table,
		corpus:     deps.Corpus,
		chunks:     chunks,
		stances:    stances,
		summaries:  deps.Summaries,
		responses:  deps.Responses,
		summarizer: deps.Summarizer,
		queryLog:   deps.QueryLog,
		metrics:    deps.Metrics,
		logger:     logger.WithComponent("router"),
		opts:       opts,
	}
	r.stages = r.buildStages()
	return r, nil
}

// Stages returns the cascade stage names in evaluation order.
func (r *Router) Stages() []string {
	names := make([]string, len(r.stages))
	for i, s := range r.stages {
		names[i] = s.Name
	}
	return names
}

// Route normalizes rawQuery and runs the cascade. Errors and panics inside a
// stage are returned as errors; every outcome is recorded in the query log.
func (r *Router) Route(ctx context.Context, rawQuery string) (resp *Response, err error) {
	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			resp = nil
			err = fmt.Errorf("panic while routing: %v", p)
		}
		r.record(ctx, rawQuery, resp, err, time.Since(start))
	}()

	q := &Query{Raw: rawQuery, Normalized: query.Normalize(rawQuery)}

	r.logger.WithContext(ctx).Debug().
		Str("query", rawQuery).
		Str("normalized", q.Normalized).
		Msg("Routing query")

	for _, stage := range r.stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		out, err := stage.Handle(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("%s stage: %w", stage.Name, err)
		}
		if out != nil {
			r.logger.WithContext(ctx).Debug().
				Str("stage", stage.Name).
				Str("type", out.Type).
				Str("topic", out.Topic).
				Msg("Stage matched")
			return out, nil
		}
	}

	return nil, ErrNoResponse
}

func (r *Router) record(ctx context.Context, rawQuery string, resp *Response, err error, elapsed time.Duration) {
	entry := monitoring.QueryEntry{Query: rawQuery}

	if err != nil {
		entry.Type = ExceptionType
		entry.Response = NewErrorBody(err).Response
		r.logger.WithContext(ctx).Error().Err(err).Str("query", rawQuery).Msg("Routing failed")
	} else {
		entry.Type = resp.Type
		entry.Topic = resp.Topic
		if data, mErr := json.Marshal(resp.Payload); mErr == nil {
			entry.Response = string(data)
		}
	}

	r.metrics.ObserveQuery(entry.Type, elapsed)
	if r.queryLog != nil {
		r.queryLog.Record(ctx, entry)
	}
}

// summarizeAndCache summarizes chunks and stores the payload under key.
// Results with degraded entries are returned but not cached.
func (r *Router) summarizeAndCache(ctx context.Context, key, topic string, chunks []storage.TopicChunk, typ string) (*Response, error) {
	compute := func() (*Response, error) {
		if r.opts.CoalesceMisses {
			if p, ok := r.responses.Get(key); ok {
				return &Response{Payload: p, Type: TypeCachedTopicSummary, Topic: topic}, nil
			}
		}

		summary := r.summarizer.SummarizeChunks(ctx, topic, chunks)
		payload := CandidatesPayload(summary.Candidates...)

		if summary.Degraded == 0 {
			if err := r.responses.Put(ctx, key, payload); err != nil {
				r.logger.Warn().Err(err).Str("key", key).Msg("Failed to persist topic response")
			}
		} else {
			r.logger.Info().
				Str("key", key).
				Int("degraded", summary.Degraded).
				Msg("Not caching degraded topic summary")
		}

		return &Response{Payload: payload, Type: typ, Topic: topic}, nil
	}

	if !r.opts.CoalesceMisses {
		return compute()
	}

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		return compute()
	})
	if err != nil {
		return nil, err
	}
	return v.(*Response), nil
}
