// Package app wires configuration, data files, caches and collaborators into
// a ready Router for the API server and the CLI.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/ballotbot-gg/ballotbot/internal/cache"
	"github.com/ballotbot-gg/ballotbot/internal/config"
	"github.com/ballotbot-gg/ballotbot/internal/llm"
	"github.com/ballotbot-gg/ballotbot/internal/monitoring"
	"github.com/ballotbot-gg/ballotbot/internal/observability"
	"github.com/ballotbot-gg/ballotbot/internal/retrieval"
	"github.com/ballotbot-gg/ballotbot/internal/storage"
	"github.com/ballotbot-gg/ballotbot/internal/topics"
)

// App holds the loaded data and services.
type App struct {
	Config *config.Config
	Logger *observability.Logger

	Table  *topics.Table
	Corpus *storage.Corpus
	Chunks storage.TopicChunks
	DB     *sql.DB

	Store        cache.Store
	Client       cache.Client
	ResponseData *cache.Named
	SummaryData  *cache.Named
	StanceData   *cache.Named

	Responses  *retrieval.ResponseCache
	Summaries  *retrieval.SummaryIndex
	Stances    *retrieval.StanceIndex
	Summarizer *retrieval.Summarizer
	QueryLog   *monitoring.QueryLogger
	Metrics    *monitoring.Metrics
	Router     *retrieval.Router
}

// Option configures New.
type Option func(*options)

type options struct {
	writablePrecomputed bool
	skipCorpus          bool
}

// WithWritablePrecomputed opens the summary and stance caches for writing,
// for the offline builders.
func WithWritablePrecomputed() Option {
	return func(o *options) { o.writablePrecomputed = true }
}

// WithoutCorpus skips loading statements, for commands that only touch caches
// or the database.
func WithoutCorpus() Option {
	return func(o *options) { o.skipCorpus = true }
}

// New loads everything cfg points at. Missing optional inputs (topic chunks,
// stance files, an LLM key) are logged and degrade the router; a missing
// corpus or an inconsistent topic table in strict mode is an error.
func New(ctx context.Context, cfg *config.Config, logger *observability.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	a := &App{Config: cfg, Logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	if err := a.loadTopics(); err != nil {
		return nil, err
	}
	if err := a.openDatabase(ctx); err != nil {
		return nil, err
	}
	if o.skipCorpus {
		a.Corpus = storage.NewCorpus(nil)
	} else if err := a.loadCorpus(ctx); err != nil {
		return nil, err
	}
	if err := a.loadChunks(); err != nil {
		return nil, err
	}
	if err := a.openCaches(ctx, o.writablePrecomputed); err != nil {
		return nil, err
	}
	a.loadStances()

	if cfg.Observability.MetricsEnabled {
		a.Metrics = monitoring.NewMetrics()
	}
	a.Responses = retrieval.NewResponseCache(a.ResponseData, logger, a.Metrics)
	a.Summaries = retrieval.NewSummaryIndex(a.SummaryData, a.Metrics)

	completer, err := llm.New(cfg.LLM, logger)
	if errors.Is(err, llm.ErrNoCompleter) {
		logger.Warn().Str("provider", cfg.LLM.Provider).Msg("No LLM configured; summaries will degrade to source text")
		completer = nil
	} else if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}

	a.Summarizer = retrieval.NewSummarizer(completer, retrieval.SummarizerConfig{
		Mode:             retrieval.SummarizationMode(cfg.Retrieval.SummarizationMode),
		BatchSize:        cfg.Retrieval.BatchSize,
		Temperature:      cfg.LLM.Temperature,
		CandidateURLBase: cfg.Retrieval.CandidateURLBase,
	}, logger, a.Metrics)

	if cfg.QueryLog.Enabled {
		logOpts := monitoring.QueryLogOptions{
			Path:       cfg.QueryLog.Path,
			ListKey:    cfg.QueryLog.RedisKey,
			MaxEntries: cfg.QueryLog.MaxEntries,
		}
		if list, ok := a.Client.(cache.ListClient); ok && cfg.Cache.Driver == "redis" {
			logOpts.List = list
		}
		a.QueryLog = monitoring.NewQueryLogger(logger, logOpts)
	}

	a.Router, err = retrieval.NewRouter(retrieval.Deps{
		Table:      a.Table,
		Corpus:     a.Corpus,
		Chunks:     a.Chunks,
		Stances:    a.Stances,
		Summaries:  a.Summaries,
		Responses:  a.Responses,
		Summarizer: a.Summarizer,
		QueryLog:   a.QueryLog,
		Metrics:    a.Metrics,
		Logger:     logger,
	}, retrieval.Options{
		ChunkThreshold:   cfg.Retrieval.ChunkThreshold,
		MinMentions:      cfg.Retrieval.MinMentions,
		FallbackTopN:     cfg.Retrieval.FallbackTopN,
		CandidateURLBase: cfg.Retrieval.CandidateURLBase,
		CoalesceMisses:   cfg.Retrieval.CoalesceMisses,
	})
	if err != nil {
		return nil, err
	}

	logger.Info().
		Int("statements", a.Corpus.Len()).
		Int("candidates", len(a.Corpus.Candidates())).
		Int("chunk_topics", len(a.Chunks)).
		Int("cached_responses", a.Responses.Len()).
		Int("stance_topics", len(a.Stances.Topics())).
		Msg("BallotBot loaded")

	ok = true
	return a, nil
}

func (a *App) loadTopics() error {
	cfg := a.Config.Topics
	if cfg.Path == "" {
		a.Table = topics.DefaultTable()
	} else {
		t, err := topics.LoadTable(cfg.Path)
		if err != nil {
			return err
		}
		a.Table = t
	}

	conflicts := a.Table.Validate()
	for _, c := range conflicts {
		a.Logger.Warn().Str("alias", c.Alias).Strs("topics", c.Topics).Msg("Topic alias is not unique")
	}
	if cfg.Strict && len(conflicts) > 0 {
		return fmt.Errorf("topic table has %d shared aliases, first: %s", len(conflicts), conflicts[0])
	}
	return nil
}

func (a *App) openDatabase(ctx context.Context) error {
	if a.Config.Data.CorpusSource != "database" {
		return nil
	}
	db, err := OpenDatabase(ctx, a.Config)
	if err != nil {
		return err
	}
	a.DB = db
	return nil
}

// OpenDatabase opens and migrates the configured corpus database.
func OpenDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := storage.Open(ctx, storage.DatabaseOptions{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.DatabaseDSN(),
		MaxOpenConns:    maxOpenConns(cfg),
		MaxIdleConns:    cfg.Database.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.Postgres.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	if err := storage.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func maxOpenConns(cfg *config.Config) int {
	if cfg.Database.Driver == "postgres" {
		return cfg.Database.Postgres.MaxOpenConns
	}
	return cfg.Database.SQLite.MaxOpenConns
}

func (a *App) loadCorpus(ctx context.Context) error {
	var (
		statements []storage.Statement
		err        error
	)
	if a.DB != nil {
		statements, err = storage.NewStatementRepository(a.DB).List(ctx)
	} else {
		statements, err = storage.LoadStatementsFile(a.Config.Data.StatementsPath)
	}
	if err != nil {
		return fmt.Errorf("load corpus: %w", err)
	}
	a.Corpus = storage.NewCorpus(statements)
	return nil
}

func (a *App) loadChunks() error {
	chunks, err := storage.LoadTopicChunks(a.Config.Data.TopicChunksPath)
	if errors.Is(err, fs.ErrNotExist) {
		a.Logger.Warn().Str("path", a.Config.Data.TopicChunksPath).Msg("No topic chunks file; topic summaries disabled")
		a.Chunks = storage.TopicChunks{}
		return nil
	}
	if err != nil {
		return err
	}

	if err := a.Table.CheckTopics(storage.SortedTopics(chunks)); err != nil {
		if a.Config.Topics.Strict {
			return fmt.Errorf("topic chunks: %w", err)
		}
		a.Logger.Warn().Err(err).Msg("Topic chunks reference topics outside the alias table")
	}
	a.Chunks = chunks
	return nil
}

func (a *App) openCaches(ctx context.Context, writablePrecomputed bool) error {
	cfg := a.Config.Cache

	switch cfg.Driver {
	case "redis":
		client, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
			Prefix:   cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return err
		}
		a.Client = client
		a.Store = cache.NewClientStore(client)
	case "memory":
		a.Client = cache.NewMemoryClient(cfg.MaxEntries)
		a.Store = cache.NewClientStore(a.Client)
	default:
		a.Store = cache.NewFileStore(cfg.Dir)
	}

	var precomputed []cache.Option
	if !writablePrecomputed {
		precomputed = append(precomputed, cache.ReadOnly())
	}

	var err error
	if a.ResponseData, err = a.openNamed(ctx, cfg.ResponseCacheName); err != nil {
		return err
	}
	if a.SummaryData, err = a.openNamed(ctx, cfg.SummaryCacheName, precomputed...); err != nil {
		return err
	}
	if a.StanceData, err = a.openNamed(ctx, cfg.StanceCacheName, precomputed...); err != nil {
		return err
	}
	return nil
}

// openNamed loads a named cache, starting empty when the persisted copy is
// corrupt.
func (a *App) openNamed(ctx context.Context, name string, opts ...cache.Option) (*cache.Named, error) {
	named, err := cache.Open(ctx, a.Store, name, opts...)
	if errors.Is(err, cache.ErrCorruptCache) {
		a.Logger.Warn().Err(err).Str("cache", name).Msg("Starting with an empty cache")
		return cache.OpenEmpty(a.Store, name, opts...), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", name, err)
	}
	return named, nil
}

func (a *App) loadStances() {
	files := make(map[string][]storage.StanceRecord, len(a.Config.Data.StanceFiles))
	for topic, path := range a.Config.Data.StanceFiles {
		records, err := storage.LoadStances(path)
		if err != nil {
			a.Logger.Warn().Err(err).Str("topic", topic).Str("path", path).Msg("Skipping stance file")
			continue
		}
		files[topic] = records
	}
	a.Stances = retrieval.NewStanceIndex(a.StanceData, files, a.Logger)
}

// Ready reports whether the external dependencies still answer.
func (a *App) Ready(ctx context.Context) error {
	if a.DB != nil {
		if err := a.DB.PingContext(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if a.Client != nil {
		if _, err := a.Client.Get(ctx, cache.CacheKey("ready")); err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			return fmt.Errorf("cache: %w", err)
		}
	}
	return nil
}

// Close releases the database and cache connections.
func (a *App) Close() error {
	var errs []error
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	if a.Client != nil {
		errs = append(errs, a.Client.Close())
	}
	return errors.Join(errs...)
}
