// Package config provides unified configuration loading for BallotBot.
// Supports YAML files, .env files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for BallotBot.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Data          DataConfig          `yaml:"data"`
	Database      DatabaseConfig      `yaml:"database"`
	Cache         CacheConfig         `yaml:"cache"`
	LLM           LLMConfig           `yaml:"llm"`
	Retrieval     RetrievalConfig     `yaml:"retrieval"`
	Topics        TopicsConfig        `yaml:"topics"`
	QueryLog      QueryLogConfig      `yaml:"query_log"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	AllowedOrigins   []string      `yaml:"allowed_origins"`
	// APIKeys guard the administrative routes. Empty disables the check.
	APIKeys []string `yaml:"api_keys"`
}

// DataConfig locates the corpus, topic chunks and stance seed files.
type DataConfig struct {
	Dir             string            `yaml:"dir"`
	CorpusSource    string            `yaml:"corpus_source"` // file or database
	StatementsPath  string            `yaml:"statements_path"`
	TopicChunksPath string            `yaml:"topic_chunks_path"`
	StanceFiles     map[string]string `yaml:"stance_files"` // topic -> path
}

// DatabaseConfig holds database connection settings for the corpus repository.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver"` // sqlite or postgres
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path         string `yaml:"path"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	JournalMode  string `yaml:"journal_mode"`
}

// PostgresConfig holds Postgres-specific settings.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// CacheConfig holds the cache persistence settings.
type CacheConfig struct {
	Driver            string      `yaml:"driver"` // file, redis or memory
	Dir               string      `yaml:"dir"`
	MaxEntries        int         `yaml:"max_entries"`
	Redis             RedisConfig `yaml:"redis"`
	ResponseCacheName string      `yaml:"response_cache_name"`
	SummaryCacheName  string      `yaml:"summary_cache_name"`
	StanceCacheName   string      `yaml:"stance_cache_name"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	PoolSize  int    `yaml:"pool_size"`
	KeyPrefix string `yaml:"key_prefix"`
}

// LLMConfig holds completion provider settings.
type LLMConfig struct {
	Provider    string        `yaml:"provider"` // openai, openrouter or anthropic
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`
	Temperature float64       `yaml:"temperature"`
}

// RetrievalConfig holds routing cascade settings.
type RetrievalConfig struct {
	ChunkThreshold    int    `yaml:"chunk_threshold"`
	MinMentions       int    `yaml:"min_mentions"`
	FallbackTopN      int    `yaml:"fallback_top_n"`
	BatchSize         int    `yaml:"batch_size"`
	SummarizationMode string `yaml:"summarization_mode"` // batch or per_candidate
	CandidateURLBase  string `yaml:"candidate_url_base"`
	CoalesceMisses    bool   `yaml:"coalesce_misses"`
}

// TopicsConfig controls the topic alias table.
type TopicsConfig struct {
	Path string `yaml:"path"`
	// Strict turns shared aliases into a startup error instead of a warning.
	Strict bool `yaml:"strict"`
}

// QueryLogConfig controls where routed queries are recorded.
type QueryLogConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Path       string `yaml:"path"`
	RedisKey   string `yaml:"redis_key"`
	MaxEntries int    `yaml:"max_entries"`
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	LogFormat      string `yaml:"log_format"`
	ServiceName    string `yaml:"service_name"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`
}

// Load reads configuration from path (optional), a .env file in the working
// directory (optional) and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	_ = godotenv.Load()
	applyEnvOverrides(cfg)
	cfg.resolvePaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             5000,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     300 * time.Second,
			IdleTimeout:      120 * time.Second,
			RequestTimeout:   300 * time.Second,
			GracefulShutdown: 10 * time.Second,
			AllowedOrigins:   []string{"*"},
		},
		Data: DataConfig{
			Dir:             "data",
			CorpusSource:    "file",
			StatementsPath:  "statements.csv",
			TopicChunksPath: "topic_chunks.json",
			StanceFiles:     map[string]string{},
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{
				Path:         "ballotbot.db",
				MaxOpenConns: 1,
				JournalMode:  "WAL",
			},
			Postgres: PostgresConfig{
				MaxOpenConns:    10,
				MaxIdleConns:    2,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Cache: CacheConfig{
			Driver:     "file",
			Dir:        "cache",
			MaxEntries: 10000,
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				PoolSize:  10,
				KeyPrefix: "ballotbot:",
			},
			ResponseCacheName: "topic_response_cache",
			SummaryCacheName:  "topic_summary_cache",
			StanceCacheName:   "stance_cache",
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Timeout:     120 * time.Second,
			MaxRetries:  3,
			Temperature: 0.5,
		},
		Retrieval: RetrievalConfig{
			ChunkThreshold:    40,
			MinMentions:       1,
			FallbackTopN:      3,
			BatchSize:         5,
			SummarizationMode: "batch",
			CandidateURLBase:  "https://election2025.gg/candidates",
		},
		QueryLog: QueryLogConfig{
			Enabled:    true,
			Path:       "query_log.json",
			MaxEntries: 5000,
		},
		Observability: ObservabilityConfig{
			LogLevel:       "info",
			LogFormat:      "json",
			ServiceName:    "ballotbot",
			MetricsEnabled: true,
		},
	}
}

// Validate checks the configuration for values the services cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Data.CorpusSource != "file" && c.Data.CorpusSource != "database" {
		return fmt.Errorf("invalid corpus source: %s", c.Data.CorpusSource)
	}

	if c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" {
		return fmt.Errorf("invalid database driver: %s", c.Database.Driver)
	}

	switch c.Cache.Driver {
	case "file", "redis", "memory":
	default:
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}

	switch c.LLM.Provider {
	case "openai", "openrouter", "anthropic", "none":
	default:
		return fmt.Errorf("invalid llm provider: %s", c.LLM.Provider)
	}

	if c.Retrieval.ChunkThreshold < 1 {
		return fmt.Errorf("chunk_threshold must be positive")
	}

	if c.Retrieval.MinMentions < 1 {
		return fmt.Errorf("min_mentions must be at least 1")
	}

	if c.Retrieval.BatchSize < 1 {
		return fmt.Errorf("batch_size must be positive")
	}

	if c.Retrieval.SummarizationMode != "batch" && c.Retrieval.SummarizationMode != "per_candidate" {
		return fmt.Errorf("invalid summarization mode: %s", c.Retrieval.SummarizationMode)
	}

	return nil
}

// DatabaseDSN returns the connection string for the configured driver.
func (c *Config) DatabaseDSN() string {
	if c.Database.Driver == "postgres" {
		return c.Database.Postgres.DSN
	}
	return fmt.Sprintf("file:%s?_journal_mode=%s&_busy_timeout=5000", c.Database.SQLite.Path, c.Database.SQLite.JournalMode)
}

// resolvePaths anchors relative data, cache and log paths under the data directory.
func (c *Config) resolvePaths() {
	dir := c.Data.Dir
	c.Data.StatementsPath = ResolveRelativePath(dir, c.Data.StatementsPath)
	c.Data.TopicChunksPath = ResolveRelativePath(dir, c.Data.TopicChunksPath)
	for topic, path := range c.Data.StanceFiles {
		c.Data.StanceFiles[topic] = ResolveRelativePath(dir, path)
	}
	c.Cache.Dir = ResolveRelativePath(dir, c.Cache.Dir)
	if c.QueryLog.Path != "" {
		c.QueryLog.Path = ResolveRelativePath(dir, c.QueryLog.Path)
	}
	if c.Topics.Path != "" {
		c.Topics.Path = ResolveRelativePath(dir, c.Topics.Path)
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	// Render and Heroku style platforms inject PORT.
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("BALLOTBOT_DATA_DIR"); v != "" {
		cfg.Data.Dir = v
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		if strings.HasPrefix(v, "sqlite:") {
			cfg.Database.Driver = "sqlite"
			cfg.Database.SQLite.Path = strings.TrimPrefix(v, "sqlite:")
		} else if strings.HasPrefix(v, "postgres") {
			cfg.Database.Driver = "postgres"
			cfg.Database.Postgres.DSN = v
		}
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.Driver = "redis"
		cfg.Cache.Redis.Addr = strings.TrimPrefix(v, "redis://")
	}

	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}

	if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.LLM.Provider != "anthropic" {
		cfg.LLM.APIKey = v
	}

	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" && cfg.LLM.Provider == "openrouter" {
		cfg.LLM.APIKey = v
	}

	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && cfg.LLM.Provider == "anthropic" {
		cfg.LLM.APIKey = v
	}

	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		cfg.LLM.Model = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}

	if v := os.Getenv("BALLOTBOT_API_KEYS"); v != "" {
		cfg.Server.APIKeys = strings.Split(v, ",")
	}
}

// ResolveRelativePath joins a relative target path onto baseDir.
func ResolveRelativePath(baseDir, targetPath string) string {
	if targetPath == "" || filepath.IsAbs(targetPath) || baseDir == "" {
		return targetPath
	}
	return filepath.Join(baseDir, targetPath)
}
