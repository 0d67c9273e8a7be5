package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SERVER_PORT", "PORT", "SERVER_HOST", "BALLOTBOT_DATA_DIR", "DATABASE_URL",
		"REDIS_URL", "LLM_PROVIDER", "OPENAI_API_KEY", "OPENROUTER_API_KEY",
		"ANTHROPIC_API_KEY", "OPENAI_MODEL", "LOG_LEVEL", "LOG_FORMAT", "BALLOTBOT_API_KEYS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, 40, cfg.Retrieval.ChunkThreshold)
	assert.Equal(t, 1, cfg.Retrieval.MinMentions)
	assert.Equal(t, 3, cfg.Retrieval.FallbackTopN)
	assert.Equal(t, 5, cfg.Retrieval.BatchSize)
	assert.Equal(t, "file", cfg.Cache.Driver)
	assert.Equal(t, filepath.Join("data", "topic_chunks.json"), cfg.Data.TopicChunksPath)
	assert.Equal(t, filepath.Join("data", "cache"), cfg.Cache.Dir)
	assert.Equal(t, "topic_response_cache", cfg.Cache.ResponseCacheName)
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "ballotbot.yaml")
	yaml := `
server:
  port: 8080
data:
  dir: /srv/ballotbot
  stance_files:
    gst: stance_cache_gst.json
retrieval:
  chunk_threshold: 25
  summarization_mode: per_candidate
llm:
  provider: anthropic
  model: claude-3-5-haiku-latest
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("REDIS_URL", "redis://cache:6379")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 25, cfg.Retrieval.ChunkThreshold)
	assert.Equal(t, "per_candidate", cfg.Retrieval.SummarizationMode)
	assert.Equal(t, "redis", cfg.Cache.Driver)
	assert.Equal(t, "cache:6379", cfg.Cache.Redis.Addr)
	assert.Equal(t, "sk-ant-test", cfg.LLM.APIKey)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
	assert.Equal(t, "/srv/ballotbot/stance_cache_gst.json", cfg.Data.StanceFiles["gst"])
	assert.Equal(t, "/srv/ballotbot/statements.csv", cfg.Data.StatementsPath)
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"bad cache driver", func(c *Config) { c.Cache.Driver = "memcached" }, "invalid cache driver"},
		{"bad provider", func(c *Config) { c.LLM.Provider = "bard" }, "invalid llm provider"},
		{"bad corpus source", func(c *Config) { c.Data.CorpusSource = "s3" }, "invalid corpus source"},
		{"zero threshold", func(c *Config) { c.Retrieval.ChunkThreshold = 0 }, "chunk_threshold"},
		{"zero min mentions", func(c *Config) { c.Retrieval.MinMentions = 0 }, "min_mentions"},
		{"bad mode", func(c *Config) { c.Retrieval.SummarizationMode = "stream" }, "invalid summarization mode"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestResolveRelativePath(t *testing.T) {
	assert.Equal(t, "/abs/file.json", ResolveRelativePath("data", "/abs/file.json"))
	assert.Equal(t, filepath.Join("data", "file.json"), ResolveRelativePath("data", "file.json"))
	assert.Equal(t, "file.json", ResolveRelativePath("", "file.json"))
	assert.Equal(t, "", ResolveRelativePath("data", ""))
}
