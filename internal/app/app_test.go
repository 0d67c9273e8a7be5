package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ballotbot-gg/ballotbot/internal/config"
	"github.com/ballotbot-gg/ballotbot/internal/retrieval"
)

const (
	testStatements = "Candidate Name,Text,URL\n" +
		"Jane Doe,\"I support the new ferry route.\",https://example.gg/jane\n" +
		"Bob Jones,\"Fishing quotas should be reviewed.\",\n"
	testChunks = `{"Transport": [{"name": "Jane Doe", "text": "I support the new ferry route"}]}`
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Data.StatementsPath = filepath.Join(dir, "statements.csv")
	cfg.Data.TopicChunksPath = filepath.Join(dir, "topic_chunks.json")
	cfg.Cache.Dir = filepath.Join(dir, "cache")
	cfg.QueryLog.Path = filepath.Join(dir, "query_log.json")
	cfg.LLM.Provider = "none"

	writeFile(t, cfg.Data.StatementsPath, testStatements)
	writeFile(t, cfg.Data.TopicChunksPath, testChunks)
	return cfg
}

func TestNew_RoutesFromFiles(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	a, err := New(ctx, cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, 2, a.Corpus.Len())
	assert.Contains(t, a.Chunks, "transport")
	assert.True(t, a.SummaryData.IsReadOnly())
	assert.False(t, a.ResponseData.IsReadOnly())
	require.NoError(t, a.Ready(ctx))

	resp, err := a.Router.Route(ctx, "Jane Doe on transport")
	require.NoError(t, err)
	assert.Equal(t, retrieval.TypeShortFormMatch, resp.Type)

	entries, err := a.QueryLog.Recent(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestNew_RecoversCorruptCache(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, filepath.Join(cfg.Cache.Dir, "topic_response_cache.json"), "{not json")

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	assert.Zero(t, a.Responses.Len())
}

func TestNew_SeedsStancesFromFiles(t *testing.T) {
	cfg := testConfig(t)
	path := filepath.Join(t.TempDir(), "gst.json")
	writeFile(t, path, `[{"name":"A","stance":"support","reason":"lowers cost"}]`)
	cfg.Data.StanceFiles = map[string]string{"gst": path, "housing": "/does/not/exist.json"}

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, []string{"gst"}, a.Stances.Topics())

	resp, err := a.Router.Route(context.Background(), "Who supports GST?")
	require.NoError(t, err)
	assert.Equal(t, "stance_gst", resp.Type)
}

func TestNew_MissingChunksDegrades(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.Remove(cfg.Data.TopicChunksPath))

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()
	assert.Empty(t, a.Chunks)
}

func TestNew_StrictTopics(t *testing.T) {
	cfg := testConfig(t)
	cfg.Topics.Strict = true

	_, err := New(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shared aliases")
}

func TestNew_MissingCorpus(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.Remove(cfg.Data.StatementsPath))

	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)

	a, err := New(context.Background(), cfg, nil, WithoutCorpus(), WithWritablePrecomputed())
	require.NoError(t, err)
	defer a.Close()
	assert.Zero(t, a.Corpus.Len())
	assert.False(t, a.StanceData.IsReadOnly())
}

func TestNew_DatabaseCorpus(t *testing.T) {
	cfg := testConfig(t)
	cfg.Data.CorpusSource = "database"
	cfg.Database.SQLite.Path = filepath.Join(t.TempDir(), "corpus.db")

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.DB)
	assert.Zero(t, a.Corpus.Len())
	require.NoError(t, a.Ready(context.Background()))
}
