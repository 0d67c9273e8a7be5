package storage

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestStatementRepository_Postgres(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("Docker not available")
	}

	ctx := context.Background()
	pg, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("ballotbot_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pg.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate postgres container: %v", err)
		}
	})

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := Open(ctx, DatabaseOptions{Driver: "postgres", DSN: dsn})
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Migrate(ctx, db))

	repo := NewStatementRepository(db)
	require.NoError(t, repo.Create(ctx, &Statement{Name: "Jane Doe", Text: "Housing first.", Position: 0}))
	require.NoError(t, repo.Create(ctx, &Statement{Name: "John Roe", Text: "Schools.", Position: 1}))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Jane Doe", list[0].Name)

	corpus := NewCorpus(list)
	assert.Equal(t, []string{"Jane Doe", "John Roe"}, corpus.Candidates())
}
