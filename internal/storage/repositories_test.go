package storage

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *StatementRepository {
	t.Helper()
	ctx := context.Background()

	db, err := Open(ctx, DatabaseOptions{Driver: "sqlite", DSN: "file::memory:", MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, Migrate(ctx, db))
	return NewStatementRepository(db)
}

func TestStatementRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := openTestDB(t)

	first := &Statement{Name: "Jane Doe", Text: "Housing first.", SourceURL: "https://a", Position: 0}
	second := &Statement{Name: "John Roe", Text: "Schools.", Position: 1}
	require.NoError(t, repo.Create(ctx, second))
	require.NoError(t, repo.Create(ctx, first))
	assert.NotEqual(t, uuid.Nil, first.ID)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Jane Doe", list[0].Name, "ordered by position")
	assert.Equal(t, "https://a", list[0].SourceURL)

	got, err := repo.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, "Schools.", got.Text)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	deleted, err := repo.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
}

func TestMigrate_Idempotent(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, DatabaseOptions{Driver: "sqlite", DSN: "file::memory:", MaxOpenConns: 1})
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Migrate(ctx, db))
	require.NoError(t, Migrate(ctx, db))
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), DatabaseOptions{Driver: "mysql"})
	assert.ErrorIs(t, err, ErrUnsupportedDriver)
}
