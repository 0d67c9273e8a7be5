package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Common errors
var (
	ErrNotFound          = errors.New("record not found")
	ErrUnsupportedDriver = errors.New("unsupported database driver")
)

//go:embed migrations/0001_statements.sql
var statementsSchema string

// DB represents a database connection interface.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// DatabaseOptions configures Open.
type DatabaseOptions struct {
	Driver          string // sqlite or postgres
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open opens and pings a database for the given driver.
func Open(ctx context.Context, opts DatabaseOptions) (*sql.DB, error) {
	var driver string
	switch opts.Driver {
	case "sqlite":
		driver = "sqlite3"
	case "postgres":
		driver = "postgres"
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, opts.Driver)
	}

	db, err := sql.Open(driver, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

// Migrate creates the statements schema if it does not exist.
func Migrate(ctx context.Context, db DB) error {
	if _, err := db.ExecContext(ctx, statementsSchema); err != nil {
		return fmt.Errorf("migrate statements: %w", err)
	}
	return nil
}

// StatementRepository handles corpus statement persistence.
type StatementRepository struct {
	db DB
}

// NewStatementRepository creates a new statement repository.
func NewStatementRepository(db DB) *StatementRepository {
	return &StatementRepository{db: db}
}

// Create inserts a statement, assigning an ID and timestamp when missing.
func (r *StatementRepository) Create(ctx context.Context, s *Statement) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO statements (id, candidate_name, body, source_url, position, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		s.ID.String(), s.Name, s.Text, s.SourceURL, s.Position, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert statement: %w", err)
	}
	return nil
}

// GetByID retrieves a statement by ID.
func (r *StatementRepository) GetByID(ctx context.Context, id uuid.UUID) (*Statement, error) {
	query := `
		SELECT id, candidate_name, body, source_url, position
		FROM statements WHERE id = $1
	`
	var s Statement
	var rawID string
	err := r.db.QueryRowContext(ctx, query, id.String()).Scan(&rawID, &s.Name, &s.Text, &s.SourceURL, &s.Position)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get statement: %w", err)
	}
	if s.ID, err = uuid.Parse(rawID); err != nil {
		return nil, fmt.Errorf("parse statement id: %w", err)
	}
	return &s, nil
}

// List returns every statement in load order.
func (r *StatementRepository) List(ctx context.Context) ([]Statement, error) {
	query := `
		SELECT id, candidate_name, body, source_url, position
		FROM statements
		ORDER BY position, candidate_name
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list statements: %w", err)
	}
	defer rows.Close()

	var statements []Statement
	for rows.Next() {
		var s Statement
		var rawID string
		if err := rows.Scan(&rawID, &s.Name, &s.Text, &s.SourceURL, &s.Position); err != nil {
			return nil, fmt.Errorf("scan statement: %w", err)
		}
		if s.ID, err = uuid.Parse(rawID); err != nil {
			return nil, fmt.Errorf("parse statement id: %w", err)
		}
		statements = append(statements, s)
	}
	return statements, rows.Err()
}

// Count returns the number of stored statements.
func (r *StatementRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM statements`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count statements: %w", err)
	}
	return n, nil
}

// DeleteAll removes every statement. Used before a full re-import.
func (r *StatementRepository) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM statements`)
	if err != nil {
		return 0, fmt.Errorf("delete statements: %w", err)
	}
	return res.RowsAffected()
}
