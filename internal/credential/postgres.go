package credential

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DefaultTable is the table PostgresStore reads when none is configured.
const DefaultTable = "local_storage"

// Querier is the subset of *pgxpool.Pool used by PostgresStore.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore reads credentials from a key/value table:
//
//	CREATE TABLE local_storage (key TEXT PRIMARY KEY, value TEXT NOT NULL);
type PostgresStore struct {
	db    Querier
	table string
}

// NewPostgresStore creates a PostgresStore. An empty table uses DefaultTable.
func NewPostgresStore(db Querier, table string) *PostgresStore {
	if table == "" {
		table = DefaultTable
	}
	return &PostgresStore{db: db, table: table}
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrEmptyKey
	}

	sql := fmt.Sprintf("SELECT value FROM %s WHERE key = $1", pgx.Identifier{s.table}.Sanitize())

	var value string
	err := s.db.QueryRow(ctx, sql, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query credential: %w", err)
	}
	return value, true, nil
}

// Set implements WritableStore.
func (s *PostgresStore) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}

	sql := fmt.Sprintf(
		"INSERT INTO %s (key, value) VALUES ($1, $2) ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value",
		pgx.Identifier{s.table}.Sanitize(),
	)
	if _, err := s.db.Exec(ctx, sql, key, value); err != nil {
		return fmt.Errorf("upsert credential: %w", err)
	}
	return nil
}

// Delete implements WritableStore.
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	sql := fmt.Sprintf("DELETE FROM %s WHERE key = $1", pgx.Identifier{s.table}.Sanitize())
	if _, err := s.db.Exec(ctx, sql, key); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}
