package credential

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"
)

// DefaultTable is the table used by SQLStorage when none is given.
const DefaultTable = "session_credentials"

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLStorage keeps credentials in a two-column key/value table. Statements use
// Postgres placeholders; the driver is registered by the caller.
type SQLStorage struct {
	db    *sql.DB
	table string
}

// NewSQLStorage returns an SQLStorage over db. An empty table defaults to
// DefaultTable.
func NewSQLStorage(db *sql.DB, table string) (*SQLStorage, error) {
	if db == nil {
		return nil, errors.New("credential: nil *sql.DB")
	}
	if table == "" {
		table = DefaultTable
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("credential: invalid table name %q", table)
	}
	return &SQLStorage{db: db, table: table}, nil
}

// EnsureSchema creates the backing table when it does not exist.
func (s *SQLStorage) EnsureSchema(ctx context.Context) error {
	q := fmt.Sprintf(`create table if not exists %s (
	key text primary key,
	value text not null,
	updated_at timestamptz not null default now()
)`, s.table)
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("credential: ensure schema: %w", err)
	}
	return nil
}

func (s *SQLStorage) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("select value from %s where key = $1", s.table), key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("credential: select %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLStorage) Set(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(ctx, s.upsertQuery(), key, value); err != nil {
		return fmt.Errorf("credential: upsert %s: %w", key, err)
	}
	return nil
}

// SetMany writes all values in one transaction, in key order.
func (s *SQLStorage) SetMany(ctx context.Context, values map[string]string) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("credential: begin: %w", err)
	}
	q := s.upsertQuery()
	for _, k := range keys {
		if _, err := tx.ExecContext(ctx, q, k, values[k]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("credential: upsert %s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("credential: commit: %w", err)
	}
	return nil
}

func (s *SQLStorage) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("credential: begin: %w", err)
	}
	q := fmt.Sprintf("delete from %s where key = $1", s.table)
	for _, k := range keys {
		if _, err := tx.ExecContext(ctx, q, k); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("credential: delete %s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("credential: commit: %w", err)
	}
	return nil
}

func (s *SQLStorage) upsertQuery() string {
	return fmt.Sprintf(`insert into %s (key, value, updated_at) values ($1, $2, now())
on conflict (key) do update set value = excluded.value, updated_at = now()`, s.table)
}
