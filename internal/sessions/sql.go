package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLKV stores bindings in a single key/value table. The same schema is used
// for Postgres/CockroachDB and SQLite; only placeholders differ.
type SQLKV struct {
	db *sql.DB

	stmtGet    *sql.Stmt
	stmtPut    *sql.Stmt
	stmtDelete *sql.Stmt
}

type dialect struct {
	placeholder func(n int) string
	createTable string
}

var postgresDialect = dialect{
	placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	createTable: `CREATE TABLE IF NOT EXISTS agent_bindings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
}

var sqliteDialect = dialect{
	placeholder: func(int) string { return "?" },
	createTable: `CREATE TABLE IF NOT EXISTS agent_bindings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
}

// newSQLKV prepares statements against db. The table must already exist;
// callers run migrate first.
func newSQLKV(db *sql.DB, d dialect) (*SQLKV, error) {
	p := d.placeholder
	kv := &SQLKV{db: db}

	var err error
	kv.stmtGet, err = db.Prepare(fmt.Sprintf(
		`SELECT value FROM agent_bindings WHERE key = %s`, p(1)))
	if err != nil {
		return nil, fmt.Errorf("failed to prepare get binding: %w", err)
	}
	kv.stmtPut, err = db.Prepare(fmt.Sprintf(
		`INSERT INTO agent_bindings (key, value, updated_at) VALUES (%s, %s, %s)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		p(1), p(2), p(3)))
	if err != nil {
		kv.closeStatements()
		return nil, fmt.Errorf("failed to prepare put binding: %w", err)
	}
	kv.stmtDelete, err = db.Prepare(fmt.Sprintf(
		`DELETE FROM agent_bindings WHERE key = %s`, p(1)))
	if err != nil {
		kv.closeStatements()
		return nil, fmt.Errorf("failed to prepare delete binding: %w", err)
	}
	return kv, nil
}

func migrate(ctx context.Context, db *sql.DB, d dialect) error {
	if _, err := db.ExecContext(ctx, d.createTable); err != nil {
		return fmt.Errorf("failed to create agent_bindings: %w", err)
	}
	return nil
}

func (s *SQLKV) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.stmtGet.QueryRowContext(ctx, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get binding: %w", err)
	}
	return value, true, nil
}

func (s *SQLKV) Put(ctx context.Context, key, value string) error {
	if _, err := s.stmtPut.ExecContext(ctx, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to put binding: %w", err)
	}
	return nil
}

func (s *SQLKV) Delete(ctx context.Context, key string) error {
	if _, err := s.stmtDelete.ExecContext(ctx, key); err != nil {
		return fmt.Errorf("failed to delete binding: %w", err)
	}
	return nil
}

// Close closes prepared statements and the database handle.
func (s *SQLKV) Close() error {
	errs := s.closeStatements()
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *SQLKV) closeStatements() []error {
	var errs []error
	for _, stmt := range []*sql.Stmt{s.stmtGet, s.stmtPut, s.stmtDelete} {
		if stmt == nil {
			continue
		}
		if err := stmt.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
