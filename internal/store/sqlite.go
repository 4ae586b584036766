package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pod-protocol/podd/internal/core"
)

// SQLiteStore persists accounts in a local SQLite database. It is the
// default store when no DATABASE_URL is configured.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed creates) the database at dbPath.
// If dbPath is empty, defaults to "./data/pod.db".
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/pod.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	// Commits rely on transactions; a single writer connection keeps
	// SQLITE_BUSY out of the picture.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		address TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		data BLOB NOT NULL,
		version INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_kind ON accounts(kind);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Get returns the record at addr, or nil if the account does not exist.
func (s *SQLiteStore) Get(ctx context.Context, addr core.Address) (*Record, error) {
	rec := &Record{Address: addr}
	err := s.db.QueryRowContext(ctx, `
		SELECT kind, data, version, updated_at
		FROM accounts WHERE address = ?
	`, addr.String()).Scan(&rec.Kind, &rec.Data, &rec.Version, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

// Commit verifies checks and applies writes inside one transaction.
func (s *SQLiteStore) Commit(ctx context.Context, checks []Check, writes []Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, c := range checks {
		var version uint64
		err := tx.QueryRowContext(ctx, `
			SELECT version FROM accounts WHERE address = ?
		`, c.Address.String()).Scan(&version)
		if errors.Is(err, sql.ErrNoRows) {
			version = 0
		} else if err != nil {
			return err
		}
		if version != c.Version {
			return ErrVersionConflict
		}
	}

	now := time.Now().UnixMilli()
	for _, w := range writes {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO accounts (address, kind, data, version, updated_at)
			VALUES (?, ?, ?, 1, ?)
			ON CONFLICT(address) DO UPDATE SET
				kind = excluded.kind,
				data = excluded.data,
				version = accounts.version + 1,
				updated_at = excluded.updated_at
		`, w.Address.String(), w.Kind, w.Data, now)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}
