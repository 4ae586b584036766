package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pod-protocol/podd/internal/core"
)

// PostgresStore persists accounts in PostgreSQL via a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool and
// ensures the accounts schema exists.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	s := &PostgresStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS accounts (
			address TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			data BYTEA NOT NULL,
			version BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_accounts_kind ON accounts(kind);
	`)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Get returns the record at addr, or nil if the account does not exist.
func (s *PostgresStore) Get(ctx context.Context, addr core.Address) (*Record, error) {
	rec := &Record{Address: addr}
	err := s.pool.QueryRow(ctx, `
		SELECT kind, data, version, updated_at
		FROM accounts WHERE address = $1
	`, addr.String()).Scan(&rec.Kind, &rec.Data, &rec.Version, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

// Commit verifies checks and applies writes inside one transaction. Checked
// rows are locked FOR UPDATE so concurrent commits against the same accounts
// serialize; a version mismatch rolls everything back.
func (s *PostgresStore) Commit(ctx context.Context, checks []Check, writes []Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, c := range checks {
		var version uint64
		err := tx.QueryRow(ctx, `
			SELECT version FROM accounts WHERE address = $1 FOR UPDATE
		`, c.Address.String()).Scan(&version)
		if errors.Is(err, pgx.ErrNoRows) {
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
		_, err := tx.Exec(ctx, `
			INSERT INTO accounts (address, kind, data, version, updated_at)
			VALUES ($1, $2, $3, 1, $4)
			ON CONFLICT (address) DO UPDATE SET
				kind = EXCLUDED.kind,
				data = EXCLUDED.data,
				version = accounts.version + 1,
				updated_at = EXCLUDED.updated_at
		`, w.Address.String(), w.Kind, w.Data, now)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
