package store

import (
	"context"
	"errors"

	"github.com/pod-protocol/podd/internal/core"
)

// ErrVersionConflict is returned by Commit when another writer changed (or
// created) a checked account between snapshot read and commit.
var ErrVersionConflict = errors.New("account version conflict")

// Record is a stored account: a derived address, the account kind, the
// serialized payload and a monotonically increasing version used for
// compare-and-commit. Version 0 means "does not exist".
type Record struct {
	Address   core.Address
	Kind      string
	Data      []byte
	Version   uint64
	UpdatedAt int64 // unix ms
}

// Check asserts that an account is still at the version observed when it was
// read. Version 0 asserts the account must not exist.
type Check struct {
	Address core.Address
	Version uint64
}

// AccountStore is the persistence contract for the account ledger.
// PostgresStore, SQLiteStore and MemoryStore implement this interface.
//
// Commit applies all writes atomically after verifying every check; if any
// check fails it returns ErrVersionConflict and applies nothing. This is the
// primitive the instruction layer builds its all-or-nothing transitions on.
type AccountStore interface {
	Close()
	Ping(ctx context.Context) error

	// Get returns the record at addr, or nil if the account does not exist.
	Get(ctx context.Context, addr core.Address) (*Record, error)

	// Commit atomically verifies checks and applies writes. Write versions
	// are assigned by the store (previous version + 1).
	Commit(ctx context.Context, checks []Check, writes []Record) error
}
