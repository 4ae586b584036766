// Package ledger provides the host-ledger execution model the instruction
// layer runs on: every instruction reads a consistent snapshot of account
// state, stages its writes, and commits them all-or-nothing with
// compare-and-commit version checks.
package ledger

import (
	"context"
	"fmt"

	"github.com/pod-protocol/podd/internal/core"
	"github.com/pod-protocol/podd/internal/store"
)

// Ledger wraps an AccountStore with transactional execution.
type Ledger struct {
	store store.AccountStore
}

// New creates a Ledger over the given store.
func New(s store.AccountStore) *Ledger {
	return &Ledger{store: s}
}

// Store returns the underlying account store (read-only use).
func (l *Ledger) Store() store.AccountStore {
	return l.store
}

// Tx is a single atomic state transition in flight. Reads record the version
// they observed (0 for absent accounts); writes stay staged until the
// enclosing Execute commits. A Tx must not outlive its callback.
type Tx struct {
	ctx      context.Context
	store    store.AccountStore
	observed map[core.Address]uint64
	staged   map[core.Address]store.Record
	order    []core.Address
}

// Get loads the account at addr into v. It returns false if the account does
// not exist. The observed version is recorded so the commit fails if a
// concurrent writer touches the account first.
func (tx *Tx) Get(addr core.Address, kind string, v any) (bool, error) {
	if rec, ok := tx.staged[addr]; ok {
		if rec.Kind != kind {
			return false, fmt.Errorf("account %s: kind %q, want %q", addr, rec.Kind, kind)
		}
		return true, core.Decode(rec.Data, v)
	}

	rec, err := tx.store.Get(tx.ctx, addr)
	if err != nil {
		return false, err
	}
	if rec == nil {
		if _, seen := tx.observed[addr]; !seen {
			tx.observed[addr] = 0
		}
		return false, nil
	}
	if rec.Kind != kind {
		return false, fmt.Errorf("account %s: kind %q, want %q", addr, rec.Kind, kind)
	}
	if _, seen := tx.observed[addr]; !seen {
		tx.observed[addr] = rec.Version
	}
	return true, core.Decode(rec.Data, v)
}

// Exists reports whether an account exists without decoding it.
func (tx *Tx) Exists(addr core.Address) (bool, error) {
	if _, ok := tx.staged[addr]; ok {
		return true, nil
	}
	rec, err := tx.store.Get(tx.ctx, addr)
	if err != nil {
		return false, err
	}
	if rec == nil {
		if _, seen := tx.observed[addr]; !seen {
			tx.observed[addr] = 0
		}
		return false, nil
	}
	if _, seen := tx.observed[addr]; !seen {
		tx.observed[addr] = rec.Version
	}
	return true, nil
}

// Put stages a write. Nothing reaches the store until the callback returns
// without error.
func (tx *Tx) Put(addr core.Address, kind string, v any) error {
	data, err := core.Encode(v)
	if err != nil {
		return err
	}
	if _, ok := tx.staged[addr]; !ok {
		tx.order = append(tx.order, addr)
	}
	tx.staged[addr] = store.Record{Address: addr, Kind: kind, Data: data}
	return nil
}

// Execute runs fn as one atomic instruction. If fn returns an error, no
// state changes. If fn succeeds, all staged writes commit together, guarded
// by the versions of every account fn observed; store.ErrVersionConflict
// surfaces when a concurrent commit got there first.
func (l *Ledger) Execute(ctx context.Context, fn func(tx *Tx) error) error {
	tx := &Tx{
		ctx:      ctx,
		store:    l.store,
		observed: make(map[core.Address]uint64),
		staged:   make(map[core.Address]store.Record),
	}

	if err := fn(tx); err != nil {
		return err
	}
	if len(tx.staged) == 0 {
		return nil
	}

	checks := make([]store.Check, 0, len(tx.observed))
	for addr, version := range tx.observed {
		checks = append(checks, store.Check{Address: addr, Version: version})
	}
	writes := make([]store.Record, 0, len(tx.staged))
	for _, addr := range tx.order {
		writes = append(writes, tx.staged[addr])
	}

	return l.store.Commit(ctx, checks, writes)
}

// View runs fn with read-only access to a snapshot. Staged writes are
// rejected at commit time by virtue of never committing; fn simply gets a Tx
// whose writes are discarded.
func (l *Ledger) View(ctx context.Context, fn func(tx *Tx) error) error {
	tx := &Tx{
		ctx:      ctx,
		store:    l.store,
		observed: make(map[core.Address]uint64),
		staged:   make(map[core.Address]store.Record),
	}
	return fn(tx)
}
