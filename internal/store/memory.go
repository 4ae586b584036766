package store

import (
	"context"
	"sync"
	"time"

	"github.com/pod-protocol/podd/internal/core"
)

// MemoryStore is an in-process AccountStore. It backs tests and single-node
// development runs; commits serialize under one mutex, which trivially gives
// the atomicity Commit requires.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[core.Address]Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[core.Address]Record)}
}

// Close is a no-op.
func (s *MemoryStore) Close() {}

// Ping is a no-op.
func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

// Get returns a copy of the record at addr, or nil if absent.
func (s *MemoryStore) Get(ctx context.Context, addr core.Address) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.accounts[addr]
	if !ok {
		return nil, nil
	}
	cp := rec
	cp.Data = append([]byte(nil), rec.Data...)
	return &cp, nil
}

// Commit verifies every check against current versions, then applies all
// writes. Nothing is applied on a conflict.
func (s *MemoryStore) Commit(ctx context.Context, checks []Check, writes []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range checks {
		current := uint64(0)
		if rec, ok := s.accounts[c.Address]; ok {
			current = rec.Version
		}
		if current != c.Version {
			return ErrVersionConflict
		}
	}

	now := time.Now().UnixMilli()
	for _, w := range writes {
		prev := s.accounts[w.Address].Version
		s.accounts[w.Address] = Record{
			Address:   w.Address,
			Kind:      w.Kind,
			Data:      append([]byte(nil), w.Data...),
			Version:   prev + 1,
			UpdatedAt: now,
		}
	}
	return nil
}
