package store

import (
	"context"
	"errors"
	"testing"

	"github.com/pod-protocol/podd/internal/core"
)

func addr(b byte) core.Address {
	var a core.Address
	a[0] = b
	return a
}

func TestMemoryGetAbsent(t *testing.T) {
	s := NewMemoryStore()
	rec, err := s.Get(context.Background(), addr(1))
	if err != nil {
		t.Fatal(err)
	}
	if rec != nil {
		t.Fatal("absent account must return nil record")
	}
}

func TestMemoryCommitAssignsVersions(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	a := addr(1)

	err := s.Commit(ctx,
		[]Check{{Address: a, Version: 0}},
		[]Record{{Address: a, Kind: core.KindAgent, Data: []byte(`{"v":1}`)}})
	if err != nil {
		t.Fatal(err)
	}

	rec, err := s.Get(ctx, a)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Version != 1 {
		t.Fatalf("first write version = %d, want 1", rec.Version)
	}
	if rec.Kind != core.KindAgent {
		t.Fatalf("kind = %q", rec.Kind)
	}

	if err := s.Commit(ctx,
		[]Check{{Address: a, Version: 1}},
		[]Record{{Address: a, Kind: core.KindAgent, Data: []byte(`{"v":2}`)}}); err != nil {
		t.Fatal(err)
	}
	rec, _ = s.Get(ctx, a)
	if rec.Version != 2 {
		t.Fatalf("second write version = %d, want 2", rec.Version)
	}
}

func TestMemoryCommitConflicts(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	a := addr(1)

	if err := s.Commit(ctx, nil, []Record{{Address: a, Kind: core.KindAgent, Data: []byte(`{}`)}}); err != nil {
		t.Fatal(err)
	}

	// Must-not-exist check against an existing account.
	err := s.Commit(ctx,
		[]Check{{Address: a, Version: 0}},
		[]Record{{Address: a, Kind: core.KindAgent, Data: []byte(`{}`)}})
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}

	// Stale version check.
	err = s.Commit(ctx,
		[]Check{{Address: a, Version: 7}},
		[]Record{{Address: a, Kind: core.KindAgent, Data: []byte(`{}`)}})
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}
}

func TestMemoryCommitAllOrNothing(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	a, b := addr(1), addr(2)

	if err := s.Commit(ctx, nil, []Record{{Address: a, Kind: core.KindEscrow, Data: []byte(`{}`)}}); err != nil {
		t.Fatal(err)
	}

	// One stale check aborts every write in the batch.
	err := s.Commit(ctx,
		[]Check{{Address: a, Version: 99}},
		[]Record{
			{Address: a, Kind: core.KindEscrow, Data: []byte(`{"drained":true}`)},
			{Address: b, Kind: core.KindChannel, Data: []byte(`{}`)},
		})
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}
	rec, _ := s.Get(ctx, b)
	if rec != nil {
		t.Fatal("write applied despite failed check")
	}
}

func TestMemoryGetReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	a := addr(1)

	if err := s.Commit(ctx, nil, []Record{{Address: a, Kind: core.KindAgent, Data: []byte(`{"v":1}`)}}); err != nil {
		t.Fatal(err)
	}
	rec, _ := s.Get(ctx, a)
	rec.Data[0] = 'X'
	again, _ := s.Get(ctx, a)
	if again.Data[0] != '{' {
		t.Fatal("caller mutation leaked into the store")
	}
}
