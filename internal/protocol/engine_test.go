package protocol

import (
	"context"
	"testing"
	"time"

	"github.com/pod-protocol/podd/internal/core"
	"github.com/pod-protocol/podd/internal/ledger"
	"github.com/pod-protocol/podd/internal/store"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	at time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.at
}

func (c *fakeClock) Advance(d time.Duration) {
	c.at = c.at.Add(d)
}

func newTestEngine(t *testing.T) (*Engine, *fakeClock) {
	t.Helper()
	clk := &fakeClock{at: time.UnixMilli(1_700_000_000_000)}
	e := New(ledger.New(store.NewMemoryStore()), nil).WithClock(clk.Now)
	return e, clk
}

func testKey(b byte) core.Key {
	var k core.Key
	k[0] = b
	k[31] = 1
	return k
}

func testHash(b byte) core.Hash {
	var h core.Hash
	h[0] = b
	return h
}

func registerAgent(t *testing.T, e *Engine, owner core.Key) core.Address {
	t.Helper()
	addr, err := e.RegisterAgent(context.Background(), RegisterAgentParams{
		Owner:       owner,
		MetadataURI: "https://example.com/agent.json",
	})
	if err != nil {
		t.Fatalf("RegisterAgent: %v", err)
	}
	return addr
}

func createChannel(t *testing.T, e *Engine, creator core.Key, name string, vis core.Visibility, maxParts uint32, fee uint64) core.Address {
	t.Helper()
	addr, err := e.CreateChannel(context.Background(), CreateChannelParams{
		Creator:         creator,
		Name:            name,
		Visibility:      vis,
		MaxParticipants: maxParts,
		FeePerMessage:   fee,
	})
	if err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}
	return addr
}

func joinChannel(t *testing.T, e *Engine, owner core.Key, channel core.Address) {
	t.Helper()
	if err := e.JoinChannel(context.Background(), owner, channel); err != nil {
		t.Fatalf("JoinChannel: %v", err)
	}
}
