package protocol

import (
	"time"

	"github.com/pod-protocol/podd/internal/core"
	"github.com/pod-protocol/podd/internal/ledger"
)

// Engine executes protocol instructions against the account ledger. Every
// mutation runs inside a single ledger transaction, so concurrent conflicting
// instructions fail with a version conflict instead of interleaving.
type Engine struct {
	ledger     *ledger.Ledger
	events     EventSink
	now        func() time.Time
	messageTTL time.Duration
}

// New creates an engine. A nil sink discards events.
func New(l *ledger.Ledger, events EventSink) *Engine {
	if events == nil {
		events = NopSink{}
	}
	return &Engine{
		ledger:     l,
		events:     events,
		now:        time.Now,
		messageTTL: core.DefaultMessageTTL,
	}
}

// WithClock overrides the engine's time source. Tests use this to drive
// expiry and rate-limit windows deterministically.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// WithMessageTTL overrides the direct message expiry window.
func (e *Engine) WithMessageTTL(ttl time.Duration) *Engine {
	if ttl > 0 {
		e.messageTTL = ttl
	}
	return e
}

func (e *Engine) millis() int64 {
	return e.now().UnixMilli()
}

func (e *Engine) emit(eventType string, account core.Address, actor core.Key, at int64) {
	e.events.Emit(Event{
		ID:      newEventID(),
		Type:    eventType,
		Account: account,
		Actor:   actor,
		At:      at,
	})
}
