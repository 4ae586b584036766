package protocol

import (
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/pod-protocol/podd/internal/core"
)

// Event types emitted after a successful instruction.
const (
	EventAgentRegistered  = "agent.registered"
	EventAgentUpdated     = "agent.updated"
	EventMessageSent      = "message.sent"
	EventMessageStatus    = "message.status"
	EventChannelCreated   = "channel.created"
	EventChannelUpdated   = "channel.updated"
	EventChannelJoined    = "channel.joined"
	EventChannelLeft      = "channel.left"
	EventInvitationIssued = "invitation.issued"
	EventChannelBroadcast = "channel.broadcast"
	EventEscrowDeposited  = "escrow.deposited"
	EventEscrowWithdrawn  = "escrow.withdrawn"
)

// Event describes a committed state change. ID is a ULID, so events sort by
// emission time.
type Event struct {
	ID      string       `json:"id"`
	Type    string       `json:"type"`
	Account core.Address `json:"account"`
	Actor   core.Key     `json:"actor"`
	At      int64        `json:"at"` // unix ms
}

// EventSink receives events after the backing store commit succeeds.
type EventSink interface {
	Emit(Event)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Emit(Event) {}

// LogSink writes events to a structured logger.
type LogSink struct {
	Log zerolog.Logger
}

func (s LogSink) Emit(ev Event) {
	s.Log.Info().
		Str("event_id", ev.ID).
		Str("type", ev.Type).
		Str("account", ev.Account.String()).
		Str("actor", ev.Actor.String()).
		Int64("at", ev.At).
		Msg("event")
}

func newEventID() string {
	return ulid.Make().String()
}
