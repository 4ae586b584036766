package core

import (
	"encoding/json"
	"fmt"
)

// Account kinds, used both for store records and for derivation namespaces.
const (
	KindAgent          = "agent"
	KindMessage        = "message"
	KindChannel        = "channel"
	KindParticipant    = "participant"
	KindInvitation     = "invitation"
	KindEscrow         = "escrow"
	KindChannelMessage = "channel_message"
)

// MessageType is a closed tagged variant. Values 0-3 are the standard
// variants; Custom payloads occupy 4..255 via CustomMessageType.
type MessageType uint8

const (
	MessageTypeText     MessageType = 0
	MessageTypeData     MessageType = 1
	MessageTypeCommand  MessageType = 2
	MessageTypeResponse MessageType = 3

	maxCustomMessageType = 251
)

// CustomMessageType returns the Custom(n) variant. n must be at most 251 so
// the discriminant byte (4+n) stays in range.
func CustomMessageType(n uint8) (MessageType, error) {
	if n > maxCustomMessageType {
		return 0, fmt.Errorf("%w: custom message type %d out of range", ErrInvalidArgument, n)
	}
	return MessageType(4 + n), nil
}

// Discriminant returns the single byte used as a derivation seed for the
// message type: Text=0, Data=1, Command=2, Response=3, Custom(n)=4+n.
func (t MessageType) Discriminant() byte {
	return byte(t)
}

// MessageStatus tracks delivery state. Transitions are monotonic:
// Pending -> Delivered -> Read. Failed is terminal from any state.
// Expired is a read-time projection, never stored.
type MessageStatus string

const (
	StatusPending   MessageStatus = "pending"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusFailed    MessageStatus = "failed"
	StatusExpired   MessageStatus = "expired"
)

// rank orders the monotonic statuses. Failed and Expired sit outside the
// ordering.
func (s MessageStatus) rank() (int, bool) {
	switch s {
	case StatusPending:
		return 0, true
	case StatusDelivered:
		return 1, true
	case StatusRead:
		return 2, true
	default:
		return 0, false
	}
}

// CanTransitionTo reports whether a stored status may move to next.
func (s MessageStatus) CanTransitionTo(next MessageStatus) bool {
	if s == StatusFailed {
		return false
	}
	if next == StatusFailed {
		return true
	}
	from, ok := s.rank()
	if !ok {
		return false
	}
	to, ok := next.rank()
	if !ok {
		return false
	}
	return to == from+1
}

// Visibility controls who may join a channel.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Valid reports whether v is a known visibility.
func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

// Agent is the identity account of a protocol participant. Exactly one
// exists per owner key, at derive("agent", owner).
type Agent struct {
	Owner        Key    `json:"owner"`
	Capabilities uint64 `json:"capabilities"`
	MetadataURI  string `json:"metadata_uri"`
	Reputation   uint64 `json:"reputation"`
	LastUpdated  int64  `json:"last_updated"` // unix ms
	InviteCount  uint64 `json:"invite_count"` // invitations issued in the current window
	LastInviteAt int64  `json:"last_invite_at"`
	Bump         uint8  `json:"bump"`
}

// Message is a direct message account. Sender is always the sender's agent
// address; Recipient is the recipient's owner key.
type Message struct {
	Sender      Address       `json:"sender"`
	Recipient   Key           `json:"recipient"`
	PayloadHash Hash          `json:"payload_hash"`
	Type        MessageType   `json:"message_type"`
	Status      MessageStatus `json:"status"`
	CreatedAt   int64         `json:"created_at"`
	ExpiresAt   int64         `json:"expires_at"`
	Bump        uint8         `json:"bump"`
}

// Expired reports whether the message is past its expiry at the given time.
func (m *Message) Expired(nowMillis int64) bool {
	return nowMillis > m.ExpiresAt
}

// Channel is a group communication account at
// derive("channel", creator, name).
type Channel struct {
	Creator         Key        `json:"creator"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	Visibility      Visibility `json:"visibility"`
	MaxParticipants uint32     `json:"max_participants"`
	Participants    uint32     `json:"current_participants"`
	FeePerMessage   uint64     `json:"fee_per_message"`
	EscrowBalance   uint64     `json:"escrow_balance"` // join fees collected
	CreatedAt       int64      `json:"created_at"`
	Active          bool       `json:"is_active"`
	Bump            uint8      `json:"bump"`
}

// Participant is the membership account linking an agent to a channel, at
// derive("participant", channel, agent). It also carries the broadcast
// rate-limit bookkeeping for that membership.
type Participant struct {
	Channel       Address `json:"channel"`
	Agent         Address `json:"agent"`
	JoinedAt      int64   `json:"joined_at"`
	MessagesSent  uint64  `json:"messages_sent"` // messages in the current minute window
	WindowStart   int64   `json:"window_start"`
	RecentBursts  []int64 `json:"recent_bursts,omitempty"` // timestamps inside the burst window
	LastMessageAt int64   `json:"last_message_at"`
	Active        bool    `json:"is_active"`
	Bump          uint8   `json:"bump"`
}

// Invitation is a single-use access grant for a private channel, at
// derive("invitation", channel, invitee). Commitment binds
// (channel, inviter, invitee, nonce, created_at) and is verified in constant
// time when the invitee joins.
type Invitation struct {
	Channel    Address `json:"channel"`
	Inviter    Address `json:"inviter"` // inviter's agent address
	Invitee    Key     `json:"invitee"`
	Nonce      uint64  `json:"nonce"`
	Commitment Hash    `json:"commitment"`
	CreatedAt  int64   `json:"created_at"`
	ExpiresAt  int64   `json:"expires_at"`
	Used       bool    `json:"is_used"`
	Bump       uint8   `json:"bump"`
}

// Expired reports whether the invitation is past its expiry.
func (i *Invitation) Expired(nowMillis int64) bool {
	return nowMillis > i.ExpiresAt
}

// Escrow is a prepaid balance account at
// derive("escrow", channel, depositor), debited only by an explicit withdraw
// or atomically inside a paid channel join.
type Escrow struct {
	Channel     Address `json:"channel"`
	Depositor   Key     `json:"depositor"`
	Balance     uint64  `json:"balance"`
	CreatedAt   int64   `json:"created_at"`
	LastUpdated int64   `json:"last_updated"`
	Bump        uint8   `json:"bump"`
}

// ChannelMessage is a broadcast message account at
// derive("channel_message", channel, sender agent, nonce).
type ChannelMessage struct {
	Channel   Address     `json:"channel"`
	Sender    Address     `json:"sender"` // sender's agent address
	Content   string      `json:"content"`
	Type      MessageType `json:"message_type"`
	ReplyTo   *Address    `json:"reply_to,omitempty"`
	Nonce     uint64      `json:"nonce"`
	CreatedAt int64       `json:"created_at"`
	EditedAt  *int64      `json:"edited_at,omitempty"`
	Bump      uint8       `json:"bump"`
}

// Encode serializes an account payload for storage.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Decode deserializes an account payload from storage.
func Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
