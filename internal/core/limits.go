package core

import "time"

// Protocol-wide bounds. All byte-length limits are checked against the UTF-8
// encoding of the input.
const (
	MaxMetadataURILength        = 200
	MaxChannelNameLength        = 50
	MaxChannelDescriptionLength = 200
	MaxParticipantsPerChannel   = 1000
	MaxMessageContentLength     = 1000

	// MaxFeePerMessage and MaxDeposit bound a single fee and a single
	// deposit in base units.
	MaxFeePerMessage uint64 = 1_000_000_000
	MaxDeposit       uint64 = 10_000_000_000

	DefaultMessageTTL = 7 * 24 * time.Hour
	InvitationTTL     = 7 * 24 * time.Hour

	// Broadcast rate limiting: a hard cooldown between consecutive
	// messages, a short burst window, and a longer steady-state window.
	BroadcastCooldown = time.Second
	BurstWindow       = 10 * time.Second
	BurstLimit        = 10
	MessageWindow     = time.Minute
	MessagesPerWindow = 60

	// Invitation issuing is rate limited per inviter.
	InviteWindow    = time.Hour
	InvitesPerWindow = 10
)
