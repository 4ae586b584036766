package core

import "errors"

// Every validation failure the instruction layer can produce is a distinct
// sentinel so callers can branch with errors.Is instead of matching strings.
// Failures are detected before any state mutation; an instruction that
// returns one of these has had no effect.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("account not found")

	ErrAgentExists     = errors.New("agent already registered")
	ErrInvalidMetadata = errors.New("invalid metadata URI")

	ErrRecipientNotFound = errors.New("recipient agent not found")
	ErrDuplicateMessage  = errors.New("duplicate message")
	ErrMessageExpired    = errors.New("message expired")
	ErrInvalidTransition = errors.New("invalid message status transition")

	ErrNameTaken        = errors.New("channel name already taken")
	ErrChannelFull      = errors.New("channel is full")
	ErrChannelInactive  = errors.New("channel is inactive")
	ErrAlreadyInChannel = errors.New("already in channel")
	ErrNotInChannel     = errors.New("not in channel")

	ErrInvitationRequired    = errors.New("private channel requires invitation")
	ErrInvitationAlreadyUsed = errors.New("invitation already used")
	ErrInvitationMismatch    = errors.New("invitation does not verify")
	ErrInvitationExpired     = errors.New("invitation expired")
	ErrDuplicateInvitation   = errors.New("invitation already outstanding")

	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInsufficientBalance = errors.New("insufficient escrow balance")
	ErrArithmeticOverflow  = errors.New("arithmetic overflow")
	ErrArithmeticUnderflow = errors.New("arithmetic underflow")

	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	ErrInvalidArgument = errors.New("invalid argument")
)
