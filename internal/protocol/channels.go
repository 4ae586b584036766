package protocol

import (
	"context"
	"fmt"

	"github.com/pod-protocol/podd/internal/core"
	"github.com/pod-protocol/podd/internal/crypto"
	"github.com/pod-protocol/podd/internal/derive"
	"github.com/pod-protocol/podd/internal/ledger"
)

// CreateChannelParams are the inputs to CreateChannel and CreateChannelV2.
type CreateChannelParams struct {
	Creator         core.Key
	Name            string
	Description     string
	Visibility      core.Visibility
	MaxParticipants uint32
	FeePerMessage   uint64
}

func validateChannelParams(p CreateChannelParams) error {
	if p.Name == "" || len(p.Name) > core.MaxChannelNameLength {
		return fmt.Errorf("%w: channel name must be 1-%d bytes", core.ErrInvalidArgument, core.MaxChannelNameLength)
	}
	if len(p.Description) > core.MaxChannelDescriptionLength {
		return fmt.Errorf("%w: description exceeds %d bytes", core.ErrInvalidArgument, core.MaxChannelDescriptionLength)
	}
	if !p.Visibility.Valid() {
		return fmt.Errorf("%w: unknown visibility %q", core.ErrInvalidArgument, p.Visibility)
	}
	if p.MaxParticipants == 0 || p.MaxParticipants > core.MaxParticipantsPerChannel {
		return fmt.Errorf("%w: max participants must be 1-%d", core.ErrInvalidArgument, core.MaxParticipantsPerChannel)
	}
	if p.FeePerMessage > core.MaxFeePerMessage {
		return fmt.Errorf("%w: fee per message exceeds %d", core.ErrInvalidArgument, core.MaxFeePerMessage)
	}
	return nil
}

// CreateChannel creates a channel account. The creator is not enrolled as a
// participant; they join like anyone else.
func (e *Engine) CreateChannel(ctx context.Context, p CreateChannelParams) (core.Address, error) {
	if err := validateChannelParams(p); err != nil {
		return core.Address{}, err
	}

	addr, bump := derive.Channel(p.Creator, p.Name)
	now := e.millis()

	err := e.ledger.Execute(ctx, func(tx *ledger.Tx) error {
		if _, _, err := requireAgent(tx, p.Creator); err != nil {
			return err
		}
		exists, err := tx.Exists(addr)
		if err != nil {
			return err
		}
		if exists {
			return core.ErrNameTaken
		}
		return tx.Put(addr, core.KindChannel, &core.Channel{
			Creator:         p.Creator,
			Name:            p.Name,
			Description:     p.Description,
			Visibility:      p.Visibility,
			MaxParticipants: p.MaxParticipants,
			Participants:    0,
			FeePerMessage:   p.FeePerMessage,
			CreatedAt:       now,
			Active:          true,
			Bump:            bump,
		})
	})
	if err != nil {
		return core.Address{}, err
	}

	e.emit(EventChannelCreated, addr, p.Creator, now)
	return addr, nil
}

// CreateChannelV2 creates a channel and atomically enrolls the creator as
// its first participant.
func (e *Engine) CreateChannelV2(ctx context.Context, p CreateChannelParams) (core.Address, error) {
	if err := validateChannelParams(p); err != nil {
		return core.Address{}, err
	}

	addr, bump := derive.Channel(p.Creator, p.Name)
	now := e.millis()

	err := e.ledger.Execute(ctx, func(tx *ledger.Tx) error {
		creatorAgent, _, err := requireAgent(tx, p.Creator)
		if err != nil {
			return err
		}
		exists, err := tx.Exists(addr)
		if err != nil {
			return err
		}
		if exists {
			return core.ErrNameTaken
		}
		if err := tx.Put(addr, core.KindChannel, &core.Channel{
			Creator:         p.Creator,
			Name:            p.Name,
			Description:     p.Description,
			Visibility:      p.Visibility,
			MaxParticipants: p.MaxParticipants,
			Participants:    1,
			FeePerMessage:   p.FeePerMessage,
			CreatedAt:       now,
			Active:          true,
			Bump:            bump,
		}); err != nil {
			return err
		}
		partAddr, partBump := derive.Participant(addr, creatorAgent)
		return tx.Put(partAddr, core.KindParticipant, &core.Participant{
			Channel:  addr,
			Agent:    creatorAgent,
			JoinedAt: now,
			Active:   true,
			Bump:     partBump,
		})
	})
	if err != nil {
		return core.Address{}, err
	}

	e.emit(EventChannelCreated, addr, p.Creator, now)
	return addr, nil
}

// UpdateChannelParams carries the mutable channel fields. Nil pointers leave
// the corresponding field unchanged. The name is part of the channel address
// and cannot change.
type UpdateChannelParams struct {
	Creator         core.Key
	Channel         core.Address
	Description     *string
	Visibility      *core.Visibility
	MaxParticipants *uint32
	FeePerMessage   *uint64
	Active          *bool
}

// UpdateChannel updates channel settings. Only the creator may update, and
// the participant cap can never drop below the current member count.
func (e *Engine) UpdateChannel(ctx context.Context, p UpdateChannelParams) error {
	if p.Description != nil && len(*p.Description) > core.MaxChannelDescriptionLength {
		return fmt.Errorf("%w: description exceeds %d bytes", core.ErrInvalidArgument, core.MaxChannelDescriptionLength)
	}
	if p.Visibility != nil && !p.Visibility.Valid() {
		return fmt.Errorf("%w: unknown visibility %q", core.ErrInvalidArgument, *p.Visibility)
	}
	if p.FeePerMessage != nil && *p.FeePerMessage > core.MaxFeePerMessage {
		return fmt.Errorf("%w: fee per message exceeds %d", core.ErrInvalidArgument, core.MaxFeePerMessage)
	}

	now := e.millis()

	err := e.ledger.Execute(ctx, func(tx *ledger.Tx) error {
		var ch core.Channel
		found, err := tx.Get(p.Channel, core.KindChannel, &ch)
		if err != nil {
			return err
		}
		if !found {
			return core.ErrNotFound
		}
		if ch.Creator != p.Creator {
			return fmt.Errorf("%w: only the creator can update a channel", core.ErrUnauthorized)
		}
		if p.MaxParticipants != nil {
			if *p.MaxParticipants == 0 || *p.MaxParticipants > core.MaxParticipantsPerChannel {
				return fmt.Errorf("%w: max participants must be 1-%d", core.ErrInvalidArgument, core.MaxParticipantsPerChannel)
			}
			if *p.MaxParticipants < ch.Participants {
				return fmt.Errorf("%w: max participants below current count %d", core.ErrInvalidArgument, ch.Participants)
			}
			ch.MaxParticipants = *p.MaxParticipants
		}
		if p.Description != nil {
			ch.Description = *p.Description
		}
		if p.Visibility != nil {
			ch.Visibility = *p.Visibility
		}
		if p.FeePerMessage != nil {
			ch.FeePerMessage = *p.FeePerMessage
		}
		if p.Active != nil {
			ch.Active = *p.Active
		}
		return tx.Put(p.Channel, core.KindChannel, &ch)
	})
	if err != nil {
		return err
	}

	e.emit(EventChannelUpdated, p.Channel, p.Creator, now)
	return nil
}

// JoinChannel adds the caller's agent to a channel. Private channels require
// a live invitation; paid channels debit the caller's escrow for one join
// fee and credit the channel's collected balance, all in the same commit.
// A previous member who left is reactivated instead of recreated.
func (e *Engine) JoinChannel(ctx context.Context, owner core.Key, channel core.Address) error {
	now := e.millis()

	err := e.ledger.Execute(ctx, func(tx *ledger.Tx) error {
		agentAddr, _, err := requireAgent(tx, owner)
		if err != nil {
			return err
		}

		var ch core.Channel
		found, err := tx.Get(channel, core.KindChannel, &ch)
		if err != nil {
			return err
		}
		if !found {
			return core.ErrNotFound
		}
		if !ch.Active {
			return core.ErrChannelInactive
		}
		if ch.Participants >= ch.MaxParticipants {
			return core.ErrChannelFull
		}

		partAddr, partBump := derive.Participant(channel, agentAddr)
		var part core.Participant
		partFound, err := tx.Get(partAddr, core.KindParticipant, &part)
		if err != nil {
			return err
		}
		if partFound && part.Active {
			return core.ErrAlreadyInChannel
		}

		var invAddr core.Address
		var inv core.Invitation
		consumeInvitation := false
		if ch.Visibility == core.VisibilityPrivate {
			invAddr, _ = derive.Invitation(channel, owner)
			invFound, err := tx.Get(invAddr, core.KindInvitation, &inv)
			if err != nil {
				return err
			}
			if !invFound {
				return core.ErrInvitationRequired
			}
			if inv.Used {
				return core.ErrInvitationAlreadyUsed
			}
			if inv.Expired(now) {
				return core.ErrInvitationExpired
			}
			if inv.Channel != channel || inv.Invitee != owner {
				return core.ErrInvitationMismatch
			}
			if !crypto.VerifyCommitment(inv.Commitment, inv.Channel, inv.Inviter, inv.Invitee, inv.Nonce, inv.CreatedAt) {
				return core.ErrInvitationMismatch
			}
			consumeInvitation = true
		}

		if ch.FeePerMessage > 0 {
			escrowAddr, _ := derive.Escrow(channel, owner)
			var esc core.Escrow
			escFound, err := tx.Get(escrowAddr, core.KindEscrow, &esc)
			if err != nil {
				return err
			}
			if !escFound || esc.Balance < ch.FeePerMessage {
				return core.ErrInsufficientFunds
			}
			esc.Balance, err = core.CheckedSub(esc.Balance, ch.FeePerMessage)
			if err != nil {
				return err
			}
			esc.LastUpdated = now
			if err := tx.Put(escrowAddr, core.KindEscrow, &esc); err != nil {
				return err
			}
			ch.EscrowBalance, err = core.CheckedAdd(ch.EscrowBalance, ch.FeePerMessage)
			if err != nil {
				return err
			}
		}

		ch.Participants, err = core.CheckedAdd32(ch.Participants, 1)
		if err != nil {
			return err
		}
		if err := tx.Put(channel, core.KindChannel, &ch); err != nil {
			return err
		}

		if partFound {
			part.Active = true
			part.JoinedAt = now
		} else {
			part = core.Participant{
				Channel:  channel,
				Agent:    agentAddr,
				JoinedAt: now,
				Active:   true,
				Bump:     partBump,
			}
		}
		if err := tx.Put(partAddr, core.KindParticipant, &part); err != nil {
			return err
		}

		if consumeInvitation {
			inv.Used = true
			if err := tx.Put(invAddr, core.KindInvitation, &inv); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.emit(EventChannelJoined, channel, owner, now)
	return nil
}

// LeaveChannel deactivates the caller's membership and releases a capacity
// slot. The participant record stays, so rate-limit history survives a
// rejoin.
func (e *Engine) LeaveChannel(ctx context.Context, owner core.Key, channel core.Address) error {
	now := e.millis()

	err := e.ledger.Execute(ctx, func(tx *ledger.Tx) error {
		agentAddr, _, err := requireAgent(tx, owner)
		if err != nil {
			return err
		}

		var ch core.Channel
		found, err := tx.Get(channel, core.KindChannel, &ch)
		if err != nil {
			return err
		}
		if !found {
			return core.ErrNotFound
		}

		partAddr, _ := derive.Participant(channel, agentAddr)
		var part core.Participant
		partFound, err := tx.Get(partAddr, core.KindParticipant, &part)
		if err != nil {
			return err
		}
		if !partFound || !part.Active {
			return core.ErrNotInChannel
		}

		part.Active = false
		if err := tx.Put(partAddr, core.KindParticipant, &part); err != nil {
			return err
		}
		ch.Participants, err = core.CheckedSub32(ch.Participants, 1)
		if err != nil {
			return err
		}
		return tx.Put(channel, core.KindChannel, &ch)
	})
	if err != nil {
		return err
	}

	e.emit(EventChannelLeft, channel, owner, now)
	return nil
}

// InviteParams are the inputs to InviteToChannel. The nonce is chosen by the
// inviter and bound into the invitation commitment.
type InviteParams struct {
	Inviter core.Key
	Channel core.Address
	Invitee core.Key
	Nonce   uint64
}

// InviteToChannel issues a single-use invitation to a channel. The inviter
// must be the channel creator or an active participant. A used or expired
// invitation for the same invitee is replaced; a live one is a duplicate.
// Issuing is rate limited per inviter.
func (e *Engine) InviteToChannel(ctx context.Context, p InviteParams) (core.Address, error) {
	now := e.millis()

	var invAddr core.Address
	err := e.ledger.Execute(ctx, func(tx *ledger.Tx) error {
		agentAddr, agent, err := requireAgent(tx, p.Inviter)
		if err != nil {
			return err
		}

		var ch core.Channel
		found, err := tx.Get(p.Channel, core.KindChannel, &ch)
		if err != nil {
			return err
		}
		if !found {
			return core.ErrNotFound
		}
		if !ch.Active {
			return core.ErrChannelInactive
		}

		// The creator may always invite, even without a participant
		// record of their own.
		if ch.Creator != p.Inviter {
			partAddr, _ := derive.Participant(p.Channel, agentAddr)
			var part core.Participant
			partFound, err := tx.Get(partAddr, core.KindParticipant, &part)
			if err != nil {
				return err
			}
			if !partFound || !part.Active {
				return core.ErrNotInChannel
			}
		}

		// Fixed-window limit on invitations issued by this agent.
		windowMs := core.InviteWindow.Milliseconds()
		if now-agent.LastInviteAt >= windowMs {
			agent.InviteCount = 0
			agent.LastInviteAt = now
		}
		if agent.InviteCount >= core.InvitesPerWindow {
			return fmt.Errorf("%w: invitation limit reached", core.ErrRateLimitExceeded)
		}
		agent.InviteCount++
		if err := tx.Put(agentAddr, core.KindAgent, agent); err != nil {
			return err
		}

		var invBump uint8
		invAddr, invBump = derive.Invitation(p.Channel, p.Invitee)
		var existing core.Invitation
		invFound, err := tx.Get(invAddr, core.KindInvitation, &existing)
		if err != nil {
			return err
		}
		if invFound && !existing.Used && !existing.Expired(now) {
			return core.ErrDuplicateInvitation
		}

		return tx.Put(invAddr, core.KindInvitation, &core.Invitation{
			Channel:    p.Channel,
			Inviter:    agentAddr,
			Invitee:    p.Invitee,
			Nonce:      p.Nonce,
			Commitment: crypto.InviteCommitment(p.Channel, agentAddr, p.Invitee, p.Nonce, now),
			CreatedAt:  now,
			ExpiresAt:  now + core.InvitationTTL.Milliseconds(),
			Bump:       invBump,
		})
	})
	if err != nil {
		return core.Address{}, err
	}

	e.emit(EventInvitationIssued, invAddr, p.Inviter, now)
	return invAddr, nil
}

// BroadcastParams are the inputs to BroadcastMessage. The nonce makes the
// message address unique per (channel, sender, nonce).
type BroadcastParams struct {
	Sender  core.Key
	Channel core.Address
	Content string
	Type    core.MessageType
	ReplyTo *core.Address
	Nonce   uint64
}

// BroadcastMessage posts a message to a channel. The sender must be an
// active participant and passes three rate-limit gates in order: a one
// second cooldown since their last message, a burst cap over a sliding ten
// second window, and a per-minute cap.
func (e *Engine) BroadcastMessage(ctx context.Context, p BroadcastParams) (core.Address, error) {
	if p.Content == "" || len(p.Content) > core.MaxMessageContentLength {
		return core.Address{}, fmt.Errorf("%w: content must be 1-%d bytes", core.ErrInvalidArgument, core.MaxMessageContentLength)
	}

	now := e.millis()

	var addr core.Address
	err := e.ledger.Execute(ctx, func(tx *ledger.Tx) error {
		agentAddr, _, err := requireAgent(tx, p.Sender)
		if err != nil {
			return err
		}

		var ch core.Channel
		found, err := tx.Get(p.Channel, core.KindChannel, &ch)
		if err != nil {
			return err
		}
		if !found {
			return core.ErrNotFound
		}
		if !ch.Active {
			return core.ErrChannelInactive
		}

		partAddr, _ := derive.Participant(p.Channel, agentAddr)
		var part core.Participant
		partFound, err := tx.Get(partAddr, core.KindParticipant, &part)
		if err != nil {
			return err
		}
		if !partFound || !part.Active {
			return core.ErrNotInChannel
		}

		if part.LastMessageAt > 0 && now-part.LastMessageAt < core.BroadcastCooldown.Milliseconds() {
			return fmt.Errorf("%w: cooldown between messages", core.ErrRateLimitExceeded)
		}

		// Sliding burst window: drop entries strictly older than the
		// window, then check the cap.
		cutoff := now - core.BurstWindow.Milliseconds()
		recent := part.RecentBursts[:0]
		for _, ts := range part.RecentBursts {
			if ts >= cutoff {
				recent = append(recent, ts)
			}
		}
		if len(recent) >= core.BurstLimit {
			return fmt.Errorf("%w: burst limit reached", core.ErrRateLimitExceeded)
		}
		part.RecentBursts = append(recent, now)

		if now-part.WindowStart >= core.MessageWindow.Milliseconds() {
			part.WindowStart = now
			part.MessagesSent = 0
		}
		if part.MessagesSent >= core.MessagesPerWindow {
			return fmt.Errorf("%w: per-minute limit reached", core.ErrRateLimitExceeded)
		}
		part.MessagesSent++
		part.LastMessageAt = now

		var bump uint8
		addr, bump = derive.ChannelMessage(p.Channel, agentAddr, p.Nonce)
		exists, err := tx.Exists(addr)
		if err != nil {
			return err
		}
		if exists {
			return core.ErrDuplicateMessage
		}

		if err := tx.Put(partAddr, core.KindParticipant, &part); err != nil {
			return err
		}
		return tx.Put(addr, core.KindChannelMessage, &core.ChannelMessage{
			Channel:   p.Channel,
			Sender:    agentAddr,
			Content:   p.Content,
			Type:      p.Type,
			ReplyTo:   p.ReplyTo,
			Nonce:     p.Nonce,
			CreatedAt: now,
			Bump:      bump,
		})
	})
	if err != nil {
		return core.Address{}, err
	}

	e.emit(EventChannelBroadcast, addr, p.Sender, now)
	return addr, nil
}

// GetChannel loads a channel account by address.
func (e *Engine) GetChannel(ctx context.Context, addr core.Address) (*core.Channel, error) {
	var ch core.Channel
	err := e.ledger.View(ctx, func(tx *ledger.Tx) error {
		found, err := tx.Get(addr, core.KindChannel, &ch)
		if err != nil {
			return err
		}
		if !found {
			return core.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// GetParticipant loads the membership record for an agent in a channel.
func (e *Engine) GetParticipant(ctx context.Context, channel, agent core.Address) (*core.Participant, error) {
	addr, _ := derive.Participant(channel, agent)
	var part core.Participant
	err := e.ledger.View(ctx, func(tx *ledger.Tx) error {
		found, err := tx.Get(addr, core.KindParticipant, &part)
		if err != nil {
			return err
		}
		if !found {
			return core.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &part, nil
}

// GetInvitation loads the invitation for an invitee in a channel.
func (e *Engine) GetInvitation(ctx context.Context, channel core.Address, invitee core.Key) (*core.Invitation, error) {
	addr, _ := derive.Invitation(channel, invitee)
	var inv core.Invitation
	err := e.ledger.View(ctx, func(tx *ledger.Tx) error {
		found, err := tx.Get(addr, core.KindInvitation, &inv)
		if err != nil {
			return err
		}
		if !found {
			return core.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// GetChannelMessage loads a broadcast message by address.
func (e *Engine) GetChannelMessage(ctx context.Context, addr core.Address) (*core.ChannelMessage, error) {
	var msg core.ChannelMessage
	err := e.ledger.View(ctx, func(tx *ledger.Tx) error {
		found, err := tx.Get(addr, core.KindChannelMessage, &msg)
		if err != nil {
			return err
		}
		if !found {
			return core.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}
