package protocol

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/pod-protocol/podd/internal/core"
	"github.com/pod-protocol/podd/internal/derive"
)

func TestCreateChannel(t *testing.T) {
	e, _ := newTestEngine(t)
	creator := testKey(1)
	registerAgent(t, e, creator)

	addr := createChannel(t, e, creator, "general", core.VisibilityPublic, 100, 0)

	ch, err := e.GetChannel(context.Background(), addr)
	if err != nil {
		t.Fatalf("GetChannel: %v", err)
	}
	if !ch.Active {
		t.Fatal("new channel should be active")
	}
	if ch.Participants != 0 {
		t.Fatalf("participants = %d, want 0", ch.Participants)
	}
}

func TestCreateChannelNameTaken(t *testing.T) {
	e, _ := newTestEngine(t)
	creator := testKey(1)
	registerAgent(t, e, creator)
	createChannel(t, e, creator, "general", core.VisibilityPublic, 100, 0)

	_, err := e.CreateChannel(context.Background(), CreateChannelParams{
		Creator:         creator,
		Name:            "general",
		Visibility:      core.VisibilityPublic,
		MaxParticipants: 100,
	})
	if !errors.Is(err, core.ErrNameTaken) {
		t.Fatalf("err = %v, want ErrNameTaken", err)
	}

	// A different creator can reuse the name.
	other := testKey(2)
	registerAgent(t, e, other)
	createChannel(t, e, other, "general", core.VisibilityPublic, 100, 0)
}

func TestCreateChannelValidation(t *testing.T) {
	e, _ := newTestEngine(t)
	creator := testKey(1)
	registerAgent(t, e, creator)

	cases := []CreateChannelParams{
		{Creator: creator, Name: "", Visibility: core.VisibilityPublic, MaxParticipants: 10},
		{Creator: creator, Name: strings.Repeat("n", core.MaxChannelNameLength+1), Visibility: core.VisibilityPublic, MaxParticipants: 10},
		{Creator: creator, Name: "ok", Description: strings.Repeat("d", core.MaxChannelDescriptionLength+1), Visibility: core.VisibilityPublic, MaxParticipants: 10},
		{Creator: creator, Name: "ok", Visibility: "hidden", MaxParticipants: 10},
		{Creator: creator, Name: "ok", Visibility: core.VisibilityPublic, MaxParticipants: 0},
		{Creator: creator, Name: "ok", Visibility: core.VisibilityPublic, MaxParticipants: core.MaxParticipantsPerChannel + 1},
		{Creator: creator, Name: "ok", Visibility: core.VisibilityPublic, MaxParticipants: 10, FeePerMessage: core.MaxFeePerMessage + 1},
	}
	for i, p := range cases {
		if _, err := e.CreateChannel(context.Background(), p); !errors.Is(err, core.ErrInvalidArgument) {
			t.Fatalf("case %d: err = %v, want ErrInvalidArgument", i, err)
		}
	}
}

func TestCreateChannelV2EnrollsCreator(t *testing.T) {
	e, _ := newTestEngine(t)
	creator := testKey(1)
	creatorAgent := registerAgent(t, e, creator)

	addr, err := e.CreateChannelV2(context.Background(), CreateChannelParams{
		Creator:         creator,
		Name:            "general",
		Visibility:      core.VisibilityPublic,
		MaxParticipants: 100,
	})
	if err != nil {
		t.Fatalf("CreateChannelV2: %v", err)
	}

	ch, _ := e.GetChannel(context.Background(), addr)
	if ch.Participants != 1 {
		t.Fatalf("participants = %d, want 1", ch.Participants)
	}
	part, err := e.GetParticipant(context.Background(), addr, creatorAgent)
	if err != nil {
		t.Fatalf("GetParticipant: %v", err)
	}
	if !part.Active {
		t.Fatal("creator participant should be active")
	}

	// The creator can broadcast without a separate join.
	if _, err := e.BroadcastMessage(context.Background(), BroadcastParams{
		Sender:  creator,
		Channel: addr,
		Content: "hello",
		Nonce:   1,
	}); err != nil {
		t.Fatalf("BroadcastMessage: %v", err)
	}
}

func TestUpdateChannel(t *testing.T) {
	e, _ := newTestEngine(t)
	creator := testKey(1)
	registerAgent(t, e, creator)
	addr := createChannel(t, e, creator, "general", core.VisibilityPublic, 100, 0)

	desc := "updated"
	fee := uint64(500)
	active := false
	err := e.UpdateChannel(context.Background(), UpdateChannelParams{
		Creator:       creator,
		Channel:       addr,
		Description:   &desc,
		FeePerMessage: &fee,
		Active:        &active,
	})
	if err != nil {
		t.Fatalf("UpdateChannel: %v", err)
	}

	ch, _ := e.GetChannel(context.Background(), addr)
	if ch.Description != desc || ch.FeePerMessage != fee || ch.Active {
		t.Fatal("update not applied")
	}
}

func TestUpdateChannelAuthorization(t *testing.T) {
	e, _ := newTestEngine(t)
	creator, other := testKey(1), testKey(2)
	registerAgent(t, e, creator)
	registerAgent(t, e, other)
	addr := createChannel(t, e, creator, "general", core.VisibilityPublic, 100, 0)

	desc := "hijack"
	err := e.UpdateChannel(context.Background(), UpdateChannelParams{
		Creator:     other,
		Channel:     addr,
		Description: &desc,
	})
	if !errors.Is(err, core.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestUpdateChannelCapBelowCount(t *testing.T) {
	e, _ := newTestEngine(t)
	creator := testKey(1)
	registerAgent(t, e, creator)
	addr := createChannel(t, e, creator, "general", core.VisibilityPublic, 100, 0)

	for i := byte(0); i < 3; i++ {
		member := testKey(10 + i)
		registerAgent(t, e, member)
		joinChannel(t, e, member, addr)
	}

	two := uint32(2)
	err := e.UpdateChannel(context.Background(), UpdateChannelParams{
		Creator:         creator,
		Channel:         addr,
		MaxParticipants: &two,
	})
	if !errors.Is(err, core.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestJoinChannel(t *testing.T) {
	e, _ := newTestEngine(t)
	creator, member := testKey(1), testKey(2)
	registerAgent(t, e, creator)
	memberAgent := registerAgent(t, e, member)
	addr := createChannel(t, e, creator, "general", core.VisibilityPublic, 100, 0)

	joinChannel(t, e, member, addr)

	ch, _ := e.GetChannel(context.Background(), addr)
	if ch.Participants != 1 {
		t.Fatalf("participants = %d, want 1", ch.Participants)
	}
	part, err := e.GetParticipant(context.Background(), addr, memberAgent)
	if err != nil {
		t.Fatalf("GetParticipant: %v", err)
	}
	if !part.Active {
		t.Fatal("participant should be active")
	}

	if err := e.JoinChannel(context.Background(), member, addr); !errors.Is(err, core.ErrAlreadyInChannel) {
		t.Fatalf("double join: err = %v, want ErrAlreadyInChannel", err)
	}
}

func TestJoinChannelFull(t *testing.T) {
	e, _ := newTestEngine(t)
	creator := testKey(1)
	registerAgent(t, e, creator)
	addr := createChannel(t, e, creator, "tiny", core.VisibilityPublic, 2, 0)

	for i := byte(0); i < 2; i++ {
		member := testKey(10 + i)
		registerAgent(t, e, member)
		joinChannel(t, e, member, addr)
	}

	late := testKey(20)
	registerAgent(t, e, late)
	if err := e.JoinChannel(context.Background(), late, addr); !errors.Is(err, core.ErrChannelFull) {
		t.Fatalf("err = %v, want ErrChannelFull", err)
	}
}

func TestJoinChannelInactive(t *testing.T) {
	e, _ := newTestEngine(t)
	creator, member := testKey(1), testKey(2)
	registerAgent(t, e, creator)
	registerAgent(t, e, member)
	addr := createChannel(t, e, creator, "general", core.VisibilityPublic, 100, 0)

	inactive := false
	if err := e.UpdateChannel(context.Background(), UpdateChannelParams{
		Creator: creator, Channel: addr, Active: &inactive,
	}); err != nil {
		t.Fatalf("UpdateChannel: %v", err)
	}

	if err := e.JoinChannel(context.Background(), member, addr); !errors.Is(err, core.ErrChannelInactive) {
		t.Fatalf("err = %v, want ErrChannelInactive", err)
	}
}

func TestLeaveAndRejoin(t *testing.T) {
	e, _ := newTestEngine(t)
	creator, member := testKey(1), testKey(2)
	registerAgent(t, e, creator)
	registerAgent(t, e, member)
	addr := createChannel(t, e, creator, "general", core.VisibilityPublic, 100, 0)

	joinChannel(t, e, member, addr)
	if err := e.LeaveChannel(context.Background(), member, addr); err != nil {
		t.Fatalf("LeaveChannel: %v", err)
	}

	ch, _ := e.GetChannel(context.Background(), addr)
	if ch.Participants != 0 {
		t.Fatalf("participants = %d, want 0 after leave", ch.Participants)
	}

	if err := e.LeaveChannel(context.Background(), member, addr); !errors.Is(err, core.ErrNotInChannel) {
		t.Fatalf("double leave: err = %v, want ErrNotInChannel", err)
	}

	// A former member can rejoin; the membership record is reactivated.
	joinChannel(t, e, member, addr)
	ch, _ = e.GetChannel(context.Background(), addr)
	if ch.Participants != 1 {
		t.Fatalf("participants = %d, want 1 after rejoin", ch.Participants)
	}
}

func TestJoinPrivateChannelRequiresInvitation(t *testing.T) {
	e, _ := newTestEngine(t)
	creator, member := testKey(1), testKey(2)
	registerAgent(t, e, creator)
	registerAgent(t, e, member)

	addr, err := e.CreateChannelV2(context.Background(), CreateChannelParams{
		Creator:         creator,
		Name:            "private",
		Visibility:      core.VisibilityPrivate,
		MaxParticipants: 100,
	})
	if err != nil {
		t.Fatalf("CreateChannelV2: %v", err)
	}

	if err := e.JoinChannel(context.Background(), member, addr); !errors.Is(err, core.ErrInvitationRequired) {
		t.Fatalf("err = %v, want ErrInvitationRequired", err)
	}

	if _, err := e.InviteToChannel(context.Background(), InviteParams{
		Inviter: creator,
		Channel: addr,
		Invitee: member,
		Nonce:   1,
	}); err != nil {
		t.Fatalf("InviteToChannel: %v", err)
	}

	joinChannel(t, e, member, addr)

	// The invitation is single use: leaving and rejoining needs a new one.
	if err := e.LeaveChannel(context.Background(), member, addr); err != nil {
		t.Fatalf("LeaveChannel: %v", err)
	}
	if err := e.JoinChannel(context.Background(), member, addr); !errors.Is(err, core.ErrInvitationAlreadyUsed) {
		t.Fatalf("rejoin with used invitation: err = %v, want ErrInvitationAlreadyUsed", err)
	}
}

func TestInvitationExpiry(t *testing.T) {
	e, clk := newTestEngine(t)
	creator, member := testKey(1), testKey(2)
	registerAgent(t, e, creator)
	registerAgent(t, e, member)

	addr, err := e.CreateChannelV2(context.Background(), CreateChannelParams{
		Creator:         creator,
		Name:            "private",
		Visibility:      core.VisibilityPrivate,
		MaxParticipants: 100,
	})
	if err != nil {
		t.Fatalf("CreateChannelV2: %v", err)
	}
	if _, err := e.InviteToChannel(context.Background(), InviteParams{
		Inviter: creator, Channel: addr, Invitee: member, Nonce: 1,
	}); err != nil {
		t.Fatalf("InviteToChannel: %v", err)
	}

	clk.Advance(core.InvitationTTL + time.Millisecond)
	if err := e.JoinChannel(context.Background(), member, addr); !errors.Is(err, core.ErrInvitationExpired) {
		t.Fatalf("err = %v, want ErrInvitationExpired", err)
	}

	// An expired invitation can be reissued.
	if _, err := e.InviteToChannel(context.Background(), InviteParams{
		Inviter: creator, Channel: addr, Invitee: member, Nonce: 2,
	}); err != nil {
		t.Fatalf("reissue after expiry: %v", err)
	}
	joinChannel(t, e, member, addr)
}

func TestInviteDuplicateAndRateLimit(t *testing.T) {
	e, _ := newTestEngine(t)
	creator := testKey(1)
	registerAgent(t, e, creator)

	addr, err := e.CreateChannelV2(context.Background(), CreateChannelParams{
		Creator:         creator,
		Name:            "private",
		Visibility:      core.VisibilityPrivate,
		MaxParticipants: 100,
	})
	if err != nil {
		t.Fatalf("CreateChannelV2: %v", err)
	}

	ctx := context.Background()
	if _, err := e.InviteToChannel(ctx, InviteParams{Inviter: creator, Channel: addr, Invitee: testKey(50), Nonce: 1}); err != nil {
		t.Fatalf("InviteToChannel: %v", err)
	}
	if _, err := e.InviteToChannel(ctx, InviteParams{Inviter: creator, Channel: addr, Invitee: testKey(50), Nonce: 2}); !errors.Is(err, core.ErrDuplicateInvitation) {
		t.Fatalf("err = %v, want ErrDuplicateInvitation", err)
	}

	// A failed duplicate does not consume an issuing slot; fill the hourly
	// cap with distinct invitees.
	for i := byte(0); i < core.InvitesPerWindow-1; i++ {
		if _, err := e.InviteToChannel(ctx, InviteParams{Inviter: creator, Channel: addr, Invitee: testKey(60 + i), Nonce: 1}); err != nil {
			t.Fatalf("invite %d: %v", i, err)
		}
	}
	if _, err := e.InviteToChannel(ctx, InviteParams{Inviter: creator, Channel: addr, Invitee: testKey(200), Nonce: 1}); !errors.Is(err, core.ErrRateLimitExceeded) {
		t.Fatalf("err = %v, want ErrRateLimitExceeded", err)
	}
}

func TestInviteRequiresMembership(t *testing.T) {
	e, _ := newTestEngine(t)
	creator, outsider := testKey(1), testKey(2)
	registerAgent(t, e, creator)
	registerAgent(t, e, outsider)
	addr := createChannel(t, e, creator, "private", core.VisibilityPrivate, 100, 0)

	_, err := e.InviteToChannel(context.Background(), InviteParams{
		Inviter: outsider, Channel: addr, Invitee: testKey(3), Nonce: 1,
	})
	if !errors.Is(err, core.ErrNotInChannel) {
		t.Fatalf("err = %v, want ErrNotInChannel", err)
	}
}

func TestCreatorInvitesWithoutParticipantRecord(t *testing.T) {
	e, _ := newTestEngine(t)
	creator, member := testKey(1), testKey(2)
	registerAgent(t, e, creator)
	registerAgent(t, e, member)

	// The legacy create path does not enroll the creator, but the
	// creator can still invite into their own private channel.
	addr := createChannel(t, e, creator, "private", core.VisibilityPrivate, 100, 0)

	if _, err := e.InviteToChannel(context.Background(), InviteParams{
		Inviter: creator,
		Channel: addr,
		Invitee: member,
		Nonce:   1,
	}); err != nil {
		t.Fatalf("InviteToChannel: %v", err)
	}

	joinChannel(t, e, member, addr)
}

func TestPaidJoin(t *testing.T) {
	e, _ := newTestEngine(t)
	creator, member := testKey(1), testKey(2)
	registerAgent(t, e, creator)
	registerAgent(t, e, member)
	fee := uint64(100)
	addr := createChannel(t, e, creator, "paid", core.VisibilityPublic, 100, fee)

	ctx := context.Background()

	// No escrow at all.
	if err := e.JoinChannel(ctx, member, addr); !errors.Is(err, core.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}

	// Escrow one unit short: nothing moves.
	if _, err := e.DepositEscrow(ctx, member, addr, fee-1); err != nil {
		t.Fatalf("DepositEscrow: %v", err)
	}
	if err := e.JoinChannel(ctx, member, addr); !errors.Is(err, core.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	esc, _ := e.GetEscrow(ctx, addr, member)
	if esc.Balance != fee-1 {
		t.Fatalf("escrow balance = %d, want %d untouched", esc.Balance, fee-1)
	}
	ch, _ := e.GetChannel(ctx, addr)
	if ch.Participants != 0 || ch.EscrowBalance != 0 {
		t.Fatal("failed join must not change the channel")
	}

	// Exactly the fee: join debits the escrow and credits the channel.
	if _, err := e.DepositEscrow(ctx, member, addr, 1); err != nil {
		t.Fatalf("DepositEscrow: %v", err)
	}
	joinChannel(t, e, member, addr)
	esc, _ = e.GetEscrow(ctx, addr, member)
	if esc.Balance != 0 {
		t.Fatalf("escrow balance = %d, want 0", esc.Balance)
	}
	ch, _ = e.GetChannel(ctx, addr)
	if ch.Participants != 1 || ch.EscrowBalance != fee {
		t.Fatalf("channel participants = %d, collected = %d; want 1, %d", ch.Participants, ch.EscrowBalance, fee)
	}
}

func TestBroadcastMessage(t *testing.T) {
	e, _ := newTestEngine(t)
	creator := testKey(1)
	agentAddr := registerAgent(t, e, creator)
	addr := createChannel(t, e, creator, "general", core.VisibilityPublic, 100, 0)
	joinChannel(t, e, creator, addr)

	msgAddr, err := e.BroadcastMessage(context.Background(), BroadcastParams{
		Sender:  creator,
		Channel: addr,
		Content: "hello world",
		Type:    core.MessageTypeText,
		Nonce:   1,
	})
	if err != nil {
		t.Fatalf("BroadcastMessage: %v", err)
	}

	msg, err := e.GetChannelMessage(context.Background(), msgAddr)
	if err != nil {
		t.Fatalf("GetChannelMessage: %v", err)
	}
	if msg.Sender != agentAddr || msg.Content != "hello world" {
		t.Fatal("message fields mismatch")
	}

	wantAddr, _ := derive.ChannelMessage(addr, agentAddr, 1)
	if msgAddr != wantAddr {
		t.Fatal("message address should be derived from channel, sender and nonce")
	}
}

func TestBroadcastRequiresMembership(t *testing.T) {
	e, _ := newTestEngine(t)
	creator, outsider := testKey(1), testKey(2)
	registerAgent(t, e, creator)
	registerAgent(t, e, outsider)
	addr := createChannel(t, e, creator, "general", core.VisibilityPublic, 100, 0)

	_, err := e.BroadcastMessage(context.Background(), BroadcastParams{
		Sender: outsider, Channel: addr, Content: "hi", Nonce: 1,
	})
	if !errors.Is(err, core.ErrNotInChannel) {
		t.Fatalf("err = %v, want ErrNotInChannel", err)
	}
}

func TestBroadcastContentValidation(t *testing.T) {
	e, _ := newTestEngine(t)
	creator := testKey(1)
	registerAgent(t, e, creator)
	addr := createChannel(t, e, creator, "general", core.VisibilityPublic, 100, 0)
	joinChannel(t, e, creator, addr)

	ctx := context.Background()
	if _, err := e.BroadcastMessage(ctx, BroadcastParams{Sender: creator, Channel: addr, Content: "", Nonce: 1}); !errors.Is(err, core.ErrInvalidArgument) {
		t.Fatalf("empty content: err = %v, want ErrInvalidArgument", err)
	}
	long := strings.Repeat("x", core.MaxMessageContentLength+1)
	if _, err := e.BroadcastMessage(ctx, BroadcastParams{Sender: creator, Channel: addr, Content: long, Nonce: 1}); !errors.Is(err, core.ErrInvalidArgument) {
		t.Fatalf("oversized content: err = %v, want ErrInvalidArgument", err)
	}
}

func TestBroadcastCooldown(t *testing.T) {
	e, clk := newTestEngine(t)
	creator := testKey(1)
	registerAgent(t, e, creator)
	addr := createChannel(t, e, creator, "general", core.VisibilityPublic, 100, 0)
	joinChannel(t, e, creator, addr)

	ctx := context.Background()
	if _, err := e.BroadcastMessage(ctx, BroadcastParams{Sender: creator, Channel: addr, Content: "a", Nonce: 1}); err != nil {
		t.Fatalf("first broadcast: %v", err)
	}

	clk.Advance(999 * time.Millisecond)
	if _, err := e.BroadcastMessage(ctx, BroadcastParams{Sender: creator, Channel: addr, Content: "b", Nonce: 2}); !errors.Is(err, core.ErrRateLimitExceeded) {
		t.Fatalf("999ms later: err = %v, want ErrRateLimitExceeded", err)
	}

	clk.Advance(time.Millisecond)
	if _, err := e.BroadcastMessage(ctx, BroadcastParams{Sender: creator, Channel: addr, Content: "b", Nonce: 2}); err != nil {
		t.Fatalf("1s later: %v", err)
	}
}

func TestBroadcastBurstLimit(t *testing.T) {
	e, clk := newTestEngine(t)
	creator := testKey(1)
	registerAgent(t, e, creator)
	addr := createChannel(t, e, creator, "general", core.VisibilityPublic, 100, 0)
	joinChannel(t, e, creator, addr)

	ctx := context.Background()
	// Ten messages a second apart saturate the ten second burst window.
	for i := uint64(1); i <= core.BurstLimit; i++ {
		if _, err := e.BroadcastMessage(ctx, BroadcastParams{Sender: creator, Channel: addr, Content: "m", Nonce: i}); err != nil {
			t.Fatalf("message %d: %v", i, err)
		}
		clk.Advance(time.Second)
	}
	// The first message sits exactly at the window edge and still counts.
	if _, err := e.BroadcastMessage(ctx, BroadcastParams{Sender: creator, Channel: addr, Content: "m", Nonce: 99}); !errors.Is(err, core.ErrRateLimitExceeded) {
		t.Fatalf("burst overflow: err = %v, want ErrRateLimitExceeded", err)
	}

	// Once the oldest entry slides out, sending resumes.
	clk.Advance(time.Millisecond)
	if _, err := e.BroadcastMessage(ctx, BroadcastParams{Sender: creator, Channel: addr, Content: "m", Nonce: 100}); err != nil {
		t.Fatalf("after window slide: %v", err)
	}
}

func TestBroadcastWindowBookkeeping(t *testing.T) {
	e, clk := newTestEngine(t)
	creator := testKey(1)
	agentAddr := registerAgent(t, e, creator)
	addr := createChannel(t, e, creator, "general", core.VisibilityPublic, 100, 0)
	joinChannel(t, e, creator, addr)

	ctx := context.Background()
	if _, err := e.BroadcastMessage(ctx, BroadcastParams{Sender: creator, Channel: addr, Content: "a", Nonce: 1}); err != nil {
		t.Fatalf("BroadcastMessage: %v", err)
	}
	windowStart := clk.Now().UnixMilli()
	clk.Advance(2 * time.Second)
	if _, err := e.BroadcastMessage(ctx, BroadcastParams{Sender: creator, Channel: addr, Content: "b", Nonce: 2}); err != nil {
		t.Fatalf("BroadcastMessage: %v", err)
	}

	part, err := e.GetParticipant(ctx, addr, agentAddr)
	if err != nil {
		t.Fatalf("GetParticipant: %v", err)
	}
	if part.MessagesSent != 2 || part.WindowStart != windowStart {
		t.Fatalf("MessagesSent = %d, WindowStart = %d; want 2, %d", part.MessagesSent, part.WindowStart, windowStart)
	}

	// A new minute window resets the counter.
	clk.Advance(core.MessageWindow)
	if _, err := e.BroadcastMessage(ctx, BroadcastParams{Sender: creator, Channel: addr, Content: "c", Nonce: 3}); err != nil {
		t.Fatalf("BroadcastMessage: %v", err)
	}
	part, _ = e.GetParticipant(ctx, addr, agentAddr)
	if part.MessagesSent != 1 {
		t.Fatalf("MessagesSent = %d after window reset, want 1", part.MessagesSent)
	}
}

func TestBroadcastDuplicateNonce(t *testing.T) {
	e, clk := newTestEngine(t)
	creator := testKey(1)
	registerAgent(t, e, creator)
	addr := createChannel(t, e, creator, "general", core.VisibilityPublic, 100, 0)
	joinChannel(t, e, creator, addr)

	ctx := context.Background()
	if _, err := e.BroadcastMessage(ctx, BroadcastParams{Sender: creator, Channel: addr, Content: "a", Nonce: 7}); err != nil {
		t.Fatalf("BroadcastMessage: %v", err)
	}
	clk.Advance(2 * time.Second)
	if _, err := e.BroadcastMessage(ctx, BroadcastParams{Sender: creator, Channel: addr, Content: "b", Nonce: 7}); !errors.Is(err, core.ErrDuplicateMessage) {
		t.Fatalf("err = %v, want ErrDuplicateMessage", err)
	}
}

func TestChannelCapacityAtScale(t *testing.T) {
	e, _ := newTestEngine(t)
	creator := testKey(1)
	registerAgent(t, e, creator)
	addr := createChannel(t, e, creator, "busy", core.VisibilityPublic, 25, 0)

	for i := 0; i < 25; i++ {
		member := testKey(byte(30 + i))
		registerAgent(t, e, member)
		joinChannel(t, e, member, addr)
	}
	ch, _ := e.GetChannel(context.Background(), addr)
	if ch.Participants != 25 {
		t.Fatalf("participants = %d, want 25", ch.Participants)
	}

	late := testKey(222)
	registerAgent(t, e, late)
	if err := e.JoinChannel(context.Background(), late, addr); !errors.Is(err, core.ErrChannelFull) {
		t.Fatalf("err = %v, want ErrChannelFull", err)
	}
}

func TestGetInvitation(t *testing.T) {
	e, _ := newTestEngine(t)
	creator, invitee := testKey(1), testKey(2)
	inviterAgent := registerAgent(t, e, creator)
	registerAgent(t, e, invitee)

	addr, err := e.CreateChannelV2(context.Background(), CreateChannelParams{
		Creator: creator, Name: "private", Visibility: core.VisibilityPrivate, MaxParticipants: 10,
	})
	if err != nil {
		t.Fatalf("CreateChannelV2: %v", err)
	}
	if _, err := e.InviteToChannel(context.Background(), InviteParams{
		Inviter: creator, Channel: addr, Invitee: invitee, Nonce: 42,
	}); err != nil {
		t.Fatalf("InviteToChannel: %v", err)
	}

	inv, err := e.GetInvitation(context.Background(), addr, invitee)
	if err != nil {
		t.Fatalf("GetInvitation: %v", err)
	}
	if inv.Inviter != inviterAgent || inv.Nonce != 42 || inv.Used {
		t.Fatal("invitation fields mismatch")
	}
}

func TestManyChannelsPerCreator(t *testing.T) {
	e, _ := newTestEngine(t)
	creator := testKey(1)
	registerAgent(t, e, creator)

	seen := map[core.Address]bool{}
	for i := 0; i < 5; i++ {
		addr := createChannel(t, e, creator, fmt.Sprintf("room-%d", i), core.VisibilityPublic, 10, 0)
		if seen[addr] {
			t.Fatal("channel addresses must be distinct per name")
		}
		seen[addr] = true
	}
}
