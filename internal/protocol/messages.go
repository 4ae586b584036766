package protocol

import (
	"context"
	"fmt"

	"github.com/pod-protocol/podd/internal/core"
	"github.com/pod-protocol/podd/internal/derive"
	"github.com/pod-protocol/podd/internal/ledger"
)

// SendMessageParams are the inputs to SendMessage. The payload itself stays
// off the ledger; only its hash is recorded.
type SendMessageParams struct {
	Sender      core.Key
	Recipient   core.Key
	PayloadHash core.Hash
	Type        core.MessageType
}

// SendMessage records a direct message from the sender's agent to a
// recipient key. Both parties must be registered agents. The message address
// is derived from (sender agent, recipient, payload hash, type), so resending
// the same payload to the same recipient is rejected as a duplicate while the
// original record is still live. Once it expires, the tuple may be sent again.
func (e *Engine) SendMessage(ctx context.Context, p SendMessageParams) (core.Address, error) {
	now := e.millis()

	var addr core.Address
	err := e.ledger.Execute(ctx, func(tx *ledger.Tx) error {
		senderAgent, _, err := requireAgent(tx, p.Sender)
		if err != nil {
			return err
		}

		recipientAgent, _ := derive.Agent(p.Recipient)
		exists, err := tx.Exists(recipientAgent)
		if err != nil {
			return err
		}
		if !exists {
			return core.ErrRecipientNotFound
		}

		var bump uint8
		addr, bump = derive.Message(senderAgent, p.Recipient, p.PayloadHash, p.Type)
		var prior core.Message
		found, err := tx.Get(addr, core.KindMessage, &prior)
		if err != nil {
			return err
		}
		// Only a live record blocks a resend; an expired one is replaced.
		if found && !prior.Expired(now) {
			return core.ErrDuplicateMessage
		}

		return tx.Put(addr, core.KindMessage, &core.Message{
			Sender:      senderAgent,
			Recipient:   p.Recipient,
			PayloadHash: p.PayloadHash,
			Type:        p.Type,
			Status:      core.StatusPending,
			CreatedAt:   now,
			ExpiresAt:   now + e.messageTTL.Milliseconds(),
			Bump:        bump,
		})
	})
	if err != nil {
		return core.Address{}, err
	}

	e.emit(EventMessageSent, addr, p.Sender, now)
	return addr, nil
}

// UpdateMessageStatus moves a message along its delivery lifecycle. The
// recipient marks Delivered and Read; either party may mark Failed. Status
// changes on an expired message are rejected.
func (e *Engine) UpdateMessageStatus(ctx context.Context, caller core.Key, message core.Address, next core.MessageStatus) error {
	if next == core.StatusExpired || next == core.StatusPending {
		return fmt.Errorf("%w: cannot set status %q", core.ErrInvalidTransition, next)
	}

	now := e.millis()

	err := e.ledger.Execute(ctx, func(tx *ledger.Tx) error {
		var msg core.Message
		found, err := tx.Get(message, core.KindMessage, &msg)
		if err != nil {
			return err
		}
		if !found {
			return core.ErrNotFound
		}
		if msg.Expired(now) {
			return core.ErrMessageExpired
		}

		callerAgent, _ := derive.Agent(caller)
		isSender := callerAgent == msg.Sender
		isRecipient := caller == msg.Recipient
		switch next {
		case core.StatusDelivered, core.StatusRead:
			if !isRecipient {
				return fmt.Errorf("%w: only the recipient can mark %s", core.ErrUnauthorized, next)
			}
		case core.StatusFailed:
			if !isSender && !isRecipient {
				return fmt.Errorf("%w: only sender or recipient can mark failed", core.ErrUnauthorized)
			}
		}

		if !msg.Status.CanTransitionTo(next) {
			return fmt.Errorf("%w: %s -> %s", core.ErrInvalidTransition, msg.Status, next)
		}

		msg.Status = next
		return tx.Put(message, core.KindMessage, &msg)
	})
	if err != nil {
		return err
	}

	e.emit(EventMessageStatus, message, caller, now)
	return nil
}

// GetMessage loads a message account. A message past its expiry that was
// never delivered is reported as Expired; the stored record is not modified.
func (e *Engine) GetMessage(ctx context.Context, addr core.Address) (*core.Message, error) {
	var msg core.Message
	err := e.ledger.View(ctx, func(tx *ledger.Tx) error {
		found, err := tx.Get(addr, core.KindMessage, &msg)
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
	if msg.Status == core.StatusPending && msg.Expired(e.millis()) {
		msg.Status = core.StatusExpired
	}
	return &msg, nil
}
