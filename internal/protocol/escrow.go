package protocol

import (
	"context"
	"fmt"

	"github.com/pod-protocol/podd/internal/core"
	"github.com/pod-protocol/podd/internal/derive"
	"github.com/pod-protocol/podd/internal/ledger"
)

// DepositEscrow adds funds to the caller's escrow for a channel, creating
// the escrow account on first deposit. Deposits accumulate with overflow
// checking.
func (e *Engine) DepositEscrow(ctx context.Context, owner core.Key, channel core.Address, amount uint64) (core.Address, error) {
	if amount == 0 || amount > core.MaxDeposit {
		return core.Address{}, fmt.Errorf("%w: deposit must be 1-%d", core.ErrInvalidArgument, core.MaxDeposit)
	}

	addr, bump := derive.Escrow(channel, owner)
	now := e.millis()

	err := e.ledger.Execute(ctx, func(tx *ledger.Tx) error {
		if _, _, err := requireAgent(tx, owner); err != nil {
			return err
		}

		exists, err := tx.Exists(channel)
		if err != nil {
			return err
		}
		if !exists {
			return core.ErrNotFound
		}

		var esc core.Escrow
		found, err := tx.Get(addr, core.KindEscrow, &esc)
		if err != nil {
			return err
		}
		if !found {
			esc = core.Escrow{
				Channel:   channel,
				Depositor: owner,
				CreatedAt: now,
				Bump:      bump,
			}
		}
		esc.Balance, err = core.CheckedAdd(esc.Balance, amount)
		if err != nil {
			return err
		}
		esc.LastUpdated = now
		return tx.Put(addr, core.KindEscrow, &esc)
	})
	if err != nil {
		return core.Address{}, err
	}

	e.emit(EventEscrowDeposited, addr, owner, now)
	return addr, nil
}

// WithdrawEscrow removes funds from the caller's escrow. Only the depositor
// can withdraw, and never more than the current balance.
func (e *Engine) WithdrawEscrow(ctx context.Context, owner core.Key, channel core.Address, amount uint64) error {
	if amount == 0 {
		return fmt.Errorf("%w: withdraw amount must be positive", core.ErrInvalidArgument)
	}

	addr, _ := derive.Escrow(channel, owner)
	now := e.millis()

	err := e.ledger.Execute(ctx, func(tx *ledger.Tx) error {
		var esc core.Escrow
		found, err := tx.Get(addr, core.KindEscrow, &esc)
		if err != nil {
			return err
		}
		if !found {
			return core.ErrNotFound
		}
		if esc.Balance < amount {
			return core.ErrInsufficientBalance
		}
		esc.Balance, err = core.CheckedSub(esc.Balance, amount)
		if err != nil {
			return err
		}
		esc.LastUpdated = now
		return tx.Put(addr, core.KindEscrow, &esc)
	})
	if err != nil {
		return err
	}

	e.emit(EventEscrowWithdrawn, addr, owner, now)
	return nil
}

// GetEscrow loads the escrow account for a depositor in a channel.
func (e *Engine) GetEscrow(ctx context.Context, channel core.Address, depositor core.Key) (*core.Escrow, error) {
	addr, _ := derive.Escrow(channel, depositor)
	var esc core.Escrow
	err := e.ledger.View(ctx, func(tx *ledger.Tx) error {
		found, err := tx.Get(addr, core.KindEscrow, &esc)
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
	return &esc, nil
}
