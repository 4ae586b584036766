package protocol

import (
	"context"
	"fmt"

	"github.com/pod-protocol/podd/internal/core"
	"github.com/pod-protocol/podd/internal/derive"
	"github.com/pod-protocol/podd/internal/ledger"
)

// RegisterAgentParams are the inputs to RegisterAgent.
type RegisterAgentParams struct {
	Owner        core.Key
	Capabilities uint64
	MetadataURI  string
}

// RegisterAgent creates the agent account for an owner key. Each key owns at
// most one agent; registering twice fails.
func (e *Engine) RegisterAgent(ctx context.Context, p RegisterAgentParams) (core.Address, error) {
	if len(p.MetadataURI) > core.MaxMetadataURILength {
		return core.Address{}, fmt.Errorf("%w: metadata URI exceeds %d bytes", core.ErrInvalidMetadata, core.MaxMetadataURILength)
	}

	addr, bump := derive.Agent(p.Owner)
	now := e.millis()

	err := e.ledger.Execute(ctx, func(tx *ledger.Tx) error {
		exists, err := tx.Exists(addr)
		if err != nil {
			return err
		}
		if exists {
			return core.ErrAgentExists
		}
		return tx.Put(addr, core.KindAgent, &core.Agent{
			Owner:        p.Owner,
			Capabilities: p.Capabilities,
			MetadataURI:  p.MetadataURI,
			Reputation:   0,
			LastUpdated:  now,
			Bump:         bump,
		})
	})
	if err != nil {
		return core.Address{}, err
	}

	e.emit(EventAgentRegistered, addr, p.Owner, now)
	return addr, nil
}

// UpdateAgentParams carries the mutable agent fields. Nil pointers leave the
// corresponding field unchanged.
type UpdateAgentParams struct {
	Owner        core.Key
	Capabilities *uint64
	MetadataURI  *string
}

// UpdateAgent updates capabilities and/or metadata of the caller's agent.
// Only the owner key can update its agent; the account address is derived
// from the owner, so presenting another key simply misses the account.
func (e *Engine) UpdateAgent(ctx context.Context, p UpdateAgentParams) error {
	if p.MetadataURI != nil && len(*p.MetadataURI) > core.MaxMetadataURILength {
		return fmt.Errorf("%w: metadata URI exceeds %d bytes", core.ErrInvalidMetadata, core.MaxMetadataURILength)
	}

	addr, _ := derive.Agent(p.Owner)
	now := e.millis()

	err := e.ledger.Execute(ctx, func(tx *ledger.Tx) error {
		var agent core.Agent
		found, err := tx.Get(addr, core.KindAgent, &agent)
		if err != nil {
			return err
		}
		if !found {
			return core.ErrNotFound
		}
		// The address is derived from the owner key, but the stored owner
		// is checked as well so a corrupted or substituted record can
		// never be mutated by the wrong signer.
		if agent.Owner != p.Owner {
			return fmt.Errorf("%w: stored owner does not match signer", core.ErrUnauthorized)
		}
		if p.Capabilities != nil {
			agent.Capabilities = *p.Capabilities
		}
		if p.MetadataURI != nil {
			agent.MetadataURI = *p.MetadataURI
		}
		agent.LastUpdated = now
		return tx.Put(addr, core.KindAgent, &agent)
	})
	if err != nil {
		return err
	}

	e.emit(EventAgentUpdated, addr, p.Owner, now)
	return nil
}

// GetAgent loads the agent account for an owner key.
func (e *Engine) GetAgent(ctx context.Context, owner core.Key) (*core.Agent, error) {
	addr, _ := derive.Agent(owner)
	return e.GetAgentByAddress(ctx, addr)
}

// GetAgentByAddress loads an agent account directly by address.
func (e *Engine) GetAgentByAddress(ctx context.Context, addr core.Address) (*core.Agent, error) {
	var agent core.Agent
	err := e.ledger.View(ctx, func(tx *ledger.Tx) error {
		found, err := tx.Get(addr, core.KindAgent, &agent)
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
	return &agent, nil
}

// requireAgent loads the caller's agent inside a transaction, mapping a
// missing account to an authorization failure.
func requireAgent(tx *ledger.Tx, owner core.Key) (core.Address, *core.Agent, error) {
	addr, _ := derive.Agent(owner)
	var agent core.Agent
	found, err := tx.Get(addr, core.KindAgent, &agent)
	if err != nil {
		return core.Address{}, nil, err
	}
	if !found {
		return core.Address{}, nil, fmt.Errorf("%w: no agent registered for key", core.ErrUnauthorized)
	}
	return addr, &agent, nil
}
