// Package derive maps (namespace, seeds) tuples to unique account addresses.
//
// Derivation substitutes for unique-key constraints: two distinct logical
// entities must never share an address, and the same tuple must always map to
// the same address. Each seed is length-prefixed before hashing so adjacent
// seeds cannot be re-split into a colliding tuple.
package derive

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/pod-protocol/podd/internal/core"
)

// domainTag versions the derivation scheme. Changing it invalidates every
// derived address.
const domainTag = "pod/v1"

// seeds computes the address for a namespace and ordered seed parts, plus a
// bump byte retained in account records for fixed-layout compatibility.
func seeds(namespace string, parts ...[]byte) (core.Address, uint8) {
	h := sha256.New()
	writePart(h, []byte(domainTag))
	writePart(h, []byte(namespace))
	for _, p := range parts {
		writePart(h, p)
	}

	var addr core.Address
	h.Sum(addr[:0])

	bumpSrc := sha256.Sum256(append(addr[:], 'b'))
	return addr, bumpSrc[0]
}

func writePart(h interface{ Write([]byte) (int, error) }, p []byte) {
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(p)))
	h.Write(lenBuf[:n])
	h.Write(p)
}

// Agent derives the identity account address for an owner key.
func Agent(owner core.Key) (core.Address, uint8) {
	return seeds(core.KindAgent, owner[:])
}

// Message derives a direct message address. The sender seed is always the
// sender's agent address, never the raw wallet key, so send and status-update
// paths resolve the same account.
func Message(sender core.Address, recipient core.Key, payload core.Hash, t core.MessageType) (core.Address, uint8) {
	return seeds(core.KindMessage, sender[:], recipient[:], payload[:], []byte{t.Discriminant()})
}

// Channel derives a channel address from its creator and name. Names are
// unique per creator by construction.
func Channel(creator core.Key, name string) (core.Address, uint8) {
	return seeds(core.KindChannel, creator[:], []byte(name))
}

// Participant derives the membership record address for a (channel, agent)
// pair.
func Participant(channel, agent core.Address) (core.Address, uint8) {
	return seeds(core.KindParticipant, channel[:], agent[:])
}

// Invitation derives the invitation address for a (channel, invitee) pair,
// so at most one invitation per pair can be outstanding.
func Invitation(channel core.Address, invitee core.Key) (core.Address, uint8) {
	return seeds(core.KindInvitation, channel[:], invitee[:])
}

// Escrow derives the escrow balance address for a (channel, depositor) pair.
func Escrow(channel core.Address, depositor core.Key) (core.Address, uint8) {
	return seeds(core.KindEscrow, channel[:], depositor[:])
}

// ChannelMessage derives a broadcast message address from the channel, the
// sender's agent address and a caller-chosen nonce.
func ChannelMessage(channel, sender core.Address, nonce uint64) (core.Address, uint8) {
	var nonceLE [8]byte
	binary.LittleEndian.PutUint64(nonceLE[:], nonce)
	return seeds(core.KindChannelMessage, channel[:], sender[:], nonceLE[:])
}
