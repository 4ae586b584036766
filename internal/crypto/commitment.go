package crypto

import (
	"crypto/subtle"
	"encoding/binary"

	"golang.org/x/crypto/sha3"

	"github.com/pod-protocol/podd/internal/core"
)

// InviteCommitment binds an invitation to its channel, parties, nonce and
// creation time. Keccak-256 over the concatenated fields, integers little
// endian.
func InviteCommitment(channel core.Address, inviter core.Address, invitee core.Key, nonce uint64, createdAt int64) core.Hash {
	h := sha3.NewLegacyKeccak256()
	h.Write(channel[:])
	h.Write(inviter[:])
	h.Write(invitee[:])

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], nonce)
	h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(createdAt))
	h.Write(buf[:])

	var out core.Hash
	h.Sum(out[:0])
	return out
}

// VerifyCommitment recomputes the commitment and compares in constant time.
func VerifyCommitment(commitment core.Hash, channel core.Address, inviter core.Address, invitee core.Key, nonce uint64, createdAt int64) bool {
	want := InviteCommitment(channel, inviter, invitee, nonce, createdAt)
	return subtle.ConstantTimeCompare(commitment[:], want[:]) == 1
}
