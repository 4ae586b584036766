package core

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// Key is a 32-byte Ed25519 public key identifying a signer (an agent owner,
// a message recipient, an escrow depositor). Keys authorize state transitions;
// they never address accounts directly — accounts live at derived addresses.
type Key [32]byte

// Address is a 32-byte derived account address.
type Address [32]byte

var zeroAddress Address

// ParseKey decodes a base64-encoded Ed25519 public key. Keys use the
// URL-safe alphabet so they can appear in URL path segments.
func ParseKey(s string) (Key, error) {
	var k Key
	raw, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return k, fmt.Errorf("invalid key: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return k, fmt.Errorf("invalid key: must be %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	copy(k[:], raw)
	return k, nil
}

// String returns the URL-safe base64 form of the key.
func (k Key) String() string {
	return base64.URLEncoding.EncodeToString(k[:])
}

// IsZero reports whether the key is all zeroes.
func (k Key) IsZero() bool {
	return k == Key{}
}

// Public returns the key as an ed25519.PublicKey.
func (k Key) Public() ed25519.PublicKey {
	return ed25519.PublicKey(k[:])
}

func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Key) UnmarshalText(b []byte) error {
	parsed, err := ParseKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseAddress decodes a hex-encoded account address.
func ParseAddress(s string) (Address, error) {
	var a Address
	raw, err := hex.DecodeString(s)
	if err != nil {
		return a, fmt.Errorf("invalid address: %w", err)
	}
	if len(raw) != len(a) {
		return a, fmt.Errorf("invalid address: must be %d bytes, got %d", len(a), len(raw))
	}
	copy(a[:], raw)
	return a, nil
}

// String returns the hex form of the address.
func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// IsZero reports whether the address is all zeroes.
func (a Address) IsZero() bool {
	return a == zeroAddress
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(b []byte) error {
	parsed, err := ParseAddress(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Hash is a 32-byte content or commitment hash.
type Hash [32]byte

// ParseHash decodes a hex-encoded 32-byte hash.
func ParseHash(s string) (Hash, error) {
	var h Hash
	raw, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("invalid hash: %w", err)
	}
	if len(raw) != len(h) {
		return h, fmt.Errorf("invalid hash: must be %d bytes, got %d", len(h), len(raw))
	}
	copy(h[:], raw)
	return h, nil
}

// String returns the hex form of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash) UnmarshalText(b []byte) error {
	parsed, err := ParseHash(string(b))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
