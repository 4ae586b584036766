package crypto

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/pod-protocol/podd/internal/core"
)

var (
	ErrInvalidPublicKey = errors.New("invalid Ed25519 public key")
	ErrInvalidSignature = errors.New("invalid signature")
)

// ParseSignerKey checks that a base64-encoded string is a valid Ed25519
// public key and returns it as a protocol key.
func ParseSignerKey(pubkeyB64 string) (core.Key, error) {
	k, err := core.ParseKey(pubkeyB64)
	if err != nil {
		return core.Key{}, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return k, nil
}

// VerifySignature verifies a signed payload against a signer key.
func VerifySignature(signer core.Key, signedData []byte, signatureB64 string) error {
	signature, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return fmt.Errorf("%w: invalid base64 encoding", ErrInvalidSignature)
	}
	if len(signature) != ed25519.SignatureSize {
		return fmt.Errorf("%w: must be %d bytes", ErrInvalidSignature, ed25519.SignatureSize)
	}

	if !ed25519.Verify(signer.Public(), signedData, signature) {
		return ErrInvalidSignature
	}

	return nil
}

// SignaturePayload creates the canonical data to sign.
// Format: bodyHash|nonce|timestamp
func SignaturePayload(bodyHash, nonce string, timestamp int64) []byte {
	return []byte(fmt.Sprintf("%s|%s|%d", bodyHash, nonce, timestamp))
}
