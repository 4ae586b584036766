package pod

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"testing"
)

func generateTestKeypair(t *testing.T) (ed25519.PrivateKey, string) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	return priv, base64.URLEncoding.EncodeToString(pub)
}

func TestRoundTrip(t *testing.T) {
	bobPriv, bobPub := generateTestKeypair(t)

	ct, err := EncryptPayload("Hello Bob!", bobPub)
	if err != nil {
		t.Fatal(err)
	}
	pt, err := DecryptPayload(ct, bobPriv)
	if err != nil {
		t.Fatal(err)
	}
	if pt != "Hello Bob!" {
		t.Fatalf("expected 'Hello Bob!', got %q", pt)
	}
}

func TestWireFormatStructure(t *testing.T) {
	_, pub := generateTestKeypair(t)

	ct, err := EncryptPayload("test", pub)
	if err != nil {
		t.Fatal(err)
	}
	wire, _ := base64.StdEncoding.DecodeString(ct)
	// 32 (eph pk) + 12 (nonce) + 4 (plaintext) + 16 (tag) = 64
	if len(wire) != 64 {
		t.Fatalf("expected wire length 64, got %d", len(wire))
	}
}

func TestDifferentCiphertexts(t *testing.T) {
	priv, pub := generateTestKeypair(t)

	ct1, _ := EncryptPayload("same", pub)
	ct2, _ := EncryptPayload("same", pub)
	if ct1 == ct2 {
		t.Fatal("ciphertexts should differ for same plaintext")
	}

	pt1, _ := DecryptPayload(ct1, priv)
	pt2, _ := DecryptPayload(ct2, priv)
	if pt1 != "same" || pt2 != "same" {
		t.Fatal("both should decrypt to 'same'")
	}
}

func TestWrongKeyFails(t *testing.T) {
	_, pub := generateTestKeypair(t)
	ct, _ := EncryptPayload("secret", pub)

	wrongPriv, _ := generateTestKeypair(t)
	_, err := DecryptPayload(ct, wrongPriv)
	if err == nil {
		t.Fatal("expected error with wrong key")
	}
	if !ErrCrypto(err) {
		t.Fatalf("expected CryptoError, got %T", err)
	}
}

func TestTamperedCiphertext(t *testing.T) {
	priv, pub := generateTestKeypair(t)

	ct, _ := EncryptPayload("secret", pub)
	wire, _ := base64.StdEncoding.DecodeString(ct)
	wire[len(wire)-1] ^= 0xFF
	tampered := base64.StdEncoding.EncodeToString(wire)

	_, err := DecryptPayload(tampered, priv)
	if err == nil {
		t.Fatal("expected error with tampered ciphertext")
	}
}

func TestTruncatedCiphertext(t *testing.T) {
	priv, _ := generateTestKeypair(t)
	short := base64.StdEncoding.EncodeToString(make([]byte, 30))

	_, err := DecryptPayload(short, priv)
	if err == nil {
		t.Fatal("expected error with truncated ciphertext")
	}
}

func TestUnicodePlaintext(t *testing.T) {
	priv, pub := generateTestKeypair(t)

	msg := "Hello \U0001F30D❤️ 日本語"
	ct, err := EncryptPayload(msg, pub)
	if err != nil {
		t.Fatal(err)
	}
	pt, err := DecryptPayload(ct, priv)
	if err != nil {
		t.Fatal(err)
	}
	if pt != msg {
		t.Fatalf("expected %q, got %q", msg, pt)
	}
}

func TestInvalidPublicKeyLength(t *testing.T) {
	_, err := EncryptPayload("test", base64.URLEncoding.EncodeToString(make([]byte, 16)))
	if err == nil {
		t.Fatal("expected error with wrong-length key")
	}
	if !ErrCrypto(err) {
		t.Fatalf("expected CryptoError, got %T", err)
	}
}

func TestPayloadHashStable(t *testing.T) {
	_, pub := generateTestKeypair(t)
	ct, err := EncryptPayload("stable hash input", pub)
	if err != nil {
		t.Fatal(err)
	}

	h1 := PayloadHash(ct)
	h2 := PayloadHash(ct)
	if h1 != h2 {
		t.Fatal("payload hash must be deterministic")
	}
	if len(h1) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(h1))
	}
}

func TestBidirectional(t *testing.T) {
	alicePriv, alicePub := generateTestKeypair(t)
	bobPriv, bobPub := generateTestKeypair(t)

	// Alice -> Bob
	ct1, _ := EncryptPayload("Hi Bob", bobPub)
	pt1, err := DecryptPayload(ct1, bobPriv)
	if err != nil || pt1 != "Hi Bob" {
		t.Fatal("Alice->Bob failed")
	}

	// Bob -> Alice
	ct2, _ := EncryptPayload("Hi Alice", alicePub)
	pt2, err := DecryptPayload(ct2, alicePriv)
	if err != nil || pt2 != "Hi Alice" {
		t.Fatal("Bob->Alice failed")
	}
}
