package main

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pod-protocol/podd/internal/crypto"
)

func main() {
	privKeyB64 := flag.String("key", "", "Base64-encoded Ed25519 private key")
	bodyFile := flag.String("body", "", "File containing request body (or use stdin)")
	flag.Parse()

	if *privKeyB64 == "" {
		fmt.Fprintln(os.Stderr, "Usage: sign -key <private-key-base64> [-body <file>]")
		fmt.Fprintln(os.Stderr, "  Reads body from stdin if -body not specified")
		os.Exit(1)
	}

	// Decode private key
	privKeyBytes, err := base64.StdEncoding.DecodeString(*privKeyB64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid private key: %v\n", err)
		os.Exit(1)
	}
	if len(privKeyBytes) != ed25519.PrivateKeySize {
		fmt.Fprintf(os.Stderr, "Private key must be %d bytes\n", ed25519.PrivateKeySize)
		os.Exit(1)
	}
	privKey := ed25519.PrivateKey(privKeyBytes)
	pubKey := privKey.Public().(ed25519.PublicKey)

	// Read body
	var body []byte
	if *bodyFile != "" {
		body, err = os.ReadFile(*bodyFile)
	} else {
		body, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read body: %v\n", err)
		os.Exit(1)
	}

	// Time-ordered nonce with enough entropy for replay tracking
	nonce := crypto.NewUUIDv7().String()

	// Get timestamp
	timestamp := time.Now().UnixMilli()

	// Compute body hash
	bodyHashBytes := sha256.Sum256(body)
	bodyHash := hex.EncodeToString(bodyHashBytes[:])

	// Sign
	signedData := crypto.SignaturePayload(bodyHash, nonce, timestamp)
	signature := ed25519.Sign(privKey, signedData)
	signatureB64 := base64.StdEncoding.EncodeToString(signature)

	// Output headers
	fmt.Printf("X-Pod-Key: %s\n", base64.URLEncoding.EncodeToString(pubKey))
	fmt.Printf("X-Pod-Nonce: %s\n", nonce)
	fmt.Printf("X-Pod-Timestamp: %d\n", timestamp)
	fmt.Printf("X-Pod-Signature: %s\n", signatureB64)
}
