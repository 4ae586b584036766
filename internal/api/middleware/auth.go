package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/pod-protocol/podd/internal/core"
	"github.com/pod-protocol/podd/internal/crypto"
	"github.com/pod-protocol/podd/internal/store"
)

type contextKey string

const CallerContextKey contextKey = "caller"

// AuthMiddleware handles signature verification for authenticated endpoints.
// The public key presented in the headers is the caller's identity; there is
// no session state, every request is individually signed.
type AuthMiddleware struct {
	redis  *store.RedisStore
	window time.Duration
}

// NewAuthMiddleware creates a new auth middleware. A nil redis store
// disables nonce replay tracking (single-node development only).
func NewAuthMiddleware(redis *store.RedisStore) *AuthMiddleware {
	return &AuthMiddleware{
		redis:  redis,
		window: 30 * time.Second, // Tight window to minimize replay attack surface
	}
}

// RequireAuth middleware verifies Ed25519 signatures on requests.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Extract headers
		keyB64 := r.Header.Get("X-Pod-Key")
		nonce := r.Header.Get("X-Pod-Nonce")
		timestamp := r.Header.Get("X-Pod-Timestamp")
		signature := r.Header.Get("X-Pod-Signature")

		// Validate all headers present
		if keyB64 == "" || nonce == "" || timestamp == "" || signature == "" {
			jsonError(w, http.StatusUnauthorized, "missing auth headers")
			return
		}

		// Parse and validate timestamp
		ts, err := strconv.ParseInt(timestamp, 10, 64)
		if err != nil {
			jsonError(w, http.StatusUnauthorized, "invalid timestamp format")
			return
		}
		if !m.isTimestampValid(ts) {
			jsonError(w, http.StatusUnauthorized, "timestamp expired or too far in future")
			return
		}

		// Validate nonce format (min 24 chars for adequate entropy)
		if len(nonce) < 24 {
			jsonError(w, http.StatusUnauthorized, "nonce must be at least 24 characters")
			return
		}

		// Check nonce not reused
		if m.isNonceUsed(r.Context(), keyB64, nonce) {
			jsonError(w, http.StatusUnauthorized, "nonce already used")
			return
		}

		// Parse the signer key
		caller, err := crypto.ParseSignerKey(keyB64)
		if err != nil {
			jsonError(w, http.StatusUnauthorized, "invalid public key")
			return
		}

		// Read body and compute hash
		body, err := io.ReadAll(r.Body)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "failed to read request body")
			return
		}
		r.Body = io.NopCloser(bytes.NewBuffer(body)) // Reset for handler

		bodyHash := sha256Hex(body)

		// Verify signature
		signedData := crypto.SignaturePayload(bodyHash, nonce, ts)
		if err := crypto.VerifySignature(caller, signedData, signature); err != nil {
			jsonError(w, http.StatusUnauthorized, "invalid signature")
			return
		}

		// Mark nonce as used
		m.markNonceUsed(r.Context(), keyB64, nonce)

		// Add caller key to context
		ctx := context.WithValue(r.Context(), CallerContextKey, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) isTimestampValid(ts int64) bool {
	now := time.Now().UnixMilli()
	windowMs := m.window.Milliseconds()
	// Only accept timestamps from the past (within window), reject future timestamps
	return ts > now-windowMs && ts <= now
}

func (m *AuthMiddleware) isNonceUsed(ctx context.Context, key, nonce string) bool {
	if m.redis == nil {
		return false
	}
	return m.redis.IsNonceUsed(ctx, key, nonce)
}

func (m *AuthMiddleware) markNonceUsed(ctx context.Context, key, nonce string) {
	if m.redis == nil {
		return
	}
	m.redis.MarkNonceUsed(ctx, key, nonce, 3*time.Minute)
}

func sha256Hex(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// CallerFromContext retrieves the authenticated signer key from the request
// context.
func CallerFromContext(ctx context.Context) (core.Key, bool) {
	caller, ok := ctx.Value(CallerContextKey).(core.Key)
	return caller, ok
}
