package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pod-protocol/podd/internal/core"
	"github.com/pod-protocol/podd/internal/metrics"
	"github.com/pod-protocol/podd/internal/protocol"
	"github.com/pod-protocol/podd/internal/store"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	engine *protocol.Engine
	store  store.AccountStore
	redis  *store.RedisStore
}

// NewHandler creates a new Handler with the given engine and stores.
func NewHandler(engine *protocol.Engine, accounts store.AccountStore, redis *store.RedisStore) *Handler {
	return &Handler{engine: engine, store: accounts, redis: redis}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// EngineError maps engine errors to HTTP status codes.
func (h *Handler) EngineError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrVersionConflict) {
		metrics.CommitConflicts.Inc()
	}
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, core.ErrNotFound),
		errors.Is(err, core.ErrRecipientNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrNotInChannel),
		errors.Is(err, core.ErrInvitationRequired),
		errors.Is(err, core.ErrInvitationMismatch):
		status = http.StatusForbidden
	case errors.Is(err, core.ErrInsufficientFunds),
		errors.Is(err, core.ErrInsufficientBalance):
		status = http.StatusPaymentRequired
	case errors.Is(err, core.ErrMessageExpired),
		errors.Is(err, core.ErrInvitationExpired):
		status = http.StatusGone
	case errors.Is(err, core.ErrAgentExists),
		errors.Is(err, core.ErrNameTaken),
		errors.Is(err, core.ErrDuplicateMessage),
		errors.Is(err, core.ErrDuplicateInvitation),
		errors.Is(err, core.ErrAlreadyInChannel),
		errors.Is(err, core.ErrInvitationAlreadyUsed),
		errors.Is(err, core.ErrChannelFull),
		errors.Is(err, core.ErrChannelInactive),
		errors.Is(err, store.ErrVersionConflict):
		status = http.StatusConflict
	case errors.Is(err, core.ErrRateLimitExceeded):
		status = http.StatusTooManyRequests
	case errors.Is(err, core.ErrInvalidArgument),
		errors.Is(err, core.ErrInvalidMetadata),
		errors.Is(err, core.ErrInvalidTransition),
		errors.Is(err, core.ErrArithmeticOverflow),
		errors.Is(err, core.ErrArithmeticUnderflow):
		status = http.StatusUnprocessableEntity
	}
	h.Error(w, status, err.Error())
}
