package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pod-protocol/podd/internal/api/middleware"
	"github.com/pod-protocol/podd/internal/core"
	"github.com/pod-protocol/podd/internal/metrics"
)

// EscrowRequest represents a deposit or withdraw request body.
type EscrowRequest struct {
	Amount uint64 `json:"amount"`
}

// DepositEscrow handles escrow deposits for a channel.
func (h *Handler) DepositEscrow(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	channel, err := core.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid channel address")
		return
	}

	var req EscrowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	addr, err := h.engine.DepositEscrow(r.Context(), caller, channel, req.Amount)
	if err != nil {
		h.EngineError(w, err)
		return
	}

	metrics.EscrowDeposits.Inc()
	h.JSON(w, http.StatusOK, map[string]string{"address": addr.String()})
}

// WithdrawEscrow handles escrow withdrawals from a channel.
func (h *Handler) WithdrawEscrow(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	channel, err := core.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid channel address")
		return
	}

	var req EscrowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.engine.WithdrawEscrow(r.Context(), caller, channel, req.Amount); err != nil {
		h.EngineError(w, err)
		return
	}

	h.JSON(w, http.StatusOK, map[string]string{"channel": channel.String()})
}

// EscrowResponse represents an escrow account in API responses.
type EscrowResponse struct {
	Escrow *core.Escrow `json:"escrow"`
}

// GetEscrow handles escrow lookup by channel and depositor key.
func (h *Handler) GetEscrow(w http.ResponseWriter, r *http.Request) {
	channel, err := core.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid channel address")
		return
	}
	depositor, err := core.ParseKey(chi.URLParam(r, "key"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid depositor key")
		return
	}

	esc, err := h.engine.GetEscrow(r.Context(), channel, depositor)
	if err != nil {
		h.EngineError(w, err)
		return
	}

	h.JSON(w, http.StatusOK, EscrowResponse{Escrow: esc})
}
