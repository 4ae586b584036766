package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pod-protocol/podd/internal/api/middleware"
	"github.com/pod-protocol/podd/internal/core"
	"github.com/pod-protocol/podd/internal/metrics"
	"github.com/pod-protocol/podd/internal/protocol"
)

// SendMessageRequest represents the direct message request body.
type SendMessageRequest struct {
	Recipient   string           `json:"recipient"`
	PayloadHash string           `json:"payload_hash"`
	Type        core.MessageType `json:"message_type"`
}

// SendMessage handles recording a direct message.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	recipient, err := core.ParseKey(req.Recipient)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid recipient key")
		return
	}
	payloadHash, err := core.ParseHash(req.PayloadHash)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid payload hash")
		return
	}

	addr, err := h.engine.SendMessage(r.Context(), protocol.SendMessageParams{
		Sender:      caller,
		Recipient:   recipient,
		PayloadHash: payloadHash,
		Type:        req.Type,
	})
	if err != nil {
		h.EngineError(w, err)
		return
	}

	metrics.MessagesSent.Inc()
	h.JSON(w, http.StatusCreated, map[string]string{"address": addr.String()})
}

// UpdateMessageStatusRequest represents the status update request body.
type UpdateMessageStatusRequest struct {
	Status core.MessageStatus `json:"status"`
}

// UpdateMessageStatus handles message delivery lifecycle updates.
func (h *Handler) UpdateMessageStatus(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	addr, err := core.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid message address")
		return
	}

	var req UpdateMessageStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.engine.UpdateMessageStatus(r.Context(), caller, addr, req.Status); err != nil {
		h.EngineError(w, err)
		return
	}

	h.JSON(w, http.StatusOK, map[string]string{"status": string(req.Status)})
}

// MessageResponse represents a message account in API responses.
type MessageResponse struct {
	Address string        `json:"address"`
	Message *core.Message `json:"message"`
}

// GetMessage handles message lookup by address.
func (h *Handler) GetMessage(w http.ResponseWriter, r *http.Request) {
	addr, err := core.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid message address")
		return
	}

	msg, err := h.engine.GetMessage(r.Context(), addr)
	if err != nil {
		h.EngineError(w, err)
		return
	}

	h.JSON(w, http.StatusOK, MessageResponse{Address: addr.String(), Message: msg})
}
