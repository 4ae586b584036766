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

// CreateChannelRequest represents the channel creation request body.
// EnrollCreator selects the variant that atomically adds the creator as the
// first participant.
type CreateChannelRequest struct {
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Visibility      core.Visibility `json:"visibility"`
	MaxParticipants uint32          `json:"max_participants"`
	FeePerMessage   uint64          `json:"fee_per_message"`
	EnrollCreator   bool            `json:"enroll_creator"`
}

// CreateChannel handles channel creation.
func (h *Handler) CreateChannel(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req CreateChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	params := protocol.CreateChannelParams{
		Creator:         caller,
		Name:            req.Name,
		Description:     req.Description,
		Visibility:      req.Visibility,
		MaxParticipants: req.MaxParticipants,
		FeePerMessage:   req.FeePerMessage,
	}

	var addr core.Address
	var err error
	if req.EnrollCreator {
		addr, err = h.engine.CreateChannelV2(r.Context(), params)
	} else {
		addr, err = h.engine.CreateChannel(r.Context(), params)
	}
	if err != nil {
		h.EngineError(w, err)
		return
	}

	metrics.ChannelsCreated.Inc()
	h.JSON(w, http.StatusCreated, map[string]string{"address": addr.String()})
}

// UpdateChannelRequest represents the channel update request body. Omitted
// fields are left unchanged.
type UpdateChannelRequest struct {
	Description     *string          `json:"description,omitempty"`
	Visibility      *core.Visibility `json:"visibility,omitempty"`
	MaxParticipants *uint32          `json:"max_participants,omitempty"`
	FeePerMessage   *uint64          `json:"fee_per_message,omitempty"`
	Active          *bool            `json:"is_active,omitempty"`
}

// UpdateChannel handles channel setting updates by the creator.
func (h *Handler) UpdateChannel(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	addr, err := core.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid channel address")
		return
	}

	var req UpdateChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	err = h.engine.UpdateChannel(r.Context(), protocol.UpdateChannelParams{
		Creator:         caller,
		Channel:         addr,
		Description:     req.Description,
		Visibility:      req.Visibility,
		MaxParticipants: req.MaxParticipants,
		FeePerMessage:   req.FeePerMessage,
		Active:          req.Active,
	})
	if err != nil {
		h.EngineError(w, err)
		return
	}

	h.JSON(w, http.StatusOK, map[string]string{"address": addr.String()})
}

// ChannelResponse represents a channel account in API responses.
type ChannelResponse struct {
	Address string        `json:"address"`
	Channel *core.Channel `json:"channel"`
}

// GetChannel handles channel lookup by address.
func (h *Handler) GetChannel(w http.ResponseWriter, r *http.Request) {
	addr, err := core.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid channel address")
		return
	}

	ch, err := h.engine.GetChannel(r.Context(), addr)
	if err != nil {
		h.EngineError(w, err)
		return
	}

	h.JSON(w, http.StatusOK, ChannelResponse{Address: addr.String(), Channel: ch})
}

// JoinChannel handles a join request by the authenticated caller.
func (h *Handler) JoinChannel(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	addr, err := core.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid channel address")
		return
	}

	if err := h.engine.JoinChannel(r.Context(), caller, addr); err != nil {
		h.EngineError(w, err)
		return
	}

	h.JSON(w, http.StatusOK, map[string]string{"channel": addr.String()})
}

// LeaveChannel handles a leave request by the authenticated caller.
func (h *Handler) LeaveChannel(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	addr, err := core.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid channel address")
		return
	}

	if err := h.engine.LeaveChannel(r.Context(), caller, addr); err != nil {
		h.EngineError(w, err)
		return
	}

	h.JSON(w, http.StatusOK, map[string]string{"channel": addr.String()})
}

// InviteRequest represents the invitation request body.
type InviteRequest struct {
	Invitee string `json:"invitee"`
	Nonce   uint64 `json:"nonce"`
}

// InviteToChannel handles issuing an invitation.
func (h *Handler) InviteToChannel(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	addr, err := core.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid channel address")
		return
	}

	var req InviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	invitee, err := core.ParseKey(req.Invitee)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid invitee key")
		return
	}

	invAddr, err := h.engine.InviteToChannel(r.Context(), protocol.InviteParams{
		Inviter: caller,
		Channel: addr,
		Invitee: invitee,
		Nonce:   req.Nonce,
	})
	if err != nil {
		h.EngineError(w, err)
		return
	}

	h.JSON(w, http.StatusCreated, map[string]string{"address": invAddr.String()})
}

// InvitationResponse represents an invitation account in API responses.
type InvitationResponse struct {
	Address    string           `json:"address"`
	Invitation *core.Invitation `json:"invitation"`
}

// GetInvitation handles invitation lookup by channel and invitee key.
func (h *Handler) GetInvitation(w http.ResponseWriter, r *http.Request) {
	addr, err := core.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid channel address")
		return
	}
	invitee, err := core.ParseKey(chi.URLParam(r, "key"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid invitee key")
		return
	}

	inv, err := h.engine.GetInvitation(r.Context(), addr, invitee)
	if err != nil {
		h.EngineError(w, err)
		return
	}

	h.JSON(w, http.StatusOK, InvitationResponse{Address: addr.String(), Invitation: inv})
}

// BroadcastRequest represents the channel broadcast request body.
type BroadcastRequest struct {
	Content string           `json:"content"`
	Type    core.MessageType `json:"message_type"`
	ReplyTo *string          `json:"reply_to,omitempty"`
	Nonce   uint64           `json:"nonce"`
}

// BroadcastMessage handles posting a message to a channel.
func (h *Handler) BroadcastMessage(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	addr, err := core.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid channel address")
		return
	}

	var req BroadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var replyTo *core.Address
	if req.ReplyTo != nil {
		parsed, err := core.ParseAddress(*req.ReplyTo)
		if err != nil {
			h.Error(w, http.StatusBadRequest, "invalid reply_to address")
			return
		}
		replyTo = &parsed
	}

	ch, err := h.engine.GetChannel(r.Context(), addr)
	if err != nil {
		h.EngineError(w, err)
		return
	}

	msgAddr, err := h.engine.BroadcastMessage(r.Context(), protocol.BroadcastParams{
		Sender:  caller,
		Channel: addr,
		Content: req.Content,
		Type:    req.Type,
		ReplyTo: replyTo,
		Nonce:   req.Nonce,
	})
	if err != nil {
		h.EngineError(w, err)
		return
	}

	metrics.BroadcastsSent.WithLabelValues(string(ch.Visibility)).Inc()
	h.JSON(w, http.StatusCreated, map[string]string{"address": msgAddr.String()})
}

// ChannelMessageResponse represents a broadcast message in API responses.
type ChannelMessageResponse struct {
	Address string               `json:"address"`
	Message *core.ChannelMessage `json:"message"`
}

// GetChannelMessage handles broadcast message lookup by address.
func (h *Handler) GetChannelMessage(w http.ResponseWriter, r *http.Request) {
	addr, err := core.ParseAddress(chi.URLParam(r, "message"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid message address")
		return
	}

	msg, err := h.engine.GetChannelMessage(r.Context(), addr)
	if err != nil {
		h.EngineError(w, err)
		return
	}

	h.JSON(w, http.StatusOK, ChannelMessageResponse{Address: addr.String(), Message: msg})
}

// ParticipantResponse represents a membership record in API responses.
type ParticipantResponse struct {
	Participant *core.Participant `json:"participant"`
}

// GetParticipant handles membership lookup by channel and agent address.
func (h *Handler) GetParticipant(w http.ResponseWriter, r *http.Request) {
	channel, err := core.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid channel address")
		return
	}
	agent, err := core.ParseAddress(chi.URLParam(r, "agent"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid agent address")
		return
	}

	part, err := h.engine.GetParticipant(r.Context(), channel, agent)
	if err != nil {
		h.EngineError(w, err)
		return
	}

	h.JSON(w, http.StatusOK, ParticipantResponse{Participant: part})
}
