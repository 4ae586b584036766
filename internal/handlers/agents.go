package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pod-protocol/podd/internal/api/middleware"
	"github.com/pod-protocol/podd/internal/core"
	"github.com/pod-protocol/podd/internal/derive"
	"github.com/pod-protocol/podd/internal/metrics"
	"github.com/pod-protocol/podd/internal/protocol"
)

// RegisterAgentRequest represents the agent registration request body.
type RegisterAgentRequest struct {
	Capabilities uint64 `json:"capabilities"`
	MetadataURI  string `json:"metadata_uri"`
}

// AgentResponse represents an agent account in API responses.
type AgentResponse struct {
	Address string      `json:"address"`
	Agent   *core.Agent `json:"agent"`
}

// RegisterAgent handles agent registration. The authenticated signer key
// becomes the agent's owner.
func (h *Handler) RegisterAgent(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req RegisterAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	addr, err := h.engine.RegisterAgent(r.Context(), protocol.RegisterAgentParams{
		Owner:        caller,
		Capabilities: req.Capabilities,
		MetadataURI:  req.MetadataURI,
	})
	if err != nil {
		h.EngineError(w, err)
		return
	}

	metrics.AgentsRegistered.Inc()
	h.JSON(w, http.StatusCreated, map[string]string{"address": addr.String()})
}

// UpdateAgentRequest represents the agent update request body. Omitted
// fields are left unchanged.
type UpdateAgentRequest struct {
	Capabilities *uint64 `json:"capabilities,omitempty"`
	MetadataURI  *string `json:"metadata_uri,omitempty"`
}

// UpdateAgent handles updates to the caller's agent.
func (h *Handler) UpdateAgent(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req UpdateAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	err := h.engine.UpdateAgent(r.Context(), protocol.UpdateAgentParams{
		Owner:        caller,
		Capabilities: req.Capabilities,
		MetadataURI:  req.MetadataURI,
	})
	if err != nil {
		h.EngineError(w, err)
		return
	}

	addr, _ := derive.Agent(caller)
	h.JSON(w, http.StatusOK, map[string]string{"address": addr.String()})
}

// GetAgent handles agent lookup by owner key.
func (h *Handler) GetAgent(w http.ResponseWriter, r *http.Request) {
	owner, err := core.ParseKey(chi.URLParam(r, "key"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid public key")
		return
	}

	agent, err := h.engine.GetAgent(r.Context(), owner)
	if err != nil {
		h.EngineError(w, err)
		return
	}

	addr, _ := derive.Agent(owner)
	h.JSON(w, http.StatusOK, AgentResponse{Address: addr.String(), Agent: agent})
}
