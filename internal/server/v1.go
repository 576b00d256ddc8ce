// ABOUTME: HTTP handlers for the legacy v1 API surface
// ABOUTME: Single-thread agents, ungated routes, preserved bit-for-bit for old clients

package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/UTXO-Global/utxo-global-tgbot/internal/store"
)

// The v1 generation predates per-user history: an agent is an opaque
// generated identifier whose "topic" becomes its only instruction, and all
// chat for that identifier shares one thread. That is modeled here by using
// the agent id as both the token key and the user key, so v1 data lives in
// the same store without a schema special case. Do not "fix" this to match
// v2 semantics; old clients depend on the shared thread.

// NewAgentRequest is the JSON request body for POST /new-agent.
type NewAgentRequest struct {
	Topic string `json:"topic"`
}

// NewAgentResponse is the JSON response for POST /new-agent.
type NewAgentResponse struct {
	AgentID string `json:"agent_id"`
}

// VerifyRequest is the JSON request body for POST /v1/verify.
type VerifyRequest struct {
	Telegram   string `json:"telegram"`
	CKBAddress string `json:"ckb_address"`
	Signature  string `json:"signature"`
	DOB        string `json:"dob"`
}

// handleNewAgent handles POST /new-agent.
// The generated identifier doubles as the owner address: v1 has no owner
// concept, and EnsureAgent requires one.
func (s *Server) handleNewAgent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req NewAgentRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		s.sendValidationError(w, err.Error())
		return
	}
	if req.Topic == "" {
		s.sendValidationError(w, "topic is required")
		return
	}

	agentID := uuid.New().String()
	if _, err := s.store.AddInstruction(r.Context(), agentID, agentID, req.Topic); err != nil {
		s.logger.Error("creating v1 agent failed", "error", err)
		s.sendInternalError(w)
		return
	}

	s.logger.Info("v1 agent created", "agent_id", agentID)
	s.writeJSON(w, http.StatusOK, NewAgentResponse{AgentID: agentID})
}

// handleLegacyChat dispatches /chat by method.
func (s *Server) handleLegacyChat(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleLegacyChatHistory(w, r)
	case http.MethodPost:
		s.handleLegacyChatTurn(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleLegacyChatHistory handles GET /chat?agent_id=.
func (s *Server) handleLegacyChatHistory(w http.ResponseWriter, r *http.Request) {
	agentID := r.URL.Query().Get("agent_id")
	if agentID == "" {
		s.sendNotFound(w, "agent_id is required")
		return
	}

	if _, err := s.store.GetAgent(r.Context(), agentID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.sendNotFound(w, fmt.Sprintf("agent %s does not exist", agentID))
			return
		}
		s.logger.Error("looking up v1 agent failed", "error", err)
		s.sendInternalError(w)
		return
	}

	messages, err := s.chat.History(r.Context(), agentID, agentID)
	if err != nil {
		s.logger.Error("loading v1 history failed", "error", err)
		s.sendInternalError(w)
		return
	}

	s.writeJSON(w, http.StatusOK, HistoryResponse{Messages: messages})
}

// handleLegacyChatTurn handles POST /chat?agent_id= {msg}.
func (s *Server) handleLegacyChatTurn(w http.ResponseWriter, r *http.Request) {
	agentID := r.URL.Query().Get("agent_id")
	if agentID == "" {
		s.sendValidationError(w, "agent_id is required")
		return
	}

	var req ChatRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		s.sendValidationError(w, err.Error())
		return
	}
	if req.Msg == "" {
		s.sendValidationError(w, "msg is required")
		return
	}

	reply, err := s.chat.Respond(r.Context(), agentID, agentID, req.Msg)
	if err != nil {
		s.logger.Error("v1 chat turn failed", "agent_id", agentID, "error", err)
		s.sendInternalError(w)
		return
	}

	s.writeJSON(w, http.StatusOK, ChatResponse{Response: reply})
}

// handleVerify handles POST /v1/verify: records KYC details for a Telegram
// member and notifies them. Notification failures never change the response.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req VerifyRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		s.sendValidationError(w, err.Error())
		return
	}
	if req.Telegram == "" {
		s.sendValidationError(w, "telegram is required")
		return
	}
	if req.CKBAddress == "" {
		s.sendValidationError(w, "ckb_address is required")
		return
	}
	if req.Signature == "" {
		s.sendValidationError(w, "signature is required")
		return
	}
	if req.DOB == "" {
		s.sendValidationError(w, "dob is required")
		return
	}

	// TODO: verify req.Signature against the signed message
	// "My tg: <telegram> - My DoB: <dob>" once the signer library lands.

	// Balance lookup is out of scope; recorded as zero until then.
	tgid, err := s.store.VerifyMember(r.Context(), req.Telegram, req.CKBAddress, 0, req.DOB)
	if errors.Is(err, store.ErrNotFound) {
		s.sendNotFound(w, fmt.Sprintf("member %s does not exist", req.Telegram))
		return
	}
	if err != nil {
		s.logger.Error("verifying member failed", "error", err)
		s.sendInternalError(w)
		return
	}

	s.notifier.Send(tgid, "🔔 Your telegram account has passed KYC")
	s.logger.Info("member verified", "telegram", req.Telegram)

	s.writeJSON(w, http.StatusOK, successResponse{Success: true})
}
