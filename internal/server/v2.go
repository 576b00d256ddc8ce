// ABOUTME: HTTP handlers for the v2 (per-user segregated) API surface
// ABOUTME: Instructions CRUD and chat, all gated by the x-app-key middleware

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/UTXO-Global/utxo-global-tgbot/internal/model"
	"github.com/UTXO-Global/utxo-global-tgbot/internal/store"
)

// InstructionResponse is one element of the GET /v2/instructions response.
type InstructionResponse struct {
	ID      int64  `json:"id"`
	Content string `json:"content"`
}

// AddInstructionRequest is the JSON request body for POST /v2/instructions.
type AddInstructionRequest struct {
	TokenAddress string `json:"token_address"`
	Instruction  string `json:"instruction"`
	OwnerAddress string `json:"owner_address"`
}

// UpdateInstructionRequest is the JSON request body for PATCH /v2/instructions.
type UpdateInstructionRequest struct {
	InstructionID int64  `json:"instruction_id"`
	Instruction   string `json:"instruction"`
}

// DeleteInstructionRequest is the JSON request body for DELETE /v2/instructions.
type DeleteInstructionRequest struct {
	InstructionID int64 `json:"instruction_id"`
}

// ChatRequest is the JSON request body for POST /v2/chat.
type ChatRequest struct {
	Msg string `json:"msg"`
}

// ChatResponse is the JSON response for POST /v2/chat.
type ChatResponse struct {
	Response string `json:"response"`
}

// HistoryResponse is the JSON response for GET /v2/chat.
type HistoryResponse struct {
	Messages []model.ChatMessage `json:"messages"`
}

// handleInstructions dispatches /v2/instructions by method.
func (s *Server) handleInstructions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListInstructions(w, r)
	case http.MethodPost:
		s.handleAddInstruction(w, r)
	case http.MethodPatch:
		s.handleUpdateInstruction(w, r)
	case http.MethodDelete:
		s.handleDeleteInstruction(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleListInstructions handles GET /v2/instructions?token_address=.
func (s *Server) handleListInstructions(w http.ResponseWriter, r *http.Request) {
	tokenAddress := r.URL.Query().Get("token_address")
	if tokenAddress == "" {
		s.sendValidationError(w, "token_address is required")
		return
	}

	instructions, err := s.store.ListInstructions(r.Context(), tokenAddress)
	if err != nil {
		s.logger.Error("listing instructions failed", "error", err)
		s.sendInternalError(w)
		return
	}

	response := make([]InstructionResponse, 0, len(instructions))
	for _, in := range instructions {
		response = append(response, InstructionResponse{ID: in.ID, Content: in.Content})
	}
	s.writeJSON(w, http.StatusOK, response)
}

// handleAddInstruction handles POST /v2/instructions.
// The owning agent is created on first write; repeat creates are no-ops.
func (s *Server) handleAddInstruction(w http.ResponseWriter, r *http.Request) {
	var req AddInstructionRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		s.sendValidationError(w, err.Error())
		return
	}
	if req.TokenAddress == "" {
		s.sendValidationError(w, "token_address is required")
		return
	}
	if req.Instruction == "" {
		s.sendValidationError(w, "instruction is required")
		return
	}
	if req.OwnerAddress == "" {
		s.sendValidationError(w, "owner_address is required")
		return
	}

	id, err := s.store.AddInstruction(r.Context(), req.TokenAddress, req.OwnerAddress, req.Instruction)
	if err != nil {
		s.logger.Error("adding instruction failed", "error", err)
		s.sendInternalError(w)
		return
	}

	s.logger.Info("instruction added", "token_address", store.CanonicalAddress(req.TokenAddress), "instruction_id", id)
	s.writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// handleUpdateInstruction handles PATCH /v2/instructions.
// Unknown instruction ids report 404 rather than silently no-oping.
func (s *Server) handleUpdateInstruction(w http.ResponseWriter, r *http.Request) {
	var req UpdateInstructionRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		s.sendValidationError(w, err.Error())
		return
	}
	if req.InstructionID == 0 {
		s.sendValidationError(w, "instruction_id is required")
		return
	}
	if req.Instruction == "" {
		s.sendValidationError(w, "instruction is required")
		return
	}

	err := s.store.UpdateInstruction(r.Context(), req.InstructionID, req.Instruction)
	if errors.Is(err, store.ErrNotFound) {
		s.sendNotFound(w, fmt.Sprintf("instruction %d does not exist", req.InstructionID))
		return
	}
	if err != nil {
		s.logger.Error("updating instruction failed", "error", err)
		s.sendInternalError(w)
		return
	}

	s.writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// handleDeleteInstruction handles DELETE /v2/instructions.
func (s *Server) handleDeleteInstruction(w http.ResponseWriter, r *http.Request) {
	var req DeleteInstructionRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		s.sendValidationError(w, err.Error())
		return
	}
	if req.InstructionID == 0 {
		s.sendValidationError(w, "instruction_id is required")
		return
	}

	err := s.store.DeleteInstruction(r.Context(), req.InstructionID)
	if errors.Is(err, store.ErrNotFound) {
		s.sendNotFound(w, fmt.Sprintf("instruction %d does not exist", req.InstructionID))
		return
	}
	if err != nil {
		s.logger.Error("deleting instruction failed", "error", err)
		s.sendInternalError(w)
		return
	}

	s.writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// handleChat dispatches /v2/chat by method.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleChatHistory(w, r)
	case http.MethodPost:
		s.handleChatTurn(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleChatHistory handles GET /v2/chat?token_address=&user_address=.
func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	tokenAddress := r.URL.Query().Get("token_address")
	userAddress := r.URL.Query().Get("user_address")
	if tokenAddress == "" {
		s.sendValidationError(w, "token_address is required")
		return
	}
	if userAddress == "" {
		s.sendValidationError(w, "user_address is required")
		return
	}

	messages, err := s.chat.History(r.Context(), tokenAddress, userAddress)
	if err != nil {
		s.logger.Error("loading history failed", "error", err)
		s.sendInternalError(w)
		return
	}

	s.writeJSON(w, http.StatusOK, HistoryResponse{Messages: messages})
}

// handleChatTurn handles POST /v2/chat?token_address=&user_address=.
// One turn: context assembly, one model invocation, one atomic history write.
func (s *Server) handleChatTurn(w http.ResponseWriter, r *http.Request) {
	tokenAddress := r.URL.Query().Get("token_address")
	userAddress := r.URL.Query().Get("user_address")
	if tokenAddress == "" {
		s.sendValidationError(w, "token_address is required")
		return
	}
	if userAddress == "" {
		s.sendValidationError(w, "user_address is required")
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

	reply, err := s.chat.Respond(r.Context(), tokenAddress, userAddress, req.Msg)
	if err != nil {
		s.logger.Error("chat turn failed",
			"token_address", store.CanonicalAddress(tokenAddress),
			"error", err)
		s.sendInternalError(w)
		return
	}

	s.writeJSON(w, http.StatusOK, ChatResponse{Response: reply})
}

// decodeJSON decodes a request body, translating decode failures into
// messages safe to echo back to the caller.
func decodeJSON(body io.Reader, dst any) error {
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}
