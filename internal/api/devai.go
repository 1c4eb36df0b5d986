package api

import (
	"net/http"
	"strings"
)

type devAIRequest struct {
	Prompt string `json:"prompt"`
}

type devAIResponse struct {
	Response string `json:"response"`
}

// handleDevAIChat handles POST /api/devai-chat.
func (s *Server) handleDevAIChat(w http.ResponseWriter, r *http.Request) {
	if s.assistant == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "DevAi is not configured")
		return
	}

	var req devAIRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "Prompt required")
		return
	}

	s.metrics.RecordDevAIRequest()
	answer, err := s.assistant.Ask(r.Context(), req.Prompt)
	if err != nil {
		logFor(r.Context()).Error("devai", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "DevAi failed to respond")
		return
	}
	writeJSON(w, http.StatusOK, devAIResponse{Response: answer})
}
