package server

import (
	"net/http"
	"strconv"

	"github.com/xhad/edurag/internal/models"
)

const defaultListLimit = 50

func limitParam(r *http.Request) (int, bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return defaultListLimit, true
	}
	limit, err := strconv.Atoi(v)
	if err != nil || limit < 1 {
		return 0, false
	}
	return limit, true
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	limit, ok := limitParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	conversations := s.deps.Conversations.List(limit)
	if conversations == nil {
		conversations = []models.Conversation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversations": conversations,
		"total":         s.deps.Conversations.Len(),
	})
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.deps.Conversations.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// handleDeleteConversation drops the live conversation and its durable turns.
func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if s.deps.Turns != nil {
		if err := s.deps.Turns.DeleteConversation(r.Context(), id); err != nil {
			s.logger.Warn("failed to delete conversation turns", "conversation_id", id, "error", err)
		}
	}

	if !s.deps.Conversations.Delete(id) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message":         "conversation deleted",
		"conversation_id": id,
	})
}

func (s *Server) handleConversationHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	limit, ok := limitParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	turns := []models.Turn{}
	if s.deps.Turns != nil {
		history, err := s.deps.Turns.History(r.Context(), id, limit)
		if err != nil {
			s.logger.Error("failed to load conversation history", "conversation_id", id, "error", err)
			writeError(w, http.StatusServiceUnavailable, "conversation history unavailable")
			return
		}
		if history != nil {
			turns = history
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id": id,
		"history":         turns,
	})
}
