package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/xhad/edurag/internal/models"
	"github.com/xhad/edurag/internal/types"
	"github.com/xhad/edurag/pkg/chat"
)

const maxBodyBytes = 1 << 20

type chatRequest struct {
	Query           string                `json:"query"`
	ConversationID  string                `json:"conversation_id"`
	UserID          string                `json:"user_id"`
	RetrievalConfig types.RetrievalConfig `json:"retrieval_config"`
	ChatConfig      types.ChatConfig      `json:"chat_config"`
}

// decodeChatRequest overlays the request body on the server defaults, so a
// partial retrieval_config or chat_config keeps the remaining defaults.
func (s *Server) decodeChatRequest(r *http.Request) (chatRequest, error) {
	payload := chatRequest{
		RetrievalConfig: s.config.Retrieval,
		ChatConfig:      s.config.Chat,
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&payload); err != nil {
		return payload, err
	}
	payload.Query = strings.TrimSpace(payload.Query)
	return payload, nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	payload, err := s.decodeChatRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	s.chat(w, r, payload)
}

func (s *Server) handleConversationChat(w http.ResponseWriter, r *http.Request) {
	payload, err := s.decodeChatRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	payload.ConversationID = r.PathValue("id")
	s.chat(w, r, payload)
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request, payload chatRequest) {
	if payload.Query == "" {
		writeError(w, http.StatusBadRequest, "query cannot be empty")
		return
	}

	resp := s.deps.Orchestrator.Chat(r.Context(), chat.Request{
		Query:          payload.Query,
		ConversationID: payload.ConversationID,
		UserID:         payload.UserID,
		Retrieval:      payload.RetrievalConfig,
		Chat:           payload.ChatConfig,
	})
	writeJSON(w, http.StatusOK, resp)
}

type quickChatResponse struct {
	Answer         string          `json:"answer"`
	SourcesCount   int             `json:"sources_count"`
	ProcessingTime float64         `json:"processing_time"`
	Sources        []models.Source `json:"sources"`
}

func (s *Server) handleQuickChat(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("query"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "query cannot be empty")
		return
	}

	retrieval := s.config.Retrieval
	if v := q.Get("top_k"); v != "" {
		topK, err := strconv.Atoi(v)
		if err != nil || topK < 0 {
			writeError(w, http.StatusBadRequest, "top_k must be a non-negative integer")
			return
		}
		retrieval.TopK = topK
	}

	chatConfig := s.config.Chat
	if v := q.Get("temperature"); v != "" {
		temperature, err := strconv.ParseFloat(v, 64)
		if err != nil || temperature < 0 || temperature > 2 {
			writeError(w, http.StatusBadRequest, "temperature must be between 0 and 2")
			return
		}
		chatConfig.Temperature = temperature
	}

	resp := s.deps.Orchestrator.Chat(r.Context(), chat.Request{
		Query:     query,
		Retrieval: retrieval,
		Chat:      chatConfig,
	})

	sources := resp.Sources
	if len(sources) > 3 {
		sources = sources[:3]
	}
	if sources == nil {
		sources = []models.Source{}
	}

	writeJSON(w, http.StatusOK, quickChatResponse{
		Answer:         resp.Answer,
		SourcesCount:   resp.Context.RetrievedCount,
		ProcessingTime: resp.ProcessingTime,
		Sources:        sources,
	})
}
