package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/xhad/edurag/pkg/chat"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	MessageChat     = "chat"
	MessageResponse = "response"
	MessageError    = "error"
)

type Message struct {
	Type           string `json:"type"`
	Content        string `json:"content"`
	ConversationID string `json:"conversation_id,omitempty"`
	Data           any    `json:"data,omitempty"`
}

// handleWebSocket answers chat messages one at a time, in arrival order.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.sendMessage(conn, Message{Type: MessageError, Content: "invalid message"})
			continue
		}
		s.handleMessage(r, conn, msg)
	}
}

func (s *Server) handleMessage(r *http.Request, conn *websocket.Conn, msg Message) {
	if msg.Type != "" && msg.Type != MessageChat {
		s.sendMessage(conn, Message{Type: MessageError, Content: "unsupported message type: " + msg.Type})
		return
	}

	query := strings.TrimSpace(msg.Content)
	if query == "" {
		s.sendMessage(conn, Message{Type: MessageError, Content: "query cannot be empty"})
		return
	}

	resp := s.deps.Orchestrator.Chat(r.Context(), chat.Request{
		Query:          query,
		ConversationID: msg.ConversationID,
		Retrieval:      s.config.Retrieval,
		Chat:           s.config.Chat,
	})

	s.sendMessage(conn, Message{
		Type:           MessageResponse,
		Content:        resp.Answer,
		ConversationID: msg.ConversationID,
		Data:           resp,
	})
}

func (s *Server) sendMessage(conn *websocket.Conn, msg Message) {
	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Warn("websocket write failed", "error", err)
	}
}
