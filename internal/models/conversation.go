package models

import "time"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type ChatMessage struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type Conversation struct {
	ID           string        `json:"conversation_id"`
	UserID       string        `json:"user_id,omitempty"`
	Title        string        `json:"title"`
	MessageCount int           `json:"message_count"`
	LastMessage  string        `json:"last_message,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	Messages     []ChatMessage `json:"messages,omitempty"`
}

// Source is the trimmed view of a retrieved document returned to callers.
type Source struct {
	DocumentID      string  `json:"document_id"`
	Topic           string  `json:"topic"`
	Category        string  `json:"category"`
	SimilarityScore float64 `json:"similarity_score"`
	ChunkText       string  `json:"chunk_text"`
}

// ConversationContext summarizes what retrieval contributed to a turn.
type ConversationContext struct {
	RetrievedCount int      `json:"retrieved_count"`
	ContextUsed    bool     `json:"context_used"`
	Sources        []Source `json:"sources"`
	ContextText    string   `json:"-"`
}

type ChatResponse struct {
	Answer         string              `json:"answer"`
	ConversationID string              `json:"conversation_id,omitempty"`
	Context        ConversationContext `json:"context"`
	Sources        []Source            `json:"sources"`
	Timestamp      time.Time           `json:"timestamp"`
	ProcessingTime float64             `json:"processing_time"`
}

// Turn is one audited chat exchange in the flat log.
type Turn struct {
	ID             int64     `json:"id,omitempty"`
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id,omitempty"`
	Query          string    `json:"user_query"`
	Answer         string    `json:"assistant_response"`
	Sources        []Source  `json:"context_sources"`
	ProcessingTime float64   `json:"processing_time"`
	CreatedAt      time.Time `json:"created_at"`
}
