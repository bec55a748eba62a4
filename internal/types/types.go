package types

import (
	"context"

	"github.com/xhad/edurag/internal/models"
)

// Core interfaces
type DocumentSource interface {
	ListRecentDocuments(ctx context.Context, limit int) ([]models.Document, error)
}

type ChunkStore interface {
	Ping(ctx context.Context) error
	InsertChunks(ctx context.Context, chunks []models.DocumentChunk) (int, error)
	ChunkExists(ctx context.Context, chunkID string) (bool, error)
	CountChunks(ctx context.Context) (int, error)
	SearchChunks(ctx context.Context, words []string, topic string, limit int) ([]models.DocumentChunk, error)
	DeleteDocument(ctx context.Context, documentID string) (int, error)
	ListTopics(ctx context.Context) ([]string, error)
	ListCategories(ctx context.Context) ([]string, error)
}

type TemplateStore interface {
	SearchTemplates(ctx context.Context, query string, limit int) ([]models.Template, error)
	CountTemplates(ctx context.Context) (int, error)
}

type TurnLog interface {
	LogTurn(ctx context.Context, turn models.Turn) error
	History(ctx context.Context, conversationID string, limit int) ([]models.Turn, error)
	DeleteConversation(ctx context.Context, conversationID string) error
}

type LanguageModel interface {
	Generate(ctx context.Context, messages []models.ChatMessage, opts GenerateOptions) (string, error)
}

type Retriever interface {
	Retrieve(ctx context.Context, query string, cfg RetrievalConfig) ([]models.RetrievedDocument, error)
}

type GenerateOptions struct {
	Temperature float64
	TopP        float64
	MaxTokens   int
}

type RetrievalConfig struct {
	TopK                int     `json:"top_k"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
	TopicFilter         string  `json:"topic_filter,omitempty"`
	CategoryFilter      string  `json:"category_filter,omitempty"`
}

type ChatConfig struct {
	Temperature    float64 `json:"temperature"`
	TopP           float64 `json:"top_p"`
	MaxTokens      int     `json:"max_tokens"`
	MaxContextDocs int     `json:"max_context_docs"`
	IncludeSources bool    `json:"include_sources"`
	ResponseStyle  string  `json:"response_style,omitempty"`
}

func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{TopK: 5}
}

func DefaultChatConfig() ChatConfig {
	return ChatConfig{
		Temperature:    0.7,
		TopP:           0.9,
		MaxTokens:      1024,
		MaxContextDocs: 5,
		IncludeSources: true,
	}
}

func (c ChatConfig) GenerateOptions() GenerateOptions {
	return GenerateOptions{
		Temperature: c.Temperature,
		TopP:        c.TopP,
		MaxTokens:   c.MaxTokens,
	}
}
