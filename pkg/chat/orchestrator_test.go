package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/edurag/internal/models"
	"github.com/xhad/edurag/internal/types"
	"github.com/xhad/edurag/pkg/conversation"
	"github.com/xhad/edurag/pkg/store"
)

type scriptedRetriever struct {
	results map[string][]models.RetrievedDocument
	err     error
	calls   []string
	topKs   []int
}

func (r *scriptedRetriever) Retrieve(_ context.Context, query string, cfg types.RetrievalConfig) ([]models.RetrievedDocument, error) {
	r.calls = append(r.calls, query)
	r.topKs = append(r.topKs, cfg.TopK)
	if r.err != nil && query != "document" {
		return nil, r.err
	}
	return r.results[query], nil
}

type recordingModel struct {
	reply    string
	err      error
	prompts  [][]models.ChatMessage
	lastOpts types.GenerateOptions
}

func (m *recordingModel) Generate(_ context.Context, messages []models.ChatMessage, opts types.GenerateOptions) (string, error) {
	m.prompts = append(m.prompts, messages)
	m.lastOpts = opts
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func (m *recordingModel) last() []models.ChatMessage {
	return m.prompts[len(m.prompts)-1]
}

func docs(n int, content string) []models.RetrievedDocument {
	out := make([]models.RetrievedDocument, n)
	for i := range out {
		out[i] = models.RetrievedDocument{
			DocumentID:      fmt.Sprintf("%d", i),
			ChunkID:         fmt.Sprintf("doc_%d_0", i),
			Content:         content,
			Topic:           fmt.Sprintf("Topic %d", i),
			Category:        "document",
			SimilarityScore: 0.5,
		}
	}
	return out
}

func newOrchestrator(r types.Retriever, m types.LanguageModel) (*Orchestrator, *conversation.Manager, *store.MemoryTurnLog) {
	convs := conversation.NewManager()
	turns := store.NewMemoryTurnLog()
	return New(r, m, convs, turns, Config{FallbackQuery: "document"}, nil), convs, turns
}

func request(query, conversationID string) Request {
	return Request{
		Query:          query,
		ConversationID: conversationID,
		Retrieval:      types.DefaultRetrievalConfig(),
		Chat:           types.DefaultChatConfig(),
	}
}

func TestChat_EmptyIndexStandalone(t *testing.T) {
	r := &scriptedRetriever{}
	model := &recordingModel{reply: "I could not find that in the documents."}
	o, convs, turns := newOrchestrator(r, model)

	resp := o.Chat(context.Background(), request("What is photosynthesis?", ""))

	assert.Equal(t, "I could not find that in the documents.", resp.Answer)
	assert.False(t, resp.Context.ContextUsed)
	assert.Zero(t, resp.Context.RetrievedCount)
	assert.Empty(t, resp.Sources)
	assert.Empty(t, resp.ConversationID)
	assert.GreaterOrEqual(t, resp.ProcessingTime, 0.0)

	assert.Equal(t, []string{"What is photosynthesis?", "document"}, r.calls)
	assert.Equal(t, []int{5, 10}, r.topKs)

	prompt := model.last()
	require.Len(t, prompt, 2)
	assert.Equal(t, models.RoleSystem, prompt[0].Role)
	assert.Contains(t, prompt[1].Content, "no documents related to this question")

	assert.Zero(t, convs.Len())
	logged, _ := turns.History(context.Background(), store.StandaloneConversation, 0)
	require.Len(t, logged, 1)
	assert.Equal(t, "What is photosynthesis?", logged[0].Query)
}

func TestChat_FallbackQueryProvidesContext(t *testing.T) {
	r := &scriptedRetriever{results: map[string][]models.RetrievedDocument{
		"document": docs(2, "General course overview."),
	}}
	model := &recordingModel{reply: "Here is an overview."}
	o, _, _ := newOrchestrator(r, model)

	resp := o.Chat(context.Background(), request("zzz", ""))

	assert.True(t, resp.Context.ContextUsed)
	assert.Equal(t, 2, resp.Context.RetrievedCount)
	assert.Contains(t, model.last()[1].Content, "=== REFERENCE DOCUMENTS ===\n[Topic 0] General course overview.\n\n[Topic 1] General course overview.")
}

func TestChat_RetrievalErrorDegrades(t *testing.T) {
	r := &scriptedRetriever{err: errors.New("store down")}
	model := &recordingModel{reply: "answer"}
	o, _, _ := newOrchestrator(r, model)

	resp := o.Chat(context.Background(), request("gravity", ""))

	assert.Equal(t, "answer", resp.Answer)
	assert.False(t, resp.Context.ContextUsed)
	assert.Equal(t, []string{"gravity"}, r.calls)
}

func TestChat_ModelFailureReturnsFallbackAnswer(t *testing.T) {
	r := &scriptedRetriever{results: map[string][]models.RetrievedDocument{"gravity": docs(1, "Gravity attracts mass.")}}
	model := &recordingModel{err: errors.New("timeout")}
	o, convs, turns := newOrchestrator(r, model)

	resp := o.Chat(context.Background(), request("gravity", "c1"))

	assert.Equal(t, FallbackAnswer, resp.Answer)
	assert.True(t, resp.Context.ContextUsed)

	conv, ok := convs.Get("c1")
	require.True(t, ok)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, FallbackAnswer, conv.Messages[1].Content)

	logged, _ := turns.History(context.Background(), "c1", 0)
	assert.Len(t, logged, 1)
}

func TestChat_EmptyModelOutputReturnsFallbackAnswer(t *testing.T) {
	for _, reply := range []string{"", "   \n"} {
		r := &scriptedRetriever{results: map[string][]models.RetrievedDocument{}}
		o, convs, turns := newOrchestrator(r, &recordingModel{reply: reply})

		resp := o.Chat(context.Background(), request("what is osmosis", "c1"))
		assert.Equal(t, FallbackAnswer, resp.Answer, "reply %q", reply)

		conv, ok := convs.Get("c1")
		require.True(t, ok)
		require.Len(t, conv.Messages, 2)
		assert.Equal(t, FallbackAnswer, conv.Messages[1].Content)

		logged, _ := turns.History(context.Background(), "c1", 0)
		require.Len(t, logged, 1)
		assert.Equal(t, FallbackAnswer, logged[0].Answer)
	}
}

func TestChat_MultiTurnHistoryWindow(t *testing.T) {
	r := &scriptedRetriever{results: map[string][]models.RetrievedDocument{}}
	model := &recordingModel{reply: "ok"}
	o, convs, _ := newOrchestrator(r, model)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		o.Chat(ctx, request(fmt.Sprintf("question %d", i), "c1"))
	}
	conv, _ := convs.Get("c1")
	assert.Len(t, conv.Messages, 8)
	assert.Equal(t, "question 1", conv.Title)

	o.Chat(ctx, request("question 5", "c1"))

	prompt := model.last()
	require.Len(t, prompt, 8)
	assert.Equal(t, models.RoleSystem, prompt[0].Role)
	assert.Equal(t, "question 2", prompt[1].Content)
	assert.Equal(t, models.RoleAssistant, prompt[6].Role)
	assert.Contains(t, prompt[7].Content, "question 5")

	conv, _ = convs.Get("c1")
	assert.Len(t, conv.Messages, 10)
}

func TestChat_ContextLimitsAndPreview(t *testing.T) {
	long := strings.Repeat("x", 300)
	r := &scriptedRetriever{results: map[string][]models.RetrievedDocument{"cells": docs(8, long)}}
	model := &recordingModel{reply: "ok"}
	o, _, turns := newOrchestrator(r, model)

	resp := o.Chat(context.Background(), request("cells", ""))

	assert.Equal(t, 8, resp.Context.RetrievedCount)
	require.Len(t, resp.Sources, 5)
	assert.Equal(t, strings.Repeat("x", 200)+"...", resp.Sources[0].ChunkText)
	assert.Contains(t, model.last()[1].Content, long)

	logged, _ := turns.History(context.Background(), store.StandaloneConversation, 0)
	require.Len(t, logged, 1)
	assert.Len(t, logged[0].Sources, 3)
}

func TestChat_PassesGenerationOptions(t *testing.T) {
	model := &recordingModel{reply: "ok"}
	o, _, _ := newOrchestrator(&scriptedRetriever{}, model)

	req := request("q", "")
	req.Chat.Temperature = 0.2
	req.Chat.MaxTokens = 64
	o.Chat(context.Background(), req)

	assert.Equal(t, 0.2, model.lastOpts.Temperature)
	assert.Equal(t, 64, model.lastOpts.MaxTokens)
}

func TestChat_WithoutTurnLog(t *testing.T) {
	o := New(&scriptedRetriever{}, &recordingModel{reply: "ok"}, conversation.NewManager(), nil, Config{}, nil)

	resp := o.Chat(context.Background(), request("q", ""))
	assert.Equal(t, "ok", resp.Answer)
}
