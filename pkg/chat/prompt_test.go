package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/edurag/internal/models"
	"github.com/xhad/edurag/internal/types"
)

func TestBuildContext(t *testing.T) {
	cctx := BuildContext(nil, 5, 200)
	assert.False(t, cctx.ContextUsed)
	assert.NotNil(t, cctx.Sources)
	assert.Empty(t, cctx.ContextText)

	in := []models.RetrievedDocument{
		{DocumentID: "1", Topic: "Biology", Category: "document", Content: "Cells divide.", SimilarityScore: 0.7},
		{DocumentID: "quiz_template", Topic: "Physics", Category: "quiz", Content: "Newton quiz", SimilarityScore: 0.5},
	}
	cctx = BuildContext(in, 1, 200)
	assert.True(t, cctx.ContextUsed)
	assert.Equal(t, 2, cctx.RetrievedCount)
	require.Len(t, cctx.Sources, 1)
	assert.Equal(t, "Cells divide.", cctx.Sources[0].ChunkText)
	assert.Equal(t, "[Biology] Cells divide.", cctx.ContextText)
}

func TestSystemPrompt(t *testing.T) {
	plain := SystemPrompt(types.ChatConfig{})
	assert.NotContains(t, plain, "6.")
	assert.NotContains(t, plain, "7.")

	full := SystemPrompt(types.ChatConfig{IncludeSources: true, ResponseStyle: "concise"})
	assert.Contains(t, full, "6. Always mention")
	assert.Contains(t, full, "7. Response style: concise")
}

func TestUserPrompt(t *testing.T) {
	none := UserPrompt("Why?", models.ConversationContext{}, types.ChatConfig{})
	assert.Equal(t, "Question: Why?\n\nNote: no documents related to this question were found in the knowledge base.", none)

	cctx := models.ConversationContext{ContextUsed: true, ContextText: "[T] body"}
	got := UserPrompt("Why?", cctx, types.ChatConfig{})
	assert.Equal(t, "=== REFERENCE DOCUMENTS ===\n[T] body\n\n=== QUESTION ===\nWhy?\n\nAnswer based on the documents above.", got)

	got = UserPrompt("Why?", cctx, types.ChatConfig{IncludeSources: true})
	assert.Contains(t, got, "mention the sources")
}

func TestBuildMessages(t *testing.T) {
	history := []models.ChatMessage{
		{Role: models.RoleUser, Content: "q1"},
		{Role: models.RoleAssistant, Content: "a1"},
	}
	msgs := BuildMessages("sys", history, "q2")

	require.Len(t, msgs, 4)
	assert.Equal(t, models.RoleSystem, msgs[0].Role)
	assert.Equal(t, "q1", msgs[1].Content)
	assert.Equal(t, models.RoleAssistant, msgs[2].Role)
	assert.Equal(t, models.ChatMessage{Role: models.RoleUser, Content: "q2"}, msgs[3])
}
