package chat

import (
	"fmt"
	"strings"

	"github.com/xhad/edurag/internal/models"
	"github.com/xhad/edurag/internal/types"
)

const baseSystemPrompt = `You are an AI assistant that answers questions using the documents and summaries provided to you.

TASKS:
- Answer the user's question using information from the retrieved documents
- Give accurate, helpful and easy to follow answers
- Cite the source documents when you can

RULES:
1. Prefer information from the provided documents
2. If no relevant information is available, say honestly that you could not find it
3. Do not make up information that is not in the documents
4. Structure the answer so it is easy to read
5. Use bullet points or lists where they help`

// SystemPrompt builds the fixed instruction block for one turn.
func SystemPrompt(cfg types.ChatConfig) string {
	var b strings.Builder
	b.WriteString(baseSystemPrompt)
	if cfg.IncludeSources {
		b.WriteString("\n6. Always mention where the information comes from (for example: \"According to the biology notes...\")")
	}
	if cfg.ResponseStyle != "" {
		fmt.Fprintf(&b, "\n7. Response style: %s", cfg.ResponseStyle)
	}
	return b.String()
}

// UserPrompt embeds the context block and the question.
func UserPrompt(query string, cctx models.ConversationContext, cfg types.ChatConfig) string {
	if !cctx.ContextUsed || cctx.ContextText == "" {
		return fmt.Sprintf("Question: %s\n\nNote: no documents related to this question were found in the knowledge base.", query)
	}

	parts := []string{
		"=== REFERENCE DOCUMENTS ===",
		cctx.ContextText,
		"",
		"=== QUESTION ===",
		query,
		"",
	}
	if cfg.IncludeSources {
		parts = append(parts, "Answer based on the documents above and mention the sources you used.")
	} else {
		parts = append(parts, "Answer based on the documents above.")
	}
	return strings.Join(parts, "\n")
}

// BuildMessages orders the prompt as system, history, then the current question.
func BuildMessages(system string, history []models.ChatMessage, user string) []models.ChatMessage {
	messages := make([]models.ChatMessage, 0, len(history)+2)
	messages = append(messages, models.ChatMessage{Role: models.RoleSystem, Content: system})
	for _, m := range history {
		messages = append(messages, models.ChatMessage{Role: m.Role, Content: m.Content})
	}
	return append(messages, models.ChatMessage{Role: models.RoleUser, Content: user})
}

// BuildContext turns ranked documents into the source list and the prompt
// context block. Only the first maxDocs documents are used.
func BuildContext(docs []models.RetrievedDocument, maxDocs, previewLength int) models.ConversationContext {
	cctx := models.ConversationContext{
		RetrievedCount: len(docs),
		Sources:        []models.Source{},
	}
	if len(docs) == 0 || maxDocs <= 0 {
		return cctx
	}

	used := docs
	if len(used) > maxDocs {
		used = used[:maxDocs]
	}

	blocks := make([]string, 0, len(used))
	for _, d := range used {
		cctx.Sources = append(cctx.Sources, models.Source{
			DocumentID:      d.DocumentID,
			Topic:           d.Topic,
			Category:        d.Category,
			SimilarityScore: d.SimilarityScore,
			ChunkText:       preview(d.Content, previewLength),
		})
		blocks = append(blocks, fmt.Sprintf("[%s] %s", d.Topic, d.Content))
	}

	cctx.ContextUsed = true
	cctx.ContextText = strings.Join(blocks, "\n\n")
	return cctx
}

func preview(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
