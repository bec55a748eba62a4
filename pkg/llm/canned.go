package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/xhad/edurag/internal/models"
	"github.com/xhad/edurag/internal/types"
)

const (
	referenceMarker = "=== REFERENCE DOCUMENTS ==="
	questionMarker  = "=== QUESTION ==="
	cannedExcerpt   = 300
)

// cannedBackend answers without a model server. It echoes the start of the
// reference block of the last user message.
type cannedBackend struct{}

func (cannedBackend) complete(_ context.Context, messages []models.ChatMessage, _ types.GenerateOptions) (string, error) {
	var prompt string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == models.RoleUser {
			prompt = messages[i].Content
			break
		}
	}

	start := strings.Index(prompt, referenceMarker)
	end := strings.Index(prompt, questionMarker)
	if start < 0 || end <= start {
		return "I could not find any relevant documents for this question.", nil
	}

	excerpt := strings.TrimSpace(prompt[start+len(referenceMarker) : end])
	r := []rune(excerpt)
	if len(r) > cannedExcerpt {
		excerpt = string(r[:cannedExcerpt]) + "..."
	}
	return fmt.Sprintf("Based on the available documents:\n%s", excerpt), nil
}
