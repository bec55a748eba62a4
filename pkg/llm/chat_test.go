package llm_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/xhad/edurag/internal/models"
	"github.com/xhad/edurag/internal/types"
	"github.com/xhad/edurag/pkg/llm"
)

type fakeModel struct {
	reply    string
	err      error
	block    bool
	messages []llms.MessageContent
	options  llms.CallOptions
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	for _, opt := range options {
		opt(&f.options)
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.reply}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func prompt() []models.ChatMessage {
	return []models.ChatMessage{
		{Role: models.RoleSystem, Content: "system rules"},
		{Role: models.RoleUser, Content: "earlier question"},
		{Role: models.RoleAssistant, Content: "earlier answer"},
		{Role: models.RoleUser, Content: "current question"},
	}
}

func TestNewWithConfig(t *testing.T) {
	engine, err := llm.NewWithConfig(llm.ChatConfig{
		Model:   "testmodel",
		BaseURL: "http://localhost:1234",
	})
	assert.NoError(t, err)
	assert.NotNil(t, engine)
	assert.Equal(t, llm.ProviderOllama, engine.Provider())
}

func TestNewWithConfig_Providers(t *testing.T) {
	_, err := llm.NewWithConfig(llm.ChatConfig{Provider: "carrier-pigeon"})
	assert.Error(t, err)

	_, err = llm.NewWithConfig(llm.ChatConfig{Provider: llm.ProviderOpenAI})
	assert.Error(t, err)

	engine, err := llm.NewWithConfig(llm.ChatConfig{Provider: llm.ProviderOpenAI, APIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, llm.ProviderOpenAI, engine.Provider())
}

func TestGenerate_MapsMessagesAndOptions(t *testing.T) {
	model := &fakeModel{reply: "  Photosynthesis makes sugar.  "}
	engine := llm.New(model, llm.ChatConfig{})

	answer, err := engine.Generate(context.Background(), prompt(), types.GenerateOptions{
		Temperature: 0.3,
		TopP:        0.8,
		MaxTokens:   256,
	})
	require.NoError(t, err)
	assert.Equal(t, "Photosynthesis makes sugar.", answer)

	require.Len(t, model.messages, 4)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.messages[1].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, model.messages[2].Role)
	assert.Equal(t, "current question", model.messages[3].Parts[0].(llms.TextContent).Text)

	assert.Equal(t, 0.3, model.options.Temperature)
	assert.Equal(t, 0.8, model.options.TopP)
	assert.Equal(t, 256, model.options.MaxTokens)
}

func TestGenerate_SendsZeroTemperature(t *testing.T) {
	model := &fakeModel{reply: "ok", options: llms.CallOptions{Temperature: 1.5}}
	engine := llm.New(model, llm.ChatConfig{})

	_, err := engine.Generate(context.Background(), prompt(), types.GenerateOptions{Temperature: 0, MaxTokens: 64})
	require.NoError(t, err)
	assert.Zero(t, model.options.Temperature)
}

func TestGenerate_Failures(t *testing.T) {
	_, err := llm.New(&fakeModel{reply: "   "}, llm.ChatConfig{}).
		Generate(context.Background(), prompt(), types.GenerateOptions{})
	assert.ErrorIs(t, err, llm.ErrEmptyResponse)

	boom := errors.New("model crashed")
	_, err = llm.New(&fakeModel{err: boom}, llm.ChatConfig{}).
		Generate(context.Background(), prompt(), types.GenerateOptions{})
	assert.ErrorIs(t, err, boom)
}

func TestGenerate_Timeout(t *testing.T) {
	engine := llm.New(&fakeModel{block: true}, llm.ChatConfig{Timeout: 20 * time.Millisecond})

	start := time.Now()
	_, err := engine.Generate(context.Background(), prompt(), types.GenerateOptions{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestGenerate_RateLimited(t *testing.T) {
	engine := llm.New(&fakeModel{reply: "ok"}, llm.ChatConfig{RateLimit: 1000})

	for i := 0; i < 3; i++ {
		answer, err := engine.Generate(context.Background(), prompt(), types.GenerateOptions{})
		require.NoError(t, err)
		assert.Equal(t, "ok", answer)
	}
}

func TestCannedProvider(t *testing.T) {
	engine, err := llm.NewWithConfig(llm.ChatConfig{Provider: llm.ProviderCanned})
	require.NoError(t, err)

	withContext := []models.ChatMessage{
		{Role: models.RoleSystem, Content: "rules"},
		{Role: models.RoleUser, Content: "=== REFERENCE DOCUMENTS ===\n[Biology] Cells divide.\n\n=== QUESTION ===\nHow do cells grow?"},
	}
	answer, err := engine.Generate(context.Background(), withContext, types.GenerateOptions{})
	require.NoError(t, err)
	assert.Contains(t, answer, "[Biology] Cells divide.")
	assert.NotContains(t, answer, "How do cells grow?")

	withoutContext := []models.ChatMessage{
		{Role: models.RoleUser, Content: "Question: anything\n\nNote: no relevant documents were found."},
	}
	answer, err = engine.Generate(context.Background(), withoutContext, types.GenerateOptions{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(answer, "I could not find"))
}
