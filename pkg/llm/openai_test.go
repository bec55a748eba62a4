package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/edurag/internal/types"
	"github.com/xhad/edurag/pkg/llm"
)

func newOpenAIServer(t *testing.T, bodies chan<- map[string]any) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		bodies <- body

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4o-mini",
			"choices": [{
				"index": 0,
				"finish_reason": "stop",
				"message": {"role": "assistant", "content": "Chlorophyll absorbs light."}
			}]
		}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIGenerate(t *testing.T) {
	bodies := make(chan map[string]any, 1)
	srv := newOpenAIServer(t, bodies)

	engine, err := llm.NewWithConfig(llm.ChatConfig{
		Provider: llm.ProviderOpenAI,
		APIKey:   "sk-test",
		BaseURL:  srv.URL + "/v1/",
	})
	require.NoError(t, err)

	answer, err := engine.Generate(context.Background(), prompt(), types.GenerateOptions{
		Temperature: 0,
		TopP:        0.9,
		MaxTokens:   128,
	})
	require.NoError(t, err)
	assert.Equal(t, "Chlorophyll absorbs light.", answer)

	body := <-bodies
	assert.Equal(t, "gpt-4o-mini", body["model"])
	temperature, ok := body["temperature"]
	require.True(t, ok, "temperature must be sent even when zero")
	assert.Equal(t, 0.0, temperature)
	assert.Equal(t, 0.9, body["top_p"])
	assert.Equal(t, 128.0, body["max_completion_tokens"])

	messages, ok := body["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, messages, 4)
}
