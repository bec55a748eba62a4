package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/xhad/edurag/internal/models"
	"github.com/xhad/edurag/internal/types"
	"golang.org/x/time/rate"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderCanned = "canned"
)

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("language model returned an empty response")

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	Provider  string
	Model     string
	BaseURL   string // Ollama server URL or OpenAI-compatible endpoint
	APIKey    string
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables limiting
}

type backend interface {
	complete(ctx context.Context, messages []models.ChatMessage, opts types.GenerateOptions) (string, error)
}

// ChatEngine sends prompt messages to a language model with a per-call
// timeout and an optional request rate limit.
type ChatEngine struct {
	config  ChatConfig
	backend backend
	limiter *rate.Limiter
}

// NewWithConfig creates a new ChatEngine for the configured provider.
func NewWithConfig(config ChatConfig) (*ChatEngine, error) {
	applyDefaults(&config)

	var b backend
	switch config.Provider {
	case ProviderOllama:
		llm, err := ollama.New(ollama.WithModel(config.Model),
			ollama.WithServerURL(config.BaseURL))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize LLM: %w", err)
		}
		b = langchainBackend{model: llm}
	case ProviderOpenAI:
		ob, err := newOpenAIBackend(config)
		if err != nil {
			return nil, err
		}
		b = ob
	case ProviderCanned:
		b = cannedBackend{}
	default:
		return nil, fmt.Errorf("unknown llm provider %q", config.Provider)
	}

	return newEngine(config, b), nil
}

// New wraps an existing langchaingo model.
func New(model llms.Model, config ChatConfig) *ChatEngine {
	applyDefaults(&config)
	return newEngine(config, langchainBackend{model: model})
}

func newEngine(config ChatConfig, b backend) *ChatEngine {
	ce := &ChatEngine{config: config, backend: b}
	if config.RateLimit > 0 {
		ce.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), 1)
	}
	return ce
}

func applyDefaults(config *ChatConfig) {
	if config.Provider == "" {
		config.Provider = ProviderOllama
	}
	if config.Model == "" {
		switch config.Provider {
		case ProviderOpenAI:
			config.Model = "gpt-4o-mini"
		default:
			config.Model = "mistral"
		}
	}
	if config.BaseURL == "" && config.Provider == ProviderOllama {
		config.BaseURL = "http://localhost:11434"
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
}

func (ce *ChatEngine) Provider() string {
	return ce.config.Provider
}

// Generate returns the model's answer to messages. Blank answers are reported
// as ErrEmptyResponse.
func (ce *ChatEngine) Generate(ctx context.Context, messages []models.ChatMessage, opts types.GenerateOptions) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, ce.config.Timeout)
	defer cancel()

	if ce.limiter != nil {
		if err := ce.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}

	answer, err := ce.backend.complete(ctx, messages, opts)
	if err != nil {
		return "", fmt.Errorf("chat error: %w", err)
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", ErrEmptyResponse
	}
	return answer, nil
}

type langchainBackend struct {
	model llms.Model
}

func (b langchainBackend) complete(ctx context.Context, messages []models.ChatMessage, opts types.GenerateOptions) (string, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		content = append(content, llms.TextParts(messageType(m.Role), m.Content))
	}

	callOpts := []llms.CallOption{llms.WithTemperature(opts.Temperature)}
	if opts.TopP > 0 {
		callOpts = append(callOpts, llms.WithTopP(opts.TopP))
	}
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}

	response, err := b.model.GenerateContent(ctx, content, callOpts...)
	if err != nil {
		return "", err
	}
	if response == nil || len(response.Choices) == 0 || response.Choices[0] == nil {
		return "", ErrEmptyResponse
	}
	return response.Choices[0].Content, nil
}

func messageType(role models.Role) llms.ChatMessageType {
	switch role {
	case models.RoleSystem:
		return llms.ChatMessageTypeSystem
	case models.RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
