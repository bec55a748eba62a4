package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/xhad/edurag/internal/models"
	"github.com/xhad/edurag/internal/types"
	"github.com/xhad/edurag/pkg/conversation"
	"github.com/xhad/edurag/pkg/store"
)

const FallbackAnswer = "Sorry, I can't answer this question right now. Please try again later."

var errEmptyAnswer = errors.New("language model returned an empty answer")

type Config struct {
	HistoryWindow int
	FallbackQuery string
	FallbackTopK  int
	PreviewLength int
	TitleLength   int
}

func (c *Config) applyDefaults() {
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = 6
	}
	if c.FallbackTopK <= 0 {
		c.FallbackTopK = 10
	}
	if c.PreviewLength <= 0 {
		c.PreviewLength = 200
	}
	if c.TitleLength <= 0 {
		c.TitleLength = 50
	}
}

type Request struct {
	Query          string
	ConversationID string
	UserID         string
	Retrieval      types.RetrievalConfig
	Chat           types.ChatConfig
}

// Orchestrator runs one chat turn: retrieve, build context, prompt the model
// and record the exchange. It always produces an answer.
type Orchestrator struct {
	config        Config
	retriever     types.Retriever
	model         types.LanguageModel
	conversations *conversation.Manager
	turns         types.TurnLog
	logger        *slog.Logger
	now           func() time.Time
}

// New builds an orchestrator. turns may be nil.
func New(retriever types.Retriever, model types.LanguageModel, conversations *conversation.Manager, turns types.TurnLog, config Config, logger *slog.Logger) *Orchestrator {
	config.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		config:        config,
		retriever:     retriever,
		model:         model,
		conversations: conversations,
		turns:         turns,
		logger:        logger,
		now:           time.Now,
	}
}

func (o *Orchestrator) Chat(ctx context.Context, req Request) models.ChatResponse {
	start := o.now()
	if req.Chat.MaxContextDocs <= 0 {
		req.Chat.MaxContextDocs = types.DefaultChatConfig().MaxContextDocs
	}

	docs := o.retrieve(ctx, req)
	cctx := BuildContext(docs, req.Chat.MaxContextDocs, o.config.PreviewLength)

	var history []models.ChatMessage
	if req.ConversationID != "" {
		history, _ = o.conversations.RecentWindow(req.ConversationID, o.config.HistoryWindow)
	}

	messages := BuildMessages(SystemPrompt(req.Chat), history, UserPrompt(req.Query, cctx, req.Chat))

	answer, err := o.model.Generate(ctx, messages, req.Chat.GenerateOptions())
	if err == nil && strings.TrimSpace(answer) == "" {
		err = errEmptyAnswer
	}
	if err != nil {
		o.logger.Warn("language model failed, returning fallback answer",
			"conversation_id", req.ConversationID,
			"error", err,
		)
		answer = FallbackAnswer
	}

	if req.ConversationID != "" {
		o.record(req, answer)
	}

	elapsed := o.now().Sub(start)
	if elapsed < 0 {
		elapsed = 0
	}

	o.logTurn(ctx, req, answer, cctx.Sources, elapsed.Seconds(), start)

	return models.ChatResponse{
		Answer:         answer,
		ConversationID: req.ConversationID,
		Context:        cctx,
		Sources:        cctx.Sources,
		Timestamp:      start,
		ProcessingTime: elapsed.Seconds(),
	}
}

// retrieve degrades retrieval failures to an empty result and retries with
// the broad fallback query only when the primary search matched nothing.
func (o *Orchestrator) retrieve(ctx context.Context, req Request) []models.RetrievedDocument {
	docs, err := o.retriever.Retrieve(ctx, req.Query, req.Retrieval)
	if err != nil {
		o.logger.Warn("retrieval failed", "error", err)
		return nil
	}
	if len(docs) > 0 || o.config.FallbackQuery == "" {
		return docs
	}

	fallback := req.Retrieval
	fallback.TopK = o.config.FallbackTopK
	docs, err = o.retriever.Retrieve(ctx, o.config.FallbackQuery, fallback)
	if err != nil {
		o.logger.Warn("fallback retrieval failed", "error", err)
		return nil
	}
	return docs
}

func (o *Orchestrator) record(req Request, answer string) {
	o.conversations.Create(req.ConversationID, req.UserID, titleFrom(req.Query, o.config.TitleLength))

	for _, m := range []struct {
		role    models.Role
		content string
	}{
		{models.RoleUser, req.Query},
		{models.RoleAssistant, answer},
	} {
		if _, err := o.conversations.Append(req.ConversationID, m.role, m.content); err != nil {
			// deleted concurrently; the turn is still logged below
			if !errors.Is(err, conversation.ErrConversationNotFound) {
				o.logger.Warn("failed to record message", "conversation_id", req.ConversationID, "error", err)
			}
			return
		}
	}
}

func (o *Orchestrator) logTurn(ctx context.Context, req Request, answer string, sources []models.Source, seconds float64, at time.Time) {
	if o.turns == nil {
		return
	}

	id := req.ConversationID
	if id == "" {
		id = store.StandaloneConversation
	}

	logged := sources
	if len(logged) > 3 {
		logged = logged[:3]
	}

	err := o.turns.LogTurn(ctx, models.Turn{
		ConversationID: id,
		UserID:         req.UserID,
		Query:          req.Query,
		Answer:         answer,
		Sources:        logged,
		ProcessingTime: seconds,
		CreatedAt:      at,
	})
	if err != nil {
		o.logger.Warn("failed to log chat turn", "conversation_id", id, "error", err)
	}
}

func titleFrom(query string, n int) string {
	r := []rune(query)
	if len(r) <= n {
		return query
	}
	return string(r[:n]) + "..."
}
