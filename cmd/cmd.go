package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xhad/edurag/internal/models"
	"github.com/xhad/edurag/internal/types"
	"github.com/xhad/edurag/pkg/chat"
	cfgPkg "github.com/xhad/edurag/pkg/config"
	"github.com/xhad/edurag/pkg/conversation"
	"github.com/xhad/edurag/pkg/indexer"
	"github.com/xhad/edurag/pkg/llm"
	"github.com/xhad/edurag/pkg/processor"
	"github.com/xhad/edurag/pkg/retriever"
	"github.com/xhad/edurag/pkg/source"
	"github.com/xhad/edurag/pkg/store"
	"github.com/xhad/edurag/server"
)

// app holds the wired components shared by every subcommand.
type app struct {
	config        *cfgPkg.Config
	logger        *slog.Logger
	source        types.DocumentSource
	templates     types.TemplateStore
	chunks        types.ChunkStore
	turns         types.TurnLog
	engine        *llm.ChatEngine
	retriever     *retriever.KeywordRetriever
	indexer       *indexer.Indexer
	conversations *conversation.Manager
	orchestrator  *chat.Orchestrator
	close         func()
}

type noSource struct{}

func (noSource) ListRecentDocuments(context.Context, int) ([]models.Document, error) {
	return nil, nil
}

func newApp(ctx context.Context, cfg *cfgPkg.Config, logger *slog.Logger) (*app, error) {
	a := &app{config: cfg, logger: logger, close: func() {}}

	if err := a.openStores(ctx); err != nil {
		return nil, err
	}

	src, err := newDocumentSource(cfg, logger)
	if err != nil {
		a.close()
		return nil, err
	}
	a.source = src

	if cfg.Sources.Templates.Path != "" {
		a.templates = source.NewQuizTemplateStore(cfg.Sources.Templates.Path, logger)
	}

	a.engine, err = llm.NewWithConfig(llm.ChatConfig{
		Provider:  cfg.LLM.Provider,
		Model:     cfg.LLM.Model,
		BaseURL:   cfg.LLM.BaseURL,
		APIKey:    cfg.LLM.APIKey,
		Timeout:   cfg.LLM.Timeout,
		RateLimit: cfg.LLM.RateLimit,
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to initialize chat engine: %w", err)
	}

	a.retriever = retriever.New(a.chunks, a.templates, retriever.DefaultConfig(), logger)
	a.indexer = indexer.New(a.source, a.chunks, indexer.Config{
		DocumentLimit:    cfg.Indexer.DocumentLimit,
		TimeBudget:       cfg.Indexer.TimeBudget,
		BatchSize:        cfg.Database.BatchSize,
		MinContentLength: cfg.Indexer.MinContentLength,
		MaxChunkContent:  cfg.Indexer.MaxChunkContent,
		Processor: processor.ProcessorConfig{
			ChunkSize:    cfg.Indexer.ChunkSize,
			ChunkOverlap: cfg.Indexer.ChunkOverlap,
			MaxChunks:    cfg.Indexer.MaxChunks,
		},
	}, logger)

	a.conversations = conversation.NewManager()
	a.orchestrator = chat.New(a.retriever, a.engine, a.conversations, a.turns, chat.Config{
		HistoryWindow: cfg.Chat.HistoryWindow,
		FallbackQuery: cfg.Retrieval.FallbackQuery,
		FallbackTopK:  cfg.Retrieval.FallbackTopK,
	}, logger)

	return a, nil
}

func (a *app) openStores(ctx context.Context) error {
	if a.config.Database.Driver != "postgres" {
		a.chunks = store.NewMemoryChunkStore()
		a.turns = store.NewMemoryTurnLog()
		a.logger.Info("using in-memory chunk store")
		return nil
	}

	pool, err := store.Open(ctx, store.ConnectConfig{
		URL:            a.config.Database.URL,
		MaxElapsedTime: 30 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize chunk store: %w", err)
	}

	chunks := store.NewPostgresChunkStore(pool, store.ChunkStoreConfig{VectorDim: a.config.Database.VectorDim}, a.logger)
	if err := chunks.EnsureSchema(ctx); err != nil {
		pool.Close()
		return err
	}
	turns := store.NewPostgresTurnLog(pool, a.logger)
	if err := turns.EnsureSchema(ctx); err != nil {
		pool.Close()
		return err
	}

	a.chunks = chunks
	a.turns = turns
	a.close = pool.Close
	return nil
}

func newDocumentSource(cfg *cfgPkg.Config, logger *slog.Logger) (types.DocumentSource, error) {
	docs := cfg.Sources.Documents
	switch docs.Kind {
	case "gateway":
		return source.NewGatewaySource(docs.Path, logger), nil
	case "web":
		web, err := source.NewWebSource(source.WebConfig{
			BaseURL:        docs.URL,
			MaxDepth:       docs.MaxDepth,
			RateLimit:      docs.RateLimit,
			IgnorePatterns: docs.IgnorePatterns,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize web source: %w", err)
		}
		return web, nil
	default:
		return noSource{}, nil
	}
}

// probe reports whether the configured sources are reachable.
func (a *app) probe(ctx context.Context) {
	docs, err := a.source.ListRecentDocuments(ctx, 1)
	if err != nil {
		a.logger.Warn("document source unavailable", "error", err)
	} else {
		a.logger.Info("document source accessible", "kind", a.config.Sources.Documents.Kind, "found", len(docs))
	}

	if a.templates == nil {
		return
	}
	count, err := a.templates.CountTemplates(ctx)
	if err != nil {
		a.logger.Warn("quiz templates unavailable", "error", err)
		return
	}
	a.logger.Info("quiz templates accessible", "count", count)
}

func (a *app) retrievalConfig() types.RetrievalConfig {
	return types.RetrievalConfig{
		TopK:                a.config.Retrieval.TopK,
		SimilarityThreshold: a.config.Retrieval.SimilarityThreshold,
	}
}

func (a *app) chatConfig() types.ChatConfig {
	return types.ChatConfig{
		Temperature:    a.config.LLM.Temperature,
		TopP:           a.config.LLM.TopP,
		MaxTokens:      a.config.LLM.MaxTokens,
		MaxContextDocs: a.config.Chat.MaxContextDocs,
		IncludeSources: a.config.IncludeSources(),
		ResponseStyle:  a.config.Chat.ResponseStyle,
	}
}

func (a *app) server() *server.Server {
	return server.New(server.Deps{
		Orchestrator:  a.orchestrator,
		Retriever:     a.retriever,
		Indexer:       a.indexer,
		Chunks:        a.chunks,
		Conversations: a.conversations,
		Turns:         a.turns,
	}, server.Config{
		RebuildWait: a.config.Server.RebuildWait,
		Retrieval:   a.retrievalConfig(),
		Chat:        a.chatConfig(),
	}, a.logger)
}
