package server

import (
	"bufio"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/xhad/edurag/internal/types"
	"github.com/xhad/edurag/pkg/chat"
	"github.com/xhad/edurag/pkg/conversation"
	"github.com/xhad/edurag/pkg/indexer"
	"github.com/xhad/edurag/pkg/retriever"
)

type Config struct {
	RebuildWait time.Duration
	Retrieval   types.RetrievalConfig
	Chat        types.ChatConfig
}

// Deps are the components the HTTP API is served from. Turns may be nil.
type Deps struct {
	Orchestrator  *chat.Orchestrator
	Retriever     *retriever.KeywordRetriever
	Indexer       *indexer.Indexer
	Chunks        types.ChunkStore
	Conversations *conversation.Manager
	Turns         types.TurnLog
}

type Server struct {
	config Config
	deps   Deps
	logger *slog.Logger
	mux    *http.ServeMux
}

func New(deps Deps, config Config, logger *slog.Logger) *Server {
	if config.RebuildWait <= 0 {
		config.RebuildWait = 60 * time.Second
	}
	if config.Retrieval.TopK <= 0 {
		config.Retrieval.TopK = types.DefaultRetrievalConfig().TopK
	}
	config.Chat = chatDefaults(config.Chat)
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config: config,
		deps:   deps,
		logger: logger,
		mux:    http.NewServeMux(),
	}
	s.routes()
	return s
}

// chatDefaults fills zero fields of c. Temperature and IncludeSources keep
// their zero values unless c is entirely unset.
func chatDefaults(c types.ChatConfig) types.ChatConfig {
	def := types.DefaultChatConfig()
	if c == (types.ChatConfig{}) {
		return def
	}
	if c.TopP <= 0 {
		c.TopP = def.TopP
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = def.MaxTokens
	}
	if c.MaxContextDocs <= 0 {
		c.MaxContextDocs = def.MaxContextDocs
	}
	return c
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /chat", s.handleChat)
	s.mux.HandleFunc("POST /chat/quick", s.handleQuickChat)

	s.mux.HandleFunc("GET /conversations", s.handleListConversations)
	s.mux.HandleFunc("GET /conversations/{id}", s.handleGetConversation)
	s.mux.HandleFunc("DELETE /conversations/{id}", s.handleDeleteConversation)
	s.mux.HandleFunc("GET /conversations/{id}/history", s.handleConversationHistory)
	s.mux.HandleFunc("POST /conversations/{id}/chat", s.handleConversationChat)

	s.mux.HandleFunc("GET /search/documents", s.handleSearch)
	s.mux.HandleFunc("GET /metadata/topics", s.handleTopics)
	s.mux.HandleFunc("GET /metadata/categories", s.handleCategories)

	s.mux.HandleFunc("POST /rebuild-index", s.handleRebuild)
	s.mux.HandleFunc("POST /admin/rebuild-index", s.handleRebuild)
	s.mux.HandleFunc("POST /index/documents", s.handleIndexDocument)
	s.mux.HandleFunc("GET /stats", s.handleStats)
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
}

// Handler returns the API with access logging applied.
func (s *Server) Handler() http.Handler {
	return s.accessLog(s.mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack lets the websocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
