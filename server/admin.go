package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/xhad/edurag/internal/models"
	"github.com/xhad/edurag/pkg/indexer"
	"github.com/xhad/edurag/pkg/source"
	"github.com/xhad/edurag/pkg/store"
)

func indexErrorStatus(err error) int {
	switch {
	case errors.Is(err, indexer.ErrRebuildInProgress):
		return http.StatusConflict
	case errors.Is(err, store.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// handleRebuild starts a rebuild detached from the request and waits up to
// RebuildWait for its report.
func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	results, err := s.deps.Indexer.RebuildAsync(context.WithoutCancel(r.Context()))
	if err != nil {
		writeError(w, indexErrorStatus(err), err.Error())
		return
	}

	timer := time.NewTimer(s.config.RebuildWait)
	defer timer.Stop()

	select {
	case res := <-results:
		if res.Err != nil {
			s.logger.Error("rebuild failed", "error", res.Err)
			writeError(w, indexErrorStatus(res.Err), res.Err.Error())
			return
		}
		writeJSON(w, http.StatusOK, res.Report)
	case <-timer.C:
		writeJSON(w, http.StatusAccepted, map[string]string{
			"status":  "running",
			"message": "rebuild is still running; check /stats for progress",
		})
	case <-r.Context().Done():
	}
}

func (s *Server) handleIndexDocument(w http.ResponseWriter, r *http.Request) {
	var doc models.Document
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	doc, ok := source.NormalizeDocument(doc)
	if !ok {
		writeError(w, http.StatusBadRequest, "document_id is required")
		return
	}

	report, err := s.deps.Indexer.ReindexDocument(r.Context(), doc)
	if err != nil {
		s.logger.Warn("document reindex failed", "document_id", doc.ID, "error", err)
		writeError(w, indexErrorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type statsResponse struct {
	ChunkCount     int  `json:"chunk_count"`
	TemplateCount  int  `json:"template_count"`
	Total          int  `json:"total"`
	Conversations  int  `json:"conversations"`
	RebuildRunning bool `json:"rebuild_running"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Retriever.Stats(r.Context())
	if err != nil {
		s.logger.Error("failed to collect stats", "error", err)
		writeError(w, http.StatusServiceUnavailable, "chunk store unavailable")
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		ChunkCount:     stats.ChunkCount,
		TemplateCount:  stats.TemplateCount,
		Total:          stats.Total,
		Conversations:  s.deps.Conversations.Len(),
		RebuildRunning: s.deps.Indexer.Running(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.deps.Chunks.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("query"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "query cannot be empty")
		return
	}

	cfg := s.config.Retrieval
	cfg.TopicFilter = q.Get("topic")
	cfg.CategoryFilter = q.Get("category")

	if v := q.Get("top_k"); v != "" {
		topK, err := strconv.Atoi(v)
		if err != nil || topK < 0 {
			writeError(w, http.StatusBadRequest, "top_k must be a non-negative integer")
			return
		}
		cfg.TopK = topK
	}
	if v := q.Get("threshold"); v != "" {
		threshold, err := strconv.ParseFloat(v, 64)
		if err != nil || threshold < 0 || threshold > 1 {
			writeError(w, http.StatusBadRequest, "threshold must be between 0 and 1")
			return
		}
		cfg.SimilarityThreshold = threshold
	}

	docs, err := s.deps.Retriever.Retrieve(r.Context(), query, cfg)
	if err != nil {
		s.logger.Error("document search failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "document search unavailable")
		return
	}
	if docs == nil {
		docs = []models.RetrievedDocument{}
	}
	writeJSON(w, http.StatusOK, docs)
}

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	s.listMetadata(w, r, "topics", s.deps.Chunks.ListTopics)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	s.listMetadata(w, r, "categories", s.deps.Chunks.ListCategories)
}

func (s *Server) listMetadata(w http.ResponseWriter, r *http.Request, key string, list func(context.Context) ([]string, error)) {
	values, err := list(r.Context())
	if err != nil {
		s.logger.Error("failed to list metadata", "kind", key, "error", err)
		writeError(w, http.StatusServiceUnavailable, "chunk store unavailable")
		return
	}
	if values == nil {
		values = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{key: values})
}
