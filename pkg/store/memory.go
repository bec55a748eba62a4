package store

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/xhad/edurag/internal/models"
)

// MemoryChunkStore is an in-process chunk store used when no database is configured.
type MemoryChunkStore struct {
	mu     sync.RWMutex
	chunks map[string]models.DocumentChunk
	order  []string
}

func NewMemoryChunkStore() *MemoryChunkStore {
	return &MemoryChunkStore{chunks: make(map[string]models.DocumentChunk)}
}

func (m *MemoryChunkStore) Ping(context.Context) error { return nil }

func (m *MemoryChunkStore) InsertChunks(_ context.Context, chunks []models.DocumentChunk) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inserted := 0
	for _, c := range chunks {
		if _, ok := m.chunks[c.ChunkID]; ok {
			continue
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = time.Now()
		}
		c.Tags = slices.Clone(c.Tags)
		m.chunks[c.ChunkID] = c
		m.order = append(m.order, c.ChunkID)
		inserted++
	}
	return inserted, nil
}

func (m *MemoryChunkStore) ChunkExists(_ context.Context, chunkID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.chunks[chunkID]
	return ok, nil
}

func (m *MemoryChunkStore) CountChunks(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks), nil
}

// SearchChunks scans newest first, matching the Postgres ordering.
func (m *MemoryChunkStore) SearchChunks(_ context.Context, words []string, topic string, limit int) ([]models.DocumentChunk, error) {
	if len(words) == 0 || limit <= 0 {
		return nil, nil
	}
	topic = strings.ToLower(topic)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.DocumentChunk
	for i := len(m.order) - 1; i >= 0 && len(out) < limit; i-- {
		c := m.chunks[m.order[i]]
		if topic != "" && !strings.Contains(strings.ToLower(c.Topic), topic) {
			continue
		}
		content := strings.ToLower(c.Content)
		chunkTopic := strings.ToLower(c.Topic)
		for _, w := range words {
			if strings.Contains(content, w) || strings.Contains(chunkTopic, w) {
				out = append(out, c)
				break
			}
		}
	}
	return out, nil
}

func (m *MemoryChunkStore) DeleteDocument(_ context.Context, documentID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	kept := m.order[:0]
	for _, id := range m.order {
		if m.chunks[id].DocumentID == documentID {
			delete(m.chunks, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
	return removed, nil
}

func (m *MemoryChunkStore) ListTopics(context.Context) ([]string, error) {
	return m.distinct(func(c models.DocumentChunk) string { return c.Topic }), nil
}

func (m *MemoryChunkStore) ListCategories(context.Context) ([]string, error) {
	return m.distinct(func(c models.DocumentChunk) string { return c.Category }), nil
}

func (m *MemoryChunkStore) distinct(field func(models.DocumentChunk) string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	var values []string
	for _, c := range m.chunks {
		v := field(c)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		values = append(values, v)
	}
	slices.Sort(values)
	return values
}

// MemoryTurnLog keeps chat turns in process memory.
type MemoryTurnLog struct {
	mu    sync.Mutex
	turns []models.Turn
	next  int64
}

func NewMemoryTurnLog() *MemoryTurnLog {
	return &MemoryTurnLog{}
}

func (l *MemoryTurnLog) LogTurn(_ context.Context, turn models.Turn) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if turn.ConversationID == "" {
		turn.ConversationID = StandaloneConversation
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	l.next++
	turn.ID = l.next
	l.turns = append(l.turns, turn)
	return nil
}

func (l *MemoryTurnLog) History(_ context.Context, conversationID string, limit int) ([]models.Turn, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var turns []models.Turn
	for _, t := range l.turns {
		if t.ConversationID == conversationID {
			turns = append(turns, t)
		}
	}
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return turns, nil
}

func (l *MemoryTurnLog) DeleteConversation(_ context.Context, conversationID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.turns = slices.DeleteFunc(l.turns, func(t models.Turn) bool {
		return t.ConversationID == conversationID
	})
	return nil
}

func (l *MemoryTurnLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.turns)
}
