package conversation

import (
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xhad/edurag/internal/models"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrInvalidRole          = errors.New("role must be user or assistant")
)

const DefaultTitle = "New Conversation"

// Manager holds conversations in memory. Messages of one conversation are
// kept in append order.
type Manager struct {
	mu            sync.RWMutex
	conversations map[string]*models.Conversation
	now           func() time.Time
	newID         func() string
}

func NewManager() *Manager {
	return &Manager{
		conversations: make(map[string]*models.Conversation),
		now:           time.Now,
		newID:         uuid.NewString,
	}
}

// Create registers a conversation. An empty id gets a generated one. Creating
// an id that already exists returns the existing conversation and false.
func (m *Manager) Create(id, userID, title string) (models.Conversation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" {
		id = m.newID()
	}
	if existing, ok := m.conversations[id]; ok {
		return summary(existing), false
	}
	if title == "" {
		title = DefaultTitle
	}

	now := m.now()
	conv := &models.Conversation{
		ID:        id,
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.conversations[id] = conv
	return summary(conv), true
}

func (m *Manager) Append(id string, role models.Role, content string) (models.ChatMessage, error) {
	if role != models.RoleUser && role != models.RoleAssistant {
		return models.ChatMessage{}, ErrInvalidRole
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[id]
	if !ok {
		return models.ChatMessage{}, ErrConversationNotFound
	}

	now := m.now()
	if now.Before(conv.UpdatedAt) {
		now = conv.UpdatedAt
	}
	msg := models.ChatMessage{Role: role, Content: content, Timestamp: now}
	conv.Messages = append(conv.Messages, msg)
	conv.MessageCount = len(conv.Messages)
	conv.UpdatedAt = now
	if role == models.RoleUser {
		conv.LastMessage = truncate(content, 100)
	}
	return msg, nil
}

// Get returns a copy of the conversation including its messages.
func (m *Manager) Get(id string) (models.Conversation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conv, ok := m.conversations[id]
	if !ok {
		return models.Conversation{}, false
	}
	out := *conv
	out.Messages = slices.Clone(conv.Messages)
	return out, true
}

// RecentWindow returns the last n messages in chronological order.
func (m *Manager) RecentWindow(id string, n int) ([]models.ChatMessage, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conv, ok := m.conversations[id]
	if !ok {
		return nil, false
	}
	if n <= 0 {
		return []models.ChatMessage{}, true
	}
	msgs := conv.Messages
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	return slices.Clone(msgs), true
}

// List returns conversation summaries, most recently updated first.
func (m *Manager) List(limit int) []models.Conversation {
	m.mu.RLock()
	out := make([]models.Conversation, 0, len(m.conversations))
	for _, conv := range m.conversations {
		out = append(out, summary(conv))
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conversations[id]; !ok {
		return false
	}
	delete(m.conversations, id)
	return true
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conversations)
}

func summary(conv *models.Conversation) models.Conversation {
	out := *conv
	out.Messages = nil
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
