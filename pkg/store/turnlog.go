package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/xhad/edurag/internal/models"
)

// StandaloneConversation is the conversation key for turns outside any conversation.
const StandaloneConversation = "standalone"

// PostgresTurnLog is the durable flat log of chat turns plus the
// conversations summary table.
type PostgresTurnLog struct {
	db     DB
	logger *slog.Logger
}

func NewPostgresTurnLog(db DB, logger *slog.Logger) *PostgresTurnLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTurnLog{db: db, logger: logger}
}

func (l *PostgresTurnLog) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			user_id TEXT,
			title TEXT NOT NULL,
			message_count INTEGER NOT NULL DEFAULT 0,
			last_message TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
			id BIGSERIAL PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			user_query TEXT NOT NULL,
			assistant_response TEXT NOT NULL,
			context_sources JSONB NOT NULL DEFAULT '[]',
			processing_time DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS chat_messages_conversation_idx ON chat_messages (conversation_id, created_at)`,
	}
	for _, stmt := range statements {
		if _, err := l.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create conversation log schema: %w", err)
		}
	}
	return nil
}

const (
	insertTurnSQL = `
		INSERT INTO chat_messages (conversation_id, user_query, assistant_response, context_sources, processing_time, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	upsertConversationSQL = `
		INSERT INTO conversations (id, user_id, title, message_count, last_message, created_at, updated_at)
		VALUES ($1, $2, $3, 1, $4, $5, $5)
		ON CONFLICT (id) DO UPDATE SET
			message_count = conversations.message_count + 1,
			last_message = EXCLUDED.last_message,
			updated_at = EXCLUDED.updated_at`
)

// LogTurn appends one exchange. Turns of a named conversation also bump the
// conversation's message count and last message.
func (l *PostgresTurnLog) LogTurn(ctx context.Context, turn models.Turn) error {
	if turn.ConversationID == "" {
		turn.ConversationID = StandaloneConversation
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	if turn.Sources == nil {
		turn.Sources = []models.Source{}
	}

	sources, err := json.Marshal(turn.Sources)
	if err != nil {
		return fmt.Errorf("failed to encode sources: %w", err)
	}

	tx, err := l.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, insertTurnSQL,
		turn.ConversationID,
		sanitizeUTF8(turn.Query),
		sanitizeUTF8(turn.Answer),
		string(sources),
		turn.ProcessingTime,
		turn.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert turn: %w", err)
	}

	if turn.ConversationID != StandaloneConversation {
		title := truncateRunes(turn.Query, 50)
		if _, err := tx.Exec(ctx, upsertConversationSQL,
			turn.ConversationID,
			turn.UserID,
			sanitizeUTF8(title),
			sanitizeUTF8(truncateRunes(turn.Query, 100)),
			turn.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to update conversation %s: %w", turn.ConversationID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const historySQL = `
	SELECT id, conversation_id, user_query, assistant_response, context_sources, processing_time, created_at
	FROM (
		SELECT * FROM chat_messages WHERE conversation_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2
	) recent
	ORDER BY created_at, id`

// History returns up to limit most recent turns of a conversation, oldest first.
func (l *PostgresTurnLog) History(ctx context.Context, conversationID string, limit int) ([]models.Turn, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := l.db.Query(ctx, historySQL, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var turns []models.Turn
	for rows.Next() {
		var (
			t       models.Turn
			sources []byte
		)
		if err := rows.Scan(&t.ID, &t.ConversationID, &t.Query, &t.Answer, &sources, &t.ProcessingTime, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		if len(sources) > 0 {
			if err := json.Unmarshal(sources, &t.Sources); err != nil {
				l.logger.Warn("undecodable context sources", "turn", t.ID, "error", err)
			}
		}
		turns = append(turns, t)
	}

	return turns, rows.Err()
}

func (l *PostgresTurnLog) DeleteConversation(ctx context.Context, conversationID string) error {
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM chat_messages WHERE conversation_id = $1", conversationID); err != nil {
		return fmt.Errorf("failed to delete messages of %s: %w", conversationID, err)
	}
	if _, err := tx.Exec(ctx, "DELETE FROM conversations WHERE id = $1", conversationID); err != nil {
		return fmt.Errorf("failed to delete conversation %s: %w", conversationID, err)
	}

	return tx.Commit(ctx)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
