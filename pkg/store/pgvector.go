package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
	"github.com/xhad/edurag/internal/models"
)

type ChunkStoreConfig struct {
	VectorDim int
}

// PostgresChunkStore keeps document chunks in the document_chunks table.
// The embedding column is reserved for vector search and stays NULL until
// chunks carry embeddings.
type PostgresChunkStore struct {
	config ChunkStoreConfig
	db     DB
	logger *slog.Logger
}

func NewPostgresChunkStore(db DB, config ChunkStoreConfig, logger *slog.Logger) *PostgresChunkStore {
	if config.VectorDim == 0 {
		config.VectorDim = 768
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresChunkStore{config: config, db: db, logger: logger}
}

func (s *PostgresChunkStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS document_chunks (
			chunk_id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			content TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			topic TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT 'document',
			tags TEXT[] NOT NULL DEFAULT '{}',
			embedding vector(%d),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.config.VectorDim)
	if _, err := s.db.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create document_chunks table: %w", err)
	}

	if _, err := s.db.Exec(ctx,
		"CREATE INDEX IF NOT EXISTS document_chunks_document_id_idx ON document_chunks (document_id)"); err != nil {
		return fmt.Errorf("failed to create document_chunks index: %w", err)
	}

	return nil
}

func (s *PostgresChunkStore) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

const insertChunkSQL = `
	INSERT INTO document_chunks (chunk_id, document_id, content, chunk_index, topic, category, tags, embedding, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (chunk_id) DO NOTHING`

// InsertChunks writes the batch in one transaction and returns how many rows
// were new. Chunks whose id already exists are left untouched.
func (s *PostgresChunkStore) InsertChunks(ctx context.Context, chunks []models.DocumentChunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for _, c := range chunks {
		var embedding any
		if len(c.Embedding) > 0 {
			embedding = pgvector.NewVector(c.Embedding)
		}
		tags := c.Tags
		if tags == nil {
			tags = []string{}
		}

		tag, err := tx.Exec(ctx, insertChunkSQL,
			c.ChunkID,
			c.DocumentID,
			sanitizeUTF8(c.Content),
			c.ChunkIndex,
			sanitizeUTF8(c.Topic),
			c.Category,
			tags,
			embedding,
			c.CreatedAt,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert chunk %s: %w", c.ChunkID, err)
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Debug("inserted chunks", "batch", len(chunks), "inserted", inserted)
	return inserted, nil
}

func (s *PostgresChunkStore) ChunkExists(ctx context.Context, chunkID string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM document_chunks WHERE chunk_id = $1)", chunkID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check chunk %s: %w", chunkID, err)
	}
	return exists, nil
}

func (s *PostgresChunkStore) CountChunks(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM document_chunks").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

const searchChunksSQL = `
	SELECT chunk_id, document_id, content, chunk_index, topic, category, tags, created_at
	FROM document_chunks
	WHERE (content ILIKE ANY($1) OR topic ILIKE ANY($1))
	  AND ($2 = '' OR topic ILIKE $3)
	ORDER BY created_at DESC, chunk_index
	LIMIT $4`

// SearchChunks returns chunks whose content or topic contains any of words.
func (s *PostgresChunkStore) SearchChunks(ctx context.Context, words []string, topic string, limit int) ([]models.DocumentChunk, error) {
	if len(words) == 0 || limit <= 0 {
		return nil, nil
	}

	patterns := make([]string, 0, len(words))
	for _, w := range words {
		patterns = append(patterns, likePattern(w))
	}

	rows, err := s.db.Query(ctx, searchChunksSQL, patterns, topic, likePattern(topic), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.DocumentChunk
	for rows.Next() {
		var c models.DocumentChunk
		if err := rows.Scan(
			&c.ChunkID,
			&c.DocumentID,
			&c.Content,
			&c.ChunkIndex,
			&c.Topic,
			&c.Category,
			&c.Tags,
			&c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, c)
	}

	return chunks, rows.Err()
}

func (s *PostgresChunkStore) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	tag, err := s.db.Exec(ctx, "DELETE FROM document_chunks WHERE document_id = $1", documentID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks of %s: %w", documentID, err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresChunkStore) ListTopics(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, "SELECT DISTINCT topic FROM document_chunks ORDER BY topic")
}

func (s *PostgresChunkStore) ListCategories(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, "SELECT DISTINCT category FROM document_chunks ORDER BY category")
}

func (s *PostgresChunkStore) distinct(ctx context.Context, query string) ([]string, error) {
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list values: %w", err)
	}
	values, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan values: %w", err)
	}
	return values, nil
}
