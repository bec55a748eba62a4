package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	_ "modernc.org/sqlite"

	"github.com/xhad/edurag/internal/models"
)

const gatewayDocumentsSQL = `
	SELECT CAST(id AS TEXT), COALESCE(file_name, ''), COALESCE(extracted_text, ''), COALESCE(summary, ''), COALESCE(created_at, '')
	FROM documents
	ORDER BY datetime(created_at) DESC
	LIMIT ?`

// GatewaySource reads uploaded documents from the gateway's SQLite database.
type GatewaySource struct {
	path   string
	logger *slog.Logger
}

func NewGatewaySource(path string, logger *slog.Logger) *GatewaySource {
	if logger == nil {
		logger = slog.Default()
	}
	return &GatewaySource{path: path, logger: logger}
}

// ListRecentDocuments returns up to limit documents, newest first. A missing
// database file yields an empty list.
func (g *GatewaySource) ListRecentDocuments(ctx context.Context, limit int) ([]models.Document, error) {
	if _, err := os.Stat(g.path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			g.logger.Debug("gateway database not found", "path", g.path)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to stat gateway database: %w", err)
	}

	db, err := openSQLite(g.path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, gatewayDocumentsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query gateway documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var (
			d         models.Document
			createdAt string
		)
		if err := rows.Scan(&d.ID, &d.FileName, &d.ExtractedText, &d.Summary, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan gateway document: %w", err)
		}
		d.CreatedAt = parseTime(createdAt)

		normalized, ok := NormalizeDocument(d)
		if !ok {
			g.logger.Warn("skipping gateway document without id")
			continue
		}
		docs = append(docs, normalized)
	}

	return docs, rows.Err()
}

func openSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}
