package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/xhad/edurag/internal/models"
	"github.com/xhad/edurag/pkg/processor"
)

const (
	TemplateKind       = "template"
	maxTemplateContent = 500
)

const quizTemplatesSQL = `
	SELECT COALESCE(subject, ''), COALESCE(topic, ''), COALESCE(questions, ''), COALESCE(created_at, '')
	FROM quiz_templates
	ORDER BY created_at DESC
	LIMIT ?`

// QuizTemplateStore searches quiz templates kept by the quiz generator.
type QuizTemplateStore struct {
	path   string
	logger *slog.Logger
}

func NewQuizTemplateStore(path string, logger *slog.Logger) *QuizTemplateStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuizTemplateStore{path: path, logger: logger}
}

// SearchTemplates scans the 2*limit most recent templates and keeps those whose
// rendered text contains query, compared case-insensitively.
func (q *QuizTemplateStore) SearchTemplates(ctx context.Context, query string, limit int) ([]models.Template, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" || limit <= 0 {
		return nil, nil
	}
	if !q.available() {
		return nil, nil
	}

	db, err := openSQLite(q.path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, quizTemplatesSQL, limit*2)
	if err != nil {
		return nil, fmt.Errorf("failed to query quiz templates: %w", err)
	}
	defer rows.Close()

	var out []models.Template
	for rows.Next() {
		var subject, topic, questions, createdAt string
		if err := rows.Scan(&subject, &topic, &questions, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan quiz template: %w", err)
		}
		if questions == "" {
			continue
		}

		content, err := renderTemplate(subject, topic, questions)
		if err != nil {
			q.logger.Debug("skipping undecodable quiz template", "subject", subject, "error", err)
			continue
		}
		if !strings.Contains(strings.ToLower(content), query) {
			continue
		}

		out = append(out, models.Template{
			Subject:   subject,
			Topic:     topic,
			Kind:      TemplateKind,
			Content:   processor.Truncate(content, maxTemplateContent),
			CreatedAt: parseTime(createdAt),
		})
		if len(out) == limit {
			break
		}
	}

	return out, rows.Err()
}

func (q *QuizTemplateStore) CountTemplates(ctx context.Context) (int, error) {
	if !q.available() {
		return 0, nil
	}

	db, err := openSQLite(q.path)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM quiz_templates").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count quiz templates: %w", err)
	}
	return count, nil
}

func (q *QuizTemplateStore) available() bool {
	if q.path == "" {
		return false
	}
	_, err := os.Stat(q.path)
	return err == nil
}

type quizQuestion struct {
	Question string `json:"question"`
}

func renderTemplate(subject, topic, questionsJSON string) (string, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(questionsJSON), &raw); err != nil {
		return "", err
	}

	lines := make([]string, 0, len(raw))
	for _, r := range raw {
		var q quizQuestion
		if err := json.Unmarshal(r, &q); err != nil {
			continue
		}
		lines = append(lines, q.Question)
	}

	return fmt.Sprintf("Subject: %s, Topic: %s\n", subject, topic) + strings.Join(lines, "\n"), nil
}
