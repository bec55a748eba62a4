package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/xhad/edurag/internal/models"
	"github.com/xhad/edurag/internal/types"
)

const QuizCategory = "quiz"

type Config struct {
	ChunkBaseScore    float64
	TemplateBaseScore float64
	MatchBoost        float64
	MaxScore          float64
}

func DefaultConfig() Config {
	return Config{
		ChunkBaseScore:    0.5,
		TemplateBaseScore: 0.4,
		MatchBoost:        0.1,
		MaxScore:          0.9,
	}
}

// KeywordRetriever ranks stored chunks and quiz templates by query word overlap.
type KeywordRetriever struct {
	config    Config
	chunks    types.ChunkStore
	templates types.TemplateStore
	logger    *slog.Logger
}

// New builds a retriever. templates may be nil.
func New(chunks types.ChunkStore, templates types.TemplateStore, config Config, logger *slog.Logger) *KeywordRetriever {
	if config == (Config{}) {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &KeywordRetriever{config: config, chunks: chunks, templates: templates, logger: logger}
}

// Tokenize lowercases the query and splits it on whitespace, dropping repeats.
func Tokenize(query string) []string {
	seen := make(map[string]bool)
	var words []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if seen[w] {
			continue
		}
		seen[w] = true
		words = append(words, w)
	}
	return words
}

// Retrieve returns at most cfg.TopK candidates in non-increasing score order.
// A chunk store failure is returned; a template store failure only loses the
// template candidates.
func (r *KeywordRetriever) Retrieve(ctx context.Context, query string, cfg types.RetrievalConfig) ([]models.RetrievedDocument, error) {
	if cfg.TopK <= 0 {
		return []models.RetrievedDocument{}, nil
	}
	words := Tokenize(query)
	if len(words) == 0 {
		return []models.RetrievedDocument{}, nil
	}

	perSource := (cfg.TopK + 1) / 2

	chunks, err := r.chunks.SearchChunks(ctx, words, cfg.TopicFilter, perSource)
	if err != nil {
		return nil, fmt.Errorf("chunk search failed: %w", err)
	}

	seen := make(map[string]bool, len(chunks))
	results := make([]models.RetrievedDocument, 0, len(chunks)+perSource)
	for _, c := range chunks {
		if seen[c.ChunkID] {
			continue
		}
		seen[c.ChunkID] = true
		results = append(results, models.RetrievedDocument{
			DocumentID:      c.DocumentID,
			ChunkID:         c.ChunkID,
			Content:         c.Content,
			Topic:           c.Topic,
			Category:        c.Category,
			Tags:            c.Tags,
			SimilarityScore: r.score(r.config.ChunkBaseScore, c.Content, words),
		})
	}

	results = append(results, r.searchTemplates(ctx, query, words, cfg.TopicFilter, perSource)...)

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].SimilarityScore > results[j].SimilarityScore
	})

	filtered := results[:0]
	for _, doc := range results {
		if doc.SimilarityScore < cfg.SimilarityThreshold {
			continue
		}
		if cfg.CategoryFilter != "" && !strings.EqualFold(doc.Category, cfg.CategoryFilter) {
			continue
		}
		filtered = append(filtered, doc)
	}

	if len(filtered) > cfg.TopK {
		filtered = filtered[:cfg.TopK]
	}
	return filtered, nil
}

func (r *KeywordRetriever) searchTemplates(ctx context.Context, query string, words []string, topic string, limit int) []models.RetrievedDocument {
	if r.templates == nil {
		return nil
	}

	templates, err := r.templates.SearchTemplates(ctx, query, limit)
	if err != nil {
		r.logger.Warn("template search failed", "error", err)
		return nil
	}

	topic = strings.ToLower(topic)
	var out []models.RetrievedDocument
	for _, t := range templates {
		if topic != "" && !strings.Contains(strings.ToLower(t.Topic), topic) && !strings.Contains(strings.ToLower(t.Subject), topic) {
			continue
		}
		subject := t.Subject
		if subject == "" {
			subject = "Quiz Content"
		}
		kind := t.Kind
		if kind == "" {
			kind = "template"
		}
		out = append(out, models.RetrievedDocument{
			DocumentID:      "quiz_" + kind,
			ChunkID:         fmt.Sprintf("quiz_%d", len(out)),
			Content:         t.Content,
			Topic:           subject,
			Category:        QuizCategory,
			SimilarityScore: r.score(r.config.TemplateBaseScore, t.Content, words),
		})
	}
	return out
}

// score boosts base once per query word that appears as a whole word in content.
func (r *KeywordRetriever) score(base float64, content string, words []string) float64 {
	contentWords := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(content)) {
		contentWords[w] = struct{}{}
	}

	matches := 0
	for _, w := range words {
		if _, ok := contentWords[w]; ok {
			matches++
		}
	}

	score := base + float64(matches)*r.config.MatchBoost
	if score > r.config.MaxScore {
		score = r.config.MaxScore
	}
	return score
}

type Stats struct {
	ChunkCount    int `json:"chunk_count"`
	TemplateCount int `json:"template_count"`
	Total         int `json:"total"`
}

func (r *KeywordRetriever) Stats(ctx context.Context) (Stats, error) {
	chunkCount, err := r.chunks.CountChunks(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count chunks: %w", err)
	}

	var templateCount int
	if r.templates != nil {
		templateCount, err = r.templates.CountTemplates(ctx)
		if err != nil {
			r.logger.Warn("failed to count templates", "error", err)
			templateCount = 0
		}
	}

	return Stats{
		ChunkCount:    chunkCount,
		TemplateCount: templateCount,
		Total:         chunkCount + templateCount,
	}, nil
}
