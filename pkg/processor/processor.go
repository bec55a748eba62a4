package processor

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	DefaultChunkSize     = 500
	DefaultChunkOverlap  = 50
	DefaultMaxChunks     = 200
	DefaultMinTextLength = 10
)

var sentenceEnd = regexp.MustCompile(`[.!?]\s+`)

type ProcessorConfig struct {
	ChunkSize     int
	ChunkOverlap  int
	MaxChunks     int
	MinTextLength int
}

type Processor struct {
	config ProcessorConfig
}

func NewWithConfig(config ProcessorConfig) Processor {
	if config.ChunkSize <= 0 {
		config.ChunkSize = DefaultChunkSize
	}
	if config.ChunkOverlap < 0 {
		config.ChunkOverlap = 0
	}
	if config.ChunkOverlap >= config.ChunkSize {
		config.ChunkOverlap = config.ChunkSize / 10
	}
	if config.MaxChunks <= 0 {
		config.MaxChunks = DefaultMaxChunks
	}
	if config.MinTextLength <= 0 {
		config.MinTextLength = DefaultMinTextLength
	}

	return Processor{
		config: config,
	}
}

func New() Processor {
	return NewWithConfig(ProcessorConfig{ChunkOverlap: DefaultChunkOverlap})
}

func (p Processor) Config() ProcessorConfig {
	return p.config
}

// Split cuts text into sentence-aligned chunks using the processor's settings.
func (p Processor) Split(text string) []string {
	if len(strings.TrimSpace(text)) < p.config.MinTextLength {
		return nil
	}
	return SplitText(text, p.config.ChunkSize, p.config.ChunkOverlap, p.config.MaxChunks)
}

// SplitText greedily packs whole sentences into chunks of at most size
// characters. Each new chunk is seeded with the trailing overlap characters of
// the previous one. A single sentence longer than size becomes its own chunk.
func SplitText(text string, size, overlap, maxChunks int) []string {
	if len(strings.TrimSpace(text)) < DefaultMinTextLength {
		return nil
	}

	var chunks []string
	current := ""

	for _, sentence := range splitIntoSentences(text) {
		if maxChunks > 0 && len(chunks) >= maxChunks {
			break
		}

		if current != "" && len(current)+len(sentence) > size {
			chunks = append(chunks, strings.TrimSpace(current))
			current = tail(current, overlap)
		}

		if current == "" {
			current = sentence
		} else {
			current += " " + sentence
		}
	}

	if strings.TrimSpace(current) != "" && (maxChunks <= 0 || len(chunks) < maxChunks) {
		chunks = append(chunks, strings.TrimSpace(current))
	}

	return chunks
}

func splitIntoSentences(text string) []string {
	var sentences []string

	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		// keep the terminal punctuation, drop the whitespace run
		sentences = append(sentences, text[start:loc[0]+1])
		start = loc[1]
	}
	if start < len(text) {
		sentences = append(sentences, text[start:])
	}

	return sentences
}

// tail returns the last n bytes of s, moved forward to a rune boundary.
func tail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	i := len(s) - n
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return s[i:]
}

// ChooseContent picks the indexable body of a document: the extracted text
// unless the summary is strictly longer.
func ChooseContent(extracted, summary string) string {
	extracted = strings.TrimSpace(extracted)
	summary = strings.TrimSpace(summary)
	if len(extracted) >= len(summary) {
		return extracted
	}
	return summary
}

// ChunkID is stable for a given document and chunk position.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("doc_%s_%d", documentID, index)
}

// Truncate cuts s to at most n bytes without splitting a rune.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
