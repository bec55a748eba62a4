package models

import "time"

// Document is a source document as handed over by a document source.
type Document struct {
	ID            string    `json:"document_id"`
	FileName      string    `json:"file_name"`
	ExtractedText string    `json:"extracted_text"`
	Summary       string    `json:"summary"`
	CreatedAt     time.Time `json:"created_at"`
}

// DocumentChunk is the unit of retrieval persisted by the chunk store.
type DocumentChunk struct {
	ChunkID    string    `json:"chunk_id"`
	DocumentID string    `json:"document_id"`
	Content    string    `json:"content"`
	ChunkIndex int       `json:"chunk_index"`
	Topic      string    `json:"topic"`
	Category   string    `json:"category"`
	Tags       []string  `json:"tags"`
	Embedding  []float32 `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// RetrievedDocument is a ranked retrieval candidate.
type RetrievedDocument struct {
	DocumentID      string   `json:"document_id"`
	ChunkID         string   `json:"chunk_id"`
	Content         string   `json:"content"`
	Topic           string   `json:"topic"`
	Category        string   `json:"category"`
	Tags            []string `json:"tags,omitempty"`
	SimilarityScore float64  `json:"similarity_score"`
}

// Template is a quiz template projected to searchable text.
type Template struct {
	Subject   string    `json:"subject"`
	Topic     string    `json:"topic"`
	Kind      string    `json:"kind"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
