package models

import "time"

// Document is an ingested source file or exported page.
type Document struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Title     string    `json:"title"`
	Source    string    `json:"source"`
	PageCount int       `json:"page_count"`
	CreatedAt time.Time `json:"created_at"`
}

// DocumentChunk records one stored chunk. The chunk ID is the content hash,
// matching the vector store entry ID.
type DocumentChunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Page       int       `json:"page"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
}

// ProcessedDocument marks a filename as already ingested, so re-ingestion of
// a directory skips files it has seen.
type ProcessedDocument struct {
	Filename    string    `json:"filename"`
	ProcessedAt time.Time `json:"processed_at"`
}

// QueryRecord is one answered question.
type QueryRecord struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Query     string    `json:"query"`
	Answer    string    `json:"answer"`
	LatencyMS int64     `json:"latency_ms"`
	CreatedAt time.Time `json:"created_at"`
}

// QuerySource links a query to one retrieved chunk and its score.
type QuerySource struct {
	QueryID string  `json:"query_id"`
	ChunkID string  `json:"chunk_id"`
	Source  string  `json:"source"`
	Score   float32 `json:"score"`
}

// Feedback is the user's verdict on an answer.
type Feedback struct {
	ID        string    `json:"id"`
	QueryID   string    `json:"query_id"`
	Helpful   bool      `json:"helpful"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}
