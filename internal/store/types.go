package store

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound indicates the referenced document does not exist.
var ErrNotFound = errors.New("document not found")

// Document is a stored knowledge document. ID and CreatedAt are assigned by
// the database; the embedding is write-only and never read back.
type Document struct {
	ID        uuid.UUID
	Content   string
	Metadata  map[string]any
	CreatedAt time.Time
}

// MatchResult is a document row ranked by the database-side similarity
// function. Similarity is cosine similarity in [0, 1], strictly above the
// requested threshold.
type MatchResult struct {
	ID         uuid.UUID
	Content    string
	Metadata   map[string]any
	CreatedAt  time.Time
	Similarity float64
}

// InsertParams carries one document for Insert or InsertBatch.
type InsertParams struct {
	Content   string
	Embedding []float32
	Metadata  map[string]any
}
