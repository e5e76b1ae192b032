package knowledge

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Document is a persisted knowledge document as seen by callers.
// ID and CreatedAt are assigned by the store; embeddings never surface here.
type Document struct {
	ID        uuid.UUID
	Content   string
	Metadata  map[string]any
	CreatedAt time.Time
}

// Item is one document to ingest: content plus optional metadata.
type Item struct {
	Content  string
	Metadata map[string]any
}

// SearchResult is a ranked retrieval hit. It is a projection, never
// persisted. Similarity is cosine similarity in [0, 1].
type SearchResult struct {
	ID         uuid.UUID
	Content    string
	Metadata   map[string]any
	Similarity float64
}

// SearchOption configures search behavior using the functional options
// pattern.
type SearchOption func(*searchConfig)

// searchConfig holds internal search configuration.
type searchConfig struct {
	threshold float64
	limit     int
	timeout   time.Duration
}

// WithThreshold overrides the minimum similarity. Only results strictly
// above the threshold are returned.
func WithThreshold(threshold float64) SearchOption {
	return func(c *searchConfig) {
		c.threshold = threshold
	}
}

// WithLimit overrides the maximum number of results.
func WithLimit(limit int) SearchOption {
	return func(c *searchConfig) {
		c.limit = limit
	}
}

// WithTimeout bounds the whole search call, embedding included.
func WithTimeout(timeout time.Duration) SearchOption {
	return func(c *searchConfig) {
		c.timeout = timeout
	}
}

// buildSearchConfig applies options over per-operation defaults and
// validates the result.
func buildSearchConfig(threshold float64, limit int, opts []SearchOption) (searchConfig, error) {
	cfg := searchConfig{threshold: threshold, limit: limit}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.threshold < 0 || cfg.threshold > 1 {
		return searchConfig{}, fmt.Errorf("threshold must be in [0,1], got %.2f", cfg.threshold)
	}
	if cfg.limit <= 0 {
		return searchConfig{}, fmt.Errorf("limit must be positive, got %d", cfg.limit)
	}
	return cfg, nil
}
