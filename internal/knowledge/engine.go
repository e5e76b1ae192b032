// Package knowledge owns ingestion and retrieval of knowledge documents.
//
// The Engine composes two collaborators behind consumer-side interfaces:
// an Embedder that turns text into vectors and a Querier over the document
// store. Similarity ranking happens inside the store; the Engine only
// applies defaults, validates input, and post-filters hybrid results.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lumenlabs/lumen/internal/store"
)

// Retrieval defaults. Search and HybridSearch deliberately differ: hybrid
// casts a wider net because the metadata post-filter only ever narrows.
const (
	DefaultSearchThreshold = 0.7
	DefaultSearchLimit     = 5
	DefaultHybridThreshold = 0.6
	DefaultHybridLimit     = 10
)

// embedConcurrency caps parallel embedding calls during bulk ingestion.
const embedConcurrency = 8

var (
	// ErrEmptyContent indicates empty document content or an empty query.
	// Surfaced before any embedding or store call.
	ErrEmptyContent = errors.New("empty content")

	// ErrEmbedding indicates the embedding step failed.
	ErrEmbedding = errors.New("embedding failed")

	// ErrStore indicates the document store operation failed.
	ErrStore = errors.New("store operation failed")
)

// Embedder turns text into a fixed-length embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Querier defines the document store operations the Engine depends on.
// Interfaces are defined by the consumer; *store.Client satisfies this.
type Querier interface {
	Insert(ctx context.Context, p store.InsertParams) (store.Document, error)
	InsertBatch(ctx context.Context, params []store.InsertParams) ([]store.Document, error)
	Match(ctx context.Context, embedding []float32, threshold float64, limit int) ([]store.MatchResult, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit int) ([]store.Document, error)
	Count(ctx context.Context) (int64, error)
}

// Engine is the vector search core.
//
// Engine is safe for concurrent use by multiple goroutines.
type Engine struct {
	querier  Querier
	embedder Embedder
	logger   *slog.Logger
}

// New creates a knowledge Engine.
func New(querier Querier, embedder Embedder, logger *slog.Logger) (*Engine, error) {
	if querier == nil {
		return nil, fmt.Errorf("querier is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{querier: querier, embedder: embedder, logger: logger}, nil
}

// Add ingests one document: embed the content, persist it, and return the
// stored document with its server-assigned id and timestamp.
func (e *Engine) Add(ctx context.Context, content string, metadata map[string]any) (Document, error) {
	if content == "" {
		return Document{}, fmt.Errorf("%w: document content is required", ErrEmptyContent)
	}

	vec, err := e.embedder.Embed(ctx, content)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}

	doc, err := e.querier.Insert(ctx, store.InsertParams{
		Content:   content,
		Embedding: vec,
		Metadata:  metadata,
	})
	if err != nil {
		return Document{}, fmt.Errorf("%w: %w", ErrStore, err)
	}

	e.logger.Debug("document ingested", "id", doc.ID, "content_length", len(content))
	return toDocument(doc), nil
}

// AddBatch ingests items as a unit. Embeddings are generated concurrently
// and collected positionally, so persisted order always matches input
// order regardless of which embed finishes first. The insert is a single
// transaction: either every item is stored or none is.
func (e *Engine) AddBatch(ctx context.Context, items []Item) ([]Document, error) {
	if len(items) == 0 {
		return []Document{}, nil
	}
	for i, item := range items {
		if item.Content == "" {
			return nil, fmt.Errorf("%w: item %d has empty content", ErrEmptyContent, i)
		}
	}

	vecs := make([][]float32, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)
	for i, item := range items {
		g.Go(func() error {
			vec, err := e.embedder.Embed(gctx, item.Content)
			if err != nil {
				return fmt.Errorf("%w: item %d: %w", ErrEmbedding, i, err)
			}
			vecs[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	params := make([]store.InsertParams, len(items))
	for i, item := range items {
		params[i] = store.InsertParams{
			Content:   item.Content,
			Embedding: vecs[i],
			Metadata:  item.Metadata,
		}
	}

	docs, err := e.querier.InsertBatch(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}

	out := make([]Document, len(docs))
	for i, d := range docs {
		out[i] = toDocument(d)
	}
	e.logger.Debug("batch ingested", "count", len(out))
	return out, nil
}

// Search embeds the query and returns documents ranked by descending
// cosine similarity, strictly above the threshold, capped at the limit.
// An empty result is a valid outcome, not an error.
//
// Defaults: threshold 0.7, limit 5. Override with WithThreshold,
// WithLimit, WithTimeout.
func (e *Engine) Search(ctx context.Context, query string, opts ...SearchOption) ([]SearchResult, error) {
	return e.search(ctx, query, DefaultSearchThreshold, DefaultSearchLimit, opts)
}

// HybridSearch is Search with a metadata constraint: a wider candidate
// search (defaults: threshold 0.6, limit 10) followed by a client-side
// exact-match post-filter. Every filter key must be present in a result's
// metadata with a deeply equal value. The candidate set is never
// backfilled after filtering, so fewer than limit results is common.
func (e *Engine) HybridSearch(ctx context.Context, query string, filter map[string]any, opts ...SearchOption) ([]SearchResult, error) {
	results, err := e.search(ctx, query, DefaultHybridThreshold, DefaultHybridLimit, opts)
	if err != nil {
		return nil, err
	}
	if len(filter) == 0 {
		return results, nil
	}

	filtered := make([]SearchResult, 0, len(results))
	for _, r := range results {
		if metadataMatches(r.Metadata, filter) {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

func (e *Engine) search(ctx context.Context, query string, threshold float64, limit int, opts []SearchOption) ([]SearchResult, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: search query is required", ErrEmptyContent)
	}

	cfg, err := buildSearchConfig(threshold, limit, opts)
	if err != nil {
		return nil, err
	}

	if cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}

	matches, err := e.querier.Match(ctx, vec, cfg.threshold, cfg.limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}

	results := make([]SearchResult, len(matches))
	for i, m := range matches {
		results[i] = SearchResult{
			ID:         m.ID,
			Content:    m.Content,
			Metadata:   m.Metadata,
			Similarity: m.Similarity,
		}
	}
	return results, nil
}

// Delete removes a document. Deleting an unknown id succeeds: the
// outcome, absence, is the same either way.
func (e *Engine) Delete(ctx context.Context, id uuid.UUID) error {
	err := e.querier.Delete(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStore, err)
	}
	return nil
}

// List returns stored documents, newest first.
func (e *Engine) List(ctx context.Context, limit int) ([]Document, error) {
	docs, err := e.querier.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}
	out := make([]Document, len(docs))
	for i, d := range docs {
		out[i] = toDocument(d)
	}
	return out, nil
}

// Count returns the total number of stored documents.
func (e *Engine) Count(ctx context.Context) (int64, error) {
	n, err := e.querier.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStore, err)
	}
	return n, nil
}

// metadataMatches reports whether metadata contains every filter key with
// a deeply equal value.
func metadataMatches(metadata, filter map[string]any) bool {
	for k, want := range filter {
		got, ok := metadata[k]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

func toDocument(d store.Document) Document {
	return Document{
		ID:        d.ID,
		Content:   d.Content,
		Metadata:  d.Metadata,
		CreatedAt: d.CreatedAt,
	}
}
