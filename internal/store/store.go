// Package store is the document store client over PostgreSQL + pgvector.
//
// The client is stateless: every operation is a network round trip and the
// database is the single source of truth. Similarity ranking runs inside
// the database via the match_documents SQL function; the client never
// re-ranks locally.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// DefaultTimeout bounds a single store round trip.
const DefaultTimeout = 5 * time.Second

// defaultQueryLimit caps result sets when the caller does not specify one.
const defaultQueryLimit = 100

// docCols is the standard SELECT column list for scanDocuments.
const docCols = `id, content, metadata, created_at`

// Client executes document operations against the database.
//
// Client is safe for concurrent use by multiple goroutines.
type Client struct {
	pool    *pgxpool.Pool
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a store Client. A non-positive timeout falls back to
// DefaultTimeout.
func New(pool *pgxpool.Pool, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{pool: pool, timeout: timeout, logger: logger}, nil
}

// Insert persists one document and returns it with the server-assigned
// id and creation timestamp.
func (c *Client) Insert(ctx context.Context, p InsertParams) (Document, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	doc, err := insertOne(ctx, c.pool, p)
	if err != nil {
		return Document{}, fmt.Errorf("inserting document: %w", err)
	}
	return doc, nil
}

// InsertBatch persists all documents in one transaction. Either every
// document is stored or none is; result order matches input order.
func (c *Client) InsertBatch(ctx context.Context, params []InsertParams) ([]Document, error) {
	if len(params) == 0 {
		return []Document{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning batch transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			c.logger.Debug("batch rollback", "error", rbErr)
		}
	}()

	docs := make([]Document, 0, len(params))
	for i, p := range params {
		doc, err := insertOne(ctx, tx, p)
		if err != nil {
			return nil, fmt.Errorf("inserting document %d of %d: %w", i+1, len(params), err)
		}
		docs = append(docs, doc)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing batch transaction: %w", err)
	}
	return docs, nil
}

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertOne(ctx context.Context, q querier, p InsertParams) (Document, error) {
	if p.Content == "" {
		return Document{}, fmt.Errorf("content must not be empty")
	}
	md := p.Metadata
	if md == nil {
		md = map[string]any{}
	}

	doc := Document{Content: p.Content, Metadata: md}
	err := q.QueryRow(ctx,
		`INSERT INTO documents (content, embedding, metadata)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		p.Content, pgvector.NewVector(p.Embedding), md,
	).Scan(&doc.ID, &doc.CreatedAt)
	if err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Match runs database-side cosine similarity ranking via the
// match_documents function. Rows come back ordered by descending
// similarity, strictly above threshold, at most limit of them.
func (c *Client) Match(ctx context.Context, embedding []float32, threshold float64, limit int) ([]MatchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	rows, err := c.pool.Query(ctx,
		`SELECT id, content, metadata, created_at, similarity
		 FROM match_documents($1, $2, $3)`,
		pgvector.NewVector(embedding), threshold, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("matching documents: %w", err)
	}
	defer rows.Close()

	var results []MatchResult
	for rows.Next() {
		var r MatchResult
		if err := rows.Scan(&r.ID, &r.Content, &r.Metadata, &r.CreatedAt, &r.Similarity); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating matches: %w", err)
	}
	return results, nil
}

// Get returns one document by id, or ErrNotFound.
func (c *Client) Get(ctx context.Context, id uuid.UUID) (Document, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var doc Document
	err := c.pool.QueryRow(ctx,
		`SELECT `+docCols+` FROM documents WHERE id = $1`, id,
	).Scan(&doc.ID, &doc.Content, &doc.Metadata, &doc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("getting document %s: %w", id, err)
	}
	return doc, nil
}

// Query returns documents whose metadata contains every key/value pair of
// filter, using JSONB containment. Newest first.
func (c *Client) Query(ctx context.Context, filter map[string]any, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	if filter == nil {
		filter = map[string]any{}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	rows, err := c.pool.Query(ctx,
		`SELECT `+docCols+`
		 FROM documents
		 WHERE metadata @> $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		filter, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

// UpdateMetadata replaces a document's metadata. Content and embedding are
// immutable; re-ingest to change them. Returns ErrNotFound for unknown ids.
func (c *Client) UpdateMetadata(ctx context.Context, id uuid.UUID, metadata map[string]any) error {
	if metadata == nil {
		metadata = map[string]any{}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	tag, err := c.pool.Exec(ctx,
		`UPDATE documents SET metadata = $2 WHERE id = $1`, id, metadata,
	)
	if err != nil {
		return fmt.Errorf("updating metadata for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes one document. Returns ErrNotFound for unknown ids.
func (c *Client) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	tag, err := c.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns documents newest first, at most limit of them.
func (c *Client) List(ctx context.Context, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	rows, err := c.pool.Query(ctx,
		`SELECT `+docCols+`
		 FROM documents
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

// Count returns the total number of stored documents.
func (c *Client) Count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var n int64
	if err := c.pool.QueryRow(ctx, `SELECT count(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

// scanDocuments reads Document structs from pgx.Rows (standard column set).
func scanDocuments(rows pgx.Rows) ([]Document, error) {
	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Content, &d.Metadata, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}
