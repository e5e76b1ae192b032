package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"google.golang.org/genai"
)

// DefaultEmbedTimeout bounds a single embedding round trip.
const DefaultEmbedTimeout = 10 * time.Second

// Embedder converts text into fixed-length embedding vectors via the
// provider's embedding model.
//
// Embedder is safe for concurrent use by multiple goroutines.
type Embedder struct {
	embedder ai.Embedder
	timeout  time.Duration
	logger   *slog.Logger
}

// NewEmbedder creates an Embedder over a Genkit embedder.
// A non-positive timeout falls back to DefaultEmbedTimeout.
func NewEmbedder(embedder ai.Embedder, timeout time.Duration, logger *slog.Logger) (*Embedder, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if timeout <= 0 {
		timeout = DefaultEmbedTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Embedder{embedder: embedder, timeout: timeout, logger: logger}, nil
}

// Embed returns the embedding vector for text.
//
// Empty text fails with ErrEmptyInput before any network call. A hung
// provider call is cut off at the configured timeout and surfaces as
// ErrProviderUnavailable. A response with the wrong dimensionality fails
// with ErrBadDimension; the vector is never silently truncated or padded.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text must not be empty", ErrEmptyInput)
	}

	embedCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	dim := int32(EmbeddingDimension)
	resp, err := e.embedder.Embed(embedCtx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: embedding timed out after %v: %w", ErrProviderUnavailable, e.timeout, err)
		}
		return nil, fmt.Errorf("embedding text: %w", err)
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}

	vec := resp.Embeddings[0].Embedding
	if len(vec) != EmbeddingDimension {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrBadDimension, len(vec), EmbeddingDimension)
	}

	return vec, nil
}
