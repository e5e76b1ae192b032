// Package llm provides the generation and embedding clients for lumen.
//
// Both clients are thin wrappers over the Genkit googlegenai provider,
// constructed once and injected into the components that need them. The
// Generator carries the resilience layer (per-call timeout, retry with
// exponential backoff, circuit breaker, rate limiting); the Embedder
// enforces the embedding dimensionality contract.
//
// Failure model:
//   - Provider-reported generation failures are captured into
//     Result{Success: false}; they are data, not Go errors.
//   - Transport failures (deadline expiry, connection errors) are returned
//     as Go errors wrapped in ErrProviderUnavailable.
//   - Embedding failures always propagate as errors; there is no placeholder
//     vector fallback.
package llm

import "errors"

var (
	// ErrEmptyInput indicates empty text was passed where content is required.
	// Surfaced before any network call.
	ErrEmptyInput = errors.New("empty input")

	// ErrBadDimension indicates the provider returned a vector whose
	// dimensionality does not match EmbeddingDimension. The vector is never
	// truncated or padded to fit.
	ErrBadDimension = errors.New("unexpected embedding dimension")

	// ErrProviderUnavailable indicates a network-level failure (timeout,
	// connection error) as opposed to a provider-reported logical error.
	ErrProviderUnavailable = errors.New("provider unavailable")
)

// EmbeddingDimension is the fixed dimensionality of all embeddings.
// The documents table stores vector(1536); the embedder requests this
// output dimensionality and rejects anything else.
const EmbeddingDimension = 1536
