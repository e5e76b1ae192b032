package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// DefaultGenerateTimeout bounds a single completion round trip, including
// stream delivery.
const DefaultGenerateTimeout = 60 * time.Second

// chunkCallback is invoked for each chunk of a streaming response.
type chunkCallback func(ctx context.Context, chunk *ai.ModelResponseChunk) error

// generateFunc issues one provider call. Indirection point for tests.
// A nil cb means the call is not streamed.
type generateFunc func(ctx context.Context, opts []ai.GenerateOption, cb chunkCallback) (*ai.ModelResponse, error)

// GeneratorConfig configures a Generator.
type GeneratorConfig struct {
	ModelName string        // provider-qualified default model, e.g. "googleai/gemini-2.5-flash"
	Timeout   time.Duration // per-call deadline; zero uses DefaultGenerateTimeout

	Retry          RetryConfig          // zero value uses defaults
	CircuitBreaker CircuitBreakerConfig // zero value uses defaults
	RateLimiter    *rate.Limiter        // optional; nil disables proactive limiting
}

// Generator sends role-tagged message sequences to the text-generation
// provider and returns completions, whole or streamed.
//
// Generator is safe for concurrent use by multiple goroutines.
type Generator struct {
	generate    generateFunc
	modelName   string
	timeout     time.Duration
	retryConfig RetryConfig
	breaker     *CircuitBreaker
	rateLimiter *rate.Limiter
	logger      *slog.Logger
}

// NewGenerator creates a Generator backed by the given Genkit instance.
func NewGenerator(g *genkit.Genkit, cfg GeneratorConfig, logger *slog.Logger) (*Generator, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("model name is required")
	}
	gen := func(ctx context.Context, opts []ai.GenerateOption, cb chunkCallback) (*ai.ModelResponse, error) {
		if cb != nil {
			opts = append(opts, ai.WithStreaming(cb))
		}
		return genkit.Generate(ctx, g, opts...)
	}
	return newGenerator(gen, cfg, logger)
}

// newGenerator wires the resilience layer around a generateFunc.
// Tests use this directly with a scripted generateFunc.
func newGenerator(gen generateFunc, cfg GeneratorConfig, logger *slog.Logger) (*Generator, error) {
	if gen == nil {
		return nil, fmt.Errorf("generate function is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultGenerateTimeout
	}
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = DefaultRetryConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		generate:    gen,
		modelName:   cfg.ModelName,
		timeout:     cfg.Timeout,
		retryConfig: cfg.Retry,
		breaker:     NewCircuitBreaker(cfg.CircuitBreaker),
		rateLimiter: cfg.RateLimiter,
		logger:      logger,
	}, nil
}

// Complete sends messages to the provider and returns the full completion.
//
// A provider-reported failure is captured into Result{Success: false} and a
// nil error; transport failures return a Go error wrapped in
// ErrProviderUnavailable. Invalid input (empty messages, out-of-range
// options) fails before any network call.
func (g *Generator) Complete(ctx context.Context, msgs []Message, opts Options) (Result, error) {
	return g.run(ctx, msgs, opts, nil)
}

// CompleteStream behaves like Complete but additionally delivers the
// completion incrementally through stream. The callback is invoked zero or
// more times, sequentially, with fragments in generation order; returning
// an error from it aborts the stream. Once issued, a stream runs to
// exhaustion or failure; there is no mid-stream cancellation beyond ctx.
func (g *Generator) CompleteStream(ctx context.Context, msgs []Message, opts Options, stream StreamFunc) (Result, error) {
	if stream == nil {
		return Result{}, fmt.Errorf("stream callback is required")
	}
	return g.run(ctx, msgs, opts, stream)
}

func (g *Generator) run(ctx context.Context, msgs []Message, opts Options, stream StreamFunc) (Result, error) {
	if len(msgs) == 0 {
		return Result{}, fmt.Errorf("%w: at least one message is required", ErrEmptyInput)
	}

	resolved, err := opts.resolve(g.modelName)
	if err != nil {
		return Result{}, err
	}

	genkitMsgs, err := toGenkitMessages(msgs)
	if err != nil {
		return Result{}, err
	}

	genOpts := []ai.GenerateOption{
		ai.WithModelName(resolved.Model),
		ai.WithMessages(genkitMsgs...),
		ai.WithConfig(&genai.GenerateContentConfig{
			Temperature:     resolved.Temperature,
			MaxOutputTokens: int32(resolved.MaxTokens),
		}),
	}

	var cb chunkCallback
	if stream != nil {
		cb = func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
			if text := chunk.Text(); text != "" {
				return stream(ctx, text)
			}
			return nil
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.executeWithRetry(callCtx, genOpts, cb)
	if err != nil {
		if transportError(err) {
			return Result{}, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
		}
		// Provider-reported logical failure: data, not an error.
		g.logger.Debug("provider reported generation failure", "error", err)
		return Result{Success: false, Error: err.Error()}, nil
	}

	return Result{Success: true, Text: resp.Text()}, nil
}

// transportError reports whether err is a network-level failure rather than
// a provider-reported logical error.
func transportError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, ErrCircuitOpen) {
		return true
	}
	return containsAny(err.Error(),
		"connection refused", "connection reset", "no such host",
		"broken pipe", "i/o timeout", "unexpected EOF", "tls handshake",
	)
}
