// Package rag composes retrieval and generation into grounded answers.
//
// The Engine retrieves strictly-similar documents for a query, assembles
// them into a numbered grounding context, and conditions a single
// generation call on it. When nothing qualifies, it answers with the fixed
// no-information response without calling the provider at all: the context
// window never sees an ungrounded question.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lumenlabs/lumen/internal/knowledge"
	"github.com/lumenlabs/lumen/internal/llm"
)

// Retrieval defaults: a tight threshold and few sources keep the grounding
// context short and on-topic.
const (
	DefaultThreshold  = 0.7
	DefaultMaxSources = 3
)

// NoInformationResponse is the fixed answer when nothing in the knowledge
// base clears the similarity threshold.
const NoInformationResponse = "I don't have any information about that in my knowledge base."

// ErrGeneration indicates the provider reported a generation failure for
// the grounded completion call.
var ErrGeneration = errors.New("answer generation failed")

// Retriever is the slice of the knowledge engine the RAG flow depends on.
type Retriever interface {
	Search(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.SearchResult, error)
}

// Completer is the slice of the generation client the RAG flow depends on.
type Completer interface {
	Complete(ctx context.Context, msgs []llm.Message, opts llm.Options) (llm.Result, error)
	CompleteStream(ctx context.Context, msgs []llm.Message, opts llm.Options, stream llm.StreamFunc) (llm.Result, error)
}

// Answer is a grounded reply with the sources that produced it.
// Sources is empty exactly when Text is the no-information response.
type Answer struct {
	Text    string
	Sources []knowledge.SearchResult
}

// Config tunes retrieval for the RAG flow. Zero values take the defaults.
type Config struct {
	Threshold  float64     // minimum similarity for grounding sources
	MaxSources int         // retrieval cap
	Generation llm.Options // options for the grounded completion call
}

// Engine answers questions grounded in the knowledge base.
//
// Engine is safe for concurrent use by multiple goroutines.
type Engine struct {
	retriever  Retriever
	completer  Completer
	threshold  float64
	maxSources int
	genOpts    llm.Options
	logger     *slog.Logger
}

// New creates a RAG Engine.
func New(retriever Retriever, completer Completer, cfg Config, logger *slog.Logger) (*Engine, error) {
	if retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if completer == nil {
		return nil, fmt.Errorf("completer is required")
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Threshold < 0 || cfg.Threshold > 1 {
		return nil, fmt.Errorf("threshold must be in [0,1], got %.2f", cfg.Threshold)
	}
	if cfg.MaxSources <= 0 {
		cfg.MaxSources = DefaultMaxSources
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		retriever:  retriever,
		completer:  completer,
		threshold:  cfg.Threshold,
		maxSources: cfg.MaxSources,
		genOpts:    cfg.Generation,
		logger:     logger,
	}, nil
}

// Answer returns the grounded answer text for query.
func (e *Engine) Answer(ctx context.Context, query string) (string, error) {
	answer, err := e.AnswerWithSources(ctx, query)
	if err != nil {
		return "", err
	}
	return answer.Text, nil
}

// AnswerWithSources returns the grounded answer along with the documents
// it was conditioned on, in similarity order.
func (e *Engine) AnswerWithSources(ctx context.Context, query string) (Answer, error) {
	sources, msgs, done, err := e.prepare(ctx, query)
	if err != nil {
		return Answer{}, err
	}
	if done {
		return Answer{Text: NoInformationResponse}, nil
	}

	result, err := e.completer.Complete(ctx, msgs, e.genOpts)
	if err != nil {
		return Answer{}, fmt.Errorf("completing answer: %w", err)
	}
	if !result.Success {
		return Answer{}, fmt.Errorf("%w: %s", ErrGeneration, result.Error)
	}

	return Answer{Text: result.Text, Sources: sources}, nil
}

// AnswerStream behaves like AnswerWithSources but additionally delivers
// the answer incrementally through stream. The no-information response is
// delivered as a single fragment.
func (e *Engine) AnswerStream(ctx context.Context, query string, stream llm.StreamFunc) (Answer, error) {
	if stream == nil {
		return Answer{}, fmt.Errorf("stream callback is required")
	}

	sources, msgs, done, err := e.prepare(ctx, query)
	if err != nil {
		return Answer{}, err
	}
	if done {
		if streamErr := stream(ctx, NoInformationResponse); streamErr != nil {
			return Answer{}, streamErr
		}
		return Answer{Text: NoInformationResponse}, nil
	}

	result, err := e.completer.CompleteStream(ctx, msgs, e.genOpts, stream)
	if err != nil {
		return Answer{}, fmt.Errorf("completing answer: %w", err)
	}
	if !result.Success {
		return Answer{}, fmt.Errorf("%w: %s", ErrGeneration, result.Error)
	}

	return Answer{Text: result.Text, Sources: sources}, nil
}

// prepare retrieves grounding sources and builds the completion messages.
// done is true when nothing cleared the threshold and the fixed response
// applies; the provider must not be called in that case.
func (e *Engine) prepare(ctx context.Context, query string) (sources []knowledge.SearchResult, msgs []llm.Message, done bool, err error) {
	sources, err = e.retriever.Search(ctx, query,
		knowledge.WithThreshold(e.threshold),
		knowledge.WithLimit(e.maxSources),
	)
	if err != nil {
		return nil, nil, false, fmt.Errorf("retrieving sources: %w", err)
	}

	if len(sources) == 0 {
		e.logger.Debug("no sources above threshold", "threshold", e.threshold)
		return nil, nil, true, nil
	}

	msgs = []llm.Message{
		{Role: llm.RoleSystem, Content: systemInstruction(sources)},
		{Role: llm.RoleUser, Content: query},
	}
	return sources, msgs, false, nil
}

// systemInstruction renders the retrieved documents into the grounding
// instruction, numbered in similarity order.
func systemInstruction(sources []knowledge.SearchResult) string {
	var b strings.Builder
	b.WriteString("You are a helpful assistant. Answer the user's question using only the context below.\n")
	b.WriteString("If the context does not contain the answer, say so instead of guessing.\n")
	b.WriteString("Cite documents by their number, e.g. [Document 1].\n\nContext:\n\n")
	for i, s := range sources {
		fmt.Fprintf(&b, "[Document %d]\n%s\n\n", i+1, s.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}
