package dispatch

import (
	"context"
	"fmt"

	"github.com/lumenlabs/lumen/internal/llm"
	"github.com/lumenlabs/lumen/internal/rag"
)

// Answerer is the slice of the RAG engine the answer agent needs.
type Answerer interface {
	AnswerWithSources(ctx context.Context, query string) (rag.Answer, error)
	AnswerStream(ctx context.Context, query string, stream llm.StreamFunc) (rag.Answer, error)
}

// AnswerAgent answers question-shaped inputs grounded in the knowledge
// base via the RAG flow.
type AnswerAgent struct {
	answerer Answerer
}

// NewAnswerAgent creates the answer agent.
func NewAnswerAgent(answerer Answerer) *AnswerAgent {
	return &AnswerAgent{answerer: answerer}
}

func (a *AnswerAgent) Name() string { return "answer" }

func (a *AnswerAgent) Description() string {
	return "Answers questions using retrieved knowledge with cited sources"
}

// Handle answers the question, streaming when a callback is provided.
func (a *AnswerAgent) Handle(ctx context.Context, input string, stream llm.StreamFunc) (string, error) {
	var answer rag.Answer
	var err error
	if stream != nil {
		answer, err = a.answerer.AnswerStream(ctx, input, stream)
	} else {
		answer, err = a.answerer.AnswerWithSources(ctx, input)
	}
	if err != nil {
		return "", fmt.Errorf("answering question: %w", err)
	}
	return answer.Text, nil
}
