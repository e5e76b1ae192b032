package dispatch

import (
	"context"
	"fmt"

	"github.com/lumenlabs/lumen/internal/llm"
)

// chatSystemPrompt frames the fallback conversation.
const chatSystemPrompt = "You are Lumen, a concise and helpful terminal assistant."

// Completer is the slice of the generation client the chat agent needs.
type Completer interface {
	Complete(ctx context.Context, msgs []llm.Message, opts llm.Options) (llm.Result, error)
	CompleteStream(ctx context.Context, msgs []llm.Message, opts llm.Options, stream llm.StreamFunc) (llm.Result, error)
}

// ChatAgent is the fallback: plain generation without retrieval.
type ChatAgent struct {
	completer Completer
}

// NewChatAgent creates the chat agent.
func NewChatAgent(completer Completer) *ChatAgent {
	return &ChatAgent{completer: completer}
}

func (a *ChatAgent) Name() string { return "chat" }

func (a *ChatAgent) Description() string {
	return "Handles everything no other agent claims, as plain conversation"
}

// Handle completes the input as a chat turn, streaming when a callback is
// provided.
func (a *ChatAgent) Handle(ctx context.Context, input string, stream llm.StreamFunc) (string, error) {
	msgs := []llm.Message{
		{Role: llm.RoleSystem, Content: chatSystemPrompt},
		{Role: llm.RoleUser, Content: input},
	}

	var result llm.Result
	var err error
	if stream != nil {
		result, err = a.completer.CompleteStream(ctx, msgs, llm.Options{}, stream)
	} else {
		result, err = a.completer.Complete(ctx, msgs, llm.Options{})
	}
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if !result.Success {
		return "", fmt.Errorf("chat completion failed: %s", result.Error)
	}
	return result.Text, nil
}
