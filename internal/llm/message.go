package llm

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single role-tagged turn in a conversation.
type Message struct {
	Role    Role
	Content string
}

// Options configures a single completion call.
// The zero value picks the Generator's configured model, temperature 0.7
// and a 1000-token cap.
type Options struct {
	Model       string   // provider-qualified model name; empty = Generator default
	Temperature *float32 // sampling temperature in [0,2]; nil = 0.7
	MaxTokens   int      // output token cap; 0 = 1000
}

const (
	defaultTemperature float32 = 0.7
	defaultMaxTokens           = 1000
)

// resolve applies defaults and validates ranges.
func (o Options) resolve(defaultModel string) (Options, error) {
	if o.Model == "" {
		o.Model = defaultModel
	}
	if o.Temperature == nil {
		t := defaultTemperature
		o.Temperature = &t
	}
	if *o.Temperature < 0 || *o.Temperature > 2 {
		return Options{}, fmt.Errorf("temperature must be in [0,2], got %.2f", *o.Temperature)
	}
	if o.MaxTokens == 0 {
		o.MaxTokens = defaultMaxTokens
	}
	if o.MaxTokens < 0 {
		return Options{}, fmt.Errorf("max tokens must be positive, got %d", o.MaxTokens)
	}
	return o, nil
}

// Result is the outcome of a completion call. Provider-reported failures
// are captured here with Success=false rather than returned as Go errors.
type Result struct {
	Success bool
	Text    string
	Error   string
}

// StreamFunc receives incremental text fragments of a streaming completion,
// in generation order. Fragments for one call are delivered sequentially;
// the stream ends when the enclosing call returns.
type StreamFunc func(ctx context.Context, fragment string) error

// toGenkitMessages converts messages to the provider representation.
// The assistant role maps to the provider's model role.
func toGenkitMessages(msgs []Message) ([]*ai.Message, error) {
	out := make([]*ai.Message, 0, len(msgs))
	for i, m := range msgs {
		if m.Content == "" {
			return nil, fmt.Errorf("%w: message %d has empty content", ErrEmptyInput, i)
		}
		switch m.Role {
		case RoleSystem:
			out = append(out, ai.NewSystemMessage(ai.NewTextPart(m.Content)))
		case RoleUser:
			out = append(out, ai.NewUserMessage(ai.NewTextPart(m.Content)))
		case RoleAssistant:
			out = append(out, ai.NewModelMessage(ai.NewTextPart(m.Content)))
		default:
			return nil, fmt.Errorf("unknown role %q in message %d", m.Role, i)
		}
	}
	return out, nil
}
