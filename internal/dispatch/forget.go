package dispatch

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/lumenlabs/lumen/internal/llm"
)

// Deleter is the slice of the knowledge engine the forget agent needs.
type Deleter interface {
	Delete(ctx context.Context, id uuid.UUID) error
}

// ForgetAgent removes a document by id for inputs led by "forget" or
// "delete".
type ForgetAgent struct {
	deleter Deleter
}

// NewForgetAgent creates the forget agent.
func NewForgetAgent(deleter Deleter) *ForgetAgent {
	return &ForgetAgent{deleter: deleter}
}

func (a *ForgetAgent) Name() string { return "forget" }

func (a *ForgetAgent) Description() string {
	return "Deletes a stored document for inputs starting with forget or delete"
}

// Handle parses the document id after the keyword and deletes it.
func (a *ForgetAgent) Handle(ctx context.Context, input string, _ llm.StreamFunc) (string, error) {
	arg := stripLeadingKeyword(input, forgetKeywords)
	if arg == "" {
		return "Nothing to forget. Try: forget <document-id>", nil
	}

	id, err := uuid.Parse(arg)
	if err != nil {
		return fmt.Sprintf("%q is not a document id. Use the id shown by search or sources.", arg), nil
	}

	if err := a.deleter.Delete(ctx, id); err != nil {
		return "", fmt.Errorf("deleting document: %w", err)
	}
	return fmt.Sprintf("Forgotten. (document %s)", id), nil
}
