package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/lumenlabs/lumen/internal/knowledge"
	"github.com/lumenlabs/lumen/internal/llm"
)

// Ingester is the slice of the knowledge engine the ingest agent needs.
type Ingester interface {
	Add(ctx context.Context, content string, metadata map[string]any) (knowledge.Document, error)
}

// IngestAgent stores the text after a "remember:", "learn:" or "ingest:"
// prefix as a new knowledge document.
type IngestAgent struct {
	ingester Ingester
}

// NewIngestAgent creates the ingest agent.
func NewIngestAgent(ingester Ingester) *IngestAgent {
	return &IngestAgent{ingester: ingester}
}

func (a *IngestAgent) Name() string { return "ingest" }

func (a *IngestAgent) Description() string {
	return "Stores new knowledge from inputs prefixed with remember:, learn: or ingest:"
}

// Handle strips the ingest prefix and persists the remainder.
func (a *IngestAgent) Handle(ctx context.Context, input string, _ llm.StreamFunc) (string, error) {
	content := stripIngestPrefix(input)
	if content == "" {
		return "Nothing to remember. Try: remember: Go was released in 2012.", nil
	}

	doc, err := a.ingester.Add(ctx, content, map[string]any{"source": "chat"})
	if err != nil {
		return "", fmt.Errorf("storing knowledge: %w", err)
	}
	return fmt.Sprintf("Remembered. (document %s)", doc.ID), nil
}

// stripIngestPrefix removes the first matching ingest prefix,
// case-insensitively, and trims the remainder.
func stripIngestPrefix(input string) string {
	trimmed := strings.TrimSpace(input)
	lower := strings.ToLower(trimmed)
	for _, p := range ingestPrefixes {
		if strings.HasPrefix(lower, p) {
			return strings.TrimSpace(trimmed[len(p):])
		}
	}
	return trimmed
}
