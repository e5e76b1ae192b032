package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/lumenlabs/lumen/internal/knowledge"
	"github.com/lumenlabs/lumen/internal/llm"
)

// Searcher is the slice of the knowledge engine the search agent needs.
type Searcher interface {
	Search(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.SearchResult, error)
}

// SearchAgent runs a similarity search for inputs led by "search", "find"
// or "lookup" and renders the ranked hits.
type SearchAgent struct {
	searcher Searcher
}

// NewSearchAgent creates the search agent.
func NewSearchAgent(searcher Searcher) *SearchAgent {
	return &SearchAgent{searcher: searcher}
}

func (a *SearchAgent) Name() string { return "search" }

func (a *SearchAgent) Description() string {
	return "Searches stored knowledge for inputs starting with search, find or lookup"
}

// Handle strips the leading keyword and searches with the remainder.
func (a *SearchAgent) Handle(ctx context.Context, input string, _ llm.StreamFunc) (string, error) {
	query := stripLeadingKeyword(input, searchKeywords)
	if query == "" {
		return "Nothing to search for. Try: search compiled languages", nil
	}

	results, err := a.searcher.Search(ctx, query)
	if err != nil {
		return "", fmt.Errorf("searching knowledge: %w", err)
	}
	if len(results) == 0 {
		return "No matching documents found.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d matching document(s):\n", len(results))
	for i, r := range results {
		fmt.Fprintf(&b, "%d. [%.2f] %s (%s)\n", i+1, r.Similarity, summarize(r.Content), r.ID)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// stripLeadingKeyword removes the first word when it is one of keywords,
// case-insensitively, and trims the remainder.
func stripLeadingKeyword(input string, keywords []string) string {
	trimmed := strings.TrimSpace(input)
	head, rest, _ := strings.Cut(trimmed, " ")
	lower := strings.ToLower(head)
	for _, k := range keywords {
		if lower == k {
			return strings.TrimSpace(rest)
		}
	}
	return trimmed
}

// summarize truncates content to one presentable line.
func summarize(content string) string {
	const maxLen = 120
	line := strings.ReplaceAll(content, "\n", " ")
	if len(line) > maxLen {
		return line[:maxLen-3] + "..."
	}
	return line
}
