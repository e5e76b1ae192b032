// Package dispatch routes free-text user input to agents.
//
// Routing is deliberately dumb: lightweight first-match keyword rules, no
// model-based intent classification. Each rule inspects the head of the
// input; the first one that fires wins, and everything else falls through
// to the chat agent. Agents always come back with renderable text, so a
// failing collaborator degrades to an apologetic reply instead of a crash.
package dispatch

import (
	"context"
	"log/slog"
	"strings"

	"github.com/lumenlabs/lumen/internal/llm"
)

// Agent is one entry point behind the dispatcher.
type Agent interface {
	// Name returns the unique identifier for the agent.
	Name() string

	// Description returns the functional description of the agent.
	Description() string

	// Handle runs the agent on input and returns renderable reply text.
	// A non-nil stream receives incremental fragments where the agent
	// supports it; agents without streaming just ignore it.
	Handle(ctx context.Context, input string, stream llm.StreamFunc) (string, error)
}

// ingestPrefixes trigger the ingest agent when the input starts with one.
var ingestPrefixes = []string{"remember:", "learn:", "ingest:"}

// Leading-keyword routes. The first word of the input decides.
var (
	searchKeywords   = []string{"search", "find", "lookup"}
	forgetKeywords   = []string{"forget", "delete"}
	questionKeywords = []string{"what", "who", "when", "where", "why", "how", "which", "can", "does", "is", "are"}
)

type route struct {
	match func(input string) bool
	agent Agent
}

// Dispatcher owns the routing table and the fallback chat agent.
//
// Dispatcher is safe for concurrent use by multiple goroutines.
type Dispatcher struct {
	routes   []route
	fallback Agent
	logger   *slog.Logger
}

// New wires the five agents into the fixed routing order: ingest, search,
// forget, answer, then chat as the fallback.
func New(ingest, search, forget, answer, chat Agent, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		routes: []route{
			{match: matchesIngest, agent: ingest},
			{match: matchesKeyword(searchKeywords), agent: search},
			{match: matchesKeyword(forgetKeywords), agent: forget},
			{match: matchesQuestion, agent: answer},
		},
		fallback: chat,
		logger:   logger,
	}
}

// Route returns the agent that would handle input.
func (d *Dispatcher) Route(input string) Agent {
	normalized := strings.ToLower(strings.TrimSpace(input))
	for _, r := range d.routes {
		if r.match(normalized) {
			return r.agent
		}
	}
	return d.fallback
}

// Dispatch routes input to an agent and returns its reply. Agent errors
// are rendered into the reply text; Dispatch itself never fails.
func (d *Dispatcher) Dispatch(ctx context.Context, input string, stream llm.StreamFunc) string {
	agent := d.Route(input)
	d.logger.Debug("dispatching input", "agent", agent.Name(), "input_length", len(input))

	reply, err := agent.Handle(ctx, input, stream)
	if err != nil {
		d.logger.Warn("agent failed", "agent", agent.Name(), "error", err)
		return "Sorry, something went wrong: " + err.Error()
	}
	return reply
}

// Agents returns every registered agent, routing order first, fallback last.
func (d *Dispatcher) Agents() []Agent {
	out := make([]Agent, 0, len(d.routes)+1)
	for _, r := range d.routes {
		out = append(out, r.agent)
	}
	return append(out, d.fallback)
}

func matchesIngest(input string) bool {
	for _, p := range ingestPrefixes {
		if strings.HasPrefix(input, p) {
			return true
		}
	}
	return false
}

func matchesKeyword(keywords []string) func(string) bool {
	return func(input string) bool {
		head, _, _ := strings.Cut(input, " ")
		for _, k := range keywords {
			if head == k {
				return true
			}
		}
		return false
	}
}

func matchesQuestion(input string) bool {
	if strings.HasSuffix(input, "?") {
		return true
	}
	head, _, _ := strings.Cut(input, " ")
	for _, k := range questionKeywords {
		if head == k {
			return true
		}
	}
	return false
}
