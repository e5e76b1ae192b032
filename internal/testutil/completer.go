package testutil

import (
	"context"
	"sync"

	"github.com/lumenlabs/lumen/internal/llm"
)

// ScriptedCompleter is a canned text-generation client for testing.
// It records every call and replays a fixed response, optionally in
// fragments through the streaming path.
//
// Safe for concurrent use.
type ScriptedCompleter struct {
	mu        sync.Mutex
	response  string
	fragments []string
	result    *llm.Result
	err       error
	calls     [][]llm.Message
}

// NewScriptedCompleter creates a completer that always succeeds with response.
func NewScriptedCompleter(response string) *ScriptedCompleter {
	return &ScriptedCompleter{response: response}
}

// SetFragments overrides the fragments delivered by CompleteStream.
// Without it, the whole response is delivered as one fragment.
func (c *ScriptedCompleter) SetFragments(fragments ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fragments = fragments
}

// SetResult makes every call return exactly result.
func (c *ScriptedCompleter) SetResult(result llm.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.result = &result
}

// SetError makes every call fail with err.
func (c *ScriptedCompleter) SetError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// Calls returns the message sequences passed to the completer, in order.
func (c *ScriptedCompleter) Calls() [][]llm.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]llm.Message, len(c.calls))
	copy(out, c.calls)
	return out
}

// CallCount returns how many completion calls were made.
func (c *ScriptedCompleter) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

// Complete records the call and returns the scripted outcome.
func (c *ScriptedCompleter) Complete(_ context.Context, msgs []llm.Message, _ llm.Options) (llm.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls = append(c.calls, msgs)
	if c.err != nil {
		return llm.Result{}, c.err
	}
	if c.result != nil {
		return *c.result, nil
	}
	return llm.Result{Success: true, Text: c.response}, nil
}

// CompleteStream records the call, delivers the scripted fragments, and
// returns the scripted outcome.
func (c *ScriptedCompleter) CompleteStream(ctx context.Context, msgs []llm.Message, _ llm.Options, stream llm.StreamFunc) (llm.Result, error) {
	c.mu.Lock()
	c.calls = append(c.calls, msgs)
	err := c.err
	result := c.result
	fragments := c.fragments
	response := c.response
	c.mu.Unlock()

	if err != nil {
		return llm.Result{}, err
	}
	if result != nil {
		if result.Success {
			if streamErr := stream(ctx, result.Text); streamErr != nil {
				return llm.Result{}, streamErr
			}
		}
		return *result, nil
	}

	if len(fragments) == 0 {
		fragments = []string{response}
	}
	for _, f := range fragments {
		if streamErr := stream(ctx, f); streamErr != nil {
			return llm.Result{}, streamErr
		}
	}
	return llm.Result{Success: true, Text: response}, nil
}
