package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/lumenlabs/lumen/internal/knowledge"
	"github.com/lumenlabs/lumen/internal/llm"
	"github.com/lumenlabs/lumen/internal/testutil"
)

// fakeRetriever replays canned search results and records the options it
// was called with.
type fakeRetriever struct {
	results   []knowledge.SearchResult
	err       error
	calls     int
	lastOpts  []knowledge.SearchOption
	lastQuery string
}

func (f *fakeRetriever) Search(_ context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.SearchResult, error) {
	f.calls++
	f.lastQuery = query
	f.lastOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func sources(contents ...string) []knowledge.SearchResult {
	out := make([]knowledge.SearchResult, len(contents))
	for i, c := range contents {
		out[i] = knowledge.SearchResult{
			ID:         uuid.New(),
			Content:    c,
			Similarity: 0.9 - 0.05*float64(i),
		}
	}
	return out
}

func newTestEngine(t *testing.T, r Retriever, c Completer) *Engine {
	t.Helper()
	engine, err := New(r, c, Config{}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return engine
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	completer := testutil.NewScriptedCompleter("ok")

	if _, err := New(nil, completer, Config{}, nil); err == nil {
		t.Error("expected error for nil retriever")
	}
	if _, err := New(&fakeRetriever{}, nil, Config{}, nil); err == nil {
		t.Error("expected error for nil completer")
	}
	if _, err := New(&fakeRetriever{}, completer, Config{Threshold: 1.5}, nil); err == nil {
		t.Error("expected error for threshold above 1")
	}
}

func TestEngine_Answer_NoSources(t *testing.T) {
	t.Parallel()

	completer := testutil.NewScriptedCompleter("must not be used")
	engine := newTestEngine(t, &fakeRetriever{}, completer)

	text, err := engine.Answer(context.Background(), "what is the airspeed of an unladen swallow?")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if text != NoInformationResponse {
		t.Errorf("Answer() = %q, want the fixed no-information response", text)
	}
	if completer.CallCount() != 0 {
		t.Errorf("completer called %d times, want 0", completer.CallCount())
	}
}

func TestEngine_Answer_Grounded(t *testing.T) {
	t.Parallel()

	retriever := &fakeRetriever{results: sources(
		"Go was designed at Google.",
		"Go compiles to native code.",
	)}
	completer := testutil.NewScriptedCompleter("Go is a compiled language from Google. [Document 1]")
	engine := newTestEngine(t, retriever, completer)

	answer, err := engine.AnswerWithSources(context.Background(), "who designed Go?")
	if err != nil {
		t.Fatalf("AnswerWithSources() error = %v", err)
	}
	if answer.Text != "Go is a compiled language from Google. [Document 1]" {
		t.Errorf("Text = %q", answer.Text)
	}
	if len(answer.Sources) != 2 {
		t.Fatalf("got %d sources, want 2", len(answer.Sources))
	}
	if answer.Sources[0].Content != "Go was designed at Google." {
		t.Error("sources must keep similarity order")
	}
	if retriever.calls != 1 {
		t.Errorf("retriever called %d times, want 1", retriever.calls)
	}
}

func TestEngine_Answer_ContextAssembly(t *testing.T) {
	t.Parallel()

	retriever := &fakeRetriever{results: sources("first passage", "second passage", "third passage")}
	completer := testutil.NewScriptedCompleter("answer")
	engine := newTestEngine(t, retriever, completer)

	if _, err := engine.Answer(context.Background(), "the question"); err != nil {
		t.Fatalf("Answer() error = %v", err)
	}

	calls := completer.Calls()
	if len(calls) != 1 {
		t.Fatalf("completer called %d times, want 1", len(calls))
	}
	msgs := calls[0]
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want system + user", len(msgs))
	}
	if msgs[0].Role != llm.RoleSystem || msgs[1].Role != llm.RoleUser {
		t.Errorf("roles = %v, %v; want system, user", msgs[0].Role, msgs[1].Role)
	}
	if msgs[1].Content != "the question" {
		t.Errorf("user message = %q, want the raw query", msgs[1].Content)
	}

	system := msgs[0].Content
	for i, passage := range []string{"first passage", "second passage", "third passage"} {
		tag := "[Document " + string(rune('1'+i)) + "]"
		idx := strings.Index(system, tag)
		if idx < 0 {
			t.Fatalf("system instruction missing %q", tag)
		}
		if !strings.Contains(system[idx:], passage) {
			t.Errorf("passage %q does not follow its tag %q", passage, tag)
		}
	}
	if strings.Index(system, "[Document 1]") > strings.Index(system, "[Document 2]") {
		t.Error("documents must be numbered in similarity order")
	}
}

func TestEngine_Answer_RetrievalDefaults(t *testing.T) {
	t.Parallel()

	retriever := &fakeRetriever{}
	engine := newTestEngine(t, retriever, testutil.NewScriptedCompleter("x"))

	if _, err := engine.Answer(context.Background(), "q"); err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	// Threshold and limit travel as functional options; two must be set.
	if len(retriever.lastOpts) != 2 {
		t.Errorf("got %d search options, want threshold and limit", len(retriever.lastOpts))
	}
	if retriever.lastQuery != "q" {
		t.Errorf("query = %q, want %q", retriever.lastQuery, "q")
	}
}

func TestEngine_Answer_Failures(t *testing.T) {
	t.Parallel()

	t.Run("retrieval error propagates", func(t *testing.T) {
		t.Parallel()

		retriever := &fakeRetriever{err: errors.New("store down")}
		completer := testutil.NewScriptedCompleter("x")
		engine := newTestEngine(t, retriever, completer)

		if _, err := engine.Answer(context.Background(), "q"); err == nil {
			t.Error("expected retrieval error to propagate")
		}
		if completer.CallCount() != 0 {
			t.Error("completer must not be called when retrieval fails")
		}
	})

	t.Run("transport error propagates", func(t *testing.T) {
		t.Parallel()

		completer := testutil.NewScriptedCompleter("x")
		completer.SetError(llm.ErrProviderUnavailable)
		engine := newTestEngine(t, &fakeRetriever{results: sources("doc")}, completer)

		if _, err := engine.Answer(context.Background(), "q"); !errors.Is(err, llm.ErrProviderUnavailable) {
			t.Errorf("error = %v, want ErrProviderUnavailable", err)
		}
	})

	t.Run("provider-reported failure becomes ErrGeneration", func(t *testing.T) {
		t.Parallel()

		completer := testutil.NewScriptedCompleter("x")
		completer.SetResult(llm.Result{Success: false, Error: "quota exhausted"})
		engine := newTestEngine(t, &fakeRetriever{results: sources("doc")}, completer)

		_, err := engine.Answer(context.Background(), "q")
		if !errors.Is(err, ErrGeneration) {
			t.Errorf("error = %v, want ErrGeneration", err)
		}
		if err != nil && !strings.Contains(err.Error(), "quota exhausted") {
			t.Errorf("error %q should carry the provider message", err)
		}
	})
}

func TestEngine_AnswerStream(t *testing.T) {
	t.Parallel()

	t.Run("streams fragments and returns full answer", func(t *testing.T) {
		t.Parallel()

		completer := testutil.NewScriptedCompleter("streamed answer")
		completer.SetFragments("streamed ", "answer")
		engine := newTestEngine(t, &fakeRetriever{results: sources("doc")}, completer)

		var got []string
		answer, err := engine.AnswerStream(context.Background(), "q",
			func(_ context.Context, fragment string) error {
				got = append(got, fragment)
				return nil
			})
		if err != nil {
			t.Fatalf("AnswerStream() error = %v", err)
		}
		if answer.Text != "streamed answer" {
			t.Errorf("Text = %q", answer.Text)
		}
		if strings.Join(got, "") != "streamed answer" {
			t.Errorf("fragments = %v", got)
		}
	})

	t.Run("no sources streams the fixed response", func(t *testing.T) {
		t.Parallel()

		completer := testutil.NewScriptedCompleter("must not be used")
		engine := newTestEngine(t, &fakeRetriever{}, completer)

		var got []string
		answer, err := engine.AnswerStream(context.Background(), "q",
			func(_ context.Context, fragment string) error {
				got = append(got, fragment)
				return nil
			})
		if err != nil {
			t.Fatalf("AnswerStream() error = %v", err)
		}
		if answer.Text != NoInformationResponse {
			t.Errorf("Text = %q", answer.Text)
		}
		if len(got) != 1 || got[0] != NoInformationResponse {
			t.Errorf("fragments = %v, want single fixed response", got)
		}
		if completer.CallCount() != 0 {
			t.Error("completer must not be called without sources")
		}
	})

	t.Run("nil callback", func(t *testing.T) {
		t.Parallel()

		engine := newTestEngine(t, &fakeRetriever{}, testutil.NewScriptedCompleter("x"))
		if _, err := engine.AnswerStream(context.Background(), "q", nil); err == nil {
			t.Error("expected error for nil stream callback")
		}
	})
}
