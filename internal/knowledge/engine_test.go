package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lumenlabs/lumen/internal/store"
)

// fakeEmbedder is a scripted Embedder with optional per-call behavior.
type fakeEmbedder struct {
	mu        sync.Mutex
	embedFunc func(ctx context.Context, text string) ([]float32, error)
	calls     []string
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.mu.Unlock()
	if f.embedFunc != nil {
		return f.embedFunc(ctx, text)
	}
	return []float32{1, 0, 0}, nil
}

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeQuerier is a scripted Querier recording the arguments it receives.
type fakeQuerier struct {
	mu          sync.Mutex
	insertFunc  func(ctx context.Context, p store.InsertParams) (store.Document, error)
	batchFunc   func(ctx context.Context, params []store.InsertParams) ([]store.Document, error)
	matchFunc   func(ctx context.Context, embedding []float32, threshold float64, limit int) ([]store.MatchResult, error)
	deleteFunc  func(ctx context.Context, id uuid.UUID) error
	batchParams [][]store.InsertParams
	thresholds  []float64
	limits      []int
}

func (f *fakeQuerier) Insert(ctx context.Context, p store.InsertParams) (store.Document, error) {
	if f.insertFunc != nil {
		return f.insertFunc(ctx, p)
	}
	return store.Document{
		ID:        uuid.New(),
		Content:   p.Content,
		Metadata:  p.Metadata,
		CreatedAt: time.Now(),
	}, nil
}

func (f *fakeQuerier) InsertBatch(ctx context.Context, params []store.InsertParams) ([]store.Document, error) {
	f.mu.Lock()
	f.batchParams = append(f.batchParams, params)
	f.mu.Unlock()
	if f.batchFunc != nil {
		return f.batchFunc(ctx, params)
	}
	docs := make([]store.Document, len(params))
	for i, p := range params {
		docs[i] = store.Document{
			ID:        uuid.New(),
			Content:   p.Content,
			Metadata:  p.Metadata,
			CreatedAt: time.Now(),
		}
	}
	return docs, nil
}

func (f *fakeQuerier) Match(ctx context.Context, embedding []float32, threshold float64, limit int) ([]store.MatchResult, error) {
	f.mu.Lock()
	f.thresholds = append(f.thresholds, threshold)
	f.limits = append(f.limits, limit)
	f.mu.Unlock()
	if f.matchFunc != nil {
		return f.matchFunc(ctx, embedding, threshold, limit)
	}
	return nil, nil
}

func (f *fakeQuerier) Delete(ctx context.Context, id uuid.UUID) error {
	if f.deleteFunc != nil {
		return f.deleteFunc(ctx, id)
	}
	return nil
}

func (f *fakeQuerier) List(_ context.Context, _ int) ([]store.Document, error) {
	return nil, nil
}

func (f *fakeQuerier) Count(_ context.Context) (int64, error) {
	return 0, nil
}

func newTestEngine(t *testing.T, q Querier, e Embedder) *Engine {
	t.Helper()
	engine, err := New(q, e, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return engine
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, &fakeEmbedder{}, nil); err == nil {
		t.Error("expected error for nil querier")
	}
	if _, err := New(&fakeQuerier{}, nil, nil); err == nil {
		t.Error("expected error for nil embedder")
	}
}

func TestEngine_Add(t *testing.T) {
	t.Parallel()

	t.Run("success returns persisted document", func(t *testing.T) {
		t.Parallel()

		emb := &fakeEmbedder{}
		engine := newTestEngine(t, &fakeQuerier{}, emb)

		doc, err := engine.Add(context.Background(), "Go is a compiled language.", map[string]any{"source": "notes"})
		if err != nil {
			t.Fatalf("Add() error = %v", err)
		}
		if doc.ID == uuid.Nil {
			t.Error("expected server-assigned id")
		}
		if doc.Content != "Go is a compiled language." {
			t.Errorf("Content = %q", doc.Content)
		}
		if doc.Metadata["source"] != "notes" {
			t.Errorf("Metadata = %v", doc.Metadata)
		}
		if doc.CreatedAt.IsZero() {
			t.Error("expected server-assigned created_at")
		}
	})

	t.Run("empty content fails before any call", func(t *testing.T) {
		t.Parallel()

		emb := &fakeEmbedder{}
		engine := newTestEngine(t, &fakeQuerier{}, emb)

		_, err := engine.Add(context.Background(), "", nil)
		if !errors.Is(err, ErrEmptyContent) {
			t.Errorf("Add(\"\") error = %v, want ErrEmptyContent", err)
		}
		if emb.callCount() != 0 {
			t.Error("embedder must not be called for empty content")
		}
	})

	t.Run("embedding failure", func(t *testing.T) {
		t.Parallel()

		emb := &fakeEmbedder{embedFunc: func(context.Context, string) ([]float32, error) {
			return nil, errors.New("provider exploded")
		}}
		engine := newTestEngine(t, &fakeQuerier{}, emb)

		_, err := engine.Add(context.Background(), "content", nil)
		if !errors.Is(err, ErrEmbedding) {
			t.Errorf("Add() error = %v, want ErrEmbedding", err)
		}
	})

	t.Run("store failure", func(t *testing.T) {
		t.Parallel()

		q := &fakeQuerier{insertFunc: func(context.Context, store.InsertParams) (store.Document, error) {
			return store.Document{}, errors.New("connection lost")
		}}
		engine := newTestEngine(t, q, &fakeEmbedder{})

		_, err := engine.Add(context.Background(), "content", nil)
		if !errors.Is(err, ErrStore) {
			t.Errorf("Add() error = %v, want ErrStore", err)
		}
	})
}

func TestEngine_AddBatch(t *testing.T) {
	t.Parallel()

	t.Run("preserves input order despite completion order", func(t *testing.T) {
		t.Parallel()

		// Earlier items embed slower, so completion order is the
		// reverse of input order. Persisted order must still match
		// input order, with each vector next to its own content.
		emb := &fakeEmbedder{embedFunc: func(_ context.Context, text string) ([]float32, error) {
			n, _ := strconv.Atoi(text)
			time.Sleep(time.Duration(50-10*n) * time.Millisecond)
			return []float32{float32(n)}, nil
		}}
		q := &fakeQuerier{}
		engine := newTestEngine(t, q, emb)

		items := make([]Item, 4)
		for i := range items {
			items[i] = Item{Content: strconv.Itoa(i)}
		}

		docs, err := engine.AddBatch(context.Background(), items)
		if err != nil {
			t.Fatalf("AddBatch() error = %v", err)
		}
		if len(docs) != 4 {
			t.Fatalf("AddBatch() returned %d documents, want 4", len(docs))
		}
		for i, d := range docs {
			if d.Content != strconv.Itoa(i) {
				t.Errorf("document %d content = %q, want %q", i, d.Content, strconv.Itoa(i))
			}
		}

		if len(q.batchParams) != 1 {
			t.Fatalf("InsertBatch called %d times, want 1", len(q.batchParams))
		}
		for i, p := range q.batchParams[0] {
			if p.Content != strconv.Itoa(i) {
				t.Errorf("param %d content = %q, want %q", i, p.Content, strconv.Itoa(i))
			}
			if len(p.Embedding) != 1 || p.Embedding[0] != float32(i) {
				t.Errorf("param %d embedding = %v, want the vector for its own content", i, p.Embedding)
			}
		}
	})

	t.Run("empty input is a no-op", func(t *testing.T) {
		t.Parallel()

		q := &fakeQuerier{}
		engine := newTestEngine(t, q, &fakeEmbedder{})

		docs, err := engine.AddBatch(context.Background(), nil)
		if err != nil {
			t.Fatalf("AddBatch(nil) error = %v", err)
		}
		if len(docs) != 0 {
			t.Errorf("AddBatch(nil) returned %d documents, want 0", len(docs))
		}
		if len(q.batchParams) != 0 {
			t.Error("InsertBatch must not be called for empty input")
		}
	})

	t.Run("any empty content fails the whole batch upfront", func(t *testing.T) {
		t.Parallel()

		emb := &fakeEmbedder{}
		q := &fakeQuerier{}
		engine := newTestEngine(t, q, emb)

		_, err := engine.AddBatch(context.Background(), []Item{
			{Content: "fine"}, {Content: ""}, {Content: "also fine"},
		})
		if !errors.Is(err, ErrEmptyContent) {
			t.Errorf("AddBatch() error = %v, want ErrEmptyContent", err)
		}
		if emb.callCount() != 0 {
			t.Error("embedder must not be called when validation fails")
		}
	})

	t.Run("one embed failure aborts without persisting", func(t *testing.T) {
		t.Parallel()

		emb := &fakeEmbedder{embedFunc: func(_ context.Context, text string) ([]float32, error) {
			if text == "poison" {
				return nil, errors.New("provider exploded")
			}
			return []float32{1}, nil
		}}
		q := &fakeQuerier{}
		engine := newTestEngine(t, q, emb)

		_, err := engine.AddBatch(context.Background(), []Item{
			{Content: "ok"}, {Content: "poison"}, {Content: "ok too"},
		})
		if !errors.Is(err, ErrEmbedding) {
			t.Errorf("AddBatch() error = %v, want ErrEmbedding", err)
		}
		if len(q.batchParams) != 0 {
			t.Error("InsertBatch must not be called when an embed fails")
		}
	})

	t.Run("store failure is all-or-nothing", func(t *testing.T) {
		t.Parallel()

		q := &fakeQuerier{batchFunc: func(context.Context, []store.InsertParams) ([]store.Document, error) {
			return nil, errors.New("deadlock detected")
		}}
		engine := newTestEngine(t, q, &fakeEmbedder{})

		_, err := engine.AddBatch(context.Background(), []Item{{Content: "a"}, {Content: "b"}})
		if !errors.Is(err, ErrStore) {
			t.Errorf("AddBatch() error = %v, want ErrStore", err)
		}
	})
}

func TestEngine_Search(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		q := &fakeQuerier{}
		engine := newTestEngine(t, q, &fakeEmbedder{})

		if _, err := engine.Search(context.Background(), "query"); err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if q.thresholds[0] != DefaultSearchThreshold {
			t.Errorf("threshold = %f, want %f", q.thresholds[0], DefaultSearchThreshold)
		}
		if q.limits[0] != DefaultSearchLimit {
			t.Errorf("limit = %d, want %d", q.limits[0], DefaultSearchLimit)
		}
	})

	t.Run("options override defaults", func(t *testing.T) {
		t.Parallel()

		q := &fakeQuerier{}
		engine := newTestEngine(t, q, &fakeEmbedder{})

		_, err := engine.Search(context.Background(), "query", WithThreshold(0.9), WithLimit(20))
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if q.thresholds[0] != 0.9 {
			t.Errorf("threshold = %f, want 0.9", q.thresholds[0])
		}
		if q.limits[0] != 20 {
			t.Errorf("limit = %d, want 20", q.limits[0])
		}
	})

	t.Run("invalid options", func(t *testing.T) {
		t.Parallel()

		engine := newTestEngine(t, &fakeQuerier{}, &fakeEmbedder{})
		ctx := context.Background()

		if _, err := engine.Search(ctx, "q", WithThreshold(1.5)); err == nil {
			t.Error("expected error for threshold above 1")
		}
		if _, err := engine.Search(ctx, "q", WithThreshold(-0.1)); err == nil {
			t.Error("expected error for negative threshold")
		}
		if _, err := engine.Search(ctx, "q", WithLimit(0)); err == nil {
			t.Error("expected error for zero limit")
		}
	})

	t.Run("empty query", func(t *testing.T) {
		t.Parallel()

		emb := &fakeEmbedder{}
		engine := newTestEngine(t, &fakeQuerier{}, emb)

		_, err := engine.Search(context.Background(), "")
		if !errors.Is(err, ErrEmptyContent) {
			t.Errorf("Search(\"\") error = %v, want ErrEmptyContent", err)
		}
		if emb.callCount() != 0 {
			t.Error("embedder must not be called for empty query")
		}
	})

	t.Run("maps match rows to results", func(t *testing.T) {
		t.Parallel()

		id := uuid.New()
		q := &fakeQuerier{matchFunc: func(context.Context, []float32, float64, int) ([]store.MatchResult, error) {
			return []store.MatchResult{
				{ID: id, Content: "hit", Metadata: map[string]any{"k": "v"}, Similarity: 0.91},
			}, nil
		}}
		engine := newTestEngine(t, q, &fakeEmbedder{})

		results, err := engine.Search(context.Background(), "query")
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(results) != 1 {
			t.Fatalf("got %d results, want 1", len(results))
		}
		r := results[0]
		if r.ID != id || r.Content != "hit" || r.Similarity != 0.91 || r.Metadata["k"] != "v" {
			t.Errorf("result = %+v", r)
		}
	})

	t.Run("empty result is not an error", func(t *testing.T) {
		t.Parallel()

		engine := newTestEngine(t, &fakeQuerier{}, &fakeEmbedder{})

		results, err := engine.Search(context.Background(), "nothing like this")
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(results) != 0 {
			t.Errorf("got %d results, want 0", len(results))
		}
	})

	t.Run("store failure", func(t *testing.T) {
		t.Parallel()

		q := &fakeQuerier{matchFunc: func(context.Context, []float32, float64, int) ([]store.MatchResult, error) {
			return nil, errors.New("connection lost")
		}}
		engine := newTestEngine(t, q, &fakeEmbedder{})

		if _, err := engine.Search(context.Background(), "query"); !errors.Is(err, ErrStore) {
			t.Errorf("Search() error = %v, want ErrStore", err)
		}
	})
}

func TestEngine_HybridSearch(t *testing.T) {
	t.Parallel()

	candidates := func() []store.MatchResult {
		return []store.MatchResult{
			{ID: uuid.New(), Content: "a", Similarity: 0.95,
				Metadata: map[string]any{"source": "wiki", "tags": []any{"go", "db"}}},
			{ID: uuid.New(), Content: "b", Similarity: 0.90,
				Metadata: map[string]any{"source": "blog", "tags": []any{"go", "db"}}},
			{ID: uuid.New(), Content: "c", Similarity: 0.85,
				Metadata: map[string]any{"source": "wiki", "tags": []any{"go"}}},
		}
	}

	t.Run("wider defaults than plain search", func(t *testing.T) {
		t.Parallel()

		q := &fakeQuerier{}
		engine := newTestEngine(t, q, &fakeEmbedder{})

		if _, err := engine.HybridSearch(context.Background(), "query", nil); err != nil {
			t.Fatalf("HybridSearch() error = %v", err)
		}
		if q.thresholds[0] != DefaultHybridThreshold {
			t.Errorf("threshold = %f, want %f", q.thresholds[0], DefaultHybridThreshold)
		}
		if q.limits[0] != DefaultHybridLimit {
			t.Errorf("limit = %d, want %d", q.limits[0], DefaultHybridLimit)
		}
	})

	t.Run("exact-match post-filter", func(t *testing.T) {
		t.Parallel()

		q := &fakeQuerier{matchFunc: func(context.Context, []float32, float64, int) ([]store.MatchResult, error) {
			return candidates(), nil
		}}
		engine := newTestEngine(t, q, &fakeEmbedder{})

		results, err := engine.HybridSearch(context.Background(), "query", map[string]any{"source": "wiki"})
		if err != nil {
			t.Fatalf("HybridSearch() error = %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("got %d results, want 2", len(results))
		}
		if results[0].Content != "a" || results[1].Content != "c" {
			t.Errorf("results = %q, %q; similarity order must survive filtering",
				results[0].Content, results[1].Content)
		}
	})

	t.Run("filter values compare deeply", func(t *testing.T) {
		t.Parallel()

		q := &fakeQuerier{matchFunc: func(context.Context, []float32, float64, int) ([]store.MatchResult, error) {
			return candidates(), nil
		}}
		engine := newTestEngine(t, q, &fakeEmbedder{})

		results, err := engine.HybridSearch(context.Background(), "query",
			map[string]any{"tags": []any{"go", "db"}})
		if err != nil {
			t.Fatalf("HybridSearch() error = %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("got %d results, want 2", len(results))
		}
		for _, r := range results {
			if r.Content == "c" {
				t.Error("partial slice match must not pass the filter")
			}
		}
	})

	t.Run("missing key excludes result", func(t *testing.T) {
		t.Parallel()

		q := &fakeQuerier{matchFunc: func(context.Context, []float32, float64, int) ([]store.MatchResult, error) {
			return candidates(), nil
		}}
		engine := newTestEngine(t, q, &fakeEmbedder{})

		results, err := engine.HybridSearch(context.Background(), "query",
			map[string]any{"missing": "x"})
		if err != nil {
			t.Fatalf("HybridSearch() error = %v", err)
		}
		if len(results) != 0 {
			t.Errorf("got %d results, want 0 (no backfill either)", len(results))
		}
	})

	t.Run("nil filter returns all candidates", func(t *testing.T) {
		t.Parallel()

		q := &fakeQuerier{matchFunc: func(context.Context, []float32, float64, int) ([]store.MatchResult, error) {
			return candidates(), nil
		}}
		engine := newTestEngine(t, q, &fakeEmbedder{})

		results, err := engine.HybridSearch(context.Background(), "query", nil)
		if err != nil {
			t.Fatalf("HybridSearch() error = %v", err)
		}
		if len(results) != 3 {
			t.Errorf("got %d results, want 3", len(results))
		}
	})
}

func TestEngine_Delete(t *testing.T) {
	t.Parallel()

	t.Run("not found is success", func(t *testing.T) {
		t.Parallel()

		q := &fakeQuerier{deleteFunc: func(context.Context, uuid.UUID) error {
			return store.ErrNotFound
		}}
		engine := newTestEngine(t, q, &fakeEmbedder{})

		if err := engine.Delete(context.Background(), uuid.New()); err != nil {
			t.Errorf("Delete() of unknown id error = %v, want nil", err)
		}
	})

	t.Run("store failure propagates", func(t *testing.T) {
		t.Parallel()

		q := &fakeQuerier{deleteFunc: func(context.Context, uuid.UUID) error {
			return fmt.Errorf("connection lost")
		}}
		engine := newTestEngine(t, q, &fakeEmbedder{})

		if err := engine.Delete(context.Background(), uuid.New()); !errors.Is(err, ErrStore) {
			t.Errorf("Delete() error = %v, want ErrStore", err)
		}
	})
}
