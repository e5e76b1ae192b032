// Package app wires the application together.
//
// Construction is plain hand-wired dependency injection in Setup: every
// component receives its collaborators explicitly, in dependency order.
// App owns the lifecycle of everything it builds; Close releases resources
// in reverse order of construction.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumenlabs/lumen/internal/config"
	"github.com/lumenlabs/lumen/internal/dispatch"
	"github.com/lumenlabs/lumen/internal/knowledge"
	"github.com/lumenlabs/lumen/internal/llm"
	"github.com/lumenlabs/lumen/internal/rag"
	"github.com/lumenlabs/lumen/internal/store"
)

// App holds the fully wired application.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	DBPool *pgxpool.Pool
	Genkit *genkit.Genkit

	Embedder   *llm.Embedder
	Generator  *llm.Generator
	Store      *store.Client
	Knowledge  *knowledge.Engine
	RAG        *rag.Engine
	Dispatcher *dispatch.Dispatcher

	dbCleanup   func()
	otelCleanup func()
}

// Close releases all resources. Safe to call on a partially built App.
func (a *App) Close() {
	if a.dbCleanup != nil {
		a.dbCleanup()
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
}
