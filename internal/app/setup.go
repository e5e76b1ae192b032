package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"

	"github.com/lumenlabs/lumen/db"
	"github.com/lumenlabs/lumen/internal/config"
	"github.com/lumenlabs/lumen/internal/dispatch"
	"github.com/lumenlabs/lumen/internal/knowledge"
	"github.com/lumenlabs/lumen/internal/llm"
	"github.com/lumenlabs/lumen/internal/observability"
	"github.com/lumenlabs/lumen/internal/rag"
	"github.com/lumenlabs/lumen/internal/store"
)

// generateRateLimit keeps provider calls under typical free-tier quotas.
const (
	generateRatePerSecond = 2
	generateBurst         = 4
)

// Setup builds the application in dependency order: tracing, database,
// Genkit, clients, engines, dispatcher. On failure, everything already
// initialized is released before returning.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{Config: cfg, Logger: logger}
	defer func() {
		if retErr != nil {
			a.Close()
		}
	}()

	// Tracing must be ready before Genkit creates its TracerProvider spans.
	a.otelCleanup = observability.SetupTracing(ctx, cfg.Tracing, logger)

	pool, dbCleanup, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool
	a.dbCleanup = dbCleanup

	g, err := provideGenkit(ctx)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	a.Embedder, err = provideEmbedder(g, cfg, logger)
	if err != nil {
		return nil, err
	}

	a.Generator, err = provideGenerator(g, cfg, logger)
	if err != nil {
		return nil, err
	}

	a.Store, err = store.New(pool, secondsOr(cfg.StoreTimeoutSeconds, store.DefaultTimeout), logger)
	if err != nil {
		return nil, fmt.Errorf("creating store client: %w", err)
	}

	a.Knowledge, err = knowledge.New(a.Store, a.Embedder, logger)
	if err != nil {
		return nil, fmt.Errorf("creating knowledge engine: %w", err)
	}

	a.RAG, err = rag.New(a.Knowledge, a.Generator, rag.Config{
		Threshold:  float64(cfg.AnswerThreshold),
		MaxSources: cfg.AnswerMaxSources,
		Generation: llm.Options{
			Temperature: &cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating rag engine: %w", err)
	}

	a.Dispatcher = dispatch.New(
		dispatch.NewIngestAgent(a.Knowledge),
		dispatch.NewSearchAgent(a.Knowledge),
		dispatch.NewForgetAgent(a.Knowledge),
		dispatch.NewAnswerAgent(a.RAG),
		dispatch.NewChatAgent(a.Generator),
		logger,
	)

	return a, nil
}

// provideDBPool runs migrations and creates the connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, func(), error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, pool.Close, nil
}

// provideGenkit initializes Genkit with the Gemini provider.
// Call ordering in Setup ensures tracing is set up first.
func provideGenkit(ctx context.Context) (*genkit.Genkit, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit with gemini provider")
	}
	return g, nil
}

func provideEmbedder(g *genkit.Genkit, cfg *config.Config, logger *slog.Logger) (*llm.Embedder, error) {
	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}
	return llm.NewEmbedder(embedder, secondsOr(cfg.EmbedTimeoutSeconds, llm.DefaultEmbedTimeout), logger)
}

func provideGenerator(g *genkit.Genkit, cfg *config.Config, logger *slog.Logger) (*llm.Generator, error) {
	return llm.NewGenerator(g, llm.GeneratorConfig{
		ModelName:   "googleai/" + cfg.ModelName,
		Timeout:     secondsOr(cfg.GenerateTimeoutSeconds, llm.DefaultGenerateTimeout),
		RateLimiter: rate.NewLimiter(rate.Limit(generateRatePerSecond), generateBurst),
	}, logger)
}

func secondsOr(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
