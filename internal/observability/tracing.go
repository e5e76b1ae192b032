// Package observability provides OpenTelemetry integration for distributed
// tracing.
//
// Traces are exported via OTLP HTTP to a local collector (default
// localhost:4318). The collector handles authentication, buffering, and
// forwarding to whatever backend is configured; the application never holds
// backend credentials. The span processor is registered on Genkit's
// TracerProvider, so every generation and embedding call is traced without
// extra instrumentation.
package observability

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/firebase/genkit/go/core/tracing"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/lumenlabs/lumen/internal/config"
)

// defaultCollectorHost is the conventional local OTLP HTTP endpoint.
const defaultCollectorHost = "localhost:4318"

// shutdownTimeout bounds the final trace flush during teardown.
const shutdownTimeout = 5 * time.Second

// SetupTracing configures OTLP trace export and returns a shutdown
// function. Must run before Genkit initialization so the TracerProvider
// is ready.
//
// Tracing failures never break startup: a collector that cannot be
// reached just disables export.
func SetupTracing(ctx context.Context, cfg config.TracingConfig, logger *slog.Logger) func() {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Enabled {
		return func() {}
	}

	host := cfg.AgentHost
	if host == "" {
		host = defaultCollectorHost
	}

	// Set OTEL env vars for Genkit's TracerProvider to pick up.
	// SAFETY: os.Setenv is not concurrent-safe, but this runs exactly once
	// during startup, before goroutines are spawned.
	if cfg.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName)
	}
	if cfg.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+cfg.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(host),
		otlptracehttp.WithInsecure(), // local collector, no TLS
	)
	if err != nil {
		logger.Warn("creating trace exporter, tracing disabled", "error", err)
		return func() {}
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("tracing enabled",
		"collector", host,
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
	)

	shutdown := tracing.TracerProvider().Shutdown

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}
