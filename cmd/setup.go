package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/lumenlabs/lumen/internal/app"
	"github.com/lumenlabs/lumen/internal/config"
)

// withApp loads configuration, wires the application, and runs fn with a
// context that is cancelled on SIGINT/SIGTERM. Every subcommand goes through
// this so resource setup and teardown happen in exactly one place.
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, newLogger())
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	return fn(ctx, a)
}
