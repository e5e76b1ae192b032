package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumenlabs/lumen/internal/config"
	"github.com/lumenlabs/lumen/internal/log"
)

func TestSetupTracing_Disabled(t *testing.T) {
	cfg := config.TracingConfig{Enabled: false}

	shutdown := SetupTracing(context.Background(), cfg, log.NewNop())
	require.NotNil(t, shutdown)
	shutdown()
}

func TestSetupTracing_DefaultCollectorHost(t *testing.T) {
	cfg := config.TracingConfig{
		Enabled:     true,
		Environment: "test",
		ServiceName: "lumen-test",
	}

	// Export is lazy, so setup succeeds without a running collector.
	shutdown := SetupTracing(context.Background(), cfg, log.NewNop())
	require.NotNil(t, shutdown)
	shutdown()
}

func TestSetupTracing_CustomCollectorHost(t *testing.T) {
	cfg := config.TracingConfig{
		Enabled:     true,
		AgentHost:   "collector.internal:4318",
		Environment: "staging",
		ServiceName: "lumen-staging",
	}

	shutdown := SetupTracing(context.Background(), cfg, log.NewNop())
	require.NotNil(t, shutdown)
	shutdown()
}
