package telemetry

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/inertialabsxyz/movement/pkg/config"
)

func TestInitTracing_Disabled(t *testing.T) {
	ctx := context.Background()

	cfg := &config.InstrumentationConfig{
		Tracing: false,
	}

	shutdown, err := InitTracing(ctx, cfg, "movement", zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	// shutdown should be a no-op
	require.NoError(t, shutdown(ctx))
}

func TestInitTracing_NilConfig(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), nil, "movement", zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestInitTracing_EnabledWithoutEndpoint(t *testing.T) {
	ctx := context.Background()

	cfg := &config.InstrumentationConfig{
		Tracing:         true,
		TracingEndpoint: "", // missing endpoint
	}

	shutdown, err := InitTracing(ctx, cfg, "movement", zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	// should return no-op shutdown when disabled
	require.NoError(t, shutdown(ctx))
}

func TestInitTracing_Enabled(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	cfg := config.DefaultInstrumentationConfig()
	cfg.Tracing = true
	cfg.TracingSampleRate = 3

	shutdown, err := InitTracing(context.Background(), cfg, "movement", zerolog.Nop())
	require.NoError(t, err)
	require.NotSame(t, prev, otel.GetTracerProvider())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}

func TestEndpointURL(t *testing.T) {
	require.Equal(t, "http://localhost:4318", endpointURL("localhost:4318"))
	require.Equal(t, "https://collector:4318", endpointURL("https://collector:4318"))
}

func TestClamp(t *testing.T) {
	require.Equal(t, 0.0, clamp(-1, 0, 1))
	require.Equal(t, 0.5, clamp(0.5, 0, 1))
	require.Equal(t, 1.0, clamp(3, 0, 1))
}
