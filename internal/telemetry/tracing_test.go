package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_Disabled(t *testing.T) {
	t.Setenv("OTEL_SDK_DISABLED", "true")

	shutdown, err := Init(context.Background(), nil)

	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestInit_UnsupportedProtocolDegrades(t *testing.T) {
	t.Setenv("OTEL_SDK_DISABLED", "false")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "carrier-pigeon")

	shutdown, err := Init(context.Background(), nil)

	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestSampler(t *testing.T) {
	assert.Contains(t, Sampler("always_on", "").Description(), "AlwaysOn")
	assert.Contains(t, Sampler("always_off", "").Description(), "AlwaysOff")
	assert.Contains(t, Sampler("traceidratio", "0.25").Description(), "0.25")
	assert.Contains(t, Sampler("", "").Description(), "ParentBased")
}
