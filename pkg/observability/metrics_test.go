package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/aretw0/tollgate"
	"github.com/aretw0/tollgate/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordsConversation(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	eng := tollgate.New(tollgate.WithLifecycleHooks(metrics.Hooks()))
	ctx := context.Background()

	id, err := eng.Start(ctx)
	require.NoError(t, err)
	_, err = eng.SendMessage(ctx, id, "weather in Paris")
	require.NoError(t, err)
	_, err = eng.Approve(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.Steps.WithLabelValues("generate_response")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Steps.WithLabelValues("run_tool")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Steps.WithLabelValues("approval_gate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ToolCalls.WithLabelValues("weather_search", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Suspensions))
	assert.Equal(t, 0, testutil.CollectAndCount(metrics.StepErrors))
}

func TestLoggingHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	eng := tollgate.New(tollgate.WithLifecycleHooks(observability.LoggingHooks(logger)))
	ctx := context.Background()
	id, err := eng.Start(ctx)
	require.NoError(t, err)
	_, err = eng.SendMessage(ctx, id, "weather in Oslo")
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "step_enter")
	assert.Contains(t, out, "awaiting_approval")
	assert.Contains(t, out, "weather_search")
}
