package cli

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/tollgate/internal/config"
	"github.com/aretw0/tollgate/internal/logging"
	"github.com/aretw0/tollgate/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func approveWeather(t *testing.T, app *App) string {
	t.Helper()
	ctx := context.Background()
	id, err := app.Engine.Start(ctx)
	require.NoError(t, err)
	snap, err := app.Engine.SendMessage(ctx, id, "weather in Paris")
	require.NoError(t, err)
	require.True(t, snap.Suspended)
	snap, err = app.Engine.Approve(ctx, id)
	require.NoError(t, err)
	require.False(t, snap.Suspended)
	return id
}

func TestBuild_Backends(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name   string
		mutate func(*config.Config, string)
	}{
		{"memory", func(c *config.Config, dir string) {}},
		{"file", func(c *config.Config, dir string) {
			c.Store.Backend = config.BackendFile
			c.Store.Path = dir
		}},
		{"sqlite", func(c *config.Config, dir string) {
			c.Store.Backend = config.BackendSQLite
			c.Store.Path = dir
		}},
		{"redis with distributed lock", func(c *config.Config, dir string) {
			c.Store.Backend = config.BackendRedis
			c.Store.RedisAddr = mr.Addr()
			c.Lock.Distributed = true
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewDefaultConfig()
			cfg.Tools.File = ""
			tt.mutate(cfg, t.TempDir())
			require.NoError(t, cfg.Validate())

			app, err := Build(context.Background(), cfg, logging.NewNop())
			require.NoError(t, err)
			defer app.Close()

			id := approveWeather(t, app)

			cp, err := app.Store.Load(context.Background(), id)
			require.NoError(t, err)
			assert.Equal(t, 4, cp.Log.Len())
		})
	}
}

func TestBuild_RedisUnreachable(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Store.Backend = config.BackendRedis
	cfg.Store.RedisAddr = "127.0.0.1:1"

	_, err := Build(context.Background(), cfg, logging.NewNop())
	assert.ErrorContains(t, err, "connecting to redis")
}

func TestBuild_EncryptionAndRedaction(t *testing.T) {
	dir := t.TempDir()
	cfg := config.NewDefaultConfig()
	cfg.Tools.File = ""
	cfg.Store.Backend = config.BackendFile
	cfg.Store.Path = dir
	cfg.Store.EncryptionKey = strings.Repeat("0f", 32)
	cfg.Store.Redact = []string{"city"}

	app, err := Build(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	id := approveWeather(t, app)

	raw, err := os.ReadFile(filepath.Join(dir, id+".json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), middleware.EnvelopeKey)
	assert.NotContains(t, string(raw), "Paris")

	cp, err := app.Store.Load(context.Background(), id)
	require.NoError(t, err)
	turns := cp.Log.All()
	assert.Equal(t, middleware.Mask, turns[1].ToolCalls[0].Args["city"])
}

func TestBuild_ProcessTools(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	dir := t.TempDir()
	toolsFile := filepath.Join(dir, "tools.yaml")
	content := `
tools:
  - name: echo_tool
    command: sh
    args: ["-c", "echo hi"]
    description: says hi
`
	require.NoError(t, os.WriteFile(toolsFile, []byte(content), 0644))

	cfg := config.NewDefaultConfig()
	cfg.Tools.File = toolsFile

	app, err := Build(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)

	var names []string
	for _, spec := range app.Engine.Tools() {
		names = append(names, spec.Name)
	}
	assert.Equal(t, []string{"echo_tool", "weather_search"}, names)
}

func TestBuild_MetricsRegistered(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Tools.File = ""
	app, err := Build(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	approveWeather(t, app)

	families, err := app.Registry.Gather()
	require.NoError(t, err)
	var found bool
	for _, f := range families {
		if f.GetName() == "tollgate_tool_calls_total" {
			found = true
		}
	}
	assert.True(t, found)
}
