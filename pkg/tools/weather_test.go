package tools_test

import (
	"context"
	"testing"

	"github.com/aretw0/tollgate/pkg/domain"
	"github.com/aretw0/tollgate/pkg/registry"
	"github.com/aretw0/tollgate/pkg/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeatherSearch(t *testing.T) {
	tests := []struct {
		name    string
		args    map[string]any
		want    string
		wantErr string
	}{
		{name: "any city is sunny", args: map[string]any{"city": "Paris"}, want: "Sunny!"},
		{name: "missing city", args: map[string]any{}, wantErr: "city is required"},
		{name: "unexpected argument", args: map[string]any{"city": "Rome", "units": "C"}, wantErr: "invalid arguments"},
		{name: "weakly typed city", args: map[string]any{"city": 42}, want: "Sunny!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tools.WeatherSearch(context.Background(), tt.args)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegisterBuiltins(t *testing.T) {
	reg := registry.NewRegistry()
	require.NoError(t, tools.RegisterBuiltins(reg))

	out, err := reg.Execute(context.Background(), domain.ToolCall{ID: "c1", Name: tools.WeatherSearchName, Args: map[string]any{"city": "SF"}})
	require.NoError(t, err)
	assert.Equal(t, "Sunny!", out)
	assert.Equal(t, []domain.ToolSpec{tools.WeatherSearchSpec}, reg.Specs())
}
