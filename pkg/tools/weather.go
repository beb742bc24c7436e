// Package tools holds the built-in tools shipped with the tollgate binary.
package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/tollgate/pkg/domain"
	"github.com/aretw0/tollgate/pkg/registry"
	"github.com/mitchellh/mapstructure"
)

// WeatherSearchName is the name the model uses to call the weather tool.
const WeatherSearchName = "weather_search"

// WeatherArgs are the arguments accepted by weather_search.
type WeatherArgs struct {
	City string `mapstructure:"city"`
}

// WeatherSearchSpec describes weather_search to the model.
var WeatherSearchSpec = domain.ToolSpec{
	Name:        WeatherSearchName,
	Description: "Search for the current weather in a city.",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"city": map[string]any{
				"type":        "string",
				"description": "Name of the city",
			},
		},
		"required": []string{"city"},
	},
}

// WeatherSearch is a stub forecast: every city is sunny.
func WeatherSearch(ctx context.Context, args map[string]any) (string, error) {
	var in WeatherArgs
	if err := decode(args, &in); err != nil {
		return "", err
	}
	if strings.TrimSpace(in.City) == "" {
		return "", fmt.Errorf("weather_search: city is required")
	}
	return "Sunny!", nil
}

// RegisterBuiltins installs every built-in tool in reg.
func RegisterBuiltins(reg *registry.Registry) error {
	return reg.Register(WeatherSearchSpec, WeatherSearch)
}

// decode maps loosely typed model arguments onto a typed struct.
func decode(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(args); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}
