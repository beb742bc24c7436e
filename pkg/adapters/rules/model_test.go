package rules_test

import (
	"context"
	"regexp"
	"testing"

	"github.com/aretw0/tollgate/pkg/adapters/rules"
	"github.com/aretw0/tollgate/pkg/domain"
	"github.com/aretw0/tollgate/pkg/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedID() string { return "call_1" }

var weather = []domain.ToolSpec{tools.WeatherSearchSpec}

func TestModel_RequestsMatchingTool(t *testing.T) {
	m := rules.New(rules.WithIDGenerator(fixedID))

	turn, err := m.Generate(context.Background(), []domain.Turn{domain.HumanTurn("What's the weather in San Francisco?")}, weather)
	require.NoError(t, err)
	require.True(t, turn.HasToolCalls())
	assert.Equal(t, domain.ToolCall{ID: "call_1", Name: "weather_search", Args: map[string]any{"city": "San Francisco"}}, turn.ToolCalls[0])
}

func TestModel_IgnoresUnavailableTools(t *testing.T) {
	m := rules.New()

	turn, err := m.Generate(context.Background(), []domain.Turn{domain.HumanTurn("weather in Paris")}, nil)
	require.NoError(t, err)
	assert.False(t, turn.HasToolCalls())
	assert.Equal(t, "You said: weather in Paris", turn.Content)
}

func TestModel_SummarizesToolResults(t *testing.T) {
	m := rules.New()
	call := domain.ToolCall{ID: "c1", Name: "weather_search"}

	turn, err := m.Generate(context.Background(), []domain.Turn{
		domain.HumanTurn("weather in Paris"),
		domain.AgentTurn("", call),
		domain.ToolResultTurn(call, "Sunny!", domain.ToolStatusOK),
	}, weather)
	require.NoError(t, err)
	assert.Equal(t, "weather_search says: Sunny!", turn.Content)
}

func TestModel_AcknowledgesRejection(t *testing.T) {
	m := rules.New()
	call := domain.ToolCall{ID: "c1", Name: "weather_search"}

	turn, err := m.Generate(context.Background(), []domain.Turn{
		domain.HumanTurn("weather in Paris"),
		domain.AgentTurn("", call),
		domain.RejectionTurn(call),
		domain.HumanTurn("never mind"),
	}, weather)
	require.NoError(t, err)
	assert.False(t, turn.HasToolCalls())
	assert.Equal(t, "Okay, I won't run weather_search. You said: never mind", turn.Content)
}

func TestModel_CustomRules(t *testing.T) {
	m := rules.New(
		rules.WithIDGenerator(fixedID),
		rules.WithRules(rules.Rule{Pattern: regexp.MustCompile(`^deploy (\w+)$`), Tool: "deploy", Arg: "service"}),
	)

	turn, err := m.Generate(context.Background(), []domain.Turn{domain.HumanTurn("deploy api")}, []domain.ToolSpec{{Name: "deploy"}})
	require.NoError(t, err)
	require.Len(t, turn.ToolCalls, 1)
	assert.Equal(t, "api", turn.ToolCalls[0].Args["service"])
}

func TestModel_EmptyLogGreets(t *testing.T) {
	turn, err := rules.New().Generate(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.TurnAgent, turn.Kind)
}
