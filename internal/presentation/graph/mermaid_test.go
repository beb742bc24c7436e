package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/tollgate/internal/presentation/graph"
	"github.com/aretw0/tollgate/internal/runtime"
	"github.com/aretw0/tollgate/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestGenerateMermaid_Shapes(t *testing.T) {
	out := graph.GenerateMermaid(runtime.Edges(), nil)

	assert.True(t, strings.HasPrefix(out, "graph TD\n"))
	for _, want := range []string{
		`idle(("idle"))`,
		`approval_gate{"approval_gate"}`,
		`run_tool[["run_tool"]]`,
		`generate_response["generate_response"]`,
		`generate_response -- "tool calls" --> approval_gate`,
		`approval_gate -- "approve" --> run_tool`,
		`run_tool --> generate_response`,
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "classDef")
}

func TestGenerateMermaid_Overlay(t *testing.T) {
	cp := domain.NewCheckpoint("c1")
	cp.Log.Append(domain.Turn{Kind: domain.TurnHuman, Content: "weather in Paris"})
	cp.Log.Append(domain.Turn{Kind: domain.TurnAgent, ToolCalls: []domain.ToolCall{
		{ID: "call_1", Name: "weather_search", Args: map[string]any{"city": "Paris"}},
	}})
	cp.Next = domain.StepApprovalGate

	out := graph.GenerateMermaid(runtime.Edges(), graph.OverlayFor(cp))

	assert.Contains(t, out, "class generate_response visited")
	assert.Contains(t, out, "class approval_gate current")
	assert.NotContains(t, out, "class approval_gate visited")
	assert.NotContains(t, out, "class run_tool")
}

func TestGenerateMermaid_EscapesLabels(t *testing.T) {
	edges := []runtime.Edge{{From: domain.StepRunTool, To: domain.StepNone, Label: `say "hi"`}}
	out := graph.GenerateMermaid(edges, nil)
	assert.Contains(t, out, `run_tool -- "say 'hi'" --> idle`)
}
