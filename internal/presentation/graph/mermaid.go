package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/tollgate/internal/runtime"
	"github.com/aretw0/tollgate/pkg/domain"
)

// endNode is the Mermaid ID used for StepNone, which has no name of its own.
const endNode = "idle"

// Overlay contains conversation state to highlight on the graph.
type Overlay struct {
	// Visited steps, in execution order or any order.
	Visited []domain.StepID
	// Current is the step the conversation will execute next.
	Current domain.StepID
	// Suspended marks the gate as the active node even when Current is set.
	Suspended bool
}

// GenerateMermaid produces a Mermaid flowchart of the step graph.
// It applies semantic styling:
// - Idle: ((Circle))
// - Gate: {Rhombus}
// - Tool execution: [[Subroutine]]
// - Model call: [Rectangle]
func GenerateMermaid(edges []runtime.Edge, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	seen := make(map[domain.StepID]bool)
	var order []domain.StepID
	for _, e := range edges {
		for _, s := range []domain.StepID{e.From, e.To} {
			if !seen[s] {
				seen[s] = true
				order = append(order, s)
			}
		}
	}

	for _, step := range order {
		opener, closer := "[", "]"
		switch step {
		case domain.StepNone:
			opener, closer = "((", "))"
		case domain.StepApprovalGate:
			opener, closer = "{", "}"
		case domain.StepRunTool:
			opener, closer = "[[", "]]"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", nodeID(step), opener, nodeID(step), closer)
	}

	for _, e := range edges {
		arrow := "-->"
		if e.Label != "" {
			arrow = fmt.Sprintf("-- \"%s\" -->", strings.ReplaceAll(e.Label, "\"", "'"))
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", nodeID(e.From), arrow, nodeID(e.To))
	}

	if overlay != nil {
		sb.WriteString("\n    %% State Overlay\n")
		sb.WriteString("    classDef visited fill:#e0f7fa,stroke:#006064,stroke-width:2px;\n")
		sb.WriteString("    classDef current fill:#fff9c4,stroke:#fbc02d,stroke-width:4px;\n")

		current := overlay.Current
		if overlay.Suspended {
			current = domain.StepApprovalGate
		}
		for _, v := range overlay.Visited {
			if v == current || !seen[v] {
				continue
			}
			fmt.Fprintf(&sb, "    class %s visited\n", nodeID(v))
		}
		if seen[current] {
			fmt.Fprintf(&sb, "    class %s current\n", nodeID(current))
		}
	}

	return sb.String()
}

// OverlayFor derives the overlay of a checkpoint: every step kind that
// produced a turn counts as visited.
func OverlayFor(cp *domain.Checkpoint) *Overlay {
	o := &Overlay{Current: cp.Next, Suspended: cp.Suspended()}
	for _, t := range cp.Log.All() {
		switch t.Kind {
		case domain.TurnAgent:
			o.Visited = append(o.Visited, domain.StepGenerateResponse)
			if len(t.ToolCalls) > 0 {
				o.Visited = append(o.Visited, domain.StepApprovalGate)
			}
		case domain.TurnTool:
			o.Visited = append(o.Visited, domain.StepRunTool)
		}
	}
	return o
}

func nodeID(step domain.StepID) string {
	if step == domain.StepNone {
		return endNode
	}
	return string(step)
}
