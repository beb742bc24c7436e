package runtime

import "github.com/aretw0/tollgate/pkg/domain"

// RouteAfterGenerate decides what follows a model response: suspend for
// review when the agent asked for tools, otherwise the turn is complete.
func RouteAfterGenerate(log *domain.MessageLog) domain.StepID {
	agent, _, ok := log.LastAgent()
	if !ok || !agent.HasToolCalls() {
		return domain.StepNone
	}
	return domain.StepApprovalGate
}

// RouteAfterGate resolves a suspension. If nothing was added after the agent
// turn under review, the calls were approved and run_tool follows. Anything
// appended after it (a rejection record, a human reply) sends the
// conversation back to the model.
func RouteAfterGate(log *domain.MessageLog) domain.StepID {
	last, err := log.Last()
	if err != nil {
		return domain.StepGenerateResponse
	}
	if last.Kind == domain.TurnAgent {
		return domain.StepRunTool
	}
	return domain.StepGenerateResponse
}

// RouteAfterTool always returns control to the model.
func RouteAfterTool(*domain.MessageLog) domain.StepID {
	return domain.StepGenerateResponse
}

// Route dispatches on the step that just executed.
func Route(step domain.StepID, log *domain.MessageLog) domain.StepID {
	switch step {
	case domain.StepGenerateResponse:
		return RouteAfterGenerate(log)
	case domain.StepApprovalGate:
		return RouteAfterGate(log)
	case domain.StepRunTool:
		return RouteAfterTool(log)
	default:
		return domain.StepNone
	}
}

// Edges lists every transition the router can produce, for introspection.
func Edges() []Edge {
	return []Edge{
		{From: domain.StepGenerateResponse, To: domain.StepApprovalGate, Label: "tool calls"},
		{From: domain.StepGenerateResponse, To: domain.StepNone, Label: "final answer"},
		{From: domain.StepApprovalGate, To: domain.StepRunTool, Label: "approve"},
		{From: domain.StepApprovalGate, To: domain.StepGenerateResponse, Label: "reject / reply"},
		{From: domain.StepRunTool, To: domain.StepGenerateResponse},
	}
}

// Edge is a labeled transition of the step graph.
type Edge struct {
	From  domain.StepID
	To    domain.StepID
	Label string
}
