package runtime_test

import (
	"context"
	"testing"

	"github.com/aretw0/tollgate/internal/runtime"
	"github.com/aretw0/tollgate/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_LifecycleHooks(t *testing.T) {
	var entered, left []domain.StepID
	var toolCalls, toolReturns []string
	var suspended [][]domain.ToolCall

	hooks := domain.LifecycleHooks{
		OnStepEnter: func(ctx context.Context, e *domain.StepEvent) {
			entered = append(entered, e.Step)
		},
		OnStepLeave: func(ctx context.Context, e *domain.StepEvent) {
			left = append(left, e.Next)
		},
		OnToolCall: func(ctx context.Context, e *domain.ToolEvent) {
			toolCalls = append(toolCalls, e.CallID)
		},
		OnToolReturn: func(ctx context.Context, e *domain.ToolEvent) {
			toolReturns = append(toolReturns, e.Output)
		},
		OnSuspend: func(ctx context.Context, e *domain.SuspendEvent) {
			suspended = append(suspended, e.Pending)
		},
	}

	model := &scriptedModel{responses: []func([]domain.Turn) (domain.Turn, error){
		reply(domain.AgentTurn("", weatherCall("c1"))),
		reply(domain.AgentTurn("Sunny.")),
	}}
	engine := runtime.NewEngine(model, newRegistry(t), runtime.WithLifecycleHooks(hooks))
	rec := &recorder{current: fresh("hooks")}
	ctx := context.Background()

	cp, err := engine.RunTurn(ctx, rec.current, []domain.Turn{domain.HumanTurn("weather?")}, rec.save)
	require.NoError(t, err)
	_, err = engine.RunTurn(ctx, cp, nil, rec.save)
	require.NoError(t, err)

	assert.Equal(t, []domain.StepID{
		domain.StepGenerateResponse,
		domain.StepApprovalGate,
		domain.StepRunTool,
		domain.StepGenerateResponse,
	}, entered)
	assert.Equal(t, []domain.StepID{
		domain.StepApprovalGate,
		domain.StepRunTool,
		domain.StepGenerateResponse,
		domain.StepNone,
	}, left)
	assert.Equal(t, []string{"c1"}, toolCalls)
	assert.Equal(t, []string{"Sunny!"}, toolReturns)
	require.Len(t, suspended, 1)
	assert.Equal(t, "c1", suspended[0][0].ID)
}
