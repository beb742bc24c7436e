package runtime

import (
	"context"
	"time"

	"github.com/aretw0/tollgate/pkg/domain"
)

func (e *Engine) base(id string, typ domain.EventType) domain.EventBase {
	return domain.EventBase{Timestamp: time.Now(), Type: typ, ConversationID: id}
}

func (e *Engine) emitStepEnter(ctx context.Context, id string, step domain.StepID) {
	if e.hooks.OnStepEnter == nil {
		return
	}
	e.hooks.OnStepEnter(ctx, &domain.StepEvent{
		EventBase: e.base(id, domain.EventStepEnter),
		Step:      step,
	})
}

func (e *Engine) emitStepLeave(ctx context.Context, id string, step, next domain.StepID, d time.Duration, err error) {
	if e.hooks.OnStepLeave == nil {
		return
	}
	e.hooks.OnStepLeave(ctx, &domain.StepEvent{
		EventBase: e.base(id, domain.EventStepLeave),
		Step:      step,
		Next:      next,
		Duration:  d,
		Err:       err,
	})
}

func (e *Engine) emitToolCall(ctx context.Context, id string, call domain.ToolCall) {
	if e.hooks.OnToolCall == nil {
		return
	}
	e.hooks.OnToolCall(ctx, &domain.ToolEvent{
		EventBase: e.base(id, domain.EventToolCall),
		CallID:    call.ID,
		ToolName:  call.Name,
		Input:     call.Args,
	})
}

func (e *Engine) emitToolReturn(ctx context.Context, id string, call domain.ToolCall, output string, isErr bool, d time.Duration) {
	if e.hooks.OnToolReturn == nil {
		return
	}
	e.hooks.OnToolReturn(ctx, &domain.ToolEvent{
		EventBase: e.base(id, domain.EventToolReturn),
		CallID:    call.ID,
		ToolName:  call.Name,
		Output:    output,
		IsError:   isErr,
		Duration:  d,
	})
}

func (e *Engine) emitSuspend(ctx context.Context, cp *domain.Checkpoint) {
	if e.hooks.OnSuspend == nil {
		return
	}
	e.hooks.OnSuspend(ctx, &domain.SuspendEvent{
		EventBase: e.base(cp.ConversationID, domain.EventSuspend),
		Pending:   cp.Log.PendingCalls(),
	})
}
