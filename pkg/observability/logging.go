package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/tollgate/pkg/domain"
)

// LoggingHooks logs every lifecycle event at debug level, and failed steps
// and suspensions at warn and info.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepEnter: func(ctx context.Context, e *domain.StepEvent) {
			logger.DebugContext(ctx, "step_enter",
				"conversation_id", e.ConversationID,
				"step", e.Step,
			)
		},
		OnStepLeave: func(ctx context.Context, e *domain.StepEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "step_failed",
					"conversation_id", e.ConversationID,
					"step", e.Step,
					"err", e.Err,
				)
				return
			}
			logger.DebugContext(ctx, "step_leave",
				"conversation_id", e.ConversationID,
				"step", e.Step,
				"next", e.Next,
				"duration", e.Duration,
			)
		},
		OnToolCall: func(ctx context.Context, e *domain.ToolEvent) {
			logger.DebugContext(ctx, "tool_call",
				"conversation_id", e.ConversationID,
				"tool_name", e.ToolName,
				"call_id", e.CallID,
			)
		},
		OnToolReturn: func(ctx context.Context, e *domain.ToolEvent) {
			logger.DebugContext(ctx, "tool_return",
				"conversation_id", e.ConversationID,
				"tool_name", e.ToolName,
				"call_id", e.CallID,
				"is_error", e.IsError,
			)
		},
		OnSuspend: func(ctx context.Context, e *domain.SuspendEvent) {
			names := make([]string, len(e.Pending))
			for i, call := range e.Pending {
				names[i] = call.Name
			}
			logger.InfoContext(ctx, "awaiting_approval",
				"conversation_id", e.ConversationID,
				"tools", names,
			)
		},
	}
}
