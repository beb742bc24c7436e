package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/tollgate/pkg/domain"
)

// generateResponse invokes the model with the whole log and appends its turn.
func (e *Engine) generateResponse(ctx context.Context, cp *domain.Checkpoint) error {
	var specs []domain.ToolSpec
	if e.tools != nil {
		specs = e.tools.Specs()
	}

	turn, err := e.model.Generate(ctx, cp.Log.All(), specs)
	if err != nil {
		return &domain.ModelInvocationError{ConversationID: cp.ConversationID, Err: err}
	}
	if turn.Kind == "" {
		turn.Kind = domain.TurnAgent
	}
	if turn.Kind != domain.TurnAgent {
		return &domain.ModelInvocationError{
			ConversationID: cp.ConversationID,
			Err:            fmt.Errorf("%w: model returned a %s turn", domain.ErrInvalidTurn, turn.Kind),
		}
	}
	if err := turn.Validate(); err != nil {
		return &domain.ModelInvocationError{ConversationID: cp.ConversationID, Err: err}
	}

	cp.Log.Append(turn)
	return nil
}

// runTool executes the pending calls of the last agent turn in request order.
// A failing or unknown tool becomes an error tool turn; later calls still run.
func (e *Engine) runTool(ctx context.Context, cp *domain.Checkpoint) error {
	for _, call := range cp.Log.PendingCalls() {
		if err := ctx.Err(); err != nil {
			return err
		}

		e.emitToolCall(ctx, cp.ConversationID, call)
		start := time.Now()

		var (
			output string
			err    error
		)
		if e.tools == nil {
			err = fmt.Errorf("%w: %s", domain.ErrUnknownTool, call.Name)
		} else {
			output, err = e.tools.Execute(ctx, call)
		}

		if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return err
		}

		status := domain.ToolStatusOK
		if err != nil {
			status = domain.ToolStatusError
			output = fmt.Sprintf("Error: %v", err)
			e.logger.Warn("tool call failed",
				"conversation_id", cp.ConversationID,
				"tool", call.Name,
				"call_id", call.ID,
				"err", err,
			)
		}

		cp.Log.Append(domain.ToolResultTurn(call, output, status))
		e.emitToolReturn(ctx, cp.ConversationID, call, output, err != nil, time.Since(start))
	}
	return nil
}
