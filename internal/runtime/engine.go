package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/tollgate/internal/logging"
	"github.com/aretw0/tollgate/pkg/domain"
	"github.com/aretw0/tollgate/pkg/ports"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxSteps bounds the steps executed by a single RunTurn.
const DefaultMaxSteps = 32

const tracerName = "github.com/aretw0/tollgate/internal/runtime"

// SaveFunc persists a checkpoint produced by a step. expected is the version
// the stored checkpoint must still have. It must return only once the write
// is durable.
type SaveFunc func(ctx context.Context, cp *domain.Checkpoint, expected int64) error

// Engine is the core state machine runner. It is stateless between calls:
// everything it needs lives in the checkpoint passed to RunTurn.
type Engine struct {
	model    ports.Model
	tools    ports.ToolExecutor
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	tracer   trace.Tracer
	maxSteps int
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMaxSteps sets the step budget of a single RunTurn.
func WithMaxSteps(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(tracer trace.Tracer) EngineOption {
	return func(e *Engine) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// NewEngine creates a new engine. tools may be nil, in which case every tool
// call resolves to an unknown-tool error turn.
func NewEngine(model ports.Model, tools ports.ToolExecutor, opts ...EngineOption) *Engine {
	e := &Engine{
		model:    model,
		tools:    tools,
		logger:   logging.NewNop(),
		tracer:   otel.Tracer(tracerName),
		maxSteps: DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunTurn appends inject to the log of cp and drives the graph from cp.Next
// until the conversation suspends at the approval gate or completes.
//
// Every executed step is persisted through save before the next one starts.
// The injected turns are persisted together with the first successful step,
// so a failure before that leaves the stored checkpoint untouched.
//
// RunTurn returns the last persisted checkpoint, which on error is the one the
// caller can retry from. cp itself is never mutated.
func (e *Engine) RunTurn(ctx context.Context, cp *domain.Checkpoint, inject []domain.Turn, save SaveFunc) (*domain.Checkpoint, error) {
	persisted := cp.Clone()
	work := cp.Clone()

	for _, t := range inject {
		if err := t.Validate(); err != nil {
			return persisted, err
		}
		work.Log.Append(t)
	}

	step := work.Next
	switch step {
	case domain.StepNone:
		step = domain.StepGenerateResponse
	case domain.StepApprovalGate:
		step = e.passGate(ctx, work)
	}

	for executed := 0; ; executed++ {
		if executed >= e.maxSteps {
			e.logger.Error("step budget exceeded",
				"conversation_id", work.ConversationID,
				"max_steps", e.maxSteps,
			)
			return persisted, fmt.Errorf("%w: %d steps", domain.ErrStepBudgetExceeded, e.maxSteps)
		}
		if err := ctx.Err(); err != nil {
			return persisted, err
		}

		next, err := e.execute(ctx, work, step)
		if err != nil {
			return persisted, err
		}

		work.Next = next
		work.Version++
		work.UpdatedAt = time.Now().UTC()

		if next == domain.StepApprovalGate {
			e.assertSuspendable(work)
		}

		if err := save(ctx, work.Clone(), work.Version-1); err != nil {
			return persisted, fmt.Errorf("failed to persist checkpoint after %s: %w", step, err)
		}
		persisted = work.Clone()

		e.logger.Debug("step persisted",
			"conversation_id", work.ConversationID,
			"step", step,
			"next", next,
			"version", work.Version,
		)

		switch next {
		case domain.StepApprovalGate:
			e.emitSuspend(ctx, work)
			return persisted, nil
		case domain.StepNone:
			return persisted, nil
		}
		step = next
	}
}

// execute runs one step against work and returns the routed next step.
func (e *Engine) execute(ctx context.Context, work *domain.Checkpoint, step domain.StepID) (next domain.StepID, err error) {
	ctx, span := e.tracer.Start(ctx, "tollgate.step."+string(step),
		trace.WithAttributes(
			attribute.String("conversation.id", work.ConversationID),
			attribute.String("step", string(step)),
		),
	)
	start := time.Now()
	e.emitStepEnter(ctx, work.ConversationID, step)

	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.String("next", next.String()))
		}
		span.End()
		e.emitStepLeave(ctx, work.ConversationID, step, next, time.Since(start), err)
	}()

	switch step {
	case domain.StepGenerateResponse:
		err = e.generateResponse(ctx, work)
	case domain.StepRunTool:
		err = e.runTool(ctx, work)
	default:
		panic(domain.InvariantViolation{
			ConversationID: work.ConversationID,
			Reason:         fmt.Sprintf("step %s is not executable", step),
		})
	}
	if err != nil {
		var mie *domain.ModelInvocationError
		if errors.As(err, &mie) {
			e.logger.Error("model invocation failed",
				"conversation_id", work.ConversationID,
				"err", mie.Err,
			)
		}
		return domain.StepNone, err
	}
	return Route(step, &work.Log), nil
}

// passGate resolves the approval gate without persisting it on its own.
func (e *Engine) passGate(ctx context.Context, work *domain.Checkpoint) domain.StepID {
	e.emitStepEnter(ctx, work.ConversationID, domain.StepApprovalGate)
	next := RouteAfterGate(&work.Log)
	e.emitStepLeave(ctx, work.ConversationID, domain.StepApprovalGate, next, 0, nil)
	return next
}

// assertSuspendable panics if work cannot legally park at the gate.
func (e *Engine) assertSuspendable(work *domain.Checkpoint) {
	if err := work.CheckInvariant(); err != nil {
		panic(domain.InvariantViolation{ConversationID: work.ConversationID, Reason: err.Error()})
	}
}

// Steps returns the executable steps and the suspension point, in graph order.
func Steps() []domain.StepID {
	return []domain.StepID{domain.StepGenerateResponse, domain.StepApprovalGate, domain.StepRunTool}
}
