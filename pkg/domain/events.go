package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStepEnter  EventType = "step_enter"
	EventStepLeave  EventType = "step_leave"
	EventToolCall   EventType = "tool_call"
	EventToolReturn EventType = "tool_return"
	EventSuspend    EventType = "suspend"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp      time.Time `json:"timestamp"`
	Type           EventType `json:"type"`
	ConversationID string    `json:"conversation_id"`
}

// StepEvent represents entry into or exit from a step.
type StepEvent struct {
	EventBase
	Step     StepID        `json:"step"`
	Next     StepID        `json:"next,omitempty"`     // Leave only
	Duration time.Duration `json:"duration,omitempty"` // Leave only
	Err      error         `json:"-"`
}

// ToolEvent represents a tool execution.
type ToolEvent struct {
	EventBase
	CallID   string         `json:"call_id"`
	ToolName string         `json:"tool_name"`
	Input    map[string]any `json:"input,omitempty"`
	Output   string         `json:"output,omitempty"`
	IsError  bool           `json:"is_error,omitempty"`
	Duration time.Duration  `json:"duration,omitempty"`
}

// SuspendEvent is emitted when a conversation parks at the approval gate.
type SuspendEvent struct {
	EventBase
	Pending []ToolCall `json:"pending"`
}

// LifecycleHooks defines callbacks for engine observability.
// Any field may be nil.
type LifecycleHooks struct {
	OnStepEnter  func(context.Context, *StepEvent)
	OnStepLeave  func(context.Context, *StepEvent)
	OnToolCall   func(context.Context, *ToolEvent)
	OnToolReturn func(context.Context, *ToolEvent)
	OnSuspend    func(context.Context, *SuspendEvent)
}

// Merge combines hooks so that both sets are invoked, h first.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnStepEnter:  chain(h.OnStepEnter, other.OnStepEnter),
		OnStepLeave:  chain(h.OnStepLeave, other.OnStepLeave),
		OnToolCall:   chain(h.OnToolCall, other.OnToolCall),
		OnToolReturn: chain(h.OnToolReturn, other.OnToolReturn),
		OnSuspend:    chain(h.OnSuspend, other.OnSuspend),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
