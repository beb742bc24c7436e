package domain

import (
	"fmt"
	"time"
)

// Turn is one immutable entry of a conversation's message log.
// Which fields are populated depends on Kind.
type Turn struct {
	Kind    TurnKind `json:"kind" yaml:"kind"`
	Content string   `json:"content" yaml:"content"`

	// Agent turns only.
	ToolCalls []ToolCall `json:"tool_calls,omitempty" yaml:"tool_calls,omitempty"`

	// Tool turns only.
	ToolCallID string     `json:"tool_call_id,omitempty" yaml:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty" yaml:"tool_name,omitempty"`
	Status     ToolStatus `json:"status,omitempty" yaml:"status,omitempty"`
	Rejected   bool       `json:"rejected,omitempty" yaml:"rejected,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// HumanTurn creates a free-text turn from the human side.
func HumanTurn(text string) Turn {
	return Turn{Kind: TurnHuman, Content: text}
}

// AgentTurn creates a model response, optionally requesting tool calls.
func AgentTurn(text string, calls ...ToolCall) Turn {
	return Turn{Kind: TurnAgent, Content: text, ToolCalls: calls}
}

// ToolResultTurn records the outcome of a tool call.
func ToolResultTurn(call ToolCall, content string, status ToolStatus) Turn {
	return Turn{
		Kind:       TurnTool,
		Content:    content,
		ToolCallID: call.ID,
		ToolName:   call.Name,
		Status:     status,
	}
}

// RejectionTurn is the synthetic tool result used when a reviewer rejects a call.
func RejectionTurn(call ToolCall) Turn {
	t := ToolResultTurn(call, RejectionPayload, ToolStatusError)
	t.Rejected = true
	return t
}

// IsRejection reports whether the turn is a reviewer rejection record.
func (t Turn) IsRejection() bool {
	return t.Kind == TurnTool && t.Rejected
}

// HasToolCalls reports whether an agent turn requests at least one tool.
func (t Turn) HasToolCalls() bool {
	return t.Kind == TurnAgent && len(t.ToolCalls) > 0
}

// Validate checks the structural rules of a turn before it enters a log.
func (t Turn) Validate() error {
	switch t.Kind {
	case TurnHuman:
		if len(t.ToolCalls) > 0 || t.ToolCallID != "" {
			return fmt.Errorf("%w: human turn carries tool fields", ErrInvalidTurn)
		}
	case TurnAgent:
		seen := make(map[string]struct{}, len(t.ToolCalls))
		for _, call := range t.ToolCalls {
			if call.ID == "" || call.Name == "" {
				return fmt.Errorf("%w: tool call requires id and name", ErrInvalidTurn)
			}
			if _, dup := seen[call.ID]; dup {
				return fmt.Errorf("%w: duplicate tool call id %q", ErrInvalidTurn, call.ID)
			}
			seen[call.ID] = struct{}{}
		}
	case TurnTool:
		if t.ToolCallID == "" {
			return fmt.Errorf("%w: tool turn without tool_call_id", ErrInvalidTurn)
		}
		if t.Status != ToolStatusOK && t.Status != ToolStatusError {
			return fmt.Errorf("%w: unknown tool status %q", ErrInvalidTurn, t.Status)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidTurn, t.Kind)
	}
	return nil
}

// clone copies the slices and maps owned by the turn.
func (t Turn) clone() Turn {
	if t.ToolCalls == nil {
		return t
	}
	calls := make([]ToolCall, len(t.ToolCalls))
	for i, c := range t.ToolCalls {
		calls[i] = c
		if c.Args != nil {
			args := make(map[string]any, len(c.Args))
			for k, v := range c.Args {
				args[k] = v
			}
			calls[i].Args = args
		}
	}
	t.ToolCalls = calls
	return t
}
