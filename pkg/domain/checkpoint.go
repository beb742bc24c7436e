package domain

import (
	"fmt"
	"time"
)

// StepID names a step of the execution graph.
type StepID string

const (
	StepNone             StepID = ""                  // Idle: turn complete, waiting for a human message
	StepGenerateResponse StepID = "generate_response" // Invoke the model with the full log
	StepRunTool          StepID = "run_tool"          // Execute the approved tool calls
	StepApprovalGate     StepID = "approval_gate"     // Suspension point, needs an external decision
)

// String renders StepNone as "none" for logs and APIs.
func (s StepID) String() string {
	if s == StepNone {
		return "none"
	}
	return string(s)
}

// Valid reports whether s is one of the known steps (including none).
func (s StepID) Valid() bool {
	switch s {
	case StepNone, StepGenerateResponse, StepRunTool, StepApprovalGate:
		return true
	}
	return false
}

// Checkpoint is the durable snapshot of a conversation: its message log plus
// the step that must run next. Checkpoints are replaced, never merged.
type Checkpoint struct {
	ConversationID string `json:"conversation_id" yaml:"conversation_id"`

	// Log holds every turn of the conversation in causal order.
	Log MessageLog `json:"messages" yaml:"messages"`

	// Next is the step to run when execution resumes (StepNone when idle).
	Next StepID `json:"next,omitempty" yaml:"next,omitempty"`

	// Version increases by one with every persisted step.
	// Stores use it for compare-and-swap.
	Version int64 `json:"version" yaml:"version"`

	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`

	// Metadata holds host-level annotations (store envelopes, labels).
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// NewCheckpoint creates an idle checkpoint with an empty log.
func NewCheckpoint(conversationID string) *Checkpoint {
	return &Checkpoint{
		ConversationID: conversationID,
		Next:           StepNone,
		UpdatedAt:      time.Now().UTC(),
	}
}

// Suspended reports whether the conversation is waiting at the approval gate.
func (c *Checkpoint) Suspended() bool {
	return c.Next == StepApprovalGate
}

// Stalled reports whether a runnable step was left pending, which only
// happens when a model or tool call failed after an earlier step persisted.
func (c *Checkpoint) Stalled() bool {
	return c.Next == StepGenerateResponse || c.Next == StepRunTool
}

// Clone returns a deep copy so the caller can mutate it freely.
func (c *Checkpoint) Clone() *Checkpoint {
	cp := *c
	cp.Log = c.Log.Clone()
	if c.Metadata != nil {
		cp.Metadata = make(map[string]string, len(c.Metadata))
		for k, v := range c.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// CheckInvariant verifies that a checkpoint parked at the approval gate has an
// agent turn as its last entry with at least one unanswered tool call.
func (c *Checkpoint) CheckInvariant() error {
	if !c.Next.Valid() {
		return fmt.Errorf("unknown next step %q", c.Next)
	}
	if c.Next != StepApprovalGate {
		return nil
	}
	last, err := c.Log.Last()
	if err != nil {
		return fmt.Errorf("approval gate with empty log: %w", err)
	}
	if last.Kind != TurnAgent {
		return fmt.Errorf("approval gate after %s turn, want agent turn", last.Kind)
	}
	if len(c.Log.PendingCalls()) == 0 {
		return fmt.Errorf("approval gate without pending tool calls")
	}
	return nil
}
