package domain

import (
	"errors"
	"fmt"
)

// ErrConversationNotFound is returned when a conversation ID cannot be found in the store.
var ErrConversationNotFound = errors.New("conversation not found")

// ErrConversationExists is returned when starting a conversation whose ID is already taken.
var ErrConversationExists = errors.New("conversation already exists")

// ErrNotSuspended is returned by Approve when no tool call is waiting for review.
var ErrNotSuspended = errors.New("conversation is not waiting for approval")

// ErrNotStalled is returned by Resume when there is no interrupted step to re-run.
var ErrNotStalled = errors.New("conversation has no interrupted step")

// ErrEmptyLog is returned when the last turn is requested from an empty log.
var ErrEmptyLog = errors.New("message log is empty")

// ErrUnknownTool is returned when the agent requests a tool that is not registered.
var ErrUnknownTool = errors.New("unknown tool")

// ErrInvalidArguments is returned when a tool call does not match the tool's declared parameters.
var ErrInvalidArguments = errors.New("invalid tool arguments")

// ErrVersionConflict is returned by CompareAndSwap when the stored checkpoint moved on.
var ErrVersionConflict = errors.New("checkpoint version conflict")

// ErrStepBudgetExceeded is returned when a single turn runs more steps than allowed.
var ErrStepBudgetExceeded = errors.New("step budget exceeded")

// ErrInvalidTurn is returned when a turn breaks the structural rules of its kind.
var ErrInvalidTurn = errors.New("invalid turn")

// ErrInvalidInput is returned when human input is rejected before entering the log.
var ErrInvalidInput = errors.New("invalid input")

// ModelInvocationError wraps a failure of the model call.
// The checkpoint is left where it was, so the operation can be retried.
type ModelInvocationError struct {
	ConversationID string
	Err            error
}

func (e *ModelInvocationError) Error() string {
	return fmt.Sprintf("model invocation failed for conversation %s: %v", e.ConversationID, e.Err)
}

func (e *ModelInvocationError) Unwrap() error {
	return e.Err
}

// InvariantViolation is the panic value raised when the engine detects an
// impossible state. It signals a programming error and is never recovered.
type InvariantViolation struct {
	ConversationID string
	Reason         string
}

func (v InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violated in conversation %s: %s", v.ConversationID, v.Reason)
}
