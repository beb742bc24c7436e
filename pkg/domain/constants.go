package domain

// TurnKind identifies who produced a turn.
type TurnKind string

const (
	TurnHuman TurnKind = "human" // Free text typed by the reviewer/user
	TurnAgent TurnKind = "agent" // Model output, optionally requesting tools
	TurnTool  TurnKind = "tool"  // Result of a single tool call
)

// ToolStatus is the outcome recorded on a tool turn.
type ToolStatus string

const (
	ToolStatusOK    ToolStatus = "ok"
	ToolStatusError ToolStatus = "error"
)

// RejectionPayload is the content of the synthetic tool turn appended when a
// reviewer rejects a pending call.
const RejectionPayload = "Tool call rejected"
