package domain

import (
	"encoding/json"
	"time"
)

// MessageLog is the append-only, ordered record of a conversation.
// The zero value is an empty log ready to use.
// There is no way to remove or edit a turn once appended.
type MessageLog struct {
	turns []Turn
}

// NewMessageLog builds a log from existing turns, preserving their order.
func NewMessageLog(turns ...Turn) *MessageLog {
	l := &MessageLog{}
	for _, t := range turns {
		l.Append(t)
	}
	return l
}

// Append adds a turn at the end of the log and returns its position.
// CreatedAt is stamped if the caller left it empty.
func (l *MessageLog) Append(t Turn) int {
	t = t.clone()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	l.turns = append(l.turns, t)
	return len(l.turns) - 1
}

// All returns the turns in causal order. The slice is a copy.
func (l *MessageLog) All() []Turn {
	out := make([]Turn, len(l.turns))
	for i, t := range l.turns {
		out[i] = t.clone()
	}
	return out
}

// Len returns the number of turns.
func (l *MessageLog) Len() int {
	return len(l.turns)
}

// Last returns the most recent turn, or ErrEmptyLog.
func (l *MessageLog) Last() (Turn, error) {
	if len(l.turns) == 0 {
		return Turn{}, ErrEmptyLog
	}
	return l.turns[len(l.turns)-1].clone(), nil
}

// LastAgent returns the most recent agent turn and its position.
func (l *MessageLog) LastAgent() (Turn, int, bool) {
	for i := len(l.turns) - 1; i >= 0; i-- {
		if l.turns[i].Kind == TurnAgent {
			return l.turns[i].clone(), i, true
		}
	}
	return Turn{}, -1, false
}

// PendingCalls returns the tool calls of the most recent agent turn that have
// no tool turn answering them yet, in request order.
func (l *MessageLog) PendingCalls() []ToolCall {
	agent, pos, ok := l.LastAgent()
	if !ok || len(agent.ToolCalls) == 0 {
		return nil
	}

	answered := make(map[string]struct{})
	for _, t := range l.turns[pos+1:] {
		if t.Kind == TurnTool {
			answered[t.ToolCallID] = struct{}{}
		}
	}

	var pending []ToolCall
	for _, call := range agent.ToolCalls {
		if _, done := answered[call.ID]; !done {
			pending = append(pending, call)
		}
	}
	return pending
}

// Clone returns an independent copy of the log.
func (l *MessageLog) Clone() MessageLog {
	return MessageLog{turns: l.All()}
}

// MarshalJSON encodes the log as a JSON array of turns.
func (l MessageLog) MarshalJSON() ([]byte, error) {
	if l.turns == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l.turns)
}

// UnmarshalJSON decodes a JSON array of turns, keeping their order.
func (l *MessageLog) UnmarshalJSON(data []byte) error {
	var turns []Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return err
	}
	if len(turns) == 0 {
		turns = nil
	}
	l.turns = turns
	return nil
}

// MarshalYAML renders the log as a plain sequence of turns.
func (l MessageLog) MarshalYAML() (any, error) {
	if l.turns == nil {
		return []Turn{}, nil
	}
	return l.turns, nil
}
