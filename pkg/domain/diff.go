package domain

// CheckpointDiff represents the changes between two checkpoints.
// It is designed to be serialized to JSON for partial updates on the client.
type CheckpointDiff struct {
	// ConversationID is always present to identify the target.
	ConversationID string `json:"conversation_id"`

	// Version of the newer checkpoint.
	Version int64 `json:"version"`

	// Next is set when the next-step pointer moved.
	Next *StepID `json:"next,omitempty"`

	// Suspended is set when the approval flag flipped.
	Suspended *bool `json:"suspended,omitempty"`

	// Appended holds the turns added since the older checkpoint.
	// The log is append-only, so a prefix is all that can be shared.
	Appended []Turn `json:"appended,omitempty"`
}

// Diff calculates the difference between oldCP and newCP.
// If oldCP is nil, it returns a diff representing the entire newCP (initial load).
// It returns nil when nothing observable changed.
func Diff(oldCP, newCP *Checkpoint) *CheckpointDiff {
	if newCP == nil {
		return nil
	}

	diff := &CheckpointDiff{
		ConversationID: newCP.ConversationID,
		Version:        newCP.Version,
	}

	if oldCP == nil || oldCP.Next != newCP.Next {
		next := newCP.Next
		diff.Next = &next
	}
	if oldCP == nil || oldCP.Suspended() != newCP.Suspended() {
		suspended := newCP.Suspended()
		diff.Suspended = &suspended
	}

	oldLen := 0
	if oldCP != nil {
		oldLen = oldCP.Log.Len()
	}
	if turns := newCP.Log.All(); len(turns) > oldLen {
		diff.Appended = turns[oldLen:]
	}

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *CheckpointDiff) IsEmpty() bool {
	return d.Next == nil && d.Suspended == nil && len(d.Appended) == 0
}
