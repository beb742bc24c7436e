package tollgate

import (
	"time"

	"github.com/aretw0/tollgate/pkg/domain"
)

// Snapshot is a read-only view of a conversation.
type Snapshot struct {
	ConversationID string            `json:"conversation_id" yaml:"conversation_id"`
	Turns          []domain.Turn     `json:"turns" yaml:"turns"`
	Suspended      bool              `json:"is_waiting_for_approval" yaml:"is_waiting_for_approval"`
	Next           domain.StepID     `json:"next" yaml:"next"`
	Pending        []domain.ToolCall `json:"pending,omitempty" yaml:"pending,omitempty"`
	Version        int64             `json:"version" yaml:"version"`
	UpdatedAt      time.Time         `json:"updated_at" yaml:"updated_at"`
}

func newSnapshot(cp *domain.Checkpoint) *Snapshot {
	s := &Snapshot{
		ConversationID: cp.ConversationID,
		Turns:          cp.Log.All(),
		Suspended:      cp.Suspended(),
		Next:           cp.Next,
		Version:        cp.Version,
		UpdatedAt:      cp.UpdatedAt,
	}
	if s.Suspended {
		s.Pending = cp.Log.PendingCalls()
	}
	return s
}

// Last returns the most recent turn, or domain.ErrEmptyLog.
func (s *Snapshot) Last() (domain.Turn, error) {
	if len(s.Turns) == 0 {
		return domain.Turn{}, domain.ErrEmptyLog
	}
	return s.Turns[len(s.Turns)-1], nil
}
