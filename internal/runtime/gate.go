package runtime

import (
	"fmt"

	"github.com/aretw0/tollgate/pkg/domain"
)

// RejectionPolicy selects which pending calls a human reply rejects.
type RejectionPolicy int

const (
	// RejectFirst rejects only the first pending call of the agent turn.
	RejectFirst RejectionPolicy = iota
	// RejectAll rejects every pending call of the agent turn.
	RejectAll
)

// String implements fmt.Stringer.
func (p RejectionPolicy) String() string {
	if p == RejectAll {
		return "reject_all"
	}
	return "reject_first"
}

// PrepareApproval checks that cp is parked at the gate. Approval injects
// nothing: the gate routes to run_tool because the agent turn is still last.
// A conversation interrupted after the gate is pointed at resume.
func PrepareApproval(cp *domain.Checkpoint) error {
	if cp.Stalled() {
		return fmt.Errorf("%w: step %s was interrupted, use resume to continue", domain.ErrNotSuspended, cp.Next)
	}
	if !cp.Suspended() {
		return fmt.Errorf("%w: next step is %s", domain.ErrNotSuspended, cp.Next)
	}
	return nil
}

// PrepareReply builds the turns injected by a human message. When cp is
// suspended the message doubles as a rejection, so rejection records for the
// pending calls come first.
func PrepareReply(cp *domain.Checkpoint, message string, policy RejectionPolicy) []domain.Turn {
	var turns []domain.Turn
	if cp.Suspended() {
		pending := cp.Log.PendingCalls()
		if policy == RejectFirst && len(pending) > 1 {
			pending = pending[:1]
		}
		for _, call := range pending {
			turns = append(turns, domain.RejectionTurn(call))
		}
	}
	return append(turns, domain.HumanTurn(message))
}
