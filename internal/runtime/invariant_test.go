package runtime

import (
	"testing"

	"github.com/aretw0/tollgate/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssertSuspendable(t *testing.T) {
	e := NewEngine(nil, nil)

	bad := domain.NewCheckpoint("broken")
	bad.Log.Append(domain.HumanTurn("hi"))
	bad.Next = domain.StepApprovalGate

	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a panic")
		v, ok := r.(domain.InvariantViolation)
		require.True(t, ok)
		assert.Equal(t, "broken", v.ConversationID)
		assert.Contains(t, v.Reason, "human")
	}()
	e.assertSuspendable(bad)
}

func TestEdgesCoverRouting(t *testing.T) {
	for _, edge := range Edges() {
		assert.True(t, edge.From.Valid())
		assert.True(t, edge.To.Valid())
	}
	assert.Len(t, Steps(), 3)
}
