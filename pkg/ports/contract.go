package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/tollgate/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunCheckpointStoreContract runs a suite of tests to verify that a
// CheckpointStore implementation adheres to the defined interface contract.
func RunCheckpointStoreContract(t *testing.T, store CheckpointStore) {
	ctx := context.Background()
	conversationID := "contract-test-" + time.Now().Format("20060102150405.000000000")

	newSuspended := func(id string) *domain.Checkpoint {
		cp := domain.NewCheckpoint(id)
		cp.Log.Append(domain.HumanTurn("What's the weather in Paris?"))
		cp.Log.Append(domain.AgentTurn("", domain.ToolCall{
			ID:   "call-1",
			Name: "weather_search",
			Args: map[string]any{"city": "Paris"},
		}))
		cp.Next = domain.StepApprovalGate
		cp.Version = 1
		return cp
	}

	t.Run("Save and Load", func(t *testing.T) {
		cp := newSuspended(conversationID)

		err := store.Save(ctx, cp)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, conversationID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, conversationID, loaded.ConversationID)
		assert.Equal(t, domain.StepApprovalGate, loaded.Next)
		assert.Equal(t, int64(1), loaded.Version)
		require.Equal(t, 2, loaded.Log.Len())

		turns := loaded.Log.All()
		assert.Equal(t, domain.TurnHuman, turns[0].Kind)
		assert.Equal(t, "What's the weather in Paris?", turns[0].Content)
		require.Len(t, turns[1].ToolCalls, 1)
		assert.Equal(t, "weather_search", turns[1].ToolCalls[0].Name)
		assert.Equal(t, "Paris", turns[1].ToolCalls[0].Args["city"])
		assert.NoError(t, loaded.CheckInvariant())
	})

	t.Run("Loaded Checkpoint Is Isolated", func(t *testing.T) {
		loaded, err := store.Load(ctx, conversationID)
		require.NoError(t, err)

		loaded.Log.Append(domain.HumanTurn("not persisted"))
		loaded.Next = domain.StepNone

		again, err := store.Load(ctx, conversationID)
		require.NoError(t, err)
		assert.Equal(t, 2, again.Log.Len())
		assert.Equal(t, domain.StepApprovalGate, again.Next)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+conversationID)
		assert.ErrorIs(t, err, domain.ErrConversationNotFound)
	})

	t.Run("CompareAndSwap", func(t *testing.T) {
		id := conversationID + "-cas"
		defer func() { _ = store.Delete(ctx, id) }()

		first := domain.NewCheckpoint(id)
		first.Version = 1
		require.NoError(t, store.CompareAndSwap(ctx, first, 0), "create with expected=0")

		dup := domain.NewCheckpoint(id)
		dup.Version = 1
		assert.ErrorIs(t, store.CompareAndSwap(ctx, dup, 0), domain.ErrVersionConflict, "second create must conflict")

		next := first.Clone()
		next.Log.Append(domain.HumanTurn("hello"))
		next.Next = domain.StepGenerateResponse
		next.Version = 2
		require.NoError(t, store.CompareAndSwap(ctx, next, 1))

		stale := first.Clone()
		stale.Version = 2
		assert.ErrorIs(t, store.CompareAndSwap(ctx, stale, 1), domain.ErrVersionConflict, "stale writer must conflict")

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int64(2), loaded.Version)
		assert.Equal(t, 1, loaded.Log.Len())
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, newSuspended(conversationID))
		require.NoError(t, err)

		err = store.Delete(ctx, conversationID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, conversationID)
		assert.ErrorIs(t, err, domain.ErrConversationNotFound, "Load after Delete should return ErrConversationNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := conversationID + "-1"
		id2 := conversationID + "-2"
		_ = store.Save(ctx, domain.NewCheckpoint(id1))
		_ = store.Save(ctx, domain.NewCheckpoint(id2))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}
