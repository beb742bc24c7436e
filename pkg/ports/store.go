package ports

import (
	"context"

	"github.com/aretw0/tollgate/pkg/domain"
)

// CheckpointStore defines the interface for persisting conversation checkpoints.
// This allows for durable execution, enabling "Suspend & Resume" workflows
// across process restarts. Implementations must finish writing before
// Save/CompareAndSwap return.
type CheckpointStore interface {
	// Load retrieves the latest checkpoint of a conversation.
	// Returns domain.ErrConversationNotFound if the conversation does not exist.
	Load(ctx context.Context, conversationID string) (*domain.Checkpoint, error)

	// Save persists the checkpoint unconditionally, replacing any previous one.
	Save(ctx context.Context, cp *domain.Checkpoint) error

	// CompareAndSwap persists cp only if the stored checkpoint still has
	// version expected (0 meaning "must not exist yet").
	// Returns domain.ErrVersionConflict otherwise.
	CompareAndSwap(ctx context.Context, cp *domain.Checkpoint, expected int64) error

	// Delete removes the checkpoint of a conversation.
	Delete(ctx context.Context, conversationID string) error

	// List returns the IDs of all stored conversations.
	List(ctx context.Context) ([]string, error)
}
