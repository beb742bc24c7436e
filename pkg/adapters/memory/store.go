package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/tollgate/pkg/domain"
)

// Store implements ports.CheckpointStore in memory.
// Safe for concurrent use. Contents are lost when the process exits.
type Store struct {
	data map[string]*domain.Checkpoint
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.Checkpoint),
	}
}

// Load retrieves a copy of the checkpoint so the caller can't mutate store
// state directly by pointer.
func (s *Store) Load(ctx context.Context, conversationID string) (*domain.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp, ok := s.data[conversationID]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	return cp.Clone(), nil
}

// Save stores a deep copy of the checkpoint, similar to serialization.
func (s *Store) Save(ctx context.Context, cp *domain.Checkpoint) error {
	copied := cp.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[cp.ConversationID] = copied
	return nil
}

// CompareAndSwap stores cp only if the current version matches expected.
func (s *Store) CompareAndSwap(ctx context.Context, cp *domain.Checkpoint, expected int64) error {
	copied := cp.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.data[cp.ConversationID]
	switch {
	case expected == 0 && ok:
		return domain.ErrVersionConflict
	case expected != 0 && (!ok || existing.Version != expected):
		return domain.ErrVersionConflict
	}
	s.data[cp.ConversationID] = copied
	return nil
}

// Delete removes the checkpoint.
func (s *Store) Delete(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, conversationID)
	return nil
}

// List returns stored conversation IDs in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
