package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/tollgate/pkg/domain"
)

const tmpPrefix = "tmp-"

// Store implements ports.CheckpointStore using the local filesystem.
// It stores one JSON file per conversation in a configured directory.
// CompareAndSwap is serialized per process; run a single writer per directory.
type Store struct {
	BasePath string

	mu sync.Mutex // guards read-compare-write in CompareAndSwap
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".tollgate/conversations".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".tollgate", "conversations")
	}
	return &Store{BasePath: basePath}
}

func (s *Store) path(conversationID string) (string, error) {
	if conversationID == "" {
		return "", fmt.Errorf("conversationID cannot be empty")
	}
	if filepath.Base(conversationID) != conversationID || strings.HasPrefix(conversationID, ".") {
		return "", fmt.Errorf("invalid conversationID %q", conversationID)
	}
	return filepath.Join(s.BasePath, conversationID+".json"), nil
}

// Save persists the checkpoint to a JSON file atomically.
// It writes to a temporary file first, syncs via fsync, and then renames it to the destination.
func (s *Store) Save(ctx context.Context, cp *domain.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(cp)
}

// CompareAndSwap writes cp only if the file on disk still holds version expected.
func (s *Store) CompareAndSwap(ctx context.Context, cp *domain.Checkpoint, expected int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.read(cp.ConversationID)
	switch {
	case errors.Is(err, domain.ErrConversationNotFound):
		if expected != 0 {
			return domain.ErrVersionConflict
		}
	case err != nil:
		return err
	case expected == 0 || current.Version != expected:
		return domain.ErrVersionConflict
	}
	return s.write(cp)
}

func (s *Store) write(cp *domain.Checkpoint) error {
	destPath, err := s.path(cp.ConversationID)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to ensure checkpoint directory: %w", err)
	}

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	// Same directory as the destination so the rename stays on one filesystem.
	tmpFile, err := os.CreateTemp(s.BasePath, tmpPrefix+cp.ConversationID+"-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath) // no-op once renamed
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file to checkpoint: %w", err)
	}
	return nil
}

// Load retrieves the checkpoint from its JSON file.
func (s *Store) Load(ctx context.Context, conversationID string) (*domain.Checkpoint, error) {
	return s.read(conversationID)
}

func (s *Store) read(conversationID string) (*domain.Checkpoint, error) {
	filePath, err := s.path(conversationID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	var cp domain.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}

// Delete removes the checkpoint file.
func (s *Store) Delete(ctx context.Context, conversationID string) error {
	filePath, err := s.path(conversationID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint file: %w", err)
	}
	return nil
}

// List returns all stored conversation IDs.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, tmpPrefix) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}
