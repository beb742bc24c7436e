package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/tollgate/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// farFuture is the index score of checkpoints without TTL (2100-01-01).
const farFuture = 4102444800

// Store implements ports.CheckpointStore using Redis.
// Each conversation is one JSON string key; a sorted set indexes them for List.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL sets the expiration for checkpoints. Zero means no expiration.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for checkpoints.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "tollgate:conversation:",
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

// Client exposes the underlying client so a Locker can share the connection pool.
func (s *Store) Client() *backend.Client {
	return s.client
}

func (s *Store) key(conversationID string) string {
	return s.prefix + conversationID
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

func (s *Store) score() float64 {
	if s.ttl == 0 {
		return farFuture
	}
	return float64(time.Now().Add(s.ttl).Unix())
}

func (s *Store) queueWrite(ctx context.Context, pipe backend.Pipeliner, cp *domain.Checkpoint, data []byte) {
	pipe.Set(ctx, s.key(cp.ConversationID), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  s.score(),
		Member: cp.ConversationID,
	})
}

// Save persists the checkpoint to Redis.
func (s *Store) Save(ctx context.Context, cp *domain.Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	pipe := s.client.TxPipeline()
	s.queueWrite(ctx, pipe, cp, data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// CompareAndSwap uses WATCH/MULTI so the write aborts if another client
// touched the key between the version check and the update.
func (s *Store) CompareAndSwap(ctx context.Context, cp *domain.Checkpoint, expected int64) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	key := s.key(cp.ConversationID)
	err = s.client.Watch(ctx, func(tx *backend.Tx) error {
		current, err := s.versionOf(ctx, tx, key)
		if err != nil {
			return err
		}
		if current != expected {
			return domain.ErrVersionConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
			s.queueWrite(ctx, pipe, cp, data)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrVersionConflict), errors.Is(err, backend.TxFailedErr):
		return domain.ErrVersionConflict
	default:
		return fmt.Errorf("failed to compare-and-swap in redis: %w", err)
	}
}

// versionOf returns 0 when the key does not exist.
func (s *Store) versionOf(ctx context.Context, tx *backend.Tx, key string) (int64, error) {
	val, err := tx.Get(ctx, key).Result()
	if errors.Is(err, backend.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get from redis: %w", err)
	}

	var head struct {
		Version int64 `json:"version"`
	}
	if err := json.Unmarshal([]byte(val), &head); err != nil {
		return 0, fmt.Errorf("failed to unmarshal checkpoint version: %w", err)
	}
	// A stored checkpoint always counts as existing, even at version 0.
	if head.Version == 0 {
		return -1, nil
	}
	return head.Version, nil
}

// Load retrieves the checkpoint from Redis.
func (s *Store) Load(ctx context.Context, conversationID string) (*domain.Checkpoint, error) {
	val, err := s.client.Get(ctx, s.key(conversationID)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var cp domain.Checkpoint
	if err := json.Unmarshal([]byte(val), &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}

// Delete removes the checkpoint.
func (s *Store) Delete(ctx context.Context, conversationID string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(conversationID))
	pipe.ZRem(ctx, s.indexKey(), conversationID)

	_, err := pipe.Exec(ctx)
	return err
}

// List returns stored conversations, lazily pruning expired index entries.
func (s *Store) List(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())

	err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to prune expired conversations: %w", err)
	}

	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return ids, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
