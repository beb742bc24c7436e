package tollgate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/tollgate/internal/logging"
	"github.com/aretw0/tollgate/internal/runtime"
	"github.com/aretw0/tollgate/internal/sanitize"
	"github.com/aretw0/tollgate/pkg/adapters/memory"
	"github.com/aretw0/tollgate/pkg/adapters/rules"
	"github.com/aretw0/tollgate/pkg/domain"
	"github.com/aretw0/tollgate/pkg/ports"
	"github.com/aretw0/tollgate/pkg/registry"
	"github.com/aretw0/tollgate/pkg/session"
	"github.com/aretw0/tollgate/pkg/tools"
	"github.com/google/uuid"
)

// RejectionPolicy selects which pending tool calls a human reply rejects.
type RejectionPolicy = runtime.RejectionPolicy

const (
	// RejectFirst rejects only the first pending call (default).
	RejectFirst = runtime.RejectFirst
	// RejectAll rejects every pending call of the agent turn.
	RejectAll = runtime.RejectAll
)

// CommitObserver is notified after every persisted checkpoint with what changed.
type CommitObserver func(ctx context.Context, diff domain.CheckpointDiff)

// Engine is the high-level entry point for the Tollgate library.
// It owns the per-conversation locks and the checkpoint store, and drives the
// internal runtime for every operation. Safe for concurrent use.
type Engine struct {
	runtime  *runtime.Engine
	sessions *session.Manager
	store    ports.CheckpointStore
	model    ports.Model
	tools    ports.ToolExecutor
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	locker   ports.DistributedLocker
	lockTTL  time.Duration
	policy   RejectionPolicy
	maxSteps int
	observer CommitObserver
	newID    func() string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithStore sets the checkpoint store. Defaults to an in-memory store.
func WithStore(store ports.CheckpointStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithModel sets the model invoked by generate_response.
// Defaults to the offline rules model.
func WithModel(model ports.Model) Option {
	return func(e *Engine) {
		e.model = model
	}
}

// WithTools sets the tool executor. Defaults to a registry holding the
// built-in tools.
func WithTools(tools ports.ToolExecutor) Option {
	return func(e *Engine) {
		e.tools = tools
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
// Calling it more than once merges the hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithLocker enables distributed locking across replicas.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// WithLockTTL sets the expiry of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		e.lockTTL = ttl
	}
}

// WithRejectionPolicy selects which pending calls a reply rejects.
func WithRejectionPolicy(policy RejectionPolicy) Option {
	return func(e *Engine) {
		e.policy = policy
	}
}

// WithMaxSteps bounds the steps a single operation may run.
func WithMaxSteps(n int) Option {
	return func(e *Engine) {
		e.maxSteps = n
	}
}

// WithCommitObserver registers a callback run after every persisted step.
func WithCommitObserver(fn CommitObserver) Option {
	return func(e *Engine) {
		e.observer = fn
	}
}

// WithIDGenerator overrides how conversation ids are minted by Start.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		e.newID = fn
	}
}

// New creates an Engine. With no options it runs fully in memory with the
// rules model and the built-in tools.
func New(opts ...Option) *Engine {
	e := &Engine{
		policy:   RejectFirst,
		maxSteps: runtime.DefaultMaxSteps,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	if e.store == nil {
		e.store = memory.NewStore()
	}
	if e.model == nil {
		e.model = rules.New()
	}
	if e.tools == nil {
		reg := registry.NewRegistry()
		if err := tools.RegisterBuiltins(reg); err != nil {
			panic(err)
		}
		e.tools = reg
	}

	sessionOpts := []session.Option{
		session.WithLogger(e.logger),
		session.WithLockTTL(e.lockTTL),
	}
	if e.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(e.locker))
	}
	e.sessions = session.NewManager(e.store, sessionOpts...)

	e.runtime = runtime.NewEngine(e.model, e.tools,
		runtime.WithLifecycleHooks(e.hooks),
		runtime.WithLogger(e.logger),
		runtime.WithMaxSteps(e.maxSteps),
	)
	return e
}

// Start allocates a new conversation with an empty log, not suspended.
func (e *Engine) Start(ctx context.Context) (string, error) {
	id := e.newID()
	if err := e.StartWithID(ctx, id); err != nil {
		return "", err
	}
	return id, nil
}

// StartWithID creates a conversation under a caller-chosen id.
// It fails with domain.ErrConversationExists if the id is taken.
func (e *Engine) StartWithID(ctx context.Context, id string) error {
	if err := sanitize.ConversationID(id); err != nil {
		return err
	}
	cp, err := e.sessions.Create(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			return fmt.Errorf("%w: %s", domain.ErrConversationExists, id)
		}
		return err
	}
	e.notify(ctx, nil, cp)
	e.logger.Info("conversation started", "conversation_id", id)
	return nil
}

// SendMessage appends a human message and runs the conversation until it
// suspends or completes. If a tool call is awaiting approval, the message
// rejects it first (see WithRejectionPolicy).
func (e *Engine) SendMessage(ctx context.Context, id, message string) (*Snapshot, error) {
	msg, err := sanitize.Message(message)
	if err != nil {
		return nil, err
	}
	return e.mutate(ctx, id, "send_message", func(cp *domain.Checkpoint) ([]domain.Turn, error) {
		return runtime.PrepareReply(cp, msg, e.policy), nil
	})
}

// Reject declines the pending tool call(s) with an explanatory message.
// Unlike SendMessage it fails with domain.ErrNotSuspended when nothing is
// awaiting approval.
func (e *Engine) Reject(ctx context.Context, id, message string) (*Snapshot, error) {
	msg, err := sanitize.Message(message)
	if err != nil {
		return nil, err
	}
	return e.mutate(ctx, id, "reject", func(cp *domain.Checkpoint) ([]domain.Turn, error) {
		if !cp.Suspended() {
			return nil, fmt.Errorf("%w: next step is %s", domain.ErrNotSuspended, cp.Next)
		}
		return runtime.PrepareReply(cp, msg, e.policy), nil
	})
}

// Approve runs the pending tool calls and continues the conversation.
// It fails with domain.ErrNotSuspended, without touching state, when nothing
// is awaiting approval.
func (e *Engine) Approve(ctx context.Context, id string) (*Snapshot, error) {
	return e.mutate(ctx, id, "approve", func(cp *domain.Checkpoint) ([]domain.Turn, error) {
		return nil, runtime.PrepareApproval(cp)
	})
}

// Resume re-runs a step left pending by a failed model call.
// It fails with domain.ErrNotStalled when the conversation is idle or suspended.
func (e *Engine) Resume(ctx context.Context, id string) (*Snapshot, error) {
	return e.mutate(ctx, id, "resume", func(cp *domain.Checkpoint) ([]domain.Turn, error) {
		if !cp.Stalled() {
			return nil, fmt.Errorf("%w: next step is %s", domain.ErrNotStalled, cp.Next)
		}
		return nil, nil
	})
}

// State returns a snapshot of the conversation. An empty log is reported as
// an empty Turns slice.
func (e *Engine) State(ctx context.Context, id string) (*Snapshot, error) {
	cp, err := e.sessions.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return newSnapshot(cp), nil
}

// Messages returns the message log. It fails with domain.ErrEmptyLog when
// the conversation has no turns yet.
func (e *Engine) Messages(ctx context.Context, id string) ([]domain.Turn, error) {
	cp, err := e.sessions.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if cp.Log.Len() == 0 {
		return nil, domain.ErrEmptyLog
	}
	return cp.Log.All(), nil
}

// Checkpoint returns the raw stored checkpoint, for inspection tools.
func (e *Engine) Checkpoint(ctx context.Context, id string) (*domain.Checkpoint, error) {
	return e.sessions.Load(ctx, id)
}

// List returns the ids of all stored conversations.
func (e *Engine) List(ctx context.Context) ([]string, error) {
	return e.sessions.List(ctx)
}

// Delete removes a conversation.
func (e *Engine) Delete(ctx context.Context, id string) error {
	if err := e.sessions.Delete(ctx, id); err != nil {
		return err
	}
	e.logger.Info("conversation deleted", "conversation_id", id)
	return nil
}

// Tools returns the specs of the tools offered to the model.
func (e *Engine) Tools() []domain.ToolSpec {
	return e.tools.Specs()
}

// prepareFunc validates the loaded checkpoint and returns the turns to inject.
// Returning an error aborts the operation before anything is written.
type prepareFunc func(cp *domain.Checkpoint) ([]domain.Turn, error)

// mutate is the shared skeleton of every state-changing operation:
// lock, load, prepare, run, persist each step through compare-and-swap.
func (e *Engine) mutate(ctx context.Context, id, op string, prepare prepareFunc) (*Snapshot, error) {
	var out *domain.Checkpoint
	err := e.sessions.WithLock(ctx, id, func(ctx context.Context) error {
		cp, err := e.store.Load(ctx, id)
		if err != nil {
			return err
		}

		inject, err := prepare(cp)
		if err != nil {
			return err
		}

		prev := cp
		save := func(ctx context.Context, next *domain.Checkpoint, expected int64) error {
			if err := e.store.CompareAndSwap(ctx, next, expected); err != nil {
				return err
			}
			e.notify(ctx, prev, next)
			prev = next
			return nil
		}

		out, err = e.runtime.RunTurn(ctx, cp, inject, save)
		return err
	})
	if err != nil {
		e.logger.Warn("operation failed",
			"op", op,
			"conversation_id", id,
			"err", err,
		)
		return nil, err
	}

	e.logger.Info("operation completed",
		"op", op,
		"conversation_id", id,
		"next", out.Next,
		"version", out.Version,
	)
	return newSnapshot(out), nil
}

func (e *Engine) notify(ctx context.Context, prev, next *domain.Checkpoint) {
	if e.observer == nil {
		return
	}
	if diff := domain.Diff(prev, next); diff != nil {
		e.observer(ctx, *diff)
	}
}
