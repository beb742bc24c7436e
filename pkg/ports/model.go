package ports

import (
	"context"

	"github.com/aretw0/tollgate/pkg/domain"
)

// Model is the language model boundary: messages in, one agent turn out.
// The returned turn must have Kind == domain.TurnAgent.
type Model interface {
	Generate(ctx context.Context, turns []domain.Turn, tools []domain.ToolSpec) (domain.Turn, error)
}

// ModelFunc adapts a plain function to the Model interface.
type ModelFunc func(ctx context.Context, turns []domain.Turn, tools []domain.ToolSpec) (domain.Turn, error)

// Generate calls f.
func (f ModelFunc) Generate(ctx context.Context, turns []domain.Turn, tools []domain.ToolSpec) (domain.Turn, error) {
	return f(ctx, turns, tools)
}

// ToolExecutor runs tools by name. A returned error becomes an error tool
// turn; it never aborts the conversation.
type ToolExecutor interface {
	Execute(ctx context.Context, call domain.ToolCall) (string, error)
	Specs() []domain.ToolSpec
}
