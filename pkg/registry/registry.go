package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/tollgate/pkg/domain"
	"github.com/aretw0/tollgate/pkg/schema"
)

// ToolFunction defines the signature for a tool implementation.
// It receives a context and the call arguments and returns the textual
// result that becomes the content of the tool turn.
type ToolFunction func(ctx context.Context, args map[string]any) (string, error)

type entry struct {
	spec   domain.ToolSpec
	schema schema.Schema
	fn     ToolFunction
}

// Registry manages the available tools.
// It implements ports.ToolExecutor.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]entry
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]entry),
	}
}

// Register adds a tool to the registry.
// If a tool with the same name exists, it is overwritten.
// It fails when spec.Parameters is not a usable object schema.
func (r *Registry) Register(spec domain.ToolSpec, fn ToolFunction) error {
	s, err := schema.FromParameters(spec.Parameters)
	if err != nil {
		return fmt.Errorf("tool %s: %w", spec.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[spec.Name] = entry{spec: spec, schema: s, fn: fn}
	return nil
}

// Has reports whether a tool is registered under name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Execute looks up a tool by name, checks the arguments against its
// parameters and runs it. Unknown tools wrap domain.ErrUnknownTool and
// mismatched arguments wrap domain.ErrInvalidArguments.
func (r *Registry) Execute(ctx context.Context, call domain.ToolCall) (string, error) {
	r.mu.RLock()
	e, ok := r.tools[call.Name]
	r.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrUnknownTool, call.Name)
	}

	args := call.Args
	if args == nil {
		args = map[string]any{}
	}
	if err := schema.Validate(e.schema, args); err != nil {
		return "", fmt.Errorf("%w: %s: %w", domain.ErrInvalidArguments, call.Name, err)
	}
	return e.fn(ctx, args)
}

// Specs returns the specs of all registered tools, sorted by name.
func (r *Registry) Specs() []domain.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]domain.ToolSpec, 0, len(r.tools))
	for _, e := range r.tools {
		specs = append(specs, e.spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}
