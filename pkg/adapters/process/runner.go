package process

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"github.com/aretw0/tollgate/pkg/domain"
	"github.com/aretw0/tollgate/pkg/registry"
)

// ArgEnvPrefix prefixes every tool argument passed to a process.
const ArgEnvPrefix = "TOLLGATE_ARG_"

// Runner executes local processes as tools.
// It follows a Strict Registry pattern for security (Allow-Listing).
type Runner struct {
	registry map[string]RegisteredProcess
	baseDir  string
}

// RegisteredProcess defines an allowed command execution.
type RegisteredProcess struct {
	Command     string
	Args        []string
	Environment map[string]string
	Spec        domain.ToolSpec
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithRegistry populates the allow-list from a loaded config.
func WithRegistry(tools map[string]Definition) RunnerOption {
	return func(r *Runner) {
		for name, tool := range tools {
			r.registry[name] = RegisteredProcess{
				Command:     tool.Command,
				Args:        tool.Args,
				Environment: tool.Env,
				Spec: domain.ToolSpec{
					Name:        name,
					Description: tool.Description,
					Parameters:  tool.Parameters,
				},
			}
		}
	}
}

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// NewRunner creates a new Process Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		registry: make(map[string]RegisteredProcess),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a trusted script/command to the allow-list.
func (r *Runner) Register(name string, command string, args ...string) {
	r.registry[name] = RegisteredProcess{
		Command: command,
		Args:    args,
		Spec:    domain.ToolSpec{Name: name},
	}
}

// Names returns the registered tool names, sorted.
func (r *Runner) Names() []string {
	names := make([]string, 0, len(r.registry))
	for name := range r.registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Install registers every allowed process as a tool in reg.
func (r *Runner) Install(reg *registry.Registry) error {
	for _, name := range r.Names() {
		proc := r.registry[name]
		err := reg.Register(proc.Spec, func(ctx context.Context, args map[string]any) (string, error) {
			return r.Execute(ctx, domain.ToolCall{Name: name, Args: args})
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Execute runs the process registered under call.Name and returns its
// trimmed stdout. Arguments are passed as environment variables, never as
// command flags, which prevents flag injection.
func (r *Runner) Execute(ctx context.Context, call domain.ToolCall) (string, error) {
	proc, ok := r.registry[call.Name]
	if !ok {
		return "", fmt.Errorf("%w: process tool not registered: %s", domain.ErrUnknownTool, call.Name)
	}

	cmd := exec.CommandContext(ctx, proc.Command, proc.Args...)
	cmd.Dir = r.baseDir

	env := cmd.Environ()
	for k, v := range proc.Environment {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	for k, v := range call.Args {
		env = append(env, fmt.Sprintf("%s%s=%s", ArgEnvPrefix, strings.ToUpper(k), encodeArg(v)))
	}
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("execution failed: %w. Stderr: %s", err, strings.TrimSpace(stderr.String()))
	}

	return strings.TrimSpace(stdout.String()), nil
}

// encodeArg renders primitives with %v and structured values as JSON.
func encodeArg(v any) string {
	switch v.(type) {
	case string, int, int64, float64, bool:
		return fmt.Sprintf("%v", v)
	case nil:
		return ""
	default:
		if b, err := json.Marshal(v); err == nil {
			return string(b)
		}
		return fmt.Sprintf("%v", v)
	}
}
