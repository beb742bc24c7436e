// Package rules provides a deterministic, offline ports.Model.
//
// It matches the latest human message against regular expressions and
// requests the associated tool, then summarizes tool results once they
// arrive. It exists for demos, tests and air-gapped runs; it is not a
// language model.
package rules

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/aretw0/tollgate/pkg/domain"
	"github.com/google/uuid"
)

// Rule maps a human message pattern to a tool call. The first capture group
// of Pattern becomes the value of Arg.
type Rule struct {
	Pattern *regexp.Regexp
	Tool    string
	Arg     string
}

// DefaultRules routes weather questions to weather_search.
func DefaultRules() []Rule {
	return []Rule{
		{
			Pattern: regexp.MustCompile(`(?i)weather\s+(?:in|for|at)\s+([\p{L}][\p{L} .'-]*?)\s*[?.!]*$`),
			Tool:    "weather_search",
			Arg:     "city",
		},
	}
}

// Model is a rule-driven ports.Model.
type Model struct {
	rules []Rule
	newID func() string
}

// Option configures the Model.
type Option func(*Model)

// WithRules replaces the default rule set.
func WithRules(rules ...Rule) Option {
	return func(m *Model) {
		m.rules = rules
	}
}

// WithIDGenerator overrides how tool call ids are minted.
func WithIDGenerator(fn func() string) Option {
	return func(m *Model) {
		m.newID = fn
	}
}

// New creates a rules model.
func New(opts ...Option) *Model {
	m := &Model{
		rules: DefaultRules(),
		newID: func() string { return "call_" + uuid.NewString() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Generate implements ports.Model.
func (m *Model) Generate(ctx context.Context, turns []domain.Turn, tools []domain.ToolSpec) (domain.Turn, error) {
	if err := ctx.Err(); err != nil {
		return domain.Turn{}, err
	}
	if len(turns) == 0 {
		return domain.AgentTurn("Hello! How can I help?"), nil
	}

	last := turns[len(turns)-1]
	switch last.Kind {
	case domain.TurnTool:
		return m.summarize(turns), nil
	case domain.TurnHuman:
		if rejected := rejectedSince(turns); len(rejected) > 0 {
			return domain.AgentTurn(fmt.Sprintf("Okay, I won't run %s. You said: %s",
				strings.Join(rejected, ", "), last.Content)), nil
		}
		if call, ok := m.match(last.Content, tools); ok {
			return domain.AgentTurn("", call), nil
		}
		return domain.AgentTurn("You said: " + last.Content), nil
	default:
		return domain.Turn{}, fmt.Errorf("cannot respond after a %s turn", last.Kind)
	}
}

func (m *Model) match(text string, tools []domain.ToolSpec) (domain.ToolCall, bool) {
	available := make(map[string]struct{}, len(tools))
	for _, t := range tools {
		available[t.Name] = struct{}{}
	}

	for _, r := range m.rules {
		if _, ok := available[r.Tool]; !ok {
			continue
		}
		sub := r.Pattern.FindStringSubmatch(text)
		if sub == nil {
			continue
		}
		args := map[string]any{}
		if r.Arg != "" && len(sub) > 1 {
			args[r.Arg] = strings.TrimSpace(sub[1])
		}
		return domain.ToolCall{ID: m.newID(), Name: r.Tool, Args: args}, true
	}
	return domain.ToolCall{}, false
}

// summarize reports the tool turns that follow the most recent agent turn.
func (m *Model) summarize(turns []domain.Turn) domain.Turn {
	var parts []string
	for i := len(turns) - 1; i >= 0 && turns[i].Kind == domain.TurnTool; i-- {
		t := turns[i]
		if t.Status == domain.ToolStatusError {
			parts = append([]string{fmt.Sprintf("%s failed: %s", t.ToolName, t.Content)}, parts...)
			continue
		}
		parts = append([]string{fmt.Sprintf("%s says: %s", t.ToolName, t.Content)}, parts...)
	}
	return domain.AgentTurn(strings.Join(parts, "\n"))
}

// rejectedSince lists the tools rejected after the most recent agent turn.
func rejectedSince(turns []domain.Turn) []string {
	var names []string
	for i := len(turns) - 1; i >= 0 && turns[i].Kind != domain.TurnAgent; i-- {
		if turns[i].IsRejection() {
			names = append([]string{turns[i].ToolName}, names...)
		}
	}
	return names
}
