package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/tollgate/pkg/domain"
	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
)

// NewRenderer returns a function that renders markdown using glamour.
// It falls back to the raw text if no renderer can be built.
func NewRenderer() func(string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return func(markdown string) (string, error) { return markdown, nil }
	}

	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}

// FormatTurn renders one turn as markdown for the terminal.
func FormatTurn(t domain.Turn) string {
	switch t.Kind {
	case domain.TurnHuman:
		return "**you:** " + t.Content
	case domain.TurnTool:
		label := "ok"
		if t.IsRejection() {
			label = "rejected"
		} else if t.Status == domain.ToolStatusError {
			label = "error"
		}
		return fmt.Sprintf("> `%s` (%s): %s", t.ToolName, label, t.Content)
	default:
		var sb strings.Builder
		if t.Content != "" {
			sb.WriteString(t.Content)
		}
		for _, call := range t.ToolCalls {
			if sb.Len() > 0 {
				sb.WriteString("\n\n")
			}
			fmt.Fprintf(&sb, "Requesting tool `%s`(%s)", call.Name, formatArgs(call.Args))
		}
		return sb.String()
	}
}

// ApprovalPrompt describes the pending calls and the available answers.
func ApprovalPrompt(pending []domain.ToolCall) string {
	p := termenv.ColorProfile()
	var sb strings.Builder
	sb.WriteString(termenv.String("Approval required").Bold().Foreground(p.Color("#fbbf24")).String())
	sb.WriteString("\n")
	for _, call := range pending {
		fmt.Fprintf(&sb, "  - %s(%s) [%s]\n", call.Name, formatArgs(call.Args), call.ID)
	}
	sb.WriteString("Type /approve, /reject, or a message to reply instead.")
	return sb.String()
}

func formatArgs(args map[string]any) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, args[k])
	}
	return strings.Join(parts, ", ")
}
