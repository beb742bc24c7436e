// Package openai implements ports.Model against any OpenAI-compatible
// chat completions endpoint.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/tollgate/pkg/domain"
	"github.com/google/uuid"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
	DefaultTimeout = 60 * time.Second
)

// ErrNoChoices is returned when the provider answers without any choice.
var ErrNoChoices = errors.New("openai: response has no choices")

// Model calls the chat completions API with the full message log and the
// registered tools.
type Model struct {
	baseURL      string
	apiKey       string
	model        string
	systemPrompt string
	client       *http.Client
	logger       *slog.Logger
}

// Option configures a Model.
type Option func(*Model)

// WithBaseURL points the client at a compatible endpoint (Ollama, vLLM, a proxy).
func WithBaseURL(url string) Option {
	return func(m *Model) { m.baseURL = strings.TrimRight(url, "/") }
}

// WithModel sets the model name sent with every request.
func WithModel(name string) Option {
	return func(m *Model) { m.model = name }
}

// WithSystemPrompt prepends a system message to every request.
func WithSystemPrompt(prompt string) Option {
	return func(m *Model) { m.systemPrompt = prompt }
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Model) { m.client = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Model) { m.logger = l }
}

// New creates a Model authenticated with apiKey.
func New(apiKey string, opts ...Option) *Model {
	m := &Model{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		model:   DefaultModel,
		client:  &http.Client{Timeout: DefaultTimeout},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Generate implements ports.Model.
func (m *Model) Generate(ctx context.Context, turns []domain.Turn, tools []domain.ToolSpec) (domain.Turn, error) {
	req := chatRequest{
		Model:    m.model,
		Messages: toMessages(m.systemPrompt, turns),
		Tools:    toTools(tools),
	}

	body, err := json.Marshal(req)
	if err != nil {
		return domain.Turn{}, fmt.Errorf("openai: encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return domain.Turn{}, fmt.Errorf("openai: building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if m.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+m.apiKey)
	}

	start := time.Now()
	resp, err := m.client.Do(httpReq)
	if err != nil {
		return domain.Turn{}, fmt.Errorf("openai: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return domain.Turn{}, fmt.Errorf("openai: reading response: %w", err)
	}

	m.logger.DebugContext(ctx, "chat completion",
		"model", m.model,
		"status", resp.StatusCode,
		"messages", len(req.Messages),
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr errorResponse
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			return domain.Turn{}, fmt.Errorf("openai: status %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		return domain.Turn{}, fmt.Errorf("openai: status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return domain.Turn{}, fmt.Errorf("openai: decoding response: %w", err)
	}
	if len(out.Choices) == 0 {
		return domain.Turn{}, ErrNoChoices
	}

	return fromMessage(out.Choices[0].Message)
}

// toMessages maps the log onto chat messages. Every assistant tool call must
// be answered before the next non-tool message, so calls left unanswered by a
// partial rejection get a rejection placeholder.
func toMessages(system string, turns []domain.Turn) []chatMessage {
	msgs := make([]chatMessage, 0, len(turns)+1)
	if system != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: &system})
	}

	var open []string
	answered := make(map[string]bool)
	closeOpen := func() {
		for _, id := range open {
			if !answered[id] {
				placeholder := domain.RejectionPayload
				msgs = append(msgs, chatMessage{Role: "tool", Content: &placeholder, ToolCallID: id})
			}
		}
		open = nil
		clear(answered)
	}

	for _, t := range turns {
		content := t.Content
		switch t.Kind {
		case domain.TurnHuman:
			closeOpen()
			msgs = append(msgs, chatMessage{Role: "user", Content: &content})
		case domain.TurnTool:
			answered[t.ToolCallID] = true
			msgs = append(msgs, chatMessage{Role: "tool", Content: &content, ToolCallID: t.ToolCallID})
		case domain.TurnAgent:
			closeOpen()
			msg := chatMessage{Role: "assistant"}
			if content != "" || len(t.ToolCalls) == 0 {
				msg.Content = &content
			}
			for _, call := range t.ToolCalls {
				args, _ := json.Marshal(call.Args)
				if call.Args == nil {
					args = []byte("{}")
				}
				msg.ToolCalls = append(msg.ToolCalls, chatToolCall{
					ID:       call.ID,
					Type:     "function",
					Function: chatFunction{Name: call.Name, Arguments: string(args)},
				})
				open = append(open, call.ID)
			}
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

func toTools(specs []domain.ToolSpec) []chatTool {
	if len(specs) == 0 {
		return nil
	}
	tools := make([]chatTool, len(specs))
	for i, s := range specs {
		params := s.Parameters
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		tools[i] = chatTool{
			Type: "function",
			Function: chatFunctionDef{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  params,
			},
		}
	}
	return tools
}

func fromMessage(msg chatMessage) (domain.Turn, error) {
	var content string
	if msg.Content != nil {
		content = *msg.Content
	}

	var calls []domain.ToolCall
	for _, tc := range msg.ToolCalls {
		args := map[string]any{}
		if s := strings.TrimSpace(tc.Function.Arguments); s != "" {
			if err := json.Unmarshal([]byte(s), &args); err != nil {
				return domain.Turn{}, fmt.Errorf("openai: arguments of %s are not a JSON object: %w", tc.Function.Name, err)
			}
		}
		id := tc.ID
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		calls = append(calls, domain.ToolCall{ID: id, Name: tc.Function.Name, Args: args})
	}

	return domain.AgentTurn(content, calls...), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
