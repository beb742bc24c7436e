package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/tollgate/pkg/domain"
	"github.com/aretw0/tollgate/pkg/ports"
)

// Mask replaces redacted values.
const Mask = "***"

type piiMiddleware struct {
	next     ports.CheckpointStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks tool call arguments whose
// keys match the patterns. Calls still awaiting approval are stored intact,
// since run_tool needs their real arguments; once a call has a result its
// arguments are masked on the next write.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.CheckpointStore) ports.CheckpointStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

// redact returns a copy of cp with answered tool call arguments masked.
func (m *piiMiddleware) redact(cp *domain.Checkpoint) *domain.Checkpoint {
	pending := make(map[string]struct{})
	for _, call := range cp.Log.PendingCalls() {
		pending[call.ID] = struct{}{}
	}

	turns := cp.Log.All()
	last := lastAgent(turns)
	for i := range turns {
		for j := range turns[i].ToolCalls {
			call := &turns[i].ToolCalls[j]
			if _, wait := pending[call.ID]; wait && i == last {
				continue
			}
			call.Args = deepCopyMap(call.Args)
			maskMap(call.Args, m.patterns)
		}
	}

	out := cp.Clone()
	out.Log = *domain.NewMessageLog(turns...)
	return out
}

func (m *piiMiddleware) Save(ctx context.Context, cp *domain.Checkpoint) error {
	return m.next.Save(ctx, m.redact(cp))
}

func (m *piiMiddleware) CompareAndSwap(ctx context.Context, cp *domain.Checkpoint, expected int64) error {
	return m.next.CompareAndSwap(ctx, m.redact(cp), expected)
}

func (m *piiMiddleware) Load(ctx context.Context, conversationID string) (*domain.Checkpoint, error) {
	return m.next.Load(ctx, conversationID)
}

func (m *piiMiddleware) Delete(ctx context.Context, conversationID string) error {
	return m.next.Delete(ctx, conversationID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

// Helpers

func lastAgent(turns []domain.Turn) int {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Kind == domain.TurnAgent {
			return i
		}
	}
	return -1
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if subMap, ok := v.(map[string]any); ok {
			out[k] = deepCopyMap(subMap)
		} else {
			out[k] = v
		}
	}
	return out
}

func maskMap(m map[string]any, patterns []*regexp.Regexp) {
	for k, v := range m {
		masked := false
		for _, p := range patterns {
			if p.MatchString(k) {
				m[k] = Mask
				masked = true
				break
			}
		}

		if subMap, ok := v.(map[string]any); ok && !masked {
			maskMap(subMap, patterns)
		}
	}
}
