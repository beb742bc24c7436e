package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/aretw0/tollgate/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageLog_AppendPreservesOrder(t *testing.T) {
	var log domain.MessageLog

	assert.Equal(t, 0, log.Append(domain.HumanTurn("one")))
	assert.Equal(t, 1, log.Append(domain.AgentTurn("two")))
	assert.Equal(t, 2, log.Append(domain.HumanTurn("three")))

	turns := log.All()
	require.Len(t, turns, 3)
	assert.Equal(t, "one", turns[0].Content)
	assert.Equal(t, "two", turns[1].Content)
	assert.Equal(t, "three", turns[2].Content)
	for _, turn := range turns {
		assert.False(t, turn.CreatedAt.IsZero(), "Append should stamp CreatedAt")
	}
}

func TestMessageLog_LastOnEmpty(t *testing.T) {
	var log domain.MessageLog

	_, err := log.Last()
	assert.ErrorIs(t, err, domain.ErrEmptyLog)

	log.Append(domain.HumanTurn("hello"))
	last, err := log.Last()
	require.NoError(t, err)
	assert.Equal(t, "hello", last.Content)
}

func TestMessageLog_AllReturnsCopy(t *testing.T) {
	var log domain.MessageLog
	log.Append(domain.AgentTurn("", domain.ToolCall{ID: "c1", Name: "weather_search", Args: map[string]any{"city": "Paris"}}))

	turns := log.All()
	turns[0].Content = "mutated"
	turns[0].ToolCalls[0].Args["city"] = "Tokyo"

	again := log.All()
	assert.Equal(t, "", again[0].Content)
	assert.Equal(t, "Paris", again[0].ToolCalls[0].Args["city"])
}

func TestMessageLog_PendingCalls(t *testing.T) {
	a := domain.ToolCall{ID: "a", Name: "weather_search"}
	b := domain.ToolCall{ID: "b", Name: "weather_search"}

	tests := []struct {
		name  string
		turns []domain.Turn
		want  []string
	}{
		{
			name: "No agent turn",
			turns: []domain.Turn{
				domain.HumanTurn("hi"),
			},
			want: nil,
		},
		{
			name: "Agent without calls",
			turns: []domain.Turn{
				domain.HumanTurn("hi"),
				domain.AgentTurn("hello"),
			},
			want: nil,
		},
		{
			name: "Two pending in request order",
			turns: []domain.Turn{
				domain.HumanTurn("hi"),
				domain.AgentTurn("", a, b),
			},
			want: []string{"a", "b"},
		},
		{
			name: "First rejected, second still pending",
			turns: []domain.Turn{
				domain.AgentTurn("", a, b),
				domain.RejectionTurn(a),
				domain.HumanTurn("no"),
			},
			want: []string{"b"},
		},
		{
			name: "Older agent turn is ignored",
			turns: []domain.Turn{
				domain.AgentTurn("", a),
				domain.HumanTurn("never mind"),
				domain.AgentTurn("ok"),
			},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := domain.NewMessageLog(tt.turns...)
			var got []string
			for _, c := range log.PendingCalls() {
				got = append(got, c.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckpoint_RoundTrip(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	call := domain.ToolCall{ID: "call-1", Name: "weather_search", Args: map[string]any{"city": "Paris"}}

	cp := domain.NewCheckpoint("conv-rt")
	cp.UpdatedAt = at
	for _, turn := range []domain.Turn{
		domain.HumanTurn("What's the weather in Paris?"),
		domain.AgentTurn("", call),
	} {
		turn.CreatedAt = at
		cp.Log.Append(turn)
	}
	cp.Next = domain.StepApprovalGate
	cp.Version = 2

	data, err := json.Marshal(cp)
	require.NoError(t, err)

	var decoded domain.Checkpoint
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, cp.ConversationID, decoded.ConversationID)
	assert.Equal(t, cp.Next, decoded.Next)
	assert.Equal(t, cp.Version, decoded.Version)
	assert.Equal(t, cp.Log.All(), decoded.Log.All())
	assert.True(t, decoded.Suspended())
	assert.NoError(t, decoded.CheckInvariant())
}

func TestCheckpoint_EmptyLogEncodesAsArray(t *testing.T) {
	data, err := json.Marshal(domain.NewCheckpoint("conv-empty"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"messages":[]`)

	var decoded domain.Checkpoint
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 0, decoded.Log.Len())
}

func TestCheckpoint_CheckInvariant(t *testing.T) {
	call := domain.ToolCall{ID: "c1", Name: "weather_search"}

	gateAfterHuman := domain.NewCheckpoint("x")
	gateAfterHuman.Log.Append(domain.HumanTurn("hi"))
	gateAfterHuman.Next = domain.StepApprovalGate
	assert.Error(t, gateAfterHuman.CheckInvariant())

	gateEmpty := domain.NewCheckpoint("x")
	gateEmpty.Next = domain.StepApprovalGate
	assert.ErrorIs(t, gateEmpty.CheckInvariant(), domain.ErrEmptyLog)

	gateOK := domain.NewCheckpoint("x")
	gateOK.Log.Append(domain.AgentTurn("", call))
	gateOK.Next = domain.StepApprovalGate
	assert.NoError(t, gateOK.CheckInvariant())

	unknown := domain.NewCheckpoint("x")
	unknown.Next = "human_review_node"
	assert.Error(t, unknown.CheckInvariant())
}

func TestTurn_Validate(t *testing.T) {
	call := domain.ToolCall{ID: "c1", Name: "weather_search"}

	assert.NoError(t, domain.HumanTurn("hi").Validate())
	assert.NoError(t, domain.AgentTurn("", call).Validate())
	assert.NoError(t, domain.ToolResultTurn(call, "Sunny!", domain.ToolStatusOK).Validate())

	assert.ErrorIs(t, domain.AgentTurn("", call, call).Validate(), domain.ErrInvalidTurn)
	assert.ErrorIs(t, domain.AgentTurn("", domain.ToolCall{Name: "x"}).Validate(), domain.ErrInvalidTurn)
	assert.ErrorIs(t, domain.Turn{Kind: "system"}.Validate(), domain.ErrInvalidTurn)
	assert.ErrorIs(t, domain.Turn{Kind: domain.TurnTool, ToolCallID: "c1", Status: "maybe"}.Validate(), domain.ErrInvalidTurn)

	rejection := domain.RejectionTurn(call)
	assert.True(t, rejection.IsRejection())
	assert.Equal(t, domain.ToolStatusError, rejection.Status)
	assert.Equal(t, domain.RejectionPayload, rejection.Content)
}
