package tollgate_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/aretw0/tollgate"
	"github.com/aretw0/tollgate/pkg/adapters/file"
	"github.com/aretw0/tollgate/pkg/domain"
	"github.com/aretw0/tollgate/pkg/ports"
	"github.com/aretw0/tollgate/pkg/registry"
	"github.com/aretw0/tollgate/pkg/tools"
	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startConversation(t *testing.T, eng *tollgate.Engine) string {
	t.Helper()
	id, err := eng.Start(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, id)
	return id
}

func suspendOnWeather(t *testing.T, eng *tollgate.Engine) string {
	t.Helper()
	id := startConversation(t, eng)
	snap, err := eng.SendMessage(context.Background(), id, "What's the weather in Paris?")
	require.NoError(t, err)
	require.True(t, snap.Suspended)
	return id
}

func TestScenarioA_ToolRequestSuspends(t *testing.T) {
	eng := tollgate.New()
	ctx := context.Background()
	id := startConversation(t, eng)

	snap, err := eng.SendMessage(ctx, id, "What's the weather in Paris?")
	require.NoError(t, err)

	assert.True(t, snap.Suspended)
	assert.Equal(t, domain.StepApprovalGate, snap.Next)
	require.Len(t, snap.Turns, 2)

	agent := snap.Turns[1]
	assert.Equal(t, domain.TurnAgent, agent.Kind)
	require.Len(t, agent.ToolCalls, 1)
	assert.Equal(t, tools.WeatherSearchName, agent.ToolCalls[0].Name)
	assert.Equal(t, "Paris", agent.ToolCalls[0].Args["city"])
	assert.Equal(t, agent.ToolCalls, snap.Pending)
}

func TestScenarioB_ApproveRunsToolAndAnswers(t *testing.T) {
	eng := tollgate.New()
	id := suspendOnWeather(t, eng)

	snap, err := eng.Approve(context.Background(), id)
	require.NoError(t, err)

	assert.False(t, snap.Suspended)
	assert.Equal(t, domain.StepNone, snap.Next)
	require.Len(t, snap.Turns, 4)

	result := snap.Turns[2]
	assert.Equal(t, domain.TurnTool, result.Kind)
	assert.Equal(t, domain.ToolStatusOK, result.Status)
	assert.Equal(t, "Sunny!", result.Content)

	final := snap.Turns[3]
	assert.Equal(t, domain.TurnAgent, final.Kind)
	assert.False(t, final.HasToolCalls())
	assert.Empty(t, snap.Pending)
}

func TestScenarioC_RejectWithMessage(t *testing.T) {
	eng := tollgate.New()
	id := suspendOnWeather(t, eng)

	snap, err := eng.SendMessage(context.Background(), id, "use Celsius")
	require.NoError(t, err)

	require.Len(t, snap.Turns, 5)
	rejection := snap.Turns[2]
	assert.Equal(t, domain.TurnTool, rejection.Kind)
	assert.Equal(t, domain.ToolStatusError, rejection.Status)
	assert.Equal(t, domain.RejectionPayload, rejection.Content)
	assert.True(t, rejection.IsRejection())

	assert.Equal(t, domain.HumanTurn("use Celsius").Content, snap.Turns[3].Content)
	assert.Equal(t, domain.TurnHuman, snap.Turns[3].Kind)
	assert.Equal(t, domain.TurnAgent, snap.Turns[4].Kind)
	assert.False(t, snap.Suspended, "the new agent turn asked for no tool")
}

func TestScenarioC_RejectCanSuspendAgain(t *testing.T) {
	eng := tollgate.New()
	id := suspendOnWeather(t, eng)

	// Clean rejection first, then a reply that asks for a tool again.
	_, err := eng.Reject(context.Background(), id, "not now")
	require.NoError(t, err)
	snap, err := eng.SendMessage(context.Background(), id, "ok, weather in Rome")
	require.NoError(t, err)

	assert.True(t, snap.Suspended)
	assert.Equal(t, "Rome", snap.Pending[0].Args["city"])
}

func TestScenarioD_TwoCallsRunInOrderDespiteFailure(t *testing.T) {
	reg := registry.NewRegistry()
	require.NoError(t, tools.RegisterBuiltins(reg))
	require.NoError(t, reg.Register(domain.ToolSpec{Name: "flaky"}, func(ctx context.Context, args map[string]any) (string, error) {
		return "", errors.New("flaky is down")
	}))

	calls := 0
	model := ports.ModelFunc(func(ctx context.Context, turns []domain.Turn, specs []domain.ToolSpec) (domain.Turn, error) {
		calls++
		if calls == 1 {
			return domain.AgentTurn("",
				domain.ToolCall{ID: "first", Name: "flaky"},
				domain.ToolCall{ID: "second", Name: tools.WeatherSearchName, Args: map[string]any{"city": "Oslo"}},
			), nil
		}
		return domain.AgentTurn("done"), nil
	})

	eng := tollgate.New(tollgate.WithModel(model), tollgate.WithTools(reg))
	ctx := context.Background()
	id := startConversation(t, eng)

	_, err := eng.SendMessage(ctx, id, "check both")
	require.NoError(t, err)
	snap, err := eng.Approve(ctx, id)
	require.NoError(t, err)

	require.Len(t, snap.Turns, 5)
	assert.Equal(t, "first", snap.Turns[2].ToolCallID)
	assert.Equal(t, domain.ToolStatusError, snap.Turns[2].Status)
	assert.Contains(t, snap.Turns[2].Content, "flaky is down")
	assert.Equal(t, "second", snap.Turns[3].ToolCallID)
	assert.Equal(t, domain.ToolStatusOK, snap.Turns[3].Status)
	assert.Equal(t, "Sunny!", snap.Turns[3].Content)
}

func TestApprove_NotSuspendedNeverMutates(t *testing.T) {
	eng := tollgate.New()
	ctx := context.Background()
	id := startConversation(t, eng)

	before, err := eng.State(ctx, id)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = eng.Approve(ctx, id)
		assert.ErrorIs(t, err, domain.ErrNotSuspended)
	}

	after, err := eng.State(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	// Same after a completed turn.
	_, err = eng.SendMessage(ctx, id, "hello")
	require.NoError(t, err)
	before, _ = eng.State(ctx, id)
	_, err = eng.Approve(ctx, id)
	assert.ErrorIs(t, err, domain.ErrNotSuspended)
	after, _ = eng.State(ctx, id)
	assert.Equal(t, before, after)
}

func TestReject_RequiresSuspension(t *testing.T) {
	eng := tollgate.New()
	id := startConversation(t, eng)

	_, err := eng.Reject(context.Background(), id, "no")
	assert.ErrorIs(t, err, domain.ErrNotSuspended)
}

func TestRejectAllPolicy(t *testing.T) {
	model := ports.ModelFunc(func(ctx context.Context, turns []domain.Turn, specs []domain.ToolSpec) (domain.Turn, error) {
		if turns[len(turns)-1].Content == "go" {
			return domain.AgentTurn("", domain.ToolCall{ID: "a", Name: "x"}, domain.ToolCall{ID: "b", Name: "y"}), nil
		}
		return domain.AgentTurn("fine"), nil
	})
	ctx := context.Background()

	for _, tt := range []struct {
		policy     tollgate.RejectionPolicy
		rejections int
	}{
		{tollgate.RejectFirst, 1},
		{tollgate.RejectAll, 2},
	} {
		t.Run(tt.policy.String(), func(t *testing.T) {
			eng := tollgate.New(tollgate.WithModel(model), tollgate.WithRejectionPolicy(tt.policy))
			id := startConversation(t, eng)
			_, err := eng.SendMessage(ctx, id, "go")
			require.NoError(t, err)

			snap, err := eng.SendMessage(ctx, id, "stop")
			require.NoError(t, err)

			rejected := 0
			for _, turn := range snap.Turns {
				if turn.IsRejection() {
					rejected++
				}
			}
			assert.Equal(t, tt.rejections, rejected)
		})
	}
}

func TestModelFailure_RetryIsSafe(t *testing.T) {
	fail := true
	model := ports.ModelFunc(func(ctx context.Context, turns []domain.Turn, specs []domain.ToolSpec) (domain.Turn, error) {
		if fail {
			return domain.Turn{}, errors.New("rate limited")
		}
		return domain.AgentTurn("hi there"), nil
	})
	eng := tollgate.New(tollgate.WithModel(model))
	ctx := context.Background()
	id := startConversation(t, eng)

	_, err := eng.SendMessage(ctx, id, "hello")
	var mie *domain.ModelInvocationError
	require.ErrorAs(t, err, &mie)

	snap, err := eng.State(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, snap.Turns, "no partial turn after a model failure")
	assert.Equal(t, int64(1), snap.Version)

	fail = false
	snap, err = eng.SendMessage(ctx, id, "hello")
	require.NoError(t, err)
	require.Len(t, snap.Turns, 2)
	assert.Equal(t, "hello", snap.Turns[0].Content)
}

func TestResume_AfterFailureFollowingTools(t *testing.T) {
	fail := false
	model := ports.ModelFunc(func(ctx context.Context, turns []domain.Turn, specs []domain.ToolSpec) (domain.Turn, error) {
		last := turns[len(turns)-1]
		if last.Kind == domain.TurnHuman {
			return domain.AgentTurn("", domain.ToolCall{ID: "c", Name: tools.WeatherSearchName, Args: map[string]any{"city": "Lima"}}), nil
		}
		if fail {
			return domain.Turn{}, errors.New("timeout")
		}
		return domain.AgentTurn("It's sunny in Lima."), nil
	})
	eng := tollgate.New(tollgate.WithModel(model))
	ctx := context.Background()
	id := startConversation(t, eng)

	_, err := eng.Resume(ctx, id)
	assert.ErrorIs(t, err, domain.ErrNotStalled)

	_, err = eng.SendMessage(ctx, id, "weather?")
	require.NoError(t, err)
	_, err = eng.Resume(ctx, id)
	assert.ErrorIs(t, err, domain.ErrNotStalled, "suspended is not stalled")

	fail = true
	_, err = eng.Approve(ctx, id)
	require.Error(t, err)

	snap, err := eng.State(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StepGenerateResponse, snap.Next)
	assert.False(t, snap.Suspended)

	_, err = eng.Approve(ctx, id)
	assert.ErrorIs(t, err, domain.ErrNotSuspended)
	assert.Contains(t, err.Error(), "use resume")

	fail = false
	snap, err = eng.Resume(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StepNone, snap.Next)
	assert.Len(t, snap.Turns, 4)
}

func TestEmptyLogBoundary(t *testing.T) {
	eng := tollgate.New()
	ctx := context.Background()
	id := startConversation(t, eng)

	_, err := eng.Messages(ctx, id)
	assert.ErrorIs(t, err, domain.ErrEmptyLog)

	snap, err := eng.State(ctx, id)
	require.NoError(t, err)
	assert.NotNil(t, snap.Turns)
	assert.Empty(t, snap.Turns)
	assert.False(t, snap.Suspended)
	_, err = snap.Last()
	assert.ErrorIs(t, err, domain.ErrEmptyLog)

	_, err = eng.SendMessage(ctx, id, "hi")
	require.NoError(t, err)
	msgs, err := eng.Messages(ctx, id)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestUnknownConversation(t *testing.T) {
	eng := tollgate.New()
	ctx := context.Background()

	_, err := eng.State(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)
	_, err = eng.SendMessage(ctx, "nope", "hi")
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)
	_, err = eng.Approve(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)
}

func TestStartWithID(t *testing.T) {
	eng := tollgate.New()
	ctx := context.Background()

	require.NoError(t, eng.StartWithID(ctx, "thread-1"))
	assert.ErrorIs(t, eng.StartWithID(ctx, "thread-1"), domain.ErrConversationExists)
	assert.ErrorIs(t, eng.StartWithID(ctx, "../escape"), domain.ErrInvalidInput)

	ids, err := eng.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"thread-1"}, ids)

	require.NoError(t, eng.Delete(ctx, "thread-1"))
	_, err = eng.State(ctx, "thread-1")
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)
}

func TestSendMessage_RejectsInvalidInput(t *testing.T) {
	eng := tollgate.New()
	id := startConversation(t, eng)

	_, err := eng.SendMessage(context.Background(), id, "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	snap, err := eng.State(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, snap.Turns)
}

func TestSerializability(t *testing.T) {
	eng := tollgate.New()
	ctx := context.Background()
	id := startConversation(t, eng)

	const n = 20
	var wg conc.WaitGroup
	for i := 0; i < n; i++ {
		wg.Go(func() {
			_, err := eng.SendMessage(ctx, id, fmt.Sprintf("message %d", i))
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	snap, err := eng.State(ctx, id)
	require.NoError(t, err)
	require.Len(t, snap.Turns, 2*n)
	assert.Equal(t, int64(1+n), snap.Version)

	// Every human turn is immediately answered: operations never interleave.
	seen := map[string]bool{}
	for i := 0; i < len(snap.Turns); i += 2 {
		human, agent := snap.Turns[i], snap.Turns[i+1]
		require.Equal(t, domain.TurnHuman, human.Kind)
		require.Equal(t, domain.TurnAgent, agent.Kind)
		assert.Equal(t, "You said: "+human.Content, agent.Content)
		seen[human.Content] = true
	}
	assert.Len(t, seen, n)
}

func TestConversationsAreIndependent(t *testing.T) {
	eng := tollgate.New()
	ctx := context.Background()
	a := suspendOnWeather(t, eng)
	b := startConversation(t, eng)

	snap, err := eng.SendMessage(ctx, b, "hello")
	require.NoError(t, err)
	assert.False(t, snap.Suspended)

	stateA, err := eng.State(ctx, a)
	require.NoError(t, err)
	assert.True(t, stateA.Suspended)
}

func TestDurableResumeAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first := tollgate.New(tollgate.WithStore(file.New(dir)))
	id := suspendOnWeather(t, first)

	// A new engine over the same directory picks up the suspended conversation.
	second := tollgate.New(tollgate.WithStore(file.New(dir)))
	snap, err := second.State(ctx, id)
	require.NoError(t, err)
	require.True(t, snap.Suspended)

	snap, err = second.Approve(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Sunny!", snap.Turns[2].Content)
	assert.Equal(t, domain.StepNone, snap.Next)
}

func TestCommitObserver(t *testing.T) {
	var mu sync.Mutex
	var diffs []domain.CheckpointDiff
	eng := tollgate.New(tollgate.WithCommitObserver(func(ctx context.Context, d domain.CheckpointDiff) {
		mu.Lock()
		defer mu.Unlock()
		diffs = append(diffs, d)
	}))

	id := suspendOnWeather(t, eng)
	_, err := eng.Approve(context.Background(), id)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	// start, generate (suspend), run_tool, generate (final)
	require.Len(t, diffs, 4)
	assert.Equal(t, int64(1), diffs[0].Version)
	assert.Len(t, diffs[1].Appended, 2)
	require.NotNil(t, diffs[1].Suspended)
	assert.True(t, *diffs[1].Suspended)
	assert.Len(t, diffs[2].Appended, 1)
	assert.Equal(t, "Sunny!", diffs[2].Appended[0].Content)
	assert.Equal(t, int64(4), diffs[3].Version)
}
