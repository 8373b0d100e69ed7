package taskstate

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/just-every/demo-ui-sub000/protocol"
)

func at(sec int) protocol.Timestamp {
	return protocol.NewTimestamp(time.Date(2026, 8, 25, 10, 0, sec, 0, time.UTC))
}

func frag(order int, text string) *protocol.Fragment {
	return &protocol.Fragment{Order: order, Text: text}
}

// --- Task lifecycle ----------------------------------------------------------

func TestProcessor_TaskLifecycle(t *testing.T) {
	p := New()
	snap := p.ProcessEvent(protocol.TaskStartEvent{TaskID: "task-1", Timestamp: at(0)})
	assert.True(t, snap.IsLoading)
	assert.Equal(t, []string{"task-1"}, snap.RunningTasks)

	snap = p.ProcessEvent(protocol.TaskCompleteEvent{TaskID: "task-1", Timestamp: at(5)})
	assert.False(t, snap.IsLoading)
	assert.Empty(t, snap.RunningTasks)
}

func TestProcessor_TaskCompleteAppendsResult(t *testing.T) {
	p := New()
	p.ProcessEvent(protocol.TaskStartEvent{TaskID: "task-1", Timestamp: at(0)})
	snap := p.ProcessEvent(protocol.TaskCompleteEvent{
		TaskID:    "task-1",
		Timestamp: at(5),
		Result:    protocol.NewFlexibleText("all done"),
	})
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, KindMessage, snap.Messages[0].Type)
	assert.Equal(t, "assistant", snap.Messages[0].Role)
	assert.Equal(t, "all done", snap.Messages[0].Content)
	assert.Equal(t, StatusCompleted, snap.Messages[0].Status)
	assert.NotEmpty(t, snap.Messages[0].ID)
}

func TestProcessor_TaskCompleteWithoutResult(t *testing.T) {
	p := New()
	p.ProcessEvent(protocol.TaskStartEvent{TaskID: "task-1", Timestamp: at(0)})
	snap := p.ProcessEvent(protocol.TaskCompleteEvent{TaskID: "task-1", Timestamp: at(5)})
	assert.Empty(t, snap.Messages)
}

func TestProcessor_TaskFatalErrorPrefixesResult(t *testing.T) {
	p := New()
	p.ProcessEvent(protocol.TaskStartEvent{TaskID: "task-1", Timestamp: at(0)})
	snap := p.ProcessEvent(protocol.TaskFatalErrorEvent{
		TaskID:    "task-1",
		Timestamp: at(3),
		Result:    protocol.NewFlexibleText("model unavailable"),
	})
	assert.False(t, snap.IsLoading)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, "Error: model unavailable", snap.Messages[0].Content)
	assert.Equal(t, StatusCompleted, snap.Messages[0].Status)
}

func TestProcessor_UnknownTaskCompleteIsTolerated(t *testing.T) {
	p := New()
	snap := p.ProcessEvent(protocol.TaskCompleteEvent{TaskID: "never-started", Timestamp: at(0)})
	assert.False(t, snap.IsLoading)
	assert.Empty(t, snap.Messages)
}

// --- Agent lifecycle ---------------------------------------------------------

func TestProcessor_BareRequestSubsumedByTask(t *testing.T) {
	p := New()
	snap := p.ProcessEvent(protocol.AgentStartEvent{RequestID: "req-1", Timestamp: at(0)})
	assert.True(t, snap.IsLoading)
	assert.Equal(t, []string{"req-1"}, snap.RunningRequests)

	// The task takes over as the loading signal; the bare request spinner
	// must not linger.
	snap = p.ProcessEvent(protocol.TaskStartEvent{TaskID: "task-1", Timestamp: at(1)})
	assert.True(t, snap.IsLoading)
	assert.Empty(t, snap.RunningRequests)
	assert.Equal(t, []string{"task-1"}, snap.RunningTasks)

	snap = p.ProcessEvent(protocol.TaskCompleteEvent{TaskID: "task-1", Timestamp: at(2)})
	assert.False(t, snap.IsLoading)
}

func TestProcessor_AgentStartDuringTaskIsNotBare(t *testing.T) {
	p := New()
	p.ProcessEvent(protocol.TaskStartEvent{TaskID: "task-1", Timestamp: at(0)})
	snap := p.ProcessEvent(protocol.AgentStartEvent{RequestID: "req-1", Timestamp: at(1)})
	assert.Empty(t, snap.RunningRequests)

	// Completing the task ends loading: no request spinner was opened.
	snap = p.ProcessEvent(protocol.TaskCompleteEvent{TaskID: "task-1", Timestamp: at(2)})
	assert.False(t, snap.IsLoading)
}

func TestProcessor_AgentUpsertIsAdditive(t *testing.T) {
	p := New()
	p.ProcessEvent(protocol.AgentStartEvent{
		RequestID: "req-1",
		Timestamp: at(0),
		Status:    "running",
		Agent: &protocol.AgentInfo{
			Model:      "gpt-5.2",
			ModelClass: "reasoning",
			Tags:       []string{"coder"},
		},
	})
	// A status-only update must not erase the descriptor.
	p.ProcessEvent(protocol.AgentStatusEvent{RequestID: "req-1", Timestamp: at(1), Status: "thinking"})
	cost := 0.42
	dur := 1800.0
	snap := p.ProcessEvent(protocol.AgentDoneEvent{
		RequestID:  "req-1",
		Timestamp:  at(2),
		Status:     "done",
		Cost:       &cost,
		DurationMS: &dur,
	})

	ra, ok := snap.RequestAgents["req-1"]
	require.True(t, ok)
	assert.Equal(t, "gpt-5.2", ra.Model)
	assert.Equal(t, "reasoning", ra.ModelClass)
	assert.Equal(t, []string{"coder"}, ra.Tags)
	assert.Equal(t, "done", ra.Status)
	assert.Equal(t, 0.42, ra.Cost)
	assert.Equal(t, 1800.0, ra.DurationMS)
	assert.Zero(t, ra.DurationWithTools)
	assert.Equal(t, at(0).Time(), ra.StartTime)

	// The record survives the request finishing.
	assert.Empty(t, snap.RunningRequests)
	assert.False(t, snap.IsLoading)
}

func TestProcessor_AgentStatusForUnknownRequestCreatesRecord(t *testing.T) {
	p := New()
	snap := p.ProcessEvent(protocol.AgentStatusEvent{RequestID: "req-9", Timestamp: at(0), Status: "warming"})
	ra, ok := snap.RequestAgents["req-9"]
	require.True(t, ok)
	assert.Equal(t, "warming", ra.Status)
	// agent_status never opens a loading spinner.
	assert.Empty(t, snap.RunningRequests)
}

func TestProcessor_AgentEventWithoutRequestIDDropped(t *testing.T) {
	p := New()
	snap := p.ProcessEvent(protocol.AgentStartEvent{Timestamp: at(0), Status: "running"})
	assert.Empty(t, snap.RequestAgents)
	assert.False(t, snap.IsLoading)
}

func TestProcessor_BareRequestTTLExpiry(t *testing.T) {
	p := New(WithBareRequestTTL(30 * time.Second))
	snap := p.ProcessEvent(protocol.AgentStartEvent{RequestID: "req-1", Timestamp: at(0)})
	assert.True(t, snap.IsLoading)

	// Any later event advances event time past the TTL and sweeps the
	// abandoned request.
	snap = p.ProcessEvent(protocol.CostUpdateEvent{Timestamp: at(60)})
	assert.False(t, snap.IsLoading)
	assert.Empty(t, snap.RunningRequests)
	// The agent record itself is retained.
	assert.Contains(t, snap.RequestAgents, "req-1")
}

// --- Streaming messages ------------------------------------------------------

func TestProcessor_StreamedMessageAssembly(t *testing.T) {
	p := New()
	p.ProcessEvent(protocol.MessageStartEvent{MessageID: "msg-1", MessageType: "message", Timestamp: at(0)})
	p.ProcessEvent(protocol.MessageDeltaEvent{MessageID: "msg-1", Content: frag(0, "Hello"), Timestamp: at(1)})
	snap := p.ProcessEvent(protocol.MessageDeltaEvent{MessageID: "msg-1", Content: frag(1, " world"), Timestamp: at(2)})

	require.Len(t, snap.Messages, 1)
	assert.Equal(t, "Hello world", snap.Messages[0].Content)
	assert.Equal(t, StatusInProgress, snap.Messages[0].Status)
	assert.Equal(t, KindMessage, snap.Messages[0].Type)
}

func TestProcessor_FragmentReorderIsIdempotent(t *testing.T) {
	ordered := New()
	ordered.ProcessEvent(protocol.MessageDeltaEvent{MessageID: "m", Content: frag(0, "a"), Timestamp: at(0)})
	ordered.ProcessEvent(protocol.MessageDeltaEvent{MessageID: "m", Content: frag(1, "b"), Timestamp: at(1)})
	ordered.ProcessEvent(protocol.MessageDeltaEvent{MessageID: "m", Content: frag(2, "c"), Timestamp: at(2)})

	shuffled := New()
	shuffled.ProcessEvent(protocol.MessageDeltaEvent{MessageID: "m", Content: frag(2, "c"), Timestamp: at(0)})
	shuffled.ProcessEvent(protocol.MessageDeltaEvent{MessageID: "m", Content: frag(0, "a"), Timestamp: at(1)})
	shuffled.ProcessEvent(protocol.MessageDeltaEvent{MessageID: "m", Content: frag(1, "b"), Timestamp: at(2)})

	want := ordered.Snapshot().Messages[0].Content
	got := shuffled.Snapshot().Messages[0].Content
	assert.Equal(t, "abc", want)
	assert.Equal(t, want, got)
}

func TestProcessor_DeltaBeforeStartCreatesPlaceholder(t *testing.T) {
	p := New()
	snap := p.ProcessEvent(protocol.MessageDeltaEvent{MessageID: "late", Thinking: frag(0, "hmm"), Timestamp: at(0)})
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, KindReasoning, snap.Messages[0].Type)
	assert.Equal(t, "hmm", snap.Messages[0].Content)
	assert.Equal(t, StatusInProgress, snap.Messages[0].Status)
}

func TestProcessor_DuplicateMessageStartKeepsOnePlaceholder(t *testing.T) {
	p := New()
	p.ProcessEvent(protocol.MessageStartEvent{MessageID: "msg-1", Timestamp: at(0)})
	snap := p.ProcessEvent(protocol.MessageStartEvent{MessageID: "msg-1", Timestamp: at(1)})
	assert.Len(t, snap.Messages, 1)
}

func TestProcessor_MessageStartWithoutIDGeneratesOne(t *testing.T) {
	p := New()
	snap := p.ProcessEvent(protocol.MessageStartEvent{Timestamp: at(0)})
	require.Len(t, snap.Messages, 1)
	assert.NotEmpty(t, snap.Messages[0].ID)
}

// --- Streaming tool calls ----------------------------------------------------

func TestProcessor_ToolCallArgumentsReplacedWholesale(t *testing.T) {
	p := New()
	p.ProcessEvent(protocol.ToolStartEvent{ToolID: "tool-1", CallID: "call-1", Name: "search", Timestamp: at(0)})
	p.ProcessEvent(protocol.ToolDeltaEvent{ToolID: "tool-1", Arguments: `{"q":`, Timestamp: at(1)})
	snap := p.ProcessEvent(protocol.ToolDeltaEvent{ToolID: "tool-1", Arguments: `{"q":"go"}`, Timestamp: at(2)})

	require.Len(t, snap.Messages, 1)
	msg := snap.Messages[0]
	assert.Equal(t, KindFunctionCall, msg.Type)
	assert.Equal(t, "search", msg.ToolName)
	assert.Equal(t, "call-1", msg.CallID)
	assert.Equal(t, `{"q":"go"}`, msg.Content)
}

func TestProcessor_ToolDeltaBeforeStart(t *testing.T) {
	p := New()
	p.ProcessEvent(protocol.ToolDeltaEvent{ToolID: "tool-1", Arguments: `{"q":"go"}`, Timestamp: at(0)})
	snap := p.ProcessEvent(protocol.ToolStartEvent{ToolID: "tool-1", Name: "search", Timestamp: at(1)})

	require.Len(t, snap.Messages, 1)
	assert.Equal(t, "search", snap.Messages[0].ToolName)
	assert.Equal(t, `{"q":"go"}`, snap.Messages[0].Content)
}

// --- Authoritative response items --------------------------------------------

func TestProcessor_AuthoritativeReplacementKeepsPosition(t *testing.T) {
	p := New()
	p.ProcessEvent(protocol.MessageStartEvent{MessageID: "msg-1", Timestamp: at(0)})
	p.ProcessEvent(protocol.MessageDeltaEvent{MessageID: "msg-1", Content: frag(0, "partial"), Timestamp: at(1)})
	p.ProcessEvent(protocol.ToolStartEvent{ToolID: "tool-1", Name: "search", Timestamp: at(2)})

	snap := p.ProcessEvent(protocol.ResponseOutputEvent{
		Timestamp: at(3),
		Message: protocol.OutputItem{
			ID:      "msg-1",
			Type:    "message",
			Role:    "assistant",
			Status:  "completed",
			Content: protocol.NewFlexibleText("final text"),
		},
	})

	require.Len(t, snap.Messages, 2)
	assert.Equal(t, "msg-1", snap.Messages[0].ID, "replacement must keep first-insertion position")
	assert.Equal(t, "final text", snap.Messages[0].Content)
	assert.Equal(t, StatusCompleted, snap.Messages[0].Status)
	assert.Equal(t, "tool-1", snap.Messages[1].ID)
}

func TestProcessor_DuplicateResponseOutputDropped(t *testing.T) {
	p := New()
	item := protocol.OutputItem{ID: "msg-1", Type: "message", Content: protocol.NewFlexibleText("first")}
	p.ProcessEvent(protocol.ResponseOutputEvent{Timestamp: at(0), Message: item})

	dup := protocol.OutputItem{ID: "msg-1", Type: "message", Content: protocol.NewFlexibleText("second")}
	snap := p.ProcessEvent(protocol.ResponseOutputEvent{Timestamp: at(1), Message: dup})

	require.Len(t, snap.Messages, 1)
	assert.Equal(t, "first", snap.Messages[0].Content, "duplicate ids are dropped, not re-applied")
}

func TestProcessor_ToolResultInsertedAfterCall(t *testing.T) {
	p := New()
	p.ProcessEvent(protocol.ResponseOutputEvent{Timestamp: at(0), Message: protocol.OutputItem{
		ID: "call-item", Type: "function_call", Name: "search", CallID: "call-1", Arguments: `{"q":"go"}`,
	}})
	p.ProcessEvent(protocol.ResponseOutputEvent{Timestamp: at(1), Message: protocol.OutputItem{
		ID: "after", Type: "message", Content: protocol.NewFlexibleText("meanwhile"),
	}})

	snap := p.ProcessEvent(protocol.ResponseOutputEvent{Timestamp: at(2), Message: protocol.OutputItem{
		ID: "result-item", Type: "function_call_output", CallID: "call-1",
		Output: protocol.NewFlexibleText("3 results"),
	}})

	require.Len(t, snap.Messages, 3)
	assert.Equal(t, "call-item", snap.Messages[0].ID)
	assert.Equal(t, "result-item", snap.Messages[1].ID, "result must directly follow its call")
	assert.Equal(t, "after", snap.Messages[2].ID)
	assert.Equal(t, KindFunctionCallOutput, snap.Messages[1].Type)
	assert.Equal(t, "3 results", snap.Messages[1].Content)
}

func TestProcessor_ToolResultFallsBackToCallMessageID(t *testing.T) {
	p := New()
	// The streamed call has no call_id, so pairing must fall back to the
	// call's message id.
	p.ProcessEvent(protocol.ToolStartEvent{ToolID: "tool-1", Name: "fetch", Timestamp: at(0)})
	p.ProcessEvent(protocol.ResponseOutputEvent{Timestamp: at(1), Message: protocol.OutputItem{
		ID: "chat", Type: "message", Content: protocol.NewFlexibleText("text"),
	}})

	snap := p.ProcessEvent(protocol.ResponseOutputEvent{Timestamp: at(2), Message: protocol.OutputItem{
		ID: "result-item", Type: "function_call_output", CallID: "tool-1",
		Output: protocol.NewFlexibleText("ok"),
	}})

	require.Len(t, snap.Messages, 3)
	assert.Equal(t, "tool-1", snap.Messages[0].ID)
	assert.Equal(t, "result-item", snap.Messages[1].ID)
	assert.Equal(t, "chat", snap.Messages[2].ID)
}

func TestProcessor_UnmatchedToolResultAppended(t *testing.T) {
	p := New()
	p.ProcessEvent(protocol.ResponseOutputEvent{Timestamp: at(0), Message: protocol.OutputItem{
		ID: "chat", Type: "message", Content: protocol.NewFlexibleText("text"),
	}})
	snap := p.ProcessEvent(protocol.ResponseOutputEvent{Timestamp: at(1), Message: protocol.OutputItem{
		ID: "orphan", Type: "function_call_output", CallID: "missing-call",
		Output: protocol.NewFlexibleText("late"),
	}})
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, "orphan", snap.Messages[1].ID)
}

func TestProcessor_ResponseOutputWithoutIDDropped(t *testing.T) {
	p := New()
	snap := p.ProcessEvent(protocol.ResponseOutputEvent{Timestamp: at(0), Message: protocol.OutputItem{
		Type: "message", Content: protocol.NewFlexibleText("anonymous"),
	}})
	assert.Empty(t, snap.Messages)
}

// --- Cost totals -------------------------------------------------------------

func TestProcessor_CostTotalsAccumulate(t *testing.T) {
	p := New()
	p.ProcessEvent(protocol.CostUpdateEvent{Timestamp: at(0), Usage: &protocol.Usage{Cost: 0.10, TotalTokens: 100}})
	p.ProcessEvent(protocol.CostUpdateEvent{Timestamp: at(1)}) // no usage: zero contribution
	snap := p.ProcessEvent(protocol.CostUpdateEvent{Timestamp: at(2), Usage: &protocol.Usage{Cost: 0.05, TotalTokens: 50}})

	assert.InDelta(t, 0.15, snap.TotalCost, 1e-9)
	assert.Equal(t, 150, snap.TotalTokens)
}

func TestProcessor_CostTotalsOrderIndependent(t *testing.T) {
	a := New()
	a.ProcessEvent(protocol.CostUpdateEvent{Timestamp: at(0), Usage: &protocol.Usage{Cost: 0.10, TotalTokens: 100}})
	a.ProcessEvent(protocol.CostUpdateEvent{Timestamp: at(1), Usage: &protocol.Usage{Cost: 0.05, TotalTokens: 50}})

	b := New()
	b.ProcessEvent(protocol.CostUpdateEvent{Timestamp: at(0), Usage: &protocol.Usage{Cost: 0.05, TotalTokens: 50}})
	b.ProcessEvent(protocol.CostUpdateEvent{Timestamp: at(1), Usage: &protocol.Usage{Cost: 0.10, TotalTokens: 100}})

	assert.Equal(t, a.Snapshot().TotalCost, b.Snapshot().TotalCost)
	assert.Equal(t, a.Snapshot().TotalTokens, b.Snapshot().TotalTokens)
}

// --- User messages, reset, snapshots -----------------------------------------

func TestProcessor_AddUserMessage(t *testing.T) {
	p := New()
	snap := p.AddUserMessage("hello there")
	require.Len(t, snap.Messages, 1)
	msg := snap.Messages[0]
	assert.Equal(t, "user", msg.Role)
	assert.Equal(t, KindMessage, msg.Type)
	assert.Equal(t, StatusCompleted, msg.Status)
	assert.Equal(t, "hello there", msg.Content)
	assert.NotEmpty(t, msg.ID)

	snap2 := p.AddUserMessage("hello there")
	require.Len(t, snap2.Messages, 2)
	assert.NotEqual(t, snap2.Messages[0].ID, snap2.Messages[1].ID)
}

func TestProcessor_ResetMatchesFresh(t *testing.T) {
	p := New()
	p.ProcessEvent(protocol.TaskStartEvent{TaskID: "task-1", Timestamp: at(0)})
	p.ProcessEvent(protocol.AgentStartEvent{RequestID: "req-1", Timestamp: at(1)})
	p.ProcessEvent(protocol.CostUpdateEvent{Timestamp: at(2), Usage: &protocol.Usage{Cost: 1, TotalTokens: 10}})
	p.AddUserMessage("hi")

	p.Reset()
	assert.Equal(t, New().Snapshot(), p.Snapshot())
}

func TestProcessor_SnapshotIsIndependent(t *testing.T) {
	p := New()
	p.ProcessEvent(protocol.AgentStartEvent{
		RequestID: "req-1",
		Timestamp: at(0),
		Agent:     &protocol.AgentInfo{Tags: []string{"coder"}},
	})
	p.AddUserMessage("first")

	snap := p.Snapshot()
	require.Len(t, snap.Messages, 1)

	// Mutating the snapshot must not leak into the processor.
	snap.Messages[0].Content = "tampered"
	snap.RequestAgents["req-1"].Tags[0] = "tampered"
	delete(snap.RequestAgents, "req-1")

	fresh := p.Snapshot()
	assert.Equal(t, "first", fresh.Messages[0].Content)
	require.Contains(t, fresh.RequestAgents, "req-1")
	assert.Equal(t, []string{"coder"}, fresh.RequestAgents["req-1"].Tags)

	// And later events must not mutate an already-taken snapshot.
	before := p.Snapshot()
	p.AddUserMessage("second")
	assert.Len(t, before.Messages, 1)
}

func TestProcessor_MaxMessagesEviction(t *testing.T) {
	p := New(WithMaxMessages(2))
	p.AddUserMessage("one")
	p.AddUserMessage("two")
	snap := p.AddUserMessage("three")
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, "two", snap.Messages[0].Content)
	assert.Equal(t, "three", snap.Messages[1].Content)
}

func TestProcessor_ConcurrentAccess(t *testing.T) {
	p := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				p.ProcessEvent(protocol.MessageDeltaEvent{
					MessageID: fmt.Sprintf("msg-%d", n),
					Content:   frag(j, "x"),
					Timestamp: at(j),
				})
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = p.Snapshot()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, p.Snapshot().Messages, 8)
}
