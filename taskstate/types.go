// Package taskstate folds the session event stream into renderable
// conversation state: an ordered message list assembled from streaming
// fragments and authoritative response items, per-request agent records,
// running task/request sets, and session cost totals. A single Processor is
// the source of truth; readers get deep-copied snapshots.
package taskstate

import "time"

// --- Message types (canonical definitions) -----------------------------------

// MessageKind categorizes output messages.
type MessageKind string

const (
	KindMessage            MessageKind = "message"
	KindReasoning          MessageKind = "reasoning"
	KindFunctionCall       MessageKind = "function_call"
	KindFunctionCallOutput MessageKind = "function_call_output"
)

// MessageStatus represents the delivery state of a message.
type MessageStatus string

const (
	StatusInProgress MessageStatus = "in_progress"
	StatusCompleted  MessageStatus = "completed"
)

// OutputMessage represents one entry in the conversation transcript.
// All fields are value types, so copying the struct copies the message.
type OutputMessage struct {
	Timestamp time.Time     `json:"timestamp"`
	ID        string        `json:"id"`
	Type      MessageKind   `json:"type"`
	Role      string        `json:"role,omitempty"`
	Content   string        `json:"content,omitempty"`
	Status    MessageStatus `json:"status,omitempty"`
	ToolName  string        `json:"tool_name,omitempty"`
	CallID    string        `json:"call_id,omitempty"`
}

// --- Request agents ----------------------------------------------------------

// RequestAgent records which agent served a request and how it went.
// Fields are filled in additively as agent_start/agent_status/agent_done
// events arrive; later events never erase earlier fields.
type RequestAgent struct {
	RequestID         string    `json:"request_id"`
	StartTime         time.Time `json:"start_time"`
	AgentID           string    `json:"agent_id,omitempty"`
	Name              string    `json:"name,omitempty"`
	Model             string    `json:"model,omitempty"`
	ModelClass        string    `json:"model_class,omitempty"`
	Tags              []string  `json:"tags,omitempty"`
	Status            string    `json:"status,omitempty"`
	Cost              float64   `json:"cost,omitempty"`
	DurationMS        float64   `json:"duration_ms,omitempty"`
	DurationWithTools float64   `json:"duration_with_tools_ms,omitempty"`
}

// DeepCopyRequestAgent returns a deep copy of a RequestAgent, cloning the
// Tags slice so that the caller's copy is independent.
func DeepCopyRequestAgent(ra RequestAgent) RequestAgent {
	if ra.Tags != nil {
		ra.Tags = append([]string(nil), ra.Tags...)
	}
	return ra
}

// --- Snapshot ----------------------------------------------------------------

// Snapshot is a deep-copied view of the processor state. It shares no
// mutable memory with the processor and is safe to hold, mutate, or
// serialize after further events are processed.
//
// RunningTasks and RunningRequests are sorted so snapshots of equal state
// compare equal.
type Snapshot struct {
	Messages        []OutputMessage         `json:"messages"`
	RequestAgents   map[string]RequestAgent `json:"request_agents"`
	TotalCost       float64                 `json:"total_cost"`
	TotalTokens     int                     `json:"total_tokens"`
	IsLoading       bool                    `json:"is_loading"`
	RunningTasks    []string                `json:"running_tasks"`
	RunningRequests []string                `json:"running_requests"`
}
