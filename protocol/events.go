package protocol

import "time"

// EventType discriminates between wire event kinds.
type EventType string

const (
	EventTypeTaskStart      EventType = "task_start"
	EventTypeTaskComplete   EventType = "task_complete"
	EventTypeTaskFatalError EventType = "task_fatal_error"
	EventTypeAgentStart     EventType = "agent_start"
	EventTypeAgentStatus    EventType = "agent_status"
	EventTypeAgentDone      EventType = "agent_done"
	EventTypeResponseOutput EventType = "response_output"
	EventTypeCostUpdate     EventType = "cost_update"
	EventTypeMessageStart   EventType = "message_start"
	EventTypeMessageDelta   EventType = "message_delta"
	EventTypeToolStart      EventType = "tool_start"
	EventTypeToolDelta      EventType = "tool_delta"
	EventTypeMetaMemory     EventType = "metamemory_event"
	EventTypeMetaCognition  EventType = "metacognition_event"
)

// Event is the interface for all session stream events.
type Event interface {
	EventType() EventType
	// OccurredAt returns the event timestamp, or the zero time if the
	// producer did not stamp one.
	OccurredAt() time.Time
}

// SessionState tracks the lifecycle of a metamemory or metacognition run.
type SessionState string

const (
	SessionStateRunning   SessionState = "running"
	SessionStateCompleted SessionState = "completed"
)

// IsCompleted reports whether the run has finished.
func (s SessionState) IsCompleted() bool { return s == SessionStateCompleted }

// Usage carries cost and token counts attached to a cost_update event.
// Producers omit fields they do not track; absent fields decode as zero.
type Usage struct {
	Model        string  `json:"model,omitempty"`
	Cost         float64 `json:"cost,omitempty"`
	InputTokens  int     `json:"input_tokens,omitempty"`
	OutputTokens int     `json:"output_tokens,omitempty"`
	CachedTokens int     `json:"cached_tokens,omitempty"`
	TotalTokens  int     `json:"total_tokens,omitempty"`
}

// AgentInfo describes the agent serving a request.
type AgentInfo struct {
	AgentID    string   `json:"agent_id,omitempty"`
	Name       string   `json:"name,omitempty"`
	Model      string   `json:"model,omitempty"`
	ModelClass string   `json:"model_class,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

// Fragment is one ordered chunk of streamed text. Fragments may arrive out
// of order; consumers reassemble by sorting on Order.
type Fragment struct {
	Order int    `json:"order"`
	Text  string `json:"text"`
}

// OutputItem is a finalized response item carried by a response_output
// event. Type is one of "message", "reasoning", "function_call" or
// "function_call_output"; the remaining fields are populated per type.
type OutputItem struct {
	ID        string       `json:"id,omitempty"`
	Type      string       `json:"type"`
	Role      string       `json:"role,omitempty"`
	Status    string       `json:"status,omitempty"`
	Content   FlexibleText `json:"content,omitempty"`
	Name      string       `json:"name,omitempty"`
	Arguments string       `json:"arguments,omitempty"`
	CallID    string       `json:"call_id,omitempty"`
	Output    FlexibleText `json:"output,omitempty"`
}

// TopicTagPayload is a topic tag delta carried by a metamemory event.
type TopicTagPayload struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type,omitempty"`
}

// TaggedMessagePayload is a message tagging delta carried by a metamemory event.
type TaggedMessagePayload struct {
	MessageID     string   `json:"message_id"`
	TopicTags     []string `json:"topic_tags,omitempty"`
	Summary       string   `json:"summary,omitempty"`
	ThreadSummary string   `json:"thread_summary,omitempty"`
}

// MemorySession is the payload of a metamemory event: one tagging run,
// identified by EventID, plus the topic and message deltas it produced.
type MemorySession struct {
	EventID        string                 `json:"event_id"`
	State          SessionState           `json:"state,omitempty"`
	StartedAt      Timestamp              `json:"started_at"`
	CompletedAt    Timestamp              `json:"completed_at"`
	ProcessingTime float64                `json:"processing_time,omitempty"` // milliseconds
	NewTopics      []TopicTagPayload      `json:"new_topics,omitempty"`
	UpdatedTopics  []TopicTagPayload      `json:"updated_topics,omitempty"`
	Messages       []TaggedMessagePayload `json:"messages,omitempty"`
}

// CognitionState is the live tuning state reported by a metacognition run.
type CognitionState struct {
	Frequency      int                `json:"frequency,omitempty"`
	ThoughtDelay   float64            `json:"thought_delay,omitempty"`
	Processing     bool               `json:"processing,omitempty"`
	DisabledModels []string           `json:"disabled_models,omitempty"`
	ModelScores    map[string]float64 `json:"model_scores,omitempty"`
}

// CognitionSession is the payload of a metacognition event: one analysis
// run, identified by EventID, plus the adjustments it produced and an
// optional replacement tuning state.
type CognitionSession struct {
	EventID          string          `json:"event_id"`
	State            SessionState    `json:"state,omitempty"`
	StartedAt        Timestamp       `json:"started_at"`
	CompletedAt      Timestamp       `json:"completed_at"`
	ProcessingTime   float64         `json:"processing_time,omitempty"` // milliseconds
	Adjustments      []string        `json:"adjustments,omitempty"`
	InjectedThoughts []string        `json:"injected_thoughts,omitempty"`
	CurrentState     *CognitionState `json:"current_state,omitempty"`
}

// TaskStartEvent opens a task.
type TaskStartEvent struct {
	Type      EventType `json:"type"`
	Timestamp Timestamp `json:"timestamp"`
	TaskID    string    `json:"task_id"`
	RequestID string    `json:"request_id,omitempty"`
}

// EventType returns the event type.
func (e TaskStartEvent) EventType() EventType { return EventTypeTaskStart }

// OccurredAt returns the event timestamp.
func (e TaskStartEvent) OccurredAt() time.Time { return e.Timestamp.Time() }

// TaskCompleteEvent closes a task, optionally carrying its final result.
type TaskCompleteEvent struct {
	Type      EventType    `json:"type"`
	Timestamp Timestamp    `json:"timestamp"`
	TaskID    string       `json:"task_id"`
	Result    FlexibleText `json:"result,omitempty"`
}

// EventType returns the event type.
func (e TaskCompleteEvent) EventType() EventType { return EventTypeTaskComplete }

// OccurredAt returns the event timestamp.
func (e TaskCompleteEvent) OccurredAt() time.Time { return e.Timestamp.Time() }

// TaskFatalErrorEvent closes a task that failed, carrying the failure result.
type TaskFatalErrorEvent struct {
	Type      EventType    `json:"type"`
	Timestamp Timestamp    `json:"timestamp"`
	TaskID    string       `json:"task_id"`
	Result    FlexibleText `json:"result,omitempty"`
}

// EventType returns the event type.
func (e TaskFatalErrorEvent) EventType() EventType { return EventTypeTaskFatalError }

// OccurredAt returns the event timestamp.
func (e TaskFatalErrorEvent) OccurredAt() time.Time { return e.Timestamp.Time() }

// AgentStartEvent announces the agent serving a request.
type AgentStartEvent struct {
	Type      EventType  `json:"type"`
	Timestamp Timestamp  `json:"timestamp"`
	RequestID string     `json:"request_id,omitempty"`
	Status    string     `json:"status,omitempty"`
	Agent     *AgentInfo `json:"agent,omitempty"`
}

// EventType returns the event type.
func (e AgentStartEvent) EventType() EventType { return EventTypeAgentStart }

// OccurredAt returns the event timestamp.
func (e AgentStartEvent) OccurredAt() time.Time { return e.Timestamp.Time() }

// AgentStatusEvent updates the status of a running request's agent.
type AgentStatusEvent struct {
	Type      EventType  `json:"type"`
	Timestamp Timestamp  `json:"timestamp"`
	RequestID string     `json:"request_id,omitempty"`
	Status    string     `json:"status,omitempty"`
	Agent     *AgentInfo `json:"agent,omitempty"`
}

// EventType returns the event type.
func (e AgentStatusEvent) EventType() EventType { return EventTypeAgentStatus }

// OccurredAt returns the event timestamp.
func (e AgentStatusEvent) OccurredAt() time.Time { return e.Timestamp.Time() }

// AgentDoneEvent marks a request's agent as finished, carrying final
// metrics. Numeric fields are pointers so an absent field can be told apart
// from an explicit zero.
type AgentDoneEvent struct {
	Type                EventType `json:"type"`
	Timestamp           Timestamp `json:"timestamp"`
	RequestID           string    `json:"request_id,omitempty"`
	Status              string    `json:"status,omitempty"`
	Cost                *float64  `json:"cost,omitempty"`
	DurationMS          *float64  `json:"duration_ms,omitempty"`
	DurationWithToolsMS *float64  `json:"duration_with_tools_ms,omitempty"`
}

// EventType returns the event type.
func (e AgentDoneEvent) EventType() EventType { return EventTypeAgentDone }

// OccurredAt returns the event timestamp.
func (e AgentDoneEvent) OccurredAt() time.Time { return e.Timestamp.Time() }

// ResponseOutputEvent carries one authoritative response item.
type ResponseOutputEvent struct {
	Type      EventType  `json:"type"`
	Timestamp Timestamp  `json:"timestamp"`
	RequestID string     `json:"request_id,omitempty"`
	Message   OutputItem `json:"message"`
}

// EventType returns the event type.
func (e ResponseOutputEvent) EventType() EventType { return EventTypeResponseOutput }

// OccurredAt returns the event timestamp.
func (e ResponseOutputEvent) OccurredAt() time.Time { return e.Timestamp.Time() }

// CostUpdateEvent reports usage for one model call.
type CostUpdateEvent struct {
	Type      EventType `json:"type"`
	Timestamp Timestamp `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
	Usage     *Usage    `json:"usage,omitempty"`
}

// EventType returns the event type.
func (e CostUpdateEvent) EventType() EventType { return EventTypeCostUpdate }

// OccurredAt returns the event timestamp.
func (e CostUpdateEvent) OccurredAt() time.Time { return e.Timestamp.Time() }

// MessageStartEvent opens a streamed assistant message or reasoning block.
type MessageStartEvent struct {
	Type        EventType `json:"type"`
	Timestamp   Timestamp `json:"timestamp"`
	RequestID   string    `json:"request_id,omitempty"`
	MessageID   string    `json:"message_id,omitempty"`
	MessageType string    `json:"message_type,omitempty"` // "message" or "reasoning"
	Role        string    `json:"role,omitempty"`
}

// EventType returns the event type.
func (e MessageStartEvent) EventType() EventType { return EventTypeMessageStart }

// OccurredAt returns the event timestamp.
func (e MessageStartEvent) OccurredAt() time.Time { return e.Timestamp.Time() }

// MessageDeltaEvent carries one text or thinking fragment for a streamed
// message. Exactly one of Content and Thinking is set.
type MessageDeltaEvent struct {
	Type      EventType `json:"type"`
	Timestamp Timestamp `json:"timestamp"`
	MessageID string    `json:"message_id"`
	Content   *Fragment `json:"content,omitempty"`
	Thinking  *Fragment `json:"thinking,omitempty"`
}

// EventType returns the event type.
func (e MessageDeltaEvent) EventType() EventType { return EventTypeMessageDelta }

// OccurredAt returns the event timestamp.
func (e MessageDeltaEvent) OccurredAt() time.Time { return e.Timestamp.Time() }

// ToolStartEvent opens a streamed tool call.
type ToolStartEvent struct {
	Type      EventType `json:"type"`
	Timestamp Timestamp `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
	ToolID    string    `json:"tool_id"`
	CallID    string    `json:"call_id,omitempty"`
	Name      string    `json:"name,omitempty"`
}

// EventType returns the event type.
func (e ToolStartEvent) EventType() EventType { return EventTypeToolStart }

// OccurredAt returns the event timestamp.
func (e ToolStartEvent) OccurredAt() time.Time { return e.Timestamp.Time() }

// ToolDeltaEvent replaces the accumulated argument string of a streamed tool
// call. Arguments is the full string so far, not an increment.
type ToolDeltaEvent struct {
	Type      EventType `json:"type"`
	Timestamp Timestamp `json:"timestamp"`
	ToolID    string    `json:"tool_id"`
	Arguments string    `json:"arguments,omitempty"`
}

// EventType returns the event type.
func (e ToolDeltaEvent) EventType() EventType { return EventTypeToolDelta }

// OccurredAt returns the event timestamp.
func (e ToolDeltaEvent) OccurredAt() time.Time { return e.Timestamp.Time() }

// MetaMemoryEvent carries one metamemory tagging run.
type MetaMemoryEvent struct {
	Type      EventType     `json:"type"`
	Timestamp Timestamp     `json:"timestamp"`
	Data      MemorySession `json:"data"`
}

// EventType returns the event type.
func (e MetaMemoryEvent) EventType() EventType { return EventTypeMetaMemory }

// OccurredAt returns the event timestamp.
func (e MetaMemoryEvent) OccurredAt() time.Time { return e.Timestamp.Time() }

// MetaCognitionEvent carries one metacognition analysis run.
type MetaCognitionEvent struct {
	Type      EventType        `json:"type"`
	Timestamp Timestamp        `json:"timestamp"`
	Data      CognitionSession `json:"data"`
}

// EventType returns the event type.
func (e MetaCognitionEvent) EventType() EventType { return EventTypeMetaCognition }

// OccurredAt returns the event timestamp.
func (e MetaCognitionEvent) OccurredAt() time.Time { return e.Timestamp.Time() }
