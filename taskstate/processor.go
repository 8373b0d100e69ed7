package taskstate

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/just-every/demo-ui-sub000/protocol"
)

// Processor folds task, agent, streaming and cost events into conversation
// state. It never rejects an event: malformed or out-of-order input is
// dropped (and logged) or repaired by lazily creating the state it refers
// to, so a partially corrupt stream still renders.
type Processor struct {
	mu             sync.RWMutex
	log            *slog.Logger
	maxMessages    int
	bareRequestTTL time.Duration

	messages        []OutputMessage
	index           map[string]int // message id -> position in messages
	partials        map[string]*partialMessage
	agents          map[string]RequestAgent
	runningTasks    map[string]struct{}
	runningRequests map[string]time.Time // request id -> opened at (event time)
	totalCost       float64
	totalTokens     int
	clock           time.Time // high-water mark of observed event time
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger routes drop diagnostics to the given logger.
func WithLogger(log *slog.Logger) Option {
	return func(p *Processor) { p.log = log }
}

// WithMaxMessages caps the transcript length; the oldest messages are
// evicted first. Zero or negative means uncapped.
func WithMaxMessages(n int) Option {
	return func(p *Processor) { p.maxMessages = n }
}

// WithBareRequestTTL expires running requests that were opened without an
// enclosing task once they are older than d in event time. Zero keeps them
// running until their agent_done arrives.
func WithBareRequestTTL(d time.Duration) Option {
	return func(p *Processor) { p.bareRequestTTL = d }
}

// New creates an empty processor.
func New(opts ...Option) *Processor {
	p := &Processor{log: slog.Default()}
	p.resetLocked()
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// --- Write API ---------------------------------------------------------------

// ProcessEvent applies one event and returns the resulting snapshot.
// Events the processor does not handle leave the state unchanged.
func (p *Processor) ProcessEvent(ev protocol.Event) Snapshot {
	p.mu.Lock()
	if ev != nil {
		now := p.observe(ev)
		switch e := ev.(type) {
		case protocol.TaskStartEvent:
			p.handleTaskStart(e)
		case protocol.TaskCompleteEvent:
			p.handleTaskComplete(e, now)
		case protocol.TaskFatalErrorEvent:
			p.handleTaskFatalError(e, now)
		case protocol.AgentStartEvent:
			p.handleAgentStart(e, now)
		case protocol.AgentStatusEvent:
			p.handleAgentStatus(e, now)
		case protocol.AgentDoneEvent:
			p.handleAgentDone(e, now)
		case protocol.ResponseOutputEvent:
			p.handleResponseOutput(e, now)
		case protocol.CostUpdateEvent:
			p.handleCostUpdate(e)
		case protocol.MessageStartEvent:
			p.handleMessageStart(e, now)
		case protocol.MessageDeltaEvent:
			p.handleMessageDelta(e, now)
		case protocol.ToolStartEvent:
			p.handleToolStart(e, now)
		case protocol.ToolDeltaEvent:
			p.handleToolDelta(e, now)
		}
		p.sweepBareRequests()
	}
	p.mu.Unlock()
	return p.Snapshot()
}

// AddUserMessage appends a completed user message with a generated id and
// returns the resulting snapshot.
func (p *Processor) AddUserMessage(content string) Snapshot {
	p.mu.Lock()
	p.appendMessage(OutputMessage{
		Timestamp: time.Now(),
		ID:        uuid.New().String(),
		Type:      KindMessage,
		Role:      "user",
		Content:   content,
		Status:    StatusCompleted,
	})
	p.mu.Unlock()
	return p.Snapshot()
}

// Reset returns the processor to its initial empty state.
func (p *Processor) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
}

func (p *Processor) resetLocked() {
	p.messages = make([]OutputMessage, 0)
	p.index = make(map[string]int)
	p.partials = make(map[string]*partialMessage)
	p.agents = make(map[string]RequestAgent)
	p.runningTasks = make(map[string]struct{})
	p.runningRequests = make(map[string]time.Time)
	p.totalCost = 0
	p.totalTokens = 0
	p.clock = time.Time{}
}

// --- Read API ----------------------------------------------------------------

// Snapshot returns a deep-copied view of the current state.
func (p *Processor) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	snap := Snapshot{
		Messages:        make([]OutputMessage, len(p.messages)),
		RequestAgents:   make(map[string]RequestAgent, len(p.agents)),
		TotalCost:       p.totalCost,
		TotalTokens:     p.totalTokens,
		RunningTasks:    sortedKeys(p.runningTasks),
		RunningRequests: make([]string, 0, len(p.runningRequests)),
	}
	// OutputMessage carries only value fields, so the element copy is deep.
	copy(snap.Messages, p.messages)
	for id, ra := range p.agents {
		snap.RequestAgents[id] = DeepCopyRequestAgent(ra)
	}
	for id := range p.runningRequests {
		snap.RunningRequests = append(snap.RunningRequests, id)
	}
	sort.Strings(snap.RunningRequests)
	snap.IsLoading = len(p.runningTasks) > 0 || len(p.runningRequests) > 0
	return snap
}

// --- Task lifecycle ----------------------------------------------------------

func (p *Processor) handleTaskStart(e protocol.TaskStartEvent) {
	if e.TaskID == "" {
		p.log.Warn("dropping task_start without task id")
		return
	}
	p.runningTasks[e.TaskID] = struct{}{}
	// The task is now the loading signal. Requests opened bare before it
	// are subsumed, so their per-request spinners are cleared.
	for id := range p.runningRequests {
		delete(p.runningRequests, id)
	}
}

func (p *Processor) handleTaskComplete(e protocol.TaskCompleteEvent, now time.Time) {
	if e.TaskID == "" {
		p.log.Warn("dropping task_complete without task id")
		return
	}
	delete(p.runningTasks, e.TaskID)
	if text := e.Result.Text(); text != "" {
		p.appendMessage(OutputMessage{
			Timestamp: now,
			ID:        uuid.New().String(),
			Type:      KindMessage,
			Role:      "assistant",
			Content:   text,
			Status:    StatusCompleted,
		})
	}
}

func (p *Processor) handleTaskFatalError(e protocol.TaskFatalErrorEvent, now time.Time) {
	if e.TaskID == "" {
		p.log.Warn("dropping task_fatal_error without task id")
		return
	}
	delete(p.runningTasks, e.TaskID)
	text := e.Result.Text()
	if text == "" {
		text = "task failed"
	}
	p.appendMessage(OutputMessage{
		Timestamp: now,
		ID:        uuid.New().String(),
		Type:      KindMessage,
		Role:      "assistant",
		Content:   "Error: " + text,
		Status:    StatusCompleted,
	})
}

// --- Agent lifecycle ---------------------------------------------------------

func (p *Processor) handleAgentStart(e protocol.AgentStartEvent, now time.Time) {
	if e.RequestID == "" {
		p.log.Warn("dropping agent_start without request id")
		return
	}
	p.upsertAgent(e.RequestID, now, func(ra *RequestAgent) {
		applyAgentInfo(ra, e.Agent)
		if e.Status != "" {
			ra.Status = e.Status
		}
	})
	// A bare request only signals loading while no task is open; an open
	// task already covers it.
	if len(p.runningTasks) == 0 {
		p.runningRequests[e.RequestID] = now
	}
}

func (p *Processor) handleAgentStatus(e protocol.AgentStatusEvent, now time.Time) {
	if e.RequestID == "" {
		p.log.Warn("dropping agent_status without request id")
		return
	}
	p.upsertAgent(e.RequestID, now, func(ra *RequestAgent) {
		applyAgentInfo(ra, e.Agent)
		if e.Status != "" {
			ra.Status = e.Status
		}
	})
}

func (p *Processor) handleAgentDone(e protocol.AgentDoneEvent, now time.Time) {
	if e.RequestID == "" {
		p.log.Warn("dropping agent_done without request id")
		return
	}
	p.upsertAgent(e.RequestID, now, func(ra *RequestAgent) {
		if e.Status != "" {
			ra.Status = e.Status
		}
		if e.Cost != nil {
			ra.Cost = *e.Cost
		}
		if e.DurationMS != nil {
			ra.DurationMS = *e.DurationMS
		}
		if e.DurationWithToolsMS != nil {
			ra.DurationWithTools = *e.DurationWithToolsMS
		}
	})
	delete(p.runningRequests, e.RequestID)
}

// upsertAgent finds or creates the RequestAgent for requestID, applies fn
// via copy-on-write, and stores the result. Agent records are retained
// after the request finishes.
func (p *Processor) upsertAgent(requestID string, now time.Time, fn func(*RequestAgent)) {
	ra, ok := p.agents[requestID]
	if !ok {
		ra = RequestAgent{RequestID: requestID, StartTime: now}
	}
	ra = DeepCopyRequestAgent(ra)
	fn(&ra)
	p.agents[requestID] = ra
}

// applyAgentInfo copies the fields present on the descriptor; absent fields
// leave the record untouched.
func applyAgentInfo(ra *RequestAgent, info *protocol.AgentInfo) {
	if info == nil {
		return
	}
	if info.AgentID != "" {
		ra.AgentID = info.AgentID
	}
	if info.Name != "" {
		ra.Name = info.Name
	}
	if info.Model != "" {
		ra.Model = info.Model
	}
	if info.ModelClass != "" {
		ra.ModelClass = info.ModelClass
	}
	if len(info.Tags) > 0 {
		ra.Tags = append([]string(nil), info.Tags...)
	}
}

// --- Authoritative response items --------------------------------------------

func (p *Processor) handleResponseOutput(e protocol.ResponseOutputEvent, now time.Time) {
	item := e.Message
	if item.ID == "" && item.Type != "function_call_output" {
		p.log.Warn("dropping response output without id", "item_type", item.Type)
		return
	}
	if item.ID != "" {
		if pos, ok := p.index[item.ID]; ok {
			if _, streaming := p.partials[item.ID]; streaming {
				// The final item replaces the streamed placeholder at the
				// position it first appeared.
				p.messages[pos] = outputMessageFromItem(item, now)
				delete(p.partials, item.ID)
			} else {
				p.log.Debug("dropping duplicate response output", "id", item.ID)
			}
			return
		}
	}
	if item.Type == "function_call_output" {
		p.insertToolResult(item, now)
		return
	}
	p.appendMessage(outputMessageFromItem(item, now))
}

// insertToolResult places a tool result immediately after its originating
// call, matched by call_id with a fallback to the call's message id. A
// result with no matching call goes to the end of the transcript.
func (p *Processor) insertToolResult(item protocol.OutputItem, now time.Time) {
	key := item.CallID
	if key == "" {
		key = item.ID
	}
	if key == "" {
		p.log.Warn("dropping tool result without call id or id")
		return
	}
	msg := outputMessageFromItem(item, now)
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	for i := range p.messages {
		m := p.messages[i]
		if m.Type == KindFunctionCall && (m.CallID == key || m.ID == key) {
			p.insertMessageAt(i+1, msg)
			return
		}
	}
	p.appendMessage(msg)
}

// outputMessageFromItem converts an authoritative response item into a
// completed transcript message. Item types outside the known four are kept
// as plain messages rather than dropped.
func outputMessageFromItem(item protocol.OutputItem, now time.Time) OutputMessage {
	msg := OutputMessage{
		Timestamp: now,
		ID:        item.ID,
		Role:      item.Role,
		Status:    StatusCompleted,
	}
	if item.Status != "" {
		msg.Status = MessageStatus(item.Status)
	}
	switch item.Type {
	case "reasoning":
		msg.Type = KindReasoning
		msg.Content = item.Content.Text()
	case "function_call":
		msg.Type = KindFunctionCall
		msg.ToolName = item.Name
		msg.CallID = item.CallID
		msg.Content = item.Arguments
	case "function_call_output":
		msg.Type = KindFunctionCallOutput
		msg.CallID = item.CallID
		msg.Content = item.Output.Text()
		if msg.Role == "" {
			msg.Role = "tool"
		}
	default:
		msg.Type = KindMessage
		msg.Content = item.Content.Text()
	}
	if msg.Role == "" {
		msg.Role = "assistant"
	}
	return msg
}

// --- Cost totals -------------------------------------------------------------

func (p *Processor) handleCostUpdate(e protocol.CostUpdateEvent) {
	if e.Usage == nil {
		return
	}
	p.totalCost += e.Usage.Cost
	p.totalTokens += e.Usage.TotalTokens
}

// --- Streaming messages ------------------------------------------------------

func (p *Processor) handleMessageStart(e protocol.MessageStartEvent, now time.Time) {
	id := e.MessageID
	if id == "" {
		id = uuid.New().String()
	}
	kind := KindMessage
	if e.MessageType == string(KindReasoning) {
		kind = KindReasoning
	}
	role := e.Role
	if role == "" {
		role = "assistant"
	}
	part, ok := p.partials[id]
	if !ok {
		part = &partialMessage{id: id, kind: kind, role: role}
		p.partials[id] = part
	}
	p.ensurePlaceholder(part, now)
}

func (p *Processor) handleMessageDelta(e protocol.MessageDeltaEvent, now time.Time) {
	if e.MessageID == "" {
		p.log.Warn("dropping message_delta without message id")
		return
	}
	var frag protocol.Fragment
	var thinking bool
	switch {
	case e.Content != nil:
		frag = *e.Content
	case e.Thinking != nil:
		frag = *e.Thinking
		thinking = true
	default:
		return
	}
	part, ok := p.partials[e.MessageID]
	if !ok {
		// Delta before its message_start: assume the kind from the fragment.
		kind := KindMessage
		if thinking {
			kind = KindReasoning
		}
		part = &partialMessage{id: e.MessageID, kind: kind, role: "assistant"}
		p.partials[e.MessageID] = part
	}
	part.addFragment(frag, thinking)
	p.ensurePlaceholder(part, now)
	p.refreshPartial(part)
}

// --- Streaming tool calls ----------------------------------------------------

func (p *Processor) handleToolStart(e protocol.ToolStartEvent, now time.Time) {
	if e.ToolID == "" {
		p.log.Warn("dropping tool_start without tool id")
		return
	}
	part := p.ensureToolPartial(e.ToolID)
	if e.Name != "" {
		part.tool.name = e.Name
	}
	if e.CallID != "" {
		part.tool.callID = e.CallID
	}
	p.ensurePlaceholder(part, now)
	p.refreshPartial(part)
}

func (p *Processor) handleToolDelta(e protocol.ToolDeltaEvent, now time.Time) {
	if e.ToolID == "" {
		p.log.Warn("dropping tool_delta without tool id")
		return
	}
	part := p.ensureToolPartial(e.ToolID)
	part.tool.arguments = e.Arguments
	p.ensurePlaceholder(part, now)
	p.refreshPartial(part)
}

// ensureToolPartial finds or lazily creates the tool-call assembly state
// for toolID, so a delta arriving before its tool_start still lands.
func (p *Processor) ensureToolPartial(toolID string) *partialMessage {
	part, ok := p.partials[toolID]
	if !ok {
		part = &partialMessage{id: toolID, kind: KindFunctionCall, role: "assistant"}
		p.partials[toolID] = part
	}
	if part.tool == nil {
		part.tool = &partialTool{}
	}
	return part
}

// --- Transcript maintenance --------------------------------------------------

// ensurePlaceholder appends the in-progress transcript entry for a partial
// if it is not already present.
func (p *Processor) ensurePlaceholder(part *partialMessage, now time.Time) {
	if _, ok := p.index[part.id]; ok {
		return
	}
	p.appendMessage(OutputMessage{
		Timestamp: now,
		ID:        part.id,
		Type:      part.kind,
		Role:      part.role,
		Status:    StatusInProgress,
	})
}

// refreshPartial re-renders a partial's placeholder in place.
func (p *Processor) refreshPartial(part *partialMessage) {
	pos, ok := p.index[part.id]
	if !ok {
		return
	}
	msg := p.messages[pos]
	msg.Content = part.rendered()
	if part.tool != nil {
		msg.ToolName = part.tool.name
		msg.CallID = part.tool.callID
	}
	p.messages[pos] = msg
}

// appendMessage adds a message to the end of the transcript, dropping it if
// its id is already present.
func (p *Processor) appendMessage(msg OutputMessage) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if _, ok := p.index[msg.ID]; ok {
		p.log.Debug("dropping duplicate message id", "id", msg.ID)
		return
	}
	p.messages = append(p.messages, msg)
	p.index[msg.ID] = len(p.messages) - 1
	p.enforceCap()
}

// insertMessageAt splices a message into the transcript at pos, shifting
// later entries and their index positions.
func (p *Processor) insertMessageAt(pos int, msg OutputMessage) {
	if _, ok := p.index[msg.ID]; ok {
		p.log.Debug("dropping duplicate message id", "id", msg.ID)
		return
	}
	if pos >= len(p.messages) {
		p.appendMessage(msg)
		return
	}
	p.messages = append(p.messages, OutputMessage{})
	copy(p.messages[pos+1:], p.messages[pos:])
	p.messages[pos] = msg
	for id, i := range p.index {
		if i >= pos {
			p.index[id] = i + 1
		}
	}
	p.index[msg.ID] = pos
	p.enforceCap()
}

// enforceCap evicts the oldest messages once the transcript exceeds the
// configured cap.
func (p *Processor) enforceCap() {
	if p.maxMessages <= 0 {
		return
	}
	for len(p.messages) > p.maxMessages {
		evicted := p.messages[0]
		// Zero the slot before reslicing so the GC can reclaim the evicted
		// element's string data.
		p.messages[0] = OutputMessage{}
		p.messages = p.messages[1:]
		delete(p.index, evicted.ID)
		delete(p.partials, evicted.ID)
		for id, i := range p.index {
			p.index[id] = i - 1
		}
	}
}

// --- Clocks and sweeps -------------------------------------------------------

// observe resolves the event's timestamp, falling back to the wall clock,
// and advances the event-time high-water mark.
func (p *Processor) observe(ev protocol.Event) time.Time {
	t := ev.OccurredAt()
	if t.IsZero() {
		t = time.Now()
	}
	if t.After(p.clock) {
		p.clock = t
	}
	return t
}

// sweepBareRequests expires bare running requests older than the configured
// TTL. Ages are measured in event time, so a replayed stream expires the
// same requests a live one did.
func (p *Processor) sweepBareRequests() {
	if p.bareRequestTTL <= 0 {
		return
	}
	for id, opened := range p.runningRequests {
		if p.clock.Sub(opened) > p.bareRequestTTL {
			p.log.Debug("expiring bare running request", "request_id", id)
			delete(p.runningRequests, id)
		}
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
