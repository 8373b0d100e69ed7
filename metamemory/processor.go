package metamemory

import (
	"log/slog"
	"sync"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/just-every/demo-ui-sub000/protocol"
)

const defaultMaxEvents = 100

// Processor folds metamemory events into tagging-run history, the topic
// store, and the tagged-message store. All methods are safe for
// concurrent use.
type Processor struct {
	mu        sync.RWMutex
	log       *slog.Logger
	maxEvents int

	events     []TaggingEvent
	eventIndex map[string]int
	topics     *orderedmap.OrderedMap[string, TopicTag]
	messages   *orderedmap.OrderedMap[string, TaggedMessage]

	completed     int
	sessions      int
	processingSum time.Duration
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the logger used for dropped-event diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(p *Processor) {
		if log != nil {
			p.log = log
		}
	}
}

// WithMaxEvents bounds the rolling tagging-run log. Values <= 0 keep the
// default.
func WithMaxEvents(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxEvents = n
		}
	}
}

// New returns an empty Processor.
func New(opts ...Option) *Processor {
	p := &Processor{
		log:       slog.Default(),
		maxEvents: defaultMaxEvents,
	}
	p.resetLocked()
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessEvent applies a metamemory event and returns the updated
// snapshot. Events of any other type leave the state untouched.
func (p *Processor) ProcessEvent(ev protocol.Event) Snapshot {
	if mm, ok := ev.(protocol.MetaMemoryEvent); ok {
		p.mu.Lock()
		p.apply(mm)
		p.mu.Unlock()
	}
	return p.Snapshot()
}

// Reset clears all tagging state.
func (p *Processor) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
}

func (p *Processor) resetLocked() {
	p.events = make([]TaggingEvent, 0)
	p.eventIndex = make(map[string]int)
	p.topics = orderedmap.New[string, TopicTag]()
	p.messages = orderedmap.New[string, TaggedMessage]()
	p.completed = 0
	p.sessions = 0
	p.processingSum = 0
}

// Snapshot returns a deep copy of the current state.
func (p *Processor) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	snap := Snapshot{
		Events: make([]TaggingEvent, len(p.events)),
		CurrentState: State{
			TopicTags:      make([]TopicTag, 0, p.topics.Len()),
			TaggedMessages: make([]TaggedMessage, 0, p.messages.Len()),
		},
		Stats: p.statsLocked(),
	}
	for i := range p.events {
		snap.Events[i] = deepCopyTaggingEvent(p.events[i])
	}
	for pair := p.topics.Oldest(); pair != nil; pair = pair.Next() {
		snap.CurrentState.TopicTags = append(snap.CurrentState.TopicTags, pair.Value)
	}
	for pair := p.messages.Oldest(); pair != nil; pair = pair.Next() {
		tm := pair.Value
		tm.TopicTags = append([]string(nil), tm.TopicTags...)
		snap.CurrentState.TaggedMessages = append(snap.CurrentState.TaggedMessages, tm)
	}
	return snap
}

// Stats returns the current aggregates without copying the stores.
func (p *Processor) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.statsLocked()
}

func (p *Processor) statsLocked() Stats {
	s := Stats{
		Sessions:          p.sessions,
		CompletedSessions: p.completed,
		Topics:            p.topics.Len(),
		TaggedMessages:    p.messages.Len(),
	}
	if p.completed > 0 {
		s.AvgProcessingTime = p.processingSum / time.Duration(p.completed)
	}
	return s
}

func (p *Processor) apply(mm protocol.MetaMemoryEvent) {
	data := mm.Data
	if data.EventID == "" {
		p.log.Warn("dropping metamemory event without event id")
		return
	}
	now := mm.OccurredAt()
	if now.IsZero() {
		now = time.Now()
	}

	idx, ok := p.eventIndex[data.EventID]
	if !ok {
		p.appendEvent(TaggingEvent{
			EventID:   data.EventID,
			State:     protocol.SessionStateRunning,
			StartedAt: pickTime(data.StartedAt, now),
		})
		p.sessions++
		idx = p.eventIndex[data.EventID]
	}
	entry := p.events[idx]

	if !data.StartedAt.IsZero() {
		entry.StartedAt = data.StartedAt.Time()
	}
	if len(data.NewTopics) > 0 || len(data.UpdatedTopics) > 0 || len(data.Messages) > 0 {
		entry.NewTopics = topicNames(data.NewTopics)
		entry.UpdatedTopics = topicNames(data.UpdatedTopics)
		entry.MessageIDs = messageIDs(data.Messages)
		entry.NewTopicCount = len(entry.NewTopics)
		entry.UpdatedTopicCount = len(entry.UpdatedTopics)
		entry.MessageCount = len(entry.MessageIDs)
	}

	// Completion is a one-way transition. A duplicate completion for the
	// same run must not merge its deltas twice.
	if data.State.IsCompleted() && entry.State != protocol.SessionStateCompleted {
		entry.State = protocol.SessionStateCompleted
		entry.CompletedAt = pickTime(data.CompletedAt, now)
		entry.ProcessingTime = resolveProcessingTime(data, entry)
		p.completed++
		p.processingSum += entry.ProcessingTime
		p.mergeTopics(data, entry.CompletedAt)
		p.mergeMessages(data, entry.CompletedAt)
	}
	p.events[idx] = entry
}

func (p *Processor) appendEvent(entry TaggingEvent) {
	p.events = append(p.events, entry)
	p.eventIndex[entry.EventID] = len(p.events) - 1
	for p.maxEvents > 0 && len(p.events) > p.maxEvents {
		evicted := p.events[0]
		p.events[0] = TaggingEvent{}
		p.events = p.events[1:]
		delete(p.eventIndex, evicted.EventID)
		for id, i := range p.eventIndex {
			p.eventIndex[id] = i - 1
		}
	}
}

func (p *Processor) mergeTopics(data protocol.MemorySession, at time.Time) {
	for _, t := range data.NewTopics {
		p.upsertTopic(t, at)
	}
	for _, t := range data.UpdatedTopics {
		p.upsertTopic(t, at)
	}
}

func (p *Processor) upsertTopic(payload protocol.TopicTagPayload, at time.Time) {
	if payload.Name == "" {
		p.log.Warn("dropping topic tag without name")
		return
	}
	tag, ok := p.topics.Get(payload.Name)
	if !ok {
		tag = TopicTag{Name: payload.Name}
	}
	if payload.Description != "" {
		tag.Description = payload.Description
	}
	if payload.Type != "" {
		tag.Type = payload.Type
	}
	tag.LastUpdate = at
	// Set keeps the original position for existing keys, so re-tagging
	// never reorders the store.
	p.topics.Set(payload.Name, tag)
}

func (p *Processor) mergeMessages(data protocol.MemorySession, at time.Time) {
	for _, m := range data.Messages {
		if m.MessageID == "" {
			p.log.Warn("dropping tagged message without message id")
			continue
		}
		p.messages.Set(m.MessageID, TaggedMessage{
			MessageID:     m.MessageID,
			TopicTags:     append([]string(nil), m.TopicTags...),
			Summary:       m.Summary,
			ThreadSummary: m.ThreadSummary,
			LastUpdate:    at,
		})
	}
}

func resolveProcessingTime(data protocol.MemorySession, entry TaggingEvent) time.Duration {
	if data.ProcessingTime > 0 {
		return time.Duration(data.ProcessingTime * float64(time.Millisecond))
	}
	if !entry.StartedAt.IsZero() && entry.CompletedAt.After(entry.StartedAt) {
		return entry.CompletedAt.Sub(entry.StartedAt)
	}
	return 0
}

func pickTime(ts protocol.Timestamp, fallback time.Time) time.Time {
	if !ts.IsZero() {
		return ts.Time()
	}
	return fallback
}

func topicNames(topics []protocol.TopicTagPayload) []string {
	if len(topics) == 0 {
		return nil
	}
	names := make([]string, 0, len(topics))
	for _, t := range topics {
		if t.Name != "" {
			names = append(names, t.Name)
		}
	}
	return names
}

func messageIDs(messages []protocol.TaggedMessagePayload) []string {
	if len(messages) == 0 {
		return nil
	}
	ids := make([]string, 0, len(messages))
	for _, m := range messages {
		if m.MessageID != "" {
			ids = append(ids, m.MessageID)
		}
	}
	return ids
}
