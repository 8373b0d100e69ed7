package metacognition

import (
	"log/slog"
	"sync"
	"time"

	"github.com/just-every/demo-ui-sub000/protocol"
)

const defaultMaxEvents = 100

// Processor folds metacognition events into analysis-run history and the
// live tuning state. All methods are safe for concurrent use.
type Processor struct {
	mu        sync.RWMutex
	log       *slog.Logger
	maxEvents int

	events     []AnalysisEvent
	eventIndex map[string]int
	current    *State

	analyses      int
	completed     int
	adjustments   int
	thoughts      int
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

// WithMaxEvents bounds the rolling analysis-run log. Values <= 0 keep the
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

// ProcessEvent applies a metacognition event and returns the updated
// snapshot. Events of any other type leave the state untouched.
func (p *Processor) ProcessEvent(ev protocol.Event) Snapshot {
	if mc, ok := ev.(protocol.MetaCognitionEvent); ok {
		p.mu.Lock()
		p.apply(mc)
		p.mu.Unlock()
	}
	return p.Snapshot()
}

// Reset clears all analysis state.
func (p *Processor) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
}

func (p *Processor) resetLocked() {
	p.events = make([]AnalysisEvent, 0)
	p.eventIndex = make(map[string]int)
	p.current = nil
	p.analyses = 0
	p.completed = 0
	p.adjustments = 0
	p.thoughts = 0
	p.processingSum = 0
}

// Snapshot returns a deep copy of the current state.
func (p *Processor) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	snap := Snapshot{
		Events:       make([]AnalysisEvent, len(p.events)),
		CurrentState: deepCopyState(p.current),
		Stats:        p.statsLocked(),
	}
	for i := range p.events {
		snap.Events[i] = deepCopyAnalysisEvent(p.events[i])
	}
	return snap
}

// Stats returns the current aggregates without copying the run log.
func (p *Processor) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.statsLocked()
}

func (p *Processor) statsLocked() Stats {
	s := Stats{
		TotalAnalyses:         p.analyses,
		CompletedAnalyses:     p.completed,
		TotalAdjustments:      p.adjustments,
		TotalInjectedThoughts: p.thoughts,
	}
	if p.completed > 0 {
		s.AvgProcessingTime = p.processingSum / time.Duration(p.completed)
	}
	return s
}

func (p *Processor) apply(mc protocol.MetaCognitionEvent) {
	data := mc.Data
	if data.EventID == "" {
		p.log.Warn("dropping metacognition event without event id")
		return
	}
	now := mc.OccurredAt()
	if now.IsZero() {
		now = time.Now()
	}

	idx, ok := p.eventIndex[data.EventID]
	if !ok {
		p.appendEvent(AnalysisEvent{
			EventID:   data.EventID,
			State:     protocol.SessionStateRunning,
			StartedAt: pickTime(data.StartedAt, now),
		})
		p.analyses++
		idx = p.eventIndex[data.EventID]
	}
	entry := p.events[idx]

	if !data.StartedAt.IsZero() {
		entry.StartedAt = data.StartedAt.Time()
	}
	if len(data.Adjustments) > 0 {
		entry.Adjustments = append([]string(nil), data.Adjustments...)
	}
	if len(data.InjectedThoughts) > 0 {
		entry.InjectedThoughts = append([]string(nil), data.InjectedThoughts...)
	}

	// Completion is a one-way transition and its totals count once.
	if data.State.IsCompleted() && entry.State != protocol.SessionStateCompleted {
		entry.State = protocol.SessionStateCompleted
		entry.CompletedAt = pickTime(data.CompletedAt, now)
		entry.ProcessingTime = resolveProcessingTime(data, entry)
		p.completed++
		p.processingSum += entry.ProcessingTime
		p.adjustments += len(entry.Adjustments)
		p.thoughts += len(entry.InjectedThoughts)
	}
	p.events[idx] = entry

	// The reported tuning state replaces the previous one wholesale. A
	// report without scores clears the scores.
	if data.CurrentState != nil {
		p.current = &State{
			Frequency:      data.CurrentState.Frequency,
			ThoughtDelay:   data.CurrentState.ThoughtDelay,
			Processing:     data.CurrentState.Processing,
			DisabledModels: append([]string(nil), data.CurrentState.DisabledModels...),
			UpdatedAt:      now,
		}
		if data.CurrentState.ModelScores != nil {
			p.current.ModelScores = make(map[string]float64, len(data.CurrentState.ModelScores))
			for k, v := range data.CurrentState.ModelScores {
				p.current.ModelScores[k] = v
			}
		}
	}
}

func (p *Processor) appendEvent(entry AnalysisEvent) {
	p.events = append(p.events, entry)
	p.eventIndex[entry.EventID] = len(p.events) - 1
	for p.maxEvents > 0 && len(p.events) > p.maxEvents {
		evicted := p.events[0]
		p.events[0] = AnalysisEvent{}
		p.events = p.events[1:]
		delete(p.eventIndex, evicted.EventID)
		for id, i := range p.eventIndex {
			p.eventIndex[id] = i - 1
		}
	}
}

func resolveProcessingTime(data protocol.CognitionSession, entry AnalysisEvent) time.Duration {
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
