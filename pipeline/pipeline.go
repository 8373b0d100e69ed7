// Package pipeline wires the session processors behind a single dispatch
// surface. One decoded event stream fans out to four consumers: the
// conversation-state reducer (taskstate), the spend ledger (costs), the
// tagging tracker (metamemory), and the analysis tracker (metacognition).
// Metamemory and metacognition events go to their own processors, cost
// updates feed both the conversation totals and the spend ledger, and
// everything else belongs to the conversation reducer.
//
// The pipeline never fails on stream content: undecodable lines are
// reported, unknown event types are skipped, and malformed events are
// dropped with a log line by whichever processor owns them.
package pipeline

import (
	"log/slog"
	"time"

	"github.com/just-every/demo-ui-sub000/costs"
	"github.com/just-every/demo-ui-sub000/metacognition"
	"github.com/just-every/demo-ui-sub000/metamemory"
	"github.com/just-every/demo-ui-sub000/protocol"
	"github.com/just-every/demo-ui-sub000/taskstate"
)

// Pipeline owns the four processors and routes events between them.
type Pipeline struct {
	log *slog.Logger
	cfg Config

	tasks     *taskstate.Processor
	costs     *costs.Accumulator
	memory    *metamemory.Processor
	cognition *metacognition.Processor
}

// Snapshot combines the per-processor snapshots taken at one point in the
// stream.
type Snapshot struct {
	Task      taskstate.Snapshot     `json:"task"`
	Cost      costs.Snapshot         `json:"cost"`
	Memory    metamemory.Snapshot    `json:"memory"`
	Cognition metacognition.Snapshot `json:"cognition"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger handed to every processor.
func WithLogger(log *slog.Logger) Option {
	return func(p *Pipeline) {
		if log != nil {
			p.log = log
		}
	}
}

// WithConfig applies processor bounds.
func WithConfig(cfg Config) Option {
	return func(p *Pipeline) {
		p.cfg = cfg
	}
}

// New builds a Pipeline with fresh processors.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		log: slog.Default(),
		cfg: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(p)
	}

	taskOpts := []taskstate.Option{taskstate.WithLogger(p.log)}
	if p.cfg.MaxMessages > 0 {
		taskOpts = append(taskOpts, taskstate.WithMaxMessages(p.cfg.MaxMessages))
	}
	if ttl := time.Duration(p.cfg.BareRequestTTL); ttl > 0 {
		taskOpts = append(taskOpts, taskstate.WithBareRequestTTL(ttl))
	}
	p.tasks = taskstate.New(taskOpts...)

	var costOpts []costs.Option
	if p.cfg.MaxCostHistory > 0 {
		costOpts = append(costOpts, costs.WithMaxHistory(p.cfg.MaxCostHistory))
	}
	p.costs = costs.New(costOpts...)

	memOpts := []metamemory.Option{metamemory.WithLogger(p.log)}
	if p.cfg.MaxTaggingEvents > 0 {
		memOpts = append(memOpts, metamemory.WithMaxEvents(p.cfg.MaxTaggingEvents))
	}
	p.memory = metamemory.New(memOpts...)

	cogOpts := []metacognition.Option{metacognition.WithLogger(p.log)}
	if p.cfg.MaxAnalysisEvents > 0 {
		cogOpts = append(cogOpts, metacognition.WithMaxEvents(p.cfg.MaxAnalysisEvents))
	}
	p.cognition = metacognition.New(cogOpts...)

	return p
}

// ProcessEvent routes one event and returns the combined snapshot. Cost
// updates feed both the conversation totals and the spend ledger.
func (p *Pipeline) ProcessEvent(ev protocol.Event) Snapshot {
	if ev != nil {
		switch ev.(type) {
		case protocol.MetaMemoryEvent:
			p.memory.ProcessEvent(ev)
		case protocol.MetaCognitionEvent:
			p.cognition.ProcessEvent(ev)
		case protocol.CostUpdateEvent:
			p.costs.ProcessEvent(ev)
			p.tasks.ProcessEvent(ev)
		default:
			p.tasks.ProcessEvent(ev)
		}
	}
	return p.Snapshot()
}

// ProcessLine decodes one line of the event stream and applies it. Lines
// carrying unknown event types are skipped without error.
func (p *Pipeline) ProcessLine(line []byte) (Snapshot, error) {
	ev, err := protocol.Parse(line)
	if err != nil {
		return p.Snapshot(), err
	}
	if ev == nil {
		return p.Snapshot(), nil
	}
	return p.ProcessEvent(ev), nil
}

// AddUserMessage appends a locally authored user message to the
// conversation and returns the combined snapshot.
func (p *Pipeline) AddUserMessage(content string) Snapshot {
	p.tasks.AddUserMessage(content)
	return p.Snapshot()
}

// Reset clears every processor.
func (p *Pipeline) Reset() {
	p.tasks.Reset()
	p.costs.Reset()
	p.memory.Reset()
	p.cognition.Reset()
}

// Snapshot returns the combined deep-copied state of all processors.
func (p *Pipeline) Snapshot() Snapshot {
	return Snapshot{
		Task:      p.tasks.Snapshot(),
		Cost:      p.costs.Snapshot(),
		Memory:    p.memory.Snapshot(),
		Cognition: p.cognition.Snapshot(),
	}
}

// Tasks returns the conversation-state processor.
func (p *Pipeline) Tasks() *taskstate.Processor { return p.tasks }

// Costs returns the spend ledger.
func (p *Pipeline) Costs() *costs.Accumulator { return p.costs }

// Memory returns the tagging tracker.
func (p *Pipeline) Memory() *metamemory.Processor { return p.memory }

// Cognition returns the analysis tracker.
func (p *Pipeline) Cognition() *metacognition.Processor { return p.cognition }
