// Package costs keeps the per-model spend ledger for a session. Every usage
// report is appended to history and folded into per-model aggregates; the
// ledger is deliberately separate from conversation state so cost reporting
// works even when no transcript is being kept.
package costs

import (
	"sort"
	"sync"
	"time"

	"github.com/just-every/demo-ui-sub000/protocol"
)

// Record is one usage report.
type Record struct {
	Timestamp    time.Time `json:"timestamp"`
	Model        string    `json:"model"`
	Cost         float64   `json:"cost"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	CachedTokens int       `json:"cached_tokens"`
	TotalTokens  int       `json:"total_tokens"`
}

// ModelSummary aggregates all records for one model.
type ModelSummary struct {
	Model        string  `json:"model"`
	TotalCost    float64 `json:"total_cost"`
	UsageCount   int     `json:"usage_count"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CachedTokens int     `json:"cached_tokens"`
	TotalTokens  int     `json:"total_tokens"`
}

// add folds one record into the summary.
func (s *ModelSummary) add(rec Record) {
	s.TotalCost += rec.Cost
	s.UsageCount++
	s.InputTokens += rec.InputTokens
	s.OutputTokens += rec.OutputTokens
	s.CachedTokens += rec.CachedTokens
	s.TotalTokens += rec.TotalTokens
}

// Snapshot is a copied view of the ledger aggregates.
type Snapshot struct {
	PerModel []ModelSummary `json:"per_model"` // sorted by TotalCost descending
	Total    float64        `json:"total"`
}

// unknownModel buckets records whose producer did not name a model.
const unknownModel = "unknown"

// Accumulator is a thread-safe cost ledger.
type Accumulator struct {
	mu         sync.RWMutex
	history    []Record
	perModel   map[string]*ModelSummary
	maxHistory int
}

// Option configures an Accumulator.
type Option func(*Accumulator)

// WithMaxHistory caps the record history; the oldest records are evicted
// first. Aggregates keep counting evicted records. Zero or negative means
// uncapped.
func WithMaxHistory(n int) Option {
	return func(a *Accumulator) { a.maxHistory = n }
}

// New creates an empty ledger.
func New(opts ...Option) *Accumulator {
	a := &Accumulator{}
	a.resetLocked()
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RecordFromUsage converts a usage payload into a Record stamped with the
// given time. Absent numeric fields contribute zero; an absent total falls
// back to input plus output.
func RecordFromUsage(u protocol.Usage, at time.Time) Record {
	rec := Record{
		Timestamp:    at,
		Model:        u.Model,
		Cost:         u.Cost,
		InputTokens:  u.InputTokens,
		OutputTokens: u.OutputTokens,
		CachedTokens: u.CachedTokens,
		TotalTokens:  u.TotalTokens,
	}
	if rec.Model == "" {
		rec.Model = unknownModel
	}
	if rec.TotalTokens == 0 {
		rec.TotalTokens = rec.InputTokens + rec.OutputTokens
	}
	return rec
}

// ProcessEvent folds a cost_update event into the ledger and returns the
// resulting snapshot. Other event types leave the ledger unchanged. Events
// with no usage payload are skipped: there is nothing to count.
func (a *Accumulator) ProcessEvent(ev protocol.Event) Snapshot {
	if cu, ok := ev.(protocol.CostUpdateEvent); ok && cu.Usage != nil {
		at := cu.OccurredAt()
		if at.IsZero() {
			at = time.Now()
		}
		a.Record(RecordFromUsage(*cu.Usage, at))
	}
	return a.Snapshot()
}

// Record appends one record to history and its model's aggregate.
func (a *Accumulator) Record(rec Record) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if rec.Model == "" {
		rec.Model = unknownModel
	}
	if a.maxHistory > 0 && len(a.history) >= a.maxHistory {
		// Zero the slot before reslicing so the GC can reclaim the evicted
		// record's string data.
		a.history[0] = Record{}
		a.history = append(a.history[1:], rec)
	} else {
		a.history = append(a.history, rec)
	}
	summary, ok := a.perModel[rec.Model]
	if !ok {
		summary = &ModelSummary{Model: rec.Model}
		a.perModel[rec.Model] = summary
	}
	summary.add(rec)
}

// Summaries returns per-model aggregates sorted by total cost, most
// expensive first. Ties order by model name so the result is stable.
func (a *Accumulator) Summaries() []ModelSummary {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.summariesLocked()
}

func (a *Accumulator) summariesLocked() []ModelSummary {
	out := make([]ModelSummary, 0, len(a.perModel))
	for _, s := range a.perModel {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalCost != out[j].TotalCost {
			return out[i].TotalCost > out[j].TotalCost
		}
		return out[i].Model < out[j].Model
	})
	return out
}

// Total returns the summed cost across all models.
func (a *Accumulator) Total() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.totalLocked()
}

func (a *Accumulator) totalLocked() float64 {
	var total float64
	for _, s := range a.perModel {
		total += s.TotalCost
	}
	return total
}

// History returns a copy of the recorded history, oldest first.
func (a *Accumulator) History() []Record {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Record, len(a.history))
	copy(out, a.history)
	return out
}

// Snapshot returns a copied view of the aggregates.
func (a *Accumulator) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Snapshot{
		PerModel: a.summariesLocked(),
		Total:    a.totalLocked(),
	}
}

// Reset clears history and aggregates to zero.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resetLocked()
}

func (a *Accumulator) resetLocked() {
	a.history = make([]Record, 0)
	a.perModel = make(map[string]*ModelSummary)
}
