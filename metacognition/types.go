// Package metacognition tracks metacognition analysis runs and the live
// cognition tuning state they report. Analysis runs transition from
// running to completed; the tuning state is replaced wholesale by each
// report, never merged field by field.
package metacognition

import (
	"time"

	"github.com/just-every/demo-ui-sub000/protocol"
)

// AnalysisEvent is one entry in the rolling log of analysis runs.
type AnalysisEvent struct {
	EventID          string                `json:"event_id"`
	State            protocol.SessionState `json:"state"`
	StartedAt        time.Time             `json:"started_at"`
	CompletedAt      time.Time             `json:"completed_at,omitempty"`
	ProcessingTime   time.Duration         `json:"processing_time"`
	Adjustments      []string              `json:"adjustments,omitempty"`
	InjectedThoughts []string              `json:"injected_thoughts,omitempty"`
}

func deepCopyAnalysisEvent(ev AnalysisEvent) AnalysisEvent {
	if ev.Adjustments != nil {
		ev.Adjustments = append([]string(nil), ev.Adjustments...)
	}
	if ev.InjectedThoughts != nil {
		ev.InjectedThoughts = append([]string(nil), ev.InjectedThoughts...)
	}
	return ev
}

// State is the cognition tuning state as of the last report.
type State struct {
	Frequency      int                `json:"frequency"`
	ThoughtDelay   float64            `json:"thought_delay"`
	Processing     bool               `json:"processing"`
	DisabledModels []string           `json:"disabled_models,omitempty"`
	ModelScores    map[string]float64 `json:"model_scores,omitempty"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

func deepCopyState(s *State) *State {
	if s == nil {
		return nil
	}
	out := *s
	if s.DisabledModels != nil {
		out.DisabledModels = append([]string(nil), s.DisabledModels...)
	}
	if s.ModelScores != nil {
		out.ModelScores = make(map[string]float64, len(s.ModelScores))
		for k, v := range s.ModelScores {
			out.ModelScores[k] = v
		}
	}
	return &out
}

// Stats aggregates analysis activity. Adjustment and thought totals count
// completed runs only, and AvgProcessingTime averages over completed runs.
type Stats struct {
	TotalAnalyses         int           `json:"total_analyses"`
	CompletedAnalyses     int           `json:"completed_analyses"`
	TotalAdjustments      int           `json:"total_adjustments"`
	TotalInjectedThoughts int           `json:"total_injected_thoughts"`
	AvgProcessingTime     time.Duration `json:"avg_processing_time"`
}

// Snapshot is a deep-copied view of the processor state. CurrentState is
// nil until the first report carrying one.
type Snapshot struct {
	Events       []AnalysisEvent `json:"events"`
	CurrentState *State          `json:"current_state,omitempty"`
	Stats        Stats           `json:"stats"`
}
