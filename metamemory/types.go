// Package metamemory tracks the conversation-tagging subsystem: tagging
// runs transitioning from running to completed, the canonical topic tag
// store, and per-message tag assignments. Topic and message stores keep
// insertion order, so readers see tags in the order the conversation
// introduced them.
package metamemory

import (
	"time"

	"github.com/just-every/demo-ui-sub000/protocol"
)

// TopicTag is one topic in the canonical store.
type TopicTag struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Type        string    `json:"type,omitempty"`
	LastUpdate  time.Time `json:"last_update"`
}

// TaggedMessage is one message's tag assignment. Assignments are replaced
// wholesale when a later tagging run re-tags the same message.
type TaggedMessage struct {
	MessageID     string    `json:"message_id"`
	TopicTags     []string  `json:"topic_tags,omitempty"`
	Summary       string    `json:"summary,omitempty"`
	ThreadSummary string    `json:"thread_summary,omitempty"`
	LastUpdate    time.Time `json:"last_update"`
}

// TaggingEvent is one entry in the rolling log of tagging runs.
type TaggingEvent struct {
	EventID           string                `json:"event_id"`
	State             protocol.SessionState `json:"state"`
	StartedAt         time.Time             `json:"started_at"`
	CompletedAt       time.Time             `json:"completed_at,omitempty"`
	ProcessingTime    time.Duration         `json:"processing_time"`
	NewTopicCount     int                   `json:"new_topic_count"`
	UpdatedTopicCount int                   `json:"updated_topic_count"`
	MessageCount      int                   `json:"message_count"`
	NewTopics         []string              `json:"new_topics,omitempty"`
	UpdatedTopics     []string              `json:"updated_topics,omitempty"`
	MessageIDs        []string              `json:"message_ids,omitempty"`
}

// deepCopyTaggingEvent clones the id slices so the caller's copy is
// independent.
func deepCopyTaggingEvent(ev TaggingEvent) TaggingEvent {
	if ev.NewTopics != nil {
		ev.NewTopics = append([]string(nil), ev.NewTopics...)
	}
	if ev.UpdatedTopics != nil {
		ev.UpdatedTopics = append([]string(nil), ev.UpdatedTopics...)
	}
	if ev.MessageIDs != nil {
		ev.MessageIDs = append([]string(nil), ev.MessageIDs...)
	}
	return ev
}

// Stats aggregates tagging activity. AvgProcessingTime is computed over
// completed runs only.
type Stats struct {
	Sessions          int           `json:"sessions"`
	CompletedSessions int           `json:"completed_sessions"`
	Topics            int           `json:"topics"`
	TaggedMessages    int           `json:"tagged_messages"`
	AvgProcessingTime time.Duration `json:"avg_processing_time"`
}

// State is the canonical tag state: topics and tagged messages in the
// order they were first introduced.
type State struct {
	TopicTags      []TopicTag      `json:"topic_tags"`
	TaggedMessages []TaggedMessage `json:"tagged_messages"`
}

// Snapshot is a deep-copied view of the processor state.
type Snapshot struct {
	Events       []TaggingEvent `json:"events"`
	CurrentState State          `json:"current_state"`
	Stats        Stats          `json:"stats"`
}

// FirstIntroductions maps each topic tag to the id of the earliest tagged
// message carrying it, in store order.
func (s Snapshot) FirstIntroductions() map[string]string {
	intro := make(map[string]string)
	for _, tm := range s.CurrentState.TaggedMessages {
		for _, tag := range tm.TopicTags {
			if _, ok := intro[tag]; !ok {
				intro[tag] = tm.MessageID
			}
		}
	}
	return intro
}
