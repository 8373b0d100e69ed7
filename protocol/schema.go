package protocol

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/invopop/jsonschema"
)

// eventPrototypes maps each wire type tag to a zero value of its event
// struct, for schema reflection.
var eventPrototypes = map[EventType]Event{
	EventTypeTaskStart:      TaskStartEvent{},
	EventTypeTaskComplete:   TaskCompleteEvent{},
	EventTypeTaskFatalError: TaskFatalErrorEvent{},
	EventTypeAgentStart:     AgentStartEvent{},
	EventTypeAgentStatus:    AgentStatusEvent{},
	EventTypeAgentDone:      AgentDoneEvent{},
	EventTypeResponseOutput: ResponseOutputEvent{},
	EventTypeCostUpdate:     CostUpdateEvent{},
	EventTypeMessageStart:   MessageStartEvent{},
	EventTypeMessageDelta:   MessageDeltaEvent{},
	EventTypeToolStart:      ToolStartEvent{},
	EventTypeToolDelta:      ToolDeltaEvent{},
	EventTypeMetaMemory:     MetaMemoryEvent{},
	EventTypeMetaCognition:  MetaCognitionEvent{},
}

// EventTypes returns the full wire vocabulary in sorted order.
func EventTypes() []EventType {
	types := make([]EventType, 0, len(eventPrototypes))
	for t := range eventPrototypes {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

func newReflector() *jsonschema.Reflector {
	return &jsonschema.Reflector{
		DoNotReference: true, // Inline all definitions instead of using $ref
		ExpandedStruct: true, // Don't use $ref for struct types
	}
}

// SchemaFor reflects the JSON schema for one wire event type.
func SchemaFor(t EventType) (*jsonschema.Schema, bool) {
	proto, ok := eventPrototypes[t]
	if !ok {
		return nil, false
	}
	return newReflector().Reflect(proto), true
}

// Schemas reflects JSON schemas for the full wire vocabulary, keyed by type tag.
func Schemas() map[EventType]*jsonschema.Schema {
	reflector := newReflector()
	result := make(map[EventType]*jsonschema.Schema, len(eventPrototypes))
	for t, proto := range eventPrototypes {
		result[t] = reflector.Reflect(proto)
	}
	return result
}

// SchemasJSON renders the full wire vocabulary as one indented JSON document
// with event types in sorted order.
func SchemasJSON() ([]byte, error) {
	schemas := Schemas()
	doc := make(map[EventType]json.RawMessage, len(schemas))
	for t, schema := range schemas {
		raw, err := json.Marshal(schema)
		if err != nil {
			return nil, fmt.Errorf("marshal schema for %s: %w", t, err)
		}
		doc[t] = raw
	}
	return json.MarshalIndent(doc, "", "  ")
}

// JSONSchema overrides reflection for the flexible timestamp scalar, which
// would otherwise reflect as an opaque struct.
func (Timestamp) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "string", Format: "date-time"},
			{Type: "number", Description: "Unix epoch seconds or milliseconds"},
		},
	}
}

// JSONSchema overrides reflection for flexible content, which is either a
// plain string or an array of text parts.
func (FlexibleText) JSONSchema() *jsonschema.Schema {
	partProps := jsonschema.NewProperties()
	partProps.Set("type", &jsonschema.Schema{Type: "string"})
	partProps.Set("text", &jsonschema.Schema{Type: "string"})
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "string"},
			{
				Type:  "array",
				Items: &jsonschema.Schema{Type: "object", Properties: partProps},
			},
		},
	}
}
