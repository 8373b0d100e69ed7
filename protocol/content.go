package protocol

import (
	"encoding/json"
	"strings"
)

// TextPart is one element of structured flexible content.
type TextPart struct {
	Type string `json:"type,omitempty"`
	Text string `json:"text,omitempty"`
}

// FlexibleText can be either a plain string or an array of text parts.
// Producers are inconsistent about which form they emit, so the raw value is
// kept and interpreted on demand.
type FlexibleText struct {
	raw json.RawMessage
}

// NewFlexibleText wraps a plain string.
func NewFlexibleText(s string) FlexibleText {
	raw, _ := json.Marshal(s)
	return FlexibleText{raw: raw}
}

// UnmarshalJSON implements json.Unmarshaler. The input is copied because
// decode buffers (bufio scanner lines in particular) are reused.
func (ft *FlexibleText) UnmarshalJSON(data []byte) error {
	ft.raw = append(ft.raw[0:0], data...)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (ft FlexibleText) MarshalJSON() ([]byte, error) {
	if ft.raw == nil {
		return []byte("null"), nil
	}
	return ft.raw, nil
}

// IsEmpty reports whether no content was present.
func (ft FlexibleText) IsEmpty() bool {
	return len(ft.raw) == 0 || string(ft.raw) == "null"
}

// IsString returns true if the content is a string.
func (ft FlexibleText) IsString() bool {
	if len(ft.raw) == 0 {
		return false
	}
	return ft.raw[0] == '"'
}

// AsString returns the content as a string (if it is one).
func (ft FlexibleText) AsString() (string, bool) {
	if !ft.IsString() {
		return "", false
	}
	var s string
	if err := json.Unmarshal(ft.raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// AsParts returns the content as text parts (if it is an array).
func (ft FlexibleText) AsParts() ([]TextPart, bool) {
	if ft.IsString() || ft.IsEmpty() {
		return nil, false
	}
	var parts []TextPart
	if err := json.Unmarshal(ft.raw, &parts); err != nil {
		return nil, false
	}
	return parts, true
}

// Text flattens the content to a display string: plain strings come back
// unchanged, text parts are concatenated, anything else is rendered as its
// raw JSON. Absent content flattens to the empty string.
func (ft FlexibleText) Text() string {
	if ft.IsEmpty() {
		return ""
	}
	if s, ok := ft.AsString(); ok {
		return s
	}
	if parts, ok := ft.AsParts(); ok {
		var b strings.Builder
		for _, p := range parts {
			b.WriteString(p.Text)
		}
		return b.String()
	}
	return string(ft.raw)
}
