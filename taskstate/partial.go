package taskstate

import (
	"sort"
	"strings"

	"github.com/just-every/demo-ui-sub000/protocol"
)

// partialMessage is the assembly state for one streamed message, reasoning
// block, or tool call, keyed by the wire id. It exists alongside a
// placeholder OutputMessage at that id's position in the transcript; the
// placeholder's content is re-rendered from this state after every delta.
type partialMessage struct {
	id       string
	kind     MessageKind
	role     string
	content  []protocol.Fragment
	thinking []protocol.Fragment
	tool     *partialTool
}

// partialTool is the assembly state for a streamed tool call. Each
// tool_delta replaces the arguments string wholesale; text fragments
// addressed to a tool id accumulate as its streamed output.
type partialTool struct {
	name      string
	callID    string
	arguments string
	output    []protocol.Fragment
}

// addFragment files a streamed fragment. Fragments addressed to a tool call
// are its output; otherwise they extend the content or thinking text.
func (m *partialMessage) addFragment(f protocol.Fragment, thinking bool) {
	if m.tool != nil {
		m.tool.output = append(m.tool.output, f)
		return
	}
	if thinking {
		m.thinking = append(m.thinking, f)
	} else {
		m.content = append(m.content, f)
	}
}

// rendered returns the display content for this partial's placeholder.
func (m *partialMessage) rendered() string {
	switch m.kind {
	case KindFunctionCall:
		if m.tool != nil {
			return m.tool.arguments
		}
		return ""
	case KindReasoning:
		return assembleFragments(m.thinking)
	default:
		return assembleFragments(m.content)
	}
}

// assembleFragments sorts fragments by order and concatenates their text.
// The sort is stable, so duplicate orders keep arrival order, and the
// result is independent of the order fragments arrived in.
func assembleFragments(frags []protocol.Fragment) string {
	if len(frags) == 0 {
		return ""
	}
	sorted := make([]protocol.Fragment, len(frags))
	copy(sorted, frags)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })
	var b strings.Builder
	for _, f := range sorted {
		b.WriteString(f.Text)
	}
	return b.String()
}
