package executor

import "github.com/hupe1980/brightmesh/core"

// Shape is the closed set of event payload forms the executor understands.
// Exactly one of ContentParts, NestedMessageParts, FlatText or Unrecognized
// describes any event.
type Shape interface {
	isShape()
}

// ContentParts is an event whose Content carries parts.
type ContentParts struct {
	Parts []core.Part
}

// NestedMessageParts is an event whose parts travel inside a Message envelope.
type NestedMessageParts struct {
	Author string
	Parts  []core.Part
}

// FlatText is an event carrying only a flat Text payload.
type FlatText struct {
	Text string
}

// Unrecognized is any other event. It contributes no text.
type Unrecognized struct {
	Reason string
}

func (ContentParts) isShape()       {}
func (NestedMessageParts) isShape() {}
func (FlatText) isShape()           {}
func (Unrecognized) isShape()       {}

// Classify maps an event onto its Shape. Partial fragments are Unrecognized:
// their text is repeated by the final event that follows them.
func Classify(ev core.Event) Shape {
	switch {
	case ev.IsPartial():
		return Unrecognized{Reason: "partial"}
	case ev.Content != nil && len(ev.Content.Parts) > 0:
		return ContentParts{Parts: ev.Content.Parts}
	case ev.Message != nil && ev.Message.Content != nil && len(ev.Message.Content.Parts) > 0:
		return NestedMessageParts{Author: ev.Message.Author, Parts: ev.Message.Content.Parts}
	case ev.Text != "":
		return FlatText{Text: ev.Text}
	default:
		return Unrecognized{Reason: "no text payload"}
	}
}

// Pieces returns the non-empty text pieces of a shape in order. Function
// calls and responses carry no text and are skipped.
func Pieces(s Shape) []string {
	switch v := s.(type) {
	case ContentParts:
		return textParts(v.Parts)
	case NestedMessageParts:
		return textParts(v.Parts)
	case FlatText:
		return []string{v.Text}
	case Unrecognized:
		return nil
	default:
		panic("executor: unknown shape")
	}
}

func textParts(parts []core.Part) []string {
	var out []string
	for _, p := range parts {
		if tp, ok := p.(core.TextPart); ok && tp.Text != "" {
			out = append(out, tp.Text)
		}
	}
	return out
}
