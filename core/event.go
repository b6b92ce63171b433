package core

import (
	"time"

	"github.com/google/uuid"
)

// Message is a nested envelope some producers use instead of attaching
// Content directly to the event.
type Message struct {
	Author  string   `json:"author,omitempty"`
	Content *Content `json:"content,omitempty"`
}

// Event is the primary unit of communication between agents, the runner and
// request executors. After emission it should be treated as immutable.
//
// Producers populate exactly one payload form: Content (the common case),
// Message (a nested envelope) or Text (a flat string). Consumers that need
// the text should not probe these fields ad hoc; the executor package
// classifies an event into a closed set of shapes.
type Event struct {
	ID           string    `json:"id"`
	InvocationID string    `json:"invocation_id"`
	Author       string    `json:"author"`
	Timestamp    time.Time `json:"timestamp"`
	Content      *Content  `json:"content,omitempty"`
	Message      *Message  `json:"message,omitempty"`
	Text         string    `json:"text,omitempty"`
	Partial      *bool     `json:"partial,omitempty"`
	TurnComplete *bool     `json:"turn_complete,omitempty"`
	ErrorMessage *string   `json:"error_message,omitempty"`
}

// NewEvent creates a bare event authored by 'author' bound to an invocation.
func NewEvent(invocationID, author string) Event {
	return Event{
		ID:           NewID(),
		InvocationID: invocationID,
		Author:       author,
		Timestamp:    time.Now().UTC(),
	}
}

// NewMessageEvent creates an assistant message event with a single text part.
func NewMessageEvent(invocationID, author, message string) Event {
	e := NewEvent(invocationID, author)
	c := NewTextContent("assistant", message)
	e.Content = &c
	return e
}

// NewContentEvent creates an event carrying arbitrary content.
func NewContentEvent(invocationID, author string, content Content) Event {
	e := NewEvent(invocationID, author)
	e.Content = &content
	return e
}

// NewUserContentEvent creates a user-authored event with arbitrary Content.
func NewUserContentEvent(invocationID string, content Content) Event {
	return NewContentEvent(invocationID, "user", content)
}

// NewFunctionResponseEvent records the result (or error) of a tool call.
func NewFunctionResponseEvent(invocationID, author string, responses ...FunctionResponse) Event {
	parts := make([]Part, 0, len(responses))
	for _, fr := range responses {
		parts = append(parts, FunctionResponsePart{FunctionResponse: fr})
	}
	return NewContentEvent(invocationID, author, Content{Role: "tool", Parts: parts})
}

// NewID generates a new unique identifier for events, sessions and runs.
func NewID() string { return uuid.NewString() }

// IsPartial reports whether this event is a streaming fragment.
func (e Event) IsPartial() bool { return e.Partial != nil && *e.Partial }

// GetFunctionCalls returns any FunctionCall parts contained within the event
// content preserving their original order.
func (e Event) GetFunctionCalls() []FunctionCall {
	if e.Content == nil {
		return nil
	}
	var calls []FunctionCall
	for _, p := range e.Content.Parts {
		if fc, ok := p.(FunctionCallPart); ok {
			calls = append(calls, fc.FunctionCall)
		}
	}
	return calls
}

// GetFunctionResponses returns any FunctionResponse parts contained within the
// event content preserving their original order.
func (e Event) GetFunctionResponses() []FunctionResponse {
	if e.Content == nil {
		return nil
	}
	var responses []FunctionResponse
	for _, p := range e.Content.Parts {
		if fr, ok := p.(FunctionResponsePart); ok {
			responses = append(responses, fr.FunctionResponse)
		}
	}
	return responses
}

// IsFinalResponse reports whether the event closes an assistant turn: no
// pending tool calls or responses and not a partial fragment.
func (e Event) IsFinalResponse() bool {
	return len(e.GetFunctionCalls()) == 0 &&
		len(e.GetFunctionResponses()) == 0 &&
		!e.IsPartial()
}
