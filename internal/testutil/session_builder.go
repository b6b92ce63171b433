package testutil

import (
	"github.com/hupe1980/brightmesh/core"
)

// SessionBuilder helps construct sessions with fluent chaining for tests.
// Example:
//
//	sess := NewSessionBuilder("sess-1").User("user_1").Events(ev1, ev2).Build()
type SessionBuilder struct {
	id      string
	appName string
	userID  string
	events  []core.Event
}

// NewSessionBuilder creates a new builder for a session with the given id.
// Use chainable methods (App, User, Events) then call Build.
func NewSessionBuilder(id string) *SessionBuilder {
	return &SessionBuilder{id: id, appName: "test_app", userID: "test_user"}
}

// App sets the application name (chainable).
func (b *SessionBuilder) App(name string) *SessionBuilder { b.appName = name; return b }

// User sets the owning user id (chainable).
func (b *SessionBuilder) User(id string) *SessionBuilder { b.userID = id; return b }

// Events appends multiple events to the session history (chainable).
func (b *SessionBuilder) Events(evs ...core.Event) *SessionBuilder {
	b.events = append(b.events, evs...)
	return b
}

// Build returns a *core.Session with pre-populated events.
func (b *SessionBuilder) Build() *core.Session {
	s := core.NewSession(b.id, b.appName, b.userID)
	s.Events = append(s.Events, b.events...)

	return s
}
