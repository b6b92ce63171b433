package core

import (
	"context"

	"github.com/hupe1980/brightmesh/logging"
)

// Invocation carries the per-run scope passed to Agent.Run: the cancellation
// context, identifiers, the starting user content, a session snapshot and the
// emission channel drained by the runner.
type Invocation struct {
	Context      context.Context
	InvocationID string
	Session      *Session
	UserContent  Content
	Logger       logging.Logger

	emit chan<- Event
}

// NewInvocation constructs an Invocation. A nil logger is replaced with a
// NoOpLogger.
func NewInvocation(
	ctx context.Context,
	invocationID string,
	sess *Session,
	userContent Content,
	emit chan<- Event,
	logger logging.Logger,
) *Invocation {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Invocation{
		Context:      ctx,
		InvocationID: invocationID,
		Session:      sess,
		UserContent:  userContent,
		Logger:       logger,
		emit:         emit,
	}
}

// Done mirrors context.Context's Done.
func (inv *Invocation) Done() <-chan struct{} { return inv.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (inv *Invocation) Err() error { return inv.Context.Err() }

// Emit stamps the event with the invocation id and hands it to the runner.
// It blocks until the runner accepts the event or the context is cancelled.
func (inv *Invocation) Emit(ev Event) error {
	if ev.InvocationID == "" {
		ev.InvocationID = inv.InvocationID
	}
	select {
	case <-inv.Context.Done():
		return inv.Context.Err()
	case inv.emit <- ev:
		return nil
	}
}

// History returns the conversation so far: the session history followed by
// the user content that started this invocation.
func (inv *Invocation) History() []Content {
	var history []Content
	if inv.Session != nil {
		history = inv.Session.GetConversationHistory()
	}
	return append(history, inv.UserContent)
}
