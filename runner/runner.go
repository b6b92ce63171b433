package runner

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/hupe1980/brightmesh/core"
	"github.com/hupe1980/brightmesh/logging"
	"github.com/hupe1980/brightmesh/session"
)

// ErrUserMismatch is returned when a run names a user that does not own the
// session.
var ErrUserMismatch = errors.New("session belongs to a different user")

// ErrRunNotFound is returned by Cancel for unknown or finished runs.
var ErrRunNotFound = errors.New("run not found")

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// SessionService resolves sessions and persists their history.
	SessionService core.SessionService
	// EventBufferSize sets channel buffering for events.
	EventBufferSize int
	Logger          logging.Logger
}

// Runner drives one agent over sessions: it snapshots the session, records
// the user message, runs the agent in the background, persists its
// non-partial events and streams every event to the caller. Public methods
// are safe for concurrent use.
type Runner struct {
	agent core.Agent

	sessions        core.SessionService
	eventBufferSize int
	logger          logging.Logger

	activeRuns map[string]context.CancelFunc
	mu         sync.RWMutex
}

// New constructs a Runner with optional overrides.
func New(agent core.Agent, optFns ...func(o *Options)) *Runner {
	opts := Options{
		EventBufferSize: 100,
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.SessionService == nil {
		opts.SessionService = session.NewInMemoryService()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.EventBufferSize < 0 {
		opts.EventBufferSize = 0
	}

	return &Runner{
		agent:           agent,
		sessions:        opts.SessionService,
		eventBufferSize: opts.EventBufferSize,
		logger:          opts.Logger,
		activeRuns:      make(map[string]context.CancelFunc),
	}
}

// Agent returns the agent driven by this runner.
func (r *Runner) Agent() core.Agent { return r.agent }

// SessionService returns the service the runner persists to.
func (r *Runner) SessionService() core.SessionService { return r.sessions }

// Run starts an asynchronous invocation of the agent for the given session.
//
// The event sequence is finite and ordered. The error channel carries at most
// one error. Both channels are closed when the run ends. Cancelling ctx (or
// calling Cancel with the returned run id) stops the agent; events produced
// after cancellation are persisted but not delivered.
func (r *Runner) Run(
	ctx context.Context,
	sessionID, userID string,
	userContent core.Content,
) (string, <-chan core.Event, <-chan error, error) {
	sess, err := r.sessions.Get(ctx, sessionID)
	if err != nil {
		return "", nil, nil, fmt.Errorf("failed to get session: %w", err)
	}
	if userID != "" && sess.UserID != userID {
		return "", nil, nil, fmt.Errorf("%w: session %s", ErrUserMismatch, sessionID)
	}

	runID := core.NewID()

	// sess is a snapshot taken before the user event is recorded; the
	// invocation appends userContent to its history itself.
	userEvent := core.NewUserContentEvent(runID, userContent)
	if err := r.sessions.AppendEvent(ctx, sessionID, userEvent); err != nil {
		return "", nil, nil, fmt.Errorf("failed to append user event: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.activeRuns[runID] = cancel
	r.mu.Unlock()

	eventsCh := make(chan core.Event, r.eventBufferSize)
	errorsCh := make(chan error, 1)
	agentEmit := make(chan core.Event, r.eventBufferSize)
	agentErr := make(chan error, 1)

	logger := logging.With(r.logger, "run", runID, "session_id", sessionID, "agent", r.agent.Name())
	inv := core.NewInvocation(ctx, runID, sess, userContent, agentEmit, logger)

	go func() {
		defer close(agentEmit)
		agentErr <- r.runAgent(inv)
	}()

	go func() {
		defer func() {
			r.mu.Lock()
			delete(r.activeRuns, runID)
			r.mu.Unlock()
			cancel()
			close(eventsCh)
			close(errorsCh)
		}()

		if err := r.processEvents(ctx, sessionID, agentEmit, eventsCh, cancel, logger); err != nil {
			<-agentErr
			errorsCh <- err
			return
		}
		if err := <-agentErr; err != nil {
			logger.Warn("runner.agent.error", "error", err)
			errorsCh <- fmt.Errorf("agent execution failed: %w", err)
		}
	}()

	return runID, eventsCh, errorsCh, nil
}

// Cancel cancels a running run by ID.
func (r *Runner) Cancel(runID string) error {
	r.mu.RLock()
	cancel, exists := r.activeRuns[runID]
	r.mu.RUnlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	cancel()

	return nil
}

// ActiveRuns returns the number of runs still in flight.
func (r *Runner) ActiveRuns() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.activeRuns)
}

func (r *Runner) runAgent(inv *core.Invocation) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			inv.Logger.Error("runner.agent.panic", "recover", rec, "stack", string(debug.Stack()))
			err = fmt.Errorf("agent panicked: %v", rec)
		}
	}()

	return r.agent.Run(inv)
}

// processEvents drains agentEmit until the agent closes it. A persistence
// failure cancels the run; the remaining events are drained and dropped.
func (r *Runner) processEvents(
	ctx context.Context,
	sessionID string,
	agentEmit <-chan core.Event,
	eventsCh chan<- core.Event,
	cancel context.CancelFunc,
	logger logging.Logger,
) error {
	var persistErr error

	for ev := range agentEmit {
		if persistErr != nil {
			continue
		}

		if !ev.IsPartial() {
			// Persistence must outlive a cancelled run.
			if err := r.sessions.AppendEvent(context.WithoutCancel(ctx), sessionID, ev); err != nil {
				persistErr = fmt.Errorf("failed to append event to session: %w", err)
				logger.Error("runner.event.persist.error", "event_id", ev.ID, "error", err)
				cancel()
				continue
			}
		}

		select {
		case <-ctx.Done():
		case eventsCh <- ev:
			logger.Debug("runner.event.delivered", "event_id", ev.ID)
		}
	}

	return persistErr
}
