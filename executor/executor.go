package executor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/brightmesh/core"
	"github.com/hupe1980/brightmesh/logging"
	"github.com/hupe1980/brightmesh/runner"
)

// DefaultAppName tags the sessions created for requests.
const DefaultAppName = "adk_mcp_fastapi"

// DefaultBackgroundLimit caps how long a detached run may keep going after
// its request timed out.
const DefaultBackgroundLimit = 5 * time.Minute

// State is the terminal state of one Execute call.
type State int

// States of an executed request.
const (
	Completed State = iota
	TimedOut
	Failed
)

func (s State) String() string {
	switch s {
	case Completed:
		return "completed"
	case TimedOut:
		return "timed_out"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// RunnerSource yields the shared runner. *registry.Registry implements it.
type RunnerSource interface {
	Runner(ctx context.Context) (*runner.Runner, error)
}

// Request is one unit of work.
type Request struct {
	Message   string
	SessionID string
	UserID    string
	// Profile defaults to ChatProfile(DefaultChatTimeout).
	Profile *Profile
}

// Result is the outcome of a request. TimedOut and Failed results are still
// successful calls; their Text explains what happened.
type Result struct {
	Text      string
	State     State
	SessionID string
	Elapsed   time.Duration
}

// Options configures an Executor.
type Options struct {
	AppName         string
	BackgroundLimit time.Duration
	Logger          logging.Logger
}

// Executor runs requests through the shared runner under a deadline.
type Executor struct {
	runners         RunnerSource
	appName         string
	backgroundLimit time.Duration
	logger          logging.Logger
}

// New creates an Executor.
func New(runners RunnerSource, optFns ...func(o *Options)) *Executor {
	opts := Options{
		AppName:         DefaultAppName,
		BackgroundLimit: DefaultBackgroundLimit,
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.BackgroundLimit <= 0 {
		opts.BackgroundLimit = DefaultBackgroundLimit
	}

	return &Executor{
		runners:         runners,
		appName:         opts.AppName,
		backgroundLimit: opts.BackgroundLimit,
		logger:          opts.Logger,
	}
}

// Execute runs one request.
//
// A blank message is rejected with a *ValidationError before any session is
// created. Otherwise a fresh session is created and the runner is started
// detached from ctx, so neither the deadline nor caller cancellation stops
// the agent or its tool calls. The call returns when the run finishes, the
// profile deadline passes or ctx is done, whichever comes first. On timeout
// the text gathered so far is returned and the run keeps draining in the
// background for at most the background limit. The session is deleted once
// the run has drained.
func (e *Executor) Execute(ctx context.Context, req Request) (Result, error) {
	start := time.Now()

	if strings.TrimSpace(req.Message) == "" {
		return Result{}, &ValidationError{Field: "message", Err: ErrEmptyMessage}
	}

	profile := req.Profile
	if profile == nil {
		profile = ChatProfile(DefaultChatTimeout)
	}

	logger := logging.With(e.logger, "profile", profile.Name, "request_session", req.SessionID)

	r, err := e.runners.Runner(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("resolve runner: %w", err)
	}
	sessions := r.SessionService()

	sess, err := sessions.Create(ctx, e.appName, req.UserID, map[string]any{})
	if err != nil {
		return Result{}, fmt.Errorf("create session: %w", err)
	}
	logger = logging.With(logger, "session_id", sess.ID)
	logger.Info("executing request", "user_id", sess.UserID, "timeout", profile.Timeout)

	result := Result{SessionID: sess.ID}

	runCtx := context.WithoutCancel(ctx)
	runID, events, errs, err := r.Run(runCtx, sess.ID, sess.UserID, core.NewTextContent("user", req.Message))
	if err != nil {
		logger.Error("run failed to start", "error", err)
		e.deleteSession(sessions, sess.ID, logger)
		result.State = Failed
		result.Text = failureText(err)
		result.Elapsed = time.Since(start)
		return result, nil
	}

	buf := &buffer{}
	done := make(chan error, 1)
	go func() {
		runErr := drain(events, errs, buf)
		e.deleteSession(sessions, sess.ID, logger)
		done <- runErr
	}()

	timer := time.NewTimer(profile.Timeout)
	defer timer.Stop()

	select {
	case runErr := <-done:
		if runErr != nil {
			logger.Error("run failed", "error", runErr)
			result.State = Failed
			result.Text = failureText(runErr)
			break
		}
		result.State = Completed
		result.Text = strings.TrimSpace(buf.String())
		if result.Text == "" {
			result.Text = profile.Fallback
		}
	case <-timer.C:
		logger.Warn("request timed out", "run", runID, "timeout", profile.Timeout)
		result.State = TimedOut
		result.Text = timeoutText(profile, buf.String(), profile.Timeout)
		e.detach(r, runID, done, logger)
	case <-ctx.Done():
		elapsed := time.Since(start)
		logger.Warn("request cancelled by caller", "run", runID, "elapsed", elapsed, "error", ctx.Err())
		result.State = TimedOut
		result.Text = timeoutText(profile, buf.String(), elapsed)
		e.detach(r, runID, done, logger)
	}

	result.Elapsed = time.Since(start)
	logger.Info("request finished", "state", result.State.String(), "elapsed_ms", result.Elapsed.Milliseconds())
	return result, nil
}

// detach lets an abandoned run finish in the background, cancelling it once
// the background limit passes.
func (e *Executor) detach(r *runner.Runner, runID string, done <-chan error, logger logging.Logger) {
	logger.Debug("run continues in background", "run", runID, "limit", e.backgroundLimit)

	go func() {
		limit := time.NewTimer(e.backgroundLimit)
		defer limit.Stop()

		select {
		case err := <-done:
			logger.Debug("background run drained", "run", runID, "error", err)
		case <-limit.C:
			logger.Warn("background run exceeded limit, cancelling", "run", runID)
			if err := r.Cancel(runID); err != nil {
				logger.Debug("background run already finished", "run", runID, "error", err)
			}
			<-done
		}
	}()
}

func (e *Executor) deleteSession(sessions core.SessionService, sessionID string, logger logging.Logger) {
	if err := sessions.Delete(context.Background(), sessionID); err != nil {
		logger.Warn("session cleanup failed", "error", err)
	}
}

// drain accumulates the text of every event and returns the run error, if
// any, once the event stream is closed.
func drain(events <-chan core.Event, errs <-chan error, buf *buffer) error {
	for ev := range events {
		for _, piece := range Pieces(Classify(ev)) {
			buf.add(piece)
		}
	}
	return <-errs
}

// timeoutText renders the gathered text with the profile notice for a wait
// of the given length.
func timeoutText(p *Profile, gathered string, waited time.Duration) string {
	if strings.TrimSpace(gathered) == "" && p.EmptyNotice != nil {
		return p.EmptyNotice(waited)
	}
	text := gathered
	if p.PartialNotice != nil {
		text += p.PartialNotice(waited)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return p.Fallback
	}
	return text
}

func failureText(err error) string {
	return fmt.Sprintf("I encountered an error while processing your request: %v", err)
}

// buffer accumulates response text. The drain goroutine writes while a
// timed out caller reads.
type buffer struct {
	mu sync.Mutex
	sb strings.Builder
}

func (b *buffer) add(piece string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sb.WriteString(piece)
	b.sb.WriteString("\n")
}

func (b *buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.String()
}
