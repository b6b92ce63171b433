package executor_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/brightmesh/core"
	"github.com/hupe1980/brightmesh/executor"
	"github.com/hupe1980/brightmesh/internal/testutil"
	"github.com/hupe1980/brightmesh/runner"
	"github.com/hupe1980/brightmesh/session"
)

type scriptedAgent struct {
	run func(inv *core.Invocation) error
}

func (a scriptedAgent) Name() string                   { return "scripted" }
func (a scriptedAgent) Description() string            { return "scripted test agent" }
func (a scriptedAgent) Run(inv *core.Invocation) error { return a.run(inv) }

type runnerSource struct {
	r     *runner.Runner
	calls atomic.Int32
}

func (s *runnerSource) Runner(context.Context) (*runner.Runner, error) {
	s.calls.Add(1)
	return s.r, nil
}

func setup(t *testing.T, run func(inv *core.Invocation) error, optFns ...func(o *executor.Options)) (*executor.Executor, *session.InMemoryService, *runnerSource) {
	t.Helper()
	svc := session.NewInMemoryService()
	r := runner.New(scriptedAgent{run: run}, func(o *runner.Options) { o.SessionService = svc })
	src := &runnerSource{r: r}
	return executor.New(src, optFns...), svc, src
}

func emitText(inv *core.Invocation, texts ...string) error {
	for _, text := range texts {
		if err := inv.Emit(testutil.NewEventBuilder().AssistantText(text).Build()); err != nil {
			return err
		}
	}
	return nil
}

func normalize(s string) string { return strings.Join(strings.Fields(s), " ") }

func TestExecute_EmptyMessageCreatesNoSession(t *testing.T) {
	exec, svc, src := setup(t, func(*core.Invocation) error { return nil })

	for _, msg := range []string{"", "   ", "\n\t"} {
		_, err := exec.Execute(context.Background(), executor.Request{Message: msg, UserID: "user_default"})

		require.Error(t, err)
		assert.ErrorIs(t, err, executor.ErrEmptyMessage)

		var verr *executor.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "message", verr.Field)
	}

	assert.Equal(t, 0, svc.Len())
	assert.EqualValues(t, 0, src.calls.Load())
}

func TestExecute_Completed(t *testing.T) {
	exec, svc, _ := setup(t, func(inv *core.Invocation) error {
		return emitText(inv, "Price: $10")
	})

	res, err := exec.Execute(context.Background(), executor.Request{
		Message: "compare prices",
		UserID:  "user_default",
		Profile: executor.ChatProfile(time.Second),
	})
	require.NoError(t, err)

	assert.Equal(t, executor.Completed, res.State)
	assert.Equal(t, "Price: $10", res.Text)
	assert.NotEmpty(t, res.SessionID)
	assert.Equal(t, 0, svc.Len(), "session is deleted once drained")
}

func TestExecute_SessionCarriesRequestUser(t *testing.T) {
	var seenUser, seenApp string
	exec, _, _ := setup(t, func(inv *core.Invocation) error {
		seenUser = inv.Session.UserID
		seenApp = inv.Session.AppName
		return emitText(inv, "ok")
	}, func(o *executor.Options) { o.AppName = "test_app" })

	_, err := exec.Execute(context.Background(), executor.Request{Message: "hi", UserID: "user_abc"})
	require.NoError(t, err)

	assert.Equal(t, "user_abc", seenUser)
	assert.Equal(t, "test_app", seenApp)
}

func TestExecute_TimeoutPartiality(t *testing.T) {
	release := make(chan struct{})
	exec, svc, _ := setup(t, func(inv *core.Invocation) error {
		if err := emitText(inv, "Hello ", "World"); err != nil {
			return err
		}
		<-release
		return emitText(inv, "late")
	})

	res, err := exec.Execute(context.Background(), executor.Request{
		Message: "compare",
		UserID:  "user_default",
		Profile: executor.ChatProfile(100 * time.Millisecond),
	})
	require.NoError(t, err)

	assert.Equal(t, executor.TimedOut, res.State)
	assert.True(t, strings.HasPrefix(normalize(res.Text), "Hello World"), res.Text)
	assert.Contains(t, res.Text, "⏱️ **Note**: Request timed out after 0 seconds. Showing partial results gathered so far.")
	assert.NotContains(t, res.Text, "late")

	// The run keeps draining after the caller gave up; its session goes away
	// only once it finishes.
	assert.Equal(t, 1, svc.Len())
	close(release)
	assert.Eventually(t, func() bool { return svc.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestExecute_TimeoutWithoutText(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	exec, _, _ := setup(t, func(*core.Invocation) error {
		<-release
		return nil
	})

	res, err := exec.Execute(context.Background(), executor.Request{
		Message: "compare",
		Profile: executor.ChatProfile(50 * time.Millisecond),
	})
	require.NoError(t, err)

	assert.Equal(t, executor.TimedOut, res.State)
	assert.Equal(t, "⏱️ **Request timed out** after 0 seconds. The comparison is taking longer than expected. Please try a more specific query or try again later.", res.Text)
}

func TestExecute_QuickProfileTimeoutNotice(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	exec, _, _ := setup(t, func(inv *core.Invocation) error {
		if err := emitText(inv, "Booking is cheaper"); err != nil {
			return err
		}
		<-release
		return nil
	})

	res, err := exec.Execute(context.Background(), executor.Request{
		Message: "quick",
		Profile: executor.QuickProfile(50 * time.Millisecond),
	})
	require.NoError(t, err)

	assert.Equal(t, executor.TimedOut, res.State)
	assert.Equal(t, "Booking is cheaper\n\n\n⚡ **Quick comparison completed** in 0 seconds.", res.Text)
}

func TestExecute_QuickProfileTimeoutWithoutText(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	exec, _, _ := setup(t, func(*core.Invocation) error {
		<-release
		return nil
	})

	res, err := exec.Execute(context.Background(), executor.Request{
		Message: "quick",
		Profile: executor.QuickProfile(50 * time.Millisecond),
	})
	require.NoError(t, err)
	assert.Equal(t, "⚡ **Quick comparison completed** in 0 seconds.", res.Text)
}

func TestExecute_FallbackOnSilence(t *testing.T) {
	exec, _, _ := setup(t, func(inv *core.Invocation) error {
		calls := testutil.NewEventBuilder().FunctionCall("c1", "search_engine", `{}`).Build()
		responses := testutil.NewEventBuilder().FunctionResponse("c1", "search_engine", map[string]any{"hits": 0}, nil).Build()
		bare := core.NewEvent("", "scripted")
		for _, ev := range []core.Event{calls, responses, bare} {
			if err := inv.Emit(ev); err != nil {
				return err
			}
		}
		return nil
	})

	chat, err := exec.Execute(context.Background(), executor.Request{Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, executor.Completed, chat.State)
	assert.Equal(t, executor.ChatFallback, chat.Text)

	quick, err := exec.Execute(context.Background(), executor.Request{Message: "hi", Profile: executor.QuickProfile(time.Second)})
	require.NoError(t, err)
	assert.Equal(t, executor.QuickFallback, quick.Text)
}

func TestExecute_Failure(t *testing.T) {
	exec, svc, _ := setup(t, func(inv *core.Invocation) error {
		_ = emitText(inv, "partial")
		return errors.New("tool server crashed")
	})

	res, err := exec.Execute(context.Background(), executor.Request{Message: "hi"})
	require.NoError(t, err)

	assert.Equal(t, executor.Failed, res.State)
	assert.True(t, strings.HasPrefix(res.Text, "I encountered an error while processing your request: "))
	assert.Contains(t, res.Text, "tool server crashed")
	assert.Equal(t, 0, svc.Len())
}

func TestExecute_CallerCancellationDoesNotStopRun(t *testing.T) {
	release := make(chan struct{})
	finished := make(chan error, 1)

	exec, _, _ := setup(t, func(inv *core.Invocation) error {
		_ = emitText(inv, "working")
		<-release
		finished <- inv.Err()
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	res, err := exec.Execute(ctx, executor.Request{Message: "hi", Profile: executor.ChatProfile(time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, executor.TimedOut, res.State)
	assert.True(t, strings.HasPrefix(res.Text, "working"))
	assert.Contains(t, res.Text, "timed out after 0 seconds")
	assert.NotContains(t, res.Text, "after 60 seconds")
	assert.Less(t, res.Elapsed, time.Minute)

	close(release)
	select {
	case runErr := <-finished:
		assert.NoError(t, runErr, "the run context is detached from the caller")
	case <-time.After(2 * time.Second):
		t.Fatal("run did not finish")
	}
}

func TestExecute_BackgroundLimitCancelsRun(t *testing.T) {
	cancelled := make(chan struct{})

	exec, svc, _ := setup(t, func(inv *core.Invocation) error {
		<-inv.Done()
		close(cancelled)
		return inv.Err()
	}, func(o *executor.Options) { o.BackgroundLimit = 50 * time.Millisecond })

	res, err := exec.Execute(context.Background(), executor.Request{Message: "hi", Profile: executor.ChatProfile(20 * time.Millisecond)})
	require.NoError(t, err)
	assert.Equal(t, executor.TimedOut, res.State)

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("background run was not cancelled")
	}
	assert.Eventually(t, func() bool { return svc.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}
