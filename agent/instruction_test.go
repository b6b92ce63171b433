package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/brightmesh/core"
)

type mockProvider struct {
	text string
	err  error
}

func (m mockProvider) Instruction(*core.Invocation) (string, error) { return m.text, m.err }

func newTestInvocation(t *testing.T) *core.Invocation {
	t.Helper()
	sess := core.NewSession("test-session", "app", "user")
	sess.ApplyStateDelta(map[string]any{"city": "Paris"})
	return core.NewInvocation(
		context.Background(),
		"invocation-id",
		sess,
		core.NewTextContent("user", "hello"),
		make(chan core.Event, 1),
		nil,
	)
}

func TestInstruction_Static(t *testing.T) {
	inst := NewInstructionFromText("static instruction")
	assert.True(t, inst.IsStatic())

	got, err := inst.Resolve(newTestInvocation(t))
	require.NoError(t, err)
	assert.Equal(t, "static instruction", got)
}

func TestInstruction_FromFuncReadsSessionState(t *testing.T) {
	inst := NewInstructionFromFunc(func(inv *core.Invocation) (string, error) {
		city, _ := inv.Session.GetState("city")
		return fmt.Sprintf("Default location: %v", city), nil
	})
	assert.False(t, inst.IsStatic())

	got, err := inst.Resolve(newTestInvocation(t))
	require.NoError(t, err)
	assert.Equal(t, "Default location: Paris", got)
}

func TestInstruction_FromProvider(t *testing.T) {
	inst := NewInstructionFromProvider(mockProvider{text: "provider text"})
	assert.False(t, inst.IsStatic())

	got, err := inst.Resolve(newTestInvocation(t))
	require.NoError(t, err)
	assert.Equal(t, "provider text", got)
}

func TestInstruction_ErrorPropagation(t *testing.T) {
	expectedErr := errors.New("boom")
	inst := NewInstructionFromProvider(mockProvider{err: expectedErr})

	_, err := inst.Resolve(newTestInvocation(t))
	assert.ErrorIs(t, err, expectedErr)
}
