package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/brightmesh/core"
	"github.com/hupe1980/brightmesh/model"
)

// Step is one scripted model turn.
type Step struct {
	Response model.Response
	Err      error
	// Delay postpones the answer. Wait, when non-nil, blocks until closed.
	Delay time.Duration
	Wait  <-chan struct{}
}

// TextStep answers with a plain assistant text.
func TextStep(text string) Step {
	return Step{Response: model.Response{
		Content:      core.NewTextContent("assistant", text),
		FinishReason: "stop",
	}}
}

// ToolCallStep answers with function calls.
func ToolCallStep(calls ...core.FunctionCall) Step {
	parts := make([]core.Part, 0, len(calls))
	for _, fc := range calls {
		parts = append(parts, core.FunctionCallPart{FunctionCall: fc})
	}
	return Step{Response: model.Response{
		Content:      core.Content{Role: "assistant", Parts: parts},
		FinishReason: "tool_calls",
	}}
}

// ScriptedModel is a model.Model that replays steps in order. Once the
// script is exhausted the last step repeats. Requests are recorded.
type ScriptedModel struct {
	mu       sync.Mutex
	steps    []Step
	requests []model.Request
}

// NewScriptedModel creates a ScriptedModel.
func NewScriptedModel(steps ...Step) *ScriptedModel {
	return &ScriptedModel{steps: steps}
}

// Generate implements model.Model.
func (m *ScriptedModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	m.mu.Lock()
	idx := len(m.requests)
	m.requests = append(m.requests, req)
	var step Step
	if len(m.steps) > 0 {
		if idx >= len(m.steps) {
			idx = len(m.steps) - 1
		}
		step = m.steps[idx]
	} else {
		step = TextStep("")
	}
	m.mu.Unlock()

	out := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		if step.Delay > 0 {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case <-time.After(step.Delay):
			}
		}
		if step.Wait != nil {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case <-step.Wait:
			}
		}
		if step.Err != nil {
			errCh <- step.Err
			return
		}
		out <- step.Response
	}()

	return out, errCh
}

// Requests returns a copy of the recorded requests.
func (m *ScriptedModel) Requests() []model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Request(nil), m.requests...)
}

// Calls returns the number of Generate calls.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Info implements model.Model.
func (m *ScriptedModel) Info() model.Info {
	return model.Info{Name: "scripted", Provider: "mock", SupportsTools: true}
}
