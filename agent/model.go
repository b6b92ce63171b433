package agent

import (
	"errors"
	"fmt"

	"github.com/hupe1980/brightmesh/core"
	"github.com/hupe1980/brightmesh/logging"
	"github.com/hupe1980/brightmesh/model"
	"github.com/hupe1980/brightmesh/tool"
)

// ErrMaxIterations is returned when the model keeps requesting tools past the
// configured iteration budget.
var ErrMaxIterations = errors.New("agent exceeded max iterations")

// ModelAgentOptions configures a ModelAgent instance.
//
// Use functional options with NewModelAgent to override defaults.
type ModelAgentOptions struct {
	Description string
	Instruction Instruction
	// MaxIterations bounds the model/tool round trips within one turn.
	MaxIterations int
	// MaxParallelTools bounds concurrent tool calls within one model turn.
	// Zero means no limit.
	MaxParallelTools int
	// Sources are listed at the start of every run.
	Sources []tool.Source
	Logger  logging.Logger
}

// ModelAgent drives a language model through a tool-calling loop.
//
// Each run:
//  1. lists tools from its sources,
//  2. asks the model for the next assistant turn and emits it,
//  3. executes requested function calls and emits their responses,
//  4. repeats until the model answers without calling tools.
type ModelAgent struct {
	BaseAgent
	llm           model.Model
	instruction   Instruction
	maxIterations int
	sources       []tool.Source
	executor      *functionExecutor
	logger        logging.Logger
}

// NewModelAgent creates a new model-based agent.
func NewModelAgent(name string, llm model.Model, optFns ...func(o *ModelAgentOptions)) *ModelAgent {
	opts := ModelAgentOptions{
		Instruction:   NewInstructionFromText(fmt.Sprintf("You are %s, a helpful AI assistant.", name)),
		MaxIterations: 10,
		Logger:        logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 1
	}

	base := NewBaseAgent(name)
	if opts.Description != "" {
		base.SetDescription(opts.Description)
	}

	return &ModelAgent{
		BaseAgent:     base,
		llm:           llm,
		instruction:   opts.Instruction,
		maxIterations: opts.MaxIterations,
		sources:       append([]tool.Source(nil), opts.Sources...),
		executor: &functionExecutor{
			agentName:   name,
			maxParallel: opts.MaxParallelTools,
			logger:      opts.Logger,
		},
		logger: opts.Logger,
	}
}

// Model returns the language model driving the agent.
func (a *ModelAgent) Model() model.Model { return a.llm }

// HasSources reports whether the agent was configured with tool sources.
func (a *ModelAgent) HasSources() bool { return len(a.sources) > 0 }

// Run implements core.Agent.
func (a *ModelAgent) Run(inv *core.Invocation) error {
	logger := logging.With(a.logger, "agent", a.Name(), "invocation", inv.InvocationID)
	logger.Debug("agent.run.start")

	instructions, err := a.instruction.Resolve(inv)
	if err != nil {
		return fmt.Errorf("resolve instruction: %w", err)
	}

	registry, defs := a.collectTools(inv, logger)
	history := inv.History()

	for i := 0; i < a.maxIterations; i++ {
		resp, err := model.Complete(inv.Context, a.llm, model.Request{
			Instructions: instructions,
			Contents:     history,
			Tools:        defs,
		})
		if err != nil {
			return fmt.Errorf("model generate: %w", err)
		}

		content := resp.Content
		content.Role = "assistant"

		ev := core.NewContentEvent(inv.InvocationID, a.Name(), content)
		if err := inv.Emit(ev); err != nil {
			return err
		}
		history = append(history, content)

		calls := ev.GetFunctionCalls()
		if len(calls) == 0 {
			logger.Debug("agent.run.complete", "iterations", i+1)
			return nil
		}

		responses := a.executor.execute(inv.Context, registry, calls)
		respEv := core.NewFunctionResponseEvent(inv.InvocationID, a.Name(), responses...)
		if err := inv.Emit(respEv); err != nil {
			return err
		}
		history = append(history, *respEv.Content)
	}

	logger.Warn("agent.run.max_iterations", "max_iterations", a.maxIterations)
	return fmt.Errorf("%w (%d)", ErrMaxIterations, a.maxIterations)
}

// collectTools lists every source. A failing source is logged and skipped so
// the turn can still complete without it.
func (a *ModelAgent) collectTools(inv *core.Invocation, logger logging.Logger) (map[string]tool.Tool, []model.ToolDefinition) {
	registry := make(map[string]tool.Tool)
	var defs []model.ToolDefinition

	for _, src := range a.sources {
		tools, err := src.Tools(inv.Context)
		if err != nil {
			logger.Warn("agent.tools.list.error", "error", err)
			continue
		}
		for _, t := range tools {
			if _, dup := registry[t.Name()]; dup {
				continue
			}
			registry[t.Name()] = t
			defs = append(defs, model.ToolDefinition{
				Type: "function",
				Function: model.FunctionDefinition{
					Name:        t.Name(),
					Description: t.Description(),
					Parameters:  t.Parameters(),
				},
			})
		}
	}

	logger.Debug("agent.tools.listed", "count", len(defs))
	return registry, defs
}
