package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hupe1980/brightmesh/core"
	"github.com/hupe1980/brightmesh/logging"
	"github.com/hupe1980/brightmesh/tool"
)

// functionExecutor runs the function calls of one model turn. Calls execute
// in parallel (bounded by maxParallel); results are returned in call order
// with exactly one FunctionResponse per FunctionCall. Tool panics are
// recovered and reported as errors.
type functionExecutor struct {
	agentName   string
	maxParallel int
	logger      logging.Logger
}

func (e *functionExecutor) execute(
	ctx context.Context,
	registry map[string]tool.Tool,
	calls []core.FunctionCall,
) []core.FunctionResponse {
	n := len(calls)
	if n == 0 {
		return nil
	}

	results := make([]core.FunctionResponse, n)

	if n == 1 {
		results[0] = e.executeOne(ctx, registry, calls[0])
		return results
	}

	maxPar := e.maxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, maxPar)

	batchStart := time.Now()
	for i, fc := range calls {
		if ctx.Err() != nil {
			results[i] = cancelled(fc, ctx.Err())
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, fc core.FunctionCall) {
			defer wg.Done()
			defer func() { <-sem }()

			if ctx.Err() != nil {
				results[idx] = cancelled(fc, ctx.Err())
				return
			}
			results[idx] = e.executeOne(ctx, registry, fc)
		}(i, fc)
	}

	wg.Wait()

	e.logger.Debug(
		"agent.functions.batch.complete",
		"agent", e.agentName,
		"count", n,
		"parallelism", maxPar,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	return results
}

func (e *functionExecutor) executeOne(ctx context.Context, registry map[string]tool.Tool, fc core.FunctionCall) core.FunctionResponse {
	start := time.Now()

	var (
		result any
		err    error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = panicError(r)
				e.logger.Error("agent.function.panic", "agent", e.agentName, "function", fc.Name, "recover", r)
			}
		}()
		result, err = callTool(ctx, registry, fc.Name, fc.Arguments)
	}()

	e.logger.Info(
		"agent.function.executed",
		"agent", e.agentName,
		"function", fc.Name,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err != nil,
	)

	resp := core.FunctionResponse{ID: fc.ID, Name: fc.Name, Response: result}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}

func cancelled(fc core.FunctionCall, err error) core.FunctionResponse {
	return core.FunctionResponse{ID: fc.ID, Name: fc.Name, Error: err.Error()}
}

// panicError converts a recovered panic value to an error.
func panicError(r any) error { return &panicErr{val: r, stack: debug.Stack()} }

type panicErr struct {
	val   any
	stack []byte
}

func (p *panicErr) Error() string { return fmt.Sprintf("panic recovered: %v", p.val) }

func callTool(ctx context.Context, registry map[string]tool.Tool, name, args string) (any, error) {
	impl, ok := registry[name]
	if !ok {
		return nil, tool.NewToolError(name, fmt.Sprintf("tool %s not found", name), tool.CodeNotFound)
	}

	argMap := map[string]any{}
	if args != "" {
		if err := json.Unmarshal([]byte(args), &argMap); err != nil {
			return nil, fmt.Errorf("failed to unmarshal args: %w", err)
		}
	}

	return impl.Call(ctx, argMap)
}
