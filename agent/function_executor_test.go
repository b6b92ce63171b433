package agent

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/brightmesh/core"
	"github.com/hupe1980/brightmesh/logging"
	"github.com/hupe1980/brightmesh/tool"
)

// gaugeTool records how many of its calls run at the same time.
type gaugeTool struct {
	name     string
	delay    time.Duration
	result   any
	err      error
	panicMsg string

	running atomic.Int32
	peak    atomic.Int32
}

func (g *gaugeTool) Name() string               { return g.name }
func (g *gaugeTool) Description() string        { return "gauge" }
func (g *gaugeTool) Parameters() map[string]any { return map[string]any{"type": "object"} }

func (g *gaugeTool) Call(ctx context.Context, args map[string]any) (any, error) {
	cur := g.running.Add(1)
	defer g.running.Add(-1)
	for {
		p := g.peak.Load()
		if cur <= p || g.peak.CompareAndSwap(p, cur) {
			break
		}
	}

	if g.panicMsg != "" {
		panic(g.panicMsg)
	}

	if g.delay > 0 {
		select {
		case <-time.After(g.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if g.err != nil {
		return nil, g.err
	}
	if g.result != nil {
		return g.result, nil
	}
	return args["n"], nil
}

func newFunctionExecutor(maxParallel int) *functionExecutor {
	return &functionExecutor{agentName: "test", maxParallel: maxParallel, logger: logging.NoOpLogger{}}
}

func registryOf(tools ...tool.Tool) map[string]tool.Tool {
	reg := make(map[string]tool.Tool, len(tools))
	for _, t := range tools {
		reg[t.Name()] = t
	}
	return reg
}

func callsFor(name string, n int) []core.FunctionCall {
	calls := make([]core.FunctionCall, n)
	for i := range calls {
		calls[i] = core.FunctionCall{ID: fmt.Sprintf("c%d", i), Name: name, Arguments: fmt.Sprintf(`{"n":%d}`, i)}
	}
	return calls
}

func TestFunctionExecutor_Single(t *testing.T) {
	g := &gaugeTool{name: "price", result: "42"}
	exec := newFunctionExecutor(4)

	out := exec.execute(context.Background(), registryOf(g), []core.FunctionCall{{ID: "1", Name: "price"}})

	require.Len(t, out, 1)
	assert.Equal(t, "1", out[0].ID)
	assert.Equal(t, "price", out[0].Name)
	assert.Equal(t, "42", out[0].Response)
	assert.Empty(t, out[0].Error)
}

func TestFunctionExecutor_Empty(t *testing.T) {
	exec := newFunctionExecutor(4)
	assert.Nil(t, exec.execute(context.Background(), nil, nil))
}

func TestFunctionExecutor_BoundedParallelism(t *testing.T) {
	g := &gaugeTool{name: "slow", delay: 30 * time.Millisecond}
	exec := newFunctionExecutor(2)

	out := exec.execute(context.Background(), registryOf(g), callsFor("slow", 6))

	require.Len(t, out, 6)
	assert.LessOrEqual(t, g.peak.Load(), int32(2))
	assert.GreaterOrEqual(t, g.peak.Load(), int32(1))
	for _, r := range out {
		assert.Empty(t, r.Error)
	}
}

func TestFunctionExecutor_UnboundedRunsAllAtOnce(t *testing.T) {
	g := &gaugeTool{name: "slow", delay: 50 * time.Millisecond}
	exec := newFunctionExecutor(0)

	start := time.Now()
	out := exec.execute(context.Background(), registryOf(g), callsFor("slow", 4))

	require.Len(t, out, 4)
	assert.Less(t, time.Since(start), 4*50*time.Millisecond)
	assert.LessOrEqual(t, g.peak.Load(), int32(4))
}

func TestFunctionExecutor_PreservesOrder(t *testing.T) {
	g := &gaugeTool{name: "echo", delay: 5 * time.Millisecond}
	exec := newFunctionExecutor(3)

	calls := callsFor("echo", 5)
	out := exec.execute(context.Background(), registryOf(g), calls)

	require.Len(t, out, len(calls))
	for i, r := range out {
		assert.Equal(t, calls[i].ID, r.ID)
		assert.EqualValues(t, i, r.Response)
	}
}

func TestFunctionExecutor_ErrorIsolation(t *testing.T) {
	ok := &gaugeTool{name: "ok", result: "fine"}
	bad := &gaugeTool{name: "bad", err: errors.New("upstream down")}
	exec := newFunctionExecutor(2)

	out := exec.execute(context.Background(), registryOf(ok, bad), []core.FunctionCall{
		{ID: "1", Name: "ok"},
		{ID: "2", Name: "bad"},
		{ID: "3", Name: "ok"},
	})

	require.Len(t, out, 3)
	assert.Equal(t, "fine", out[0].Response)
	assert.Empty(t, out[0].Error)
	assert.Equal(t, "upstream down", out[1].Error)
	assert.Nil(t, out[1].Response)
	assert.Equal(t, "fine", out[2].Response)
}

func TestFunctionExecutor_PanicRecovery(t *testing.T) {
	boom := &gaugeTool{name: "boom", panicMsg: "kaboom"}
	ok := &gaugeTool{name: "ok", result: "fine"}
	exec := newFunctionExecutor(2)

	out := exec.execute(context.Background(), registryOf(boom, ok), []core.FunctionCall{
		{ID: "1", Name: "boom"},
		{ID: "2", Name: "ok"},
	})

	require.Len(t, out, 2)
	assert.Contains(t, out[0].Error, "panic recovered")
	assert.Contains(t, out[0].Error, "kaboom")
	assert.Equal(t, "fine", out[1].Response)
}

func TestFunctionExecutor_SinglePanicRecovered(t *testing.T) {
	boom := &gaugeTool{name: "boom", panicMsg: "kaboom"}
	exec := newFunctionExecutor(1)

	out := exec.execute(context.Background(), registryOf(boom), []core.FunctionCall{{ID: "1", Name: "boom"}})

	require.Len(t, out, 1)
	assert.Contains(t, out[0].Error, "panic recovered: kaboom")
}

func TestFunctionExecutor_UnknownTool(t *testing.T) {
	exec := newFunctionExecutor(2)

	out := exec.execute(context.Background(), registryOf(), []core.FunctionCall{{ID: "1", Name: "missing"}})

	require.Len(t, out, 1)
	assert.Equal(t, "missing", out[0].Name)
	assert.Contains(t, out[0].Error, "tool missing not found")
	assert.Contains(t, out[0].Error, string(tool.CodeNotFound))
}

func TestFunctionExecutor_MalformedArguments(t *testing.T) {
	g := &gaugeTool{name: "price"}
	exec := newFunctionExecutor(2)

	out := exec.execute(context.Background(), registryOf(g), []core.FunctionCall{{ID: "1", Name: "price", Arguments: "{"}})

	require.Len(t, out, 1)
	assert.Contains(t, out[0].Error, "failed to unmarshal args")
	assert.Zero(t, g.peak.Load())
}

func TestFunctionExecutor_CancelledContext(t *testing.T) {
	g := &gaugeTool{name: "slow", delay: time.Second}
	exec := newFunctionExecutor(2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := exec.execute(ctx, registryOf(g), callsFor("slow", 3))

	require.Len(t, out, 3)
	for i, r := range out {
		assert.Equal(t, fmt.Sprintf("c%d", i), r.ID)
		assert.Equal(t, context.Canceled.Error(), r.Error)
	}
	assert.Zero(t, g.peak.Load())
}
