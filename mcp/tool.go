package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hupe1980/brightmesh/internal/util"
	"github.com/hupe1980/brightmesh/tool"
)

// remoteTool exposes one tool of a Toolset as a tool.Tool.
type remoteTool struct {
	toolset     *Toolset
	name        string
	description string
	schema      map[string]any
}

var _ tool.Tool = (*remoteTool)(nil)

func newRemoteTool(ts *Toolset, t *gomcp.Tool) *remoteTool {
	return &remoteTool{
		toolset:     ts,
		name:        t.Name,
		description: t.Description,
		schema:      schemaMap(t.InputSchema),
	}
}

func (r *remoteTool) Name() string               { return r.name }
func (r *remoteTool) Description() string        { return r.description }
func (r *remoteTool) Parameters() map[string]any { return r.schema }

// Call checks required arguments locally before the round trip.
func (r *remoteTool) Call(ctx context.Context, args map[string]any) (any, error) {
	if err := util.ValidateParameters(args, r.schema); err != nil {
		return nil, &tool.ToolError{
			Tool:    r.name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    tool.CodeValidation,
			Details: err,
		}
	}
	return r.toolset.CallTool(ctx, r.name, args)
}

// schemaMap normalizes the input schema of a listed tool. Client side
// listings decode it as map[string]any; anything else is round-tripped
// through JSON.
func schemaMap(s any) map[string]any {
	switch v := s.(type) {
	case nil:
		return map[string]any{"type": "object", "properties": map[string]any{}}
	case map[string]any:
		return v
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return map[string]any{"type": "object"}
		}
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil || m == nil {
			return map[string]any{"type": "object"}
		}
		return m
	}
}
