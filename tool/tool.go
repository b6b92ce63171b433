// Package tool defines the capabilities an agent can call during a turn and
// the sources that supply them. Tools carry a JSON schema for their
// arguments so model providers can advertise them for function calling.
package tool

import (
	"context"
	"fmt"

	"github.com/hupe1980/brightmesh/internal/util"
)

// Tool is a named capability an agent may invoke with structured arguments.
//
// Implementations must be safe for concurrent use: a single agent executes
// the function calls of one model turn in parallel.
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description provided to the model.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	Parameters() map[string]any

	// Call executes the tool with arguments decoded from the model's JSON.
	Call(ctx context.Context, args map[string]any) (any, error)
}

// Source supplies a set of tools. Sources may be backed by remote processes
// and are therefore listed lazily, per run.
type Source interface {
	Tools(ctx context.Context) ([]Tool, error)
}

// StaticSource is a Source over a fixed tool list.
type StaticSource []Tool

// Tools implements Source.
func (s StaticSource) Tools(context.Context) ([]Tool, error) { return s, nil }

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}

// Error codes used by the built-in tool adapters.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodeNotFound   = "NOT_FOUND"
)
