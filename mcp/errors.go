package mcp

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrListRootsUnsupported marks the roots capability mismatch reported
	// by tool servers that do not implement roots/list. It is tolerated.
	ErrListRootsUnsupported = errors.New("List roots not supported")

	// ErrPreviousAttemptFailed is returned by Connect while the failure
	// latch is set.
	ErrPreviousAttemptFailed = errors.New("previous connection attempt failed")

	// ErrToolsetClosed is returned when a released Toolset is used.
	ErrToolsetClosed = errors.New("toolset closed")
)

// invalidRequestPrefix is how the tool server reports the roots mismatch
// with its JSON-RPC code.
const invalidRequestPrefix = "MCP error -32600"

// ConfigError reports a required environment variable that is missing.
type ConfigError struct {
	Variable string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s not found in environment", e.Variable)
}

// ConnectionError wraps a failure of one step of a connection attempt.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("mcp %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// IsTolerated reports whether err is the known, harmless roots capability
// mismatch. It is the single classification rule used by Manager.Connect.
func IsTolerated(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrListRootsUnsupported) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, ErrListRootsUnsupported.Error()) ||
		strings.Contains(msg, invalidRequestPrefix)
}
