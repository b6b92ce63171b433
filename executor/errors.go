package executor

import (
	"errors"
	"fmt"
)

// ErrEmptyMessage rejects blank request messages.
var ErrEmptyMessage = errors.New("no message provided")

// ValidationError reports a request rejected before any work started.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }
