package tool

import (
	"context"
	"errors"
	"fmt"
)

// Code classifies a tool failure. Callers branch on Code, never on the
// message text.
type Code string

const (
	CodeNotFound         Code = "TOOL_NOT_FOUND"
	CodeTimeout          Code = "TOOL_TIMEOUT"
	CodeValidationFailed Code = "TOOL_VALIDATION_FAILED"
	CodePermissionDenied Code = "TOOL_PERMISSION_DENIED"
	CodeExecutionFailed  Code = "TOOL_EXECUTION_FAILED"
)

// abortedMessage is the canonical error text for an externally cancelled run.
const abortedMessage = "Tool execution aborted"

// Error is the one error shape that crosses the tool boundary.
type Error struct {
	Code      Code
	Message   string
	Retryable bool
	Details   map[string]any
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Detail returns a named detail value, or nil.
func (e *Error) Detail(key string) any {
	if e.Details == nil {
		return nil
	}
	return e.Details[key]
}

func NewNotFound(name string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("Tool not found: %s", name),
		Details: map[string]any{"tool": name},
	}
}

func NewTimeout(timeoutMs int64) *Error {
	return &Error{
		Code:      CodeTimeout,
		Message:   fmt.Sprintf("Tool execution timed out after %dms", timeoutMs),
		Retryable: true,
		Details:   map[string]any{"timeoutMs": timeoutMs},
	}
}

func NewValidationFailed(message, reason string) *Error {
	return &Error{
		Code:    CodeValidationFailed,
		Message: message,
		Details: map[string]any{"reason": reason},
	}
}

func NewPermissionDenied(message, reason string, details map[string]any) *Error {
	d := map[string]any{"reason": reason}
	for k, v := range details {
		d[k] = v
	}
	return &Error{
		Code:    CodePermissionDenied,
		Message: message,
		Details: d,
	}
}

func NewExecutionFailed(message string, details map[string]any) *Error {
	return &Error{
		Code:    CodeExecutionFailed,
		Message: message,
		Details: details,
	}
}

// NewAborted reports an externally cancelled invocation.
func NewAborted() *Error {
	return &Error{
		Code:    CodeExecutionFailed,
		Message: abortedMessage,
		Details: map[string]any{"aborted": true},
	}
}

// Normalize collapses an arbitrary error into the taxonomy. A *Error passes
// through unchanged; context cancellation maps to the aborted shape, a
// context deadline to Timeout; anything else becomes ExecutionFailed.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}
	var te *Error
	if errors.As(err, &te) {
		return te
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{
			Code:      CodeTimeout,
			Message:   "Tool execution timed out",
			Retryable: true,
		}
	}
	if errors.Is(err, context.Canceled) {
		return NewAborted()
	}
	return &Error{
		Code:    CodeExecutionFailed,
		Message: err.Error(),
	}
}
