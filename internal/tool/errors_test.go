package tool

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestNormalize_PassThrough(t *testing.T) {
	orig := NewTimeout(100)
	got := Normalize(fmt.Errorf("wrapped: %w", orig))
	if got != orig {
		t.Fatalf("expected pass-through, got %+v", got)
	}
}

func TestNormalize_ContextErrors(t *testing.T) {
	got := Normalize(context.DeadlineExceeded)
	if got.Code != CodeTimeout || !got.Retryable {
		t.Fatalf("unexpected deadline mapping: %+v", got)
	}

	got = Normalize(context.Canceled)
	if got.Message != "Tool execution aborted" {
		t.Fatalf("unexpected cancel mapping: %+v", got)
	}
}

func TestNormalize_UnknownError(t *testing.T) {
	got := Normalize(errors.New("disk on fire"))
	if got.Code != CodeExecutionFailed {
		t.Fatalf("unexpected code: %s", got.Code)
	}
	if got.Retryable {
		t.Fatal("unknown errors must not be retryable by default")
	}
	if got.Message != "disk on fire" {
		t.Fatalf("unexpected message: %q", got.Message)
	}
}

func TestNormalize_Nil(t *testing.T) {
	if Normalize(nil) != nil {
		t.Fatal("expected nil")
	}
}

func TestError_String(t *testing.T) {
	e := NewNotFound("widget")
	if e.Error() != "TOOL_NOT_FOUND: Tool not found: widget" {
		t.Fatalf("unexpected error string: %q", e.Error())
	}
}
