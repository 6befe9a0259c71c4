package tool

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestBash(t *testing.T) *Bash {
	t.Helper()
	engine := NewEngine(mustSandbox(t, t.TempDir()))
	return NewBash(engine, 5*time.Second, Limits{MaxLines: 100, MaxBytes: 4096})
}

func TestBash_ExecuteSuccess(t *testing.T) {
	bashTool := newTestBash(t)

	raw, _ := json.Marshal(BashInput{Command: "echo test-output"})
	out, err := bashTool.Execute(context.Background(), raw)
	if err != nil {
		t.Fatalf("exec err: %v", err)
	}
	if !strings.Contains(out.Text, "test-output") {
		t.Fatalf("unexpected output: %q", out.Text)
	}
	if out.Meta["truncated"] != false {
		t.Fatalf("unexpected truncated flag: %v", out.Meta["truncated"])
	}
	if out.Meta["timeoutMs"] != int64(5000) {
		t.Fatalf("unexpected timeoutMs: %v", out.Meta["timeoutMs"])
	}
}

func TestBash_Timeout(t *testing.T) {
	bashTool := newTestBash(t)

	raw, _ := json.Marshal(BashInput{Command: "sleep 1", TimeoutMs: 20})
	_, err := bashTool.Execute(context.Background(), raw)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	var te *Error
	if !errors.As(err, &te) || te.Code != CodeTimeout {
		t.Fatalf("expected timeout code, got %v", err)
	}
	if !te.Retryable {
		t.Fatal("timeout must be retryable")
	}
	if te.Detail("timeoutMs") != int64(20) {
		t.Fatalf("unexpected timeoutMs detail: %v", te.Detail("timeoutMs"))
	}
}

func TestBash_NonZeroExit(t *testing.T) {
	bashTool := newTestBash(t)

	raw, _ := json.Marshal(BashInput{Command: "echo failing; exit 7"})
	_, err := bashTool.Execute(context.Background(), raw)
	if err == nil {
		t.Fatal("expected execution error")
	}
	var te *Error
	if !errors.As(err, &te) || te.Code != CodeExecutionFailed {
		t.Fatalf("expected execution failed, got %v", err)
	}
	if te.Detail("exitCode") != 7 {
		t.Fatalf("unexpected exitCode detail: %v", te.Detail("exitCode"))
	}
	output, _ := te.Detail("output").(string)
	if !strings.Contains(output, "failing") {
		t.Fatalf("expected captured output in details, got %q", output)
	}
}

func TestBash_BannedCommand(t *testing.T) {
	bashTool := newTestBash(t)

	raw, _ := json.Marshal(BashInput{Command: "sudo rm -rf /"})
	_, err := bashTool.Execute(context.Background(), raw)
	if err == nil {
		t.Fatal("expected policy error")
	}
	var te *Error
	if !errors.As(err, &te) || te.Code != CodePermissionDenied {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if te.Detail("reason") != "banned_command" {
		t.Fatalf("unexpected reason: %v", te.Detail("reason"))
	}
}

func TestBash_AbortHybridResult(t *testing.T) {
	bashTool := newTestBash(t)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	raw, _ := json.Marshal(BashInput{Command: "echo partial-line; sleep 5"})
	out, err := bashTool.Execute(ctx, raw)
	if err == nil {
		t.Fatal("expected aborted error")
	}
	var te *Error
	if !errors.As(err, &te) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if te.Message != "Tool execution aborted" {
		t.Fatalf("unexpected message: %q", te.Message)
	}
	if out == nil {
		t.Fatal("expected partial output alongside the error")
	}
	if !strings.Contains(out.Text, "partial-line") {
		t.Fatalf("expected captured lines, got %q", out.Text)
	}
	if out.Meta["aborted"] != true {
		t.Fatalf("expected aborted metadata, got %v", out.Meta["aborted"])
	}
}

func TestBash_WorkdirMetadata(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	sb := mustSandbox(t, root)
	bashTool := NewBash(NewEngine(sb), 5*time.Second, Limits{})

	raw, _ := json.Marshal(BashInput{Command: "pwd", Workdir: "sub"})
	out, err := bashTool.Execute(context.Background(), raw)
	if err != nil {
		t.Fatalf("exec err: %v", err)
	}
	want, err := sb.Resolve("sub")
	if err != nil {
		t.Fatal(err)
	}
	if out.Meta["workdir"] != want {
		t.Fatalf("expected resolved workdir %q, got %v", want, out.Meta["workdir"])
	}

	raw, _ = json.Marshal(BashInput{Command: "pwd"})
	out, err = bashTool.Execute(context.Background(), raw)
	if err != nil {
		t.Fatalf("exec err: %v", err)
	}
	if out.Meta["workdir"] != sb.Root() {
		t.Fatalf("expected sandbox root, got %v", out.Meta["workdir"])
	}
}

func TestBash_ValidateInput(t *testing.T) {
	bashTool := newTestBash(t)

	raw, _ := json.Marshal(BashInput{Command: "   "})
	_, err := bashTool.Execute(context.Background(), raw)
	if err == nil {
		t.Fatal("expected validation error")
	}
	var te *Error
	if !errors.As(err, &te) || te.Code != CodeValidationFailed {
		t.Fatalf("expected validation failed, got %v", err)
	}
}

func TestBash_TruncatedOutput(t *testing.T) {
	engine := NewEngine(mustSandbox(t, t.TempDir()))
	bashTool := NewBash(engine, 5*time.Second, Limits{MaxLines: 2, MaxBytes: 4096})

	raw, _ := json.Marshal(BashInput{Command: "printf 'a\\nb\\nc\\nd\\n'"})
	out, err := bashTool.Execute(context.Background(), raw)
	if err != nil {
		t.Fatalf("exec err: %v", err)
	}
	if out.Meta["truncated"] != true {
		t.Fatalf("expected truncation, meta=%v", out.Meta)
	}
	if out.Meta["lineCount"].(int) < 4 {
		t.Fatalf("unexpected original line count: %v", out.Meta["lineCount"])
	}
}
