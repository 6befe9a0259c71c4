package tool

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(mustSandbox(t, t.TempDir()))
}

func TestEngineRun_Success(t *testing.T) {
	e := newTestEngine(t)
	outcome, err := e.Run(context.Background(), ExecRequest{Command: "echo test-output", Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("run err: %v", err)
	}
	if outcome.ExitCode != 0 || outcome.Aborted || outcome.TimedOut {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if !strings.Contains(outcome.Stdout, "test-output") {
		t.Fatalf("unexpected stdout: %q", outcome.Stdout)
	}
}

func TestEngineRun_StderrCaptured(t *testing.T) {
	e := newTestEngine(t)
	outcome, err := e.Run(context.Background(), ExecRequest{Command: "echo oops >&2", Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("run err: %v", err)
	}
	if !strings.Contains(outcome.Stderr, "oops") {
		t.Fatalf("unexpected stderr: %q", outcome.Stderr)
	}
}

func TestEngineRun_NonZeroExit(t *testing.T) {
	e := newTestEngine(t)
	outcome, err := e.Run(context.Background(), ExecRequest{Command: "exit 7", Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("run err: %v", err)
	}
	if outcome.ExitCode != 7 {
		t.Fatalf("expected exit code 7, got %d", outcome.ExitCode)
	}
}

func TestEngineRun_Timeout(t *testing.T) {
	e := newTestEngine(t)
	outcome, err := e.Run(context.Background(), ExecRequest{Command: "sleep 1", Timeout: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("run err: %v", err)
	}
	if !outcome.TimedOut {
		t.Fatalf("expected timeout, got %+v", outcome)
	}
	if outcome.Aborted {
		t.Fatal("timeout must not be reported as abort")
	}
}

func TestEngineRun_AbortWithPartialOutput(t *testing.T) {
	e := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	outcome, err := e.Run(ctx, ExecRequest{Command: "echo started; sleep 5", Timeout: 30 * time.Second})
	if err != nil {
		t.Fatalf("run err: %v", err)
	}
	if !outcome.Aborted || outcome.TimedOut {
		t.Fatalf("expected abort, got %+v", outcome)
	}
	if !strings.Contains(outcome.Stdout, "started") {
		t.Fatalf("expected partial output, got %q", outcome.Stdout)
	}
}

func TestEngineRun_AbortBeforeSpawn(t *testing.T) {
	e := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Run(ctx, ExecRequest{Command: "echo never"})
	if err == nil {
		t.Fatal("expected abort error")
	}
	var te *Error
	if !errors.As(err, &te) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if te.Message != "Tool execution aborted" {
		t.Fatalf("unexpected message: %q", te.Message)
	}
}

func TestEngineRun_BannedCommandNeverSpawns(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Run(context.Background(), ExecRequest{Command: "sudo rm -rf / && touch marker"})
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
	outcome, runErr := e.Run(context.Background(), ExecRequest{Command: "test ! -e marker"})
	if runErr != nil {
		t.Fatalf("marker check failed: %v", runErr)
	}
	if outcome.ExitCode != 0 {
		t.Fatal("denied command left a side effect")
	}
}

func TestEngineRun_WorkdirOutsideSandbox(t *testing.T) {
	e := newTestEngine(t)
	other := t.TempDir()
	_, err := e.Run(context.Background(), ExecRequest{Command: "echo x", Workdir: other})
	if err == nil {
		t.Fatal("expected sandbox rejection")
	}
	var te *Error
	if !errors.As(err, &te) || te.Code != CodePermissionDenied {
		t.Fatalf("expected permission denied, got %v", err)
	}
}

func TestEngineRun_GracefulThenForceKill(t *testing.T) {
	e := newTestEngine(t)
	// The trap ignores SIGTERM, so only the escalation to SIGKILL ends it.
	start := time.Now()
	outcome, err := e.Run(context.Background(), ExecRequest{
		Command: "trap '' TERM; sleep 10",
		Timeout: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("run err: %v", err)
	}
	if !outcome.TimedOut {
		t.Fatalf("expected timeout, got %+v", outcome)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("kill escalation took too long: %v", elapsed)
	}
}

func TestTerminator_IdempotentTrigger(t *testing.T) {
	// A pid no live process can own; the signals go nowhere.
	term := newTerminator(1 << 30)
	term.trigger(causeTimeout)
	term.trigger(causeAbort)
	term.trigger(causeAbort)
	if got := term.settle(); got != causeTimeout {
		t.Fatalf("first trigger must win, got %v", got)
	}
}

func TestBoundedCapture_SharedBudget(t *testing.T) {
	c := &boundedCapture{budget: 10}
	a := c.stream()
	b := c.stream()

	if n, err := a.Write([]byte("12345678")); err != nil || n != 8 {
		t.Fatalf("unexpected write result: n=%d err=%v", n, err)
	}
	// Only 2 bytes of budget remain; the rest is dropped without error.
	if n, err := b.Write([]byte("abcdef")); err != nil || n != 6 {
		t.Fatalf("unexpected write result: n=%d err=%v", n, err)
	}
	if a.String() != "12345678" {
		t.Fatalf("unexpected stream a: %q", a.String())
	}
	if b.String() != "ab" {
		t.Fatalf("unexpected stream b: %q", b.String())
	}
	if !c.wasClipped() {
		t.Fatal("expected clipped flag")
	}
}
