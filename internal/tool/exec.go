package tool

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// maxCaptureBytes is the hard cap on combined stdout+stderr held in
	// memory for one subprocess. It protects the process, not the display;
	// the display caps live in Limits.
	maxCaptureBytes = 10 << 20

	// killGracePeriod is the window between SIGTERM and SIGKILL.
	killGracePeriod = 150 * time.Millisecond

	// waitReapDelay bounds Wait even if a grandchild keeps the output
	// pipes open after the command itself has died.
	waitReapDelay = 5 * time.Second
)

// ExecRequest describes one shell invocation.
type ExecRequest struct {
	Command string
	Workdir string
	Timeout time.Duration
}

// ExecOutcome is the settled state of one invocation. It lives only for
// the duration of the call and is never persisted.
type ExecOutcome struct {
	ExitCode int
	Signal   string
	// Workdir is the resolved directory the command actually ran in.
	Workdir       string
	Stdout        string
	Stderr        string
	Aborted       bool
	TimedOut      bool
	OutputClipped bool
	Duration      time.Duration
}

// Engine spawns and supervises shell subprocesses inside the sandbox.
type Engine struct {
	sandbox *Sandbox
	log     *logrus.Entry
}

func NewEngine(sandbox *Sandbox) *Engine {
	return &Engine{
		sandbox: sandbox,
		log:     logrus.WithField("component", "exec"),
	}
}

// Run validates, spawns, supervises, and settles one shell command.
// Validation failures (policy, sandbox, pre-fired cancellation) return an
// error before any side effect; everything after spawn is reported through
// the outcome.
func (e *Engine) Run(ctx context.Context, req ExecRequest) (*ExecOutcome, error) {
	if err := CheckCommand(req.Command); err != nil {
		return nil, err
	}
	workdir := req.Workdir
	if workdir == "" {
		workdir = "."
	}
	resolvedDir, err := e.sandbox.Resolve(workdir)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, NewAborted()
	}

	cmd := exec.Command("bash", "-c", req.Command)
	cmd.Dir = resolvedDir
	// Own process group so the escalating kill reaches the whole tree.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.WaitDelay = waitReapDelay

	capture := &boundedCapture{budget: maxCaptureBytes}
	stdout := capture.stream()
	stderr := capture.stream()
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	started := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, NewExecutionFailed(
			fmt.Sprintf("failed to spawn command: %v", err),
			map[string]any{"command": req.Command},
		)
	}

	e.log.WithFields(logrus.Fields{
		"pid":     cmd.Process.Pid,
		"workdir": resolvedDir,
	}).Debug("spawned command")

	term := newTerminator(cmd.Process.Pid)
	watchDone := make(chan struct{})
	var timeoutCh <-chan time.Time
	var timeoutTimer *time.Timer
	if req.Timeout > 0 {
		timeoutTimer = time.NewTimer(req.Timeout)
		timeoutCh = timeoutTimer.C
	}
	go func() {
		select {
		case <-ctx.Done():
			term.trigger(causeAbort)
		case <-timeoutCh:
			term.trigger(causeTimeout)
		case <-watchDone:
		}
	}()

	waitErr := cmd.Wait()
	close(watchDone)
	if timeoutTimer != nil {
		timeoutTimer.Stop()
	}
	cause := term.settle()

	outcome := &ExecOutcome{
		Workdir:       resolvedDir,
		Stdout:        stdout.String(),
		Stderr:        stderr.String(),
		Aborted:       cause == causeAbort,
		TimedOut:      cause == causeTimeout,
		OutputClipped: capture.wasClipped(),
		Duration:      time.Since(started),
	}
	outcome.ExitCode, outcome.Signal = classifyExit(cmd, waitErr)

	e.log.WithFields(logrus.Fields{
		"exit_code": outcome.ExitCode,
		"signal":    outcome.Signal,
		"aborted":   outcome.Aborted,
		"timed_out": outcome.TimedOut,
		"duration":  outcome.Duration,
	}).Debug("command settled")

	return outcome, nil
}

func classifyExit(cmd *exec.Cmd, waitErr error) (int, string) {
	state := cmd.ProcessState
	if state == nil {
		if waitErr != nil {
			return -1, ""
		}
		return 0, ""
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return -1, signalName(ws.Signal())
	}
	return state.ExitCode(), ""
}

func signalName(sig syscall.Signal) string {
	switch sig {
	case syscall.SIGTERM:
		return "SIGTERM"
	case syscall.SIGKILL:
		return "SIGKILL"
	case syscall.SIGINT:
		return "SIGINT"
	default:
		return sig.String()
	}
}

type terminationCause int

const (
	causeNone terminationCause = iota
	causeTimeout
	causeAbort
)

// terminator is the single termination state machine. Timeout and external
// abort are independent triggers; only the first one through the state flag
// sends SIGTERM and arms the one escalating kill timer.
type terminator struct {
	mu         sync.Mutex
	pid        int
	fired      bool
	cause      terminationCause
	graceTimer *time.Timer
}

func newTerminator(pid int) *terminator {
	return &terminator{pid: pid}
}

func (t *terminator) trigger(cause terminationCause) {
	t.mu.Lock()
	if t.fired {
		t.mu.Unlock()
		return
	}
	t.fired = true
	t.cause = cause
	t.graceTimer = time.AfterFunc(killGracePeriod, func() {
		_ = syscall.Kill(-t.pid, syscall.SIGKILL)
	})
	t.mu.Unlock()

	_ = syscall.Kill(-t.pid, syscall.SIGTERM)
}

// settle stops the grace timer and reports what fired, if anything.
func (t *terminator) settle() terminationCause {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.graceTimer != nil {
		t.graceTimer.Stop()
	}
	return t.cause
}

// boundedCapture shares one byte budget across the stdout and stderr
// sinks. Writes beyond the budget are dropped, never errored, and the
// drop is recorded.
type boundedCapture struct {
	mu      sync.Mutex
	budget  int
	clipped bool
}

func (c *boundedCapture) stream() *captureSink {
	return &captureSink{capture: c}
}

func (c *boundedCapture) wasClipped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clipped
}

type captureSink struct {
	capture *boundedCapture
	mu      sync.Mutex
	buf     bytes.Buffer
}

func (s *captureSink) Write(p []byte) (int, error) {
	s.capture.mu.Lock()
	take := len(p)
	if take > s.capture.budget {
		take = s.capture.budget
		s.capture.clipped = true
	}
	s.capture.budget -= take
	s.capture.mu.Unlock()

	if take > 0 {
		s.mu.Lock()
		s.buf.Write(p[:take])
		s.mu.Unlock()
	}
	return len(p), nil
}

func (s *captureSink) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}
