package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// defaultBashTimeout bounds a shell command when the caller gives none.
const defaultBashTimeout = 30 * time.Second

type BashInput struct {
	Command   string `json:"command"`
	Workdir   string `json:"workdir"`
	TimeoutMs int64  `json:"timeout"`
}

// Bash runs a shell command through the execution engine.
type Bash struct {
	engine  *Engine
	timeout time.Duration
	limits  Limits
}

func NewBash(engine *Engine, timeout time.Duration, limits Limits) *Bash {
	if timeout <= 0 {
		timeout = defaultBashTimeout
	}
	if limits.MaxLines <= 0 {
		limits.MaxLines = DefaultLimits.MaxLines
	}
	if limits.MaxBytes <= 0 {
		limits.MaxBytes = DefaultLimits.MaxBytes
	}
	return &Bash{engine: engine, timeout: timeout, limits: limits}
}

func (t *Bash) Name() string { return "bash" }

func (t *Bash) Validate(raw json.RawMessage) error {
	var in BashInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return NewValidationFailed(fmt.Sprintf("invalid bash input: %v", err), "invalid_input")
	}
	if strings.TrimSpace(in.Command) == "" {
		return NewValidationFailed("bash.command is required", "empty_command")
	}
	if in.TimeoutMs < 0 {
		return NewValidationFailed("bash.timeout must be >= 0", "invalid_timeout")
	}
	return nil
}

func (t *Bash) Execute(ctx context.Context, raw json.RawMessage) (*Output, error) {
	if err := t.Validate(raw); err != nil {
		return nil, err
	}
	var in BashInput
	_ = json.Unmarshal(raw, &in)

	timeout := t.timeout
	if in.TimeoutMs > 0 {
		timeout = time.Duration(in.TimeoutMs) * time.Millisecond
	}
	timeoutMs := timeout.Milliseconds()

	outcome, err := t.engine.Run(ctx, ExecRequest{
		Command: in.Command,
		Workdir: in.Workdir,
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}

	combined := combineStreams(outcome.Stdout, outcome.Stderr)
	text, stats := Truncate(combined, t.limits)

	switch {
	case outcome.Aborted && !outcome.TimedOut:
		// Hybrid result: whatever was captured plus the aborted error.
		out := t.output(in, text, stats, timeoutMs, outcome)
		out.Meta["aborted"] = true
		return out, NewAborted()
	case outcome.TimedOut:
		return nil, NewTimeout(timeoutMs)
	case outcome.ExitCode != 0 || outcome.Signal != "":
		details := map[string]any{
			"exitCode": outcome.ExitCode,
		}
		if outcome.Signal != "" {
			details["signal"] = outcome.Signal
		}
		if combined != "" {
			details["output"] = text
		}
		return nil, NewExecutionFailed(
			fmt.Sprintf("command exited with code %d", outcome.ExitCode),
			details,
		)
	default:
		return t.output(in, text, stats, timeoutMs, outcome), nil
	}
}

func (t *Bash) output(in BashInput, text string, stats Stats, timeoutMs int64, outcome *ExecOutcome) *Output {
	out := NewOutput(bashTitle(in.Command), text, stats)
	out.Meta["command"] = in.Command
	out.Meta["workdir"] = outcome.Workdir
	out.Meta["timeoutMs"] = timeoutMs
	if outcome.OutputClipped {
		out.Meta["outputClipped"] = true
	}
	return out
}

func bashTitle(command string) string {
	const max = 60
	title := strings.Join(strings.Fields(command), " ")
	if len(title) > max {
		title = title[:max] + "..."
	}
	return "bash: " + title
}

func combineStreams(stdout, stderr string) string {
	if stdout == "" {
		return stderr
	}
	if stderr == "" {
		return stdout
	}
	if strings.HasSuffix(stdout, "\n") {
		return stdout + stderr
	}
	return stdout + "\n" + stderr
}
