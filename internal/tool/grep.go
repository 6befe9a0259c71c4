package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

type GrepInput struct {
	Path    string `json:"path"`
	Pattern string `json:"pattern"`
	Glob    string `json:"glob"`
	Limit   int    `json:"limit"`
}

// Grep searches file contents inside the sandbox, preferring ripgrep with
// a grep fallback.
type Grep struct {
	sandbox *Sandbox
	timeout time.Duration
	limits  Limits
}

func NewGrep(sandbox *Sandbox, timeout time.Duration, limits Limits) *Grep {
	if timeout <= 0 {
		timeout = defaultBashTimeout
	}
	if limits.MaxLines <= 0 {
		limits.MaxLines = DefaultLimits.MaxLines
	}
	if limits.MaxBytes <= 0 {
		limits.MaxBytes = DefaultLimits.MaxBytes
	}
	return &Grep{sandbox: sandbox, timeout: timeout, limits: limits}
}

func (t *Grep) Name() string { return "grep" }

func (t *Grep) Validate(raw json.RawMessage) error {
	var in GrepInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return NewValidationFailed(fmt.Sprintf("invalid grep input: %v", err), "invalid_input")
	}
	if strings.TrimSpace(in.Path) == "" {
		return NewValidationFailed("grep.path is required", "empty_path")
	}
	if strings.TrimSpace(in.Pattern) == "" {
		return NewValidationFailed("grep.pattern is required", "empty_pattern")
	}
	if in.Limit < 0 {
		return NewValidationFailed("grep.limit must be >= 0", "invalid_limit")
	}
	return nil
}

func (t *Grep) Execute(ctx context.Context, raw json.RawMessage) (*Output, error) {
	if err := t.Validate(raw); err != nil {
		return nil, err
	}
	var in GrepInput
	_ = json.Unmarshal(raw, &in)

	resolved, err := t.sandbox.Resolve(in.Path)
	if err != nil {
		return nil, err
	}

	toolCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := buildGrepCommand(toolCtx, resolved, in.Pattern, in.Glob, in.Limit)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runErr != nil {
		if toolCtx.Err() != nil {
			return nil, Normalize(toolCtx.Err())
		}
		// rg and grep exit 1 on zero matches.
		if ee, ok := runErr.(*exec.ExitError); ok && ee.ExitCode() == 1 {
			out := NewOutput("grep: "+in.Pattern, "", Stats{})
			out.Meta["path"] = in.Path
			out.Meta["pattern"] = in.Pattern
			out.Meta["matches"] = 0
			return out, nil
		}
		return nil, NewExecutionFailed(
			fmt.Sprintf("grep failed: %v", runErr),
			map[string]any{"stderr": stderr.String()},
		)
	}

	// A caller limit tightens the line cap so the stats describe exactly
	// the text returned.
	limits := t.limits
	if in.Limit > 0 && in.Limit < limits.MaxLines {
		limits.MaxLines = in.Limit
	}
	text, stats := Truncate(stdout.String(), limits)
	out := NewOutput("grep: "+in.Pattern, text, stats)
	out.Meta["path"] = in.Path
	out.Meta["pattern"] = in.Pattern
	return out, nil
}

func buildGrepCommand(ctx context.Context, path, pattern, glob string, limit int) *exec.Cmd {
	if _, err := exec.LookPath("rg"); err == nil {
		args := []string{"--line-number", "--no-heading", "--color", "never"}
		if strings.TrimSpace(glob) != "" {
			args = append(args, "-g", glob)
		}
		if limit > 0 {
			args = append(args, "--max-count", strconv.Itoa(limit))
		}
		args = append(args, pattern, path)
		return exec.CommandContext(ctx, "rg", args...)
	}

	args := []string{"-R", "-n", "-H"}
	if limit > 0 {
		args = append(args, "-m", strconv.Itoa(limit))
	}
	if strings.TrimSpace(glob) != "" {
		args = append(args, "--include="+glob)
	}
	args = append(args, pattern, path)
	return exec.CommandContext(ctx, "grep", args...)
}
