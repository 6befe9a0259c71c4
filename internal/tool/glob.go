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

type GlobInput struct {
	Path     string `json:"path"`
	Pattern  string `json:"pattern"`
	MaxDepth int    `json:"max_depth"`
	Limit    int    `json:"limit"`
}

// Glob finds files by name pattern inside the sandbox, preferring fd with
// a find fallback.
type Glob struct {
	sandbox *Sandbox
	timeout time.Duration
	limits  Limits
}

func NewGlob(sandbox *Sandbox, timeout time.Duration, limits Limits) *Glob {
	if timeout <= 0 {
		timeout = defaultBashTimeout
	}
	if limits.MaxLines <= 0 {
		limits.MaxLines = DefaultLimits.MaxLines
	}
	if limits.MaxBytes <= 0 {
		limits.MaxBytes = DefaultLimits.MaxBytes
	}
	return &Glob{sandbox: sandbox, timeout: timeout, limits: limits}
}

func (t *Glob) Name() string { return "glob" }

func (t *Glob) Validate(raw json.RawMessage) error {
	var in GlobInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return NewValidationFailed(fmt.Sprintf("invalid glob input: %v", err), "invalid_input")
	}
	if strings.TrimSpace(in.Path) == "" {
		return NewValidationFailed("glob.path is required", "empty_path")
	}
	if in.MaxDepth < 0 {
		return NewValidationFailed("glob.max_depth must be >= 0", "invalid_max_depth")
	}
	if in.Limit < 0 {
		return NewValidationFailed("glob.limit must be >= 0", "invalid_limit")
	}
	return nil
}

func (t *Glob) Execute(ctx context.Context, raw json.RawMessage) (*Output, error) {
	if err := t.Validate(raw); err != nil {
		return nil, err
	}
	var in GlobInput
	_ = json.Unmarshal(raw, &in)

	resolved, err := t.sandbox.Resolve(in.Path)
	if err != nil {
		return nil, err
	}

	pattern := strings.TrimSpace(in.Pattern)
	if pattern == "" {
		pattern = "*"
	}

	toolCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := buildGlobCommand(toolCtx, resolved, pattern, in.MaxDepth, in.Limit)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if runErr := cmd.Run(); runErr != nil {
		if toolCtx.Err() != nil {
			return nil, Normalize(toolCtx.Err())
		}
		return nil, NewExecutionFailed(
			fmt.Sprintf("glob failed: %v", runErr),
			map[string]any{"stderr": stderr.String()},
		)
	}

	limits := t.limits
	if in.Limit > 0 && in.Limit < limits.MaxLines {
		limits.MaxLines = in.Limit
	}
	text, stats := Truncate(stdout.String(), limits)
	out := NewOutput("glob: "+pattern, text, stats)
	out.Meta["path"] = in.Path
	out.Meta["pattern"] = pattern
	return out, nil
}

func buildGlobCommand(ctx context.Context, path, pattern string, maxDepth, limit int) *exec.Cmd {
	for _, bin := range []string{"fd", "fdfind"} {
		if _, err := exec.LookPath(bin); err != nil {
			continue
		}
		args := []string{"--color", "never", "--glob"}
		if maxDepth > 0 {
			args = append(args, "-d", strconv.Itoa(maxDepth))
		}
		if limit > 0 {
			args = append(args, "--max-results", strconv.Itoa(limit))
		}
		args = append(args, pattern, path)
		return exec.CommandContext(ctx, bin, args...)
	}

	args := []string{path}
	if maxDepth > 0 {
		args = append(args, "-maxdepth", strconv.Itoa(maxDepth))
	}
	if pattern != "*" {
		args = append(args, "-name", pattern)
	}
	return exec.CommandContext(ctx, "find", args...)
}
