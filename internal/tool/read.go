package tool

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

type ReadInput struct {
	Path   string `json:"path"`
	Offset int    `json:"offset"`
	Limit  int    `json:"limit"`
}

// Read returns a line range of a file inside the sandbox.
type Read struct {
	sandbox *Sandbox
	limits  Limits
}

func NewRead(sandbox *Sandbox, limits Limits) *Read {
	if limits.MaxLines <= 0 {
		limits.MaxLines = DefaultLimits.MaxLines
	}
	if limits.MaxBytes <= 0 {
		limits.MaxBytes = DefaultLimits.MaxBytes
	}
	return &Read{sandbox: sandbox, limits: limits}
}

func (t *Read) Name() string { return "read" }

func (t *Read) Validate(raw json.RawMessage) error {
	var in ReadInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return NewValidationFailed(fmt.Sprintf("invalid read input: %v", err), "invalid_input")
	}
	if strings.TrimSpace(in.Path) == "" {
		return NewValidationFailed("read.path is required", "empty_path")
	}
	if in.Offset < 0 {
		return NewValidationFailed("read.offset must be >= 0", "invalid_offset")
	}
	if in.Limit < 0 {
		return NewValidationFailed("read.limit must be >= 0", "invalid_limit")
	}
	return nil
}

func (t *Read) Execute(ctx context.Context, raw json.RawMessage) (*Output, error) {
	if err := t.Validate(raw); err != nil {
		return nil, err
	}
	var in ReadInput
	_ = json.Unmarshal(raw, &in)

	resolved, err := t.sandbox.Resolve(in.Path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &Error{
				Code:    CodeNotFound,
				Message: fmt.Sprintf("file not found: %s", in.Path),
				Details: map[string]any{"path": in.Path},
			}
		}
		return nil, NewExecutionFailed(fmt.Sprintf("failed to open file: %v", err), nil)
	}
	defer f.Close()

	limit := in.Limit
	if limit == 0 {
		limit = t.limits.MaxLines
	}

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo <= in.Offset {
			continue
		}
		if len(lines) >= limit {
			break
		}
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, NewExecutionFailed(fmt.Sprintf("failed to read file: %v", err), nil)
	}

	text, stats := Truncate(strings.Join(lines, "\n"), t.limits)
	out := NewOutput("read: "+in.Path, text, stats)
	out.Meta["path"] = in.Path
	out.Meta["offset"] = in.Offset
	out.Meta["returnedLines"] = len(lines)
	return out, nil
}
