package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type WriteInput struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Append  bool   `json:"append"`
}

// Write creates or appends to a file inside the sandbox, creating parent
// directories as needed.
type Write struct {
	sandbox *Sandbox
}

func NewWrite(sandbox *Sandbox) *Write {
	return &Write{sandbox: sandbox}
}

func (t *Write) Name() string { return "write" }

func (t *Write) Validate(raw json.RawMessage) error {
	var in WriteInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return NewValidationFailed(fmt.Sprintf("invalid write input: %v", err), "invalid_input")
	}
	if strings.TrimSpace(in.Path) == "" {
		return NewValidationFailed("write.path is required", "empty_path")
	}
	return nil
}

func (t *Write) Execute(ctx context.Context, raw json.RawMessage) (*Output, error) {
	if err := t.Validate(raw); err != nil {
		return nil, err
	}
	var in WriteInput
	_ = json.Unmarshal(raw, &in)

	resolved, err := t.sandbox.Resolve(in.Path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return nil, NewExecutionFailed(fmt.Sprintf("failed to create parent directory: %v", err), nil)
	}

	flags := os.O_WRONLY | os.O_CREATE
	if in.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(resolved, flags, 0o644)
	if err != nil {
		return nil, NewExecutionFailed(fmt.Sprintf("failed to open file for writing: %v", err), nil)
	}
	n, err := f.WriteString(in.Content)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, NewExecutionFailed(fmt.Sprintf("failed to write file: %v", err), nil)
	}

	out := NewOutput("write: "+in.Path, fmt.Sprintf("wrote %d bytes to %s", n, in.Path), Stats{
		OriginalLines: 1,
		OriginalBytes: n,
	})
	out.Meta["path"] = in.Path
	out.Meta["bytesWritten"] = n
	out.Meta["append"] = in.Append
	return out, nil
}
