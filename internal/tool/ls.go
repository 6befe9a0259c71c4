package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

type LSInput struct {
	Path      string `json:"path"`
	Recursive bool   `json:"recursive"`
	Limit     int    `json:"limit"`
}

// LS lists a directory inside the sandbox, one entry per line.
// Directories carry a trailing separator.
type LS struct {
	sandbox *Sandbox
	limits  Limits
}

func NewLS(sandbox *Sandbox, limits Limits) *LS {
	if limits.MaxLines <= 0 {
		limits.MaxLines = DefaultLimits.MaxLines
	}
	if limits.MaxBytes <= 0 {
		limits.MaxBytes = DefaultLimits.MaxBytes
	}
	return &LS{sandbox: sandbox, limits: limits}
}

func (t *LS) Name() string { return "ls" }

func (t *LS) Validate(raw json.RawMessage) error {
	var in LSInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return NewValidationFailed(fmt.Sprintf("invalid ls input: %v", err), "invalid_input")
	}
	if strings.TrimSpace(in.Path) == "" {
		return NewValidationFailed("ls.path is required", "empty_path")
	}
	if in.Limit < 0 {
		return NewValidationFailed("ls.limit must be >= 0", "invalid_limit")
	}
	return nil
}

func (t *LS) Execute(ctx context.Context, raw json.RawMessage) (*Output, error) {
	if err := t.Validate(raw); err != nil {
		return nil, err
	}
	var in LSInput
	_ = json.Unmarshal(raw, &in)

	resolved, err := t.sandbox.Resolve(in.Path)
	if err != nil {
		return nil, err
	}

	limit := in.Limit
	if limit == 0 {
		limit = t.limits.MaxLines
	}

	var entries []string
	if in.Recursive {
		entries, err = walkEntries(resolved, limit)
	} else {
		entries, err = listEntries(resolved, limit)
	}
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &Error{
				Code:    CodeNotFound,
				Message: fmt.Sprintf("directory not found: %s", in.Path),
				Details: map[string]any{"path": in.Path},
			}
		}
		return nil, NewExecutionFailed(fmt.Sprintf("failed to list directory: %v", err), nil)
	}

	text, stats := Truncate(strings.Join(entries, "\n"), t.limits)
	out := NewOutput("ls: "+in.Path, text, stats)
	out.Meta["path"] = in.Path
	out.Meta["entryCount"] = len(entries)
	return out, nil
}

func listEntries(dir string, limit int) ([]string, error) {
	items, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if len(out) >= limit {
			break
		}
		name := it.Name()
		if it.IsDir() {
			name += string(filepath.Separator)
		}
		out = append(out, name)
	}
	return out, nil
}

func walkEntries(root string, limit int) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		if len(out) >= limit {
			return fs.SkipAll
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		if d.IsDir() {
			rel += string(filepath.Separator)
		}
		out = append(out, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
