package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

type EditInput struct {
	Path    string `json:"path"`
	OldText string `json:"old_text"`
	NewText string `json:"new_text"`
	All     bool   `json:"all"`
}

// Edit replaces text in a file inside the sandbox.
type Edit struct {
	sandbox *Sandbox
}

func NewEdit(sandbox *Sandbox) *Edit {
	return &Edit{sandbox: sandbox}
}

func (t *Edit) Name() string { return "edit" }

func (t *Edit) Validate(raw json.RawMessage) error {
	var in EditInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return NewValidationFailed(fmt.Sprintf("invalid edit input: %v", err), "invalid_input")
	}
	if strings.TrimSpace(in.Path) == "" {
		return NewValidationFailed("edit.path is required", "empty_path")
	}
	if in.OldText == "" {
		return NewValidationFailed("edit.old_text is required", "empty_old_text")
	}
	return nil
}

func (t *Edit) Execute(ctx context.Context, raw json.RawMessage) (*Output, error) {
	if err := t.Validate(raw); err != nil {
		return nil, err
	}
	var in EditInput
	_ = json.Unmarshal(raw, &in)

	resolved, err := t.sandbox.Resolve(in.Path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &Error{
				Code:    CodeNotFound,
				Message: fmt.Sprintf("file not found: %s", in.Path),
				Details: map[string]any{"path": in.Path},
			}
		}
		return nil, NewExecutionFailed(fmt.Sprintf("failed to read file: %v", err), nil)
	}

	content := string(data)
	count := strings.Count(content, in.OldText)
	if count == 0 {
		return nil, NewValidationFailed(
			fmt.Sprintf("edit.old_text not found in %s", in.Path),
			"old_text_not_found",
		)
	}

	replaced := 1
	if in.All {
		content = strings.ReplaceAll(content, in.OldText, in.NewText)
		replaced = count
	} else {
		content = strings.Replace(content, in.OldText, in.NewText, 1)
	}
	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return nil, NewExecutionFailed(fmt.Sprintf("failed to write file: %v", err), nil)
	}

	out := NewOutput("edit: "+in.Path, fmt.Sprintf("replaced %d occurrence(s) in %s", replaced, in.Path), Stats{
		OriginalLines: 1,
		OriginalBytes: len(content),
	})
	out.Meta["path"] = in.Path
	out.Meta["replacements"] = replaced
	return out, nil
}
