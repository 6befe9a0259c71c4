package tool

import (
	"context"
	"encoding/json"
)

// Tool is the common abstraction for all atomic tools.
type Tool interface {
	Name() string
	Validate(raw json.RawMessage) error
	Execute(ctx context.Context, raw json.RawMessage) (*Output, error)
}

// Call represents one tool invocation request. It is created once by the
// caller and never mutated.
type Call struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Output is the envelope a tool returns on success. A tool may also return
// an Output alongside an error for a run that was aborted mid-way; the
// executor preserves that partial payload.
type Output struct {
	Title string         `json:"title"`
	Text  string         `json:"output"`
	Meta  map[string]any `json:"metadata,omitempty"`
}

// NewOutput builds an Output with truncation stats recorded in Meta.
func NewOutput(title, text string, stats Stats) *Output {
	return &Output{
		Title: title,
		Text:  text,
		Meta: map[string]any{
			"truncated": stats.Truncated,
			"lineCount": stats.OriginalLines,
			"byteCount": stats.OriginalBytes,
		},
	}
}

// Result is the terminal outcome of one call as seen by the caller.
// Error set implies Value is nil or a partial payload; an externally
// aborted run is the one case carrying both.
type Result struct {
	CallID      string  `json:"call_id"`
	Name        string  `json:"name"`
	Value       *Output `json:"result"`
	ErrorText   string  `json:"error,omitempty"`
	ErrorDetail *Error  `json:"error_detail,omitempty"`
}

// OK reports whether the call succeeded without error.
func (r Result) OK() bool { return r.ErrorText == "" && r.ErrorDetail == nil }
