package tool

import (
	"strings"
	"unicode/utf8"
)

// Limits bounds the text a tool may return. These are display-oriented
// caps; the subprocess capture cap in exec.go is a separate, memory
// protection ceiling.
type Limits struct {
	MaxLines int
	MaxBytes int
}

// DefaultLimits are the caps for generic text output.
var DefaultLimits = Limits{MaxLines: 2000, MaxBytes: 51200}

// Stats describes what Truncate did. OriginalLines and OriginalBytes are
// always the true counts of the input, truncated or not.
type Stats struct {
	Truncated     bool
	OriginalLines int
	OriginalBytes int
}

// Truncate bounds content by line and byte caps. The returned string is
// always a byte-for-byte prefix of content, and a multi-byte code point is
// never split.
func Truncate(content string, limits Limits) (string, Stats) {
	stats := Stats{
		OriginalLines: countLines(content),
		OriginalBytes: len(content),
	}
	if limits.MaxLines <= 0 {
		limits.MaxLines = DefaultLimits.MaxLines
	}
	if limits.MaxBytes <= 0 {
		limits.MaxBytes = DefaultLimits.MaxBytes
	}
	if stats.OriginalBytes <= limits.MaxBytes && stats.OriginalLines <= limits.MaxLines {
		return content, stats
	}

	lines := 1
	end := 0
	for end < len(content) {
		// DecodeRuneInString reports the true encoded width, including
		// size 1 for each invalid byte.
		r, size := utf8.DecodeRuneInString(content[end:])
		if end+size > limits.MaxBytes {
			break
		}
		if r == '\n' && lines >= limits.MaxLines {
			break
		}
		end += size
		if r == '\n' {
			lines++
		}
	}
	stats.Truncated = end < len(content)
	return content[:end], stats
}

func countLines(content string) int {
	if content == "" {
		return 0
	}
	return strings.Count(content, "\n") + 1
}
