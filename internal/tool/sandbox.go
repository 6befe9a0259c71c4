package tool

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Sandbox confines every path-touching operation to one root directory.
// The root is canonicalized once at construction and shared read-only
// across concurrent invocations.
type Sandbox struct {
	root string
}

// NewSandbox validates and canonicalizes the root directory.
func NewSandbox(root string) (*Sandbox, error) {
	if strings.TrimSpace(root) == "" {
		return nil, NewPermissionDenied("sandbox root is empty", "invalid_sandbox_root", nil)
	}
	if !filepath.IsAbs(root) {
		return nil, NewPermissionDenied(
			fmt.Sprintf("sandbox root must be an absolute path: %s", root),
			"invalid_sandbox_root",
			map[string]any{"root": root},
		)
	}
	canonical, err := canonicalize(filepath.Clean(root))
	if err != nil {
		return nil, NewPermissionDenied(
			fmt.Sprintf("cannot resolve sandbox root: %v", err),
			"invalid_sandbox_root",
			map[string]any{"root": root},
		)
	}
	return &Sandbox{root: canonical}, nil
}

// Root returns the canonical sandbox root.
func (s *Sandbox) Root() string { return s.root }

// Resolve validates target against the sandbox and returns its absolute
// path. The target (or its parents) need not exist yet. Any rejection is a
// PermissionDenied carrying the attempted path, the root, and a reason tag.
func (s *Sandbox) Resolve(target string) (string, error) {
	if strings.TrimSpace(target) == "" {
		return "", s.denied("path is empty", "empty_path", target)
	}

	candidate := target
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(s.root, candidate)
	}
	candidate = filepath.Clean(candidate)

	// Syntactic containment before touching the filesystem.
	rel, err := filepath.Rel(s.root, candidate)
	if err != nil || !isSafeRelPath(rel) {
		return "", s.denied(
			fmt.Sprintf("path outside sandbox: %s", target),
			"path_outside_sandbox", target,
		)
	}

	// Canonicalization defeats a symlink that sits inside the sandbox but
	// points outside it.
	resolved, err := canonicalize(candidate)
	if err != nil {
		return "", s.denied(
			fmt.Sprintf("cannot resolve path: %s", target),
			"path_outside_sandbox", target,
		)
	}
	if resolved != s.root && !strings.HasPrefix(resolved, s.root+string(filepath.Separator)) {
		return "", s.denied(
			fmt.Sprintf("resolved path outside sandbox: %s", target),
			"resolved_path_outside_sandbox", target,
		)
	}
	return candidate, nil
}

func (s *Sandbox) denied(message, reason, target string) error {
	return NewPermissionDenied(message, reason, map[string]any{
		"path": target,
		"root": s.root,
	})
}

// isSafeRelPath rejects parent traversal and non-relative forms (drive
// letters, UNC prefixes) that filepath.Rel can produce on other platforms.
func isSafeRelPath(rel string) bool {
	if rel == "." || rel == "" {
		return true
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	if filepath.IsAbs(rel) || strings.HasPrefix(rel, `\\`) {
		return false
	}
	if len(rel) >= 2 && rel[1] == ':' {
		return false
	}
	return true
}

// canonicalize resolves the real (symlink-free) location of path. Because
// the path or its parents may not exist yet, it walks upward until an
// existing ancestor is found, resolves that, and re-appends the suffix.
func canonicalize(path string) (string, error) {
	real, err := filepath.EvalSymlinks(path)
	if err == nil {
		return filepath.Clean(real), nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	dir := filepath.Dir(path)
	for {
		realDir, dirErr := filepath.EvalSymlinks(dir)
		if dirErr == nil {
			suffix := strings.TrimPrefix(path, dir)
			suffix = strings.TrimPrefix(suffix, string(filepath.Separator))
			return filepath.Clean(filepath.Join(realDir, suffix)), nil
		}
		if !errors.Is(dirErr, os.ErrNotExist) {
			return "", fmt.Errorf("failed to resolve parent path: %w", dirErr)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no existing parent for path: %s", path)
		}
		dir = parent
	}
}
