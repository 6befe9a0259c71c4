package tool

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestGlob_FindsByPattern(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a.go", "b.go", "c.txt"} {
		if err := os.WriteFile(filepath.Join(root, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	globTool := NewGlob(mustSandbox(t, root), 5*time.Second, Limits{MaxLines: 100, MaxBytes: 4096})

	raw, _ := json.Marshal(GlobInput{Path: ".", Pattern: "*.go"})
	out, err := globTool.Execute(context.Background(), raw)
	if err != nil {
		t.Fatalf("exec err: %v", err)
	}
	if !strings.Contains(out.Text, "a.go") || !strings.Contains(out.Text, "b.go") {
		t.Fatalf("unexpected output: %q", out.Text)
	}
	if strings.Contains(out.Text, "c.txt") {
		t.Fatalf("pattern leaked: %q", out.Text)
	}
}

func TestGlob_DefaultPatternListsAll(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "only.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	globTool := NewGlob(mustSandbox(t, root), 5*time.Second, Limits{})

	raw, _ := json.Marshal(GlobInput{Path: "."})
	out, err := globTool.Execute(context.Background(), raw)
	if err != nil {
		t.Fatalf("exec err: %v", err)
	}
	if !strings.Contains(out.Text, "only.txt") {
		t.Fatalf("unexpected output: %q", out.Text)
	}
}

func TestGlob_OutsideSandbox(t *testing.T) {
	globTool := NewGlob(mustSandbox(t, t.TempDir()), 5*time.Second, Limits{})

	raw, _ := json.Marshal(GlobInput{Path: "/etc", Pattern: "*"})
	if _, err := globTool.Execute(context.Background(), raw); err == nil {
		t.Fatal("expected sandbox rejection")
	}
}
