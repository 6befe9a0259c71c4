package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load err: %v", err)
	}
	if cfg.SandboxRoot != "/workspace" {
		t.Fatalf("unexpected root: %s", cfg.SandboxRoot)
	}
	if cfg.MaxOutputLines != 2000 || cfg.MaxOutputBytes != 51200 {
		t.Fatalf("unexpected caps: %+v", cfg)
	}
	if cfg.ToolTimeoutSeconds != 30 {
		t.Fatalf("unexpected timeout: %d", cfg.ToolTimeoutSeconds)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("TOOLHOST_SANDBOX_ROOT", "/elsewhere")
	t.Setenv("TOOLHOST_MAX_OUTPUT_LINES", "10")
	t.Setenv("TOOLHOST_MAX_OUTPUT_BYTES", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load err: %v", err)
	}
	if cfg.SandboxRoot != "/elsewhere" {
		t.Fatalf("unexpected root: %s", cfg.SandboxRoot)
	}
	if cfg.MaxOutputLines != 10 {
		t.Fatalf("unexpected lines: %d", cfg.MaxOutputLines)
	}
	if cfg.MaxOutputBytes != 51200 {
		t.Fatalf("invalid int must fall back: %d", cfg.MaxOutputBytes)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "toolhost.yaml")
	content := "sandbox_root: /from-yaml\ntool_timeout_seconds: 7\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TOOLHOST_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load err: %v", err)
	}
	if cfg.SandboxRoot != "/from-yaml" {
		t.Fatalf("unexpected root: %s", cfg.SandboxRoot)
	}
	if cfg.ToolTimeoutSeconds != 7 {
		t.Fatalf("unexpected timeout: %d", cfg.ToolTimeoutSeconds)
	}
}

func TestLoad_EnvBeatsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "toolhost.yaml")
	if err := os.WriteFile(path, []byte("sandbox_root: /from-yaml\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TOOLHOST_CONFIG", path)
	t.Setenv("TOOLHOST_SANDBOX_ROOT", "/from-env")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load err: %v", err)
	}
	if cfg.SandboxRoot != "/from-env" {
		t.Fatalf("unexpected root: %s", cfg.SandboxRoot)
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	t.Setenv("TOOLHOST_CONFIG", "/nonexistent/toolhost.yaml")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
