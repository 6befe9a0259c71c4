package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds toolhost settings. Resolution order: built-in defaults,
// then the optional YAML file named by TOOLHOST_CONFIG, then environment
// variables.
type Config struct {
	SandboxRoot            string `yaml:"sandbox_root"`
	ToolTimeoutSeconds     int    `yaml:"tool_timeout_seconds"`
	MaxOutputLines         int    `yaml:"max_output_lines"`
	MaxOutputBytes         int    `yaml:"max_output_bytes"`
	DBPath                 string `yaml:"db_path"`
	LogLevel               string `yaml:"log_level"`
	BreakerThreshold       int    `yaml:"breaker_threshold"`
	BreakerCooldownSeconds int    `yaml:"breaker_cooldown_seconds"`
}

// Load reads toolhost configuration.
func Load() (Config, error) {
	cfg := Config{
		SandboxRoot:            "/workspace",
		ToolTimeoutSeconds:     30,
		MaxOutputLines:         2000,
		MaxOutputBytes:         51200,
		DBPath:                 "/state/toolhost.db",
		LogLevel:               "info",
		BreakerThreshold:       5,
		BreakerCooldownSeconds: 30,
	}

	if path := os.Getenv("TOOLHOST_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.SandboxRoot = envOrDefault("TOOLHOST_SANDBOX_ROOT", cfg.SandboxRoot)
	cfg.ToolTimeoutSeconds = envIntOrDefault("TOOLHOST_TOOL_TIMEOUT_SECONDS", cfg.ToolTimeoutSeconds)
	cfg.MaxOutputLines = envIntOrDefault("TOOLHOST_MAX_OUTPUT_LINES", cfg.MaxOutputLines)
	cfg.MaxOutputBytes = envIntOrDefault("TOOLHOST_MAX_OUTPUT_BYTES", cfg.MaxOutputBytes)
	cfg.DBPath = envOrDefault("TOOLHOST_DB_PATH", cfg.DBPath)
	cfg.LogLevel = envOrDefault("TOOLHOST_LOG_LEVEL", cfg.LogLevel)
	cfg.BreakerThreshold = envIntOrDefault("TOOLHOST_BREAKER_THRESHOLD", cfg.BreakerThreshold)
	cfg.BreakerCooldownSeconds = envIntOrDefault("TOOLHOST_BREAKER_COOLDOWN_SECONDS", cfg.BreakerCooldownSeconds)

	if strings.TrimSpace(cfg.SandboxRoot) == "" {
		return Config{}, fmt.Errorf("sandbox root is empty")
	}
	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
