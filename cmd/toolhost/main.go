package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/stupiduntilnot/toolhost/internal/config"
	"github.com/stupiduntilnot/toolhost/internal/control"
	"github.com/stupiduntilnot/toolhost/internal/db"
	"github.com/stupiduntilnot/toolhost/internal/tool"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var sandboxRoot string

	root := &cobra.Command{
		Use:           "toolhost",
		Short:         "Sandboxed tool execution for autonomous agents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&sandboxRoot, "root", "", "sandbox root directory (overrides config)")

	root.AddCommand(newRunCmd(&sandboxRoot))
	root.AddCommand(newToolsCmd(&sandboxRoot))
	root.AddCommand(newAuditCmd())
	return root
}

type host struct {
	cfg      config.Config
	executor *tool.Executor
	registry *tool.Registry
}

func setup(rootOverride string) (*host, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if rootOverride != "" {
		cfg.SandboxRoot = rootOverride
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	}

	sandbox, err := tool.NewSandbox(cfg.SandboxRoot)
	if err != nil {
		return nil, err
	}
	registry := tool.NewRegistry()
	limits := tool.Limits{MaxLines: cfg.MaxOutputLines, MaxBytes: cfg.MaxOutputBytes}
	timeout := time.Duration(cfg.ToolTimeoutSeconds) * time.Second
	if err := tool.RegisterBuiltins(registry, sandbox, timeout, limits); err != nil {
		return nil, err
	}

	executor := tool.NewExecutor(registry).WithBreaker(control.NewCircuitBreaker(
		cfg.BreakerThreshold,
		time.Duration(cfg.BreakerCooldownSeconds)*time.Second,
	))

	if cfg.DBPath != "" {
		conn, err := db.OpenDB(cfg.DBPath)
		if err != nil {
			logrus.WithError(err).Warn("audit log disabled")
		} else if err := db.InitSchema(conn); err != nil {
			logrus.WithError(err).Warn("audit log disabled")
			conn.Close()
		} else {
			executor.WithAudit(db.NewAuditLog(conn))
		}
	}

	return &host{cfg: cfg, executor: executor, registry: registry}, nil
}

func newRunCmd(rootOverride *string) *cobra.Command {
	var timeoutMs int64

	cmd := &cobra.Command{
		Use:   "run <tool> [json-arguments]",
		Short: "Run one tool call and print the result as JSON",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := setup(*rootOverride)
			if err != nil {
				return err
			}

			arguments := json.RawMessage(`{}`)
			if len(args) == 2 {
				if !json.Valid([]byte(args[1])) {
					return fmt.Errorf("arguments must be valid JSON: %s", args[1])
				}
				arguments = json.RawMessage(args[1])
			}
			call := tool.Call{
				ID:        uuid.NewString(),
				Name:      args[0],
				Arguments: arguments,
			}

			var res tool.Result
			if timeoutMs > 0 {
				res = h.executor.ExecuteWithTimeout(cmd.Context(), call, time.Duration(timeoutMs)*time.Millisecond)
			} else {
				res = h.executor.Execute(cmd.Context(), call)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return err
			}
			if !res.OK() {
				os.Exit(1)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&timeoutMs, "timeout", 0, "overall call timeout in milliseconds (0 = tool default)")
	return cmd
}

func newToolsCmd(rootOverride *string) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List registered tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := setup(*rootOverride)
			if err != nil {
				return err
			}
			for _, name := range h.registry.List() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newAuditCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent tool invocations from the audit log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			conn, err := db.OpenDB(cfg.DBPath)
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := db.InitSchema(conn); err != nil {
				return err
			}

			entries, err := db.NewAuditLog(conn).Recent(limit)
			if err != nil {
				return err
			}
			for _, e := range entries {
				ts := time.Unix(e.Timestamp, 0).Format(time.RFC3339)
				line := fmt.Sprintf("%s  %-20s %-10s %s", ts, e.EventType, e.Tool, e.CallID)
				if e.Payload.Valid {
					line += "  " + e.Payload.String
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum entries to show")
	return cmd
}
