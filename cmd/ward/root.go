package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"ward/internal/config"
	"ward/internal/ports"
	"ward/internal/sched"
)

var version = "dev"

type cliFlags struct {
	configPath     string
	workspace      string
	nonInteractive bool
	noColor        bool
}

func newRootCommand() *cobra.Command {
	flags := &cliFlags{}

	rootCmd := &cobra.Command{
		Use:   "ward",
		Short: "Policy-gated tool call scheduler",
		Long: "ward schedules batches of tool calls through policy checks and\n" +
			"interactive confirmations before running them, one at a time.",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file (default ./ward.yaml or ~/.ward/ward.yaml)")
	rootCmd.PersistentFlags().StringVarP(&flags.workspace, "workspace", "w", "", "Workspace root for file tools")
	rootCmd.PersistentFlags().BoolVar(&flags.nonInteractive, "non-interactive", false, "Fail instead of prompting for confirmations")
	rootCmd.PersistentFlags().BoolVar(&flags.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(newRunCommand(flags))
	rootCmd.AddCommand(newBatchCommand(flags))
	rootCmd.AddCommand(newToolsCommand(flags))
	rootCmd.AddCommand(newRulesCommand(flags))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

func (f *cliFlags) build() (*Container, error) {
	return buildContainer(f.configPath, func(cfg *config.Settings) {
		if f.workspace != "" {
			cfg.Workspace = f.workspace
		}
		if f.nonInteractive {
			cfg.Interactive = false
		}
		if f.noColor {
			cfg.Color = false
		}
	})
}

// newRunCommand schedules a single shell command.
func newRunCommand(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run <command...>",
		Short: "Run one shell command through the scheduler",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := flags.build()
			if err != nil {
				return err
			}
			defer container.Cleanup()

			rawArgs, _ := json.Marshal(map[string]string{
				"command": strings.Join(args, " "),
			})
			request := ports.ToolCallRequest{
				CallID:   uuid.NewString(),
				ToolName: "shell",
				Args:     rawArgs,
			}
			return runBatch(cmd, container, []ports.ToolCallRequest{request})
		},
	}
}

// newBatchCommand schedules a batch of tool calls from a JSON file.
func newBatchCommand(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "batch <file.json>",
		Short: "Run a batch of tool calls from a JSON file",
		Long: "The file holds an array of tool calls:\n" +
			`  [{"call_id": "1", "tool_name": "shell", "args": {"command": "ls"}}]`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read batch file: %w", err)
			}
			var requests []ports.ToolCallRequest
			if err := json.Unmarshal(data, &requests); err != nil {
				return fmt.Errorf("invalid batch file: %w", err)
			}
			for i := range requests {
				if requests[i].CallID == "" {
					requests[i].CallID = uuid.NewString()
				}
			}

			container, err := flags.build()
			if err != nil {
				return err
			}
			defer container.Cleanup()

			return runBatch(cmd, container, requests)
		},
	}
}

func runBatch(cmd *cobra.Command, container *Container, requests []ports.ToolCallRequest) error {
	result := <-container.Scheduler.Schedule(cmd.Context(), requests)
	if result.Err != nil {
		return result.Err
	}

	failed := false
	for _, rec := range result.Records {
		printRecord(cmd, rec)
		if rec.Status() == sched.StatusError {
			failed = true
		}
	}
	if failed {
		return fmt.Errorf("batch finished with errors")
	}
	return nil
}

func printRecord(cmd *cobra.Command, rec sched.Record) {
	switch r := rec.(type) {
	case sched.Success:
		fmt.Fprintf(cmd.OutOrStdout(), "[ok] %s\n", rec.Request().ToolName)
		if r.Response.Content != "" {
			fmt.Fprintln(cmd.OutOrStdout(), r.Response.Content)
		}
	case sched.Errored:
		fmt.Fprintf(cmd.ErrOrStderr(), "[%s] %s: %s\n", r.Response.ErrorType, rec.Request().ToolName, r.Response.Message)
	case sched.Cancelled:
		fmt.Fprintf(cmd.ErrOrStderr(), "[cancelled] %s: %s\n", rec.Request().ToolName, r.Reason)
	}
}

func newToolsCommand(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List registered tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := flags.build()
			if err != nil {
				return err
			}
			defer container.Cleanup()

			names := container.Catalog.AllToolNames()
			sort.Strings(names)
			for _, name := range names {
				tool, err := container.Catalog.GetTool(name)
				if err != nil {
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %-6s %s\n", tool.Name(), tool.Kind(), tool.Description())
			}
			return nil
		},
	}
}

func newRulesCommand(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List active policy rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := flags.build()
			if err != nil {
				return err
			}
			defer container.Cleanup()

			rules := container.Engine.Rules()
			if len(rules) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no rules")
				return nil
			}
			for _, rule := range rules {
				scope := "session"
				if rule.Persisted {
					scope = "saved"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-6s %-8s tool=%s pattern=%q\n", rule.Verdict, scope, rule.ToolName, rule.Pattern)
			}
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ward %s\n", version)
		},
	}
}
