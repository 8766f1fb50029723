// Package builtin provides the builtin tool set.
package builtin

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"ward/internal/ports"
)

// CommandApprovals answers whether a prior approval already covers a command.
type CommandApprovals interface {
	CoversCommand(toolName, command string) bool
}

// ShellConfig configures the shell tool.
type ShellConfig struct {
	// WorkDir is the working directory for executed commands.
	WorkDir string

	// Approvals lets invocations skip confirmations a broader prior approval
	// already covers. Nil means every command confirms.
	Approvals CommandApprovals
}

// Shell executes shell commands, one confirmation per unapproved command.
type Shell struct {
	cfg ShellConfig
}

// NewShell creates the shell tool.
func NewShell(cfg ShellConfig) *Shell {
	return &Shell{cfg: cfg}
}

func (t *Shell) Name() string { return "shell" }

func (t *Shell) Description() string {
	return "Executes a shell command and returns its combined output."
}

func (t *Shell) Kind() ports.ToolKind { return ports.KindExec }

// Build validates arguments into an invocation.
func (t *Shell) Build(args map[string]any) (ports.Invocation, error) {
	command, _ := args["command"].(string)
	if strings.TrimSpace(command) == "" {
		return nil, fmt.Errorf("missing or empty 'command'")
	}
	description, _ := args["description"].(string)
	return &shellInvocation{
		tool:        t,
		command:     command,
		description: description,
		args:        args,
	}, nil
}

type shellInvocation struct {
	tool        *Shell
	command     string
	description string
	args        map[string]any
}

func (inv *shellInvocation) Params() map[string]any { return inv.args }

func (inv *shellInvocation) Description() string {
	if inv.description != "" {
		return inv.description
	}
	return inv.command
}

// ShouldConfirm asks for confirmation unless a prior approval covers every
// sub-command.
func (inv *shellInvocation) ShouldConfirm(ctx context.Context) (*ports.ConfirmationDetails, error) {
	if inv.tool.cfg.Approvals != nil && inv.tool.cfg.Approvals.CoversCommand(inv.tool.Name(), inv.command) {
		return nil, nil
	}
	return &ports.ConfirmationDetails{
		Type:     ports.KindExec,
		ToolName: inv.tool.Name(),
		Summary:  fmt.Sprintf("Run: %s", inv.command),
		Command:  inv.command,
	}, nil
}

// Execute runs the command with bash -c, streaming combined output.
func (inv *shellInvocation) Execute(ctx context.Context, sink ports.OutputSink) (*ports.InvocationResult, error) {
	cmd := exec.CommandContext(ctx, "bash", "-c", inv.command)
	if inv.tool.cfg.WorkDir != "" {
		cmd.Dir = inv.tool.cfg.WorkDir
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start command: %w", err)
	}

	var (
		output strings.Builder
		mu     sync.Mutex
	)
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		mu.Lock()
		output.WriteString(line)
		output.WriteString("\n")
		mu.Unlock()
		if sink != nil {
			sink(line + "\n")
		}
	}

	runErr := cmd.Wait()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	text := strings.TrimSpace(output.String())
	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, runErr
		}
	}
	if text == "" {
		if exitCode != 0 {
			text = fmt.Sprintf("exit code %d (no output)", exitCode)
		} else {
			text = "command completed with no output"
		}
	} else if exitCode != 0 {
		text = fmt.Sprintf("%s\nexit code %d", text, exitCode)
	}

	return &ports.InvocationResult{
		Content: text,
		Metadata: map[string]any{
			"command":   inv.command,
			"exit_code": exitCode,
		},
	}, nil
}
