// Package approval renders confirmation requests on the terminal and turns
// keyboard input into confirmation outcomes.
package approval

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"ward/internal/diff"
	"ward/internal/logging"
	"ward/internal/ports"
	"ward/internal/shellcmd"
)

// Prompter surfaces confirmations interactively on a terminal. It reads one
// choice per confirmation and resolves it through the details' OnConfirm.
type Prompter struct {
	in           io.Reader
	out          io.Writer
	colorEnabled bool
	logger       logging.Logger
}

// NewPrompter creates a terminal prompter on stdin/stdout.
func NewPrompter(colorEnabled bool, logger logging.Logger) *Prompter {
	return &Prompter{
		in:           os.Stdin,
		out:          os.Stdout,
		colorEnabled: colorEnabled,
		logger:       logging.OrNop(logger),
	}
}

// NewPrompterIO creates a prompter over explicit streams.
func NewPrompterIO(in io.Reader, out io.Writer, colorEnabled bool, logger logging.Logger) *Prompter {
	return &Prompter{in: in, out: out, colorEnabled: colorEnabled, logger: logging.OrNop(logger)}
}

// Resolve displays one confirmation and feeds the user's decision back
// through details.OnConfirm. Returns once the decision was delivered.
func (p *Prompter) Resolve(ctx context.Context, details *ports.ConfirmationDetails) error {
	if details.OnConfirm == nil {
		return fmt.Errorf("confirmation for %s has no resolution callback", details.ToolName)
	}

	p.display(details)

	outcomeChan := make(chan resolvedChoice, 1)
	errChan := make(chan error, 1)
	go func() {
		choice, err := p.readChoice(details)
		if err != nil {
			errChan <- err
			return
		}
		outcomeChan <- choice
	}()

	select {
	case choice := <-outcomeChan:
		return details.OnConfirm(choice.outcome, choice.payload)
	case err := <-errChan:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type resolvedChoice struct {
	outcome ports.Outcome
	payload *ports.ConfirmationPayload
}

func (p *Prompter) display(details *ports.ConfirmationDetails) {
	separator := strings.Repeat("=", 80)

	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, p.colorize(separator, color.FgCyan))
	fmt.Fprintln(p.out, p.colorize(fmt.Sprintf("Tool: %s", details.ToolName), color.FgYellow, color.Bold))
	if details.Summary != "" {
		fmt.Fprintln(p.out, p.colorize(details.Summary, color.FgWhite))
	}
	if details.Command != "" {
		fmt.Fprintln(p.out, p.colorize(fmt.Sprintf("Command: %s", details.Command), color.FgWhite))
	}
	if details.ServerName != "" {
		fmt.Fprintln(p.out, p.colorize(fmt.Sprintf("Server: %s", details.ServerName), color.FgWhite))
	}
	if details.FilePath != "" {
		fmt.Fprintln(p.out, p.colorize(fmt.Sprintf("File: %s", details.FilePath), color.FgWhite))
	}
	fmt.Fprintln(p.out, p.colorize(separator, color.FgCyan))

	if details.Diff != "" {
		fmt.Fprintln(p.out)
		fmt.Fprintln(p.out, p.colorize("Changes:", color.FgCyan))
		fmt.Fprintln(p.out, diff.Colorize(details.Diff, p.colorEnabled))
	}
}

func (p *Prompter) readChoice(details *ports.ConfirmationDetails) (resolvedChoice, error) {
	reader := bufio.NewReader(p.in)

	for {
		fmt.Fprintln(p.out)
		fmt.Fprintln(p.out, p.colorize("Allow this tool call?", color.FgYellow, color.Bold))
		fmt.Fprintln(p.out, "  [y] Yes, once")
		fmt.Fprintln(p.out, "  [a] Yes, always for this session")
		fmt.Fprintln(p.out, "  [s] Yes, always and remember across sessions")
		if details.ServerName != "" {
			fmt.Fprintln(p.out, "  [t] Yes, always for this tool")
			fmt.Fprintln(p.out, "  [v] Yes, always for every tool on this server")
		}
		if details.Type == ports.KindEdit {
			fmt.Fprintln(p.out, "  [e] Modify in editor first")
		}
		fmt.Fprintln(p.out, "  [n] No, cancel")
		fmt.Fprint(p.out, p.colorize("Choice: ", color.FgCyan))

		input, err := reader.ReadString('\n')
		if err != nil {
			return resolvedChoice{}, fmt.Errorf("failed to read input: %w", err)
		}
		input = strings.TrimSpace(strings.ToLower(input))

		switch input {
		case "y", "yes":
			return resolvedChoice{outcome: ports.OutcomeProceedOnce}, nil
		case "a", "always":
			return p.withScope(reader, details, ports.OutcomeProceedAlways)
		case "s", "save":
			return p.withScope(reader, details, ports.OutcomeProceedAlwaysAndSave)
		case "t":
			if details.ServerName != "" {
				return resolvedChoice{outcome: ports.OutcomeProceedAlwaysTool}, nil
			}
		case "v":
			if details.ServerName != "" {
				return resolvedChoice{outcome: ports.OutcomeProceedAlwaysServer}, nil
			}
		case "e", "edit":
			if details.Type == ports.KindEdit {
				return resolvedChoice{outcome: ports.OutcomeModifyWithEditor}, nil
			}
		case "n", "no", "":
			return resolvedChoice{outcome: ports.OutcomeCancel}, nil
		}

		fmt.Fprintln(p.out, p.colorize("Invalid choice.", color.FgRed))
	}
}

// withScope asks how broadly an always-approval should apply to a shell
// command. Non-command confirmations skip the question.
func (p *Prompter) withScope(reader *bufio.Reader, details *ports.ConfirmationDetails, outcome ports.Outcome) (resolvedChoice, error) {
	if details.Command == "" {
		return resolvedChoice{outcome: outcome}, nil
	}

	binary := shellcmd.Binary(details.Command)

	for {
		fmt.Fprintln(p.out)
		fmt.Fprintln(p.out, p.colorize("Remember approval for:", color.FgYellow))
		fmt.Fprintf(p.out, "  [1] This exact command\n")
		fmt.Fprintf(p.out, "  [2] %s with these flags\n", binary)
		fmt.Fprintf(p.out, "  [3] Any %s command\n", binary)
		fmt.Fprint(p.out, p.colorize("Scope: ", color.FgCyan))

		input, err := reader.ReadString('\n')
		if err != nil {
			return resolvedChoice{}, fmt.Errorf("failed to read input: %w", err)
		}

		switch strings.TrimSpace(input) {
		case "1", "":
			return resolvedChoice{outcome: outcome, payload: &ports.ConfirmationPayload{Scope: ports.ScopeExact}}, nil
		case "2":
			return resolvedChoice{outcome: outcome, payload: &ports.ConfirmationPayload{Scope: ports.ScopeCommandFlags}}, nil
		case "3":
			return resolvedChoice{outcome: outcome, payload: &ports.ConfirmationPayload{Scope: ports.ScopeCommandOnly}}, nil
		}

		fmt.Fprintln(p.out, p.colorize("Invalid choice.", color.FgRed))
	}
}

func (p *Prompter) colorize(text string, attributes ...color.Attribute) string {
	if !p.colorEnabled {
		return text
	}
	return color.New(attributes...).Sprint(text)
}

// AutoApprover resolves every confirmation with a fixed outcome. Used in
// non-interactive runs that were explicitly configured to proceed.
type AutoApprover struct {
	Outcome ports.Outcome
}

// Resolve applies the fixed outcome.
func (a *AutoApprover) Resolve(_ context.Context, details *ports.ConfirmationDetails) error {
	if details.OnConfirm == nil {
		return fmt.Errorf("confirmation for %s has no resolution callback", details.ToolName)
	}
	outcome := a.Outcome
	if outcome == "" {
		outcome = ports.OutcomeProceedOnce
	}
	return details.OnConfirm(outcome, nil)
}
