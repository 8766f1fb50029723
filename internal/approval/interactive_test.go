package approval

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"ward/internal/ports"
)

type captured struct {
	outcome ports.Outcome
	payload *ports.ConfirmationPayload
}

func promptDetails(input string, details *ports.ConfirmationDetails) (captured, string, error) {
	var got captured
	details.OnConfirm = func(outcome ports.Outcome, payload *ports.ConfirmationPayload) error {
		got = captured{outcome: outcome, payload: payload}
		return nil
	}

	var out bytes.Buffer
	p := NewPrompterIO(strings.NewReader(input), &out, false, nil)
	err := p.Resolve(context.Background(), details)
	return got, out.String(), err
}

func TestPrompterProceedOnce(t *testing.T) {
	got, out, err := promptDetails("y\n", &ports.ConfirmationDetails{
		Type:     ports.KindExec,
		ToolName: "shell",
		Command:  "git status",
	})
	require.NoError(t, err)
	require.Equal(t, ports.OutcomeProceedOnce, got.outcome)
	require.Nil(t, got.payload)
	require.Contains(t, out, "git status")
}

func TestPrompterCancelOnEmptyInput(t *testing.T) {
	got, _, err := promptDetails("\n", &ports.ConfirmationDetails{Type: ports.KindExec, ToolName: "shell"})
	require.NoError(t, err)
	require.Equal(t, ports.OutcomeCancel, got.outcome)
}

func TestPrompterAlwaysAsksScopeForCommands(t *testing.T) {
	got, out, err := promptDetails("a\n3\n", &ports.ConfirmationDetails{
		Type:     ports.KindExec,
		ToolName: "shell",
		Command:  "git push origin main",
	})
	require.NoError(t, err)
	require.Equal(t, ports.OutcomeProceedAlways, got.outcome)
	require.NotNil(t, got.payload)
	require.Equal(t, ports.ScopeCommandOnly, got.payload.Scope)
	require.Contains(t, out, "Any git command")
}

func TestPrompterSaveOutcome(t *testing.T) {
	got, _, err := promptDetails("s\n1\n", &ports.ConfirmationDetails{
		Type:     ports.KindExec,
		ToolName: "shell",
		Command:  "go test ./...",
	})
	require.NoError(t, err)
	require.Equal(t, ports.OutcomeProceedAlwaysAndSave, got.outcome)
	require.Equal(t, ports.ScopeExact, got.payload.Scope)
}

func TestPrompterAlwaysWithoutCommandSkipsScope(t *testing.T) {
	got, _, err := promptDetails("a\n", &ports.ConfirmationDetails{
		Type:     ports.KindInfo,
		ToolName: "echo",
	})
	require.NoError(t, err)
	require.Equal(t, ports.OutcomeProceedAlways, got.outcome)
	require.Nil(t, got.payload)
}

func TestPrompterEditorOnlyForEdits(t *testing.T) {
	// "e" is invalid for an exec confirmation and falls through to retry.
	got, _, err := promptDetails("e\nn\n", &ports.ConfirmationDetails{
		Type:     ports.KindExec,
		ToolName: "shell",
		Command:  "ls",
	})
	require.NoError(t, err)
	require.Equal(t, ports.OutcomeCancel, got.outcome)

	got, _, err = promptDetails("e\n", &ports.ConfirmationDetails{
		Type:     ports.KindEdit,
		ToolName: "file_write",
	})
	require.NoError(t, err)
	require.Equal(t, ports.OutcomeModifyWithEditor, got.outcome)
}

func TestPrompterServerChoicesOnlyForServerTools(t *testing.T) {
	got, _, err := promptDetails("v\nn\n", &ports.ConfirmationDetails{
		Type:     ports.KindExec,
		ToolName: "shell",
		Command:  "ls",
	})
	require.NoError(t, err)
	require.Equal(t, ports.OutcomeCancel, got.outcome)

	got, _, err = promptDetails("v\n", &ports.ConfirmationDetails{
		Type:       ports.KindMCP,
		ToolName:   "mcp__github__search",
		ServerName: "github",
	})
	require.NoError(t, err)
	require.Equal(t, ports.OutcomeProceedAlwaysServer, got.outcome)
}

func TestPrompterInvalidInputRetries(t *testing.T) {
	got, out, err := promptDetails("zzz\ny\n", &ports.ConfirmationDetails{
		Type:     ports.KindExec,
		ToolName: "shell",
	})
	require.NoError(t, err)
	require.Equal(t, ports.OutcomeProceedOnce, got.outcome)
	require.Contains(t, out, "Invalid choice")
}

func TestPrompterRequiresCallback(t *testing.T) {
	p := NewPrompterIO(strings.NewReader("y\n"), &bytes.Buffer{}, false, nil)
	err := p.Resolve(context.Background(), &ports.ConfirmationDetails{ToolName: "shell"})
	require.Error(t, err)
}

func TestAutoApproverUsesConfiguredOutcome(t *testing.T) {
	var got ports.Outcome
	details := &ports.ConfirmationDetails{
		ToolName: "shell",
		OnConfirm: func(outcome ports.Outcome, _ *ports.ConfirmationPayload) error {
			got = outcome
			return nil
		},
	}

	a := &AutoApprover{}
	require.NoError(t, a.Resolve(context.Background(), details))
	require.Equal(t, ports.OutcomeProceedOnce, got)

	a.Outcome = ports.OutcomeProceedAlways
	require.NoError(t, a.Resolve(context.Background(), details))
	require.Equal(t, ports.OutcomeProceedAlways, got)
}
