package policy

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"ward/internal/ports"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(nil, nil)
	require.NoError(t, err)
	return engine
}

func check(t *testing.T, e *Engine, call ports.CallMetadata) ports.PolicyDecision {
	t.Helper()
	decision, err := e.Check(context.Background(), call)
	require.NoError(t, err)
	return decision
}

func TestEngineUnmatchedCallAsksUser(t *testing.T) {
	e := newTestEngine(t)
	decision := check(t, e, ports.CallMetadata{ToolName: "shell", Command: "ls -la"})
	require.Equal(t, ports.VerdictAskUser, decision.Verdict)
}

func TestEnginePrefixAllow(t *testing.T) {
	e := newTestEngine(t)
	e.AddRule(ports.PolicyRule{ToolName: "shell", Pattern: "git status", Verdict: ports.VerdictAllow})

	require.Equal(t, ports.VerdictAllow,
		check(t, e, ports.CallMetadata{ToolName: "shell", Command: "git status"}).Verdict)
	require.Equal(t, ports.VerdictAllow,
		check(t, e, ports.CallMetadata{ToolName: "shell", Command: "git status --short"}).Verdict)

	// Token boundary: "git statusx" is not "git status".
	require.Equal(t, ports.VerdictAskUser,
		check(t, e, ports.CallMetadata{ToolName: "shell", Command: "git statusx"}).Verdict)
	// Different tool, same command.
	require.Equal(t, ports.VerdictAskUser,
		check(t, e, ports.CallMetadata{ToolName: "sandbox_shell", Command: "git status"}).Verdict)
}

func TestEngineDenyWinsOverAllow(t *testing.T) {
	e := newTestEngine(t)
	e.AddRule(ports.PolicyRule{ToolName: "shell", Pattern: "git", Verdict: ports.VerdictAllow})
	e.AddRule(ports.PolicyRule{ToolName: "shell", Pattern: "git push", Verdict: ports.VerdictDeny, DenyMessage: "no pushes"})

	decision := check(t, e, ports.CallMetadata{ToolName: "shell", Command: "git push origin main"})
	require.Equal(t, ports.VerdictDeny, decision.Verdict)
	require.NotNil(t, decision.Rule)
	require.Equal(t, "no pushes", decision.Rule.DenyMessage)

	require.Equal(t, ports.VerdictAllow,
		check(t, e, ports.CallMetadata{ToolName: "shell", Command: "git fetch"}).Verdict)
}

func TestEngineCompoundCommandNeedsEverySubCommandCovered(t *testing.T) {
	e := newTestEngine(t)
	e.AddRule(ports.PolicyRule{ToolName: "shell", Pattern: "git", Verdict: ports.VerdictAllow})

	// "git log | head" contains a sub-command the rule does not cover.
	require.Equal(t, ports.VerdictAskUser,
		check(t, e, ports.CallMetadata{ToolName: "shell", Command: "git log | head"}).Verdict)

	e.AddRule(ports.PolicyRule{ToolName: "shell", Pattern: "head", Verdict: ports.VerdictAllow})
	require.Equal(t, ports.VerdictAllow,
		check(t, e, ports.CallMetadata{ToolName: "shell", Command: "git log | head"}).Verdict)
}

func TestEnginePathQualifiedBinary(t *testing.T) {
	e := newTestEngine(t)
	e.AddRule(ports.PolicyRule{ToolName: "shell", Pattern: "git", Verdict: ports.VerdictAllow})

	require.Equal(t, ports.VerdictAllow,
		check(t, e, ports.CallMetadata{ToolName: "shell", Command: "/usr/bin/git status"}).Verdict)
}

func TestEngineToolWideRule(t *testing.T) {
	e := newTestEngine(t)
	e.AddRule(ports.PolicyRule{ToolName: "echo", Verdict: ports.VerdictAllow})

	require.Equal(t, ports.VerdictAllow,
		check(t, e, ports.CallMetadata{ToolName: "echo"}).Verdict)
	require.Equal(t, ports.VerdictAskUser,
		check(t, e, ports.CallMetadata{ToolName: "shell"}).Verdict)
}

func TestEngineServerScopedRule(t *testing.T) {
	e := newTestEngine(t)
	e.AddRule(ports.PolicyRule{ServerName: "github", Verdict: ports.VerdictAllow})

	require.Equal(t, ports.VerdictAllow,
		check(t, e, ports.CallMetadata{ToolName: "mcp__github__create_issue", ServerName: "github"}).Verdict)
	require.Equal(t, ports.VerdictAskUser,
		check(t, e, ports.CallMetadata{ToolName: "mcp__jira__create_issue", ServerName: "jira"}).Verdict)
}

func TestEngineApplyUpdateSessionScope(t *testing.T) {
	e := newTestEngine(t)
	e.ApplyUpdate(ports.PolicyUpdate{
		ToolName: "shell",
		Prefixes: []string{"go test", "go vet"},
		Persist:  false,
	})

	require.Equal(t, ports.VerdictAllow,
		check(t, e, ports.CallMetadata{ToolName: "shell", Command: "go test ./..."}).Verdict)
	require.Equal(t, ports.VerdictAllow,
		check(t, e, ports.CallMetadata{ToolName: "shell", Command: "go vet ./..."}).Verdict)
	require.Equal(t, ports.VerdictAskUser,
		check(t, e, ports.CallMetadata{ToolName: "shell", Command: "go build ./..."}).Verdict)
}

func TestEngineApplyUpdatePersistsThroughStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	store := NewRuleStore(path)

	e, err := NewEngine(store, nil)
	require.NoError(t, err)
	e.ApplyUpdate(ports.PolicyUpdate{
		ToolName: "shell",
		Prefixes: []string{"git status"},
		Persist:  true,
	})

	// A fresh engine over the same store sees the rule.
	reloaded, err := NewEngine(store, nil)
	require.NoError(t, err)
	require.Equal(t, ports.VerdictAllow,
		check(t, reloaded, ports.CallMetadata{ToolName: "shell", Command: "git status"}).Verdict)
}

func TestEngineCoversCommand(t *testing.T) {
	e := newTestEngine(t)
	e.AddRule(ports.PolicyRule{ToolName: "shell", Pattern: "git status", Verdict: ports.VerdictAllow})
	e.AddRule(ports.PolicyRule{ToolName: "shell", Pattern: "ls", Verdict: ports.VerdictAllow})

	require.True(t, e.CoversCommand("shell", "git status && ls"))
	require.False(t, e.CoversCommand("shell", "git status && rm -rf /"))
	require.False(t, e.CoversCommand("shell", ""))
}
