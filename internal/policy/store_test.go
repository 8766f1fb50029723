package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"ward/internal/ports"
)

func TestRuleStoreMissingFileIsEmpty(t *testing.T) {
	store := NewRuleStore(filepath.Join(t.TempDir(), "rules.yaml"))
	rules, err := store.Load()
	require.NoError(t, err)
	require.Empty(t, rules)
}

func TestRuleStoreAppendAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	store := NewRuleStore(path)

	require.NoError(t, store.Append([]ports.PolicyRule{
		{ToolName: "shell", Pattern: "git status", Verdict: ports.VerdictAllow, Persisted: true},
	}))
	require.NoError(t, store.Append([]ports.PolicyRule{
		{ToolName: "shell", Pattern: "go test", Verdict: ports.VerdictAllow, Persisted: true},
	}))

	rules, err := store.Load()
	require.NoError(t, err)
	require.Len(t, rules, 2)
	require.Equal(t, "git status", rules[0].Pattern)
	require.Equal(t, "go test", rules[1].Pattern)
}

func TestRuleStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml"), 0o644))

	store := NewRuleStore(path)
	_, err := store.Load()
	require.Error(t, err)
}

func TestSessionModeAutoAcceptEdits(t *testing.T) {
	mode := NewSessionMode()
	require.False(t, mode.AutoAcceptEdits())
	mode.SetAutoAcceptEdits(true)
	require.True(t, mode.AutoAcceptEdits())
}
