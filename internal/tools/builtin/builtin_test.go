package builtin

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"ward/internal/ports"
)

type coversAll struct{}

func (coversAll) CoversCommand(string, string) bool { return true }

type coversNone struct{}

func (coversNone) CoversCommand(string, string) bool { return false }

type acceptEdits bool

func (a acceptEdits) AutoAcceptEdits() bool { return bool(a) }

func TestShellBuildRequiresCommand(t *testing.T) {
	shell := NewShell(ShellConfig{})
	_, err := shell.Build(map[string]any{})
	require.Error(t, err)
	_, err = shell.Build(map[string]any{"command": "  "})
	require.Error(t, err)
}

func TestShellConfirmSkippedWhenCovered(t *testing.T) {
	shell := NewShell(ShellConfig{Approvals: coversAll{}})
	inv, err := shell.Build(map[string]any{"command": "git status"})
	require.NoError(t, err)

	details, err := inv.ShouldConfirm(context.Background())
	require.NoError(t, err)
	require.Nil(t, details)
}

func TestShellConfirmDetails(t *testing.T) {
	shell := NewShell(ShellConfig{Approvals: coversNone{}})
	inv, err := shell.Build(map[string]any{"command": "git status"})
	require.NoError(t, err)

	details, err := inv.ShouldConfirm(context.Background())
	require.NoError(t, err)
	require.NotNil(t, details)
	require.Equal(t, ports.KindExec, details.Type)
	require.Equal(t, "git status", details.Command)
}

func TestShellExecuteStreamsOutput(t *testing.T) {
	shell := NewShell(ShellConfig{WorkDir: t.TempDir()})
	inv, err := shell.Build(map[string]any{"command": "printf 'a\\nb\\n'"})
	require.NoError(t, err)

	var streamed strings.Builder
	result, err := inv.Execute(context.Background(), func(chunk string) {
		streamed.WriteString(chunk)
	})
	require.NoError(t, err)
	require.Equal(t, "a\nb", result.Content)
	require.Equal(t, "a\nb\n", streamed.String())
	require.Equal(t, 0, result.Metadata["exit_code"])
}

func TestShellExecuteNonZeroExit(t *testing.T) {
	shell := NewShell(ShellConfig{})
	inv, err := shell.Build(map[string]any{"command": "echo nope && exit 3"})
	require.NoError(t, err)

	result, err := inv.Execute(context.Background(), nil)
	require.NoError(t, err, "non-zero exit is a result, not an error")
	require.Contains(t, result.Content, "exit code 3")
	require.Equal(t, 3, result.Metadata["exit_code"])
}

func TestFileWriteConfirmCarriesDiff(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("old\n"), 0o644))

	write := NewFileWrite(FileConfig{Root: dir})
	inv, err := write.Build(map[string]any{"path": "note.txt", "content": "new\n"})
	require.NoError(t, err)

	details, err := inv.ShouldConfirm(context.Background())
	require.NoError(t, err)
	require.NotNil(t, details)
	require.Equal(t, ports.KindEdit, details.Type)
	require.Equal(t, "old\n", details.OldContent)
	require.Equal(t, "new\n", details.NewContent)
	require.Contains(t, details.Diff, "-old")
	require.Contains(t, details.Diff, "+new")
}

func TestFileWriteAutoAcceptSkipsConfirm(t *testing.T) {
	write := NewFileWrite(FileConfig{Root: t.TempDir(), Approvals: acceptEdits(true)})
	inv, err := write.Build(map[string]any{"path": "note.txt", "content": "x"})
	require.NoError(t, err)

	details, err := inv.ShouldConfirm(context.Background())
	require.NoError(t, err)
	require.Nil(t, details)
}

func TestFileWriteModifyArgsReplacesContent(t *testing.T) {
	write := NewFileWrite(FileConfig{Root: t.TempDir()})
	args := map[string]any{"path": "note.txt", "content": "v1"}
	next := write.ModifyArgs(args, "v2")

	require.Equal(t, "v2", next["content"])
	require.Equal(t, "v1", args["content"], "original args stay untouched")

	inv, err := write.Build(next)
	require.NoError(t, err)
	result, err := inv.Execute(context.Background(), nil)
	require.NoError(t, err)
	require.Contains(t, result.Content, "Wrote 2 bytes")
}

func TestFileWriteRejectsPathEscape(t *testing.T) {
	write := NewFileWrite(FileConfig{Root: t.TempDir()})
	_, err := write.Build(map[string]any{"path": "../outside.txt", "content": "x"})
	require.Error(t, err)
}

func TestFileEditUniqueReplacement(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "code.go")
	require.NoError(t, os.WriteFile(path, []byte("a\nb\na\n"), 0o644))

	edit := NewFileEdit(FileConfig{Root: dir})

	// Ambiguous old_string is rejected at confirm time.
	inv, err := edit.Build(map[string]any{"path": "code.go", "old_string": "a", "new_string": "z"})
	require.NoError(t, err)
	_, err = inv.ShouldConfirm(context.Background())
	require.Error(t, err)

	inv, err = edit.Build(map[string]any{"path": "code.go", "old_string": "b", "new_string": "z"})
	require.NoError(t, err)
	details, err := inv.ShouldConfirm(context.Background())
	require.NoError(t, err)
	require.NotNil(t, details)

	result, err := inv.Execute(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, result)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "a\nz\na\n", string(data))
}

func TestFileReadNeverConfirms(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "r.txt"), []byte("hello"), 0o644))

	read := NewFileRead(FileConfig{Root: dir})
	inv, err := read.Build(map[string]any{"path": "r.txt"})
	require.NoError(t, err)

	details, err := inv.ShouldConfirm(context.Background())
	require.NoError(t, err)
	require.Nil(t, details)

	result, err := inv.Execute(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, "hello", result.Content)
}

func TestEchoAcceptsEitherKey(t *testing.T) {
	echo := NewEcho()

	inv, err := echo.Build(map[string]any{"msg": "hi"})
	require.NoError(t, err)
	result, err := inv.Execute(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, "hi", result.Content)

	inv, err = echo.Build(map[string]any{"message": "yo"})
	require.NoError(t, err)
	result, err = inv.Execute(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, "yo", result.Content)

	_, err = echo.Build(map[string]any{})
	require.Error(t, err)
}
