package approval

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"ward/internal/ports"
)

const defaultEditor = "vi"

// TerminalEditor launches $EDITOR on the proposed content and returns what
// the user saved.
type TerminalEditor struct {
	// Editor overrides the $EDITOR lookup when set.
	Editor string
}

// Modify writes the proposed content to a temp file, opens it in the editor
// and returns the edited content.
func (e *TerminalEditor) Modify(ctx context.Context, details *ports.ConfirmationDetails) (string, error) {
	editor := e.Editor
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = defaultEditor
	}

	tmp, err := os.CreateTemp("", "ward-edit-*"+filepath.Ext(details.FilePath))
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	path := tmp.Name()
	defer os.Remove(path)

	if _, err := tmp.WriteString(details.NewContent); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	cmd := exec.CommandContext(ctx, editor, path)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("editor exited with error: %w", err)
	}

	edited, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read edited file: %w", err)
	}
	return string(edited), nil
}
