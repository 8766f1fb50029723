package builtin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ward/internal/diff"
	"ward/internal/ports"
)

// EditApprovals reports whether edit confirmations are currently
// auto-accepted session-wide.
type EditApprovals interface {
	AutoAcceptEdits() bool
}

// FileConfig configures the file tools.
type FileConfig struct {
	// Root restricts file operations to this directory when set.
	Root string

	// Approvals lets edit invocations skip confirmation in
	// auto-accept-edits mode. Nil means every edit confirms.
	Approvals EditApprovals
}

func (c FileConfig) resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("missing 'path'")
	}
	if c.Root == "" {
		return path, nil
	}
	abs := filepath.Join(c.Root, path)
	if !strings.HasPrefix(filepath.Clean(abs), filepath.Clean(c.Root)) {
		return "", fmt.Errorf("path %q escapes workspace root", path)
	}
	return abs, nil
}

// FileRead reads a file. Info kind; never confirms.
type FileRead struct {
	cfg FileConfig
}

func NewFileRead(cfg FileConfig) *FileRead { return &FileRead{cfg: cfg} }

func (t *FileRead) Name() string         { return "file_read" }
func (t *FileRead) Description() string  { return "Reads a file and returns its contents." }
func (t *FileRead) Kind() ports.ToolKind { return ports.KindInfo }

func (t *FileRead) Build(args map[string]any) (ports.Invocation, error) {
	path, _ := args["path"].(string)
	resolved, err := t.cfg.resolve(path)
	if err != nil {
		return nil, err
	}
	return &readInvocation{path: resolved, args: args}, nil
}

type readInvocation struct {
	path string
	args map[string]any
}

func (inv *readInvocation) Params() map[string]any { return inv.args }
func (inv *readInvocation) Description() string    { return fmt.Sprintf("Read %s", inv.path) }

func (inv *readInvocation) ShouldConfirm(context.Context) (*ports.ConfirmationDetails, error) {
	return nil, nil
}

func (inv *readInvocation) Execute(ctx context.Context, _ ports.OutputSink) (*ports.InvocationResult, error) {
	data, err := os.ReadFile(inv.path)
	if err != nil {
		return nil, err
	}
	return &ports.InvocationResult{Content: string(data)}, nil
}

// FileWrite writes a whole file, confirming with a diff against the current
// content.
type FileWrite struct {
	cfg FileConfig
}

func NewFileWrite(cfg FileConfig) *FileWrite { return &FileWrite{cfg: cfg} }

func (t *FileWrite) Name() string         { return "file_write" }
func (t *FileWrite) Description() string  { return "Creates or overwrites a file with the given content." }
func (t *FileWrite) Kind() ports.ToolKind { return ports.KindEdit }

func (t *FileWrite) Build(args map[string]any) (ports.Invocation, error) {
	path, _ := args["path"].(string)
	resolved, err := t.cfg.resolve(path)
	if err != nil {
		return nil, err
	}
	content, ok := args["content"].(string)
	if !ok {
		return nil, fmt.Errorf("missing 'content'")
	}
	return &writeInvocation{tool: t, path: resolved, display: path, content: content, args: args}, nil
}

// ModifyArgs folds user-edited content into a fresh argument map.
func (t *FileWrite) ModifyArgs(args map[string]any, newContent string) map[string]any {
	next := make(map[string]any, len(args))
	for k, v := range args {
		next[k] = v
	}
	next["content"] = newContent
	return next
}

type writeInvocation struct {
	tool    *FileWrite
	path    string
	display string
	content string
	args    map[string]any

	confirmedOutcome ports.Outcome
}

func (inv *writeInvocation) Params() map[string]any { return inv.args }
func (inv *writeInvocation) Description() string    { return fmt.Sprintf("Write %s", inv.display) }

func (inv *writeInvocation) ShouldConfirm(context.Context) (*ports.ConfirmationDetails, error) {
	if inv.tool.cfg.Approvals != nil && inv.tool.cfg.Approvals.AutoAcceptEdits() {
		return nil, nil
	}
	old := ""
	if data, err := os.ReadFile(inv.path); err == nil {
		old = string(data)
	}
	rendered := diff.Unified(old, inv.content, inv.display)
	return &ports.ConfirmationDetails{
		Type:       ports.KindEdit,
		ToolName:   inv.tool.Name(),
		Summary:    fmt.Sprintf("Write %s (%s)", inv.display, rendered.Summary()),
		FilePath:   inv.path,
		OldContent: old,
		NewContent: inv.content,
		Diff:       rendered.Unified,
	}, nil
}

// OnConfirm records the resolving outcome before the scheduler acts on it.
func (inv *writeInvocation) OnConfirm(_ context.Context, outcome ports.Outcome, _ *ports.ConfirmationPayload) error {
	inv.confirmedOutcome = outcome
	return nil
}

func (inv *writeInvocation) Execute(ctx context.Context, _ ports.OutputSink) (*ports.InvocationResult, error) {
	if err := os.MkdirAll(filepath.Dir(inv.path), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(inv.path, []byte(inv.content), 0o644); err != nil {
		return nil, err
	}
	return &ports.InvocationResult{
		Content: fmt.Sprintf("Wrote %d bytes to %s", len(inv.content), inv.display),
		Metadata: map[string]any{
			"path":    inv.path,
			"bytes":   len(inv.content),
			"outcome": string(inv.confirmedOutcome),
		},
	}, nil
}

// FileEdit replaces one occurrence of old_string with new_string, confirming
// with a diff of the resulting file.
type FileEdit struct {
	cfg FileConfig
}

func NewFileEdit(cfg FileConfig) *FileEdit { return &FileEdit{cfg: cfg} }

func (t *FileEdit) Name() string         { return "file_edit" }
func (t *FileEdit) Description() string  { return "Replaces an exact string in a file." }
func (t *FileEdit) Kind() ports.ToolKind { return ports.KindEdit }

func (t *FileEdit) Build(args map[string]any) (ports.Invocation, error) {
	path, _ := args["path"].(string)
	resolved, err := t.cfg.resolve(path)
	if err != nil {
		return nil, err
	}
	oldString, ok := args["old_string"].(string)
	if !ok || oldString == "" {
		return nil, fmt.Errorf("missing 'old_string'")
	}
	newString, ok := args["new_string"].(string)
	if !ok {
		return nil, fmt.Errorf("missing 'new_string'")
	}
	return &editInvocation{
		tool:      t,
		path:      resolved,
		display:   path,
		oldString: oldString,
		newString: newString,
		args:      args,
	}, nil
}

// ModifyArgs folds an edited replacement string into a fresh argument map.
func (t *FileEdit) ModifyArgs(args map[string]any, newContent string) map[string]any {
	next := make(map[string]any, len(args))
	for k, v := range args {
		next[k] = v
	}
	next["new_string"] = newContent
	return next
}

type editInvocation struct {
	tool      *FileEdit
	path      string
	display   string
	oldString string
	newString string
	args      map[string]any
}

func (inv *editInvocation) Params() map[string]any { return inv.args }
func (inv *editInvocation) Description() string    { return fmt.Sprintf("Edit %s", inv.display) }

func (inv *editInvocation) apply() (old, updated string, err error) {
	data, err := os.ReadFile(inv.path)
	if err != nil {
		return "", "", err
	}
	old = string(data)
	count := strings.Count(old, inv.oldString)
	if count == 0 {
		return "", "", fmt.Errorf("old_string not found in %s", inv.display)
	}
	if count > 1 {
		return "", "", fmt.Errorf("old_string occurs %d times in %s, must be unique", count, inv.display)
	}
	return old, strings.Replace(old, inv.oldString, inv.newString, 1), nil
}

func (inv *editInvocation) ShouldConfirm(context.Context) (*ports.ConfirmationDetails, error) {
	if inv.tool.cfg.Approvals != nil && inv.tool.cfg.Approvals.AutoAcceptEdits() {
		return nil, nil
	}
	old, updated, err := inv.apply()
	if err != nil {
		return nil, err
	}
	rendered := diff.Unified(old, updated, inv.display)
	return &ports.ConfirmationDetails{
		Type:       ports.KindEdit,
		ToolName:   inv.tool.Name(),
		Summary:    fmt.Sprintf("Edit %s (%s)", inv.display, rendered.Summary()),
		FilePath:   inv.path,
		OldContent: old,
		NewContent: updated,
		Diff:       rendered.Unified,
	}, nil
}

func (inv *editInvocation) Execute(ctx context.Context, _ ports.OutputSink) (*ports.InvocationResult, error) {
	_, updated, err := inv.apply()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(inv.path, []byte(updated), 0o644); err != nil {
		return nil, err
	}
	return &ports.InvocationResult{
		Content: fmt.Sprintf("Edited %s", inv.display),
		Metadata: map[string]any{
			"path": inv.path,
		},
	}, nil
}
