package ports

import "context"

// Outcome is the human/IDE decision resolving an awaiting-approval call.
type Outcome string

const (
	OutcomeCancel               Outcome = "cancel"
	OutcomeProceedOnce          Outcome = "proceed_once"
	OutcomeProceedAlways        Outcome = "proceed_always"
	OutcomeProceedAlwaysAndSave Outcome = "proceed_always_and_save"
	OutcomeProceedAlwaysTool    Outcome = "proceed_always_tool"
	OutcomeProceedAlwaysServer  Outcome = "proceed_always_server"
	OutcomeModifyWithEditor     Outcome = "modify_with_editor"
)

// IsProceedAlways reports whether the outcome grants approval beyond this
// single call.
func (o Outcome) IsProceedAlways() bool {
	switch o {
	case OutcomeProceedAlways, OutcomeProceedAlwaysAndSave,
		OutcomeProceedAlwaysTool, OutcomeProceedAlwaysServer:
		return true
	}
	return false
}

// ApprovalScope is the breadth of a derived auto-approval rule for exec tools.
type ApprovalScope string

const (
	ScopeExact        ApprovalScope = "exact"
	ScopeCommandFlags ApprovalScope = "command-flags"
	ScopeCommandOnly  ApprovalScope = "command-only"
	ScopeCustom       ApprovalScope = "custom"
)

// ConfirmationDetails describes a pending confirmation for the embedding UI.
type ConfirmationDetails struct {
	Type       ToolKind `json:"type"`
	ToolName   string   `json:"tool_name"`
	Summary    string   `json:"summary"`
	Command    string   `json:"command,omitempty"`
	ServerName string   `json:"server_name,omitempty"`

	// Edit confirmations carry the proposed change and a rendered diff.
	FilePath   string `json:"file_path,omitempty"`
	OldContent string `json:"old_content,omitempty"`
	NewContent string `json:"new_content,omitempty"`
	Diff       string `json:"diff,omitempty"`

	// OnConfirm resolves the confirmation. Wired by the scheduler before the
	// details are surfaced; safe to call from any goroutine.
	OnConfirm func(outcome Outcome, payload *ConfirmationPayload) error `json:"-"`
}

// ConfirmationPayload carries optional data alongside an outcome.
type ConfirmationPayload struct {
	// Scope selects the breadth of a derived always-allow rule.
	Scope ApprovalScope `json:"scope,omitempty"`

	// SubcommandScopes overrides Scope per sub-command of a compound command.
	SubcommandScopes map[string]ApprovalScope `json:"subcommand_scopes,omitempty"`

	// Pattern is the user-supplied pattern for ScopeCustom.
	Pattern string `json:"pattern,omitempty"`

	// NewContent requests an inline modification of an edit invocation; the
	// call re-enters awaiting approval with a refreshed diff.
	NewContent string `json:"new_content,omitempty"`
}

// HookNotifier is notified before a confirmation is shown. Best effort; a
// failing hook never blocks the confirmation.
type HookNotifier interface {
	Notify(ctx context.Context, details *ConfirmationDetails) error
}

// EditorLauncher runs the editor-modification sub-flow for an edit
// confirmation and returns the edited content.
type EditorLauncher interface {
	Modify(ctx context.Context, details *ConfirmationDetails) (newContent string, err error)
}

// DiffResolver mirrors an edit confirmation into an IDE-side diff view. The
// returned channel delivers true when the IDE accepts the change and false
// when it rejects it.
type DiffResolver interface {
	OpenDiff(ctx context.Context, details *ConfirmationDetails) (<-chan bool, error)
}
