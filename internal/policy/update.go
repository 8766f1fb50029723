package policy

import (
	"time"

	"github.com/google/uuid"

	"ward/internal/logging"
	"ward/internal/ports"
	"ward/internal/shellcmd"
)

// ModeController receives session-wide approval mode transitions. Approving
// an edit tool with "always" flips the whole session into auto-accept-edits
// instead of minting a per-tool rule.
type ModeController interface {
	SetAutoAcceptEdits(enabled bool)
}

// Updater derives policy updates from confirmation outcomes and publishes
// them on the message bus. At most one update per confirmation.
type Updater struct {
	bus        ports.MessageBus
	classifier shellcmd.Classifier
	mode       ModeController
	logger     logging.Logger
}

// NewUpdater creates an updater. mode may be nil when the embedding process
// has no session approval mode.
func NewUpdater(b ports.MessageBus, classifier shellcmd.Classifier, mode ModeController, logger logging.Logger) *Updater {
	if classifier == nil {
		classifier = shellcmd.NewClassifier()
	}
	return &Updater{
		bus:        b,
		classifier: classifier,
		mode:       mode,
		logger:     logging.OrNop(logger),
	}
}

// UpdatePolicy publishes zero or one policy update for the outcome.
// Cancel, ProceedOnce and ModifyWithEditor are policy no-ops.
func (u *Updater) UpdatePolicy(tool ports.Tool, outcome ports.Outcome, details *ports.ConfirmationDetails, payload *ports.ConfirmationPayload) {
	if !outcome.IsProceedAlways() {
		return
	}

	// Edit tools flip the session mode; no per-tool rule is minted.
	if tool.Kind() == ports.KindEdit && outcome == ports.OutcomeProceedAlways {
		if u.mode != nil {
			u.mode.SetAutoAcceptEdits(true)
		}
		return
	}

	if serverTool, ok := tool.(ports.ServerTool); ok {
		u.publishServerToolUpdate(serverTool, outcome)
		return
	}

	if tool.Kind() == ports.KindExec || (details != nil && details.Command != "") {
		u.publishCommandUpdate(tool, outcome, details, payload)
		return
	}

	// Generic non-exec tool: allow the tool as a whole.
	u.publish(ports.PolicyUpdate{
		ToolName: tool.Name(),
		Persist:  outcome == ports.OutcomeProceedAlwaysAndSave,
	})
}

func (u *Updater) publishServerToolUpdate(tool ports.ServerTool, outcome ports.Outcome) {
	update := ports.PolicyUpdate{
		Persist: outcome == ports.OutcomeProceedAlwaysAndSave,
	}
	if outcome == ports.OutcomeProceedAlwaysServer {
		update.ServerName = tool.ServerName()
	} else {
		update.ToolName = tool.Name()
	}
	u.publish(update)
}

func (u *Updater) publishCommandUpdate(tool ports.Tool, outcome ports.Outcome, details *ports.ConfirmationDetails, payload *ports.ConfirmationPayload) {
	if details == nil || details.Command == "" {
		u.logger.Warn("no command on exec confirmation for %s, skipping policy update", tool.Name())
		return
	}

	scope := ports.ScopeExact
	pattern := ""
	var subScopes map[string]ports.ApprovalScope
	if payload != nil {
		if payload.Scope != "" {
			scope = payload.Scope
		}
		pattern = payload.Pattern
		subScopes = payload.SubcommandScopes
	}

	prefixes, err := shellcmd.PrefixesForCommand(details.Command, scope, pattern, subScopes)
	if err != nil {
		u.logger.Warn("cannot derive approval prefixes for %q: %v", details.Command, err)
		return
	}

	persist := outcome == ports.OutcomeProceedAlwaysAndSave
	if !persist && outcome == ports.OutcomeProceedAlways {
		persist = u.classifier.SafeToRemember(details.Command)
	}

	u.publish(ports.PolicyUpdate{
		ToolName: tool.Name(),
		Prefixes: prefixes,
		Persist:  persist,
	})
}

func (u *Updater) publish(update ports.PolicyUpdate) {
	if u.bus == nil {
		return
	}
	update.ID = uuid.NewString()
	update.IssuedAt = time.Now()
	if err := u.bus.Publish(update); err != nil {
		u.logger.Warn("policy update %s not published: %v", update.ID, err)
	}
}
