package policy

import "sync/atomic"

// SessionMode holds session-wide approval state. Flipping auto-accept-edits
// lets every subsequent edit confirmation resolve itself.
type SessionMode struct {
	autoAcceptEdits atomic.Bool
}

// NewSessionMode returns a mode with everything requiring confirmation.
func NewSessionMode() *SessionMode {
	return &SessionMode{}
}

// SetAutoAcceptEdits implements ModeController.
func (m *SessionMode) SetAutoAcceptEdits(enabled bool) {
	m.autoAcceptEdits.Store(enabled)
}

// AutoAcceptEdits reports whether edit confirmations are auto-approved.
func (m *SessionMode) AutoAcceptEdits() bool {
	return m.autoAcceptEdits.Load()
}
