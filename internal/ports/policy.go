package ports

import (
	"context"
	"time"
)

// Verdict is the policy engine's decision for one call.
type Verdict string

const (
	VerdictAllow   Verdict = "allow"
	VerdictDeny    Verdict = "deny"
	VerdictAskUser Verdict = "ask_user"
)

// PolicyRule is one authorization rule known to the policy engine. Only the
// fields the scheduler consumes are modeled; rule matching itself stays
// inside the engine.
type PolicyRule struct {
	ToolName    string  `yaml:"tool,omitempty" json:"tool,omitempty"`
	ServerName  string  `yaml:"server,omitempty" json:"server,omitempty"`
	Pattern     string  `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Verdict     Verdict `yaml:"verdict" json:"verdict"`
	DenyMessage string  `yaml:"deny_message,omitempty" json:"deny_message,omitempty"`
	Persisted   bool    `yaml:"persisted,omitempty" json:"persisted,omitempty"`
}

// PolicyDecision is the engine's verdict plus the rule that produced it.
type PolicyDecision struct {
	Verdict Verdict
	Rule    *PolicyRule
}

// CallMetadata is the slice of a tool call the policy engine sees.
type CallMetadata struct {
	ToolName   string
	ServerName string
	Command    string
	Args       map[string]any
}

// PolicyEngine decides whether a call may run without confirmation.
type PolicyEngine interface {
	Check(ctx context.Context, call CallMetadata) (PolicyDecision, error)
}

// PolicyUpdate is published when a confirmation outcome implies a new
// authorization rule. Publication is fire and forget; persistence failures
// never feed back into the call state machine.
type PolicyUpdate struct {
	ID         string    `json:"id"`
	ToolName   string    `json:"tool_name,omitempty"`
	ServerName string    `json:"server_name,omitempty"`
	Prefixes   []string  `json:"prefixes,omitempty"`
	Persist    bool      `json:"persist"`
	IssuedAt   time.Time `json:"issued_at"`
}

// MessageBus carries policy updates from the scheduler to whoever applies
// them. Subscribe returns an unsubscribe func.
type MessageBus interface {
	Publish(update PolicyUpdate) error
	Subscribe(fn func(PolicyUpdate)) (unsubscribe func())
}
