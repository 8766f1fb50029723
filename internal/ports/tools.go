package ports

import (
	"context"
	"encoding/json"
)

// ToolKind classifies what a tool does to the outside world. The kind drives
// which confirmation surface the embedding UI renders.
type ToolKind string

const (
	KindExec ToolKind = "exec"
	KindEdit ToolKind = "edit"
	KindMCP  ToolKind = "mcp"
	KindInfo ToolKind = "info"
)

// Tool is a registered, invocable capability. Build validates raw arguments
// into an Invocation; it must not perform side effects.
type Tool interface {
	// Name returns the unique registry name.
	Name() string

	// Description returns the tool's schema description for the model.
	Description() string

	// Kind classifies the tool for confirmation rendering and policy scoping.
	Kind() ToolKind

	// Build validates args and returns a ready invocation.
	Build(args map[string]any) (Invocation, error)
}

// ModifiableTool is implemented by tools whose proposed content a user can
// rewrite during confirmation. ModifyArgs returns a fresh argument map with
// newContent folded in; the scheduler rebuilds the invocation from it.
type ModifiableTool interface {
	Tool
	ModifyArgs(args map[string]any, newContent string) map[string]any
}

// ServerTool is implemented by tools sourced from an MCP server or plugin.
// The scheduler uses the server name for server-scoped approvals.
type ServerTool interface {
	Tool
	ServerName() string
}

// Invocation is one validated, executable call of a tool.
type Invocation interface {
	// Params returns the validated arguments.
	Params() map[string]any

	// Description summarizes what executing this invocation will do.
	Description() string

	// ShouldConfirm reports whether this invocation still needs a human
	// confirmation. A nil result means a prior approval already covers it
	// and the call may proceed as if allowed.
	ShouldConfirm(ctx context.Context) (*ConfirmationDetails, error)

	// Execute runs the invocation. Output chunks may be streamed through
	// sink as they are produced. Execute must honor ctx cancellation.
	Execute(ctx context.Context, sink OutputSink) (*InvocationResult, error)
}

// ConfirmAware is implemented by invocations that react to the confirmation
// outcome before the scheduler processes it (e.g. an edit tool applying the
// approved content).
type ConfirmAware interface {
	OnConfirm(ctx context.Context, outcome Outcome, payload *ConfirmationPayload) error
}

// OutputSink receives live output chunks during execution.
type OutputSink func(chunk string)

// InvocationResult is the raw output of a completed invocation.
type InvocationResult struct {
	Content  string         `json:"content"`
	Display  string         `json:"display,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ToolCallRequest is one model-issued request inside a batch. Immutable.
type ToolCallRequest struct {
	CallID   string          `json:"call_id"`
	ToolName string          `json:"tool_name"`
	Args     json.RawMessage `json:"args"`
}

// ErrorType tags a terminal error record so the model can self-correct.
type ErrorType string

const (
	ErrToolNotRegistered ErrorType = "tool_not_registered"
	ErrInvalidToolParams ErrorType = "invalid_tool_params"
	ErrPolicyViolation   ErrorType = "policy_violation"
	ErrUnhandled         ErrorType = "unhandled_exception"
	ErrExecutionFailed   ErrorType = "execution_failed"
)

// ExecRequest bundles everything the executor needs to run one ready call.
type ExecRequest struct {
	CallID     string
	ToolName   string
	Invocation Invocation
	Output     OutputSink
}

// ExecResult is the terminal outcome of one execution. The executor never
// returns a Go error; failures are encoded here so one bad call cannot take
// down its batch.
type ExecResult struct {
	Content   string
	Display   string
	ErrorType ErrorType
	Message   string
	Cancelled bool
}

// Executor runs one ready call to completion, honoring ctx promptly.
type Executor interface {
	Execute(ctx context.Context, req ExecRequest) ExecResult
}
