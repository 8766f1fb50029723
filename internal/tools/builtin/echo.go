package builtin

import (
	"context"
	"fmt"

	"ward/internal/ports"
)

// Echo returns its message argument. Info kind; never confirms. Useful for
// wiring checks and demos.
type Echo struct{}

func NewEcho() *Echo { return &Echo{} }

func (t *Echo) Name() string         { return "echo" }
func (t *Echo) Description() string  { return "Returns the given message." }
func (t *Echo) Kind() ports.ToolKind { return ports.KindInfo }

func (t *Echo) Build(args map[string]any) (ports.Invocation, error) {
	msg, ok := args["msg"].(string)
	if !ok {
		msg, ok = args["message"].(string)
	}
	if !ok {
		return nil, fmt.Errorf("missing 'msg'")
	}
	return &echoInvocation{msg: msg, args: args}, nil
}

type echoInvocation struct {
	msg  string
	args map[string]any
}

func (inv *echoInvocation) Params() map[string]any { return inv.args }
func (inv *echoInvocation) Description() string    { return fmt.Sprintf("Echo %q", inv.msg) }

func (inv *echoInvocation) ShouldConfirm(context.Context) (*ports.ConfirmationDetails, error) {
	return nil, nil
}

func (inv *echoInvocation) Execute(context.Context, ports.OutputSink) (*ports.InvocationResult, error) {
	return &ports.InvocationResult{Content: inv.msg}, nil
}
