package tools

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ward/internal/ports"
)

type scriptedInvocation struct {
	execute func(ctx context.Context, sink ports.OutputSink) (*ports.InvocationResult, error)
}

func (inv *scriptedInvocation) Params() map[string]any { return nil }
func (inv *scriptedInvocation) Description() string    { return "scripted" }
func (inv *scriptedInvocation) ShouldConfirm(context.Context) (*ports.ConfirmationDetails, error) {
	return nil, nil
}
func (inv *scriptedInvocation) Execute(ctx context.Context, sink ports.OutputSink) (*ports.InvocationResult, error) {
	return inv.execute(ctx, sink)
}

func execRequest(inv ports.Invocation) ports.ExecRequest {
	return ports.ExecRequest{CallID: "c1", ToolName: "stub", Invocation: inv}
}

func TestExecutorSuccess(t *testing.T) {
	e := NewLocalExecutor(DefaultTimeoutConfig(), nil)
	result := e.Execute(context.Background(), execRequest(&scriptedInvocation{
		execute: func(context.Context, ports.OutputSink) (*ports.InvocationResult, error) {
			return &ports.InvocationResult{Content: "done", Display: "done!"}, nil
		},
	}))

	require.Empty(t, result.ErrorType)
	require.Equal(t, "done", result.Content)
	require.Equal(t, "done!", result.Display)
}

func TestExecutorFailureIsTagged(t *testing.T) {
	e := NewLocalExecutor(DefaultTimeoutConfig(), nil)
	result := e.Execute(context.Background(), execRequest(&scriptedInvocation{
		execute: func(context.Context, ports.OutputSink) (*ports.InvocationResult, error) {
			return nil, errors.New("exit status 2")
		},
	}))

	require.Equal(t, ports.ErrExecutionFailed, result.ErrorType)
	require.Contains(t, result.Message, "exit status 2")
	require.False(t, result.Cancelled)
}

func TestExecutorPanicBecomesUnhandled(t *testing.T) {
	e := NewLocalExecutor(DefaultTimeoutConfig(), nil)
	result := e.Execute(context.Background(), execRequest(&scriptedInvocation{
		execute: func(context.Context, ports.OutputSink) (*ports.InvocationResult, error) {
			panic("tool bug")
		},
	}))

	require.Equal(t, ports.ErrUnhandled, result.ErrorType)
	require.Contains(t, result.Message, "tool bug")
}

func TestExecutorCancellation(t *testing.T) {
	e := NewLocalExecutor(DefaultTimeoutConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := e.Execute(ctx, execRequest(&scriptedInvocation{
		execute: func(ctx context.Context, _ ports.OutputSink) (*ports.InvocationResult, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}))

	require.True(t, result.Cancelled)
	require.Empty(t, result.ErrorType)
}

func TestExecutorTimeout(t *testing.T) {
	cfg := TimeoutConfig{Default: 2 * time.Minute, PerTool: map[string]time.Duration{"stub": 20 * time.Millisecond}}
	e := NewLocalExecutor(cfg, nil)

	result := e.Execute(context.Background(), execRequest(&scriptedInvocation{
		execute: func(ctx context.Context, _ ports.OutputSink) (*ports.InvocationResult, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}))

	require.Equal(t, ports.ErrExecutionFailed, result.ErrorType)
	require.Contains(t, result.Message, "timed out")
}

func TestExecutorNilResult(t *testing.T) {
	e := NewLocalExecutor(DefaultTimeoutConfig(), nil)
	result := e.Execute(context.Background(), execRequest(&scriptedInvocation{
		execute: func(context.Context, ports.OutputSink) (*ports.InvocationResult, error) {
			return nil, nil
		},
	}))

	require.Equal(t, ports.ErrExecutionFailed, result.ErrorType)
}

func TestTimeoutConfigFallbacks(t *testing.T) {
	cfg := TimeoutConfig{Default: time.Minute, PerTool: map[string]time.Duration{"slow": 10 * time.Minute}}
	require.Equal(t, 10*time.Minute, cfg.TimeoutFor("slow"))
	require.Equal(t, time.Minute, cfg.TimeoutFor("other"))
	require.Equal(t, 120*time.Second, TimeoutConfig{}.TimeoutFor("any"))
}
