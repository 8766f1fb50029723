// Package tools provides the local tool executor and builtin tool set.
package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ward/internal/logging"
	"ward/internal/ports"
)

// TimeoutConfig controls per-tool execution timeout overrides.
type TimeoutConfig struct {
	Default time.Duration            `yaml:"default" json:"default"`
	PerTool map[string]time.Duration `yaml:"per_tool" json:"per_tool"`
}

// DefaultTimeoutConfig returns the default 120s timeout with no overrides.
func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		Default: 120 * time.Second,
		PerTool: map[string]time.Duration{},
	}
}

// TimeoutFor returns the execution timeout for the named tool.
func (c TimeoutConfig) TimeoutFor(toolName string) time.Duration {
	if d, ok := c.PerTool[toolName]; ok && d > 0 {
		return d
	}
	if c.Default > 0 {
		return c.Default
	}
	return 120 * time.Second
}

// LocalExecutor runs invocations in-process. It never returns a Go error:
// every failure is encoded in the ExecResult so one bad call cannot abort
// its batch.
type LocalExecutor struct {
	timeouts TimeoutConfig
	logger   logging.Logger
}

// NewLocalExecutor creates an executor with the given timeout policy.
func NewLocalExecutor(timeouts TimeoutConfig, logger logging.Logger) *LocalExecutor {
	return &LocalExecutor{
		timeouts: timeouts,
		logger:   logging.OrNop(logger),
	}
}

// Execute implements ports.Executor.
func (e *LocalExecutor) Execute(ctx context.Context, req ports.ExecRequest) (result ports.ExecResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("tool %s panicked: %v", req.ToolName, r)
			result = ports.ExecResult{
				ErrorType: ports.ErrUnhandled,
				Message:   fmt.Sprintf("tool %s panicked: %v", req.ToolName, r),
			}
		}
	}()

	execCtx, cancel := context.WithTimeout(ctx, e.timeouts.TimeoutFor(req.ToolName))
	defer cancel()

	started := time.Now()
	out, err := req.Invocation.Execute(execCtx, req.Output)
	elapsed := time.Since(started)

	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			e.logger.Info("tool %s cancelled after %s", req.ToolName, elapsed)
			return ports.ExecResult{
				Cancelled: true,
				Message:   fmt.Sprintf("%s was cancelled", req.ToolName),
			}
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return ports.ExecResult{
				ErrorType: ports.ErrExecutionFailed,
				Message:   fmt.Sprintf("%s timed out after %s", req.ToolName, e.timeouts.TimeoutFor(req.ToolName)),
			}
		}
		return ports.ExecResult{
			ErrorType: ports.ErrExecutionFailed,
			Message:   fmt.Sprintf("%s failed: %v", req.ToolName, err),
		}
	}

	if out == nil {
		return ports.ExecResult{
			ErrorType: ports.ErrExecutionFailed,
			Message:   fmt.Sprintf("%s returned no result", req.ToolName),
		}
	}

	e.logger.Debug("tool %s completed in %s", req.ToolName, elapsed)
	return ports.ExecResult{
		Content: out.Content,
		Display: out.Display,
	}
}
