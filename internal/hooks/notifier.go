// Package hooks delivers best-effort notifications before confirmations.
package hooks

import (
	"context"
	"time"

	"ward/internal/logging"
	"ward/internal/ports"
)

// notifyTimeout bounds how long a hook may delay a confirmation prompt.
const notifyTimeout = 5 * time.Second

// Hook receives one notification. Errors are logged, never propagated.
type Hook func(ctx context.Context, details *ports.ConfirmationDetails) error

// Notifier fans notifications out to registered hooks.
type Notifier struct {
	hooks  []Hook
	logger logging.Logger
}

// NewNotifier creates a notifier over the given hooks.
func NewNotifier(logger logging.Logger, hooks ...Hook) *Notifier {
	return &Notifier{
		hooks:  hooks,
		logger: logging.OrNop(logger),
	}
}

// Notify implements ports.HookNotifier. Every hook runs even when earlier
// ones fail; the first error is returned for logging only.
func (n *Notifier) Notify(ctx context.Context, details *ports.ConfirmationDetails) error {
	if len(n.hooks) == 0 {
		return nil
	}

	hookCtx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	var firstErr error
	for i, hook := range n.hooks {
		if err := hook(hookCtx, details); err != nil {
			n.logger.Warn("confirmation hook %d failed: %v", i, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
