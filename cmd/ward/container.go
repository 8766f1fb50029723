package main

import (
	"context"
	"fmt"
	"sync"

	"ward/internal/approval"
	"ward/internal/async"
	"ward/internal/bus"
	"ward/internal/catalog"
	"ward/internal/config"
	"ward/internal/hooks"
	"ward/internal/logging"
	"ward/internal/policy"
	"ward/internal/ports"
	"ward/internal/sched"
	"ward/internal/shellcmd"
	"ward/internal/tools"
	"ward/internal/tools/builtin"
)

// Container wires the scheduler and its collaborators for one CLI session.
type Container struct {
	Settings  config.Settings
	Logger    logging.Logger
	Catalog   *catalog.Catalog
	Engine    *policy.Engine
	Mode      *policy.SessionMode
	Bus       *bus.Bus
	Scheduler *sched.Scheduler
	Prompter  *approval.Prompter

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	prompted *ports.ConfirmationDetails
}

func buildContainer(cfgPath string, overrides func(*config.Settings)) (*Container, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if overrides != nil {
		overrides(&cfg)
	}

	logger := logging.NewComponentLogger("ward")

	c := &Container{
		Settings: cfg,
		Logger:   logger,
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())

	store := policy.NewRuleStore(cfg.RulesPath)
	c.Engine, err = policy.NewEngine(store, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy rules: %w", err)
	}
	c.Mode = policy.NewSessionMode()

	c.Bus = bus.New(16, logger)
	updater := policy.NewUpdater(c.Bus, shellcmd.NewClassifier(), c.Mode, logger)

	c.Catalog = catalog.New(logger)
	for _, tool := range []ports.Tool{
		builtin.NewShell(builtin.ShellConfig{WorkDir: cfg.Workspace, Approvals: c.Engine}),
		builtin.NewFileRead(builtin.FileConfig{Root: cfg.Workspace, Approvals: c.Mode}),
		builtin.NewFileWrite(builtin.FileConfig{Root: cfg.Workspace, Approvals: c.Mode}),
		builtin.NewFileEdit(builtin.FileConfig{Root: cfg.Workspace, Approvals: c.Mode}),
		builtin.NewEcho(),
	} {
		if err := c.Catalog.RegisterBuiltin(tool); err != nil {
			return nil, err
		}
	}

	executor := tools.NewLocalExecutor(tools.TimeoutConfig{
		Default: cfg.DefaultTimeout,
		PerTool: cfg.ToolTimeouts,
	}, logger)

	c.Prompter = approval.NewPrompter(cfg.Color, logger)

	c.Scheduler = sched.New(
		sched.Config{Interactive: cfg.Interactive},
		sched.Deps{
			Catalog:       c.Catalog,
			Policy:        c.Engine,
			Executor:      executor,
			Updater:       updater,
			Hooks:         hooks.NewNotifier(logger),
			Bus:           c.Bus,
			Subscriptions: bus.NewSubscriptionRegistry(),
			Editor:        &approval.TerminalEditor{},
			OnUpdate:      c.onUpdate,
			OnComplete: func(records []sched.Record) {
				logger.Debug("batch completed with %d calls", len(records))
			},
		},
		logger,
	)

	return c, nil
}

// onUpdate watches batch snapshots for a newly surfaced confirmation and
// hands it to the terminal prompter. One call awaits at a time, so at most
// one prompt is in flight.
func (c *Container) onUpdate(records []sched.Record) {
	if !c.Settings.Interactive {
		return
	}
	for _, rec := range records {
		awaiting, ok := rec.(sched.AwaitingApproval)
		if !ok {
			continue
		}
		details := awaiting.Confirmation

		c.mu.Lock()
		seen := c.prompted == details
		if !seen {
			c.prompted = details
		}
		c.mu.Unlock()
		if seen {
			continue
		}

		async.Go(c.Logger, "confirmation-prompt", func() {
			if err := c.Prompter.Resolve(c.ctx, details); err != nil {
				c.Logger.Warn("confirmation prompt: %v", err)
			}
		})
	}
}

// Cleanup releases session resources.
func (c *Container) Cleanup() {
	c.cancel()
	c.Bus.Close()
}
