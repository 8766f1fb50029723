package sched

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ward/internal/async"
	"ward/internal/bus"
	"ward/internal/catalog"
	"ward/internal/logging"
	"ward/internal/metrics"
	"ward/internal/policy"
	"ward/internal/ports"
)

// ErrCancelledWhileQueued rejects a schedule request whose context fired
// before its batch started.
var ErrCancelledWhileQueued = errors.New("cancelled while queued")

// ErrNonInteractive rejects a batch that needs a confirmation no one can
// answer.
var ErrNonInteractive = errors.New("confirmation required but session is non-interactive")

// BatchResult settles the future returned by Schedule.
type BatchResult struct {
	Records []Record
	Err     error
}

// Config holds scheduler configuration.
type Config struct {
	// Interactive reports whether a human can answer confirmations. In a
	// non-interactive session an ask-user decision is a scheduling failure.
	Interactive bool
}

// Deps are the scheduler's collaborators.
type Deps struct {
	Catalog       *catalog.Catalog
	Policy        ports.PolicyEngine
	Executor      ports.Executor
	Updater       *policy.Updater
	Hooks         ports.HookNotifier
	Bus           ports.MessageBus
	Subscriptions *bus.SubscriptionRegistry
	Editor        ports.EditorLauncher
	IDE           ports.DiffResolver

	// OnUpdate receives a full batch snapshot on every transition.
	OnUpdate func([]Record)

	// OnComplete fires once per finished batch with all terminal records.
	OnComplete func([]Record)
}

// confirmationResolved is the command value a confirmation decision becomes.
// All resolution paths (UI callback, IDE diff listener, tests) funnel through
// it into the batch runner's single processing loop.
type confirmationResolved struct {
	callID  string
	outcome ports.Outcome
	payload *ports.ConfirmationPayload
}

type pendingBatch struct {
	ctx      context.Context
	requests []ports.ToolCallRequest
	done     chan BatchResult
	started  chan struct{}
}

// Scheduler drives each call of a batch through policy, confirmation and
// execution. One call is in flight at a time; batches run FIFO.
type Scheduler struct {
	cfg     Config
	deps    Deps
	logger  logging.Logger
	metrics *metrics.Metrics

	mu           sync.Mutex
	state        *StateManager
	running      bool
	reported     bool
	cancelled    bool
	cancelReason string
	batchErr     error
	batchCtx     context.Context
	batchCancel  context.CancelFunc
	batchDone    chan BatchResult
	confirmCh    chan confirmationResolved
	pending      []*pendingBatch
}

// New creates a scheduler. The policy engine is subscribed to the bus through
// the registry exactly once per distinct bus, no matter how many schedulers
// share it.
func New(cfg Config, deps Deps, logger logging.Logger) *Scheduler {
	s := &Scheduler{
		cfg:     cfg,
		deps:    deps,
		logger:  logging.OrNop(logger),
		metrics: metrics.Default(),
	}
	s.state = NewStateManager(deps.OnUpdate)

	if deps.Bus != nil && deps.Subscriptions != nil {
		if applier, ok := deps.Policy.(interface{ ApplyUpdate(ports.PolicyUpdate) }); ok {
			deps.Subscriptions.EnsureSubscribed(deps.Bus, applier.ApplyUpdate)
		}
	}
	return s
}

// Schedule accepts a batch of requests. The returned channel settles exactly
// once, after the batch is fully terminal and reported. While another batch
// is active the request queues FIFO; if ctx fires before it starts, the
// future rejects with ErrCancelledWhileQueued.
func (s *Scheduler) Schedule(ctx context.Context, requests []ports.ToolCallRequest) <-chan BatchResult {
	done := make(chan BatchResult, 1)

	s.mu.Lock()
	if s.running {
		pb := &pendingBatch{
			ctx:      ctx,
			requests: requests,
			done:     done,
			started:  make(chan struct{}),
		}
		s.pending = append(s.pending, pb)
		s.mu.Unlock()

		async.Go(s.logger, "queued-batch-watch", func() {
			select {
			case <-ctx.Done():
				s.mu.Lock()
				removed := s.removePendingLocked(pb)
				s.mu.Unlock()
				if removed {
					done <- BatchResult{Err: ErrCancelledWhileQueued}
				}
			case <-pb.started:
			}
		})
		return done
	}

	s.startBatchLocked(ctx, requests, done)
	s.mu.Unlock()
	return done
}

// HandleConfirmation resolves the currently awaiting call. Typically invoked
// through the OnConfirm wired onto the surfaced confirmation details.
func (s *Scheduler) HandleConfirmation(callID string, outcome ports.Outcome, payload *ports.ConfirmationPayload) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("no active batch")
	}
	rec, ok := s.state.Get(callID)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("unknown call: %s", callID)
	}
	if rec.Status() != StatusAwaitingApproval {
		s.mu.Unlock()
		return fmt.Errorf("call %s is not awaiting approval (%s)", callID, rec.Status())
	}
	ch := s.confirmCh
	ctx := s.batchCtx
	s.mu.Unlock()

	select {
	case ch <- confirmationResolved{callID: callID, outcome: outcome, payload: payload}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CancelAll cascades cancellation over the active batch: the single active
// call if cancellable, and every call still queued inside the batch.
// Idempotent; re-entrant calls no-op. Externally queued Schedule requests are
// untouched — they observe their own contexts.
func (s *Scheduler) CancelAll(reason string) {
	s.mu.Lock()
	if !s.running || s.cancelled {
		s.mu.Unlock()
		return
	}
	if reason == "" {
		reason = "cancelled"
	}
	s.cancelled = true
	s.cancelReason = reason
	cancel := s.batchCancel
	s.mu.Unlock()

	s.logger.Info("cancelAll: %s", reason)
	cancel()
}

// startBatchLocked builds the batch records and launches the runner.
// Caller holds s.mu.
func (s *Scheduler) startBatchLocked(ctx context.Context, requests []ports.ToolCallRequest, done chan BatchResult) {
	batchCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.reported = false
	s.cancelled = false
	s.cancelReason = ""
	s.batchErr = nil
	s.batchCtx = batchCtx
	s.batchCancel = cancel
	s.batchDone = done
	s.confirmCh = make(chan confirmationResolved, 4)
	s.metrics.BatchStarted()

	records := s.buildRecords(requests)
	s.state.Enqueue(records...)

	async.Go(s.logger, "batch-runner", s.runBatch)
}

// buildRecords turns requests into initial records. Unknown tools and
// invalid arguments are terminal immediately; they never reach the policy
// engine or the executor.
func (s *Scheduler) buildRecords(requests []ports.ToolCallRequest) []Record {
	records := make([]Record, 0, len(requests))
	for _, req := range requests {
		if _, err := s.deps.Catalog.GetTool(req.ToolName); err != nil {
			message := fmt.Sprintf("tool %q is not registered", req.ToolName)
			if suggestion := s.deps.Catalog.Suggest(req.ToolName); suggestion != "" {
				message += fmt.Sprintf(" (did you mean %q?)", suggestion)
			}
			records = append(records, Errored{
				base: newBase(req),
				Response: Response{
					CallID:    req.CallID,
					Message:   message,
					ErrorType: ports.ErrToolNotRegistered,
				},
			})
			continue
		}

		inv, err := s.deps.Catalog.BuildInvocation(req.ToolName, req.Args)
		if err != nil {
			records = append(records, Errored{
				base: newBase(req),
				Response: Response{
					CallID:    req.CallID,
					Message:   fmt.Sprintf("invalid parameters for %s: %v", req.ToolName, err),
					ErrorType: ports.ErrInvalidToolParams,
				},
			})
			continue
		}

		records = append(records, Validating{base: newBase(req), Invocation: inv})
	}
	return records
}

// runBatch is the batch's single thread of control. Confirm phase first, in
// strict submission order; then the execute phase over everything scheduled;
// then the completion path.
func (s *Scheduler) runBatch() {
	for {
		s.mu.Lock()
		aborted := s.batchCtx.Err() != nil
		s.mu.Unlock()
		if aborted {
			break
		}
		rec, ok := s.state.Dequeue()
		if !ok {
			break
		}
		s.processCall(rec)
	}

	s.executeScheduled()
	s.finishBatch()
}

// processCall drives one dequeued call through the confirm phase.
func (s *Scheduler) processCall(rec Record) {
	if rec.Terminal() {
		s.finalize(rec)
		return
	}

	validating, ok := rec.(Validating)
	if !ok {
		s.logger.Error("dequeued call %s in unexpected state %s", rec.Request().CallID, rec.Status())
		return
	}

	if s.batchCtx.Err() != nil {
		s.cancelCall(rec, s.cancelReasonOr("batch aborted"))
		return
	}

	tool, err := s.deps.Catalog.GetTool(rec.Request().ToolName)
	if err != nil {
		// The tool existed at record construction; losing it mid-batch is a
		// registry race, reported like any other per-call fault.
		s.failCall(rec, ports.ErrUnhandled, err.Error())
		return
	}

	decision, err := s.deps.Policy.Check(s.batchCtx, callMetadata(tool, validating.Invocation))
	if err != nil {
		s.failCall(rec, ports.ErrUnhandled, fmt.Sprintf("policy check failed: %v", err))
		return
	}
	s.metrics.PolicyDecision(string(decision.Verdict))

	switch decision.Verdict {
	case ports.VerdictDeny:
		message := fmt.Sprintf("%s was blocked by policy", rec.Request().ToolName)
		if decision.Rule != nil && decision.Rule.DenyMessage != "" {
			message += ": " + decision.Rule.DenyMessage
		}
		s.failCall(rec, ports.ErrPolicyViolation, message)
		return

	case ports.VerdictAllow:
		s.schedule(rec, validating.Invocation, ports.OutcomeProceedAlways)
		return
	}

	// Ask the invocation itself: a broader prior approval may already cover
	// this call.
	details, err := validating.Invocation.ShouldConfirm(s.batchCtx)
	if err != nil {
		s.failCall(rec, ports.ErrUnhandled, fmt.Sprintf("confirmation check failed: %v", err))
		return
	}
	if details == nil {
		s.schedule(rec, validating.Invocation, ports.OutcomeProceedAlways)
		return
	}

	if !s.cfg.Interactive {
		s.mu.Lock()
		s.batchErr = fmt.Errorf("%w: %s", ErrNonInteractive, rec.Request().ToolName)
		cancel := s.batchCancel
		s.mu.Unlock()
		s.cancelCall(rec, "confirmation cannot be satisfied")
		cancel()
		return
	}

	s.awaitApproval(rec, tool, validating.Invocation, details)
}

// awaitApproval surfaces the confirmation and parks until a resolution
// command or cancellation arrives. Handles the modify loop: an edited
// invocation re-enters awaiting approval with a refreshed diff and needs
// another confirmation before execution.
func (s *Scheduler) awaitApproval(rec Record, tool ports.Tool, inv ports.Invocation, details *ports.ConfirmationDetails) {
	callID := rec.Request().CallID

	if s.deps.Hooks != nil {
		if err := s.deps.Hooks.Notify(s.batchCtx, details); err != nil {
			s.logger.Warn("confirmation hook for %s: %v", callID, err)
		}
	}

	s.surface(rec, inv, details)

	for {
		select {
		case <-s.batchCtx.Done():
			s.cancelCall(rec, s.cancelReasonOr("batch aborted"))
			return

		case cmd := <-s.confirmCh:
			if cmd.callID != callID {
				s.logger.Warn("stale confirmation for %s ignored while %s awaits", cmd.callID, callID)
				continue
			}
			s.metrics.Confirmation(string(cmd.outcome))

			// The invocation reacts first (e.g. an edit tool applying the
			// approved content).
			if aware, ok := inv.(ports.ConfirmAware); ok {
				if err := aware.OnConfirm(s.batchCtx, cmd.outcome, cmd.payload); err != nil {
					s.logger.Warn("invocation OnConfirm for %s: %v", callID, err)
				}
			}

			switch {
			case cmd.outcome == ports.OutcomeCancel:
				// Full cascade, not just this call.
				s.CancelAll(fmt.Sprintf("user cancelled %s", rec.Request().ToolName))
				s.cancelCall(rec, s.cancelReasonOr("user cancelled"))
				return

			case cmd.outcome == ports.OutcomeModifyWithEditor:
				next, nextDetails, ok := s.modifyWithEditor(callID, tool, inv, details)
				if !ok {
					continue
				}
				if nextDetails == nil {
					s.schedule(rec, next, ports.OutcomeProceedOnce)
					return
				}
				inv, details = next, nextDetails
				s.surface(rec, inv, details)
				continue

			case cmd.payload != nil && cmd.payload.NewContent != "":
				next, nextDetails, ok := s.rebuild(callID, tool, inv, cmd.payload.NewContent)
				if !ok {
					continue
				}
				if nextDetails == nil {
					s.schedule(rec, next, cmd.outcome)
					return
				}
				inv, details = next, nextDetails
				s.surface(rec, inv, details)
				continue

			default:
				if s.deps.Updater != nil {
					s.deps.Updater.UpdatePolicy(tool, cmd.outcome, details, cmd.payload)
				}
				s.schedule(rec, inv, cmd.outcome)
				return
			}
		}
	}
}

// surface publishes the awaiting-approval record with OnConfirm wired back
// into the scheduler, and mirrors edit confirmations into the IDE when a
// diff resolver is present.
func (s *Scheduler) surface(rec Record, inv ports.Invocation, details *ports.ConfirmationDetails) {
	callID := rec.Request().CallID
	details.OnConfirm = func(outcome ports.Outcome, payload *ports.ConfirmationPayload) error {
		return s.HandleConfirmation(callID, outcome, payload)
	}

	if details.Type == ports.KindEdit && s.deps.IDE != nil {
		decision, err := s.deps.IDE.OpenDiff(s.batchCtx, details)
		if err != nil {
			s.logger.Warn("IDE diff for %s: %v", callID, err)
		} else {
			ctx := s.batchCtx
			async.Go(s.logger, "ide-diff-listener", func() {
				select {
				case accepted, ok := <-decision:
					if !ok {
						return
					}
					outcome := ports.OutcomeCancel
					if accepted {
						outcome = ports.OutcomeProceedOnce
					}
					if err := s.HandleConfirmation(callID, outcome, nil); err != nil {
						s.logger.Debug("IDE resolution for %s dropped: %v", callID, err)
					}
				case <-ctx.Done():
				}
			})
		}
	}

	if err := s.state.UpdateStatus(callID, AwaitingApproval{
		base:         carry(rec),
		Invocation:   inv,
		Confirmation: details,
	}); err != nil {
		s.logger.Error("surface %s: %v", callID, err)
	}
}

// modifyWithEditor runs the editor sub-flow and rebuilds the invocation with
// the edited content. Returns ok=false when the flow failed and the call
// should stay awaiting with its current details.
func (s *Scheduler) modifyWithEditor(callID string, tool ports.Tool, inv ports.Invocation, details *ports.ConfirmationDetails) (ports.Invocation, *ports.ConfirmationDetails, bool) {
	if s.deps.Editor == nil {
		s.logger.Warn("no editor configured, cannot modify %s", callID)
		return nil, nil, false
	}
	newContent, err := s.deps.Editor.Modify(s.batchCtx, details)
	if err != nil {
		s.logger.Warn("editor modification for %s: %v", callID, err)
		return nil, nil, false
	}
	return s.rebuildWith(callID, tool, inv, newContent)
}

// rebuild folds inline new content into a fresh invocation.
func (s *Scheduler) rebuild(callID string, tool ports.Tool, inv ports.Invocation, newContent string) (ports.Invocation, *ports.ConfirmationDetails, bool) {
	return s.rebuildWith(callID, tool, inv, newContent)
}

func (s *Scheduler) rebuildWith(callID string, tool ports.Tool, inv ports.Invocation, newContent string) (ports.Invocation, *ports.ConfirmationDetails, bool) {
	modifiable, ok := tool.(ports.ModifiableTool)
	if !ok {
		s.logger.Warn("tool %s does not support modification", tool.Name())
		return nil, nil, false
	}
	next, err := tool.Build(modifiable.ModifyArgs(inv.Params(), newContent))
	if err != nil {
		s.logger.Warn("rebuild %s with modified args: %v", callID, err)
		return nil, nil, false
	}
	nextDetails, err := next.ShouldConfirm(s.batchCtx)
	if err != nil {
		s.logger.Warn("refresh confirmation for %s: %v", callID, err)
		return nil, nil, false
	}
	return next, nextDetails, true
}

// executeScheduled runs every scheduled call in submission order. The batch
// stays single-flight: the next call is considered only after the previous
// one is terminal and finalized.
func (s *Scheduler) executeScheduled() {
	for {
		if s.batchCtx.Err() != nil {
			s.cancelActive()
			return
		}
		rec, ok := s.state.FirstScheduled()
		if !ok {
			return
		}
		s.executeOne(rec)
	}
}

func (s *Scheduler) executeOne(rec Record) {
	scheduled, ok := rec.(Scheduled)
	if !ok {
		s.logger.Error("call %s is not scheduled (%s)", rec.Request().CallID, rec.Status())
		return
	}
	callID := rec.Request().CallID

	if err := s.state.UpdateStatus(callID, Executing{
		base:       carry(rec),
		Invocation: scheduled.Invocation,
	}); err != nil {
		s.logger.Error("executeOne %s: %v", callID, err)
		return
	}

	started := time.Now()
	result := s.deps.Executor.Execute(s.batchCtx, ports.ExecRequest{
		CallID:     callID,
		ToolName:   rec.Request().ToolName,
		Invocation: scheduled.Invocation,
		Output: func(chunk string) {
			s.appendLiveOutput(callID, chunk)
		},
	})
	elapsed := time.Since(started)

	var terminal Record
	switch {
	case result.Cancelled:
		terminal = Cancelled{
			base:   carry(rec),
			Reason: s.cancelReasonOr("cancelled during execution"),
			Response: Response{
				CallID:  callID,
				Message: result.Message,
			},
		}
	case result.ErrorType != "":
		terminal = Errored{
			base: carry(rec),
			Response: Response{
				CallID:    callID,
				Message:   result.Message,
				ErrorType: result.ErrorType,
			},
		}
	default:
		terminal = Success{
			base: carry(rec),
			Response: Response{
				CallID:  callID,
				Content: result.Content,
			},
		}
	}
	s.metrics.Execution(string(terminal.Status()), rec.Request().ToolName, elapsed)

	if err := s.state.UpdateStatus(callID, terminal); err != nil {
		s.logger.Error("finalize %s: %v", callID, err)
		return
	}
	s.finalize(terminal)
}

// appendLiveOutput folds a streamed chunk into the executing record.
func (s *Scheduler) appendLiveOutput(callID string, chunk string) {
	rec, ok := s.state.Get(callID)
	if !ok {
		return
	}
	executing, ok := rec.(Executing)
	if !ok {
		return
	}
	executing.LiveOutput += chunk
	if err := s.state.UpdateStatus(callID, executing); err != nil {
		s.logger.Debug("live output for %s dropped: %v", callID, err)
	}
}

// cancelActive cancels every non-terminal call that was already dequeued.
func (s *Scheduler) cancelActive() {
	for _, rec := range s.state.ActiveNonTerminal() {
		s.cancelCall(rec, s.cancelReasonOr("batch aborted"))
	}
}

// finishBatch is the batch-completion path: drain-cancel anything still
// queued, report terminal records exactly once, then start the next queued
// schedule request.
func (s *Scheduler) finishBatch() {
	s.mu.Lock()
	if s.reported {
		s.mu.Unlock()
		return
	}
	s.reported = true
	batchErr := s.batchErr
	done := s.batchDone
	cancel := s.batchCancel
	s.mu.Unlock()

	s.cancelActive()
	s.state.CancelAllQueued(s.cancelReasonOr("cancelled"))

	completed := s.state.CompletedBatch()
	if batchErr == nil && len(completed) > 0 && s.deps.OnComplete != nil {
		s.deps.OnComplete(completed)
	}
	s.state.ClearBatch()
	cancel()
	s.metrics.BatchFinished()

	done <- BatchResult{Records: completed, Err: batchErr}

	s.mu.Lock()
	s.running = false
	next := s.nextPendingLocked()
	if next != nil {
		s.startBatchLocked(next.ctx, next.requests, next.done)
		close(next.started)
	}
	s.mu.Unlock()
}

// nextPendingLocked pops the first pending batch whose context is still
// live. Dead ones resolve through their own context watchers.
func (s *Scheduler) nextPendingLocked() *pendingBatch {
	for len(s.pending) > 0 {
		pb := s.pending[0]
		s.pending = s.pending[1:]
		if pb.ctx.Err() == nil {
			return pb
		}
	}
	return nil
}

func (s *Scheduler) removePendingLocked(target *pendingBatch) bool {
	for i, pb := range s.pending {
		if pb == target {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return true
		}
	}
	return false
}

// schedule transitions a call to Scheduled with its resolved outcome.
func (s *Scheduler) schedule(rec Record, inv ports.Invocation, outcome ports.Outcome) {
	if err := s.state.UpdateStatus(rec.Request().CallID, Scheduled{
		base:       carry(rec),
		Invocation: inv,
		Outcome:    outcome,
	}); err != nil {
		s.logger.Error("schedule %s: %v", rec.Request().CallID, err)
	}
}

// failCall marks a call terminally errored and finalizes it.
func (s *Scheduler) failCall(rec Record, errorType ports.ErrorType, message string) {
	callID := rec.Request().CallID
	terminal := Errored{
		base: carry(rec),
		Response: Response{
			CallID:    callID,
			Message:   message,
			ErrorType: errorType,
		},
	}
	if err := s.state.UpdateStatus(callID, terminal); err != nil {
		s.logger.Error("failCall %s: %v", callID, err)
		return
	}
	s.finalize(terminal)
}

// cancelCall marks a call terminally cancelled and finalizes it.
func (s *Scheduler) cancelCall(rec Record, reason string) {
	callID := rec.Request().CallID
	terminal := Cancelled{
		base:   carry(rec),
		Reason: reason,
		Response: Response{
			CallID:  callID,
			Message: fmt.Sprintf("%s: %s", rec.Request().ToolName, reason),
		},
	}
	if err := s.state.UpdateStatus(callID, terminal); err != nil {
		s.logger.Error("cancelCall %s: %v", callID, err)
		return
	}
	s.finalize(terminal)
}

// finalize moves a terminal record into the completed batch.
func (s *Scheduler) finalize(rec Record) {
	if err := s.state.FinalizeCall(rec.Request().CallID); err != nil {
		s.logger.Error("finalize %s: %v", rec.Request().CallID, err)
	}
}

func (s *Scheduler) cancelReasonOr(fallback string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelReason != "" {
		return s.cancelReason
	}
	return fallback
}

// callMetadata projects the slice of a call the policy engine sees.
func callMetadata(tool ports.Tool, inv ports.Invocation) ports.CallMetadata {
	meta := ports.CallMetadata{
		ToolName: tool.Name(),
		Args:     inv.Params(),
	}
	if serverTool, ok := tool.(ports.ServerTool); ok {
		meta.ServerName = serverTool.ServerName()
	}
	if command, ok := inv.Params()["command"].(string); ok {
		meta.Command = command
	}
	return meta
}
