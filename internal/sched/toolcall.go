// Package sched turns batches of model-issued tool-call requests into a
// safe, ordered, cancellable sequence of confirmed executions.
package sched

import (
	"time"

	"ward/internal/ports"
)

// Status is the state-machine tag of one tool call.
type Status string

const (
	StatusValidating       Status = "validating"
	StatusScheduled        Status = "scheduled"
	StatusAwaitingApproval Status = "awaiting_approval"
	StatusExecuting        Status = "executing"
	StatusSuccess          Status = "success"
	StatusError            Status = "error"
	StatusCancelled        Status = "cancelled"
)

// Response is the reportable payload of a terminal call.
type Response struct {
	CallID    string          `json:"call_id"`
	Content   string          `json:"content,omitempty"`
	Message   string          `json:"message,omitempty"`
	ErrorType ports.ErrorType `json:"error_type,omitempty"`
}

// Record is one tool call in the current batch. Each status is its own
// concrete type carrying exactly the payload that status needs; transitions
// replace the whole record rather than mutating shared fields.
type Record interface {
	Request() ports.ToolCallRequest
	Status() Status
	StartedAt() time.Time
	Terminal() bool
}

type base struct {
	request ports.ToolCallRequest
	started time.Time
}

func (b base) Request() ports.ToolCallRequest { return b.request }
func (b base) StartedAt() time.Time           { return b.started }

// Validating is a freshly built call that has not been policy-checked yet.
type Validating struct {
	base
	Invocation ports.Invocation
}

func (Validating) Status() Status { return StatusValidating }
func (Validating) Terminal() bool { return false }

// Scheduled is confirmed (or auto-approved) and waiting its turn to execute.
type Scheduled struct {
	base
	Invocation ports.Invocation
	Outcome    ports.Outcome
}

func (Scheduled) Status() Status { return StatusScheduled }
func (Scheduled) Terminal() bool { return false }

// AwaitingApproval is parked on a human/IDE confirmation.
type AwaitingApproval struct {
	base
	Invocation   ports.Invocation
	Confirmation *ports.ConfirmationDetails
}

func (AwaitingApproval) Status() Status { return StatusAwaitingApproval }
func (AwaitingApproval) Terminal() bool { return false }

// Executing is running in the tool executor.
type Executing struct {
	base
	Invocation ports.Invocation
	LiveOutput string
}

func (Executing) Status() Status { return StatusExecuting }
func (Executing) Terminal() bool { return false }

// Success is terminal with a tool result.
type Success struct {
	base
	Response Response
}

func (Success) Status() Status { return StatusSuccess }
func (Success) Terminal() bool { return true }

// Errored is terminal with a tagged error the model can act on.
type Errored struct {
	base
	Response Response
}

func (Errored) Status() Status { return StatusError }
func (Errored) Terminal() bool { return true }

// Cancelled is terminal and non-reenterable. Distinct from Errored: a
// cancelled call is not a fault.
type Cancelled struct {
	base
	Reason   string
	Response Response
}

func (Cancelled) Status() Status { return StatusCancelled }
func (Cancelled) Terminal() bool { return true }

func newBase(request ports.ToolCallRequest) base {
	return base{request: request, started: time.Now()}
}

// carry keeps the request identity and start time across a transition.
func carry(rec Record) base {
	return base{request: rec.Request(), started: rec.StartedAt()}
}
