package sched

import (
	"fmt"
	"sync"
)

// StateManager is the canonical ledger of all calls in the current batch and
// the sole mutator of call status. It owns three zones: the internal work
// queue (not yet dequeued), active (in flight), and the completed batch
// (terminal, awaiting the completion callback). Every status change emits a
// full-snapshot notification.
type StateManager struct {
	mu        sync.Mutex
	records   map[string]Record
	order     []string
	queue     []string
	active    []string
	completed []string
	onUpdate  func([]Record)
}

// NewStateManager creates an empty ledger. onUpdate may be nil.
func NewStateManager(onUpdate func([]Record)) *StateManager {
	return &StateManager{
		records:  make(map[string]Record),
		onUpdate: onUpdate,
	}
}

// Enqueue appends new records to the internal work queue in submission order.
func (m *StateManager) Enqueue(calls ...Record) {
	m.mu.Lock()
	for _, call := range calls {
		id := call.Request().CallID
		m.records[id] = call
		m.order = append(m.order, id)
		m.queue = append(m.queue, id)
	}
	snapshot := m.snapshotLocked()
	m.mu.Unlock()
	m.notify(snapshot)
}

// Dequeue pops the next queued call into active.
func (m *StateManager) Dequeue() (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return nil, false
	}
	id := m.queue[0]
	m.queue = m.queue[1:]
	m.active = append(m.active, id)
	return m.records[id], true
}

// UpdateStatus replaces an active record's variant. The replacement must keep
// the same call ID.
func (m *StateManager) UpdateStatus(callID string, next Record) error {
	if next.Request().CallID != callID {
		return fmt.Errorf("record identity mismatch: %s vs %s", callID, next.Request().CallID)
	}

	m.mu.Lock()
	if _, ok := m.records[callID]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("unknown call: %s", callID)
	}
	if !m.inZoneLocked(m.active, callID) {
		m.mu.Unlock()
		return fmt.Errorf("call %s is not active", callID)
	}
	m.records[callID] = next
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	m.notify(snapshot)
	return nil
}

// Get returns the record for callID wherever it currently lives.
func (m *StateManager) Get(callID string) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[callID]
	return rec, ok
}

// FirstActiveCall returns the oldest in-flight call.
func (m *StateManager) FirstActiveCall() (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.active) == 0 {
		return nil, false
	}
	return m.records[m.active[0]], true
}

// FirstScheduled returns the first active call still waiting to execute.
func (m *StateManager) FirstScheduled() (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.active {
		if rec := m.records[id]; rec.Status() == StatusScheduled {
			return rec, true
		}
	}
	return nil, false
}

// ActiveNonTerminal returns every active call that has not reached a
// terminal status, in submission order.
func (m *StateManager) ActiveNonTerminal() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Record
	for _, id := range m.active {
		if rec := m.records[id]; !rec.Terminal() {
			out = append(out, rec)
		}
	}
	return out
}

// HasActiveCalls reports whether any call is in flight.
func (m *StateManager) HasActiveCalls() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active) > 0
}

// QueueLen returns the number of not-yet-dequeued calls.
func (m *StateManager) QueueLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// FinalizeCall moves a terminal call from active to the completed batch.
func (m *StateManager) FinalizeCall(callID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[callID]
	if !ok {
		return fmt.Errorf("unknown call: %s", callID)
	}
	if !rec.Terminal() {
		return fmt.Errorf("call %s is not terminal (%s)", callID, rec.Status())
	}
	if !m.removeFromZoneLocked(&m.active, callID) {
		return fmt.Errorf("call %s is not active", callID)
	}
	m.completed = append(m.completed, callID)
	return nil
}

// CancelAllQueued marks every not-yet-dequeued call Cancelled and moves it
// straight to the completed batch.
func (m *StateManager) CancelAllQueued(reason string) {
	m.mu.Lock()
	if len(m.queue) == 0 {
		m.mu.Unlock()
		return
	}
	for _, id := range m.queue {
		rec := m.records[id]
		m.records[id] = Cancelled{
			base:   carry(rec),
			Reason: reason,
			Response: Response{
				CallID:  id,
				Message: fmt.Sprintf("%s: %s", rec.Request().ToolName, reason),
			},
		}
		m.completed = append(m.completed, id)
	}
	m.queue = nil
	snapshot := m.snapshotLocked()
	m.mu.Unlock()
	m.notify(snapshot)
}

// CompletedBatch returns the terminal records awaiting the completion
// callback, in submission order.
func (m *StateManager) CompletedBatch() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	done := make(map[string]bool, len(m.completed))
	for _, id := range m.completed {
		done[id] = true
	}
	out := make([]Record, 0, len(m.completed))
	for _, id := range m.order {
		if done[id] {
			out = append(out, m.records[id])
		}
	}
	return out
}

// ClearBatch drops every record. Called after the completion callback
// returns.
func (m *StateManager) ClearBatch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[string]Record)
	m.order = nil
	m.queue = nil
	m.active = nil
	m.completed = nil
}

// Snapshot returns every record of the batch in submission order.
func (m *StateManager) Snapshot() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *StateManager) snapshotLocked() []Record {
	out := make([]Record, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.records[id])
	}
	return out
}

func (m *StateManager) inZoneLocked(zone []string, callID string) bool {
	for _, id := range zone {
		if id == callID {
			return true
		}
	}
	return false
}

func (m *StateManager) removeFromZoneLocked(zone *[]string, callID string) bool {
	for i, id := range *zone {
		if id == callID {
			*zone = append((*zone)[:i], (*zone)[i+1:]...)
			return true
		}
	}
	return false
}

func (m *StateManager) notify(snapshot []Record) {
	if m.onUpdate != nil {
		m.onUpdate(snapshot)
	}
}
